package chat

import (
	"strings"
	"sync"
	"time"

	"github.com/avolent/driftchat/internal/metrics"
)

// Payload is the client-supplied body of a post, already sanitized by the
// HTTP layer.
type Payload struct {
	Type       string
	Text       string
	GifURL     string
	Attachment *Attachment
	ReplyTo    *ReplyRef
	Encrypted  bool
}

// Message is one accepted chat event in the bounded log.
type Message struct {
	ID       int64
	SenderID string
	Sender   string
	Body     Payload
	SentAt   time.Time
	Deleted  bool

	readers map[string]struct{}
}

// Store is an append-only bounded log of accepted messages. The oldest entry
// is evicted first once the configured maximum is exceeded, regardless of its
// deletion or read state.
type Store struct {
	mu       sync.Mutex
	nextID   int64
	maxCount int
	maxBytes int
	log      []*Message
}

// NewStore creates a message store holding at most maxCount messages and
// accepting inline attachments up to maxAttachmentBytes.
func NewStore(maxCount, maxAttachmentBytes int) *Store {
	if maxCount <= 0 {
		maxCount = 1
	}
	return &Store{
		maxCount: maxCount,
		maxBytes: maxAttachmentBytes,
		log:      make([]*Message, 0, maxCount),
	}
}

// Append validates the payload and, if accepted, assigns the next id and
// inserts the message. Rejected payloads consume no id and return false.
func (s *Store) Append(senderID, senderName string, p Payload) (*Message, bool) {
	if !s.acceptable(p) {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	msg := &Message{
		ID:       s.nextID,
		SenderID: senderID,
		Sender:   senderName,
		Body:     p,
		SentAt:   time.Now().UTC(),
		readers:  make(map[string]struct{}),
	}
	s.log = append(s.log, msg)
	if len(s.log) > s.maxCount {
		s.log = s.log[1:]
	}
	metrics.MessagesTotal.Inc()
	return msg, true
}

// MarkDeleted flags a message as retracted. It succeeds only once, and only
// for the original sender; everything else is a no-op returning false.
func (s *Store) MarkDeleted(id int64, requesterID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := s.find(id)
	if msg == nil || msg.Deleted || msg.SenderID != requesterID {
		return false
	}
	msg.Deleted = true
	return true
}

// AddReader records a read acknowledgement and returns the updated distinct
// reader count. The sender never counts as a reader, repeated acks from the
// same identity are idempotent, and deleted or evicted messages report false.
func (s *Store) AddReader(id int64, readerID string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := s.find(id)
	if msg == nil || msg.Deleted || msg.SenderID == readerID {
		return 0, false
	}
	msg.readers[readerID] = struct{}{}
	return len(msg.readers), true
}

// Recent returns a snapshot of the non-retracted messages currently in the
// log, oldest first, with their reader counts.
func (s *Store) Recent() []BacklogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]BacklogEntry, 0, len(s.log))
	for _, msg := range s.log {
		if msg.Deleted {
			continue
		}
		out = append(out, BacklogEntry{Message: *msg, Readers: len(msg.readers)})
	}
	return out
}

// BacklogEntry pairs a message snapshot with its reader count for replay to
// freshly connected clients.
type BacklogEntry struct {
	Message Message
	Readers int
}

func (s *Store) find(id int64) *Message {
	for _, msg := range s.log {
		if msg.ID == id {
			return msg
		}
	}
	return nil
}

// acceptable reports whether a post carries at least one well-formed body:
// non-empty text, an http(s) media reference, or an inline attachment under
// the size ceiling.
func (s *Store) acceptable(p Payload) bool {
	// A present attachment must be well-formed and under the ceiling even
	// when text accompanies it; oversized uploads never enter the log.
	if a := p.Attachment; a != nil {
		return a.Name != "" && a.Data != "" && len(a.Data) <= s.maxBytes
	}
	if strings.TrimSpace(p.Text) != "" {
		return true
	}
	return validMediaURL(p.GifURL)
}

func validMediaURL(raw string) bool {
	return strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://")
}
