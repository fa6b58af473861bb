package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/avolent/driftchat/internal/metrics"
)

// Options tunes the hub. Zero values fall back to the listed defaults.
type Options struct {
	MaxOrigins         int           // distinct-origin admission quota (8)
	MaxMessages        int           // bounded log size (200)
	MaxAttachmentBytes int           // inline attachment ceiling (1 MiB)
	GracePeriod        time.Duration // disconnect-confirmation window (5s)
	IdleTimeout        time.Duration // inactivity eviction threshold (5m)
	SweepInterval      time.Duration // idle sweep cadence (30s)
	ChannelBuffer      int           // per-session push channel depth (64)
}

func (o Options) withDefaults() Options {
	if o.MaxOrigins == 0 {
		o.MaxOrigins = 8
	}
	if o.MaxMessages == 0 {
		o.MaxMessages = 200
	}
	if o.MaxAttachmentBytes == 0 {
		o.MaxAttachmentBytes = 1 << 20
	}
	if o.GracePeriod == 0 {
		o.GracePeriod = 5 * time.Second
	}
	if o.IdleTimeout == 0 {
		o.IdleTimeout = 5 * time.Minute
	}
	if o.SweepInterval == 0 {
		o.SweepInterval = 30 * time.Second
	}
	return o
}

// Hub is the lifecycle manager and single coordination point. Every
// operation holds the hub mutex across its state mutation and the resulting
// publish, so all sessions observe causally related events in the same
// order. Channel sends inside Publish are non-blocking, so a stalled
// receiver never delays the mutation path.
type Hub struct {
	opts  Options
	reg   *Registry
	store *Store
	bc    *Broadcaster

	mu sync.Mutex
}

// NewHub creates a hub with its own registry, store, and broadcaster.
func NewHub(opts Options) *Hub {
	opts = opts.withDefaults()
	reg := NewRegistry(opts.MaxOrigins, opts.ChannelBuffer)
	return &Hub{
		opts:  opts,
		reg:   reg,
		store: NewStore(opts.MaxMessages, opts.MaxAttachmentBytes),
		bc:    NewBroadcaster(reg),
	}
}

// Registry exposes the underlying session registry.
func (h *Hub) Registry() *Registry { return h.reg }

// Connect admits identity and registers a fresh session. A join notice is
// broadcast only for true new arrivals; a reconnect (including one inside
// the grace period) resumes silently, receiving the current roster at the
// end of its backlog instead. The returned backlog is the replayable log
// snapshot taken atomically with registration, so live channel events
// strictly follow it without gaps or duplicates.
func (h *Hub) Connect(identity, origin, name string) (*Session, []Event, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sess, resumed, err := h.reg.Admit(identity, origin, name)
	if err != nil {
		return nil, nil, err
	}

	backlog := h.backlogLocked()
	if !resumed {
		h.bc.Publish(systemEvent(fmt.Sprintf("%s joined the chat (online: %d)", sess.Name, h.reg.Len())))
		h.bc.Publish(rosterEvent(h.reg.Names()))
	} else {
		// Nothing is broadcast for a resume, but the refreshed client still
		// needs the current roster; replay it after the backlog.
		backlog = append(backlog, rosterEvent(h.reg.Names()))
	}
	slog.Info("session connected", "user_id", identity, "origin", origin, "resumed", resumed)
	return sess, backlog, nil
}

// Disconnect marks sess's channel as closed and schedules the grace-period
// confirmation. A same-identity reconnect before the timer fires cancels it,
// absorbing page refreshes without a leave/join flicker. Calls for a
// superseded session value are no-ops.
func (h *Hub) Disconnect(sess *Session) {
	t := time.AfterFunc(h.opts.GracePeriod, func() { h.confirmEvict(sess) })
	if !h.reg.ScheduleEviction(sess, t) {
		return
	}
	slog.Debug("session channel closed, grace period started", "user_id", sess.ID)
}

// confirmEvict fires when the grace period elapses without a reconnect.
func (h *Hub) confirmEvict(sess *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// A reconnect may have installed a newer session value in the
	// meantime, or the idle sweep may have raced us; only act when the
	// channel bound at schedule time is still the one on record.
	if !h.reg.CurrentIs(sess) {
		return
	}
	h.reg.Remove(sess.ID)
	h.bc.Publish(systemEvent(fmt.Sprintf("%s left the chat", sess.Name)))
	h.bc.Publish(rosterEvent(h.reg.Names()))
	slog.Info("session left", "user_id", sess.ID, "reason", "disconnect")
}

// Post appends a message from identity and fans it out. Unknown identities
// and unacceptable payloads are silent no-ops.
func (h *Hub) Post(identity string, p Payload) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	sess := h.reg.Get(identity)
	if sess == nil {
		return false
	}
	h.reg.Touch(identity)

	msg, ok := h.store.Append(identity, sess.Name, p)
	if !ok {
		return false
	}
	h.bc.Publish(messageEvent(msg))
	return true
}

// Delete retracts a message if identity is its original sender.
func (h *Hub) Delete(identity string, messageID int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	sess := h.reg.Get(identity)
	if sess == nil {
		return false
	}
	h.reg.Touch(identity)

	if !h.store.MarkDeleted(messageID, identity) {
		return false
	}
	h.bc.Publish(Event{Type: EventMessageDeleted, ID: messageID, User: sess.Name})
	return true
}

// Read records a read acknowledgement and broadcasts the updated count.
func (h *Hub) Read(identity string, messageID int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.reg.Get(identity) == nil {
		return false
	}
	h.reg.Touch(identity)

	count, ok := h.store.AddReader(messageID, identity)
	if !ok {
		return false
	}
	h.bc.Publish(Event{Type: EventReadReceipt, ID: messageID, Readers: count})
	return true
}

// Rename changes identity's display name. No-op renames emit nothing.
func (h *Hub) Rename(identity, newName string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.reg.Touch(identity) {
		return false
	}
	old, clean, changed := h.reg.Rename(identity, newName)
	if !changed {
		return false
	}
	h.bc.Publish(systemEvent(fmt.Sprintf("%s is now known as %s", old, clean)))
	h.bc.Publish(rosterEvent(h.reg.Names()))
	return true
}

// Heartbeat refreshes the activity clock only; nothing is broadcast.
func (h *Hub) Heartbeat(identity string) bool {
	return h.reg.Touch(identity)
}

// Run drives the idle sweep until ctx is cancelled. Sessions inactive past
// the idle threshold are removed even if their channel never closed.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.opts.SweepInterval)
	defer ticker.Stop()
	slog.Info("idle sweep started", "interval", h.opts.SweepInterval, "idle_timeout", h.opts.IdleTimeout)

	for {
		select {
		case <-ticker.C:
			h.sweep()
		case <-ctx.Done():
			slog.Info("idle sweep stopped", "reason", ctx.Err())
			return
		}
	}
}

func (h *Hub) sweep() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sess := range h.reg.Idle(h.opts.IdleTimeout) {
		if !h.reg.CurrentIs(sess) {
			continue
		}
		h.reg.Remove(sess.ID)
		metrics.IdleEvictions.Inc()
		h.bc.Publish(systemEvent(fmt.Sprintf("%s left the chat", sess.Name)))
		h.bc.Publish(rosterEvent(h.reg.Names()))
		slog.Info("session evicted", "user_id", sess.ID, "reason", "idle")
	}
}

func (h *Hub) backlogLocked() []Event {
	entries := h.store.Recent()
	events := make([]Event, 0, len(entries))
	for _, e := range entries {
		events = append(events, messageEvent(&e.Message))
		if e.Readers > 0 {
			events = append(events, Event{Type: EventReadReceipt, ID: e.Message.ID, Readers: e.Readers})
		}
	}
	return events
}

func messageEvent(m *Message) Event {
	return Event{
		Type:        EventMessage,
		ID:          m.ID,
		User:        m.Sender,
		UserID:      m.SenderID,
		MessageType: m.Body.Type,
		Text:        m.Body.Text,
		GifURL:      m.Body.GifURL,
		Attachment:  m.Body.Attachment,
		ReplyTo:     m.Body.ReplyTo,
		Encrypted:   m.Body.Encrypted,
		TS:          m.SentAt,
	}
}
