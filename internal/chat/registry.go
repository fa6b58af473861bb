package chat

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/avolent/driftchat/internal/metrics"
)

// ErrRoomFull is returned when a new distinct origin would exceed the quota.
var ErrRoomFull = errors.New("room is full")

// Session is one logical participant, keyed by its client-supplied identity.
// A fresh Session value is created on every (re)connect so that each push
// channel has exactly one owner; a superseded value is signalled via done.
type Session struct {
	ID         string
	Origin     string
	Name       string
	Channel    chan Event
	LastActive time.Time

	// done is closed when this session value is superseded by a reconnect
	// or removed from the registry. The stream handler bound to Channel
	// must exit when it fires.
	done chan struct{}

	// evict is the pending grace-period timer, present only between the
	// channel closing and either the timeout or a reconnect.
	evict *time.Timer
}

// Done reports when this session value has been superseded or removed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Registry maps identities to their current session. All mutation is
// serialized by one mutex; admission is a single check-and-reserve step under
// that same lock so concurrent connects cannot overshoot the origin quota.
type Registry struct {
	mu         sync.Mutex
	maxOrigins int
	chanBuffer int
	sessions   map[string]*Session
}

// NewRegistry creates a registry admitting at most maxOrigins distinct
// network origins, with per-session push channels of the given buffer size.
func NewRegistry(maxOrigins, chanBuffer int) *Registry {
	if chanBuffer <= 0 {
		chanBuffer = 64
	}
	return &Registry{
		maxOrigins: maxOrigins,
		chanBuffer: chanBuffer,
		sessions:   make(map[string]*Session),
	}
}

// Admit registers a session for identity, enforcing the distinct-origin quota
// for genuinely new identities. Reconnects are always admitted: the prior
// session value is superseded, its pending eviction cancelled, and its
// display name preserved unless a new one is supplied. The second return
// value reports whether a prior session existed.
func (r *Registry) Admit(identity, origin, name string) (*Session, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name = cleanName(name)

	prior, resumed := r.sessions[identity]
	if !resumed && r.maxOrigins > 0 && r.distinctOriginsLocked(identity) >= r.maxOrigins {
		metrics.AdmissionsRejected.Inc()
		return nil, false, ErrRoomFull
	}

	if resumed {
		if prior.evict != nil {
			prior.evict.Stop()
			prior.evict = nil
		}
		close(prior.done)
		if name == "" {
			name = prior.Name
		}
	}
	if name == "" {
		name = anonName()
	}

	sess := &Session{
		ID:         identity,
		Origin:     origin,
		Name:       name,
		Channel:    make(chan Event, r.chanBuffer),
		LastActive: time.Now(),
		done:       make(chan struct{}),
	}
	r.sessions[identity] = sess
	metrics.SessionsActive.Set(float64(len(r.sessions)))
	return sess, resumed, nil
}

// Get returns the current session for identity, or nil.
func (r *Registry) Get(identity string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[identity]
}

// CurrentIs reports whether sess is still the registered session for its
// identity. Stale timers and handlers use it to avoid acting on a channel
// they no longer own.
func (r *Registry) CurrentIs(sess *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[sess.ID] == sess
}

// Remove deletes the session for identity, stopping any pending eviction
// timer and signalling the bound stream handler. It returns the removed
// session, or nil if none was registered.
func (r *Registry) Remove(identity string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[identity]
	if !ok {
		return nil
	}
	if sess.evict != nil {
		sess.evict.Stop()
		sess.evict = nil
	}
	close(sess.done)
	delete(r.sessions, identity)
	metrics.SessionsActive.Set(float64(len(r.sessions)))
	return sess
}

// Touch refreshes the activity clock for identity and reports whether a
// session was present.
func (r *Registry) Touch(identity string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[identity]
	if !ok {
		return false
	}
	sess.LastActive = time.Now()
	return true
}

// Rename updates the display name after sanitization. A name that sanitizes
// to nothing is replaced with a generated placeholder; name continuity on
// reconnect is Admit's concern, never this path's. It returns the old and new
// names, and whether anything actually changed.
func (r *Registry) Rename(identity, newName string) (string, string, bool) {
	clean := SanitizeName(newName)

	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[identity]
	if !ok || sess.Name == clean {
		return "", "", false
	}
	old := sess.Name
	sess.Name = clean
	return old, clean, true
}

// ScheduleEviction installs a grace-period timer for sess if it is still the
// current session for its identity. The caller-created timer is stopped when
// it is not installed.
func (r *Registry) ScheduleEviction(sess *Session, t *time.Timer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessions[sess.ID] != sess {
		t.Stop()
		return false
	}
	if sess.evict != nil {
		sess.evict.Stop()
	}
	sess.evict = t
	return true
}

// Snapshot returns the current sessions in no particular order.
func (r *Registry) Snapshot() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		out = append(out, sess)
	}
	return out
}

// Names returns the roster: all display names in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.sessions))
	for _, sess := range r.sessions {
		names = append(names, sess.Name)
	}
	sort.Strings(names)
	return names
}

// Idle returns the sessions whose last activity is older than threshold.
func (r *Registry) Idle(threshold time.Duration) []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-threshold)
	var idle []*Session
	for _, sess := range r.sessions {
		if sess.LastActive.Before(cutoff) {
			idle = append(idle, sess)
		}
	}
	return idle
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) distinctOriginsLocked(excludeIdentity string) int {
	origins := make(map[string]struct{}, len(r.sessions))
	for id, sess := range r.sessions {
		if id == excludeIdentity {
			continue
		}
		origins[sess.Origin] = struct{}{}
	}
	return len(origins)
}
