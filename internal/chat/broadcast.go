package chat

import (
	"log/slog"

	"github.com/avolent/driftchat/internal/metrics"
)

// Broadcaster fans an event out to every registered session's push channel.
type Broadcaster struct {
	reg *Registry
}

// NewBroadcaster creates a broadcaster over reg.
func NewBroadcaster(reg *Registry) *Broadcaster {
	return &Broadcaster{reg: reg}
}

// Publish sends ev to every session. Delivery iterates a snapshot taken at
// call time, so registry mutations during fan-out cannot corrupt iteration.
// A full channel drops the frame for that recipient only; dropping never
// removes the session — membership changes belong to the hub's grace-period
// and idle-sweep paths.
func (b *Broadcaster) Publish(ev Event) {
	for _, sess := range b.reg.Snapshot() {
		select {
		case sess.Channel <- ev:
		default:
			metrics.EventsDropped.Inc()
			slog.Debug("dropping frame on slow receiver",
				"user_id", sess.ID,
				"event_type", ev.Type,
			)
		}
	}
}
