// Package metrics exposes the process-wide prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsActive tracks the number of registered sessions.
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "driftchat_sessions_active",
		Help: "Number of currently registered chat sessions.",
	})

	// MessagesTotal counts accepted posts.
	MessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "driftchat_messages_total",
		Help: "Total number of messages accepted into the log.",
	})

	// EventsDropped counts fan-out frames discarded because a recipient's
	// channel was full.
	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "driftchat_events_dropped_total",
		Help: "Total number of broadcast frames dropped on slow receivers.",
	})

	// AdmissionsRejected counts connects refused by the origin quota.
	AdmissionsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "driftchat_admissions_rejected_total",
		Help: "Total number of connects rejected because the room was full.",
	})

	// IdleEvictions counts sessions removed by the idle sweep.
	IdleEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "driftchat_idle_evictions_total",
		Help: "Total number of sessions evicted for inactivity.",
	})
)
