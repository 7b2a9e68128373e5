// Package telemetry exposes prometheus metrics for the sync engine.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesMerged counts messages newly written by any merge path.
	MessagesMerged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatcache_messages_merged_total",
		Help: "Messages newly merged into the local store.",
	})

	// PullsTotal counts per-conversation pull reconciliations by outcome.
	PullsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatcache_pulls_total",
		Help: "Per-conversation pull reconciliations.",
	}, []string{"outcome"})

	// PullPages counts history pages fetched.
	PullPages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatcache_pull_pages_total",
		Help: "History pages fetched by the pull engine.",
	})

	// PushEvents counts processed push events by type.
	PushEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatcache_push_events_total",
		Help: "Push events processed by the live merge handler.",
	}, []string{"type"})

	// SendsUnconfirmed counts optimistic sends whose acknowledgment never
	// arrived inside the watchdog window.
	SendsUnconfirmed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatcache_sends_unconfirmed_total",
		Help: "Optimistic sends annotated as unconfirmed.",
	})

	// QueueDepth reports the current push queue depth.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chatcache_push_queue_depth",
		Help: "Current depth of the push event queue.",
	})

	// QueueDropped counts events rejected by a full queue or failed decode.
	QueueDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatcache_push_queue_dropped_total",
		Help: "Events dropped by the push queue.",
	})
)
