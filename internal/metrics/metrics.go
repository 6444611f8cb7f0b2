// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FeedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cartshare",
		Name:      "feed_events_total",
		Help:      "Row changes published on the change feed.",
	}, []string{"table", "op"})

	ViewRefetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cartshare",
		Name:      "view_refetches_total",
		Help:      "Full refetches performed by live views.",
	}, []string{"view"})

	PushSends = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cartshare",
		Name:      "push_total",
		Help:      "Push notification attempts by result.",
	}, []string{"result"})

	StoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cartshare",
		Name:      "store_errors_total",
		Help:      "Store failures surfaced as transient errors.",
	}, []string{"op"})

	FeedConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "cartshare",
		Name:      "feed_connections",
		Help:      "Open websocket change-feed connections.",
	})
)
