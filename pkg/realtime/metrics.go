package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	published = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubsync_realtime_published_total",
		Help: "Events published, by adapter.",
	}, []string{"adapter"})
	delivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubsync_realtime_delivered_total",
		Help: "Events delivered to local handlers, by adapter.",
	}, []string{"adapter"})
	droppedLate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubsync_realtime_dropped_late_total",
		Help: "Events dropped because their subscription was already cancelled.",
	}, []string{"adapter"})
)
