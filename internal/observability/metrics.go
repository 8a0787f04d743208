package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "canhub",
			Subsystem: "hub",
			Name:      "frames_total",
			Help:      "Frames relayed through a hub, by direction.",
		},
		[]string{"hub", "direction"},
	)
	broadcastsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "canhub",
			Subsystem: "hub",
			Name:      "broadcasts_total",
			Help:      "Buffers broadcast by a hub.",
		},
		[]string{"hub"},
	)
	decodeErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "canhub",
			Subsystem: "gridconnect",
			Name:      "decode_errors_total",
			Help:      "Partial GridConnect frames discarded during decode.",
		},
		[]string{"hub"},
	)
	poolInUse = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "canhub",
			Subsystem: "pool",
			Name:      "buffers_in_use",
			Help:      "Buffer pool slots currently allocated.",
		},
		[]string{"pool"},
	)
	connectionsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "canhub",
			Subsystem: "server",
			Name:      "connections_active",
			Help:      "Active GridConnect TCP connections.",
		},
		[]string{"listener"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			framesTotal,
			broadcastsTotal,
			decodeErrorsTotal,
			poolInUse,
			connectionsActive,
		)
	})
}

func RecordFrame(hub, direction string) {
	RegisterMetrics()
	framesTotal.WithLabelValues(hub, direction).Inc()
}

func RecordBroadcast(hub string) {
	RegisterMetrics()
	broadcastsTotal.WithLabelValues(hub).Inc()
}

func RecordDecodeError(hub string) {
	RegisterMetrics()
	decodeErrorsTotal.WithLabelValues(hub).Inc()
}

func SetPoolInUse(pool string, n int) {
	RegisterMetrics()
	poolInUse.WithLabelValues(pool).Set(float64(n))
}

func AddActiveConnections(listener string, delta int) {
	RegisterMetrics()
	connectionsActive.WithLabelValues(listener).Add(float64(delta))
}
