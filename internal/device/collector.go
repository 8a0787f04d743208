package device

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/danmuck/canhub/internal/can"
)

// CounterCollector exposes the driver-reported bus condition counters. The
// values are surfaced exactly as the driver reports them.
type CounterCollector struct {
	dev       can.RawTransport
	overrun   *prometheus.Desc
	busOff    *prometheus.Desc
	softError *prometheus.Desc
}

func NewCounterCollector(device string, dev can.RawTransport) *CounterCollector {
	labels := prometheus.Labels{"device": device}
	return &CounterCollector{
		dev: dev,
		overrun: prometheus.NewDesc(
			"canhub_device_overruns_total",
			"Receive overruns reported by the driver.",
			nil, labels,
		),
		busOff: prometheus.NewDesc(
			"canhub_device_bus_off_total",
			"Bus-off conditions reported by the driver.",
			nil, labels,
		),
		softError: prometheus.NewDesc(
			"canhub_device_soft_errors_total",
			"Soft bus errors reported by the driver.",
			nil, labels,
		),
	}
}

func (c *CounterCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.overrun
	ch <- c.busOff
	ch <- c.softError
}

func (c *CounterCollector) Collect(ch chan<- prometheus.Metric) {
	n := c.dev.Counters()
	ch <- prometheus.MustNewConstMetric(c.overrun, prometheus.CounterValue, float64(n.Overrun))
	ch <- prometheus.MustNewConstMetric(c.busOff, prometheus.CounterValue, float64(n.BusOff))
	ch <- prometheus.MustNewConstMetric(c.softError, prometheus.CounterValue, float64(n.SoftError))
}
