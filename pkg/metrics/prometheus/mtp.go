package prometheus

import (
	"time"

	"github.com/marmos91/mtpd/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func init() {
	metrics.RegisterMTPMetricsConstructor(func() metrics.MTPMetrics {
		m := NewMTPMetrics()
		if m == nil {
			return nil
		}
		return m
	})
}

// mtpMetrics is the Prometheus implementation of metrics.MTPMetrics.
type mtpMetrics struct {
	operations    *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	bytes         *prometheus.CounterVec
	events        *prometheus.CounterVec
	eventsDropped *prometheus.CounterVec
	codecErrors   *prometheus.CounterVec
	sessionOpen   prometheus.Gauge
	storages      prometheus.Gauge
	hostsAttached prometheus.Counter
}

// NewMTPMetrics creates Prometheus-backed MTP metrics on the registry from
// metrics.InitRegistry.
//
// Returns nil if metrics are not enabled.
func NewMTPMetrics() *mtpMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	return newMTPMetrics(metrics.GetRegistry())
}

func newMTPMetrics(reg prometheus.Registerer) *mtpMetrics {
	f := promauto.With(reg)
	return &mtpMetrics{
		operations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mtpd_operations_total",
				Help: "Total MTP transactions by operation and response",
			},
			[]string{"operation", "response"},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mtpd_operation_duration_seconds",
				Help:    "MTP transaction duration by operation",
				Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5, 30, 120},
			},
			[]string{"operation"},
		),
		bytes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mtpd_bytes_transferred_total",
				Help: "Data phase payload bytes by operation and direction",
			},
			[]string{"operation", "direction"}, // "in", "out"
		),
		events: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mtpd_events_sent_total",
				Help: "Events sent to the host by event code",
			},
			[]string{"event"},
		),
		eventsDropped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mtpd_events_dropped_total",
				Help: "Events not delivered (no session or transport failure)",
			},
			[]string{"event"},
		),
		codecErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mtpd_codec_errors_total",
				Help: "Framing errors that forced a resync, by kind",
			},
			[]string{"kind"},
		),
		sessionOpen: f.NewGauge(prometheus.GaugeOpts{
			Name: "mtpd_session_open",
			Help: "1 while an MTP session is open",
		}),
		storages: f.NewGauge(prometheus.GaugeOpts{
			Name: "mtpd_storages",
			Help: "Number of registered storages",
		}),
		hostsAttached: f.NewCounter(prometheus.CounterOpts{
			Name: "mtpd_host_attachments_total",
			Help: "Number of times a host attached to the transport",
		}),
	}
}

func (m *mtpMetrics) RecordOperation(operation, response string, duration time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, response).Inc()
	m.duration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *mtpMetrics) RecordBytes(operation, direction string, bytes int64) {
	if m == nil || bytes <= 0 {
		return
	}
	m.bytes.WithLabelValues(operation, direction).Add(float64(bytes))
}

func (m *mtpMetrics) RecordEvent(event string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(event).Inc()
}

func (m *mtpMetrics) RecordEventDropped(event string) {
	if m == nil {
		return
	}
	m.eventsDropped.WithLabelValues(event).Inc()
}

func (m *mtpMetrics) RecordCodecError(kind string) {
	if m == nil {
		return
	}
	m.codecErrors.WithLabelValues(kind).Inc()
}

func (m *mtpMetrics) SetSessionOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.sessionOpen.Set(1)
	} else {
		m.sessionOpen.Set(0)
	}
}

func (m *mtpMetrics) SetStorages(count int) {
	if m == nil {
		return
	}
	m.storages.Set(float64(count))
}

func (m *mtpMetrics) RecordHostAttached() {
	if m == nil {
		return
	}
	m.hostsAttached.Inc()
}
