package ploopback

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// sessionMetrics is the set of Prometheus collectors scoped to one
// CaptureSession, registered the way the teacher's collector wraps a
// dedicated vector set per subsystem rather than sharing one global set.
type sessionMetrics struct {
	enqueuedTotal  prometheus.Counter
	droppedTotal   prometheus.Counter
	errorsTotal    prometheus.Counter
	queueDepth     prometheus.Gauge
	activationSecs prometheus.Histogram
}

var (
	metricsOnce sync.Once

	enqueuedVec  *prometheus.CounterVec
	droppedVec   *prometheus.CounterVec
	errorsVec    *prometheus.CounterVec
	queueDepthG  *prometheus.GaugeVec
	activationH  *prometheus.HistogramVec
)

// initMetrics registers the vectors exactly once per process. Re-running
// tests that construct many CaptureEngines reuse the same vectors, keyed by
// session ID, instead of re-registering (which prometheus would reject).
func initMetrics(registerer prometheus.Registerer) {
	metricsOnce.Do(func() {
		enqueuedVec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ploopback",
			Name:      "chunks_enqueued_total",
			Help:      "Total chunks successfully pushed onto a session's frame queue.",
		}, []string{"session"})

		droppedVec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ploopback",
			Name:      "chunks_dropped_total",
			Help:      "Total chunks discarded because the frame queue was full.",
		}, []string{"session"})

		errorsVec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ploopback",
			Name:      "capture_errors_total",
			Help:      "Total capture-worker errors: fatal pull errors and chunks rejected by a full frame queue.",
		}, []string{"session"})

		queueDepthG = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ploopback",
			Name:      "queue_depth",
			Help:      "Current number of chunks resident in a session's frame queue.",
		}, []string{"session"})

		activationH = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ploopback",
			Name:      "activation_duration_seconds",
			Help:      "Time spent waiting on the activation completion event.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"session"})

		registerer.MustRegister(enqueuedVec, droppedVec, errorsVec, queueDepthG, activationH)
	})
}

// newSessionMetrics binds per-session label values to the shared vectors.
func newSessionMetrics(registerer prometheus.Registerer, sessionID string) *sessionMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	initMetrics(registerer)
	return &sessionMetrics{
		enqueuedTotal:  enqueuedVec.WithLabelValues(sessionID),
		droppedTotal:   droppedVec.WithLabelValues(sessionID),
		errorsTotal:    errorsVec.WithLabelValues(sessionID),
		queueDepth:     queueDepthG.WithLabelValues(sessionID),
		activationSecs: activationH.WithLabelValues(sessionID),
	}
}

// observe pushes a FrameQueue snapshot into the Prometheus vectors. Called
// from the consumer thread after PopBatch, never from the audio worker.
func (m *sessionMetrics) observe(delta Metrics, prev Metrics) {
	if delta.Enqueued > prev.Enqueued {
		m.enqueuedTotal.Add(float64(delta.Enqueued - prev.Enqueued))
	}
	if delta.Dropped > prev.Dropped {
		m.droppedTotal.Add(float64(delta.Dropped - prev.Dropped))
	}
	if delta.Errors > prev.Errors {
		m.errorsTotal.Add(float64(delta.Errors - prev.Errors))
	}
	m.queueDepth.Set(float64(delta.CurrentSize))
}
