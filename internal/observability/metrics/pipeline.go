package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics observes index builds, incremental adds, questions and the
// asynchronous add-document tasks coming from the queue or the watcher.
type PipelineMetrics struct {
	service string

	indexingTotal    *prometheus.CounterVec
	indexingDuration *prometheus.HistogramVec
	indexedChunks    *prometheus.CounterVec
	askTotal         *prometheus.CounterVec
	askDuration      *prometheus.HistogramVec
	retrievedChunks  prometheus.Histogram
	tasksInFlight    prometheus.Gauge
	tasksTotal       *prometheus.CounterVec
}

func NewPipelineMetrics(service string, registerer prometheus.Registerer) *PipelineMetrics {
	indexingTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "operations_total",
			Help:      "Index builds and document additions by status.",
		},
		[]string{"service", "operation", "status"},
	)
	indexingDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "operation_duration_seconds",
			Help:      "Duration of index builds and document additions.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service", "operation"},
	)
	indexedChunks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "chunks_total",
			Help:      "Chunks embedded into the index.",
		},
		[]string{"service", "operation"},
	)
	askTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rag",
			Name:      "requests_total",
			Help:      "Questions answered by status.",
		},
		[]string{"service", "status"},
	)
	askDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rag",
			Name:      "duration_seconds",
			Help:      "Question answering duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	retrievedChunks := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "rag",
			Name:        "retrieved_chunks",
			Help:        "Distribution of retrieved chunks per answered question.",
			Buckets:     []float64{0, 1, 2, 3, 4, 6, 8, 12},
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	tasksInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "ingest",
			Name:        "tasks_in_flight",
			Help:        "Number of in-flight add-document tasks.",
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	tasksTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "tasks_total",
			Help:      "Add-document tasks by origin and status.",
		},
		[]string{"service", "origin", "status"},
	)

	registerer.MustRegister(
		indexingTotal,
		indexingDuration,
		indexedChunks,
		askTotal,
		askDuration,
		retrievedChunks,
		tasksInFlight,
		tasksTotal,
	)

	return &PipelineMetrics{
		service:          service,
		indexingTotal:    indexingTotal,
		indexingDuration: indexingDuration,
		indexedChunks:    indexedChunks,
		askTotal:         askTotal,
		askDuration:      askDuration,
		retrievedChunks:  retrievedChunks,
		tasksInFlight:    tasksInFlight,
		tasksTotal:       tasksTotal,
	}
}

func (m *PipelineMetrics) ObserveIndexing(operation string, _ int, chunks int, duration time.Duration, err error) {
	status := statusOf(err)
	m.indexingTotal.WithLabelValues(m.service, operation, status).Inc()
	m.indexingDuration.WithLabelValues(m.service, operation).Observe(duration.Seconds())
	if err == nil && chunks > 0 {
		m.indexedChunks.WithLabelValues(m.service, operation).Add(float64(chunks))
	}
}

func (m *PipelineMetrics) ObserveAsk(retrieved int, duration time.Duration, err error) {
	status := statusOf(err)
	m.askTotal.WithLabelValues(m.service, status).Inc()
	m.askDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
	if err == nil {
		m.retrievedChunks.Observe(float64(retrieved))
	}
}

func (m *PipelineMetrics) StartTask() {
	m.tasksInFlight.Inc()
}

func (m *PipelineMetrics) FinishTask(origin string, err error) {
	m.tasksInFlight.Dec()
	m.tasksTotal.WithLabelValues(m.service, origin, statusOf(err)).Inc()
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
