package upload

import (
	"time"

	"github.com/attachdrop/backend/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the ingestion counters. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	accepted     prometheus.Counter
	rejected     *prometheus.CounterVec
	bytesRead    prometheus.Counter
	inFlight     prometheus.Gauge
	readDuration prometheus.Histogram
}

// NewMetrics registers the ingestion metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		accepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "attachdrop",
			Name:      "files_accepted_total",
			Help:      "Files read and emitted as descriptors",
		}),
		rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "attachdrop",
			Name:      "files_rejected_total",
			Help:      "Files refused or failed, by reason",
		}, []string{"reason"}),
		bytesRead: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "attachdrop",
			Name:      "bytes_read_total",
			Help:      "Bytes read from accepted files",
		}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "attachdrop",
			Name:      "reads_in_flight",
			Help:      "Reads currently in progress",
		}),
		readDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "attachdrop",
			Name:      "read_duration_seconds",
			Help:      "Time spent reading and encoding a file",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) readStarted() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

func (m *Metrics) readFinished(start time.Time, bytes int, ok bool) {
	if m == nil {
		return
	}
	m.inFlight.Dec()
	m.readDuration.Observe(time.Since(start).Seconds())
	if ok {
		m.accepted.Inc()
		m.bytesRead.Add(float64(bytes))
	}
}

func (m *Metrics) rejectedFor(kind models.IngestErrorKind) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(string(kind)).Inc()
}
