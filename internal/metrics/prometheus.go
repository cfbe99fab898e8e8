package metrics

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using the Prometheus client library.
// All methods are non-blocking and fire-and-forget.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	passesTotal     prometheus.Counter
	passErrorsTotal prometheus.Counter
	passDuration    prometheus.Histogram

	misfiresTotal prometheus.Counter
	misfireDelay  prometheus.Histogram

	historyBatchesTotal *prometheus.CounterVec
	historyBatchSize    prometheus.Histogram
	historyBatchDur     prometheus.Histogram

	errorsTotal *prometheus.CounterVec

	snapshotPipelines prometheus.Gauge
}

// NewPrometheusSink creates a new Prometheus metrics sink.
// Metrics that fail to register are logged and left unexported but functional.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}

	s.passesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "misfireguard_passes_total",
		Help: "Total number of compensation passes run.",
	})
	s.passErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "misfireguard_pass_errors_total",
		Help: "Total number of compensation passes that ended with an error.",
	})
	s.passDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "misfireguard_pass_duration_seconds",
		Help:    "Duration of each compensation pass in seconds.",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})

	s.misfiresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "misfireguard_misfires_total",
		Help: "Total number of misfired triggers compensated.",
	})
	s.misfireDelay = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "misfireguard_misfire_delay_seconds",
		Help:    "Delay between a missed fire time and its detection in seconds.",
		Buckets: []float64{30, 60, 120, 300, 600, 1200, 3600, 14400},
	})

	s.historyBatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "misfireguard_history_batches_total",
		Help: "Total number of history batch queries by outcome.",
	}, []string{"outcome"})
	s.historyBatchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "misfireguard_history_batch_size",
		Help:    "Number of pipeline IDs per history batch query.",
		Buckets: []float64{1, 5, 10, 20, 50, 100},
	})
	s.historyBatchDur = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "misfireguard_history_batch_duration_seconds",
		Help:    "History batch query latency in seconds.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	s.errorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "misfireguard_errors_total",
		Help: "Total number of errors by error type.",
	}, []string{"error_type"})

	s.snapshotPipelines = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "misfireguard_snapshot_pipelines",
		Help: "Number of pipelines in the current snapshot.",
	})

	s.register(reg, s.passesTotal, "misfireguard_passes_total")
	s.register(reg, s.passErrorsTotal, "misfireguard_pass_errors_total")
	s.register(reg, s.passDuration, "misfireguard_pass_duration_seconds")
	s.register(reg, s.misfiresTotal, "misfireguard_misfires_total")
	s.register(reg, s.misfireDelay, "misfireguard_misfire_delay_seconds")
	s.register(reg, s.historyBatchesTotal, "misfireguard_history_batches_total")
	s.register(reg, s.historyBatchSize, "misfireguard_history_batch_size")
	s.register(reg, s.historyBatchDur, "misfireguard_history_batch_duration_seconds")
	s.register(reg, s.errorsTotal, "misfireguard_errors_total")
	s.register(reg, s.snapshotPipelines, "misfireguard_snapshot_pipelines")

	return s
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Printf("metrics: failed to register %s: %v", name, err)
	}
}

func (s *PrometheusSink) PassStarted() {
	s.passesTotal.Inc()
}

func (s *PrometheusSink) PassCompleted(duration time.Duration, misfires int, err error) {
	s.passDuration.Observe(duration.Seconds())
	s.misfiresTotal.Add(float64(misfires))
	if err != nil {
		s.passErrorsTotal.Inc()
	}
}

func (s *PrometheusSink) MisfireDetected(delay time.Duration) {
	d := delay.Seconds()
	if d < 0 {
		d = 0
	}
	s.misfireDelay.Observe(d)
}

func (s *PrometheusSink) HistoryBatchCompleted(duration time.Duration, size int, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	s.historyBatchesTotal.WithLabelValues(outcome).Inc()
	s.historyBatchSize.Observe(float64(size))
	s.historyBatchDur.Observe(duration.Seconds())
}

func (s *PrometheusSink) ErrorRecorded(errorType string) {
	s.errorsTotal.WithLabelValues(errorType).Inc()
}

func (s *PrometheusSink) SnapshotSizeUpdate(count int) {
	s.snapshotPipelines.Set(float64(count))
}
