package metrics

import (
	"fmt"
	"io"
	"time"

	"golos/domain/clinical"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

const (
	// OutcomeSuccess labels pipeline runs that produced a working model.
	OutcomeSuccess = "success"
	// OutcomeError labels runs that stopped on a fatal error.
	OutcomeError = "error"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "golos",
			Name:      "pipeline_runs_total",
			Help:      "Total number of pipeline runs, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	stageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "golos",
			Name:      "stage_seconds",
			Help:      "Pipeline stage latency in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"stage"},
	)

	rowsExcludedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "golos",
			Name:      "rows_excluded_total",
			Help:      "Source rows excluded during derivation, partitioned by reason.",
		},
		[]string{"reason"},
	)

	rowsRetained = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "golos",
			Name:      "rows_retained",
			Help:      "Records retained for modelling by the most recent run.",
		},
	)
)

// Register attaches golos collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		runsTotal,
		stageDurationSeconds,
		rowsExcludedTotal,
		rowsRetained,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveStage records how long one pipeline stage took
func ObserveStage(stage string, duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	stageDurationSeconds.WithLabelValues(stage).Observe(duration.Seconds())
}

// ObserveRun counts a finished run under its outcome label
func ObserveRun(outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	runsTotal.WithLabelValues(label).Inc()
}

// ObserveDataset records the exclusion tally and retained size of a filtered dataset
func ObserveDataset(ds *clinical.Dataset) {
	for reason, n := range ds.ExclusionCounts() {
		rowsExcludedTotal.WithLabelValues(string(reason)).Add(float64(n))
	}
	rowsRetained.Set(float64(ds.Len()))
}

// WriteText dumps every metric family of g in the Prometheus text exposition format
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
