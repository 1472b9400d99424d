package metrics

import (
	"bytes"
	"testing"
	"time"

	"golos/domain/clinical"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func value(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, m.Write(&out))
	switch {
	case out.Counter != nil:
		return out.Counter.GetValue()
	case out.Gauge != nil:
		return out.Gauge.GetValue()
	}
	t.Fatalf("unsupported metric %v", m.Desc())
	return 0
}

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	require.NoError(t, Register(reg))
}

func TestObserveRunNormalisesOutcome(t *testing.T) {
	before := value(t, runsTotal.WithLabelValues(OutcomeSuccess))
	ObserveRun("anything")
	ObserveRun(OutcomeSuccess)
	assert.Equal(t, before+2, value(t, runsTotal.WithLabelValues(OutcomeSuccess)))

	beforeErr := value(t, runsTotal.WithLabelValues(OutcomeError))
	ObserveRun(OutcomeError)
	assert.Equal(t, beforeErr+1, value(t, runsTotal.WithLabelValues(OutcomeError)))
}

func TestObserveDataset(t *testing.T) {
	reason := string(clinical.ExcludedNegativeStay)
	before := value(t, rowsExcludedTotal.WithLabelValues(reason))

	ObserveDataset(&clinical.Dataset{
		Records: make([]clinical.Record, 7),
		Exclusions: []clinical.Exclusion{
			{Reason: clinical.ExcludedNegativeStay},
			{Reason: clinical.ExcludedNegativeStay},
		},
	})

	assert.Equal(t, before+2, value(t, rowsExcludedTotal.WithLabelValues(reason)))
	assert.Equal(t, 7.0, value(t, rowsRetained))
}

func TestWriteText(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	ObserveStage("ingest", 3*time.Millisecond)
	ObserveStage("ingest", -time.Second)
	ObserveRun(OutcomeSuccess)

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, reg))
	out := buf.String()
	assert.Contains(t, out, "# TYPE golos_stage_seconds histogram")
	assert.Contains(t, out, `golos_stage_seconds_count{stage="ingest"}`)
	assert.Contains(t, out, `golos_pipeline_runs_total{outcome="success"}`)
}
