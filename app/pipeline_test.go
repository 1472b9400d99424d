package app

import (
	"bytes"
	"context"
	"errors"
	"log"
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golos/adapters/excel"
	"golos/domain/clinical"
	"golos/domain/core"
	"golos/domain/stage"
	"golos/domain/stats"
	"golos/internal"
	"golos/internal/cohort"
	"golos/internal/stats/anova"
	"golos/internal/testkit"
)

func TestRunDefaultCohort(t *testing.T) {
	p := NewPipeline(testkit.Config())
	res, err := p.Run(context.Background(), testkit.Table(t))
	require.NoError(t, err)

	assert.Equal(t, 100, res.RawRows)
	assert.Equal(t, 100, res.Dataset.Len())
	assert.False(t, res.RunID == "")

	assert.Equal(t, 16, len(res.CrossTab.Cells))
	assert.Equal(t, 0, res.CrossTab.EmptyCells)
	assert.False(t, res.CrossTab.Balanced)

	assert.Equal(t, 100, res.Diagnostics.Normality.N)
	assert.Equal(t, 16, res.Diagnostics.Homogeneity.Groups)
	assert.Len(t, res.BoxCox.Grid, 41)

	full := res.Selection.Full
	require.NotNil(t, full)
	assert.Equal(t, 16, full.Rank)
	assert.Equal(t, 84, full.DFResidual)
	assert.Equal(t, stats.SSTypeII, res.Selection.FullANOVA.Type)
	assert.Len(t, res.Selection.FullANOVA.Rows, 7)

	if cmp := res.Selection.Comparison; cmp != nil {
		assert.Equal(t, full.Rank-res.Selection.Reduced.Rank, cmp.DF1)
		assert.Equal(t, full.DFResidual, cmp.DF2)
		assert.InDelta(t, cmp.ReducedAIC-cmp.FullAIC, cmp.DeltaAIC, 1e-9)
		assert.Equal(t, cmp.PValue >= res.Selection.Alpha, res.Selection.AdoptedReduced)
	}

	// The age effect is large enough that age_group always survives
	marginal := res.PostHoc.Marginal
	require.NotNil(t, marginal)
	assert.Empty(t, res.PostHoc.Skipped)
	assert.Len(t, marginal.Means, 4)
	assert.Len(t, marginal.Comparisons, 6)
	for _, m := range marginal.Means {
		assert.InDelta(t, res.Transformation.Inverse(m.Estimate), m.ResponseScale, 1e-12)
	}
	for _, c := range marginal.Comparisons {
		assert.GreaterOrEqual(t, c.PAdjust, 0.0)
		assert.LessOrEqual(t, c.PAdjust, 1.0)
		assert.Less(t, c.CILower, c.CIUpper)
	}
	assert.Len(t, res.PostHoc.Stratified, 2)

	assert.True(t, res.Trace.Success())
	assert.Equal(t, len(stage.Order)-1, res.Trace.Overall.TotalStages)
	_, ingested := res.Trace.Result(stage.StageIngest)
	assert.False(t, ingested)
}

func TestRunIsDeterministic(t *testing.T) {
	p := NewPipeline(testkit.Config())
	a, err := p.Run(context.Background(), testkit.Table(t))
	require.NoError(t, err)
	b, err := p.Run(context.Background(), testkit.Table(t))
	require.NoError(t, err)

	assert.NotEqual(t, a.RunID, b.RunID)
	assert.Equal(t, a.BoxCox.Best, b.BoxCox.Best)
	assert.Equal(t, a.Transformation, b.Transformation)
	assert.Equal(t, a.Selection.WorkingFormula(), b.Selection.WorkingFormula())
	assert.Equal(t, a.PostHoc.Marginal.Comparisons, b.PostHoc.Marginal.Comparisons)
}

func TestRunExcludesDirtyRows(t *testing.T) {
	cfg := cohort.DefaultConfig()
	cfg.DirtyRows = 5

	res, err := NewPipeline(testkit.Config()).Run(context.Background(), testkit.CohortWith(t, cfg).Tabular())
	require.NoError(t, err)

	assert.Equal(t, 105, res.RawRows)
	assert.Equal(t, 100, res.Dataset.Len())
	assert.Len(t, res.Dataset.Exclusions, 5)

	prepared, ok := res.Trace.Result(stage.StagePrepare)
	require.True(t, ok)
	assert.True(t, prepared.Success)
	assert.NotEmpty(t, prepared.Warnings)
}

func TestRunFileMatchesInMemoryRun(t *testing.T) {
	ds := testkit.Cohort(t)
	p := NewPipeline(testkit.Config())

	mem, err := p.Run(context.Background(), ds.Tabular())
	require.NoError(t, err)

	for name, path := range map[string]string{
		"csv":  testkit.WriteCSV(t, ds),
		"xlsx": testkit.WriteXLSX(t, ds),
	} {
		t.Run(name, func(t *testing.T) {
			res, err := p.RunFile(context.Background(), path)
			require.NoError(t, err)
			assert.Equal(t, path, res.Source)
			assert.Equal(t, len(stage.Order), res.Trace.Overall.TotalStages)
			assert.Equal(t, mem.BoxCox.Best, res.BoxCox.Best)
			assert.Equal(t, mem.Selection.WorkingFormula(), res.Selection.WorkingFormula())
		})
	}
}

func TestRunMissingColumn(t *testing.T) {
	data := testkit.Table(t)
	data.Headers = data.Headers[:2]

	_, err := NewPipeline(testkit.Config()).Run(context.Background(), data)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrMissingColumn)
}

func TestRunFileMissingFile(t *testing.T) {
	res, err := NewPipeline(testkit.Config()).RunFile(context.Background(), "does-not-exist.csv")
	require.Error(t, err)

	ingest, ok := res.Trace.Result(stage.StageIngest)
	require.True(t, ok)
	assert.False(t, ingest.Success)
	assert.NotEmpty(t, ingest.Error)
}

func TestRunEmptyTable(t *testing.T) {
	data := &excel.TabularData{Headers: testkit.Table(t).Headers}
	_, err := NewPipeline(testkit.Config()).Run(context.Background(), data)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrEmptyDataset)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := NewPipeline(testkit.Config()).Run(ctx, testkit.Table(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, res.Trace.Success())
}

func TestRunSingleLevelFactorIsDegenerate(t *testing.T) {
	cfg := cohort.DefaultConfig()
	cfg.CellCounts[1] = [4][2]int{}

	res, err := NewPipeline(testkit.Config()).Run(context.Background(), testkit.CohortWith(t, cfg).Tabular())
	require.Error(t, err)

	var dd *core.DegenerateDesignError
	require.ErrorAs(t, err, &dd)
	assert.Equal(t, clinical.FieldSex, dd.Term)
	assert.Equal(t, 0, dd.DF)

	diag, ok := res.Trace.Result(stage.StageDiagnostics)
	require.True(t, ok)
	assert.False(t, diag.Success)
}

func TestRunRejectsUnknownRule(t *testing.T) {
	cfg := testkit.Config()
	cfg.Analysis.ReductionRule = "stepwise"

	_, err := NewPipeline(cfg).Run(context.Background(), testkit.Table(t))
	require.Error(t, err)
}

// The unbalanced 100-subject cohort supports the nested comparison of the full
// factorial against age_group*cardiac_history.
func TestNestedComparisonOnCohort(t *testing.T) {
	ds := testkit.Prepared(t, testkit.Cohort(t))
	require.Equal(t, 100, ds.Len())

	frame, err := anova.FromDataset(ds, ds.LengthsOfStay(), ModelFactors...)
	require.NoError(t, err)

	full, err := anova.Fit(frame, stats.FullFactorial(clinical.FieldLengthOfStay, ModelFactors...))
	require.NoError(t, err)
	reduced, err := anova.Fit(frame, stats.FullFactorial(clinical.FieldLengthOfStay, clinical.FieldAgeGroup, clinical.FieldCardiacHistory))
	require.NoError(t, err)

	cmp, err := anova.CompareNested(full, reduced)
	require.NoError(t, err)
	assert.Equal(t, 8, cmp.DF1)
	assert.Equal(t, 84, cmp.DF2)
	assert.False(t, math.IsNaN(cmp.F))
	assert.False(t, math.IsInf(cmp.DeltaAIC, 0))
	assert.InDelta(t, reduced.Snapshot().AIC-full.Snapshot().AIC, cmp.DeltaAIC, 1e-9)
}

func TestPipelineLoggersFollowConfiguredLevel(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	path := testkit.WriteCSV(t, testkit.Cohort(t))

	quiet := testkit.Config()
	_, err := NewPipeline(quiet).RunFile(context.Background(), path)
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "[INFO]")

	verbose := testkit.Config()
	verbose.Logging.Level = "DEBUG"
	p := NewPipeline(verbose)
	_, err = p.RunFile(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "[INFO] [DataReader]")
	assert.Contains(t, buf.String(), "[DEBUG] [Derivation] derived 100 records")
	assert.Contains(t, buf.String(), "[DEBUG] [Pipeline]")
	assert.Equal(t, internal.LogLevelDebug, p.Logger().GetLevel())
}
