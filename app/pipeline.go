package app

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"time"

	"golos/adapters/excel"
	"golos/domain/clinical"
	"golos/domain/core"
	"golos/domain/stage"
	"golos/domain/stats"
	"golos/internal"
	"golos/internal/config"
	"golos/internal/dataset"
	"golos/internal/errors"
	"golos/internal/metrics"
	"golos/internal/stats/anova"
	"golos/internal/stats/boxcox"
	"golos/internal/stats/diagnostics"
	"golos/internal/stats/posthoc"
	"golos/internal/stats/selection"
	"golos/internal/summary"
)

// ModelFactors are the design factors of the full model, in formula order
var ModelFactors = []string{clinical.FieldSex, clinical.FieldAgeGroup, clinical.FieldCardiacHistory}

// Pipeline runs the length-of-stay analysis from raw table to post-hoc comparisons
type Pipeline struct {
	cfg    config.Config
	base   *internal.Logger
	logger *internal.Logger
}

// PostHocResult holds the Tukey families of the working model
type PostHocResult struct {
	Marginal   *stats.PostHocFamily  `json:"marginal,omitempty"`
	Stratified []stats.PostHocFamily `json:"stratified,omitempty"`
	Skipped    string                `json:"skipped,omitempty"`
}

// Result is every snapshot one run produced
type Result struct {
	RunID          core.RunID           `json:"run_id"`
	Source         string               `json:"source,omitempty"`
	RawRows        int                  `json:"raw_rows"`
	Dataset        *clinical.Dataset    `json:"-"`
	CrossTab       summary.CrossTab     `json:"crosstab"`
	Diagnostics    stats.Diagnostics    `json:"diagnostics"`
	BoxCox         stats.BoxCoxResult   `json:"boxcox"`
	Transformation stats.Transformation `json:"transformation"`
	Selection      *selection.Result    `json:"selection"`
	PostHoc        PostHocResult        `json:"posthoc"`
	Trace          *stage.Trace         `json:"trace"`
}

// NewPipeline creates a pipeline for cfg
func NewPipeline(cfg config.Config) *Pipeline {
	base := internal.NewLogger(internal.ParseLogLevel(cfg.Logging.Level))
	return &Pipeline{
		cfg:    cfg,
		base:   base,
		logger: base.With("Pipeline"),
	}
}

// Logger is the configured logger without a component prefix, for the adapters a
// caller runs around the pipeline
func (p *Pipeline) Logger() *internal.Logger {
	return p.base
}

// RunFile reads path and runs the pipeline on its contents
func (p *Pipeline) RunFile(ctx context.Context, path string) (*Result, error) {
	res, trace := p.start()
	res.Source = path

	var data *excel.TabularData
	err := p.stage(ctx, trace, stage.StageIngest, func() ([]string, error) {
		var err error
		data, err = excel.NewDataReader(path).WithSheet(p.cfg.Data.Sheet).WithLogger(p.base).ReadData(p.cfg.Fields.Required()...)
		return nil, err
	})
	if err != nil {
		return p.fail(res, err)
	}
	return p.run(ctx, res, data)
}

// Run analyses an already ingested table
func (p *Pipeline) Run(ctx context.Context, data *excel.TabularData) (*Result, error) {
	res, _ := p.start()
	for _, col := range p.cfg.Fields.Required() {
		if !data.HasColumn(col) {
			return p.fail(res, errors.Wrap(core.NewMissingColumnError(col), "ingest"))
		}
	}
	return p.run(ctx, res, data)
}

func (p *Pipeline) start() (*Result, *stage.Trace) {
	runID := core.NewRunID()
	trace := stage.NewTrace(runID, time.Now())
	p.logger.Info("run %s started", runID)
	return &Result{RunID: runID, Trace: trace}, trace
}

func (p *Pipeline) run(ctx context.Context, res *Result, data *excel.TabularData) (*Result, error) {
	a := p.cfg.Analysis
	trace := res.Trace
	res.RawRows = len(data.Rows)

	err := p.stage(ctx, trace, stage.StagePrepare, func() ([]string, error) {
		res.Dataset = dataset.NewProcessor(p.cfg.Fields).WithLogger(p.base).Prepare(data)
		metrics.ObserveDataset(res.Dataset)
		if res.Dataset.Len() == 0 {
			return nil, fmt.Errorf("%w: no complete records among %d rows", core.ErrEmptyDataset, res.RawRows)
		}
		var warnings []string
		for reason, n := range res.Dataset.ExclusionCounts() {
			warnings = append(warnings, fmt.Sprintf("%d rows excluded: %s", n, reason))
		}
		sort.Strings(warnings)
		return warnings, nil
	})
	if err != nil {
		return p.fail(res, err)
	}

	err = p.stage(ctx, trace, stage.StageSummarize, func() ([]string, error) {
		tab, err := summary.Tabulate(res.Dataset, ModelFactors...)
		if err != nil {
			return nil, err
		}
		res.CrossTab = tab
		if tab.EmptyCells > 0 {
			return []string{fmt.Sprintf("%d empty cells in the factor cross", tab.EmptyCells)}, nil
		}
		return nil, nil
	})
	if err != nil {
		return p.fail(res, err)
	}

	full := stats.FullFactorial(clinical.FieldLengthOfStay, ModelFactors...)
	var frame *anova.Frame
	err = p.stage(ctx, trace, stage.StageDiagnostics, func() ([]string, error) {
		var err error
		frame, err = anova.FromDataset(res.Dataset, res.Dataset.LengthsOfStay(), ModelFactors...)
		if err != nil {
			return nil, err
		}
		raw, err := anova.Fit(frame, full)
		if err != nil {
			return nil, err
		}
		res.Diagnostics, err = diagnostics.Diagnose(raw, a.Alpha)
		if err != nil {
			return nil, err
		}
		var warnings []string
		if res.Diagnostics.Normality.Fails {
			warnings = append(warnings, fmt.Sprintf("residuals fail normality (p=%.4g)", res.Diagnostics.Normality.PValue))
		}
		if res.Diagnostics.Homogeneity.Unequal {
			warnings = append(warnings, fmt.Sprintf("cell variances unequal (p=%.4g)", res.Diagnostics.Homogeneity.PValue))
		}
		return warnings, nil
	})
	if err != nil {
		return p.fail(res, err)
	}

	var working *anova.Frame
	err = p.stage(ctx, trace, stage.StageTransform, func() ([]string, error) {
		bc, err := boxcox.Search(ctx, frame, full, boxcox.Options{
			LambdaMin: a.LambdaMin,
			LambdaMax: a.LambdaMax,
			Step:      a.LambdaStep,
			Tolerance: a.LogTolerance,
			Offset:    a.ResponseOffset,
			Workers:   a.Workers,
		})
		if err != nil {
			return nil, err
		}
		res.BoxCox = bc
		res.Transformation = boxcox.Choose(res.Diagnostics, bc)
		z, err := res.Transformation.ApplyAll(frame.Response)
		if err != nil {
			return nil, err
		}
		working, err = frame.WithResponse(z)
		p.logger.Info("lambda* = %g, working response %s", bc.Best.Lambda, res.Transformation)
		return nil, err
	})
	if err != nil {
		return p.fail(res, err)
	}

	err = p.stage(ctx, trace, stage.StageSelect, func() ([]string, error) {
		rule, err := selection.ParseRule(a.ReductionRule)
		if err != nil {
			return nil, errors.WithCode(errors.CodeConfigInvalid, err)
		}
		res.Selection, err = selection.Select(working, full, a.Alpha, rule)
		if err != nil {
			return nil, err
		}
		p.logger.Info("working model %s", res.Selection.WorkingFormula())
		return nil, nil
	})
	if err != nil {
		return p.fail(res, err)
	}

	err = p.stage(ctx, trace, stage.StagePostHoc, func() ([]string, error) {
		return p.postHoc(res)
	})
	if err != nil {
		return p.fail(res, err)
	}

	metrics.ObserveRun(metrics.OutcomeSuccess)
	p.logger.Info("run %s finished in %dms", res.RunID, trace.Overall.TotalDuration)
	return res, nil
}

// postHoc compares age groups in the working model. A factor the selection dropped
// cannot be compared; that is reported as a warning, not a failure.
func (p *Pipeline) postHoc(res *Result) ([]string, error) {
	m := res.Selection.WorkingModel
	conf := p.cfg.Analysis.ConfidenceLevel

	marginal, err := posthoc.Marginal(m, clinical.FieldAgeGroup, conf)
	if stderrors.Is(err, core.ErrFactorNotInModel) {
		res.PostHoc.Skipped = err.Error()
		return []string{"post-hoc skipped: " + err.Error()}, nil
	}
	if err != nil {
		return nil, err
	}
	p.backTransform(res, &marginal)
	res.PostHoc.Marginal = &marginal

	strata, err := posthoc.Stratified(m, clinical.FieldAgeGroup, clinical.FieldCardiacHistory, conf)
	if stderrors.Is(err, core.ErrFactorNotInModel) {
		res.PostHoc.Skipped = err.Error()
		return []string{"stratified post-hoc skipped: " + err.Error()}, nil
	}
	if err != nil {
		return nil, err
	}
	for i := range strata {
		p.backTransform(res, &strata[i])
	}
	res.PostHoc.Stratified = strata
	return nil, nil
}

func (p *Pipeline) backTransform(res *Result, family *stats.PostHocFamily) {
	for i := range family.Means {
		family.Means[i].ResponseScale = res.Transformation.Inverse(family.Means[i].Estimate)
	}
}

// stage runs fn as one named stage, recording its duration and outcome
func (p *Pipeline) stage(ctx context.Context, trace *stage.Trace, name stage.StageName, fn func() ([]string, error)) error {
	if err := ctx.Err(); err != nil {
		trace.AddResult(stage.StageResult{StageName: name, Error: err.Error()})
		return errors.Wrapf(err, "stage %s", name)
	}

	start := time.Now()
	warnings, err := fn()
	elapsed := time.Since(start)
	metrics.ObserveStage(string(name), elapsed)

	result := stage.StageResult{
		StageName: name,
		Success:   err == nil,
		Warnings:  warnings,
		Duration:  elapsed.Milliseconds(),
	}
	for _, w := range warnings {
		p.logger.Warn("%s: %s", name, w)
	}
	if err != nil {
		result.Error = err.Error()
		trace.AddResult(result)
		p.logger.Error("%s failed: %v", name, err)
		return errors.Wrapf(err, "stage %s", name)
	}
	trace.AddResult(result)
	p.logger.Debug("%s completed in %s", name, elapsed)
	return nil
}

func (p *Pipeline) fail(res *Result, err error) (*Result, error) {
	metrics.ObserveRun(metrics.OutcomeError)
	return res, err
}
