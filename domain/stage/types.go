// Package stage records the execution of the analysis pipeline one stage at a time.
package stage

import (
	"time"

	"golos/domain/core"
)

// StageName represents a named stage in the pipeline
type StageName string

// Pipeline stages in execution order
const (
	StageIngest      StageName = "ingest"
	StagePrepare     StageName = "prepare"
	StageSummarize   StageName = "summarize"
	StageDiagnostics StageName = "diagnostics"
	StageTransform   StageName = "transform"
	StageSelect      StageName = "select"
	StagePostHoc     StageName = "posthoc"
)

// Order lists every stage in the order the pipeline runs them
var Order = []StageName{
	StageIngest, StagePrepare, StageSummarize, StageDiagnostics, StageTransform, StageSelect, StagePostHoc,
}

// StageResult represents the outcome of one stage execution
type StageResult struct {
	StageName StageName `json:"stage_name"`
	Success   bool      `json:"success"`
	Warnings  []string  `json:"warnings,omitempty"`
	Error     string    `json:"error,omitempty"`
	Duration  int64     `json:"duration_ms"` // milliseconds
}

// Trace is the ordered log of the stages one run executed
type Trace struct {
	RunID     core.RunID      `json:"run_id"`
	StartedAt time.Time       `json:"started_at"`
	Results   []StageResult   `json:"results"`
	Overall   PipelineSummary `json:"overall"`
}

// PipelineSummary provides high-level pipeline statistics
type PipelineSummary struct {
	TotalStages   int   `json:"total_stages"`
	Successful    int   `json:"successful"`
	Failed        int   `json:"failed"`
	TotalDuration int64 `json:"total_duration_ms"`
	Warnings      int   `json:"warnings"`
}

// NewTrace starts an empty trace for runID
func NewTrace(runID core.RunID, startedAt time.Time) *Trace {
	return &Trace{RunID: runID, StartedAt: startedAt, Results: make([]StageResult, 0, len(Order))}
}

// AddResult adds a stage result and updates summary
func (t *Trace) AddResult(result StageResult) {
	t.Results = append(t.Results, result)
	t.Overall.TotalStages++

	if result.Success {
		t.Overall.Successful++
	} else {
		t.Overall.Failed++
	}

	t.Overall.TotalDuration += result.Duration
	t.Overall.Warnings += len(result.Warnings)
}

// Success returns true if all stages succeeded
func (t *Trace) Success() bool {
	return t.Overall.Failed == 0
}

// Result looks up the outcome of a stage
func (t *Trace) Result(name StageName) (StageResult, bool) {
	for _, r := range t.Results {
		if r.StageName == name {
			return r, true
		}
	}
	return StageResult{}, false
}
