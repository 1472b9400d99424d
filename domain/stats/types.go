// Package stats defines the immutable result snapshots produced by each analysis stage.
package stats

import (
	"gonum.org/v1/gonum/mat"
)

// Coefficient is one estimated model parameter
type Coefficient struct {
	Name     string  `json:"name"`
	Estimate float64 `json:"estimate"`
	StdError float64 `json:"std_error"`
	TValue   float64 `json:"t_value"`
	PValue   float64 `json:"p_value"`
}

// FitSnapshot is an ordinary least-squares fit of one spec to one dataset snapshot
type FitSnapshot struct {
	Spec         ModelSpec     `json:"spec"`
	N            int           `json:"n"`
	Rank         int           `json:"rank"` // estimated parameters including the intercept
	DFResidual   int           `json:"df_residual"`
	RSS          float64       `json:"rss"`
	Sigma        float64       `json:"sigma"`
	LogLik       float64       `json:"log_likelihood"`
	AIC          float64       `json:"aic"`
	BIC          float64       `json:"bic"`
	Coefficients []Coefficient `json:"coefficients"`
	Fitted       []float64     `json:"-"`
	Residuals    []float64     `json:"-"`
	// ColumnTerms maps each design column to the index of its term in Spec.Terms,
	// -1 for the intercept.
	ColumnTerms []int `json:"-"`
	// Covariance is sigma^2 (X'X)^-1
	Covariance *mat.SymDense `json:"-"`
}

// SSType names a sum-of-squares decomposition
type SSType string

const (
	SSTypeI  SSType = "I"
	SSTypeII SSType = "II"
)

// ANOVARow is one term of an ANOVA table
type ANOVARow struct {
	Term   string  `json:"term"`
	SumSq  float64 `json:"sum_sq"`
	DF     int     `json:"df"`
	MeanSq float64 `json:"mean_sq"`
	F      float64 `json:"f"`
	PValue float64 `json:"p_value"`
}

// ANOVATable decomposes a fit into per-term sums of squares
type ANOVATable struct {
	Type       SSType     `json:"type"`
	Formula    string     `json:"formula"`
	Rows       []ANOVARow `json:"rows"`
	Residual   ANOVARow   `json:"residual"`
	TotalN     int        `json:"total_n"`
	DFResidual int        `json:"df_residual"`
}

// Row looks up a term by name
func (t *ANOVATable) Row(term string) (ANOVARow, bool) {
	for _, r := range t.Rows {
		if r.Term == term {
			return r, true
		}
	}
	return ANOVARow{}, false
}

// NormalityResult is a Shapiro-Wilk test on model residuals
type NormalityResult struct {
	Method         string  `json:"method"`
	N              int     `json:"n"`
	Statistic      float64 `json:"statistic"`
	PValue         float64 `json:"p_value"`
	Skewness       float64 `json:"skewness"`
	ExcessKurtosis float64 `json:"excess_kurtosis"`
	Fails          bool    `json:"fails"`
}

// HomogeneityResult is a Levene-type test of equal variance across cells
type HomogeneityResult struct {
	Method    string  `json:"method"`
	Groups    int     `json:"groups"`
	DF1       int     `json:"df1"`
	DF2       int     `json:"df2"`
	Statistic float64 `json:"statistic"`
	PValue    float64 `json:"p_value"`
	Unequal   bool    `json:"unequal"`
}

// Diagnostics bundles the assumption checks on the raw-response full model
type Diagnostics struct {
	Alpha               float64           `json:"alpha"`
	Normality           NormalityResult   `json:"normality"`
	Homogeneity         HomogeneityResult `json:"homogeneity"`
	NeedsTransformation bool              `json:"needs_transformation"`
}

// LambdaPoint is one Box-Cox grid evaluation
type LambdaPoint struct {
	Lambda float64 `json:"lambda"`
	LogLik float64 `json:"log_likelihood"`
}

// BoxCoxResult is the outcome of the λ grid search
type BoxCoxResult struct {
	Grid           []LambdaPoint  `json:"grid"`
	Best           LambdaPoint    `json:"best"`
	CILower        float64        `json:"ci_lower"`
	CIUpper        float64        `json:"ci_upper"`
	ZeroInCI       bool           `json:"zero_in_ci"`
	Tolerance      float64        `json:"tolerance"`
	Transformation Transformation `json:"transformation"`
}

// ModelEvidence labels an information-criterion difference
type ModelEvidence string

const (
	EvidenceStrong     ModelEvidence = "strong"
	EvidenceNotable    ModelEvidence = "notable"
	EvidenceNegligible ModelEvidence = "negligible"
)

// ClassifyDelta labels |delta| against the conventional thresholds 10 and 2
func ClassifyDelta(delta float64) ModelEvidence {
	if delta < 0 {
		delta = -delta
	}
	switch {
	case delta > 10:
		return EvidenceStrong
	case delta > 2:
		return EvidenceNotable
	}
	return EvidenceNegligible
}

// NestedComparison is an incremental-SS F-test between a full and a reduced fit.
// Deltas are reduced minus full.
type NestedComparison struct {
	FullFormula    string        `json:"full_formula"`
	ReducedFormula string        `json:"reduced_formula"`
	DF1            int           `json:"df1"`
	DF2            int           `json:"df2"`
	SumSq          float64       `json:"sum_sq"`
	F              float64       `json:"f"`
	PValue         float64       `json:"p_value"`
	FullAIC        float64       `json:"full_aic"`
	ReducedAIC     float64       `json:"reduced_aic"`
	FullBIC        float64       `json:"full_bic"`
	ReducedBIC     float64       `json:"reduced_bic"`
	DeltaAIC       float64       `json:"delta_aic"`
	DeltaBIC       float64       `json:"delta_bic"`
	AICEvidence    ModelEvidence `json:"aic_evidence"`
	BICEvidence    ModelEvidence `json:"bic_evidence"`
}

// Selection is the chosen working model and the evidence behind it
type Selection struct {
	Alpha          float64           `json:"alpha"`
	Rule           string            `json:"rule"`
	Full           *FitSnapshot      `json:"-"`
	FullANOVA      ANOVATable        `json:"full_anova"`
	Significant    []string          `json:"significant_terms"`
	DroppedFactors []string          `json:"dropped_factors"`
	DroppedTerms   []string          `json:"dropped_terms"`
	Reduced        *FitSnapshot      `json:"-"`
	ReducedANOVA   *ANOVATable       `json:"reduced_anova,omitempty"`
	Comparison     *NestedComparison `json:"comparison,omitempty"`
	AdoptedReduced bool              `json:"adopted_reduced"`
	Working        *FitSnapshot      `json:"-"`
}

// WorkingFormula is the formula of the model carried into post-hoc analysis
func (s *Selection) WorkingFormula() string {
	if s.Working == nil {
		return ""
	}
	return s.Working.Spec.Formula()
}

// PairwiseComparison is one Tukey-adjusted difference of estimated marginal means
type PairwiseComparison struct {
	Stratum  string  `json:"stratum,omitempty"`
	LevelA   string  `json:"level_a"`
	LevelB   string  `json:"level_b"`
	Estimate float64 `json:"estimate"`
	StdError float64 `json:"std_error"`
	DF       int     `json:"df"`
	CILower  float64 `json:"ci_lower"`
	CIUpper  float64 `json:"ci_upper"`
	PAdjust  float64 `json:"p_adjusted"`
}

// MarginalMean is an estimated marginal mean of one factor level
type MarginalMean struct {
	Stratum  string  `json:"stratum,omitempty"`
	Level    string  `json:"level"`
	Estimate float64 `json:"estimate"`
	StdError float64 `json:"std_error"`
	// ResponseScale is Estimate mapped back through the working transformation
	ResponseScale float64 `json:"response_scale"`
}

// PostHocFamily is one Tukey family: all pairs of a factor, optionally within a stratum
type PostHocFamily struct {
	Factor      string               `json:"factor"`
	By          string               `json:"by,omitempty"`
	Stratum     string               `json:"stratum,omitempty"`
	Confidence  float64              `json:"confidence"`
	Means       []MarginalMean       `json:"means"`
	Comparisons []PairwiseComparison `json:"comparisons"`
}
