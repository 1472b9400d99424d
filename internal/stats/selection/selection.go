// Package selection chooses the working model: it fits the full factorial model,
// derives a reduced model from the Type II significance of its terms, and adopts the
// reduced model when the nested F-test finds it no worse.
package selection

import (
	"fmt"
	"math"

	"golos/domain/stats"
	"golos/internal/stats/anova"
)

// Rule derives the reduced model from the significant terms of the full model
type Rule string

const (
	// RuleFactors drops every factor that appears in no significant term and keeps the
	// full factorial of the rest.
	RuleFactors Rule = "factors"
	// RuleHierarchical keeps exactly the significant terms and their lower-order margins.
	RuleHierarchical Rule = "hierarchical"
)

// ParseRule accepts the config spelling of a rule
func ParseRule(name string) (Rule, error) {
	switch Rule(name) {
	case RuleFactors, RuleHierarchical:
		return Rule(name), nil
	case "":
		return RuleFactors, nil
	}
	return "", fmt.Errorf("unknown reduction rule %q", name)
}

// Result carries the fitted models alongside the selection snapshot
type Result struct {
	stats.Selection
	FullModel    *anova.Model `json:"-"`
	ReducedModel *anova.Model `json:"-"`
	WorkingModel *anova.Model `json:"-"`
}

// Select runs the full-versus-reduced procedure at level alpha. A reduced model that
// cannot be fitted is an error; no other term set is substituted.
func Select(frame *anova.Frame, full stats.ModelSpec, alpha float64, rule Rule) (*Result, error) {
	fullModel, err := anova.Fit(frame, full)
	if err != nil {
		return nil, fmt.Errorf("full model %s: %w", full.Formula(), err)
	}
	fullTable, err := fullModel.TypeII()
	if err != nil {
		return nil, fmt.Errorf("full model %s: %w", full.Formula(), err)
	}

	res := &Result{
		Selection: stats.Selection{
			Alpha:     alpha,
			Rule:      string(rule),
			Full:      fullModel.Snapshot(),
			FullANOVA: fullTable,
			Working:   fullModel.Snapshot(),
		},
		FullModel:    fullModel,
		WorkingModel: fullModel,
	}

	var keep []stats.Term
	for i, row := range fullTable.Rows {
		if !math.IsNaN(row.PValue) && row.PValue < alpha {
			keep = append(keep, full.Terms[i])
			res.Significant = append(res.Significant, row.Term)
		}
	}

	reduced := Reduce(full, keep, rule)
	if len(reduced.Terms) == len(full.Terms) {
		return res, nil
	}
	for _, f := range full.Factors {
		if !reduced.HasFactor(f) {
			res.DroppedFactors = append(res.DroppedFactors, f)
		}
	}
	for _, t := range full.Terms {
		if !reduced.HasTerm(t) {
			res.DroppedTerms = append(res.DroppedTerms, t.Name())
		}
	}

	reducedModel, err := anova.Fit(frame, reduced)
	if err != nil {
		return nil, fmt.Errorf("reduced model %s: %w", reduced.Formula(), err)
	}
	reducedTable, err := reducedModel.TypeII()
	if err != nil {
		return nil, fmt.Errorf("reduced model %s: %w", reduced.Formula(), err)
	}
	cmp, err := anova.CompareNested(fullModel, reducedModel)
	if err != nil {
		return nil, err
	}

	res.ReducedModel = reducedModel
	res.Reduced = reducedModel.Snapshot()
	res.ReducedANOVA = &reducedTable
	res.Comparison = &cmp
	if cmp.PValue >= alpha {
		res.AdoptedReduced = true
		res.Working = reducedModel.Snapshot()
		res.WorkingModel = reducedModel
	}
	return res, nil
}

// Reduce builds the candidate reduced model from the significant terms of full
func Reduce(full stats.ModelSpec, significant []stats.Term, rule Rule) stats.ModelSpec {
	if rule == RuleHierarchical {
		return stats.Hierarchical(full.Response, full.Factors, significant)
	}
	var factors []string
	for _, f := range full.Factors {
		for _, t := range significant {
			if t.Contains(stats.Term{f}) {
				factors = append(factors, f)
				break
			}
		}
	}
	return stats.FullFactorial(full.Response, factors...)
}
