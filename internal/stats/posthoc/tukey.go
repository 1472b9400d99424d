// Package posthoc compares the levels of one factor of a fitted model through
// Tukey-adjusted differences of estimated marginal means.
package posthoc

import (
	"fmt"
	"math"

	"golos/domain/core"
	"golos/domain/stats"
	"golos/internal/stats/anova"
	"golos/internal/stats/dist"

	"gonum.org/v1/gonum/mat"
)

// contrast is one pairwise difference before it leaves the package. The raw p-value
// stays inside the package for comparison against the adjusted one.
type contrast struct {
	stats.PairwiseComparison
	rawP float64
}

// Marginal compares every pair of levels of factor averaged over the other factors of
// the model. The family shares one Tukey adjustment.
func Marginal(m *anova.Model, factor string, confidence float64) (stats.PostHocFamily, error) {
	if err := check(m, factor, confidence); err != nil {
		return stats.PostHocFamily{}, err
	}
	family, _ := tukeyFamily(m, factor, "", -1, confidence)
	return family, nil
}

// Stratified runs one Tukey family per level of by
func Stratified(m *anova.Model, factor, by string, confidence float64) ([]stats.PostHocFamily, error) {
	if err := check(m, factor, confidence); err != nil {
		return nil, err
	}
	if factor == by {
		return nil, fmt.Errorf("posthoc: cannot stratify %s by itself", factor)
	}
	if !m.Spec().HasFactor(by) {
		return nil, fmt.Errorf("%w: %s", core.ErrFactorNotInModel, by)
	}

	strata, _ := m.Frame().Factor(by)
	families := make([]stats.PostHocFamily, 0, len(strata.Levels))
	for code := range strata.Levels {
		family, _ := tukeyFamily(m, factor, by, code, confidence)
		families = append(families, family)
	}
	return families, nil
}

func check(m *anova.Model, factor string, confidence float64) error {
	if confidence <= 0 || confidence >= 1 {
		return fmt.Errorf("posthoc: confidence level must be in (0,1), got %g", confidence)
	}
	if !m.Spec().HasFactor(factor) {
		return fmt.Errorf("%w: %s", core.ErrFactorNotInModel, factor)
	}
	return nil
}

// tukeyFamily builds the marginal means of factor, at stratum code of by when by is
// set, and adjusts all their pairwise differences together.
func tukeyFamily(m *anova.Model, factor, by string, stratum int, confidence float64) (stats.PostHocFamily, []contrast) {
	snap := m.Snapshot()
	fc, _ := m.Frame().Factor(factor)

	family := stats.PostHocFamily{Factor: factor, By: by, Confidence: confidence}
	fixed := map[string]int{}
	if by != "" {
		bc, _ := m.Frame().Factor(by)
		family.Stratum = bc.Levels[stratum]
		fixed[by] = stratum
	}

	beta := mat.NewVecDense(len(snap.Coefficients), m.Coefficients())
	rows := make([]*mat.VecDense, len(fc.Levels))
	for code, level := range fc.Levels {
		fixed[factor] = code
		rows[code] = referenceRow(m, fixed)
		family.Means = append(family.Means, stats.MarginalMean{
			Stratum:  family.Stratum,
			Level:    level,
			Estimate: mat.Dot(rows[code], beta),
			StdError: math.Sqrt(mat.Inner(rows[code], snap.Covariance, rows[code])),
		})
	}

	k := len(fc.Levels)
	df := snap.DFResidual
	half := dist.QTukey(confidence, k, float64(df)) / math.Sqrt2

	var raw []contrast
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			var c mat.VecDense
			c.SubVec(rows[i], rows[j])
			est := mat.Dot(&c, beta)
			se := math.Sqrt(mat.Inner(&c, snap.Covariance, &c))
			t := est / se

			pRaw := dist.TTestPValue(t, df)
			pAdj := dist.TukeyPValue(math.Abs(t)*math.Sqrt2, k, float64(df))

			cmp := contrast{
				PairwiseComparison: stats.PairwiseComparison{
					Stratum:  family.Stratum,
					LevelA:   fc.Levels[i],
					LevelB:   fc.Levels[j],
					Estimate: est,
					StdError: se,
					DF:       df,
					CILower:  est - half*se,
					CIUpper:  est + half*se,
					PAdjust:  pAdj,
				},
				rawP: pRaw,
			}
			raw = append(raw, cmp)
			family.Comparisons = append(family.Comparisons, cmp.PairwiseComparison)
		}
	}
	return family, raw
}

// referenceRow averages the design rows over every combination of the model factors
// not fixed, each combination weighted equally.
func referenceRow(m *anova.Model, fixed map[string]int) *mat.VecDense {
	var free []anova.FactorColumn
	for _, name := range m.Spec().Factors {
		if _, ok := fixed[name]; ok {
			continue
		}
		fc, _ := m.Frame().Factor(name)
		free = append(free, fc)
	}

	levels := make(map[string]int, len(fixed)+len(free))
	for k, v := range fixed {
		levels[k] = v
	}
	combo := make([]int, len(free))
	var sum *mat.VecDense
	count := 0
	for {
		for i, fc := range free {
			levels[fc.Name] = combo[i]
		}
		row := mat.NewVecDense(len(m.Coefficients()), m.DesignRow(levels))
		if sum == nil {
			sum = row
		} else {
			sum.AddVec(sum, row)
		}
		count++

		if !next(combo, free) {
			break
		}
	}
	sum.ScaleVec(1/float64(count), sum)
	return sum
}

func next(combo []int, free []anova.FactorColumn) bool {
	for i := range combo {
		combo[i]++
		if combo[i] < len(free[i].Levels) {
			return true
		}
		combo[i] = 0
	}
	return false
}
