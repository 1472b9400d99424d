// Package diagnostics checks the normality and equal-variance assumptions of a fitted
// factorial model.
package diagnostics

import (
	"golos/domain/stats"
	"golos/internal/stats/anova"
)

const (
	MethodShapiroWilk   = "Shapiro-Wilk"
	MethodBrownForsythe = "Brown-Forsythe (median-centred Levene)"
)

// Diagnose tests the residuals of m for normality and the cells of its full factor
// cross for equal variance. A violated assumption is a result, not an error.
func Diagnose(m *anova.Model, alpha float64) (stats.Diagnostics, error) {
	snap := m.Snapshot()
	res := stats.Diagnostics{Alpha: alpha}

	w, p, err := ShapiroWilk(snap.Residuals)
	if err != nil {
		return res, err
	}
	res.Normality = stats.NormalityResult{
		Method:         MethodShapiroWilk,
		N:              len(snap.Residuals),
		Statistic:      w,
		PValue:         p,
		Skewness:       Skewness(snap.Residuals),
		ExcessKurtosis: ExcessKurtosis(snap.Residuals),
		Fails:          p < alpha,
	}

	cells, keys := m.Frame().Cells(snap.Spec.Factors)
	groups := make([][]float64, len(keys))
	for i, k := range keys {
		for _, obs := range cells[k] {
			groups[i] = append(groups[i], snap.Residuals[obs])
		}
	}
	f, df1, df2, pv, err := BrownForsythe(groups)
	if err != nil {
		return res, err
	}
	res.Homogeneity = stats.HomogeneityResult{
		Method:    MethodBrownForsythe,
		Groups:    len(groups),
		DF1:       df1,
		DF2:       df2,
		Statistic: f,
		PValue:    pv,
		Unequal:   pv < alpha,
	}

	res.NeedsTransformation = res.Normality.Fails || res.Homogeneity.Unequal
	return res, nil
}
