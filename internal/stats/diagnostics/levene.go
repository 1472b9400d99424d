package diagnostics

import (
	"math"

	"golos/domain/core"
	"golos/internal/stats/dist"

	"github.com/montanaflynn/stats"
)

// BrownForsythe is Levene's test with median centring: a one-way ANOVA F on the
// absolute deviations of each value from its group median.
func BrownForsythe(groups [][]float64) (f float64, df1, df2 int, p float64, err error) {
	k := len(groups)
	total := 0
	for _, g := range groups {
		total += len(g)
	}
	if k < 2 {
		return math.NaN(), 0, 0, math.NaN(), core.NewInsufficientDataError("brown-forsythe groups", k, 2)
	}
	if total <= k {
		return math.NaN(), 0, 0, math.NaN(), core.NewInsufficientDataError("brown-forsythe observations", total, k+1)
	}

	deviations := make([][]float64, k)
	groupMeans := make([]float64, k)
	grand := 0.0
	for j, g := range groups {
		if len(g) == 0 {
			return math.NaN(), 0, 0, math.NaN(), core.NewInsufficientDataError("brown-forsythe group size", 0, 1)
		}
		median, err := stats.Median(g)
		if err != nil {
			return math.NaN(), 0, 0, math.NaN(), err
		}
		z := make([]float64, len(g))
		for i, v := range g {
			z[i] = math.Abs(v - median)
			grand += z[i]
		}
		deviations[j] = z
		groupMeans[j], _ = stats.Mean(z)
	}
	grand /= float64(total)

	between, within := 0.0, 0.0
	for j, z := range deviations {
		d := groupMeans[j] - grand
		between += float64(len(z)) * d * d
		for _, v := range z {
			e := v - groupMeans[j]
			within += e * e
		}
	}

	df1, df2 = k-1, total-k
	switch {
	case within > 0:
		f = (between / float64(df1)) / (within / float64(df2))
		p = dist.FTestPValue(f, df1, df2)
	case between > 0:
		f, p = math.Inf(1), 0
	default:
		f, p = 0, 1
	}
	return f, df1, df2, p, nil
}
