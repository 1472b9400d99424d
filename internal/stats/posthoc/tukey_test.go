package posthoc

import (
	"math"
	"testing"

	"golos/domain/core"
	"golos/domain/stats"
	"golos/internal/stats/anova"
	"golos/internal/stats/dist"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ageLevels = []string{"<50", "50-65", "65-80", "80+"}

// ageCardiacFrame is an unbalanced 4x2 layout with a deterministic spread per cell
func ageCardiacFrame(t *testing.T) *anova.Frame {
	t.Helper()
	counts := [4][2]int{{9, 3}, {6, 5}, {4, 8}, {3, 7}}
	spread := []float64{-0.6, 0.4, 0.1, -0.2, 0.5, -0.3, 0.2, 0.0, -0.1}
	var y []float64
	var age, cardiac []int
	for g := 0; g < 4; g++ {
		for c := 0; c < 2; c++ {
			for r := 0; r < counts[g][c]; r++ {
				y = append(y, 1.2+0.3*float64(g)+0.5*float64(c)+0.1*float64(g*c)+spread[r])
				age, cardiac = append(age, g), append(cardiac, c)
			}
		}
	}
	frame, err := anova.NewFrame(y,
		anova.FactorColumn{Name: "age_group", Levels: ageLevels, Codes: age},
		anova.FactorColumn{Name: "cardiac_history", Levels: []string{"0", "1"}, Codes: cardiac},
	)
	require.NoError(t, err)
	return frame
}

func TestMarginalOneWayMatchesGroupMeans(t *testing.T) {
	frame, err := anova.NewFrame(
		[]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		anova.FactorColumn{Name: "g", Levels: []string{"a", "b", "c"}, Codes: []int{0, 0, 0, 1, 1, 1, 2, 2, 2, 2}},
	)
	require.NoError(t, err)
	m, err := anova.Fit(frame, stats.FullFactorial("y", "g"))
	require.NoError(t, err)

	family, err := Marginal(m, "g", 0.95)
	require.NoError(t, err)

	require.Len(t, family.Means, 3)
	assert.InDelta(t, 2.0, family.Means[0].Estimate, 1e-9)
	assert.InDelta(t, 5.0, family.Means[1].Estimate, 1e-9)
	assert.InDelta(t, 8.5, family.Means[2].Estimate, 1e-9)

	require.Len(t, family.Comparisons, 3)
	sigma := m.Snapshot().Sigma
	ab := family.Comparisons[0]
	assert.Equal(t, "a", ab.LevelA)
	assert.Equal(t, "b", ab.LevelB)
	assert.InDelta(t, -3.0, ab.Estimate, 1e-9)
	assert.InDelta(t, sigma*math.Sqrt(2.0/3), ab.StdError, 1e-9)
	assert.Equal(t, 7, ab.DF)

	ac := family.Comparisons[1]
	assert.InDelta(t, -6.5, ac.Estimate, 1e-9)
	assert.InDelta(t, sigma*math.Sqrt(1.0/3+1.0/4), ac.StdError, 1e-9)
}

func TestAdjustedPValuesAreConservative(t *testing.T) {
	m, err := anova.Fit(ageCardiacFrame(t), stats.FullFactorial("y", "age_group", "cardiac_history"))
	require.NoError(t, err)

	_, marginal := tukeyFamily(m, "age_group", "", -1, 0.95)
	require.Len(t, marginal, 6)
	for _, c := range marginal {
		assert.GreaterOrEqual(t, c.PAdjust+1e-9, c.rawP, "%s vs %s", c.LevelA, c.LevelB)
		assert.LessOrEqual(t, c.PAdjust, 1.0)
	}

	for code := range []string{"0", "1"} {
		_, within := tukeyFamily(m, "age_group", "cardiac_history", code, 0.95)
		for _, c := range within {
			assert.GreaterOrEqual(t, c.PAdjust+1e-9, c.rawP)
		}
	}
}

func TestTukeyIntervalIsWiderThanUnadjusted(t *testing.T) {
	m, err := anova.Fit(ageCardiacFrame(t), stats.FullFactorial("y", "age_group", "cardiac_history"))
	require.NoError(t, err)

	family, err := Marginal(m, "age_group", 0.95)
	require.NoError(t, err)

	tCrit := dist.TQuantile(0.975, m.Snapshot().DFResidual)
	for _, c := range family.Comparisons {
		assert.Less(t, c.CILower, c.Estimate)
		assert.Greater(t, c.CIUpper, c.Estimate)
		assert.Greater(t, (c.CIUpper-c.CILower)/2, tCrit*c.StdError)
	}
}

func TestTwoLevelFamilyAdjustmentIsExact(t *testing.T) {
	m, err := anova.Fit(ageCardiacFrame(t), stats.FullFactorial("y", "age_group", "cardiac_history"))
	require.NoError(t, err)

	_, raw := tukeyFamily(m, "cardiac_history", "", -1, 0.95)
	require.Len(t, raw, 1)
	assert.InDelta(t, raw[0].rawP, raw[0].PAdjust, 1e-6)

	tCrit := dist.TQuantile(0.975, m.Snapshot().DFResidual)
	assert.InDelta(t, tCrit*raw[0].StdError, raw[0].CIUpper-raw[0].Estimate, 1e-4)
}

func TestStratifiedFamilies(t *testing.T) {
	m, err := anova.Fit(ageCardiacFrame(t), stats.FullFactorial("y", "age_group", "cardiac_history"))
	require.NoError(t, err)

	families, err := Stratified(m, "age_group", "cardiac_history", 0.95)
	require.NoError(t, err)
	require.Len(t, families, 2)

	for i, family := range families {
		assert.Equal(t, "cardiac_history", family.By)
		assert.Equal(t, []string{"0", "1"}[i], family.Stratum)
		assert.Len(t, family.Comparisons, 6)
		for _, c := range family.Comparisons {
			assert.Equal(t, family.Stratum, c.Stratum)
		}
	}

	// with the interaction in the model the strata differ
	assert.NotEqual(t, families[0].Comparisons[0].Estimate, families[1].Comparisons[0].Estimate)
}

func TestSaturatedStratumMeansAreCellMeans(t *testing.T) {
	frame := ageCardiacFrame(t)
	m, err := anova.Fit(frame, stats.FullFactorial("y", "age_group", "cardiac_history"))
	require.NoError(t, err)

	families, err := Stratified(m, "age_group", "cardiac_history", 0.95)
	require.NoError(t, err)

	cells, _ := frame.Cells([]string{"age_group", "cardiac_history"})
	for _, family := range families {
		for _, mean := range family.Means {
			obs := cells[mean.Level+" / "+family.Stratum]
			want := 0.0
			for _, i := range obs {
				want += frame.Response[i]
			}
			want /= float64(len(obs))
			assert.InDelta(t, want, mean.Estimate, 1e-9)
		}
	}
}

func TestFactorMustBeInModel(t *testing.T) {
	m, err := anova.Fit(ageCardiacFrame(t), stats.FullFactorial("y", "cardiac_history"))
	require.NoError(t, err)

	_, err = Marginal(m, "age_group", 0.95)
	assert.ErrorIs(t, err, core.ErrFactorNotInModel)

	_, err = Stratified(m, "cardiac_history", "age_group", 0.95)
	assert.ErrorIs(t, err, core.ErrFactorNotInModel)
}

func TestConfidenceLevelValidated(t *testing.T) {
	m, err := anova.Fit(ageCardiacFrame(t), stats.FullFactorial("y", "age_group"))
	require.NoError(t, err)

	_, err = Marginal(m, "age_group", 1.5)
	assert.Error(t, err)
}

// PlantGrowth weights with R's TukeyHSD(aov(weight ~ group)) p adj values
func TestMarginalMatchesTukeyHSD(t *testing.T) {
	weights := []float64{
		4.17, 5.58, 5.18, 6.11, 4.50, 4.61, 5.17, 4.53, 5.33, 5.14,
		4.81, 4.17, 4.41, 3.59, 5.87, 3.83, 6.03, 4.89, 4.32, 4.69,
		6.31, 5.12, 5.54, 5.50, 5.37, 5.29, 4.92, 6.15, 5.80, 5.26,
	}
	codes := make([]int, len(weights))
	for i := range codes {
		codes[i] = i / 10
	}
	frame, err := anova.NewFrame(weights, anova.FactorColumn{Name: "group", Levels: []string{"ctrl", "trt1", "trt2"}, Codes: codes})
	require.NoError(t, err)
	m, err := anova.Fit(frame, stats.FullFactorial("weight", "group"))
	require.NoError(t, err)

	family, raw := tukeyFamily(m, "group", "", -1, 0.95)
	want := []struct {
		a, b     string
		estimate float64
		p        float64
	}{
		{"ctrl", "trt1", 0.371, 0.3908711},
		{"ctrl", "trt2", -0.494, 0.1979960},
		{"trt1", "trt2", -0.865, 0.0120064},
	}
	require.Len(t, family.Comparisons, len(want))
	for i, w := range want {
		c := family.Comparisons[i]
		assert.Equal(t, w.a, c.LevelA)
		assert.Equal(t, w.b, c.LevelB)
		assert.InDelta(t, w.estimate, c.Estimate, 1e-9)
		assert.InDelta(t, w.p, c.PAdjust, 1e-5, "%s - %s", w.a, w.b)
		assert.Greater(t, c.PAdjust, raw[i].rawP)
	}
	// trt2 - trt1: 0.865 with lwr 0.1737839 and upr 1.5562161
	last := family.Comparisons[2]
	assert.InDelta(t, -1.5562161, last.CILower, 1e-3)
	assert.InDelta(t, -0.1737839, last.CIUpper, 1e-3)
}
