package dist

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQTukeyMatchesTabulatedValues(t *testing.T) {
	cases := []struct {
		means int
		df    float64
		want  float64
	}{
		{3, 10, 3.877},
		{4, 20, 3.958},
		{2, 30000, 2.772},
		{5, 30, 4.102},
	}
	for _, tc := range cases {
		got := QTukey(0.95, tc.means, tc.df)
		assert.InDelta(t, tc.want, got, 5e-3, "q(0.95; %d, %v)", tc.means, tc.df)
	}
}

func TestPTukeyInvertsQTukey(t *testing.T) {
	for _, p := range []float64{0.5, 0.9, 0.95, 0.99} {
		q := QTukey(p, 4, 60)
		assert.InDelta(t, p, PTukey(q, 4, 60), 1e-4, "p=%v", p)
	}
}

func TestTwoMeansRangeIsScaledT(t *testing.T) {
	for _, tc := range []struct{ q, df float64 }{{3.0, 20}, {1.5, 10}, {4.0, 92}} {
		fromT := 1 - TTestPValue(tc.q/math.Sqrt2, int(tc.df))
		assert.InDelta(t, fromT, PTukey(tc.q, 2, tc.df), 1e-6)
	}
}

func TestTukeyPValueBounds(t *testing.T) {
	assert.Equal(t, 0.0, PTukey(0, 3, 10))
	assert.Equal(t, 1.0, PTukey(math.Inf(1), 3, 10))
	assert.True(t, math.IsNaN(PTukey(2, 1, 10)))
	assert.True(t, math.IsNaN(QTukey(0.95, 3, 1)))

	prev := 1.0
	for q := 0.5; q < 6; q += 0.5 {
		p := TukeyPValue(q, 4, 40)
		assert.LessOrEqual(t, p, prev+1e-12, "upper tail must decrease in q")
		assert.GreaterOrEqual(t, p, 0.0)
		prev = p
	}
}

// Studentized ranges of the PlantGrowth contrasts (k=3, df=27) against R's ptukey
func TestTukeyPValueMatchesR(t *testing.T) {
	cases := []struct{ q, want float64 }{
		{1.8820224, 0.3908711},
		{2.5059813, 0.1979960},
		{4.3880037, 0.0120064},
	}
	for _, tc := range cases {
		got := TukeyPValue(tc.q, 3, 27)
		assert.InDelta(t, tc.want, got, 1e-5, "q=%v", tc.q)
		// the range of three means is never less likely than one pair exceeding q
		assert.Greater(t, got, TTestPValue(tc.q/math.Sqrt2, 27))
	}
}
