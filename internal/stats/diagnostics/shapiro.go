package diagnostics

import (
	"math"
	"sort"

	"golos/domain/core"
	"golos/internal/stats/dist"
)

// maxShapiroN is the largest sample the Royston approximation is calibrated for
const maxShapiroN = 5000

var (
	swG  = []float64{-2.273, 0.459}
	swC1 = []float64{0, 0.221157, -0.147981, -2.07119, 4.434685, -2.706056}
	swC2 = []float64{0, 0.042981, -0.293762, -1.752461, 5.682633, -3.582633}
	swC3 = []float64{0.544, -0.39978, 0.025054, -6.714e-4}
	swC4 = []float64{1.3822, -0.77857, 0.062767, -0.0020322}
	swC5 = []float64{-1.5861, -0.31082, -0.083751, 0.0038915}
	swC6 = []float64{-0.4803, -0.082676, 0.0030302}
)

// ShapiroWilk returns the W statistic and its p-value using Royston's (1995)
// approximation. Samples larger than 5000 are thinned to 5000 evenly spaced order
// statistics.
func ShapiroWilk(sample []float64) (w, p float64, err error) {
	if len(sample) < 3 {
		return math.NaN(), math.NaN(), core.NewInsufficientDataError("shapiro-wilk", len(sample), 3)
	}
	x := append([]float64(nil), sample...)
	sort.Float64s(x)
	if len(x) > maxShapiroN {
		x = thin(x, maxShapiroN)
	}
	n := len(x)

	if x[n-1]-x[0] < 1e-19*math.Max(1, math.Abs(x[0])) {
		return math.NaN(), math.NaN(), core.NewInsufficientDataError("shapiro-wilk: constant sample", 1, 2)
	}

	a := swCoefficients(n)

	mean := 0.0
	for _, v := range x {
		mean += v
	}
	mean /= float64(n)
	sst := 0.0
	for _, v := range x {
		sst += (v - mean) * (v - mean)
	}

	num := 0.0
	for i := range a {
		num += a[i] * (x[n-1-i] - x[i])
	}
	w = num * num / sst
	if w > 1 {
		w = 1
	}
	return w, swPValue(w, n), nil
}

// swCoefficients returns the upper half of the antisymmetric coefficient vector,
// a[0] pairing the extremes.
func swCoefficients(n int) []float64 {
	nn2 := n / 2
	a := make([]float64, nn2)
	if n == 3 {
		a[0] = math.Sqrt(0.5)
		return a
	}

	an := float64(n)
	m := make([]float64, nn2)
	summ2 := 0.0
	for i := 0; i < nn2; i++ {
		m[i] = dist.NormalQuantile((float64(i+1) - 0.375) / (an + 0.25))
		summ2 += m[i] * m[i]
	}
	summ2 *= 2
	ssumm2 := math.Sqrt(summ2)
	rsn := 1 / math.Sqrt(an)

	a1 := poly(swC1, rsn) - m[0]/ssumm2
	first := 1
	var fac float64
	if n > 5 {
		first = 2
		a2 := -m[1]/ssumm2 + poly(swC2, rsn)
		fac = math.Sqrt((summ2 - 2*m[0]*m[0] - 2*m[1]*m[1]) / (1 - 2*a1*a1 - 2*a2*a2))
		a[1] = a2
	} else {
		fac = math.Sqrt((summ2 - 2*m[0]*m[0]) / (1 - 2*a1*a1))
	}
	a[0] = a1
	for i := first; i < nn2; i++ {
		a[i] = -m[i] / fac
	}
	return a
}

func swPValue(w float64, n int) float64 {
	if n == 3 {
		p := 6 / math.Pi * (math.Asin(math.Sqrt(w)) - math.Pi/3)
		return math.Max(0, math.Min(1, p))
	}

	an := float64(n)
	y := math.Log(1 - w)
	var mu, sigma float64
	if n <= 11 {
		gamma := poly(swG, an)
		if y >= gamma {
			return 1e-99
		}
		y = -math.Log(gamma - y)
		mu = poly(swC3, an)
		sigma = math.Exp(poly(swC4, an))
	} else {
		xx := math.Log(an)
		mu = poly(swC5, xx)
		sigma = math.Exp(poly(swC6, xx))
	}
	return dist.NormalSurvival(y, mu, sigma)
}

// poly evaluates c[0] + c[1]x + c[2]x^2 + ...
func poly(c []float64, x float64) float64 {
	out := 0.0
	for i := len(c) - 1; i >= 0; i-- {
		out = out*x + c[i]
	}
	return out
}

// thin keeps k order statistics at evenly spaced ranks, including both extremes
func thin(sorted []float64, k int) []float64 {
	n := len(sorted)
	out := make([]float64, k)
	for i := 0; i < k; i++ {
		out[i] = sorted[int(math.Round(float64(i)*float64(n-1)/float64(k-1)))]
	}
	return out
}
