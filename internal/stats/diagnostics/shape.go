package diagnostics

import (
	"math"

	"github.com/montanaflynn/stats"
)

// Skewness is the adjusted Fisher-Pearson sample skewness
func Skewness(data []float64) float64 {
	if len(data) < 3 {
		return 0
	}
	mean, _ := stats.Mean(data)
	sd, _ := stats.StandardDeviationSample(data)
	if sd == 0 {
		return 0
	}

	n := float64(len(data))
	sum := 0.0
	for _, x := range data {
		d := (x - mean) / sd
		sum += d * d * d
	}
	return n / ((n - 1) * (n - 2)) * sum
}

// ExcessKurtosis is the bias-corrected sample excess kurtosis (0 for a normal sample)
func ExcessKurtosis(data []float64) float64 {
	if len(data) < 4 {
		return 0
	}
	mean, _ := stats.Mean(data)
	sd, _ := stats.StandardDeviationSample(data)
	if sd == 0 {
		return 0
	}

	n := float64(len(data))
	sum := 0.0
	for _, x := range data {
		d := (x - mean) / sd
		sum += d * d * d * d
	}
	return n*(n+1)/((n-1)*(n-2)*(n-3))*sum - 3*math.Pow(n-1, 2)/((n-2)*(n-3))
}
