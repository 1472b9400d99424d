// Package boxcox selects a power transformation of the response by profiling the
// Box-Cox log-likelihood of a factorial model over a grid of λ values.
package boxcox

import (
	"context"
	"fmt"
	"math"

	"golos/domain/core"
	"golos/domain/stats"
	"golos/internal/stats/anova"
	"golos/internal/stats/dist"

	"golang.org/x/sync/errgroup"
)

// Options bounds the λ grid and the selection rule
type Options struct {
	LambdaMin float64
	LambdaMax float64
	Step      float64
	// Tolerance is the |λ| below which the natural log is chosen
	Tolerance float64
	Offset    float64
	Workers   int
}

// DefaultOptions is the grid -2.0, -1.9, ..., 2.0 on y+1
func DefaultOptions() Options {
	return Options{LambdaMin: -2, LambdaMax: 2, Step: 0.1, Tolerance: 0.1, Offset: 1, Workers: 4}
}

// Grid lists the λ values of opts. Points are computed from integer multiples of the
// step so that the grid contains 0 exactly when it spans it. Bounds must themselves be
// multiples of the step; Search rejects any that are not.
func (o Options) Grid() []float64 {
	lo := int(math.Round(o.LambdaMin / o.Step))
	hi := int(math.Round(o.LambdaMax / o.Step))
	grid := make([]float64, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		grid = append(grid, math.Round(float64(i)*o.Step*1e9)/1e9)
	}
	return grid
}

func (o Options) validate() error {
	if o.Step <= 0 || math.IsNaN(o.Step) {
		return fmt.Errorf("boxcox: step must be positive, got %g", o.Step)
	}
	if o.LambdaMax < o.LambdaMin {
		return fmt.Errorf("boxcox: empty grid [%g, %g]", o.LambdaMin, o.LambdaMax)
	}
	for _, bound := range []float64{o.LambdaMin, o.LambdaMax} {
		if n := bound / o.Step; math.Abs(n-math.Round(n)) > 1e-6 {
			return fmt.Errorf("boxcox: bound %g is not a multiple of step %g", bound, o.Step)
		}
	}
	return nil
}

// Search evaluates the profile log-likelihood of spec at every grid λ on y+Offset and
// applies the selection rule to the maximiser. Grid points are fitted concurrently.
func Search(ctx context.Context, frame *anova.Frame, spec stats.ModelSpec, opts Options) (stats.BoxCoxResult, error) {
	if err := opts.validate(); err != nil {
		return stats.BoxCoxResult{}, err
	}

	n := frame.N()
	shifted := make([]float64, n)
	sumLog := 0.0
	for i, y := range frame.Response {
		shifted[i] = y + opts.Offset
		if shifted[i] <= 0 {
			return stats.BoxCoxResult{}, fmt.Errorf("%w: y + %g must be positive, got %g at observation %d",
				core.ErrInvalidResponse, opts.Offset, shifted[i], i)
		}
		sumLog += math.Log(shifted[i])
	}

	grid := opts.Grid()
	points := make([]stats.LambdaPoint, len(grid))

	g, gCtx := errgroup.WithContext(ctx)
	if opts.Workers > 0 {
		g.SetLimit(opts.Workers)
	}
	for i, lambda := range grid {
		i, lambda := i, lambda // per-iteration copies (go.mod targets go1.21)
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			ll, err := profileLogLik(frame, spec, shifted, sumLog, lambda)
			if err != nil {
				return fmt.Errorf("lambda %g: %w", lambda, err)
			}
			points[i] = stats.LambdaPoint{Lambda: lambda, LogLik: ll}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats.BoxCoxResult{}, err
	}

	res := stats.BoxCoxResult{Grid: points, Tolerance: opts.Tolerance}
	res.Best = best(points)
	res.CILower, res.CIUpper = interval(points, res.Best.LogLik)
	res.ZeroInCI = res.CILower <= 0 && res.CIUpper >= 0
	res.Transformation = Rule(res.Best.Lambda, opts.Tolerance, opts.Offset)
	return res, nil
}

// Rule maps the selected λ to a transformation: log when |λ| is below tolerance,
// otherwise the power λ.
func Rule(lambda, tolerance, offset float64) stats.Transformation {
	if math.Abs(lambda) < tolerance {
		return stats.LogTransform(offset)
	}
	return stats.PowerTransform(lambda, offset)
}

// Choose keeps the raw response unless the diagnostics call for a transformation
func Choose(diag stats.Diagnostics, res stats.BoxCoxResult) stats.Transformation {
	if !diag.NeedsTransformation {
		return stats.Identity()
	}
	return res.Transformation
}

// profileLogLik is the normal log-likelihood of the Box-Cox transformed response at
// the ML variance, plus the Jacobian of the transformation.
func profileLogLik(frame *anova.Frame, spec stats.ModelSpec, shifted []float64, sumLog, lambda float64) (float64, error) {
	z := make([]float64, len(shifted))
	for i, y := range shifted {
		if lambda == 0 {
			z[i] = math.Log(y)
		} else {
			z[i] = (math.Pow(y, lambda) - 1) / lambda
		}
	}
	working, err := frame.WithResponse(z)
	if err != nil {
		return 0, err
	}
	m, err := anova.Fit(working, spec)
	if err != nil {
		return 0, err
	}
	n := float64(len(z))
	rss := m.Snapshot().RSS
	return -0.5*n*(math.Log(2*math.Pi)+1+math.Log(rss/n)) + (lambda-1)*sumLog, nil
}

// best is the argmax; ties go to the λ closest to zero
func best(points []stats.LambdaPoint) stats.LambdaPoint {
	top := points[0]
	for _, p := range points[1:] {
		if p.LogLik > top.LogLik || (p.LogLik == top.LogLik && math.Abs(p.Lambda) < math.Abs(top.Lambda)) {
			top = p
		}
	}
	return top
}

// interval is the 95% likelihood-ratio set of grid λ values
func interval(points []stats.LambdaPoint, llMax float64) (lo, hi float64) {
	cut := llMax - dist.ChiSquareQuantile(0.95, 1)/2
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, p := range points {
		if p.LogLik >= cut {
			lo = math.Min(lo, p.Lambda)
			hi = math.Max(hi, p.Lambda)
		}
	}
	return lo, hi
}
