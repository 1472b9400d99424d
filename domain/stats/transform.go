package stats

import (
	"fmt"
	"math"

	"golos/domain/core"
)

// TransformKind names the working-response transformation
type TransformKind string

const (
	TransformIdentity TransformKind = "identity"
	TransformLog      TransformKind = "log"
	TransformPower    TransformKind = "power"
)

// Transformation maps the raw response y to the working scale. Log is log(y+Offset);
// power is (y+Offset)^Lambda; identity leaves y unchanged.
type Transformation struct {
	Kind   TransformKind `json:"kind"`
	Lambda float64       `json:"lambda"`
	Offset float64       `json:"offset"`
}

// Identity returns the no-op transformation
func Identity() Transformation {
	return Transformation{Kind: TransformIdentity, Lambda: 1}
}

// LogTransform returns log(y+offset)
func LogTransform(offset float64) Transformation {
	return Transformation{Kind: TransformLog, Lambda: 0, Offset: offset}
}

// PowerTransform returns (y+offset)^lambda
func PowerTransform(lambda, offset float64) Transformation {
	return Transformation{Kind: TransformPower, Lambda: lambda, Offset: offset}
}

// String describes the transformation in formula notation
func (t Transformation) String() string {
	switch t.Kind {
	case TransformLog:
		return fmt.Sprintf("log(y + %g)", t.Offset)
	case TransformPower:
		return fmt.Sprintf("(y + %g)^%g", t.Offset, t.Lambda)
	}
	return "y"
}

// Apply maps one raw value to the working scale
func (t Transformation) Apply(y float64) (float64, error) {
	switch t.Kind {
	case TransformLog, TransformPower:
		shifted := y + t.Offset
		if shifted <= 0 || math.IsNaN(shifted) {
			return 0, fmt.Errorf("%w: %s undefined at y=%g", core.ErrInvalidResponse, t, y)
		}
		if t.Kind == TransformLog {
			return math.Log(shifted), nil
		}
		return math.Pow(shifted, t.Lambda), nil
	}
	return y, nil
}

// ApplyAll maps a response column, failing on the first invalid value
func (t Transformation) ApplyAll(ys []float64) ([]float64, error) {
	out := make([]float64, len(ys))
	for i, y := range ys {
		v, err := t.Apply(y)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Inverse maps a working-scale value back to the raw response scale
func (t Transformation) Inverse(z float64) float64 {
	switch t.Kind {
	case TransformLog:
		return math.Exp(z) - t.Offset
	case TransformPower:
		return math.Pow(z, 1/t.Lambda) - t.Offset
	}
	return z
}
