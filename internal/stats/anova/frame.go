// Package anova fits ordinary least-squares factorial models and decomposes them into
// Type I and Type II sums of squares.
package anova

import (
	"fmt"
	"math"

	"golos/domain/clinical"
	"golos/domain/core"
)

// FactorColumn is one categorical column coded as level indices
type FactorColumn struct {
	Name   string
	Levels []string
	Codes  []int
}

// Frame is the numeric view of a dataset a model is fitted to
type Frame struct {
	Response []float64
	factors  map[string]FactorColumn
	order    []string
}

// NewFrame validates that every column has one entry per response value
func NewFrame(response []float64, factors ...FactorColumn) (*Frame, error) {
	f := &Frame{
		Response: append([]float64(nil), response...),
		factors:  make(map[string]FactorColumn, len(factors)),
	}
	for _, y := range response {
		if math.IsNaN(y) || math.IsInf(y, 0) {
			return nil, fmt.Errorf("%w: response contains non-finite values", core.ErrInvalidResponse)
		}
	}
	for _, fc := range factors {
		if len(fc.Codes) != len(response) {
			return nil, fmt.Errorf("factor %s has %d values for %d observations", fc.Name, len(fc.Codes), len(response))
		}
		for _, c := range fc.Codes {
			if c < 0 || c >= len(fc.Levels) {
				return nil, fmt.Errorf("factor %s has code %d outside its %d levels", fc.Name, c, len(fc.Levels))
			}
		}
		f.factors[fc.Name] = fc
		f.order = append(f.order, fc.Name)
	}
	return f, nil
}

// FromDataset codes the named factors of ds against their observed levels
func FromDataset(ds *clinical.Dataset, response []float64, factorNames ...string) (*Frame, error) {
	if len(response) != ds.Len() {
		return nil, fmt.Errorf("response has %d values for %d records", len(response), ds.Len())
	}
	cols := make([]FactorColumn, 0, len(factorNames))
	for _, name := range factorNames {
		factor, err := ds.ObservedFactor(name)
		if err != nil {
			return nil, err
		}
		codes := make([]int, ds.Len())
		for i, rec := range ds.Records {
			level, _ := rec.Level(name)
			codes[i] = factor.Index(level)
		}
		cols = append(cols, FactorColumn{Name: name, Levels: factor.Levels, Codes: codes})
	}
	return NewFrame(response, cols...)
}

// N is the number of observations
func (f *Frame) N() int {
	return len(f.Response)
}

// Factor returns a coded column by name
func (f *Frame) Factor(name string) (FactorColumn, bool) {
	fc, ok := f.factors[name]
	return fc, ok
}

// FactorNames lists the factors in the order they were added
func (f *Frame) FactorNames() []string {
	return append([]string(nil), f.order...)
}

// WithResponse returns a frame sharing the factor coding with a new response
func (f *Frame) WithResponse(response []float64) (*Frame, error) {
	cols := make([]FactorColumn, 0, len(f.order))
	for _, name := range f.order {
		cols = append(cols, f.factors[name])
	}
	return NewFrame(response, cols...)
}

// CellKey identifies the cross of factor levels observation i belongs to
func (f *Frame) CellKey(i int, factors []string) string {
	key := ""
	for j, name := range factors {
		if j > 0 {
			key += " / "
		}
		fc := f.factors[name]
		key += fc.Levels[fc.Codes[i]]
	}
	return key
}

// Cells groups observation indices by the full cross of the named factors, keyed by
// CellKey. Empty cells do not appear.
func (f *Frame) Cells(factors []string) (map[string][]int, []string) {
	groups := make(map[string][]int)
	var keys []string
	for i := 0; i < f.N(); i++ {
		k := f.CellKey(i, factors)
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], i)
	}
	return groups, keys
}
