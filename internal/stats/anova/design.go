package anova

import (
	"fmt"
	"strings"

	"golos/domain/core"
	"golos/domain/stats"

	"gonum.org/v1/gonum/mat"
)

// design is a treatment-coded model matrix. Column 0 is the intercept.
type design struct {
	X        *mat.Dense
	names    []string
	colTerm  []int   // term index per column, -1 for the intercept
	colCombo [][]int // level code per term factor, nil for the intercept
	termCols [][]int // column indices per term
}

// buildDesign expands spec against frame. A term whose factors contribute no
// contrast columns cannot be estimated and is reported as a degenerate design.
func buildDesign(frame *Frame, spec stats.ModelSpec) (*design, error) {
	n := frame.N()
	columns := [][]float64{ones(n)}
	d := &design{
		names:    []string{"(Intercept)"},
		colTerm:  []int{-1},
		colCombo: [][]int{nil},
		termCols: make([][]int, len(spec.Terms)),
	}

	for ti, term := range spec.Terms {
		factors := make([]FactorColumn, len(term))
		for k, name := range term {
			fc, ok := frame.Factor(name)
			if !ok {
				return nil, fmt.Errorf("%w: %s", core.ErrUnknownFactor, name)
			}
			if len(fc.Levels) < 2 {
				return nil, core.NewDegenerateDesignError(term.Name(), 0,
					fmt.Sprintf("factor %s has a single level", name))
			}
			factors[k] = fc
		}

		// Enumerate non-reference level combinations, first factor varying fastest.
		combo := make([]int, len(factors))
		for k := range combo {
			combo[k] = 1
		}
		for {
			col := make([]float64, n)
			for i := 0; i < n; i++ {
				v := 1.0
				for k, fc := range factors {
					if fc.Codes[i] != combo[k] {
						v = 0
						break
					}
				}
				col[i] = v
			}
			d.termCols[ti] = append(d.termCols[ti], len(columns))
			d.colTerm = append(d.colTerm, ti)
			d.colCombo = append(d.colCombo, append([]int(nil), combo...))
			d.names = append(d.names, columnName(factors, combo))
			columns = append(columns, col)

			if !advance(combo, factors) {
				break
			}
		}
	}

	p := len(columns)
	data := make([]float64, n*p)
	for j, col := range columns {
		for i, v := range col {
			data[i*p+j] = v
		}
	}
	d.X = mat.NewDense(n, p, data)
	return d, nil
}

func advance(combo []int, factors []FactorColumn) bool {
	for k := range combo {
		combo[k]++
		if combo[k] < len(factors[k].Levels) {
			return true
		}
		combo[k] = 1
	}
	return false
}

func columnName(factors []FactorColumn, combo []int) string {
	parts := make([]string, len(factors))
	for k, fc := range factors {
		parts[k] = fc.Name + fc.Levels[combo[k]]
	}
	return strings.Join(parts, ":")
}

func ones(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}

// subset returns the intercept plus the columns of the listed terms
func (d *design) subset(terms []int) []int {
	cols := []int{0}
	for _, t := range terms {
		cols = append(cols, d.termCols[t]...)
	}
	return cols
}

// rowFor returns the design row of one combination of factor level codes
func (d *design) rowFor(spec stats.ModelSpec, levels map[string]int) []float64 {
	row := make([]float64, len(d.colTerm))
	row[0] = 1
	for ti, term := range spec.Terms {
		for _, col := range d.termCols[ti] {
			v := 1.0
			for k, f := range term {
				if levels[f] != d.colCombo[col][k] {
					v = 0
					break
				}
			}
			row[col] = v
		}
	}
	return row
}
