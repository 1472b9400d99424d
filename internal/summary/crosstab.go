// Package summary tabulates the factorial design of a dataset: counts per cell of the
// factor cross and descriptive statistics of length of stay within each cell.
package summary

import (
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"

	"golos/domain/clinical"

	"github.com/montanaflynn/stats"
)

// Cell is one combination of factor levels
type Cell struct {
	Levels []string `json:"levels"`
	N      int      `json:"n"`
	Mean   float64  `json:"mean"`
	Median float64  `json:"median"`
	SD     float64  `json:"sd"`
	Min    float64  `json:"min"`
	Max    float64  `json:"max"`
}

// Key joins the cell levels the way result tables label them
func (c Cell) Key() string {
	return strings.Join(c.Levels, " / ")
}

// CrossTab counts every combination of the observed levels of its factors, including
// combinations with no records.
type CrossTab struct {
	Factors        []string `json:"factors"`
	Cells          []Cell   `json:"cells"`
	Total          int      `json:"total"`
	MinCount       int      `json:"min_count"`
	MaxCount       int      `json:"max_count"`
	EmptyCells     int      `json:"empty_cells"`
	ImbalanceRatio float64  `json:"imbalance_ratio"` // largest over smallest non-empty cell
	Balanced       bool     `json:"balanced"`
}

// Tabulate builds the cross of factors over ds. The last factor varies fastest.
func Tabulate(ds *clinical.Dataset, factors ...string) (CrossTab, error) {
	levels := make([]clinical.Factor, len(factors))
	for i, name := range factors {
		f, err := ds.ObservedFactor(name)
		if err != nil {
			return CrossTab{}, err
		}
		levels[i] = f
	}

	values := make(map[string][]float64)
	for _, rec := range ds.Records {
		parts := make([]string, len(factors))
		for i, name := range factors {
			parts[i], _ = rec.Level(name)
		}
		k := strings.Join(parts, " / ")
		values[k] = append(values[k], rec.LengthOfStay)
	}

	tab := CrossTab{Factors: append([]string(nil), factors...), Total: ds.Len()}
	for _, f := range levels {
		if len(f.Levels) == 0 {
			return tab, nil
		}
	}

	tab.MinCount = -1
	combo := make([]int, len(factors))
	for {
		cell := Cell{Levels: make([]string, len(factors))}
		for i, f := range levels {
			cell.Levels[i] = f.Levels[combo[i]]
		}
		describe(&cell, values[cell.Key()])
		tab.add(cell)

		if !advance(combo, levels) {
			break
		}
	}

	if tab.MinCount < 0 {
		tab.MinCount = 0
	}
	if tab.MinCount > 0 {
		tab.ImbalanceRatio = float64(tab.MaxCount) / float64(tab.MinCount)
	}
	tab.Balanced = tab.EmptyCells == 0 && tab.MinCount == tab.MaxCount
	return tab, nil
}

func (t *CrossTab) add(c Cell) {
	t.Cells = append(t.Cells, c)
	if c.N == 0 {
		t.EmptyCells++
		return
	}
	if t.MinCount < 0 || c.N < t.MinCount {
		t.MinCount = c.N
	}
	if c.N > t.MaxCount {
		t.MaxCount = c.N
	}
}

func describe(c *Cell, v []float64) {
	c.N = len(v)
	c.Mean, c.Median, c.SD, c.Min, c.Max = math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN()
	if len(v) == 0 {
		return
	}
	c.Mean, _ = stats.Mean(v)
	c.Median, _ = stats.Median(v)
	c.Min, _ = stats.Min(v)
	c.Max, _ = stats.Max(v)
	if len(v) > 1 {
		c.SD, _ = stats.StandardDeviationSample(v)
	}
}

// advance steps the last factor fastest
func advance(combo []int, levels []clinical.Factor) bool {
	for i := len(combo) - 1; i >= 0; i-- {
		combo[i]++
		if combo[i] < len(levels[i].Levels) {
			return true
		}
		combo[i] = 0
	}
	return false
}

// Write prints the table with aligned columns
func (t CrossTab) Write(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\tn\tmean\tmedian\tsd\n", strings.Join(t.Factors, " / "))
	for _, c := range t.Cells {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", c.Key(), c.N, num(c.Mean), num(c.Median), num(c.SD))
	}
	fmt.Fprintf(tw, "total\t%d\t\t\t\n", t.Total)
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "cells: %d, empty: %d, min: %d, max: %d, imbalance ratio: %s, balanced: %t\n",
		len(t.Cells), t.EmptyCells, t.MinCount, t.MaxCount, num(t.ImbalanceRatio), t.Balanced)
	return err
}

func num(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.2f", v)
}
