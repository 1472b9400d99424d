package anova

import (
	"fmt"
	"math"
	"sort"

	"golos/domain/core"
	"golos/domain/stats"
	"golos/internal/stats/dist"
)

// TypeII decomposes the fit so that each term is adjusted for every other term that
// does not contain it. The error term is always the full model's residual.
func (m *Model) TypeII() (stats.ANOVATable, error) {
	spec := m.snapshot.Spec
	table := m.newTable(stats.SSTypeII)

	for ti, term := range spec.Terms {
		var base []int
		for tj, other := range spec.Terms {
			if tj == ti {
				continue
			}
			if other.Order() > term.Order() && other.Contains(term) {
				continue
			}
			base = append(base, tj)
		}
		without, err := m.subsetRSS(base)
		if err != nil {
			return stats.ANOVATable{}, err
		}
		with, err := m.subsetRSS(append(append([]int(nil), base...), ti))
		if err != nil {
			return stats.ANOVATable{}, err
		}
		table.Rows = append(table.Rows, m.row(term.Name(), without.rss-with.rss, with.rank-without.rank))
	}
	return table, nil
}

// TypeI decomposes the fit sequentially in term order
func (m *Model) TypeI() (stats.ANOVATable, error) {
	spec := m.snapshot.Spec
	table := m.newTable(stats.SSTypeI)

	prev, err := m.subsetRSS(nil)
	if err != nil {
		return stats.ANOVATable{}, err
	}
	for ti, term := range spec.Terms {
		cur, err := m.subsetRSS(allTerms(ti + 1))
		if err != nil {
			return stats.ANOVATable{}, err
		}
		table.Rows = append(table.Rows, m.row(term.Name(), prev.rss-cur.rss, cur.rank-prev.rank))
		prev = cur
	}
	return table, nil
}

func (m *Model) newTable(ssType stats.SSType) stats.ANOVATable {
	snap := m.snapshot
	return stats.ANOVATable{
		Type:    ssType,
		Formula: snap.Spec.Formula(),
		Residual: stats.ANOVARow{
			Term:   "Residuals",
			SumSq:  snap.RSS,
			DF:     snap.DFResidual,
			MeanSq: snap.RSS / float64(snap.DFResidual),
			F:      math.NaN(),
			PValue: math.NaN(),
		},
		TotalN:     snap.N,
		DFResidual: snap.DFResidual,
	}
}

func (m *Model) row(term string, ss float64, df int) stats.ANOVARow {
	snap := m.snapshot
	// refits differ from each other only by rounding when a term explains nothing
	if ss < 0 {
		ss = 0
	}
	mse := snap.RSS / float64(snap.DFResidual)
	ms := ss / float64(df)

	f := math.NaN()
	switch {
	case mse > 0:
		f = ms / mse
	case ms > 0:
		f = math.Inf(1)
	}
	p := math.NaN()
	if !math.IsNaN(f) {
		p = dist.FTestPValue(f, df, snap.DFResidual)
		if math.IsInf(f, 1) {
			p = 0
		}
	}
	return stats.ANOVARow{Term: term, SumSq: ss, DF: df, MeanSq: ms, F: f, PValue: p}
}

// CompareNested runs the incremental F-test of reduced against full and reports the
// information-criterion differences. Both fits must share the same observations.
func CompareNested(full, reduced *Model) (stats.NestedComparison, error) {
	f, r := full.snapshot, reduced.snapshot
	if !r.Spec.NestedIn(f.Spec) {
		return stats.NestedComparison{}, fmt.Errorf("%w: %s is not nested in %s",
			core.ErrNonNestedModels, r.Spec.Formula(), f.Spec.Formula())
	}
	if f.N != r.N {
		return stats.NestedComparison{}, fmt.Errorf("%w: fits use %d and %d observations",
			core.ErrNonNestedModels, f.N, r.N)
	}
	df1 := f.Rank - r.Rank
	if df1 <= 0 {
		return stats.NestedComparison{}, fmt.Errorf("%w: reduced model has %d parameters, full has %d",
			core.ErrNonNestedModels, r.Rank, f.Rank)
	}

	ss := r.RSS - f.RSS
	if ss < 0 {
		ss = 0
	}
	fStat := (ss / float64(df1)) / (f.RSS / float64(f.DFResidual))

	cmp := stats.NestedComparison{
		FullFormula:    f.Spec.Formula(),
		ReducedFormula: r.Spec.Formula(),
		DF1:            df1,
		DF2:            f.DFResidual,
		SumSq:          ss,
		F:              fStat,
		PValue:         dist.FTestPValue(fStat, df1, f.DFResidual),
		FullAIC:        f.AIC,
		ReducedAIC:     r.AIC,
		FullBIC:        f.BIC,
		ReducedBIC:     r.BIC,
		DeltaAIC:       r.AIC - f.AIC,
		DeltaBIC:       r.BIC - f.BIC,
	}
	cmp.AICEvidence = stats.ClassifyDelta(cmp.DeltaAIC)
	cmp.BICEvidence = stats.ClassifyDelta(cmp.DeltaBIC)
	return cmp, nil
}

func sortedCopy(terms []int) []int {
	out := append([]int(nil), terms...)
	sort.Ints(out)
	return out
}
