package anova

import (
	"fmt"
	"math"

	"golos/domain/core"
	"golos/domain/stats"
	"golos/internal/stats/dist"

	"gonum.org/v1/gonum/mat"
)

// rankTol is the relative size below which an R diagonal marks a column as a linear
// combination of the columns before it.
const rankTol = 1e-7

// Model is a fitted OLS model together with the design it was fitted on
type Model struct {
	snapshot *stats.FitSnapshot
	frame    *Frame
	design   *design
	rssCache map[string]subsetFit
}

type subsetFit struct {
	rss  float64
	rank int
}

type lsqResult struct {
	beta   []float64
	fitted []float64
	rss    float64
	r      *mat.Dense
}

type rankDeficiency struct {
	column int
}

func (e *rankDeficiency) Error() string {
	return fmt.Sprintf("design column %d is not estimable", e.column)
}

// Fit estimates spec on frame by QR least squares. An inestimable term is a fatal
// degenerate-design error for the fit; it is never silently dropped.
func Fit(frame *Frame, spec stats.ModelSpec) (*Model, error) {
	d, err := buildDesign(frame, spec)
	if err != nil {
		return nil, err
	}

	n, p := d.X.Dims()
	if n <= p {
		return nil, core.NewDegenerateDesignError("(Residuals)", n-p,
			fmt.Sprintf("%d observations for %d parameters", n, p))
	}

	cols := make([]int, p)
	for j := range cols {
		cols[j] = j
	}
	res, err := leastSquares(d.X, frame.Response, cols)
	if err != nil {
		return nil, d.explain(spec, err)
	}

	dfRes := n - p
	sigma2 := res.rss / float64(dfRes)

	tri := mat.NewTriDense(p, mat.Upper, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			tri.SetTri(i, j, res.r.At(i, j))
		}
	}
	var rinv mat.TriDense
	if err := rinv.InverseTri(tri); err != nil {
		return nil, core.NewDegenerateDesignError(spec.Formula(), 0, "model matrix is numerically singular")
	}
	var cov mat.SymDense
	cov.SymOuterK(sigma2, &rinv)

	coefs := make([]stats.Coefficient, p)
	for j := 0; j < p; j++ {
		se := math.Sqrt(cov.At(j, j))
		tv := res.beta[j] / se
		coefs[j] = stats.Coefficient{
			Name:     d.names[j],
			Estimate: res.beta[j],
			StdError: se,
			TValue:   tv,
			PValue:   dist.TTestPValue(tv, dfRes),
		}
	}

	residuals := make([]float64, n)
	for i := range residuals {
		residuals[i] = frame.Response[i] - res.fitted[i]
	}

	ll := logLikelihood(n, res.rss)
	k := float64(p + 1) // residual variance counts as a parameter
	snap := &stats.FitSnapshot{
		Spec:         spec,
		N:            n,
		Rank:         p,
		DFResidual:   dfRes,
		RSS:          res.rss,
		Sigma:        math.Sqrt(sigma2),
		LogLik:       ll,
		AIC:          -2*ll + 2*k,
		BIC:          -2*ll + math.Log(float64(n))*k,
		Coefficients: coefs,
		Fitted:       res.fitted,
		Residuals:    residuals,
		ColumnTerms:  append([]int(nil), d.colTerm...),
		Covariance:   &cov,
	}

	m := &Model{snapshot: snap, frame: frame, design: d, rssCache: make(map[string]subsetFit)}
	m.rssCache[subsetKey(allTerms(len(spec.Terms)))] = subsetFit{rss: res.rss, rank: p}
	return m, nil
}

// Snapshot returns the immutable fit summary
func (m *Model) Snapshot() *stats.FitSnapshot {
	return m.snapshot
}

// Spec returns the fitted model specification
func (m *Model) Spec() stats.ModelSpec {
	return m.snapshot.Spec
}

// Frame returns the data the model was fitted to
func (m *Model) Frame() *Frame {
	return m.frame
}

// DesignRow returns the model matrix row of one combination of factor level codes.
// Factors absent from levels are taken at their reference level.
func (m *Model) DesignRow(levels map[string]int) []float64 {
	return m.design.rowFor(m.snapshot.Spec, levels)
}

// Coefficients returns the estimated parameter vector
func (m *Model) Coefficients() []float64 {
	out := make([]float64, len(m.snapshot.Coefficients))
	for i, c := range m.snapshot.Coefficients {
		out[i] = c.Estimate
	}
	return out
}

// subsetRSS fits the intercept plus the listed terms on the same design
func (m *Model) subsetRSS(terms []int) (subsetFit, error) {
	terms = sortedCopy(terms)
	key := subsetKey(terms)
	if sf, ok := m.rssCache[key]; ok {
		return sf, nil
	}
	cols := m.design.subset(terms)
	res, err := leastSquares(m.design.X, m.frame.Response, cols)
	if err != nil {
		return subsetFit{}, m.design.explain(m.snapshot.Spec, err)
	}
	sf := subsetFit{rss: res.rss, rank: len(cols)}
	m.rssCache[key] = sf
	return sf, nil
}

func leastSquares(x *mat.Dense, y []float64, cols []int) (*lsqResult, error) {
	n, _ := x.Dims()
	p := len(cols)

	sub := mat.NewDense(n, p, nil)
	norms := make([]float64, p)
	for j, c := range cols {
		for i := 0; i < n; i++ {
			v := x.At(i, c)
			sub.Set(i, j, v)
			norms[j] += v * v
		}
		norms[j] = math.Sqrt(norms[j])
	}

	var qr mat.QR
	qr.Factorize(sub)
	var r mat.Dense
	qr.RTo(&r)
	for j := 0; j < p; j++ {
		if norms[j] == 0 || math.Abs(r.At(j, j)) <= rankTol*norms[j] {
			return nil, &rankDeficiency{column: cols[j]}
		}
	}

	var beta mat.VecDense
	if err := qr.SolveVecTo(&beta, false, mat.NewVecDense(n, append([]float64(nil), y...))); err != nil {
		return nil, &rankDeficiency{column: cols[p-1]}
	}

	var fitted mat.VecDense
	fitted.MulVec(sub, &beta)

	res := &lsqResult{
		beta:   make([]float64, p),
		fitted: make([]float64, n),
		r:      &r,
	}
	for j := 0; j < p; j++ {
		res.beta[j] = beta.AtVec(j)
	}
	for i := 0; i < n; i++ {
		res.fitted[i] = fitted.AtVec(i)
		e := y[i] - res.fitted[i]
		res.rss += e * e
	}
	return res, nil
}

// explain converts a rank deficiency into a degenerate-design error naming the term
func (d *design) explain(spec stats.ModelSpec, err error) error {
	rd, ok := err.(*rankDeficiency)
	if !ok {
		return err
	}
	ti := d.colTerm[rd.column]
	if ti < 0 {
		return core.NewDegenerateDesignError("(Intercept)", 0, "intercept column is not estimable")
	}
	estimable := 0
	for _, c := range d.termCols[ti] {
		if c == rd.column {
			break
		}
		estimable++
	}
	return core.NewDegenerateDesignError(spec.Terms[ti].Name(), estimable,
		fmt.Sprintf("column %s is not estimable (empty or confounded cell)", d.names[rd.column]))
}

// logLikelihood is the Gaussian log-likelihood at the ML variance RSS/n
func logLikelihood(n int, rss float64) float64 {
	nf := float64(n)
	return -0.5 * nf * (math.Log(2*math.Pi) + math.Log(rss/nf) + 1)
}

func allTerms(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func subsetKey(terms []int) string {
	return fmt.Sprint(terms)
}
