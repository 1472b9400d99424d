package dist

import (
	"math"
)

// Studentized range distribution, after Copenhaver & Holland (1988) as used by
// AS 190. ranges is the number of independent ranges (1 for Tukey HSD), means the
// number of group means in the family.

var (
	legendre12X = [6]float64{
		0.981560634246719250690549090149,
		0.904117256370474856678465866119,
		0.769902674194304687036893833213,
		0.587317954286617447296702418941,
		0.367831498998180193752691536644,
		0.125233408511468915472441369464,
	}
	legendre12W = [6]float64{
		0.047175336386511827194615961485,
		0.106939325995318430960254718194,
		0.160078328543346226334652529543,
		0.203167426723065921749064455810,
		0.233492536538354808760849898925,
		0.249147045813402785000562436043,
	}
	legendre16X = [8]float64{
		0.989400934991649932596154173450,
		0.944575023073232576077988415535,
		0.865631202387831743880467897712,
		0.755404408355003033895101194847,
		0.617876244402643748446671764049,
		0.458016777657227386342419442984,
		0.281603550779258913230460501460,
		0.950125098376374401853193354250e-1,
	}
	legendre16W = [8]float64{
		0.271524594117540948517805724560e-1,
		0.622535239386478928628438369944e-1,
		0.951585116824927848099251076022e-1,
		0.124628971255533872052476282192,
		0.149595988816576732081501730547,
		0.169156519395002538189312079030,
		0.182603415044923588866763667969,
		0.189450610455068496285396723208,
	}
)

// rangeProb is P(range of means standard normals < w) with infinite df
func rangeProb(w, ranges, means float64) float64 {
	const (
		c1    = -30.0
		c3    = 60.0
		bb    = 8.0
		wlar  = 3.0
		wInc1 = 2
		wInc2 = 3
	)

	qsqz := w * 0.5
	if qsqz >= bb {
		return 1.0
	}

	// (2Φ(w/2) - 1)^means, the leading term of Hartley's form
	prW := 2*NormalCDF(qsqz) - 1
	if prW >= 1 {
		prW = 1
	} else {
		prW = math.Pow(prW, means)
	}

	wInc := wInc2
	if w > wlar {
		wInc = wInc1
	}

	blb := qsqz
	binc := (bb - qsqz) / float64(wInc)
	bub := blb + binc
	einsum := 0.0
	cc1 := means - 1

	for wi := 0; wi < wInc; wi++ {
		elsum := 0.0
		a := 0.5 * (bub + blb)
		b := 0.5 * (bub - blb)

		for jj := 1; jj <= 12; jj++ {
			var j int
			var xx float64
			if jj > 6 {
				j = 12 - jj + 1
				xx = legendre12X[j-1]
			} else {
				j = jj
				xx = -legendre12X[j-1]
			}
			ac := a + b*xx
			qexpo := ac * ac
			if qexpo > c3 {
				break
			}
			pplus := 2 * NormalCDF(ac)
			pminus := 2 * NormalCDF(ac-w)
			rinsum := pplus*0.5 - pminus*0.5
			if rinsum >= math.Exp(c1/cc1) {
				elsum += legendre12W[j-1] * math.Exp(-0.5*qexpo) * math.Pow(rinsum, cc1)
			}
		}
		elsum *= 2 * b * means / math.Sqrt(2*math.Pi)
		einsum += elsum
		blb = bub
		bub += binc
	}

	prW += einsum
	if prW <= math.Exp(c1/ranges) {
		return 0
	}
	prW = math.Pow(prW, ranges)
	if prW >= 1 {
		return 1
	}
	return prW
}

// PTukey is the lower-tail CDF of the studentized range for means groups with df
// residual degrees of freedom.
func PTukey(q float64, means int, df float64) float64 {
	const (
		ranges = 1.0
		eps1   = -30.0
		eps2   = 1.0e-14
		dhaf   = 100.0
		dquar  = 800.0
		deigh  = 5000.0
		dlarg  = 25000.0
	)

	if math.IsNaN(q) || df < 2 || means < 2 {
		return math.NaN()
	}
	if q <= 0 {
		return 0
	}
	if math.IsInf(q, 1) {
		return 1
	}
	cc := float64(means)
	if df > dlarg {
		return rangeProb(q, ranges, cc)
	}

	f2 := df * 0.5
	lg, _ := math.Lgamma(f2)
	f2lf := f2*math.Log(df) - df*math.Ln2 - lg
	f21 := f2 - 1.0
	ff4 := df * 0.25

	var ulen float64
	switch {
	case df <= dhaf:
		ulen = 1.0
	case df <= dquar:
		ulen = 0.5
	case df <= deigh:
		ulen = 0.25
	default:
		ulen = 0.125
	}
	f2lf += math.Log(ulen)

	ans := 0.0
	for i := 1; i <= 50; i++ {
		otsum := 0.0
		twa1 := float64(2*i-1) * ulen

		for jj := 1; jj <= 16; jj++ {
			var j int
			var t1, qsqz float64
			if jj > 8 {
				j = jj - 8 - 1
				u := legendre16X[j] * ulen
				t1 = f2lf + f21*math.Log(twa1+u) - (u+twa1)*ff4
				qsqz = q * math.Sqrt((u+twa1)*0.5)
			} else {
				j = jj - 1
				u := legendre16X[j] * ulen
				t1 = f2lf + f21*math.Log(twa1-u) + (u-twa1)*ff4
				qsqz = q * math.Sqrt((twa1-u)*0.5)
			}
			if t1 >= eps1 {
				otsum += rangeProb(qsqz, ranges, cc) * legendre16W[j] * math.Exp(t1)
			}
		}

		if float64(i)*ulen >= 1.0 && otsum <= eps2 {
			break
		}
		ans += otsum
	}

	if ans > 1 {
		ans = 1
	}
	return ans
}

// TukeyPValue is the upper tail P(Q > q)
func TukeyPValue(q float64, means int, df float64) float64 {
	if means == 2 {
		// Q_2 = sqrt(2)|T|, exact via Student's t
		return TTestPValue(q/math.Sqrt2, int(math.Round(df)))
	}
	return clampProbability(1 - PTukey(q, means, df))
}

// QTukey is the p-quantile of the studentized range, found by secant iteration
func QTukey(p float64, means int, df float64) float64 {
	const (
		eps     = 0.0001
		maxIter = 50
	)
	if math.IsNaN(p) || p <= 0 || p >= 1 || df < 2 || means < 2 {
		return math.NaN()
	}

	x0 := tukeyInitial(p, float64(means), df)
	valx0 := PTukey(x0, means, df) - p

	var x1 float64
	if valx0 > 0 {
		x1 = math.Max(0, x0-1)
	} else {
		x1 = x0 + 1
	}
	valx1 := PTukey(x1, means, df) - p

	ans := x1
	for iter := 0; iter < maxIter; iter++ {
		ans = x1 - valx1*(x1-x0)/(valx1-valx0)
		valx0 = valx1
		x0 = x1
		if ans < 0 {
			ans = 0
			valx1 = -p
		}
		valx1 = PTukey(ans, means, df) - p
		x1 = ans
		if math.Abs(x1-x0) < eps {
			return ans
		}
	}
	return ans
}

// tukeyInitial is the starting approximation of the secant search
func tukeyInitial(p, c, v float64) float64 {
	const (
		p0   = 0.322232421088
		q0   = 0.993484626060e-01
		p1   = -1.0
		q1   = 0.588581570495
		p2   = -0.342242088547
		q2   = 0.531103462366
		p3   = -0.204231210125
		q3   = 0.103537752850
		p4   = -0.453642210148e-04
		q4   = 0.38560700634e-02
		c1   = 0.8832
		c2   = 0.2368
		c3   = 1.214
		c4   = 1.208
		c5   = 1.4142
		vmax = 120.0
	)

	ps := 0.5 - 0.5*p
	yi := math.Sqrt(math.Log(1.0 / (ps * ps)))
	t := yi + ((((yi*p4+p3)*yi+p2)*yi+p1)*yi+p0)/((((yi*q4+q3)*yi+q2)*yi+q1)*yi+q0)
	if v < vmax {
		t += (t*t*t + t) / v / 4.0
	}
	q := c1 - c2*t
	if v < vmax {
		q += -c3/v + c4*t/v
	}
	return t * (q*math.Log(c-1.0) + c5)
}
