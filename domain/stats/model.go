package stats

import (
	"sort"
	"strings"
)

// Term is a main effect (one factor) or an interaction (several factors). Factor names
// are kept in model factor order.
type Term []string

// Name renders the term in formula notation, e.g. "sex:age_group"
func (t Term) Name() string {
	return strings.Join(t, ":")
}

// Order is the number of factors in the term
func (t Term) Order() int {
	return len(t)
}

// Contains reports whether every factor of other appears in t
func (t Term) Contains(other Term) bool {
	for _, f := range other {
		found := false
		for _, g := range t {
			if f == g {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Equal compares terms as factor sets
func (t Term) Equal(other Term) bool {
	return len(t) == len(other) && t.Contains(other)
}

// ModelSpec is a response, its factors, and the model terms. The intercept is implicit.
type ModelSpec struct {
	Response string
	Factors  []string
	Terms    []Term
}

// FullFactorial builds every main effect and interaction of factors, ordered by
// interaction order and then by factor position.
func FullFactorial(response string, factors ...string) ModelSpec {
	n := len(factors)
	var terms []Term
	for mask := 1; mask < 1<<n; mask++ {
		var t Term
		for i := 0; i < n; i++ {
			if mask&(1<<i) != 0 {
				t = append(t, factors[i])
			}
		}
		terms = append(terms, t)
	}
	spec := ModelSpec{Response: response, Factors: append([]string(nil), factors...), Terms: terms}
	spec.sortTerms()
	return spec
}

// Hierarchical builds the smallest model containing every term in keep together with
// all of their lower-order margins. Factors not used by any term are dropped.
func Hierarchical(response string, factors []string, keep []Term) ModelSpec {
	var used []string
	for _, f := range factors {
		for _, t := range keep {
			if t.Contains(Term{f}) {
				used = append(used, f)
				break
			}
		}
	}

	full := FullFactorial(response, used...)
	var terms []Term
	for _, candidate := range full.Terms {
		for _, t := range keep {
			if t.Contains(candidate) {
				terms = append(terms, candidate)
				break
			}
		}
	}
	return ModelSpec{Response: response, Factors: used, Terms: terms}
}

// Formula renders the spec, e.g. "y ~ a + b + a:b"
func (s ModelSpec) Formula() string {
	if len(s.Terms) == 0 {
		return s.Response + " ~ 1"
	}
	names := make([]string, len(s.Terms))
	for i, t := range s.Terms {
		names[i] = t.Name()
	}
	return s.Response + " ~ " + strings.Join(names, " + ")
}

// HasTerm reports whether the spec includes t
func (s ModelSpec) HasTerm(t Term) bool {
	for _, u := range s.Terms {
		if u.Equal(t) {
			return true
		}
	}
	return false
}

// HasFactor reports whether the spec uses factor
func (s ModelSpec) HasFactor(factor string) bool {
	for _, f := range s.Factors {
		if f == factor {
			return true
		}
	}
	return false
}

// Without returns the spec minus the listed terms
func (s ModelSpec) Without(drop ...Term) ModelSpec {
	out := ModelSpec{Response: s.Response, Factors: s.Factors}
	for _, t := range s.Terms {
		dropped := false
		for _, d := range drop {
			if t.Equal(d) {
				dropped = true
				break
			}
		}
		if !dropped {
			out.Terms = append(out.Terms, t)
		}
	}
	return out
}

// NestedIn reports whether every term of s appears in other
func (s ModelSpec) NestedIn(other ModelSpec) bool {
	if s.Response != other.Response {
		return false
	}
	for _, t := range s.Terms {
		if !other.HasTerm(t) {
			return false
		}
	}
	return true
}

func (s *ModelSpec) sortTerms() {
	pos := make(map[string]int, len(s.Factors))
	for i, f := range s.Factors {
		pos[f] = i
	}
	sort.SliceStable(s.Terms, func(i, j int) bool {
		a, b := s.Terms[i], s.Terms[j]
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		for k := range a {
			if pos[a[k]] != pos[b[k]] {
				return pos[a[k]] < pos[b[k]]
			}
		}
		return false
	})
}
