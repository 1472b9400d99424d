package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func termNames(spec ModelSpec) []string {
	names := make([]string, len(spec.Terms))
	for i, t := range spec.Terms {
		names[i] = t.Name()
	}
	return names
}

func TestFullFactorialOrdering(t *testing.T) {
	spec := FullFactorial("los", "sex", "age_group", "cardiac_history")
	assert.Equal(t, []string{
		"sex", "age_group", "cardiac_history",
		"sex:age_group", "sex:cardiac_history", "age_group:cardiac_history",
		"sex:age_group:cardiac_history",
	}, termNames(spec))
	assert.Equal(t, "los ~ sex + age_group + cardiac_history + sex:age_group + sex:cardiac_history + age_group:cardiac_history + sex:age_group:cardiac_history", spec.Formula())
}

func TestHierarchicalClosure(t *testing.T) {
	factors := []string{"sex", "age_group", "cardiac_history"}

	spec := Hierarchical("los", factors, []Term{{"age_group", "cardiac_history"}})
	assert.Equal(t, []string{"age_group", "cardiac_history"}, spec.Factors)
	assert.Equal(t, []string{"age_group", "cardiac_history", "age_group:cardiac_history"}, termNames(spec))

	spec = Hierarchical("los", factors, []Term{{"sex"}, {"age_group", "cardiac_history"}})
	assert.Equal(t, []string{"sex", "age_group", "cardiac_history", "age_group:cardiac_history"}, termNames(spec))

	empty := Hierarchical("los", factors, nil)
	assert.Empty(t, empty.Terms)
	assert.Equal(t, "los ~ 1", empty.Formula())
}

func TestNestingAndWithout(t *testing.T) {
	full := FullFactorial("los", "a", "b")
	reduced := full.Without(Term{"a", "b"})
	assert.True(t, reduced.NestedIn(full))
	assert.False(t, full.NestedIn(reduced))
	assert.True(t, full.HasTerm(Term{"b", "a"}))
	assert.False(t, reduced.HasTerm(Term{"a", "b"}))
	assert.True(t, full.HasFactor("b"))
}

func TestClassifyDelta(t *testing.T) {
	assert.Equal(t, EvidenceStrong, ClassifyDelta(-12))
	assert.Equal(t, EvidenceNotable, ClassifyDelta(3))
	assert.Equal(t, EvidenceNegligible, ClassifyDelta(1.5))
}
