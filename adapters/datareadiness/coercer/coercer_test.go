package coercer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsMissing(t *testing.T) {
	c := NewTypeCoercer(DefaultCoercionConfig())
	for _, raw := range []string{"", " ", "NA", "n/a", "NaN", "null", "."} {
		assert.True(t, c.IsMissing(raw), raw)
	}
	assert.False(t, c.IsMissing("0"))
}

func TestParseNumeric(t *testing.T) {
	c := NewTypeCoercer(DefaultCoercionConfig())
	cases := map[string]float64{
		"45":    45,
		" 67.5": 67.5,
		"67,5":  67.5,
		"(3)":   -3,
		"1e2":   100,
	}
	for raw, want := range cases {
		got, ok := c.ParseNumeric(raw)
		assert.True(t, ok, raw)
		assert.InDelta(t, want, got, 1e-12, raw)
	}
	for _, raw := range []string{"abc", "NA", "Inf"} {
		_, ok := c.ParseNumeric(raw)
		assert.False(t, ok, raw)
	}
}

func TestParseDate(t *testing.T) {
	c := NewTypeCoercer(DefaultCoercionConfig())
	want := time.Date(2023, 3, 14, 0, 0, 0, 0, time.UTC)

	for _, raw := range []string{"2023-03-14", "2023/03/14", "03/14/2023", "2023-03-14 17:45:00", "2023-03-14T08:00:00Z"} {
		got, ok := c.ParseDate(raw)
		assert.True(t, ok, raw)
		assert.True(t, want.Equal(got), "%s parsed as %s", raw, got)
	}

	got, ok := c.ParseDate("45000")
	assert.True(t, ok)
	assert.Equal(t, time.Date(2023, 3, 15, 0, 0, 0, 0, time.UTC), got)

	for _, raw := range []string{"2023-13-01", "yesterday", "12", ""} {
		_, ok := c.ParseDate(raw)
		assert.False(t, ok, raw)
	}
}

func TestParseBinaryAndLevels(t *testing.T) {
	c := NewTypeCoercer(DefaultCoercionConfig())
	v, ok := c.ParseBinary("Yes")
	assert.True(t, ok)
	assert.Equal(t, 1.0, v)
	v, ok = c.ParseBinary("0")
	assert.True(t, ok)
	assert.Equal(t, 0.0, v)
	_, ok = c.ParseBinary("2")
	assert.False(t, ok)

	level, ok := c.NormalizeLevel("1.0")
	assert.True(t, ok)
	assert.Equal(t, "1", level)
	level, _ = c.NormalizeLevel(" female ")
	assert.Equal(t, "female", level)
	_, ok = c.NormalizeLevel("NA")
	assert.False(t, ok)
}
