// Package clinical holds the typed, derived records the analysis pipeline consumes.
package clinical

import (
	"fmt"
	"sort"
	"time"

	"golos/domain/core"
)

// Field names of the derived record, used as factor and response identifiers
const (
	FieldAgeGroup       = "age_group"
	FieldSex            = "sex"
	FieldCardiacHistory = "cardiac_history"
	FieldOutcome        = "outcome"
	FieldLengthOfStay   = "length_of_stay"
)

// Age group labels over the half-open intervals [0,50) [50,65) [65,80) [80,100)
const (
	AgeUnder50 = "<50"
	Age50to65  = "50-65"
	Age65to80  = "65-80"
	Age80Plus  = "80+"
)

// AgeBreaks are the left-closed interval boundaries; the final entry is exclusive.
var AgeBreaks = []float64{0, 50, 65, 80, 100}

// AgeGroupLevels is the fixed level order of the age group factor
var AgeGroupLevels = []string{AgeUnder50, Age50to65, Age65to80, Age80Plus}

// ExclusionReason explains why a raw row did not reach the analysis set
type ExclusionReason string

const (
	ExcludedMissingField       ExclusionReason = "missing_field"
	ExcludedAgeUnparseable     ExclusionReason = "age_unparseable"
	ExcludedAgeOutOfRange      ExclusionReason = "age_out_of_range"
	ExcludedDateUnparseable    ExclusionReason = "date_unparseable"
	ExcludedNegativeStay       ExclusionReason = "negative_length_of_stay"
	ExcludedOutcomeUnparseable ExclusionReason = "outcome_unparseable"
)

// Record is one subject after derivation. Missing maps each field that could not be
// populated to the reason and Rejected to the raw cell behind it; a record with any
// missing field never survives filtering.
type Record struct {
	ID             core.SubjectID
	Row            int
	Age            float64
	AgeGroup       string
	Sex            string
	CardiacHistory string
	Outcome        string
	OutcomeBinary  float64
	AdmissionDate  time.Time
	DischargeDate  time.Time
	LengthOfStay   float64
	Missing        map[string]ExclusionReason
	Rejected       map[string]string
}

// Complete reports whether every retained field is populated
func (r Record) Complete() bool {
	return len(r.Missing) == 0
}

// Level returns the categorical value of a factor field
func (r Record) Level(field string) (string, bool) {
	switch field {
	case FieldAgeGroup:
		return r.AgeGroup, true
	case FieldSex:
		return r.Sex, true
	case FieldCardiacHistory:
		return r.CardiacHistory, true
	case FieldOutcome:
		return r.Outcome, true
	}
	return "", false
}

// Exclusion records a dropped raw row
type Exclusion struct {
	Row    int
	ID     core.SubjectID
	Reason ExclusionReason
	Field  string
	Value  string
}

// Dataset is an ordered, read-only snapshot of derived records
type Dataset struct {
	Records    []Record
	Exclusions []Exclusion
}

// Len returns the number of records
func (d *Dataset) Len() int {
	return len(d.Records)
}

// LengthsOfStay returns the response column in record order
func (d *Dataset) LengthsOfStay() []float64 {
	out := make([]float64, len(d.Records))
	for i, r := range d.Records {
		out[i] = r.LengthOfStay
	}
	return out
}

// ExclusionCounts tallies exclusions by reason
func (d *Dataset) ExclusionCounts() map[ExclusionReason]int {
	counts := make(map[ExclusionReason]int)
	for _, e := range d.Exclusions {
		counts[e.Reason]++
	}
	return counts
}

// Factor is a categorical variable with a fixed, ordered set of levels
type Factor struct {
	Name   string
	Levels []string
}

// Has reports whether level belongs to the factor
func (f Factor) Has(level string) bool {
	for _, l := range f.Levels {
		if l == level {
			return true
		}
	}
	return false
}

// Index returns the position of level, or -1
func (f Factor) Index(level string) int {
	for i, l := range f.Levels {
		if l == level {
			return i
		}
	}
	return -1
}

// ObservedFactor builds the factor for field from the levels present in the dataset.
// The age group keeps its fixed order; other factors are sorted lexically.
func (d *Dataset) ObservedFactor(field string) (Factor, error) {
	if _, ok := (Record{}).Level(field); !ok {
		return Factor{}, fmt.Errorf("%w: %s", core.ErrUnknownFactor, field)
	}

	seen := make(map[string]bool)
	for _, r := range d.Records {
		level, _ := r.Level(field)
		seen[level] = true
	}

	if field == FieldAgeGroup {
		levels := make([]string, 0, len(AgeGroupLevels))
		for _, l := range AgeGroupLevels {
			if seen[l] {
				levels = append(levels, l)
			}
		}
		return Factor{Name: field, Levels: levels}, nil
	}

	levels := make([]string, 0, len(seen))
	for l := range seen {
		levels = append(levels, l)
	}
	sort.Strings(levels)
	return Factor{Name: field, Levels: levels}, nil
}
