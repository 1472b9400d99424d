// Package dataset derives typed clinical records from a raw table and filters them
// down to the complete analysis set.
package dataset

import (
	"math"
	"sort"
	"strconv"
	"time"

	"golos/adapters/datareadiness/coercer"
	"golos/adapters/excel"
	"golos/domain/clinical"
	"golos/domain/core"
	"golos/internal"
	"golos/internal/config"
)

// Processor derives clinical records from raw rows
type Processor struct {
	fields  config.FieldMap
	coercer *coercer.TypeCoercer
	logger  *internal.Logger
}

// NewProcessor creates a processor reading the columns named by fields
func NewProcessor(fields config.FieldMap) *Processor {
	return &Processor{
		fields:  fields,
		coercer: coercer.NewTypeCoercer(coercer.DefaultCoercionConfig()),
		logger:  internal.DefaultLogger.With("Derivation"),
	}
}

// WithLogger replaces the logger, keeping the Derivation component prefix
func (p *Processor) WithLogger(logger *internal.Logger) *Processor {
	if logger != nil {
		p.logger = logger.With("Derivation")
	}
	return p
}

// AgeGroup places age in its half-open interval. Ages outside [0,100) have no group.
func AgeGroup(age float64) (string, bool) {
	if math.IsNaN(age) {
		return "", false
	}
	breaks := clinical.AgeBreaks
	for i := 0; i < len(breaks)-1; i++ {
		if age >= breaks[i] && age < breaks[i+1] {
			return clinical.AgeGroupLevels[i], true
		}
	}
	return "", false
}

// LengthOfStay returns whole calendar days from admission to discharge
func LengthOfStay(admission, discharge time.Time) float64 {
	return math.Round(discharge.Sub(admission).Hours() / 24)
}

// Derive turns every raw row into a record. Fields that cannot be populated are
// marked missing with a reason rather than failing the run.
func (p *Processor) Derive(data *excel.TabularData) *clinical.Dataset {
	records := make([]clinical.Record, 0, len(data.Rows))
	for i, row := range data.Rows {
		records = append(records, p.deriveRow(i+1, row))
	}
	p.logger.Debug("derived %d records", len(records))
	return &clinical.Dataset{Records: records}
}

func (p *Processor) deriveRow(rowNum int, row excel.RawRowData) clinical.Record {
	rec := clinical.Record{
		Row:      rowNum,
		ID:       core.SubjectID(row[p.fields.ID]),
		Missing:  make(map[string]clinical.ExclusionReason),
		Rejected: make(map[string]string),
	}
	if rec.ID == "" {
		rec.ID = core.SubjectID("row-" + strconv.Itoa(rowNum))
	}

	rawAge := row[p.fields.Age]
	switch age, ok := p.coercer.ParseNumeric(rawAge); {
	case p.coercer.IsMissing(rawAge):
		reject(&rec, clinical.FieldAgeGroup, clinical.ExcludedMissingField, rawAge)
	case !ok:
		reject(&rec, clinical.FieldAgeGroup, clinical.ExcludedAgeUnparseable, rawAge)
	default:
		rec.Age = age
		if group, ok := AgeGroup(age); ok {
			rec.AgeGroup = group
		} else {
			reject(&rec, clinical.FieldAgeGroup, clinical.ExcludedAgeOutOfRange, rawAge)
		}
	}

	if level, ok := p.coercer.NormalizeLevel(row[p.fields.Sex]); ok {
		rec.Sex = level
	} else {
		reject(&rec, clinical.FieldSex, clinical.ExcludedMissingField, row[p.fields.Sex])
	}

	if level, ok := p.coercer.NormalizeLevel(row[p.fields.CardiacHistory]); ok {
		rec.CardiacHistory = level
	} else {
		reject(&rec, clinical.FieldCardiacHistory, clinical.ExcludedMissingField, row[p.fields.CardiacHistory])
	}

	rawOutcome := row[p.fields.Outcome]
	if p.coercer.IsMissing(rawOutcome) {
		reject(&rec, clinical.FieldOutcome, clinical.ExcludedMissingField, rawOutcome)
	} else if bin, ok := p.coercer.ParseBinary(rawOutcome); ok {
		rec.OutcomeBinary = bin
		rec.Outcome = strconv.Itoa(int(bin))
	} else {
		reject(&rec, clinical.FieldOutcome, clinical.ExcludedOutcomeUnparseable, rawOutcome)
	}

	rawAdmission, rawDischarge := row[p.fields.AdmissionDate], row[p.fields.DischargeDate]
	admission, admOK := p.parseDate(rawAdmission, &rec)
	discharge, disOK := p.parseDate(rawDischarge, &rec)
	if admOK && disOK {
		rec.AdmissionDate = admission
		rec.DischargeDate = discharge
		los := LengthOfStay(admission, discharge)
		if los < 0 {
			reject(&rec, clinical.FieldLengthOfStay, clinical.ExcludedNegativeStay, rawAdmission+" > "+rawDischarge)
		} else {
			rec.LengthOfStay = los
		}
	}

	return rec
}

func (p *Processor) parseDate(raw string, rec *clinical.Record) (time.Time, bool) {
	if p.coercer.IsMissing(raw) {
		reject(rec, clinical.FieldLengthOfStay, clinical.ExcludedMissingField, raw)
		return time.Time{}, false
	}
	t, ok := p.coercer.ParseDate(raw)
	if !ok {
		reject(rec, clinical.FieldLengthOfStay, clinical.ExcludedDateUnparseable, raw)
	}
	return t, ok
}

// reject marks field missing. The first raw cell rejected for a field is kept.
func reject(rec *clinical.Record, field string, reason clinical.ExclusionReason, raw string) {
	if _, seen := rec.Missing[field]; seen {
		return
	}
	rec.Missing[field] = reason
	rec.Rejected[field] = raw
}

// Filter returns a new dataset holding only complete records. Dropped records are
// appended to the exclusion log; filtering a filtered dataset returns an equal one.
func Filter(ds *clinical.Dataset) *clinical.Dataset {
	kept := make([]clinical.Record, 0, len(ds.Records))
	exclusions := append([]clinical.Exclusion(nil), ds.Exclusions...)

	for _, rec := range ds.Records {
		if rec.Complete() {
			kept = append(kept, rec)
			continue
		}
		field := firstMissingField(rec)
		exclusions = append(exclusions, clinical.Exclusion{
			Row:    rec.Row,
			ID:     rec.ID,
			Field:  field,
			Reason: rec.Missing[field],
			Value:  rec.Rejected[field],
		})
	}

	return &clinical.Dataset{Records: kept, Exclusions: exclusions}
}

func firstMissingField(rec clinical.Record) string {
	fields := make([]string, 0, len(rec.Missing))
	for f := range rec.Missing {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields[0]
}

// Prepare runs derivation and filtering and logs the exclusion summary
func (p *Processor) Prepare(data *excel.TabularData) *clinical.Dataset {
	filtered := Filter(p.Derive(data))
	for reason, n := range filtered.ExclusionCounts() {
		p.logger.Info("excluded %d rows: %s", n, reason)
	}
	p.logger.Info("retained %d of %d rows", filtered.Len(), len(data.Rows))
	return filtered
}
