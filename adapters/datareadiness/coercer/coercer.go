package coercer

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// TypeCoercer handles deterministic parsing of raw cell strings
type TypeCoercer struct {
	config CoercionConfig
}

// CoercionConfig defines the tokens and layouts recognised during parsing
type CoercionConfig struct {
	MissingTokens []string `json:"missing_tokens"`
	DateLayouts   []string `json:"date_layouts"`
	// Serial day numbers inside this range are read as spreadsheet dates
	MinDateSerial float64 `json:"min_date_serial"`
	MaxDateSerial float64 `json:"max_date_serial"`
}

// DefaultCoercionConfig returns sensible defaults
func DefaultCoercionConfig() CoercionConfig {
	return CoercionConfig{
		MissingTokens: []string{"", "na", "n/a", "nan", "null", "none", "."},
		DateLayouts: []string{
			"2006-01-02",
			"2006/01/02",
			"01/02/2006",
			"1/2/2006",
			"2006-01-02 15:04:05",
			"2006-01-02T15:04:05",
			time.RFC3339,
			"02-Jan-2006",
		},
		MinDateSerial: 20000, // 1954-10-03
		MaxDateSerial: 80000, // 2119-01-10
	}
}

// NewTypeCoercer creates a coercer with the given config
func NewTypeCoercer(config CoercionConfig) *TypeCoercer {
	return &TypeCoercer{config: config}
}

// IsMissing reports whether a raw cell denotes an absent value
func (c *TypeCoercer) IsMissing(raw string) bool {
	v := strings.ToLower(strings.TrimSpace(raw))
	for _, token := range c.config.MissingTokens {
		if v == token {
			return true
		}
	}
	return false
}

// ParseNumeric parses a finite number. Parentheses denote negatives and a lone comma
// is read as a decimal separator.
func (c *TypeCoercer) ParseNumeric(raw string) (float64, bool) {
	if c.IsMissing(raw) {
		return 0, false
	}
	cleanVal := strings.TrimSpace(raw)

	isNegative := false
	if strings.HasPrefix(cleanVal, "(") && strings.HasSuffix(cleanVal, ")") {
		cleanVal = strings.TrimSuffix(strings.TrimPrefix(cleanVal, "("), ")")
		isNegative = true
	}

	hasComma := strings.Contains(cleanVal, ",")
	hasPeriod := strings.Contains(cleanVal, ".")
	if hasComma && !hasPeriod && strings.Count(cleanVal, ",") == 1 {
		cleanVal = strings.ReplaceAll(cleanVal, ",", ".")
	} else {
		cleanVal = strings.ReplaceAll(cleanVal, ",", "")
	}
	cleanVal = strings.ReplaceAll(cleanVal, " ", "")

	if isNegative {
		cleanVal = "-" + cleanVal
	}

	val, err := strconv.ParseFloat(cleanVal, 64)
	if err != nil || math.IsInf(val, 0) || math.IsNaN(val) {
		return 0, false
	}
	return val, true
}

// ParseBinary parses a two-valued indicator into 0 or 1
func (c *TypeCoercer) ParseBinary(raw string) (float64, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "1.0", "yes", "y":
		return 1, true
	case "false", "0", "0.0", "no", "n":
		return 0, true
	}
	return 0, false
}

// ParseDate parses a calendar date and truncates it to midnight UTC
func (c *TypeCoercer) ParseDate(raw string) (time.Time, bool) {
	if c.IsMissing(raw) {
		return time.Time{}, false
	}
	strVal := strings.TrimSpace(raw)

	for _, layout := range c.config.DateLayouts {
		if t, err := time.Parse(layout, strVal); err == nil {
			return truncateToDate(t), true
		}
	}

	if serial, err := strconv.ParseFloat(strVal, 64); err == nil {
		if serial >= c.config.MinDateSerial && serial <= c.config.MaxDateSerial {
			if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
				return truncateToDate(t), true
			}
		}
	}

	return time.Time{}, false
}

// NormalizeLevel trims a categorical code; integral floats lose their fraction so
// "1.0" and "1" name the same level.
func (c *TypeCoercer) NormalizeLevel(raw string) (string, bool) {
	if c.IsMissing(raw) {
		return "", false
	}
	v := strings.TrimSpace(raw)
	if f, err := strconv.ParseFloat(v, 64); err == nil && f == math.Trunc(f) && !math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'f', -1, 64), true
	}
	return v, true
}

func truncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
