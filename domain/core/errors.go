package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Ingestion errors
	ErrIngestion     = errors.New("dataset ingestion failed")
	ErrMissingColumn = fmt.Errorf("%w: required column missing", ErrIngestion)
	ErrEmptyDataset  = fmt.Errorf("%w: no data rows", ErrIngestion)

	// Model errors
	ErrDegenerateDesign  = errors.New("degenerate design")
	ErrInsufficientData  = errors.New("insufficient data for analysis")
	ErrFactorNotInModel  = errors.New("factor not present in model")
	ErrInvalidResponse   = errors.New("response not valid for transformation")
	ErrNonNestedModels   = errors.New("models are not nested")
	ErrUnknownFactor     = errors.New("unknown factor")
	ErrNoSurvivingFactor = errors.New("no factor survives selection")
)

// DegenerateDesignError reports a model term that cannot be estimated from the data.
// DF is the number of estimable columns the term contributed before the failure.
type DegenerateDesignError struct {
	Term   string
	DF     int
	Reason string
}

func (e *DegenerateDesignError) Error() string {
	return fmt.Sprintf("%v: term %s (df=%d): %s", ErrDegenerateDesign, e.Term, e.DF, e.Reason)
}

func (e *DegenerateDesignError) Unwrap() error {
	return ErrDegenerateDesign
}

// NewDegenerateDesignError constructs a DegenerateDesignError
func NewDegenerateDesignError(term string, df int, reason string) error {
	return &DegenerateDesignError{Term: term, DF: df, Reason: reason}
}

// NewMissingColumnError names the column absent from the source header
func NewMissingColumnError(column string) error {
	return fmt.Errorf("%w: %s", ErrMissingColumn, column)
}

func NewInsufficientDataError(stage string, have, need int) error {
	return fmt.Errorf("%w: %s needs at least %d observations, have %d", ErrInsufficientData, stage, need, have)
}

// Error checking helpers
func IsDegenerateDesign(err error) bool {
	return errors.Is(err, ErrDegenerateDesign)
}

func IsIngestionError(err error) bool {
	return errors.Is(err, ErrIngestion)
}
