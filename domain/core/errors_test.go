package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDegenerateDesignErrorMatching(t *testing.T) {
	err := NewDegenerateDesignError("sex", 0, "factor has a single level")

	assert.True(t, IsDegenerateDesign(err))
	assert.False(t, IsIngestionError(err))

	var dde *DegenerateDesignError
	require.True(t, errors.As(err, &dde))
	assert.Equal(t, "sex", dde.Term)
	assert.Equal(t, 0, dde.DF)
	assert.Contains(t, err.Error(), "df=0")
}

func TestMissingColumnIsIngestionError(t *testing.T) {
	err := NewMissingColumnError("age")
	assert.True(t, IsIngestionError(err))
	assert.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), "age")
}
