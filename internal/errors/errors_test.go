package errors

import (
	stderrors "errors"
	"testing"

	"golos/domain/core"

	"github.com/stretchr/testify/assert"
)

func TestWrapClassifiesDomainSentinels(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code string
	}{
		{"ingestion", core.NewMissingColumnError("age"), CodeIngestion},
		{"degenerate", core.NewDegenerateDesignError("sex", 0, "single level"), CodeDegenerateDesign},
		{"insufficient", core.NewInsufficientDataError("shapiro", 2, 3), CodeInsufficientData},
		{"invalid", core.ErrInvalidResponse, CodeInvalidInput},
		{"other", stderrors.New("boom"), CodeInternalError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wrapped := Wrap(tc.err, "stage failed")
			assert.Equal(t, tc.code, GetCode(wrapped))
			assert.ErrorIs(t, wrapped, tc.err)
		})
	}
}

func TestWrapPreservesAppErrorCode(t *testing.T) {
	base := ConfigInvalid("alpha must be in (0,1)")
	wrapped := Wrapf(base, "load %s", "params.yaml")
	assert.Equal(t, CodeConfigInvalid, GetCode(wrapped))
	assert.Contains(t, wrapped.Error(), "alpha must be in (0,1)")
	assert.Nil(t, Wrap(nil, "noop"))
}

func TestWithCode(t *testing.T) {
	err := WithCode(CodeReportWriteFailed, stderrors.New("disk full"))
	assert.True(t, IsAppError(err))
	assert.Equal(t, CodeReportWriteFailed, GetCode(err))
	assert.Equal(t, "UNKNOWN", GetCode(stderrors.New("plain")))
}
