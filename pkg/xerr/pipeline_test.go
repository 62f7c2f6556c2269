package xerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPipelineError_Message(t *testing.T) {
	cause := errors.New("connection refused")

	err := Pipeline(StageFetch, ErrFetchFailed, cause, "")
	assert.Equal(t, "fetch failed: connection refused", err.Error())
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.ErrorIs(t, err, cause)

	err = Pipeline(StageFetch, ErrEmptyFetchResult, nil, "reader did not return expected result: {}")
	assert.Equal(t, "empty fetch result: reader did not return expected result: {}", err.Error())
	assert.ErrorIs(t, err, ErrEmptyFetchResult)
	assert.NotErrorIs(t, err, ErrFetchFailed)
}

func TestStageOf(t *testing.T) {
	wrapped := fmt.Errorf("cycle: %w", Pipeline(StageRecord, ErrEmptyRecordInput, nil, ""))
	stage, ok := StageOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, StageRecord, stage)

	_, ok = StageOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestConfigError(t *testing.T) {
	err := NewConfigError("symbol", "requires a symbol")
	assert.Equal(t, "config: symbol: requires a symbol", err.Error())

	var ce *ConfigError
	assert.ErrorAs(t, err, &ce)
	assert.Equal(t, "symbol", ce.Field)

	assert.Equal(t, "config: config must not be nil", NewConfigError("", "config must not be nil").Error())
}
