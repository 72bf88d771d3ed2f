package system

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLogger(t *testing.T) {
	logger := NewLogger(false)
	assert.NotNil(t, logger)
	logger.Infow("production logger works", "key", "value")

	debugLogger := NewLogger(true)
	assert.NotNil(t, debugLogger)
	debugLogger.Debugw("debug logger works")
}

func TestNewTestLogger(t *testing.T) {
	logger := NewTestLogger()
	assert.NotNil(t, logger)
	logger.Warnw("test logger works", "error", "none")
}
