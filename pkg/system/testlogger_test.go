package system

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewTestLogger(t *testing.T) {
	logger := NewTestLogger()
	require.NotNil(t, logger)

	assert.True(t, logger.Desugar().Core().Enabled(zap.DebugLevel), "test logger logs at debug level")
	logger.Infow("test message with fields", "key", "value")
}
