package system

import (
	"go.uber.org/zap"
)

// NewTestLogger returns the debug console logger built by NewLogger, for tests that
// want readable output but do not assert on it. Use zaptest/observer to assert on logs.
func NewTestLogger() *zap.SugaredLogger {
	logger, _, err := NewLogger(LoggerOptions{Debug: true})
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return logger.Named("test").Sugar()
}
