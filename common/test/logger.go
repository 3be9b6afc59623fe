package test

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rainbow-me/platform-shutdown/common/logger"
)

// NewLogger returns a logger that only prints if a test fails
func NewLogger(t *testing.T) *logger.Logger {
	return logger.NewLogger(zaptest.NewLogger(t, zaptest.Level(logger.TraceLevel.Zap())))
}

// NewObservedLogger returns a logger recording every entry, trace included, for assertions.
func NewObservedLogger() (*logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(logger.TraceLevel.Zap())
	return logger.NewLogger(zap.New(core)), logs
}
