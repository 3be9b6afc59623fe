package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Field = zap.Field

var (
	Any      = zap.Any
	Bool     = zap.Bool
	Duration = zap.Duration
	Int      = zap.Int
	Int64    = zap.Int64
	String   = zap.String
	Strings  = zap.Strings
	Stringer = zap.Stringer
	Error    = zap.Error
	Errors   = zap.Errors
)

type Level zapcore.Level

const (
	// TraceLevel sits one step below zap's DebugLevel. It is only emitted when the
	// logger level is explicitly lowered to it.
	TraceLevel = Level(zapcore.DebugLevel - 1)
	DebugLevel = Level(zapcore.DebugLevel)
	InfoLevel  = Level(zapcore.InfoLevel)
	WarnLevel  = Level(zapcore.WarnLevel)
	ErrorLevel = Level(zapcore.ErrorLevel)
)

// Zap returns the zapcore level.
func (l Level) Zap() zapcore.Level { return zapcore.Level(l) }

// String returns a lower-case name for the level, including "trace".
func (l Level) String() string {
	if l == TraceLevel {
		return "trace"
	}
	return zapcore.Level(l).String()
}
