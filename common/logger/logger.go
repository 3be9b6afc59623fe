package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rainbow-me/platform-shutdown/common/env"
)

const (
	StringJSONEncoderName = "string_json"
	MessageKey            = "message"

	// LevelEnvKey optionally overrides the environment's default level, e.g. LOG_LEVEL=trace.
	LevelEnvKey = "LOG_LEVEL"
)

var (
	registerEncoderOnce sync.Once
	registerEncoderErr  error

	instance atomic.Pointer[Logger]
)

type stringJSONEncoder struct {
	zapcore.Encoder
}

func newStringJSONEncoder(cfg zapcore.EncoderConfig) *stringJSONEncoder {
	return &stringJSONEncoder{zapcore.NewJSONEncoder(cfg)}
}

// NewStringJSONEncoder returns an encoder that encodes the JSON log dict as a string
// so the log processing pipeline can correctly process logs with nested JSON.
func NewStringJSONEncoder(cfg zapcore.EncoderConfig) (zapcore.Encoder, error) {
	return newStringJSONEncoder(cfg), nil
}

// Logger is the platform logger. It is a *zap.Logger with an extra Trace level.
type Logger struct {
	*zap.Logger

	// trace skips one more frame so the caller of Trace is reported instead of this file.
	trace *zap.Logger
}

// NewLogger wraps a zap logger. A nil logger is replaced with a no-op one.
func NewLogger(l *zap.Logger) *Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return &Logger{
		Logger: l,
		trace:  l.WithOptions(zap.AddCallerSkip(1)),
	}
}

// Trace logs a message below debug level.
func (l *Logger) Trace(msg string, fields ...Field) {
	if ce := l.trace.Check(TraceLevel.Zap(), msg); ce != nil {
		ce.Write(fields...)
	}
}

// With returns a child logger carrying the given fields.
func (l *Logger) With(fields ...Field) *Logger {
	return NewLogger(l.Logger.With(fields...))
}

// Instance returns the process logger set with SetInstance, or a no-op logger.
func Instance() *Logger {
	if l := instance.Load(); l != nil {
		return l
	}
	return NewLogger(nil)
}

// SetInstance replaces the process logger returned by Instance.
func SetInstance(l *Logger) {
	instance.Store(l)
}

// InitLogger initializes and returns a configured logger with environment-specific settings.
func InitLogger(zapOpts ...zap.Option) (*Logger, error) {
	var (
		config  zap.Config
		options []zap.Option
	)

	currentEnv := os.Getenv(env.ApplicationEnvKey)
	if err := env.IsEnvironmentValid(currentEnv); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	registerEncoderOnce.Do(func() {
		registerEncoderErr = zap.RegisterEncoder(StringJSONEncoderName, NewStringJSONEncoder)
	})
	if registerEncoderErr != nil {
		return nil, fmt.Errorf("failed to register string JSON encoder: %w", registerEncoderErr)
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:       "timestamp",
		LevelKey:      "level",
		NameKey:       "logger",
		CallerKey:     "caller",
		FunctionKey:   zapcore.OmitKey,
		MessageKey:    MessageKey,
		StacktraceKey: "stacktrace",
		EncodeTime:    zapcore.ISO8601TimeEncoder,
		EncodeLevel:   capitalLevelEncoder,
		EncodeCaller:  zapcore.ShortCallerEncoder,
	}

	switch env.Environment(currentEnv) {
	case env.EnvironmentLocal:
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.MessageKey = MessageKey
		config.EncoderConfig.EncodeLevel = capitalColorLevelEncoder

	case env.EnvironmentLocalDocker, env.EnvironmentDevelopment, env.EnvironmentStaging:
		// JSON logs for Datadog ingestion
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig = encoderConfig
		config.Encoding = StringJSONEncoderName

	case env.EnvironmentProduction:
		config = zap.NewProductionConfig()
		config.EncoderConfig = encoderConfig
		config.Encoding = StringJSONEncoderName
		config.Level.SetLevel(zap.InfoLevel)
	}
	options = append(options, zap.AddStacktrace(zap.ErrorLevel))

	if raw, ok := os.LookupEnv(LevelEnvKey); ok && raw != "" {
		level, err := ParseLevel(raw)
		if err != nil {
			return nil, err
		}
		config.Level.SetLevel(level.Zap())
	}

	options = append(options, zapOpts...)

	zl, err := config.Build(options...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return NewLogger(zl), nil
}

// ParseLevel parses a level name, accepting "trace" in addition to zap's names.
func ParseLevel(raw string) (Level, error) {
	if strings.EqualFold(strings.TrimSpace(raw), "trace") {
		return TraceLevel, nil
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", LevelEnvKey, raw, err)
	}
	return Level(lvl), nil
}

func capitalLevelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if Level(l) == TraceLevel {
		enc.AppendString("TRACE")
		return
	}
	zapcore.CapitalLevelEncoder(l, enc)
}

func capitalColorLevelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if Level(l) == TraceLevel {
		enc.AppendString("\x1b[35mTRACE\x1b[0m")
		return
	}
	zapcore.CapitalColorLevelEncoder(l, enc)
}
