package observability

import (
	"context"

	"github.com/DataDog/dd-trace-go/v2/ddtrace/tracer"
	"github.com/cockroachdb/errors"

	"github.com/rainbow-me/platform-shutdown/common/logger"
)

type tracerSettings struct {
	version        string
	runtimeMetrics bool
	debugStack     bool
}

// Option customises the tracer started by InitObservability.
type Option func(s *tracerSettings)

// WithVersion tags every span with the service version.
func WithVersion(version string) Option {
	return func(s *tracerSettings) { s.version = version }
}

// WithRuntimeMetrics toggles Go runtime metrics. Enabled by default.
func WithRuntimeMetrics(enabled bool) Option {
	return func(s *tracerSettings) { s.runtimeMetrics = enabled }
}

// WithDebugStack attaches stack traces to errored spans. Disabled by default.
func WithDebugStack(enabled bool) Option {
	return func(s *tracerSettings) { s.debugStack = enabled }
}

// StopFunc flushes pending traces and stops the tracer. It has the shape of a
// shutdown teardown step.
type StopFunc func(ctx context.Context) error

// InitObservability starts the DataDog tracer for serviceName in env.
// The returned StopFunc must run last during shutdown since spans finished after it are dropped.
func InitObservability(serviceName, env string, log *logger.Logger, opts ...Option) StopFunc {
	s := &tracerSettings{runtimeMetrics: true}
	for _, opt := range opts {
		opt(s)
	}
	log.Info("Starting tracer", logger.String("service", serviceName), logger.String("env", env))

	startOpts := []tracer.StartOption{
		tracer.WithEnv(env),
		tracer.WithService(serviceName),
		tracer.WithLogger(&tracerLogger{log: log}),
		tracer.WithDebugStack(s.debugStack),
	}
	if s.version != "" {
		startOpts = append(startOpts, tracer.WithServiceVersion(s.version))
	}
	if s.runtimeMetrics {
		startOpts = append(startOpts, tracer.WithRuntimeMetrics())
	}
	if err := tracer.Start(startOpts...); err != nil {
		log.Error("Failed to start tracer", logger.Error(err))
	}

	return func(ctx context.Context) error {
		log.Info("Stopping tracer")
		stopped := make(chan struct{})
		go func() {
			tracer.Flush()
			tracer.Stop()
			close(stopped)
		}()
		select {
		case <-stopped:
			return nil
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "tracer did not stop in time")
		}
	}
}

// tracerLogger routes tracer diagnostics to our logger at trace level.
type tracerLogger struct {
	log *logger.Logger
}

func (l *tracerLogger) Log(msg string) {
	if l == nil || l.log == nil {
		return
	}
	l.log.Trace(msg, logger.String("component", "dd-trace-go"))
}
