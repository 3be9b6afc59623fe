package observability

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/DataDog/dd-trace-go/v2/ddtrace/ext"
	"github.com/DataDog/dd-trace-go/v2/ddtrace/tracer"
	"github.com/cockroachdb/errors"

	"github.com/rainbow-me/platform-shutdown/common/logger"
	"github.com/rainbow-me/platform-shutdown/shutdown"
)

const (
	shutdownOp = "shutdown"
	phaseOp    = "shutdown.phase"
)

// StartSpan is a helper function that we should always use instead of tracer.StartSpanFromContext to ensure that our
// context logger gets updated with trace and span ID.
func StartSpan(ctx context.Context, opName string, opts ...tracer.StartSpanOption) (*tracer.Span, context.Context) {
	span, ctx := tracer.StartSpanFromContext(ctx, opName, opts...)
	ctx = logger.ContextWithFields(ctx, TraceFields(span)...)
	return span, ctx
}

// TraceFields returns the log fields DataDog uses to correlate logs with a span.
func TraceFields(span *tracer.Span) []logger.Field {
	if span == nil {
		return nil
	}
	sc := span.Context()
	return []logger.Field{
		logger.String("dd.trace_id", strconv.FormatUint(sc.TraceIDLower(), 10)),
		logger.String("dd.span_id", strconv.FormatUint(sc.SpanID(), 10)),
	}
}

// SpanObserver records one trace per shutdown: a root span covering the whole
// sequence and a child span per phase. A non-zero exit code marks the root span
// as failed.
type SpanObserver struct {
	shutdown.NopObserver

	// Flush runs after the root span is finished, for example a tracer StopFunc.
	Flush func()

	mu    sync.Mutex
	ctx   context.Context
	root  *tracer.Span
	phase *tracer.Span
	event string
}

var _ shutdown.Observer = (*SpanObserver)(nil)

func (o *SpanObserver) Triggered(event string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.event = event
	o.root, o.ctx = StartSpan(context.Background(), shutdownOp,
		tracer.ResourceName(event),
		tracer.Tag(ext.Component, "shutdown"),
		tracer.Tag("shutdown.event", event),
	)
}

func (o *SpanObserver) StateChanged(_, to shutdown.State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.root == nil {
		return
	}
	if o.phase != nil {
		o.phase.Finish()
		o.phase = nil
	}
	o.root.SetTag("shutdown.state", to.String())
	if to == shutdown.Terminated {
		return
	}
	o.phase, _ = StartSpan(o.ctx, phaseOp, tracer.ResourceName(to.String()))
}

// Context carries the root span and a logger tagged with its trace fields, so
// teardown work can join the shutdown trace. It is context.Background before
// a trigger.
func (o *SpanObserver) Context() context.Context {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ctx == nil {
		return context.Background()
	}
	return o.ctx
}

func (o *SpanObserver) Drained(forced bool, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.root == nil {
		return
	}
	o.root.SetTag("shutdown.drain.forced", forced)
	o.root.SetTag("shutdown.drain.elapsed_ms", elapsed.Milliseconds())
}

func (o *SpanObserver) TornDown(err error, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.root == nil {
		return
	}
	o.root.SetTag("shutdown.teardown.elapsed_ms", elapsed.Milliseconds())
	if err != nil {
		o.root.SetTag("shutdown.teardown.error", err.Error())
	}
}

func (o *SpanObserver) Exited(code int) {
	o.mu.Lock()
	root, phase := o.root, o.phase
	o.root, o.phase, o.ctx = nil, nil, nil
	o.mu.Unlock()

	if root == nil {
		return
	}
	if phase != nil {
		phase.Finish()
	}
	root.SetTag("shutdown.exit_code", code)

	var finishOpts []tracer.FinishOption
	if code != 0 {
		finishOpts = append(finishOpts, tracer.WithError(errors.Newf("shutdown exited with code %d", code)))
	}
	root.Finish(finishOpts...)

	if o.Flush != nil {
		o.Flush()
	}
}
