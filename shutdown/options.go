package shutdown

import (
	"context"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/rainbow-me/platform-shutdown/common/logger"
)

// Logger is the logging capability the controller writes lifecycle messages to.
// *logger.Logger satisfies it.
type Logger interface {
	Trace(msg string, fields ...logger.Field)
	Info(msg string, fields ...logger.Field)
	Error(msg string, fields ...logger.Field)
}

// Teardown is the cleanup run once connections are closed. A nil error is success.
type Teardown func(ctx context.Context) error

// Options configures a Controller.
type Options struct {
	// Events name the external events that trigger shutdown. Required.
	Events []string
	// Server is adapted with Adapt. Required.
	Server any
	// Logger receives lifecycle messages. Required.
	Logger Logger
	// DrainGrace bounds the wait for connections to close on their own. Must be > 0.
	DrainGrace time.Duration
	// NewConnectionsGrace delays the drain so requests routed just before the trigger still land.
	NewConnectionsGrace time.Duration
	// Teardown runs after connections have closed. Optional.
	Teardown Teardown
	// TeardownTimeout bounds Teardown when > 0. Zero waits for Teardown indefinitely.
	TeardownTimeout time.Duration

	// Source delivers Events. Defaults to SignalSource.
	Source EventSource
	// Exit terminates the process. Defaults to os.Exit.
	Exit func(code int)
	// Clock schedules the grace timers. Defaults to WallClock.
	Clock Clock
	// Observer is notified of progress. Optional.
	Observer Observer
}

func (o *Options) setDefaults() {
	if o.Source == nil {
		o.Source = SignalSource{}
	}
	if o.Exit == nil {
		o.Exit = os.Exit
	}
	if o.Clock == nil {
		o.Clock = WallClock()
	}
	if o.Observer == nil {
		o.Observer = NopObserver{}
	}
}

// validate checks every field and adapts the server. It has no side effects.
func (o *Options) validate() (Drainer, error) {
	if len(o.Events) == 0 {
		return nil, configErrorf("events", "is required and must name at least one termination event")
	}
	for i, event := range o.Events {
		if strings.TrimSpace(event) == "" {
			return nil, configErrorf("events", "entry %d must be a non-empty event name", i)
		}
		if !o.Source.Supports(event) {
			return nil, configErrorf("events", "entry %d (%q) is not a supported termination event", i, event)
		}
	}
	if o.NewConnectionsGrace < 0 {
		return nil, configErrorf("newConnectionsGrace", "must be a positive duration or zero, got %s", o.NewConnectionsGrace)
	}
	if o.DrainGrace <= 0 {
		return nil, configErrorf("drainGrace", "is required and must be greater than 0, got %s", o.DrainGrace)
	}
	if o.TeardownTimeout < 0 {
		return nil, configErrorf("teardownTimeout", "must be a positive duration or zero, got %s", o.TeardownTimeout)
	}
	if isNil(o.Server) {
		return nil, configErrorf("server", "is required")
	}
	if isNil(o.Logger) {
		return nil, configErrorf("logger", "is required and must implement Trace, Info and Error")
	}
	return Adapt(o.Server)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
