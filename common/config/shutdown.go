package config

import (
	"reflect"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cast"

	"github.com/rainbow-me/platform-shutdown/common/env"
	"github.com/rainbow-me/platform-shutdown/shutdown"
)

// Duration is a grace period read from configuration. See ParseGrace for the accepted forms.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Events is a list of termination event names. A single comma separated string is accepted too.
type Events []string

// Shutdown is the configuration section for the shutdown controller.
//
//	shutdown:
//	  events: [SIGINT, SIGTERM]
//	  newConnectionsGrace: 5s
//	  drainGrace: 30000
//	  teardownTimeout: 10s
type Shutdown struct {
	Events              Events    `mapstructure:"events"`
	NewConnectionsGrace *Duration `mapstructure:"newConnectionsGrace"`
	DrainGrace          *Duration `mapstructure:"drainGrace"`
	TeardownTimeout     Duration  `mapstructure:"teardownTimeout"`
}

// Apply fills the event and timing fields of opts using the grace defaults of
// the current environment for omitted values.
func (s Shutdown) Apply(opts *shutdown.Options) {
	s.ApplyFor(env.GetApplicationEnvSafe(), opts)
}

// ApplyFor is Apply with an explicit environment.
func (s Shutdown) ApplyFor(e env.Environment, opts *shutdown.Options) {
	defaults := e.DefaultGrace()

	opts.Events = append([]string(nil), shutdown.DefaultEvents...)
	if len(s.Events) > 0 {
		opts.Events = append([]string(nil), s.Events...)
	}

	opts.NewConnectionsGrace = defaults.NewConnections
	if s.NewConnectionsGrace != nil {
		opts.NewConnectionsGrace = s.NewConnectionsGrace.Std()
	}

	opts.DrainGrace = defaults.Drain
	if s.DrainGrace != nil {
		opts.DrainGrace = s.DrainGrace.Std()
	}

	opts.TeardownTimeout = s.TeardownTimeout.Std()
}

// ParseGrace converts a configured grace value into a duration. Numbers and
// numeric strings are milliseconds ("1500" is 1.5s); other strings are Go
// durations ("1m30s"). Range checks are left to shutdown.Options validation.
func ParseGrace(value interface{}) (time.Duration, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case time.Duration:
		return v, nil
	case Duration:
		return v.Std(), nil
	case bool:
		return 0, errors.Newf("invalid grace value %v: expected milliseconds or a duration", v)
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, errors.New("invalid grace value: empty string")
		}
		if ms, err := cast.ToFloat64E(s); err == nil {
			return millis(ms), nil
		}
		d, err := cast.ToDurationE(s)
		if err != nil {
			return 0, errors.Wrapf(err, "invalid grace value %q", s)
		}
		return d, nil
	default:
		ms, err := cast.ToFloat64E(v)
		if err != nil {
			return 0, errors.Wrapf(err, "invalid grace value %v", v)
		}
		return millis(ms), nil
	}
}

func millis(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

var (
	durationType = reflect.TypeOf(Duration(0))
	eventsType   = reflect.TypeOf(Events(nil))
)

func graceDecodeHook() mapstructure.DecodeHookFuncType {
	return func(_ reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if t != durationType {
			return data, nil
		}
		d, err := ParseGrace(data)
		if err != nil {
			return nil, err
		}
		return Duration(d), nil
	}
}

func eventsDecodeHook() mapstructure.DecodeHookFuncType {
	return func(_ reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if t != eventsType {
			return data, nil
		}
		if s, ok := data.(string); ok {
			if strings.TrimSpace(s) == "" {
				return Events(nil), nil
			}
			data = strings.Split(s, ",")
		}
		names, err := cast.ToStringSliceE(data)
		if err != nil {
			return nil, errors.Wrap(err, "invalid events")
		}
		events := make(Events, len(names))
		for i, name := range names {
			events[i] = strings.TrimSpace(name)
		}
		return events, nil
	}
}
