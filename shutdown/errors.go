package shutdown

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrInvalidConfig is the class of every registration-time configuration error.
	ErrInvalidConfig = errors.New("invalid shutdown configuration")

	// ErrIncompatibleServer is returned when Options.Server cannot be adapted into a Drainer.
	ErrIncompatibleServer = &ConfigError{Field: "server", Reason: "must be a compatible server instance"}

	// ErrAlreadyRegistered is returned by Register on a controller that already subscribed.
	ErrAlreadyRegistered = errors.New("shutdown controller already registered")

	// ErrTeardownTimeout is the teardown outcome when Options.TeardownTimeout elapses first.
	ErrTeardownTimeout = errors.New("teardown callback did not complete in time")
)

// ConfigError reports an invalid Options field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return e.Field + " " + e.Reason
}

// Unwrap makes every ConfigError match ErrInvalidConfig.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

func configErrorf(field, format string, args ...interface{}) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
