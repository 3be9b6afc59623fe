package gin

import (
	"github.com/gin-gonic/gin"
)

const componentName = "gin"

type interceptorCfg struct {
	requestLogging bool
	drain          DrainSignal
}

type InterceptorOpt func(cfg *interceptorCfg)

// WithRequestLogging enables/disables the per-request log line. Default is enabled.
func WithRequestLogging(enabled bool) InterceptorOpt {
	return func(cfg *interceptorCfg) {
		cfg.requestLogging = enabled
	}
}

// WithDrainSignal adds the Draining middleware for signal.
func WithDrainSignal(signal DrainSignal) InterceptorOpt {
	return func(cfg *interceptorCfg) {
		cfg.drain = signal
	}
}

// DefaultInterceptors returns all our default interceptors for Gin servers.
// Defaults can be changed by passing any of the WithXXX options.
func DefaultInterceptors(opts ...InterceptorOpt) []gin.HandlerFunc {
	cfg := &interceptorCfg{requestLogging: true}
	for _, opt := range opts {
		opt(cfg)
	}

	var middlewares []gin.HandlerFunc
	if cfg.requestLogging {
		middlewares = append(middlewares, RequestLogging())
	}
	middlewares = append(middlewares, PanicRecoveryMiddleware)
	if cfg.drain != nil {
		middlewares = append(middlewares, Draining(cfg.drain))
	}
	return middlewares
}
