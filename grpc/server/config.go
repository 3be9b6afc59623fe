package server

import (
	"net/http"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/rainbow-me/platform-shutdown/common/logger"
)

const (
	// DefaultGRPCMaxMsgSize defines the default gRPC max message size in
	// bytes the server can receive or send.
	DefaultGRPCMaxMsgSize = 1024 * 1024 * 10 // 10MB
)

var (
	DefaultShutdownTimeout   = 30 * time.Second
	DefaultHookTimeout       = 5 * time.Second
	DefaultHTTPReadTimeout   = 5 * time.Second
	DefaultHTTPWriteTimeout  = 10 * time.Second
	DefaultHTTPIdleTimeout   = 120 * time.Second
	DefaultHTTPHeaderTimeout = 2 * time.Second
)

// HTTPConfig holds configuration for HTTP servers
type HTTPConfig struct {
	Name          string        // Unique name for this server (used in logging)
	Address       string        // Address to bind to (e.g., ":8080")
	Handler       http.Handler  // HTTP handler for this server (pre-configured with routes and middlewares)
	ReadTimeout   time.Duration // Maximum duration for reading the entire request
	WriteTimeout  time.Duration // Maximum duration before timing out writes
	IdleTimeout   time.Duration // Maximum amount of time to wait for next request when keep-alives are enabled
	HeaderTimeout time.Duration // Amount of time allowed to read request headers
}

// GRPCConfig holds configuration for gRPC servers
type GRPCConfig struct {
	Name       string              // Unique name for this server (used in logging)
	Address    string              // Address to bind to (e.g., ":9090")
	GRPCServer *grpc.Server        // Existing gRPC server instance; if not provided, one will be created
	SetupFunc  func(*grpc.Server)  // Function to register services and configure the gRPC server
	GRPCOpts   []grpc.ServerOption // Server options for creating gRPC server if GRPCServer is nil
}

// HTTPConfigOption is a functional option for configuring HTTPConfig
type HTTPConfigOption func(*HTTPConfig)

// WithHTTPReadTimeout sets the read timeout for the HTTP config
func WithHTTPReadTimeout(timeout time.Duration) HTTPConfigOption {
	return func(c *HTTPConfig) {
		c.ReadTimeout = timeout
	}
}

// WithHTTPWriteTimeout sets the write timeout for the HTTP config
func WithHTTPWriteTimeout(timeout time.Duration) HTTPConfigOption {
	return func(c *HTTPConfig) {
		c.WriteTimeout = timeout
	}
}

// WithHTTPIdleTimeout sets the idle timeout for the HTTP config
func WithHTTPIdleTimeout(timeout time.Duration) HTTPConfigOption {
	return func(c *HTTPConfig) {
		c.IdleTimeout = timeout
	}
}

// WithHTTPHeaderTimeout sets the header timeout for the HTTP config
func WithHTTPHeaderTimeout(timeout time.Duration) HTTPConfigOption {
	return func(c *HTTPConfig) {
		c.HeaderTimeout = timeout
	}
}

// newHTTPServer builds the *http.Server for cfg, filling unset timeouts with defaults.
func newHTTPServer(cfg HTTPConfig) *http.Server {
	orDefault := func(v, def time.Duration) time.Duration {
		if v > 0 {
			return v
		}
		return def
	}
	return &http.Server{
		Addr:              cfg.Address,
		Handler:           cfg.Handler,
		ReadTimeout:       orDefault(cfg.ReadTimeout, DefaultHTTPReadTimeout),
		WriteTimeout:      orDefault(cfg.WriteTimeout, DefaultHTTPWriteTimeout),
		IdleTimeout:       orDefault(cfg.IdleTimeout, DefaultHTTPIdleTimeout),
		ReadHeaderTimeout: orDefault(cfg.HeaderTimeout, DefaultHTTPHeaderTimeout),
	}
}

// newGRPCServer creates a gRPC server with tracing, panic recovery, message limits, keepalive
// and reflection. User options are appended last so they can override the base settings.
func newGRPCServer(log func() *logger.Logger, serverOptions ...grpc.ServerOption) *grpc.Server {
	unknownHandler := func(_ interface{}, _ grpc.ServerStream) error {
		return status.Error(codes.Unimplemented, "Unknown route")
	}

	baseServerOptions := []grpc.ServerOption{
		grpc.UnknownServiceHandler(unknownHandler),
		grpc.MaxRecvMsgSize(DefaultGRPCMaxMsgSize),
		grpc.MaxSendMsgSize(DefaultGRPCMaxMsgSize),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    30 * time.Second, // Ping every 30s if no activity.
			Timeout: 10 * time.Second, // Wait 10s for ping ack.
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second, // Clients must wait 5s between pings.
			PermitWithoutStream: true,            // Allow pings even without active streams.
		}),
	}
	baseServerOptions = append(baseServerOptions, tracingInterceptors()...)
	baseServerOptions = append(baseServerOptions, recoveryInterceptors(log)...)
	baseServerOptions = append(baseServerOptions, serverOptions...)

	grpcServer := grpc.NewServer(baseServerOptions...)
	reflection.Register(grpcServer)

	return grpcServer
}
