package server

import (
	"context"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"google.golang.org/grpc"

	"github.com/rainbow-me/platform-shutdown/common/logger"
	"github.com/rainbow-me/platform-shutdown/shutdown"
)

var (
	ErrNoServers       = errors.New("no servers configured")
	ErrAlreadyServing  = errors.New("server group is already serving")
	ErrShutdownTimeout = errors.New("shutdown timed out")
	ErrHookTimeout     = errors.New("shutdown hook timed out")
)

var _ shutdown.Drainer = (*Server)(nil)

// Server runs a group of HTTP and gRPC servers and drains them together.
// It implements shutdown.Drainer so it can be handed to shutdown.Register as is.
type Server struct {
	log             *logger.Logger
	members         []member
	hooks           ShutdownHooks
	hookTimeout     time.Duration
	shutdownTimeout time.Duration

	names map[string]struct{}
	addrs map[string]struct{}

	mu        sync.Mutex
	listeners map[string]net.Listener
	serving   atomic.Bool
	ready     chan struct{}
	drainOnce sync.Once
}

// Option configures a Server.
type Option func(*Server) error

// New builds a server group. It fails on invalid or conflicting options.
func New(opts ...Option) (*Server, error) {
	s := &Server{
		log:             logger.Instance(),
		hookTimeout:     DefaultHookTimeout,
		shutdownTimeout: DefaultShutdownTimeout,
		names:           map[string]struct{}{},
		addrs:           map[string]struct{}{},
		listeners:       map[string]net.Listener{},
		ready:           make(chan struct{}),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// WithLogger sets the logger used for lifecycle messages.
func WithLogger(log *logger.Logger) Option {
	return func(s *Server) error {
		if log == nil {
			return errors.New("logger must not be nil")
		}
		s.log = log
		return nil
	}
}

// WithHTTPServer adds an HTTP server serving handler on addr.
func WithHTTPServer(name, addr string, handler http.Handler, httpOpts ...HTTPConfigOption) Option {
	return func(s *Server) error {
		if handler == nil {
			return errors.Newf("http server %q: handler must not be nil", name)
		}
		cfg := HTTPConfig{Name: name, Address: addr, Handler: handler}
		for _, o := range httpOpts {
			o(&cfg)
		}
		if err := s.reserve(name, addr); err != nil {
			return err
		}
		s.members = append(s.members, &httpMember{name: name, addr: addr, srv: newHTTPServer(cfg)})
		return nil
	}
}

// WithGRPCServer adds a gRPC server on addr. When srv is nil a new server is created
// and setup is required to register services on it.
func WithGRPCServer(name, addr string, srv *grpc.Server, setup func(*grpc.Server), grpcOpts ...grpc.ServerOption) Option {
	return func(s *Server) error {
		cfg := GRPCConfig{Name: name, Address: addr, GRPCServer: srv, SetupFunc: setup, GRPCOpts: grpcOpts}
		if cfg.GRPCServer == nil && cfg.SetupFunc == nil {
			return errors.Newf("grpc server %q: setup func is required when no server is given", name)
		}
		if err := s.reserve(name, addr); err != nil {
			return err
		}
		if cfg.GRPCServer == nil {
			cfg.GRPCServer = newGRPCServer(func() *logger.Logger { return s.log }, cfg.GRPCOpts...)
		}
		if cfg.SetupFunc != nil {
			cfg.SetupFunc(cfg.GRPCServer)
		}
		s.members = append(s.members, &grpcMember{name: name, addr: addr, srv: cfg.GRPCServer})
		return nil
	}
}

// WithShutdownHook registers a cleanup hook run by ExecuteShutdownHooks.
func WithShutdownHook(hook ShutdownHook) Option {
	return func(s *Server) error {
		if hook.Hook == nil {
			return errors.Newf("shutdown hook %q: hook func must not be nil", hook.Name)
		}
		s.hooks = append(s.hooks, hook)
		return nil
	}
}

// WithHookTimeout sets the timeout for hooks that do not set their own.
func WithHookTimeout(timeout time.Duration) Option {
	return func(s *Server) error {
		if timeout <= 0 {
			return errors.Newf("hook timeout must be greater than 0, got %s", timeout)
		}
		s.hookTimeout = timeout
		return nil
	}
}

// WithShutdownTimeout bounds the whole hook sequence started by Teardown.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(s *Server) error {
		if timeout <= 0 {
			return errors.Newf("shutdown timeout must be greater than 0, got %s", timeout)
		}
		s.shutdownTimeout = timeout
		return nil
	}
}

func (s *Server) reserve(name, addr string) error {
	if _, ok := s.names[name]; ok {
		return errors.Newf("duplicate server name %q", name)
	}
	if !isEphemeral(addr) {
		if _, ok := s.addrs[addr]; ok {
			return errors.Newf("duplicate server address %q", addr)
		}
		s.addrs[addr] = struct{}{}
	}
	s.names[name] = struct{}{}
	return nil
}

func isEphemeral(addr string) bool {
	_, port, err := net.SplitHostPort(addr)
	return err == nil && (port == "0" || port == "")
}

// Serve binds every configured address and serves until all servers are closed.
// A server stopped through the drain or Stop is a clean exit. If any address
// cannot be bound nothing is served.
func (s *Server) Serve() error {
	if len(s.members) == 0 {
		return ErrNoServers
	}
	if !s.serving.CompareAndSwap(false, true) {
		return ErrAlreadyServing
	}

	listeners := make([]net.Listener, 0, len(s.members))
	for _, m := range s.members {
		lis, err := net.Listen("tcp", m.address())
		if err != nil {
			for _, l := range listeners {
				_ = l.Close()
			}
			return errors.Wrapf(err, "listen %s on %s", m.label(), m.address())
		}
		listeners = append(listeners, lis)
	}

	s.mu.Lock()
	for i, m := range s.members {
		s.listeners[m.label()] = listeners[i]
	}
	s.mu.Unlock()
	close(s.ready)

	errs := make(chan error, len(s.members))
	var wg sync.WaitGroup
	for i, m := range s.members {
		wg.Add(1)
		go func(m member, lis net.Listener) {
			defer wg.Done()
			s.log.Info("Server listening", logger.String("server", m.label()), logger.String("address", lis.Addr().String()))
			if err := m.serve(lis); err != nil {
				s.log.Error("Server stopped unexpectedly", logger.String("server", m.label()), logger.Error(err))
				errs <- errors.Wrapf(err, "serve %s", m.label())
				// One member failing takes the group down.
				s.ForceClose()
				return
			}
			s.log.Info("Server stopped", logger.String("server", m.label()))
		}(m, listeners[i])
	}
	wg.Wait()
	close(errs)

	var result error
	for err := range errs {
		result = errors.CombineErrors(result, err)
	}
	return result
}

// Ready is closed once Serve has bound every address.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr returns the bound address of the named server, or nil before Serve has bound it.
func (s *Server) Addr(name string) net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lis, ok := s.listeners[name]; ok {
		return lis.Addr()
	}
	return nil
}

// BeginGracefulClose stops every server from accepting connections and calls
// onAllClosed once all of them have drained. Only the first call has an effect.
func (s *Server) BeginGracefulClose(onAllClosed func()) {
	s.drainOnce.Do(func() {
		s.log.Info("Draining servers", logger.Int("servers", len(s.members)))
		var wg sync.WaitGroup
		for _, m := range s.members {
			wg.Add(1)
			go func(m member) {
				defer wg.Done()
				m.drain()
				s.log.Info("Server drained", logger.String("server", m.label()))
			}(m)
		}
		go func() {
			wg.Wait()
			onAllClosed()
		}()
	})
}

// ForceClose closes every server and its open connections immediately.
func (s *Server) ForceClose() {
	if err := s.Stop(); err != nil {
		s.log.Error("Error force closing servers", logger.Error(err))
	}
}

// Stop closes every server immediately without draining.
func (s *Server) Stop() error {
	var result error
	for _, m := range s.members {
		if err := m.close(); err != nil {
			result = errors.CombineErrors(result, errors.Wrapf(err, "close %s", m.label()))
		}
	}
	return result
}

// ExecuteShutdownHooks runs the registered hooks in priority order within ctx.
func (s *Server) ExecuteShutdownHooks(ctx context.Context) error {
	if len(s.hooks) == 0 {
		return nil
	}
	return s.hooks.run(ctx, s.hookTimeout, s.log)
}

// Teardown returns the hooks as a shutdown.Teardown bounded by the shutdown timeout.
func (s *Server) Teardown() shutdown.Teardown {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
		defer cancel()
		return s.ExecuteShutdownHooks(ctx)
	}
}

type member interface {
	label() string
	address() string
	serve(lis net.Listener) error
	drain()
	close() error
}

type httpMember struct {
	name, addr string
	srv        *http.Server
}

func (m *httpMember) label() string   { return m.name }
func (m *httpMember) address() string { return m.addr }

func (m *httpMember) serve(lis net.Listener) error {
	if err := m.srv.Serve(lis); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (m *httpMember) drain() {
	// Shutdown waits for active connections even when a listener fails to close.
	_ = m.srv.Shutdown(context.Background())
}

func (m *httpMember) close() error { return m.srv.Close() }

type grpcMember struct {
	name, addr string
	srv        *grpc.Server
}

func (m *grpcMember) label() string   { return m.name }
func (m *grpcMember) address() string { return m.addr }

func (m *grpcMember) serve(lis net.Listener) error {
	if err := m.srv.Serve(lis); !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

func (m *grpcMember) drain() { m.srv.GracefulStop() }

func (m *grpcMember) close() error {
	m.srv.Stop()
	return nil
}
