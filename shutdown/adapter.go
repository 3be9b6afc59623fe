package shutdown

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
)

// Drainer is the connection-draining contract the controller needs from a server.
type Drainer interface {
	// BeginGracefulClose stops accepting new connections and calls onAllClosed once
	// every previously accepted connection has closed.
	BeginGracefulClose(onAllClosed func())
	// ForceClose closes the remaining connections immediately.
	ForceClose()
}

// ShutdownCloser is satisfied by *http.Server.
type ShutdownCloser interface {
	Shutdown(ctx context.Context) error
	Close() error
}

// GracefulStopper is satisfied by *grpc.Server.
type GracefulStopper interface {
	GracefulStop()
	Stop()
}

// Adapt turns a server reference into a Drainer. It accepts a Drainer, a
// ShutdownCloser or a GracefulStopper and fails with ErrIncompatibleServer otherwise.
func Adapt(server any) (Drainer, error) {
	switch s := server.(type) {
	case Drainer:
		return s, nil
	case ShutdownCloser:
		return &shutdownCloserDrainer{server: s}, nil
	case GracefulStopper:
		return &gracefulStopperDrainer{server: s}, nil
	default:
		return nil, errors.Wrapf(ErrIncompatibleServer, "cannot drain %T", server)
	}
}

type shutdownCloserDrainer struct {
	server ShutdownCloser
	once   sync.Once
}

func (d *shutdownCloserDrainer) BeginGracefulClose(onAllClosed func()) {
	d.once.Do(func() {
		go func() {
			// Shutdown waits for active connections even when closing a listener failed,
			// so its error does not change the outcome.
			_ = d.server.Shutdown(context.Background())
			onAllClosed()
		}()
	})
}

func (d *shutdownCloserDrainer) ForceClose() {
	_ = d.server.Close()
}

type gracefulStopperDrainer struct {
	server GracefulStopper
	once   sync.Once
}

func (d *gracefulStopperDrainer) BeginGracefulClose(onAllClosed func()) {
	d.once.Do(func() {
		go func() {
			d.server.GracefulStop()
			onAllClosed()
		}()
	})
}

func (d *gracefulStopperDrainer) ForceClose() {
	d.server.Stop()
}
