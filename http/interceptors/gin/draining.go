package gin

import (
	"github.com/gin-gonic/gin"
)

// DrainSignal reports when the process has started shutting down.
// *shutdown.Controller implements it.
type DrainSignal interface {
	Draining() <-chan struct{}
}

// Draining asks clients to drop keep-alive connections once shutdown has been
// triggered. Responses carry "Connection: close" so the connection is closed after
// the response is written and the client reconnects to another instance, which
// lets the drain finish before the grace period runs out.
func Draining(signal DrainSignal) gin.HandlerFunc {
	draining := signal.Draining()
	return func(c *gin.Context) {
		select {
		case <-draining:
			c.Header("Connection", "close")
		default:
		}
		c.Next()
	}
}
