//go:build !unix

package shutdown

import (
	"os"
	"syscall"
)

var signalsByName = map[string]os.Signal{
	"SIGINT":  os.Interrupt,
	"SIGTERM": syscall.SIGTERM,
}
