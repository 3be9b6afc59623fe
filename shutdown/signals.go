package shutdown

import (
	"os"
	"os/signal"
	"strings"
)

// DefaultEvents are the signals a service usually shuts down on.
var DefaultEvents = []string{"SIGINT", "SIGTERM"}

// EventSource delivers named external termination events.
type EventSource interface {
	// Supports reports whether event can be subscribed to.
	Supports(event string) bool
	// Subscribe calls fn every time event fires.
	Subscribe(event string, fn func())
}

// SignalSource is the EventSource backed by os/signal.
// Names are case-insensitive and the SIG prefix is optional.
type SignalSource struct{}

func (SignalSource) Supports(event string) bool {
	_, ok := lookupSignal(event)
	return ok
}

func (SignalSource) Subscribe(event string, fn func()) {
	sig, ok := lookupSignal(event)
	if !ok {
		return
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sig)
	go func() {
		for range ch {
			fn()
		}
	}()
}

func lookupSignal(name string) (os.Signal, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return nil, false
	}
	if !strings.HasPrefix(name, "SIG") {
		name = "SIG" + name
	}
	sig, ok := signalsByName[name]
	return sig, ok
}
