package shutdown

import "time"

// Observer is notified of shutdown progress. Calls may come from timer goroutines.
type Observer interface {
	Triggered(event string)
	StateChanged(from, to State)
	Drained(forced bool, elapsed time.Duration)
	TornDown(err error, elapsed time.Duration)
	Exited(code int)
}

// NopObserver ignores every notification. Embed it to implement a subset of Observer.
type NopObserver struct{}

func (NopObserver) Triggered(string)              {}
func (NopObserver) StateChanged(State, State)     {}
func (NopObserver) Drained(bool, time.Duration)   {}
func (NopObserver) TornDown(error, time.Duration) {}
func (NopObserver) Exited(int)                    {}

type multiObserver []Observer

// Observers fans notifications out to every non-nil observer, in order.
func Observers(observers ...Observer) Observer {
	var m multiObserver
	for _, o := range observers {
		if o != nil {
			m = append(m, o)
		}
	}
	return m
}

func (m multiObserver) Triggered(event string) {
	for _, o := range m {
		o.Triggered(event)
	}
}

func (m multiObserver) StateChanged(from, to State) {
	for _, o := range m {
		o.StateChanged(from, to)
	}
}

func (m multiObserver) Drained(forced bool, elapsed time.Duration) {
	for _, o := range m {
		o.Drained(forced, elapsed)
	}
}

func (m multiObserver) TornDown(err error, elapsed time.Duration) {
	for _, o := range m {
		o.TornDown(err, elapsed)
	}
}

func (m multiObserver) Exited(code int) {
	for _, o := range m {
		o.Exited(code)
	}
}
