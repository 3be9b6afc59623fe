package shutdown

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rainbow-me/platform-shutdown/common/test"
)

// manualClock fires timers only when advanced.
type manualClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*manualTimer
}

type manualTimer struct {
	clock   *manualClock
	at      time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, at: c.now + d, fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward by d, running due timers in deadline order.
// Timers scheduled by callbacks are run too if they fall due within d.
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var due []*manualTimer
		for _, t := range c.timers {
			if !t.stopped && !t.fired && t.at <= target {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			c.now = target
			c.mu.Unlock()
			return
		}
		sort.SliceStable(due, func(i, j int) bool { return due[i].at < due[j].at })
		next := due[0]
		next.fired = true
		c.now = next.at
		c.mu.Unlock()

		next.fn()
	}
}

func (c *manualClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// fakeSource records subscriptions and fires them on demand.
type fakeSource struct {
	mu   sync.Mutex
	subs map[string][]func()
}

func newFakeSource() *fakeSource {
	return &fakeSource{subs: map[string][]func(){}}
}

func (s *fakeSource) Supports(event string) bool {
	return event != "SIGKILL"
}

func (s *fakeSource) Subscribe(event string, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[event] = append(s.subs[event], fn)
}

func (s *fakeSource) Fire(event string) {
	s.mu.Lock()
	fns := append([]func(){}, s.subs[event]...)
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (s *fakeSource) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, fns := range s.subs {
		n += len(fns)
	}
	return n
}

// drainMode selects how fakeDrainer reports completion.
type drainMode int

const (
	drainSync drainMode = iota
	drainNever
	drainManual
)

type fakeDrainer struct {
	mode drainMode

	mu          sync.Mutex
	begins      int
	forces      int
	onAllClosed func()
}

func (d *fakeDrainer) BeginGracefulClose(onAllClosed func()) {
	d.mu.Lock()
	d.begins++
	d.onAllClosed = onAllClosed
	d.mu.Unlock()
	if d.mode == drainSync {
		onAllClosed()
	}
}

func (d *fakeDrainer) ForceClose() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.forces++
}

// complete reports natural completion for drainManual and drainNever drainers.
func (d *fakeDrainer) complete() {
	d.mu.Lock()
	fn := d.onAllClosed
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// waitForces waits for ForceClose calls, which run on their own goroutine.
func (d *fakeDrainer) waitForces(t *testing.T, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		_, forces := d.counts()
		return forces == want
	}, time.Second, time.Millisecond)
}

func (d *fakeDrainer) counts() (begins, forces int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.begins, d.forces
}

// exitRecorder replaces os.Exit.
type exitRecorder struct {
	mu    sync.Mutex
	codes []int
}

func (e *exitRecorder) Exit(code int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.codes = append(e.codes, code)
}

func (e *exitRecorder) Codes() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int(nil), e.codes...)
}

type recordingObserver struct {
	NopObserver

	mu          sync.Mutex
	transitions []State
	forced      []bool
}

func (o *recordingObserver) StateChanged(_, to State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitions = append(o.transitions, to)
}

func (o *recordingObserver) Drained(forced bool, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.forced = append(o.forced, forced)
}

type harness struct {
	opts    Options
	clock   *manualClock
	source  *fakeSource
	drainer *fakeDrainer
	exits   *exitRecorder
	logs    *observer.ObservedLogs
	obs     *recordingObserver
}

func newHarness(t *testing.T, mode drainMode) *harness {
	t.Helper()
	log, logs := test.NewObservedLogger()
	h := &harness{
		clock:   &manualClock{},
		source:  newFakeSource(),
		drainer: &fakeDrainer{mode: mode},
		exits:   &exitRecorder{},
		logs:    logs,
		obs:     &recordingObserver{},
	}
	h.opts = Options{
		Events:     []string{"SIGTERM"},
		Server:     h.drainer,
		Logger:     log,
		DrainGrace: 10 * time.Second,
		Source:     h.source,
		Exit:       h.exits.Exit,
		Clock:      h.clock,
		Observer:   h.obs,
	}
	return h
}

func (h *harness) register(t *testing.T) *Controller {
	t.Helper()
	c, err := Register(h.opts)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return c
}

func (h *harness) messages() []string {
	var out []string
	for _, e := range h.logs.All() {
		out = append(out, e.Message)
	}
	return out
}
