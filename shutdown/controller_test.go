package shutdown

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriggerIsIdempotent(t *testing.T) {
	h := newHarness(t, drainSync)
	h.opts.Events = []string{"SIGTERM", "SIGINT"}
	c := h.register(t)

	h.source.Fire("SIGTERM")
	h.source.Fire("SIGTERM")
	h.source.Fire("SIGINT")
	c.Trigger("manual")

	h.clock.Advance(time.Minute)

	begins, forces := h.drainer.counts()
	assert.Equal(t, 1, begins)
	assert.Zero(t, forces)
	assert.Equal(t, []int{0}, h.exits.Codes())
	assert.Equal(t, Terminated, c.State())
}

func TestConcurrentTriggers(t *testing.T) {
	h := newHarness(t, drainSync)
	c := h.register(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.source.Fire("SIGTERM")
		}()
	}
	wg.Wait()
	h.clock.Advance(time.Second)

	begins, _ := h.drainer.counts()
	assert.Equal(t, 1, begins)
	assert.Equal(t, []int{0}, h.exits.Codes())
	<-c.Done()
}

func TestTwoPhaseTiming(t *testing.T) {
	h := newHarness(t, drainNever)
	h.opts.NewConnectionsGrace = 5 * time.Second
	h.opts.DrainGrace = 10 * time.Second
	c := h.register(t)

	h.source.Fire("SIGTERM")
	select {
	case <-c.Draining():
	default:
		t.Fatal("expected Draining channel to be closed after trigger")
	}
	assert.Equal(t, Draining, c.State())

	h.clock.Advance(5*time.Second - time.Millisecond)
	assert.Equal(t, Draining, c.State())
	begins, _ := h.drainer.counts()
	assert.Zero(t, begins)

	h.clock.Advance(time.Millisecond)
	assert.Equal(t, Closing, c.State())
	begins, _ = h.drainer.counts()
	assert.Equal(t, 1, begins)

	h.clock.Advance(10*time.Second - time.Millisecond)
	assert.Equal(t, Closing, c.State())
	assert.Empty(t, h.exits.Codes())

	h.clock.Advance(time.Millisecond)
	assert.Equal(t, Terminated, c.State())
	h.drainer.waitForces(t, 1)
	assert.Equal(t, []int{0}, h.exits.Codes())
	assert.Equal(t, []bool{true}, h.obs.forced)
}

func TestNaturalCompletionCancelsForceTimer(t *testing.T) {
	h := newHarness(t, drainManual)
	var teardowns int
	h.opts.Teardown = func(context.Context) error {
		teardowns++
		return nil
	}
	c := h.register(t)

	h.source.Fire("SIGTERM")
	h.clock.Advance(0)
	require.Equal(t, Closing, c.State())
	require.Equal(t, 1, h.clock.pending())

	h.clock.Advance(3 * time.Second)
	h.drainer.complete()
	assert.Zero(t, h.clock.pending(), "force-close timer must be cancelled")

	h.clock.Advance(time.Hour)
	_, forces := h.drainer.counts()
	assert.Zero(t, forces)
	assert.Equal(t, 1, teardowns)
	assert.Equal(t, []int{0}, h.exits.Codes())
	assert.Equal(t, []bool{false}, h.obs.forced)
}

func TestLateNaturalCompletionIsNoop(t *testing.T) {
	h := newHarness(t, drainManual)
	var teardowns int
	h.opts.Teardown = func(context.Context) error {
		teardowns++
		return nil
	}
	c := h.register(t)

	h.source.Fire("SIGTERM")
	h.clock.Advance(h.opts.DrainGrace)
	require.Equal(t, Terminated, c.State())

	h.drainer.complete()

	assert.Equal(t, 1, teardowns)
	assert.Equal(t, []int{0}, h.exits.Codes())
	assert.Contains(t, h.messages(), "Connections closed after the grace period expired, ignoring")
}

func TestExitCodeMapping(t *testing.T) {
	tests := []struct {
		name     string
		teardown Teardown
		timeout  time.Duration
		wantCode int
		wantLog  string
	}{
		{
			name:     "no teardown",
			wantCode: 0,
		},
		{
			name:     "teardown succeeds",
			teardown: func(context.Context) error { return nil },
			wantCode: 0,
			wantLog:  "Callback function executed successfully",
		},
		{
			name:     "teardown fails",
			teardown: func(context.Context) error { return errors.New("db down") },
			wantCode: 1,
			wantLog:  "Callback function execution failed",
		},
		{
			name:     "teardown panics",
			teardown: func(context.Context) error { panic("boom") },
			wantCode: 1,
			wantLog:  "Callback function execution failed",
		},
		{
			name: "teardown exceeds timeout",
			teardown: func(ctx context.Context) error {
				<-ctx.Done()
				time.Sleep(50 * time.Millisecond)
				return nil
			},
			timeout:  10 * time.Millisecond,
			wantCode: 1,
			wantLog:  "Callback function execution failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, drainSync)
			h.opts.Teardown = tt.teardown
			h.opts.TeardownTimeout = tt.timeout
			c := h.register(t)

			h.source.Fire("SIGTERM")
			h.clock.Advance(0)

			<-c.Done()
			assert.Equal(t, []int{tt.wantCode}, h.exits.Codes())
			assert.Equal(t, tt.wantCode, c.ExitCode())
			if tt.wantLog != "" {
				assert.Contains(t, h.messages(), tt.wantLog)
			}
			msgs := h.messages()
			assert.Equal(t, "Shut down process completed", msgs[len(msgs)-1])
		})
	}
}

func TestTeardownFailureDetailIsLogged(t *testing.T) {
	h := newHarness(t, drainSync)
	h.opts.Teardown = func(context.Context) error { return errors.New("db down") }
	c := h.register(t)

	h.source.Fire("SIGTERM")
	h.clock.Advance(0)
	<-c.Done()

	failures := h.logs.FilterMessage("Callback function execution failed").All()
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0].ContextMap()["error"], "db down")
	assert.Equal(t, []int{1}, h.exits.Codes())
}

func TestLifecycleLogsAndStates(t *testing.T) {
	h := newHarness(t, drainSync)
	h.opts.NewConnectionsGrace = time.Second
	c := h.register(t)

	h.source.Fire("SIGTERM")
	h.clock.Advance(time.Second)
	<-c.Done()

	assert.Equal(t, []string{
		"Registering shutdown events",
		"Shut down process initiated",
		"Server close initiated, new connections are no longer accepted",
		"All connections were closed gracefully",
		"Shut down process completed",
	}, h.messages())

	initiated := h.logs.FilterMessage("Shut down process initiated").All()
	require.Len(t, initiated, 1)
	fields := initiated[0].ContextMap()
	assert.Equal(t, 11*time.Second, fields["grace_window"])
	assert.Equal(t, c.ID(), fields["shutdown_id"])

	assert.Equal(t, []State{Draining, Closing, TearingDown, Terminated}, h.obs.transitions)
}

func TestRegisterTwice(t *testing.T) {
	h := newHarness(t, drainSync)
	c, err := New(h.opts)
	require.NoError(t, err)
	assert.Zero(t, h.source.count())

	require.NoError(t, c.Register())
	assert.Equal(t, 1, h.source.count())

	err = c.Register()
	require.ErrorIs(t, err, ErrAlreadyRegistered)
	assert.Equal(t, 1, h.source.count())
}

func TestDuplicateEventsSubscribeEach(t *testing.T) {
	h := newHarness(t, drainSync)
	h.opts.Events = []string{"SIGTERM", "SIGTERM"}
	c := h.register(t)
	assert.Equal(t, 2, h.source.count())

	h.source.Fire("SIGTERM")
	h.clock.Advance(0)
	<-c.Done()

	begins, _ := h.drainer.counts()
	assert.Equal(t, 1, begins)
}

func TestWallClockScenarios(t *testing.T) {
	t.Run("synchronous drain exits right away", func(t *testing.T) {
		h := newHarness(t, drainSync)
		h.opts.Clock = nil
		h.opts.DrainGrace = 10 * time.Millisecond
		c := h.register(t)

		h.source.Fire("SIGTERM")
		select {
		case <-c.Done():
		case <-time.After(time.Second):
			t.Fatal("shutdown did not complete")
		}
		assert.Equal(t, []int{0}, h.exits.Codes())
		_, forces := h.drainer.counts()
		assert.Zero(t, forces)
	})

	t.Run("drain never completes", func(t *testing.T) {
		h := newHarness(t, drainNever)
		h.opts.Clock = nil
		h.opts.DrainGrace = 10 * time.Millisecond
		c := h.register(t)

		start := time.Now()
		h.source.Fire("SIGTERM")
		select {
		case <-c.Done():
		case <-time.After(time.Second):
			t.Fatal("shutdown did not complete")
		}
		assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
		assert.Equal(t, []int{0}, h.exits.Codes())
		h.drainer.waitForces(t, 1)
	})
}

type hangingForceDrainer struct {
	release chan struct{}
	forced  chan struct{}
}

func (d *hangingForceDrainer) BeginGracefulClose(func()) {}

func (d *hangingForceDrainer) ForceClose() {
	close(d.forced)
	<-d.release
}

func TestHangingForceCloseDoesNotBlockTeardown(t *testing.T) {
	h := newHarness(t, drainNever)
	drainer := &hangingForceDrainer{release: make(chan struct{}), forced: make(chan struct{})}
	defer close(drainer.release)
	h.opts.Server = drainer
	h.opts.Clock = nil
	h.opts.DrainGrace = 10 * time.Millisecond
	var tornDown bool
	h.opts.Teardown = func(context.Context) error {
		tornDown = true
		return nil
	}
	c := h.register(t)

	c.Trigger("SIGTERM")
	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatalf("teardown did not start after the drain grace, state=%s", c.State())
	}
	assert.True(t, tornDown)
	assert.Equal(t, []int{0}, h.exits.Codes())
	select {
	case <-drainer.forced:
	case <-time.After(time.Second):
		t.Fatal("ForceClose was never called")
	}
}
