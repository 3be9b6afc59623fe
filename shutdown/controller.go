package shutdown

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rainbow-me/platform-shutdown/common/logger"
)

// Controller runs one process's terminal shutdown sequence exactly once:
//
//	Idle -> Draining -> Closing -> TearingDown -> Terminated
//
// The first trigger starts the sequence and later ones are ignored. Once the
// new-connections grace elapses the server drain begins, racing the drain grace
// timer; whichever finishes first moves on to teardown and the other becomes a no-op.
type Controller struct {
	id   string
	opts Options

	drainer Drainer
	log     Logger

	registered atomic.Bool
	triggered  atomic.Bool // Idle -> Draining latch
	settled    atomic.Bool // Closing -> TearingDown latch
	exitOnce   sync.Once

	mu         sync.Mutex
	state      State
	forceTimer Timer
	closingAt  time.Time

	draining chan struct{}
	done     chan struct{}
	exitCode atomic.Int32
}

// New validates opts and builds a controller. Nothing is subscribed until Register.
func New(opts Options) (*Controller, error) {
	opts.setDefaults()
	drainer, err := opts.validate()
	if err != nil {
		return nil, err
	}
	// The caller's slice must not alias ours.
	opts.Events = append([]string(nil), opts.Events...)

	return &Controller{
		id:       uuid.NewString(),
		opts:     opts,
		drainer:  drainer,
		log:      opts.Logger,
		state:    Idle,
		draining: make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Register validates opts, builds a controller and subscribes it to every event.
func Register(opts Options) (*Controller, error) {
	c, err := New(opts)
	if err != nil {
		return nil, err
	}
	if err := c.Register(); err != nil {
		return nil, err
	}
	return c, nil
}

// Register subscribes the controller to each configured event, once per entry.
// It fails with ErrAlreadyRegistered on a second call.
func (c *Controller) Register() error {
	if !c.registered.CompareAndSwap(false, true) {
		return ErrAlreadyRegistered
	}
	c.log.Trace("Registering shutdown events", c.fields(logger.Strings("events", c.opts.Events))...)
	for _, event := range c.opts.Events {
		c.opts.Source.Subscribe(event, func() { c.Trigger(event) })
	}
	return nil
}

// Trigger starts the shutdown sequence. Only the first call has an effect.
func (c *Controller) Trigger(event string) {
	if !c.triggered.CompareAndSwap(false, true) {
		c.log.Trace("Shutdown already initiated, ignoring event", c.fields(logger.String("event", event))...)
		return
	}
	c.opts.Observer.Triggered(event)
	c.transition(Draining)
	close(c.draining)

	c.log.Info("Shut down process initiated",
		c.fields(
			logger.String("event", event),
			logger.Duration("grace_window", c.opts.NewConnectionsGrace+c.opts.DrainGrace),
		)...,
	)

	c.opts.Clock.AfterFunc(c.opts.NewConnectionsGrace, c.beginClose)
}

func (c *Controller) beginClose() {
	c.transition(Closing)
	c.log.Info("Server close initiated, new connections are no longer accepted", c.fields()...)

	// The timer is armed before the drain starts so a synchronous completion can cancel it.
	c.mu.Lock()
	c.closingAt = time.Now()
	c.forceTimer = c.opts.Clock.AfterFunc(c.opts.DrainGrace, c.forceClose)
	c.mu.Unlock()

	c.drainer.BeginGracefulClose(c.drained)
}

// drained is the natural completion path.
func (c *Controller) drained() {
	if !c.settled.CompareAndSwap(false, true) {
		c.log.Trace("Connections closed after the grace period expired, ignoring", c.fields()...)
		return
	}

	c.mu.Lock()
	c.forceTimer.Stop()
	elapsed := time.Since(c.closingAt)
	c.mu.Unlock()

	c.log.Info("All connections were closed gracefully", c.fields(logger.Duration("elapsed", elapsed))...)
	c.opts.Observer.Drained(false, elapsed)
	c.tearDown()
}

// forceClose is the drain grace expiry path.
func (c *Controller) forceClose() {
	if !c.settled.CompareAndSwap(false, true) {
		return
	}

	c.mu.Lock()
	elapsed := time.Since(c.closingAt)
	c.mu.Unlock()

	c.log.Info("Not all connections were closed within the grace period, closing remaining connections forcefully",
		c.fields(logger.Duration("drain_grace", c.opts.DrainGrace))...,
	)
	// Teardown does not wait on the force close; a drainer that hangs cannot hold the sequence.
	go c.drainer.ForceClose()
	c.opts.Observer.Drained(true, elapsed)
	c.tearDown()
}

func (c *Controller) tearDown() {
	c.transition(TearingDown)
	if c.opts.Teardown == nil {
		c.exit(0)
		return
	}

	start := time.Now()
	err := runTeardown(c.opts.Teardown, c.opts.TeardownTimeout)
	c.opts.Observer.TornDown(err, time.Since(start))
	if err != nil {
		c.log.Error("Callback function execution failed", c.fields(logger.Error(err))...)
		c.exit(1)
		return
	}
	c.log.Info("Callback function executed successfully", c.fields()...)
	c.exit(0)
}

func (c *Controller) exit(code int) {
	c.exitOnce.Do(func() {
		c.transition(Terminated)
		c.exitCode.Store(int32(code))
		c.log.Info("Shut down process completed", c.fields(logger.Int("exit_code", code))...)
		c.opts.Observer.Exited(code)
		close(c.done)
		c.opts.Exit(code)
	})
}

// transition moves forward to next. Backward or repeated moves are ignored.
func (c *Controller) transition(next State) {
	c.mu.Lock()
	prev := c.state
	if next <= prev {
		c.mu.Unlock()
		return
	}
	c.state = next
	c.mu.Unlock()
	c.opts.Observer.StateChanged(prev, next)
}

func (c *Controller) fields(extra ...logger.Field) []logger.Field {
	return append([]logger.Field{logger.String("shutdown_id", c.id)}, extra...)
}

// ID identifies this controller in logs.
func (c *Controller) ID() string { return c.id }

// State returns the current phase.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Draining is closed as soon as shutdown has been triggered.
func (c *Controller) Draining() <-chan struct{} { return c.draining }

// Done is closed right before the exit function is called.
func (c *Controller) Done() <-chan struct{} { return c.done }

// ExitCode returns the code passed to the exit function. Only meaningful after Done.
func (c *Controller) ExitCode() int { return int(c.exitCode.Load()) }
