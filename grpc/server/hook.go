package server

import (
	"context"
	"sort"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/rainbow-me/platform-shutdown/common/logger"
)

// ShutdownHook represents a function to be executed during graceful shutdown
type ShutdownHook struct {
	Name     string                      // Human-readable name for logging
	Priority int                         // Lower number = higher priority (executed first)
	Timeout  time.Duration               // Maximum time allowed for this hook, DefaultHookTimeout when zero
	Hook     func(context.Context) error // The actual cleanup function
}

// ShutdownHooks is a sortable slice of shutdown hooks
type ShutdownHooks []ShutdownHook

func (h ShutdownHooks) Len() int           { return len(h) }
func (h ShutdownHooks) Less(i, j int) bool { return h[i].Priority < h[j].Priority }
func (h ShutdownHooks) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

// sorted returns a copy ordered by priority. Hooks with equal priority keep registration order.
func (h ShutdownHooks) sorted() ShutdownHooks {
	out := append(ShutdownHooks(nil), h...)
	sort.Stable(out)
	return out
}

// run executes every hook in priority order. A failing or slow hook does not stop the
// ones after it; their errors are combined. Once ctx is done the remaining hooks are
// skipped and the result is ErrShutdownTimeout.
func (h ShutdownHooks) run(ctx context.Context, defaultTimeout time.Duration, log *logger.Logger) error {
	var result error
	for _, hook := range h.sorted() {
		if ctx.Err() != nil {
			return errors.CombineErrors(
				errors.Wrapf(ErrShutdownTimeout, "before hook %q", hook.Name),
				result,
			)
		}

		timeout := hook.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}

		start := time.Now()
		log.Info("Executing shutdown hook",
			logger.String("hook", hook.Name),
			logger.Int("priority", hook.Priority),
			logger.Duration("timeout", timeout),
		)

		err := runHook(ctx, hook, timeout, log)
		switch {
		case err == nil:
			log.Info("Shutdown hook completed", logger.String("hook", hook.Name), logger.Duration("elapsed", time.Since(start)))
		case errors.Is(err, ErrShutdownTimeout):
			log.Error("Shutdown timed out during hook", logger.String("hook", hook.Name), logger.Error(err))
			return errors.CombineErrors(err, result)
		default:
			log.Error("Shutdown hook failed", logger.String("hook", hook.Name), logger.Error(err))
			result = errors.CombineErrors(result, err)
		}
	}
	return result
}

// runHook hands the hook a context carrying a logger scoped to it, see logger.FromContext.
func runHook(ctx context.Context, hook ShutdownHook, timeout time.Duration, log *logger.Logger) error {
	hookCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	hookCtx = logger.ContextWithLogger(hookCtx, log.With(logger.String("hook", hook.Name)))

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- errors.Newf("hook %q panicked: %v", hook.Name, r)
			}
		}()
		done <- hook.Hook(hookCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			return errors.Wrapf(err, "hook %q", hook.Name)
		}
		return nil
	case <-hookCtx.Done():
		if ctx.Err() != nil {
			return errors.Wrapf(ErrShutdownTimeout, "during hook %q", hook.Name)
		}
		return errors.Wrapf(ErrHookTimeout, "hook %q after %s", hook.Name, timeout)
	}
}
