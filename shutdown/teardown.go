package shutdown

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
)

// runTeardown invokes fn once and reports its outcome. A nil fn succeeds immediately.
// A panic inside fn is reported as a failure. When timeout is > 0 the wait is bounded
// and a slow callback yields ErrTeardownTimeout; the callback keeps running in the
// background with a cancelled context.
func runTeardown(fn Teardown, timeout time.Duration) error {
	if fn == nil {
		return nil
	}

	ctx := context.Background()
	if timeout <= 0 {
		return invokeTeardown(ctx, fn)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := make(chan error, 1)
	go func() {
		result <- invokeTeardown(ctx, fn)
	}()

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return errors.Wrapf(ErrTeardownTimeout, "after %s", timeout)
	}
}

func invokeTeardown(ctx context.Context, fn Teardown) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("teardown callback panicked: %v", r)
		}
	}()
	return fn(ctx)
}
