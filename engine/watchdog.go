package engine

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// RunWithTimeout runs ExecMethod on a background goroutine and cancels it
// (by returning early, not by forcibly stopping the goroutine — Go has no
// safe way to do that) if it doesn't finish within timeout. A runaway AML
// method (an infinite WHILE with no BREAK reachable) otherwise has no other
// bound in this engine, since the execution stack's fixed depth does not
// limit loop iteration count, only nesting.
func RunWithTimeout(ctx context.Context, a *Activation, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	done := make(chan error, 1)

	g.Go(func() error {
		done <- ExecMethod(a)
		return nil
	})

	select {
	case err := <-done:
		_ = g.Wait()
		return err
	case <-gctx.Done():
		return fatal(ErrTimeout)
	}
}
