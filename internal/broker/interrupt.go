package broker

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// InterruptController turns repeated SIGINT/SIGTERM delivery into a
// two-stage cancellation: the first signal cancels a "graceful" context and
// a second signal cancels a "hard" context. Cancellation does not wait for
// in-flight work: a process started by exec.CommandContext with the graceful
// context is killed by the first signal.
type InterruptController struct {
	gracefulCtx context.Context
	gracefulCancel context.CancelFunc
	hardCtx     context.Context
	hardCancel  context.CancelFunc
	count       atomic.Int32
}

// NewInterruptController derives both contexts from parent and starts
// listening on sigCh. Call Stop when the signal channel should be released.
func NewInterruptController(parent context.Context, sigCh <-chan os.Signal) *InterruptController {
	gctx, gcancel := context.WithCancel(parent)
	hctx, hcancel := context.WithCancel(parent)

	c := &InterruptController{
		gracefulCtx:    gctx,
		gracefulCancel: gcancel,
		hardCtx:        hctx,
		hardCancel:     hcancel,
	}

	go func() {
		for range sigCh {
			n := c.count.Add(1)
			if n == 1 {
				c.gracefulCancel()
			} else {
				c.hardCancel()
				return
			}
		}
	}()

	return c
}

// Graceful is cancelled after the first interrupt signal.
func (c *InterruptController) Graceful() context.Context { return c.gracefulCtx }

// Hard is cancelled after the second interrupt signal.
func (c *InterruptController) Hard() context.Context { return c.hardCtx }

// Stop releases both derived contexts without waiting for further signals.
func (c *InterruptController) Stop() {
	c.gracefulCancel()
	c.hardCancel()
}

// ListenSIGINT is a convenience wrapper that registers SIGINT/SIGTERM with
// the OS and returns a controller built from it.
func ListenSIGINT(parent context.Context) (*InterruptController, func()) {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	ctl := NewInterruptController(parent, sigCh)
	stop := func() {
		signal.Stop(sigCh)
		close(sigCh)
		ctl.Stop()
	}
	return ctl, stop
}
