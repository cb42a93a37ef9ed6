package console

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// WatchSignals relays keyboard signals until stop is called: SIGINT goes to
// the child unless the editor is running, SIGQUIT ends the session at once.
// SIGPIPE is ignored so a closed output surfaces as a write error.
func (c *Console) WatchSignals(ctx context.Context) (stop func()) {
	signal.Ignore(syscall.SIGPIPE)

	sigs := make(chan os.Signal, 4)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGQUIT)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case sig := <-sigs:
				c.handleSignal(sig)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(sigs)
			close(done)
			wg.Wait()
		})
	}
}

func (c *Console) handleSignal(sig os.Signal) {
	switch sig {
	case syscall.SIGINT:
		if c.editing.Load() {
			return
		}
		if err := c.sess.Interrupt(); err != nil {
			c.log.Warn("interrupt not delivered", slog.String("error", err.Error()))
		}
	case syscall.SIGQUIT:
		if err := c.sess.Terminate(); err != nil {
			c.log.Warn("terminate not delivered", slog.String("error", err.Error()))
		}
		fmt.Fprintln(c.out, "Quit")
		c.exit(0)
	}
}
