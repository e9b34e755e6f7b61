// Package shutdown coordinates stopping a host process: a signal handler
// cancels a root context and runs registered hooks so the frame loop can
// finish its tick and release machines cleanly.
package shutdown

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

var (
	mut     sync.Mutex     //nolint:gochecknoglobals
	hooks   []func()       //nolint:gochecknoglobals
	trigger chan os.Signal //nolint:gochecknoglobals
)

// BeforeShutdown registers a hook. Hooks run in reverse registration order,
// like deferred calls, before the root context is cancelled.
func BeforeShutdown(h func()) {
	mut.Lock()
	defer mut.Unlock()

	hooks = append(hooks, h)
}

// Shutdown triggers the shutdown sequence programmatically. It is a no-op
// if SetupHandler has not been called or shutdown already happened.
func Shutdown() {
	mut.Lock()
	ch := trigger
	mut.Unlock()

	if ch == nil {
		return
	}

	select {
	case ch <- os.Interrupt:
	default:
	}
}

// SetupHandler listens for SIGINT and SIGTERM and returns a context that is
// cancelled once the hooks have run.
func SetupHandler() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 1)

	mut.Lock()
	trigger = ch
	mut.Unlock()

	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-ch

		signal.Stop(ch)
		slog.Warn("Received " + sig.String() + ", shutting down...")

		mut.Lock()
		trigger = nil
		mut.Unlock()

		runHooks()
		cancel()
	}()

	return ctx
}

func runHooks() {
	mut.Lock()
	pending := hooks
	hooks = nil
	mut.Unlock()

	for i := len(pending) - 1; i >= 0; i-- {
		pending[i]()
	}
}
