// Package lifecycle runs the HTTP server and tears it down in order when the
// process is asked to stop.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// ErrForcedShutdown is returned when shutdown outlives its deadline.
var ErrForcedShutdown = errors.New("lifecycle: forced shutdown after deadline")

// Drainer releases a resource once the server has stopped taking requests.
type Drainer interface {
	Drain(ctx context.Context) error
}

// DrainFunc adapts a function to Drainer.
type DrainFunc func(ctx context.Context) error

func (f DrainFunc) Drain(ctx context.Context) error { return f(ctx) }

// App ties a server to the resources it must release on exit.
type App struct {
	Server *http.Server
	// Listener is used instead of listening on Server.Addr when set.
	Listener net.Listener
	// Drainers run in order after the server has shut down.
	Drainers []Drainer
	// Background tasks run alongside the server and must return once their
	// context is cancelled.
	Background []func(ctx context.Context) error
	// ShutdownTimeout bounds the whole teardown. Default 10s.
	ShutdownTimeout time.Duration
	// Signals trigger shutdown. Default SIGINT and SIGTERM.
	Signals []os.Signal
}

// Run serves until ctx is cancelled, a signal arrives, or the server fails.
// Teardown stops accepting connections, waits for in-flight requests, then
// drains every Drainer. A nil return means a clean exit.
func (a *App) Run(ctx context.Context) error {
	signals := a.Signals
	if len(signals) == 0 {
		signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}
	ctx, stop := signal.NotifyContext(ctx, signals...)
	defer stop()

	ln := a.Listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", a.Server.Addr)
		if err != nil {
			return fmt.Errorf("lifecycle: listen on %s: %w", a.Server.Addr, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server listening", "addr", ln.Addr().String())
		if err := a.Server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("lifecycle: serve: %w", err)
		}
		return nil
	})
	for _, task := range a.Background {
		g.Go(func() error { return task(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown started")
		return a.shutdown()
	})
	return g.Wait()
}

func (a *App) shutdown() error {
	timeout := a.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		err := a.Server.Shutdown(ctx)
		if err == nil {
			slog.Info("server stopped accepting connections")
		}
		for _, d := range a.Drainers {
			err = multierr.Append(err, d.Drain(ctx))
		}
		done <- err
	}()

	select {
	case err := <-done:
		if errors.Is(err, context.DeadlineExceeded) {
			return a.forceClose(timeout)
		}
		if err != nil {
			return fmt.Errorf("lifecycle: shutdown: %w", err)
		}
		slog.Info("shutdown complete")
		return nil
	case <-ctx.Done():
		return a.forceClose(timeout)
	}
}

func (a *App) forceClose(timeout time.Duration) error {
	slog.Error("could not finish in time, forcing shutdown", "timeout", timeout.String())
	_ = a.Server.Close()
	return ErrForcedShutdown
}
