// Package shutdown runs registered cleanup steps when the process is asked to stop.
package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

type step struct {
	name string
	fn   func(context.Context) error
}

// Manager handles graceful shutdown
type Manager struct {
	mu      sync.Mutex
	steps   []step
	timeout time.Duration
	logger  *zap.Logger
	done    chan struct{}
	once    sync.Once
}

// New creates a new shutdown manager
func New(timeout time.Duration, logger *zap.Logger) *Manager {
	return &Manager{
		timeout: timeout,
		logger:  logger.Named("shutdown"),
		done:    make(chan struct{}),
	}
}

// Register adds a named shutdown step.
// Steps run in reverse registration order.
func (m *Manager) Register(name string, fn func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, step{name: name, fn: fn})
}

// Wait blocks until SIGINT/SIGTERM arrives or ctx is cancelled
func (m *Manager) Wait(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		m.logger.Info("Received signal, initiating graceful shutdown", zap.String("signal", sig.String()))
	case <-ctx.Done():
		m.logger.Info("Shutdown requested")
	}
	m.once.Do(func() { close(m.done) })
}

// Done returns a channel that is closed when shutdown is initiated
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Shutdown executes all registered steps within the manager timeout.
// It returns the number of steps that failed.
func (m *Manager) Shutdown() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	failed := 0
	for i := len(m.steps) - 1; i >= 0; i-- {
		s := m.steps[i]
		if err := s.fn(ctx); err != nil {
			failed++
			m.logger.Warn("Shutdown step failed", zap.String("step", s.name), zap.Error(err))
			continue
		}
		m.logger.Debug("Shutdown step complete", zap.String("step", s.name))
	}

	m.logger.Info("Graceful shutdown complete", zap.Int("failed_steps", failed))
	return failed
}

// StopHTTPServer creates a shutdown step for http.Server
func StopHTTPServer(server interface{ Shutdown(context.Context) error }) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to stop HTTP server: %w", err)
		}
		return nil
	}
}

// CloseResource creates a shutdown step for io.Closer
func CloseResource(closer interface{ Close() error }) func(context.Context) error {
	return func(ctx context.Context) error {
		return closer.Close()
	}
}

// WaitFor creates a shutdown step that blocks on wait until ctx expires.
// onTimeout runs when the deadline passes first.
func WaitFor(wait func(context.Context) error, onTimeout func()) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := wait(ctx); err != nil {
			if onTimeout != nil {
				onTimeout()
			}
			return fmt.Errorf("timed out waiting: %w", err)
		}
		return nil
	}
}
