package lifecycle

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ShutdownFunc describes a graceful shutdown callback.
type ShutdownFunc func(ctx context.Context) error

// RunFunc is a long-running component. It should return once ctx is done.
type RunFunc func(ctx context.Context) error

type hook struct {
	name string
	fn   ShutdownFunc
}

// Manager owns the process lifetime: it cancels on SIGINT/SIGTERM or when a
// component started with Go fails, then runs shutdown hooks in reverse
// registration order.
type Manager struct {
	timeout time.Duration
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	mu    sync.Mutex
	hooks []hook
}

// New creates a manager whose context ends on a termination signal.
func New(parent context.Context, timeout time.Duration, logger *zap.Logger) *Manager {
	if parent == nil {
		parent = context.Background()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sigCtx, stop := signal.NotifyContext(parent, syscall.SIGTERM, syscall.SIGINT, os.Interrupt)
	group, groupCtx := errgroup.WithContext(sigCtx)
	ctx, cancel := context.WithCancel(groupCtx)

	return &Manager{
		timeout: timeout,
		logger:  logger,
		ctx:     ctx,
		cancel: func() {
			cancel()
			stop()
		},
		group: group,
	}
}

// Context is cancelled when the process should stop.
func (m *Manager) Context() context.Context {
	return m.ctx
}

// Stop requests shutdown programmatically.
func (m *Manager) Stop() {
	m.cancel()
}

// Go runs fn in the background. A non-nil error cancels Context.
func (m *Manager) Go(name string, fn RunFunc) {
	m.group.Go(func() error {
		err := fn(m.ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Error("component failed", zap.String("component", name), zap.Error(err))
			return err
		}
		return nil
	})
}

// Register adds a shutdown hook. Hooks are executed in reverse order.
func (m *Manager) Register(name string, fn ShutdownFunc) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, hook{name: name, fn: fn})
}

// Wait blocks until Context is done, runs the shutdown hooks and returns the
// first component failure joined with any hook errors.
func (m *Manager) Wait() error {
	<-m.ctx.Done()
	m.logger.Info("shutting down")

	shutdownErr := m.Shutdown(context.Background())
	runErr := m.group.Wait()
	m.cancel()
	return errors.Join(runErr, shutdownErr)
}

// Shutdown executes all registered hooks, respecting the configured timeout.
func (m *Manager) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	m.mu.Lock()
	hooks := m.hooks
	m.hooks = nil
	m.mu.Unlock()

	var result error
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		started := time.Now()
		if err := h.fn(ctx); err != nil {
			m.logger.Error("shutdown hook failed", zap.String("component", h.name), zap.Error(err))
			result = errors.Join(result, err)
			continue
		}
		m.logger.Info("component stopped",
			zap.String("component", h.name),
			zap.Duration("took", time.Since(started)))
	}
	return result
}
