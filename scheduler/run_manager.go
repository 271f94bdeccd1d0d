package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"buildbank/logger"
	"buildbank/models"
)

// ErrRunInProgress is returned when a batch is requested while one is running.
var ErrRunInProgress = errors.New("a price update is already running")

// BatchRunner runs one batch price update.
type BatchRunner interface {
	RunBatch(ctx context.Context) (*models.RunSummary, error)
}

// RunManager allows at most one batch in flight and remembers how the last
// one ended.
type RunManager struct {
	runner BatchRunner
	base   context.Context
	log    *logger.Logger

	mutex     sync.RWMutex
	running   bool
	startedAt *time.Time
	cancel    context.CancelFunc
	done      chan struct{}
	last      *models.RunSummary
	lastErr   string
}

// NewRunManager creates a manager whose async runs derive from base, so
// cancelling base stops them.
func NewRunManager(base context.Context, runner BatchRunner, log *logger.Logger) *RunManager {
	return &RunManager{
		runner: runner,
		base:   base,
		log:    logger.OrNop(log),
	}
}

func (m *RunManager) begin(parent context.Context) (context.Context, chan struct{}, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.running {
		return nil, nil, ErrRunInProgress
	}
	ctx, cancel := context.WithCancel(parent)
	now := time.Now()
	m.running = true
	m.startedAt = &now
	m.cancel = cancel
	m.done = make(chan struct{})
	return ctx, m.done, nil
}

func (m *RunManager) finish(summary *models.RunSummary, err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.cancel != nil {
		m.cancel()
	}
	m.running = false
	m.startedAt = nil
	m.cancel = nil
	if summary != nil {
		m.last = summary
	}
	m.lastErr = ""
	if err != nil {
		m.lastErr = err.Error()
	}
	close(m.done)
}

// Start launches a batch in the background.
func (m *RunManager) Start() error {
	ctx, _, err := m.begin(m.base)
	if err != nil {
		return err
	}

	m.log.Info().Msg("price update started")
	go func() {
		summary, err := m.run(ctx)
		if err != nil {
			m.log.Error().Err(err).Msg("price update failed")
		}
		m.finish(summary, err)
	}()
	return nil
}

// RunNow runs a batch and blocks until it finishes.
func (m *RunManager) RunNow(ctx context.Context) (*models.RunSummary, error) {
	runCtx, _, err := m.begin(ctx)
	if err != nil {
		return nil, err
	}
	summary, err := m.run(runCtx)
	m.finish(summary, err)
	return summary, err
}

func (m *RunManager) run(ctx context.Context) (summary *models.RunSummary, err error) {
	defer func() {
		if p := recover(); p != nil {
			m.log.Error().Interface("panic", p).Msg("price update panicked")
			err = errors.New("price update aborted unexpectedly")
		}
	}()
	return m.runner.RunBatch(ctx)
}

// Cancel stops the running batch. It reports whether one was running.
func (m *RunManager) Cancel() bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if !m.running || m.cancel == nil {
		return false
	}
	m.log.Info().Msg("cancelling price update")
	m.cancel()
	return true
}

// Wait blocks until the running batch, if any, has finished or ctx is done.
func (m *RunManager) Wait(ctx context.Context) error {
	m.mutex.RLock()
	done := m.done
	running := m.running
	m.mutex.RUnlock()

	if !running || done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *RunManager) Status() models.RunStatus {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	status := models.RunStatus{
		Running:     m.running,
		LastSummary: m.last,
		LastError:   m.lastErr,
	}
	if m.startedAt != nil {
		started := *m.startedAt
		status.StartedAt = &started
	}
	return status
}
