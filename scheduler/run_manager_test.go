package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buildbank/logger"
	"buildbank/models"
)

// blockingRunner holds every run open until release is closed or the run
// context is cancelled.
type blockingRunner struct {
	started chan struct{}
	release chan struct{}
	err     error
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{started: make(chan struct{}, 4), release: make(chan struct{})}
}

func (b *blockingRunner) RunBatch(ctx context.Context) (*models.RunSummary, error) {
	summary := models.NewRunSummary(time.Now())
	b.started <- struct{}{}
	select {
	case <-b.release:
	case <-ctx.Done():
		summary.Cancelled = true
	}
	summary.Finish(time.Now())
	return summary, b.err
}

func waitStarted(t *testing.T, b *blockingRunner) {
	t.Helper()
	select {
	case <-b.started:
	case <-time.After(2 * time.Second):
		t.Fatal("run never started")
	}
}

func TestRunManagerSingleFlight(t *testing.T) {
	runner := newBlockingRunner()
	m := NewRunManager(context.Background(), runner, logger.Nop())

	require.NoError(t, m.Start())
	waitStarted(t, runner)

	assert.ErrorIs(t, m.Start(), ErrRunInProgress)
	_, err := m.RunNow(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)

	status := m.Status()
	assert.True(t, status.Running)
	assert.NotNil(t, status.StartedAt)

	close(runner.release)
	require.NoError(t, m.Wait(context.Background()))

	status = m.Status()
	assert.False(t, status.Running)
	assert.Nil(t, status.StartedAt)
	require.NotNil(t, status.LastSummary)
	assert.False(t, status.LastSummary.Cancelled)
	assert.Empty(t, status.LastError)
}

func TestRunManagerCancel(t *testing.T) {
	runner := newBlockingRunner()
	m := NewRunManager(context.Background(), runner, logger.Nop())
	assert.False(t, m.Cancel())

	require.NoError(t, m.Start())
	waitStarted(t, runner)
	assert.True(t, m.Cancel())

	require.NoError(t, m.Wait(context.Background()))
	status := m.Status()
	require.NotNil(t, status.LastSummary)
	assert.True(t, status.LastSummary.Cancelled)

	// a new run is accepted once the cancelled one has finished
	close(runner.release)
	summary, err := m.RunNow(context.Background())
	require.NoError(t, err)
	assert.False(t, summary.Cancelled)
}

func TestRunManagerRecordsError(t *testing.T) {
	runner := newBlockingRunner()
	runner.err = errors.New("failed to record last price update: read-only")
	close(runner.release)
	m := NewRunManager(context.Background(), runner, logger.Nop())

	summary, err := m.RunNow(context.Background())
	require.Error(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, runner.err.Error(), m.Status().LastError)
}

type panickingRunner struct{}

func (panickingRunner) RunBatch(context.Context) (*models.RunSummary, error) {
	panic("boom")
}

func TestRunManagerRecoversPanic(t *testing.T) {
	m := NewRunManager(context.Background(), panickingRunner{}, logger.Nop())

	_, err := m.RunNow(context.Background())
	require.Error(t, err)
	assert.False(t, m.Status().Running)
}

func TestCronTriggerRejectsBadSchedule(t *testing.T) {
	m := NewRunManager(context.Background(), newBlockingRunner(), logger.Nop())
	trigger := NewCronTrigger("every tuesday", m, logger.Nop())
	assert.Error(t, trigger.Start())
}

func TestCronTriggerStartsRuns(t *testing.T) {
	runner := newBlockingRunner()
	m := NewRunManager(context.Background(), runner, logger.Nop())
	trigger := NewCronTrigger("* * * * * *", m, logger.Nop())
	require.NoError(t, trigger.Start())
	defer trigger.Stop()

	waitStarted(t, runner)
	// the next tick is skipped while the first run holds the slot
	trigger.trigger()
	assert.True(t, m.Status().Running)

	close(runner.release)
	require.NoError(t, m.Wait(context.Background()))
}
