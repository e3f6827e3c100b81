package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/emrgen/digidoc/internal/disposal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSweeper struct {
	calls  atomic.Int32
	report *disposal.Report
	err    error
}

func (f *fakeSweeper) SweepRetention(ctx context.Context) (*disposal.Report, error) {
	f.calls.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return nil, errors.New("sweep without deadline")
	}
	return f.report, f.err
}

func TestRetentionJob_Run(t *testing.T) {
	sweeper := &fakeSweeper{report: &disposal.Report{Scanned: 2, Marked: []string{"d1"}}}
	job := NewRetentionJob("@every 1h", sweeper)

	assert.Equal(t, "retention_sweep", job.ID())
	assert.Equal(t, "@every 1h", job.Schedule())

	job.Run()
	assert.Equal(t, int32(1), sweeper.calls.Load())

	sweeper.err = errors.New("database gone")
	sweeper.report = nil
	job.Run()
	assert.Equal(t, int32(2), sweeper.calls.Load())
}

type blockingJob struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingJob) ID() string       { return "blocking" }
func (b *blockingJob) Schedule() string { return "@every 1h" }
func (b *blockingJob) Run() {
	close(b.started)
	<-b.release
}

func TestTaskExecutor_SkipsRunningJob(t *testing.T) {
	job := &blockingJob{started: make(chan struct{}), release: make(chan struct{})}
	executor := NewTaskExecutor(job)

	done := make(chan bool)
	go func() {
		done <- executor.trigger(job)
	}()
	<-job.started

	assert.False(t, executor.trigger(job))

	close(job.release)
	assert.True(t, <-done)
	assert.False(t, executor.running.Contains(job.ID()))
}

func TestTaskExecutor_RunsScheduledJob(t *testing.T) {
	sweeper := &fakeSweeper{report: &disposal.Report{}}
	executor := NewTaskExecutor(NewRetentionJob("@every 1s", sweeper))
	require.NoError(t, executor.Start())
	defer executor.Stop()

	require.Eventually(t, func() bool {
		return sweeper.calls.Load() > 0
	}, 5*time.Second, 50*time.Millisecond)
}

func TestTaskExecutor_InvalidSchedule(t *testing.T) {
	executor := NewTaskExecutor(NewRetentionJob("every now and then", &fakeSweeper{}))
	assert.Error(t, executor.Start())
}
