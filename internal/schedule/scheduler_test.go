package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name  string
	runs  atomic.Int32
	err   error
	block chan struct{}
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	if j.block != nil {
		<-j.block
	}
	return j.err
}

func TestRunOnce(t *testing.T) {
	job := &countingJob{name: "once"}
	require.NoError(t, RunOnce(context.Background(), job))
	require.Equal(t, int32(1), job.runs.Load())

	job.err = errors.New("boom")
	require.EqualError(t, RunOnce(context.Background(), job), "boom")
}

func TestAddJob(t *testing.T) {
	s := NewCronScheduler()
	job := &countingJob{name: "sweep"}
	require.NoError(t, s.AddJob(job, "*/10 * * * *"))
	require.Error(t, s.AddJob(job, "*/10 * * * *"))
	require.Error(t, s.AddJob(&countingJob{name: "bad"}, "not a spec"))

	s.Start(context.Background())
	defer s.Stop()
	next, ok := s.Next("sweep")
	require.True(t, ok)
	require.True(t, next.After(time.Now()))
	_, ok = s.Next("bad")
	require.False(t, ok)
}

func TestScheduledRunsSkipWhileBusy(t *testing.T) {
	s := NewCronScheduler()
	job := &countingJob{name: "slow", block: make(chan struct{})}
	require.NoError(t, s.AddJob(job, "@every 1s"))
	s.Start(context.Background())

	require.Eventually(t, func() bool { return job.runs.Load() == 1 }, 3*time.Second, 20*time.Millisecond)
	time.Sleep(1500 * time.Millisecond)
	require.Equal(t, int32(1), job.runs.Load())
	close(job.block)
	s.Stop()
}
