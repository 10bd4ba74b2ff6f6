package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/marketgate/pkg/logger"
)

type countingJob struct {
	name     string
	schedule string
	failures int32 // fail this many runs before succeeding
	runs     atomic.Int32
}

func (j *countingJob) Name() string     { return j.name }
func (j *countingJob) Schedule() string { return j.schedule }

func (j *countingJob) Run(ctx context.Context) error {
	n := j.runs.Add(1)
	if n <= j.failures {
		return errors.New("transient")
	}
	return nil
}

func newTestScheduler(opts ...Option) *Scheduler {
	return New(logger.Nop(), time.UTC, append([]Option{WithRetry(2, time.Millisecond)}, opts...)...)
}

func TestAddJob(t *testing.T) {
	s := newTestScheduler()

	require.NoError(t, s.AddJob(&countingJob{name: "b", schedule: "0 */10 * * * *"}))
	require.NoError(t, s.AddJob(&countingJob{name: "a", schedule: "@every 1m"}))

	err := s.AddJob(&countingJob{name: "a", schedule: "@every 1m"})
	assert.Error(t, err)

	err = s.AddJob(&countingJob{name: "bad", schedule: "not a schedule"})
	assert.Error(t, err)

	assert.Equal(t, []string{"a", "b"}, s.GetAllJobs())
}

func TestRunJobSyncRetries(t *testing.T) {
	tests := []struct {
		name         string
		failures     int32
		wantSuccess  bool
		wantAttempts int
	}{
		{"first try", 0, true, 1},
		{"after one failure", 1, true, 2},
		{"retries spent", 5, false, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestScheduler()
			job := &countingJob{name: "job", schedule: "@every 1h", failures: tt.failures}
			require.NoError(t, s.AddJob(job))

			result, err := s.RunJobSync("job")
			require.NoError(t, err)
			assert.Equal(t, tt.wantSuccess, result.Success)
			assert.Equal(t, tt.wantAttempts, result.Attempts)
			if !tt.wantSuccess {
				assert.Equal(t, "transient", result.Error)
			}

			history, err := s.GetJobHistory("job")
			require.NoError(t, err)
			require.Len(t, history.Results, 1)

			stats := s.GetJobStats()["job"]
			assert.Equal(t, 1, stats.TotalRuns)
			require.NotNil(t, stats.LastRun)
			if tt.wantSuccess {
				assert.NotNil(t, stats.LastSuccess)
				assert.Equal(t, 1.0, stats.SuccessRate)
			} else {
				assert.NotNil(t, stats.LastFailure)
				assert.Equal(t, 1, stats.FailureCount)
			}
		})
	}
}

func TestRunJobUnknown(t *testing.T) {
	s := newTestScheduler()

	assert.Error(t, s.RunJob("missing"))
	_, err := s.RunJobSync("missing")
	assert.Error(t, err)
	_, err = s.GetJobHistory("missing")
	assert.Error(t, err)
}

func TestRemoveJob(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.AddJob(&countingJob{name: "job", schedule: "@every 1h"}))

	require.NoError(t, s.RemoveJob("job"))
	assert.Empty(t, s.GetAllJobs())
	assert.Error(t, s.RemoveJob("job"))

	// Re-adding after removal is allowed
	require.NoError(t, s.AddJob(&countingJob{name: "job", schedule: "@every 1h"}))
}

func TestStartStop(t *testing.T) {
	s := newTestScheduler()
	job := &countingJob{name: "tick", schedule: "@every 1s"}
	require.NoError(t, s.AddJob(job))

	s.Start()
	assert.Eventually(t, func() bool { return job.runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	s.Stop()

	stats := s.GetJobStats()["tick"]
	assert.Positive(t, stats.TotalRuns)
}

func TestStopCancelsRetryWait(t *testing.T) {
	s := New(logger.Nop(), time.UTC, WithRetry(3, time.Hour))
	require.NoError(t, s.AddJob(&countingJob{name: "job", schedule: "@every 1h", failures: 10}))

	done := make(chan JobResult)
	go func() {
		result, _ := s.RunJobSync("job")
		done <- result
	}()

	time.Sleep(50 * time.Millisecond)
	s.Stop()

	select {
	case result := <-done:
		assert.False(t, result.Success)
		assert.Equal(t, 1, result.Attempts)
	case <-time.After(2 * time.Second):
		t.Fatal("job did not stop")
	}
}

func TestJobHistoryBounded(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < historyLimit+20; i++ {
		h.AddResult(JobResult{Success: i%2 == 0})
	}

	assert.Len(t, h.Results, historyLimit)
	assert.Len(t, h.GetLatestResults(5), 5)
	assert.Empty(t, h.GetLatestResults(0))
	assert.Len(t, h.GetFailedResults(), historyLimit/2)
	assert.Equal(t, 0.5, h.GetSuccessRate())
	assert.Zero(t, (&JobHistory{}).GetSuccessRate())
}
