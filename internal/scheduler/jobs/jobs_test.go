package jobs

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/marketgate/internal/cache"
	"github.com/wonny/marketgate/internal/earnings"
	"github.com/wonny/marketgate/internal/governor"
	"github.com/wonny/marketgate/pkg/config"
	"github.com/wonny/marketgate/pkg/logger"
)

type fakeWarmer struct {
	sectors []string
	err     error
}

func (w *fakeWarmer) Prewarm(ctx context.Context, sectors []string) (earnings.PrewarmReport, error) {
	w.sectors = sectors
	return earnings.PrewarmReport{Warmed: []string{cache.ScopeAll}}, w.err
}

type saverFunc func(ctx context.Context) (int, error)

func (f saverFunc) SaveSnapshot(ctx context.Context) (int, error) { return f(ctx) }

type staticStatus governor.Status

func (s staticStatus) Status() governor.Status { return governor.Status(s) }

func captureLogger(buf *bytes.Buffer) *logger.Logger {
	return logger.NewWithWriter(&config.Config{LogLevel: "debug", LogFormat: "json"}, buf)
}

func TestCachePrewarmJob(t *testing.T) {
	w := &fakeWarmer{}
	job := NewCachePrewarmJob(w, []string{"Technology"}, "", logger.Nop())

	assert.Equal(t, "cache_prewarm", job.Name())
	assert.Equal(t, "0 5 0 * * 1-5", job.Schedule())
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, []string{"Technology"}, w.sectors)

	w.err = errors.New("breaker open")
	assert.ErrorIs(t, job.Run(context.Background()), w.err)

	assert.Equal(t, "@every 1h", NewCachePrewarmJob(w, nil, "@every 1h", logger.Nop()).Schedule())
}

func TestCacheSnapshotJob(t *testing.T) {
	tests := []struct {
		name    string
		save    saverFunc
		wantErr bool
	}{
		{"saved", func(context.Context) (int, error) { return 3, nil }, false},
		{"no store configured", func(context.Context) (int, error) { return 0, cache.ErrNoSnapshotStore }, false},
		{"store failure", func(context.Context) (int, error) { return 0, errors.New("disk full") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewCacheSnapshotJob(tt.save, logger.Nop())
			assert.Equal(t, "cache_snapshot", job.Name())

			err := job.Run(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGovernorReportJob(t *testing.T) {
	tests := []struct {
		name      string
		status    governor.Status
		wantLevel string
	}{
		{"healthy", governor.Status{CircuitState: governor.StateClosed}, `"level":"debug"`},
		{"backing off", governor.Status{CircuitState: governor.StateClosed, ConsecutiveFailures: 2}, `"level":"warn"`},
		{"open", governor.Status{CircuitState: governor.StateOpen, CircuitOpen: true, ConsecutiveFailures: 5}, `"level":"warn"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			job := NewGovernorReportJob(staticStatus(tt.status), captureLogger(&buf))

			require.NoError(t, job.Run(context.Background()))
			assert.Contains(t, buf.String(), tt.wantLevel)
			assert.Contains(t, buf.String(), `"circuit_state":"`+string(tt.status.CircuitState)+`"`)
		})
	}
}
