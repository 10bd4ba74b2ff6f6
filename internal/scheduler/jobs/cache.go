package jobs

import (
	"context"
	"errors"

	"github.com/wonny/marketgate/internal/cache"
	"github.com/wonny/marketgate/internal/earnings"
	"github.com/wonny/marketgate/pkg/logger"
)

// Warmer fills the result cache ahead of requests
type Warmer interface {
	Prewarm(ctx context.Context, sectors []string) (earnings.PrewarmReport, error)
}

// CachePrewarmJob computes today's entries shortly after the day rolls over
// ⭐ SSOT: 캐시 예열 스케줄은 이 Job에서만
type CachePrewarmJob struct {
	warmer   Warmer
	sectors  []string
	schedule string
	logger   *logger.Logger
}

// NewCachePrewarmJob warms the combined scope plus each of sectors
func NewCachePrewarmJob(w Warmer, sectors []string, schedule string, log *logger.Logger) *CachePrewarmJob {
	if schedule == "" {
		schedule = "0 5 0 * * 1-5"
	}
	return &CachePrewarmJob{
		warmer:   w,
		sectors:  sectors,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *CachePrewarmJob) Name() string {
	return "cache_prewarm"
}

// Schedule returns the cron schedule (00:05 on weekdays by default)
func (j *CachePrewarmJob) Schedule() string {
	return j.schedule
}

// Run executes the prewarm
func (j *CachePrewarmJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled cache prewarm")

	report, err := j.warmer.Prewarm(ctx, j.sectors)

	j.logger.WithFields(map[string]interface{}{
		"warmed": len(report.Warmed),
		"failed": len(report.Failed),
	}).Info("Cache prewarm finished")

	return err
}

// Saver persists the result cache
type Saver interface {
	SaveSnapshot(ctx context.Context) (int, error)
}

// CacheSnapshotJob writes the result cache to its snapshot store
type CacheSnapshotJob struct {
	saver  Saver
	logger *logger.Logger
}

// NewCacheSnapshotJob creates a new cache snapshot job
func NewCacheSnapshotJob(s Saver, log *logger.Logger) *CacheSnapshotJob {
	return &CacheSnapshotJob{
		saver:  s,
		logger: log,
	}
}

// Name returns the job name
func (j *CacheSnapshotJob) Name() string {
	return "cache_snapshot"
}

// Schedule returns the cron schedule (every 10 minutes)
func (j *CacheSnapshotJob) Schedule() string {
	return "0 */10 * * * *"
}

// Run saves the snapshot; no configured store is not an error
func (j *CacheSnapshotJob) Run(ctx context.Context) error {
	n, err := j.saver.SaveSnapshot(ctx)
	if errors.Is(err, cache.ErrNoSnapshotStore) {
		return nil
	}
	if err != nil {
		return err
	}

	j.logger.WithField("entries", n).Debug("Cache snapshot saved")
	return nil
}
