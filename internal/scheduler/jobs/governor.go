package jobs

import (
	"context"

	"github.com/wonny/marketgate/internal/governor"
	"github.com/wonny/marketgate/pkg/logger"
)

// StatusSource reports the governor state
type StatusSource interface {
	Status() governor.Status
}

// GovernorReportJob logs the governor state, loudly while the circuit is not closed
type GovernorReportJob struct {
	source StatusSource
	logger *logger.Logger
}

// NewGovernorReportJob creates a new governor report job
func NewGovernorReportJob(src StatusSource, log *logger.Logger) *GovernorReportJob {
	return &GovernorReportJob{
		source: src,
		logger: log,
	}
}

// Name returns the job name
func (j *GovernorReportJob) Name() string {
	return "governor_report"
}

// Schedule returns the cron schedule (every minute)
func (j *GovernorReportJob) Schedule() string {
	return "0 * * * * *"
}

// Run logs one status line
func (j *GovernorReportJob) Run(ctx context.Context) error {
	status := j.source.Status()
	log := j.logger.WithFields(status.Fields())

	if status.CircuitState != governor.StateClosed || status.ConsecutiveFailures > 0 {
		log.Warn("Upstream governor degraded")
		return nil
	}

	log.Debug("Upstream governor healthy")
	return nil
}
