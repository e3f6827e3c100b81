package jobs

import (
	"context"
	"time"

	"github.com/emrgen/digidoc/internal/disposal"
	"github.com/sirupsen/logrus"
)

type Sweeper interface {
	SweepRetention(ctx context.Context) (*disposal.Report, error)
}

// RetentionJob periodically moves expired documents to PendingDeletion.
type RetentionJob struct {
	sweeper  Sweeper
	schedule string
	timeout  time.Duration
}

func NewRetentionJob(schedule string, sweeper Sweeper) *RetentionJob {
	return &RetentionJob{
		sweeper:  sweeper,
		schedule: schedule,
		timeout:  10 * time.Minute,
	}
}

func (r *RetentionJob) ID() string {
	return "retention_sweep"
}

func (r *RetentionJob) Schedule() string {
	return r.schedule
}

func (r *RetentionJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	start := time.Now()
	report, err := r.sweeper.SweepRetention(ctx)
	if err != nil {
		logrus.Errorf("retention sweep failed: %v", err)
		return
	}
	if report.Held {
		return
	}

	logrus.Infof("retention sweep: scanned %d, marked %d, failed %d in %v",
		report.Scanned, len(report.Marked), report.Failed, time.Since(start))
}
