package services

import (
	"context"
	"time"

	"github.com/maxaizer/jobboard-core/internal/domain/events"
	"github.com/maxaizer/jobboard-core/internal/domain/models"
	"github.com/maxaizer/jobboard-core/internal/logger"
	"github.com/maxaizer/jobboard-core/internal/metrics"
	"github.com/maxaizer/jobboard-core/internal/repositories"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

type expiredJobsLister interface {
	List(ctx context.Context, kind models.Kind, filter repositories.Filter) ([]models.Entity, error)
}

type jobExpirer interface {
	Expire(ctx context.Context, jobID int64) (*events.TransitionEvent, error)
}

// JobsExpirer periodically moves published jobs past their expiry date to
// expired.
type JobsExpirer struct {
	jobs     expiredJobsLister
	executor jobExpirer
	cron     *cron.Cron
	now      func() time.Time
}

func NewJobsExpirer(jobs expiredJobsLister, executor jobExpirer) (*JobsExpirer, error) {
	if jobs == nil || executor == nil {
		return nil, errors.New("jobs lister and executor are required")
	}
	return &JobsExpirer{
		jobs:     jobs,
		executor: executor,
		cron:     cron.New(),
		now:      time.Now,
	}, nil
}

func (je *JobsExpirer) Start(schedule string) error {
	if _, err := je.cron.AddFunc(schedule, func() { je.ExpireDue(context.Background()) }); err != nil {
		return errors.Wrapf(err, "invalid expiry schedule %q", schedule)
	}
	je.cron.Start()
	log.Infof("jobs expirer started, schedule: %s", schedule)
	return nil
}

func (je *JobsExpirer) Stop() {
	<-je.cron.Stop().Done()
}

// ExpireDue expires every published job whose expiry time has passed and
// returns how many were expired.
func (je *JobsExpirer) ExpireDue(ctx context.Context) int {
	now := je.now().UTC()
	jobs, err := je.jobs.List(ctx, models.KindJob, repositories.Filter{
		Status:        models.JobPublished,
		ExpiresBefore: &now,
	})
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Errorf("failed to list expired jobs: %v", err)
		return 0
	}

	expired := 0
	for _, job := range jobs {
		if _, err = je.executor.Expire(ctx, job.ID); err != nil {
			// the job may have been archived or unpublished meanwhile
			log.Warnf("failed to expire job %d: %v", job.ID, err)
			continue
		}
		expired++
		metrics.ExpiredJobsCounter.Inc()
	}

	if expired > 0 {
		log.Infof("expired %d jobs at %v", expired, now)
	}
	return expired
}
