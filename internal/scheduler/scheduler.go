package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/vipul43/tmdb-sync-worker/internal/service"
)

// Trigger starts a sync run for a job
type Trigger interface {
	StartSync(ctx context.Context, jobName string) (*service.StartResult, error)
}

// Scheduler fires the sync trigger on a cron schedule. A run is skipped when
// the previous trigger call is still executing.
type Scheduler struct {
	cron    *cron.Cron
	trigger Trigger
	jobName string
	ctx     context.Context
}

func New(ctx context.Context, spec, jobName string, trigger Trigger) (*Scheduler, error) {
	s := &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.DefaultLogger),
			cron.SkipIfStillRunning(cron.DefaultLogger),
		)),
		trigger: trigger,
		jobName: jobName,
		ctx:     ctx,
	}

	if _, err := s.cron.AddFunc(spec, s.Run); err != nil {
		return nil, fmt.Errorf("invalid sync schedule %q: %w", spec, err)
	}
	return s, nil
}

// Run triggers one sync immediately
func (s *Scheduler) Run() {
	logger := log.WithField("job", s.jobName)
	logger.Info("Scheduled sync triggered")

	result, err := s.trigger.StartSync(s.ctx, s.jobName)
	if err != nil {
		logger.WithError(err).Error("Scheduled sync failed to start")
		return
	}
	logger.WithFields(log.Fields{
		"run_id":     result.RunID,
		"start_page": result.StartPage,
		"batches":    len(result.Batches),
	}).Info("Scheduled sync started")
}

func (s *Scheduler) Start() {
	s.cron.Start()
	for _, entry := range s.cron.Entries() {
		log.WithField("next_run", entry.Next).Info("Sync scheduler started")
	}
}

// Stop prevents new runs and returns a context done once running triggers finish
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
