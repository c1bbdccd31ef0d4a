package job

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/docspasta/internal/kv"
	"github.com/jonesrussell/docspasta/internal/logger"
)

// reaperSchedule is how often the active jobs are swept.
const reaperSchedule = "@every 30s"

// sweepTimeout bounds one full sweep over the active index.
const sweepTimeout = 25 * time.Second

// Reaper periodically runs completion detection over every active job. It is
// the safety net for jobs whose workers all died without a final check, and
// the only place jobTimeout overruns are caught for idle jobs.
type Reaper struct {
	svc  *Service
	cron *cron.Cron
	log  logger.Interface
}

// NewReaper builds the reaper around the job service.
func NewReaper(svc *Service, log logger.Interface) *Reaper {
	return &Reaper{
		svc:  svc,
		cron: cron.New(),
		log:  log.WithComponent("reaper"),
	}
}

// Start schedules the sweep and begins running it.
func (r *Reaper) Start() error {
	if _, err := r.cron.AddFunc(reaperSchedule, r.Sweep); err != nil {
		return err
	}

	r.cron.Start()
	r.log.Info("reaper started", "schedule", reaperSchedule)

	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (r *Reaper) Stop() {
	<-r.cron.Stop().Done()
	r.log.Info("reaper stopped")
}

// Sweep runs one completion pass over the active index.
func (r *Reaper) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	ids, err := r.svc.store.SetMembers(ctx, kv.ActiveJobsKey)
	if err != nil {
		r.log.Error("active index read failed", "error", err)
		return
	}

	for _, id := range ids {
		if err := r.svc.CheckCompletion(ctx, id); err != nil {
			r.log.Warn("completion check failed", "job_id", id, "error", err)
		}
	}
}
