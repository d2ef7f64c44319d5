package pipeline

import (
	"context"

	"github.com/teranos/autoblog/blog"
	"github.com/teranos/autoblog/errors"
	"github.com/teranos/autoblog/logger"
)

// MaxOrphanedJobsToRecover limits how many jobs one recovery pass touches.
const MaxOrphanedJobsToRecover = 1000

// InterruptedMessage is recorded on jobs a crash left in processing.
const InterruptedMessage = "Job interrupted before completion"

// RecoveryResult counts what RecoverOrphans did.
type RecoveryResult struct {
	Redispatched int `json:"redispatched"`
	Failed       int `json:"failed"`
	Errors       int `json:"errors"`
	InFlight     int `json:"inFlight"`
}

// RecoverOrphans handles jobs left behind by an ungraceful shutdown. Queued
// jobs are dispatched again. Processing jobs cannot be resumed (their side
// effects are unknown), so they are failed with kind internal, but only once
// they have been processing for longer than Config.OrphanAfter: a younger job
// may still be running in another process sharing the database.
// ✿ Opening: run once before the worker pool accepts new work.
func (o *Orchestrator) RecoverOrphans(ctx context.Context, d Dispatcher) (RecoveryResult, error) {
	var res RecoveryResult
	log := logger.AddPulseOpenSymbol(o.logger)

	processing, err := o.store.ListJobs(ctx, blog.JobFilter{Status: blog.JobProcessing, Limit: MaxOrphanedJobsToRecover})
	if err != nil {
		return res, errors.Wrap(err, "failed to list processing jobs")
	}
	now := o.now()
	for _, job := range processing {
		if job.StartedAt != nil && now.Sub(*job.StartedAt) < o.cfg.OrphanAfter {
			res.InFlight++
			continue
		}
		failedAt := now
		err := o.store.UpdateJobStatus(ctx, job.ID, blog.JobFailed, blog.JobPatch{
			Error:    &blog.JobError{Message: InterruptedMessage, Kind: blog.KindInternal},
			FailedAt: &failedAt,
		})
		if err != nil {
			res.Errors++
			log.Warnw("Failed to fail orphaned job", logger.FieldJobID, job.ID, logger.FieldError, err)
			continue
		}
		res.Failed++
		o.metrics.IncJobFailure(string(blog.KindInternal))
		o.notify(ctx, job.ID)
	}

	queued, err := o.store.ListJobs(ctx, blog.JobFilter{Status: blog.JobQueued, Limit: MaxOrphanedJobsToRecover})
	if err != nil {
		return res, errors.Wrap(err, "failed to list queued jobs")
	}
	for _, job := range queued {
		if err := d.Dispatch(job.ID, job.TopicID, job.SiteID); err != nil {
			res.Errors++
			log.Warnw("Failed to re-dispatch queued job", logger.FieldJobID, job.ID, logger.FieldError, err)
			continue
		}
		res.Redispatched++
	}

	if res.Failed+res.Redispatched+res.Errors > 0 {
		log.Infow("Recovered orphaned jobs",
			"redispatched", res.Redispatched,
			"failed", res.Failed,
			"errors", res.Errors,
			"in_flight", res.InFlight)
	}
	return res, nil
}
