package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/qazuor/qzpay-sub003/internal/domain/job"
	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/logger"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// EnqueueJobInput describes a unit of deferred work
type EnqueueJobInput struct {
	JobType  types.JobType
	Priority types.JobPriority
	Payload  json.RawMessage
	// ScheduledAt zero means run as soon as a worker picks it up
	ScheduledAt time.Time
	MaxAttempts int
}

// JobService is the queue for deferred billing work. Claiming marks jobs
// running; completion and failure move them to terminal states, with
// failed jobs re-scheduled under the retry policy while attempts remain.
type JobService struct {
	repo   job.Repository
	policy job.RetryPolicy
	clock  types.Clock
	logger *logger.Logger
}

func NewJobService(repo job.Repository, clock types.Clock, log *logger.Logger) *JobService {
	return &JobService{repo: repo, policy: job.DefaultRetryPolicy, clock: clock, logger: log}
}

// Enqueue adds a job to the queue
func (s *JobService) Enqueue(ctx context.Context, input EnqueueJobInput) (*job.Job, error) {
	if input.Priority == "" {
		input.Priority = types.JobPriorityNormal
	}
	if input.MaxAttempts <= 0 {
		input.MaxAttempts = 3
	}

	now := s.clock.Now()
	j := &job.Job{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_JOB),
		JobType:     input.JobType,
		JobStatus:   types.JobStatusPending,
		Priority:    input.Priority,
		Payload:     input.Payload,
		ScheduledAt: now,
		MaxAttempts: input.MaxAttempts,
		BaseModel:   types.GetDefaultBaseModel(ctx, false),
	}
	if !input.ScheduledAt.IsZero() {
		j.JobStatus = types.JobStatusScheduled
		j.ScheduledAt = input.ScheduledAt
	}
	if err := j.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, j); err != nil {
		return nil, err
	}
	return j, nil
}

func (s *JobService) Get(ctx context.Context, id string) (*job.Job, error) {
	return s.repo.Get(ctx, id)
}

func (s *JobService) List(ctx context.Context, filter *job.Filter) ([]*job.Job, error) {
	return s.repo.List(ctx, filter)
}

// Claim takes up to limit ready jobs and marks them running. Jobs a worker
// claims but never completes stay running until cancelled by an operator.
func (s *JobService) Claim(ctx context.Context, limit int) ([]*job.Job, error) {
	now := s.clock.Now()
	ready, err := s.repo.ListReady(ctx, now, limit)
	if err != nil {
		return nil, err
	}

	claimed := make([]*job.Job, 0, len(ready))
	for _, j := range ready {
		j.JobStatus = types.JobStatusRunning
		j.StartedAt = &now
		j.Attempts++
		if err := s.repo.Update(ctx, j); err != nil {
			s.logger.Warnw("failed to claim job", "job_id", j.ID, "error", err)
			continue
		}
		claimed = append(claimed, j)
	}
	return claimed, nil
}

// Complete marks a running job done
func (s *JobService) Complete(ctx context.Context, id string) error {
	j, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if j.JobStatus != types.JobStatusRunning {
		return s.notRunning(j)
	}
	now := s.clock.Now()
	j.JobStatus = types.JobStatusCompleted
	j.CompletedAt = &now
	return s.repo.Update(ctx, j)
}

// Fail records a failed attempt. With attempts left the job is
// re-scheduled under exponential backoff; otherwise it fails terminally.
func (s *JobService) Fail(ctx context.Context, id, errMsg string) (*job.Job, error) {
	j, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if j.JobStatus != types.JobStatusRunning {
		return nil, s.notRunning(j)
	}

	now := s.clock.Now()
	j.LastError = errMsg
	if j.CanRetry() {
		j.JobStatus = types.JobStatusScheduled
		j.ScheduledAt = now.Add(s.policy.RetryDelay(j.Attempts))
		j.StartedAt = nil
	} else {
		j.JobStatus = types.JobStatusFailed
		j.CompletedAt = &now
	}
	if err := s.repo.Update(ctx, j); err != nil {
		return nil, err
	}
	return j, nil
}

// Cancel stops a job that has not finished
func (s *JobService) Cancel(ctx context.Context, id string) error {
	j, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if j.IsTerminal() {
		return ierr.NewError("job already finished").
			WithHint("Terminal jobs cannot be canceled").
			WithReportableDetails(map[string]any{"job_id": j.ID, "status": j.JobStatus}).
			Mark(ierr.ErrInvalidOperation)
	}
	now := s.clock.Now()
	j.JobStatus = types.JobStatusCanceled
	j.CompletedAt = &now
	return s.repo.Update(ctx, j)
}

// Cleanup prunes terminal jobs older than the retention window
func (s *JobService) Cleanup(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := s.clock.Now().Add(-retention)
	removed, err := s.repo.DeleteCompletedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.logger.Infow("pruned finished jobs", "removed", removed, "cutoff", cutoff)
	}
	return removed, nil
}

func (s *JobService) notRunning(j *job.Job) error {
	return ierr.NewError("job is not running").
		WithHint("Only running jobs can be completed or failed").
		WithReportableDetails(map[string]any{"job_id": j.ID, "status": j.JobStatus}).
		Mark(ierr.ErrInvalidOperation)
}
