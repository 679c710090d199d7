package job

import (
	"encoding/json"
	"math"
	"math/rand"
	"sort"
	"time"

	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// Job is a unit of deferred work picked up by the scheduler
type Job struct {
	ID string `db:"id" json:"id"`

	JobType   types.JobType     `db:"job_type" json:"job_type"`
	JobStatus types.JobStatus   `db:"job_status" json:"job_status"`
	Priority  types.JobPriority `db:"priority" json:"priority"`

	Payload json.RawMessage `db:"payload" json:"payload,omitempty"`

	ScheduledAt time.Time  `db:"scheduled_at" json:"scheduled_at"`
	StartedAt   *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`

	Attempts    int    `db:"attempts" json:"attempts"`
	MaxAttempts int    `db:"max_attempts" json:"max_attempts"`
	LastError   string `db:"last_error" json:"last_error,omitempty"`

	types.BaseModel
}

func (j *Job) Validate() error {
	if err := j.JobType.Validate(); err != nil {
		return err
	}
	if j.MaxAttempts <= 0 {
		return ierr.NewError("max_attempts must be positive").
			WithHint("Max attempts must be at least 1").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// IsReady reports whether the job may run now: pending or scheduled,
// with its scheduled time already reached
func (j *Job) IsReady(now time.Time) bool {
	if j.JobStatus != types.JobStatusPending && j.JobStatus != types.JobStatusScheduled {
		return false
	}
	return !j.ScheduledAt.After(now)
}

// CanRetry reports whether the job has attempts left. A failed job with
// attempts remaining is re-enqueued as pending by the scheduler.
func (j *Job) CanRetry() bool {
	return j.Attempts < j.MaxAttempts
}

// IsTerminal reports whether the job has stopped running
func (j *Job) IsTerminal() bool {
	switch j.JobStatus {
	case types.JobStatusCompleted, types.JobStatusFailed, types.JobStatusCanceled:
		return true
	default:
		return false
	}
}

// SortByPriority orders jobs by priority rank, then by scheduled time
// for equal priorities. The sort is stable so insertion order breaks
// remaining ties.
func SortByPriority(jobs []*Job) {
	sort.SliceStable(jobs, func(i, k int) bool {
		ri, rk := jobs[i].Priority.Rank(), jobs[k].Priority.Rank()
		if ri != rk {
			return ri < rk
		}
		return jobs[i].ScheduledAt.Before(jobs[k].ScheduledAt)
	})
}

// RetryPolicy controls backoff between attempts
type RetryPolicy struct {
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	JitterFactor float64
}

// DefaultRetryPolicy is 1s base, 1h cap, 10% jitter
var DefaultRetryPolicy = RetryPolicy{
	BaseDelay:    time.Second,
	MaxDelay:     time.Hour,
	JitterFactor: 0.1,
}

// RetryDelay computes the wait before the given attempt (1-based):
// base doubled per prior attempt, capped, with uniform jitter of
// +/- JitterFactor applied to the capped delay
func (p RetryPolicy) RetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.BaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if p.JitterFactor > 0 {
		jitter := delay * p.JitterFactor
		delay = delay - jitter + rand.Float64()*2*jitter
	}
	return time.Duration(delay)
}
