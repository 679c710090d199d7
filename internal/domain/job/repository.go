package job

import (
	"context"
	"time"

	"github.com/qazuor/qzpay-sub003/internal/types"
)

type Filter struct {
	types.QueryFilter
	JobType   types.JobType
	JobStatus types.JobStatus
}

// Repository defines the interface for job data access
type Repository interface {
	Create(ctx context.Context, j *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	List(ctx context.Context, filter *Filter) ([]*Job, error)
	Update(ctx context.Context, j *Job) error
	// ListReady returns runnable jobs ordered by priority then schedule
	ListReady(ctx context.Context, now time.Time, limit int) ([]*Job, error)
	// DeleteCompletedBefore prunes terminal jobs older than the cutoff
	DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int, error)
}
