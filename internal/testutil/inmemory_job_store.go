package testutil

import (
	"context"
	"time"

	"github.com/samber/lo"

	"github.com/qazuor/qzpay-sub003/internal/domain/job"
)

// InMemoryJobStore implements job.Repository
type InMemoryJobStore struct {
	*InMemoryStore[*job.Job]
}

// NewInMemoryJobStore creates a new in-memory job store
func NewInMemoryJobStore() *InMemoryJobStore {
	return &InMemoryJobStore{
		InMemoryStore: NewInMemoryStore[*job.Job](),
	}
}

func copyJob(j *job.Job) *job.Job {
	if j == nil {
		return nil
	}
	clone := *j
	clone.Payload = append([]byte(nil), j.Payload...)
	if j.StartedAt != nil {
		started := *j.StartedAt
		clone.StartedAt = &started
	}
	if j.CompletedAt != nil {
		completed := *j.CompletedAt
		clone.CompletedAt = &completed
	}
	return &clone
}

func (s *InMemoryJobStore) Create(ctx context.Context, j *job.Job) error {
	return s.InMemoryStore.Create(ctx, j.ID, copyJob(j))
}

func (s *InMemoryJobStore) Get(ctx context.Context, id string) (*job.Job, error) {
	j, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return copyJob(j), nil
}

func (s *InMemoryJobStore) List(ctx context.Context, filter *job.Filter) ([]*job.Job, error) {
	items, err := s.InMemoryStore.List(ctx, filter, jobFilterFn, jobSortFn)
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(j *job.Job, _ int) *job.Job {
		return copyJob(j)
	}), nil
}

func (s *InMemoryJobStore) Update(ctx context.Context, j *job.Job) error {
	return s.InMemoryStore.Update(ctx, j.ID, copyJob(j))
}

func (s *InMemoryJobStore) ListReady(ctx context.Context, now time.Time, limit int) ([]*job.Job, error) {
	filterFn := func(_ context.Context, j *job.Job, _ interface{}) bool {
		return j.IsReady(now)
	}
	items, err := s.InMemoryStore.List(ctx, nil, filterFn, nil)
	if err != nil {
		return nil, err
	}

	ready := lo.Map(items, func(j *job.Job, _ int) *job.Job {
		return copyJob(j)
	})
	job.SortByPriority(ready)
	if limit > 0 && len(ready) > limit {
		ready = ready[:limit]
	}
	return ready, nil
}

func (s *InMemoryJobStore) DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	filterFn := func(_ context.Context, j *job.Job, _ interface{}) bool {
		return j.IsTerminal() && j.CompletedAt != nil && j.CompletedAt.Before(cutoff)
	}
	items, err := s.InMemoryStore.List(ctx, nil, filterFn, nil)
	if err != nil {
		return 0, err
	}
	for _, j := range items {
		if err := s.InMemoryStore.Delete(ctx, j.ID); err != nil {
			return 0, err
		}
	}
	return len(items), nil
}

func jobFilterFn(_ context.Context, j *job.Job, filter interface{}) bool {
	f, ok := filter.(*job.Filter)
	if !ok {
		return true
	}

	if f.JobType != "" && j.JobType != f.JobType {
		return false
	}
	if f.JobStatus != "" && j.JobStatus != f.JobStatus {
		return false
	}
	return true
}

func jobSortFn(i, j *job.Job) bool {
	if i.Priority.Rank() != j.Priority.Rank() {
		return i.Priority.Rank() < j.Priority.Rank()
	}
	return i.ScheduledAt.Before(j.ScheduledAt)
}
