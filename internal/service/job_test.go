package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/qazuor/qzpay-sub003/internal/domain/job"
	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/testutil"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

type JobServiceSuite struct {
	testutil.BaseServiceTestSuite
	service *JobService
}

func TestJobService(t *testing.T) {
	suite.Run(t, new(JobServiceSuite))
}

func (s *JobServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewJobService(s.GetStores().JobRepo, s.GetClock(), s.GetLogger())
}

func (s *JobServiceSuite) TestEnqueueImmediate() {
	j, err := s.service.Enqueue(s.GetContext(), EnqueueJobInput{
		JobType: types.JobTypePaymentRetry,
	})
	s.Require().NoError(err)
	s.Equal(types.JobStatusPending, j.JobStatus)
	s.Equal(types.JobPriorityNormal, j.Priority)
	s.Equal(3, j.MaxAttempts)
	s.True(j.ScheduledAt.Equal(s.GetClock().Now()))
}

func (s *JobServiceSuite) TestEnqueueScheduled() {
	at := s.GetNow().Add(time.Hour)
	j, err := s.service.Enqueue(s.GetContext(), EnqueueJobInput{
		JobType:     types.JobTypeInvoiceGeneration,
		ScheduledAt: at,
	})
	s.Require().NoError(err)
	s.Equal(types.JobStatusScheduled, j.JobStatus)
	s.True(j.ScheduledAt.Equal(at))
}

func (s *JobServiceSuite) TestEnqueueRejectsUnknownType() {
	_, err := s.service.Enqueue(s.GetContext(), EnqueueJobInput{
		JobType: types.JobType("make_coffee"),
	})
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *JobServiceSuite) TestClaimMarksRunning() {
	j, err := s.service.Enqueue(s.GetContext(), EnqueueJobInput{JobType: types.JobTypePaymentRetry})
	s.Require().NoError(err)

	claimed, err := s.service.Claim(s.GetContext(), 10)
	s.Require().NoError(err)
	s.Require().Len(claimed, 1)
	s.Equal(j.ID, claimed[0].ID)
	s.Equal(types.JobStatusRunning, claimed[0].JobStatus)
	s.Equal(1, claimed[0].Attempts)
	s.NotNil(claimed[0].StartedAt)

	// a running job is not claimed again
	again, err := s.service.Claim(s.GetContext(), 10)
	s.Require().NoError(err)
	s.Empty(again)
}

func (s *JobServiceSuite) TestClaimSkipsFutureJobs() {
	_, err := s.service.Enqueue(s.GetContext(), EnqueueJobInput{
		JobType:     types.JobTypeCleanup,
		ScheduledAt: s.GetNow().Add(time.Hour),
	})
	s.Require().NoError(err)

	claimed, err := s.service.Claim(s.GetContext(), 10)
	s.Require().NoError(err)
	s.Empty(claimed)

	s.GetClock().Advance(2 * time.Hour)

	claimed, err = s.service.Claim(s.GetContext(), 10)
	s.Require().NoError(err)
	s.Len(claimed, 1)
}

func (s *JobServiceSuite) TestComplete() {
	j, err := s.service.Enqueue(s.GetContext(), EnqueueJobInput{JobType: types.JobTypePaymentRetry})
	s.Require().NoError(err)

	_, err = s.service.Claim(s.GetContext(), 10)
	s.Require().NoError(err)

	s.Require().NoError(s.service.Complete(s.GetContext(), j.ID))

	done, err := s.service.Get(s.GetContext(), j.ID)
	s.Require().NoError(err)
	s.Equal(types.JobStatusCompleted, done.JobStatus)
	s.NotNil(done.CompletedAt)

	// completing again is invalid
	err = s.service.Complete(s.GetContext(), j.ID)
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *JobServiceSuite) TestFailReschedulesWhileAttemptsRemain() {
	j, err := s.service.Enqueue(s.GetContext(), EnqueueJobInput{
		JobType:     types.JobTypeWebhookDelivery,
		MaxAttempts: 2,
	})
	s.Require().NoError(err)

	_, err = s.service.Claim(s.GetContext(), 10)
	s.Require().NoError(err)

	failed, err := s.service.Fail(s.GetContext(), j.ID, "connection refused")
	s.Require().NoError(err)
	s.Equal(types.JobStatusScheduled, failed.JobStatus)
	s.Equal("connection refused", failed.LastError)
	s.Nil(failed.StartedAt)
	s.True(failed.ScheduledAt.After(s.GetClock().Now()))

	// second attempt exhausts the budget
	s.GetClock().Advance(time.Hour)
	claimed, err := s.service.Claim(s.GetContext(), 10)
	s.Require().NoError(err)
	s.Require().Len(claimed, 1)
	s.Equal(2, claimed[0].Attempts)

	terminal, err := s.service.Fail(s.GetContext(), j.ID, "still down")
	s.Require().NoError(err)
	s.Equal(types.JobStatusFailed, terminal.JobStatus)
	s.NotNil(terminal.CompletedAt)
}

func (s *JobServiceSuite) TestFailRequiresRunning() {
	j, err := s.service.Enqueue(s.GetContext(), EnqueueJobInput{JobType: types.JobTypePaymentRetry})
	s.Require().NoError(err)

	_, err = s.service.Fail(s.GetContext(), j.ID, "not claimed")
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *JobServiceSuite) TestCancel() {
	j, err := s.service.Enqueue(s.GetContext(), EnqueueJobInput{JobType: types.JobTypePaymentRetry})
	s.Require().NoError(err)

	s.Require().NoError(s.service.Cancel(s.GetContext(), j.ID))

	canceled, err := s.service.Get(s.GetContext(), j.ID)
	s.Require().NoError(err)
	s.Equal(types.JobStatusCanceled, canceled.JobStatus)

	err = s.service.Cancel(s.GetContext(), j.ID)
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *JobServiceSuite) TestCleanup() {
	j, err := s.service.Enqueue(s.GetContext(), EnqueueJobInput{JobType: types.JobTypeCleanup})
	s.Require().NoError(err)
	_, err = s.service.Claim(s.GetContext(), 10)
	s.Require().NoError(err)
	s.Require().NoError(s.service.Complete(s.GetContext(), j.ID))

	pending, err := s.service.Enqueue(s.GetContext(), EnqueueJobInput{JobType: types.JobTypePaymentRetry})
	s.Require().NoError(err)

	s.GetClock().Advance(48 * time.Hour)

	removed, err := s.service.Cleanup(s.GetContext(), 24*time.Hour)
	s.Require().NoError(err)
	s.Equal(1, removed)

	_, err = s.service.Get(s.GetContext(), j.ID)
	s.Error(err)
	s.True(ierr.IsNotFound(err))

	// pending work is never pruned
	_, err = s.service.Get(s.GetContext(), pending.ID)
	s.NoError(err)
}

func (s *JobServiceSuite) TestSortByPriority() {
	now := s.GetNow()
	jobs := []*job.Job{
		{ID: "low", Priority: types.JobPriorityLow, ScheduledAt: now},
		{ID: "critical", Priority: types.JobPriorityCritical, ScheduledAt: now.Add(time.Minute)},
		{ID: "normal_late", Priority: types.JobPriorityNormal, ScheduledAt: now.Add(time.Minute)},
		{ID: "normal_early", Priority: types.JobPriorityNormal, ScheduledAt: now},
		{ID: "high", Priority: types.JobPriorityHigh, ScheduledAt: now},
	}
	job.SortByPriority(jobs)

	order := make([]string, len(jobs))
	for i, j := range jobs {
		order[i] = j.ID
	}
	s.Equal([]string{"critical", "high", "normal_early", "normal_late", "low"}, order)
}

func (s *JobServiceSuite) TestRetryDelayBounds() {
	policy := job.DefaultRetryPolicy

	for attempt, base := range map[int]time.Duration{
		1: time.Second,
		2: 2 * time.Second,
		3: 4 * time.Second,
	} {
		delay := policy.RetryDelay(attempt)
		min := time.Duration(float64(base) * 0.9)
		max := time.Duration(float64(base) * 1.1)
		s.GreaterOrEqual(delay, min, "attempt %d", attempt)
		s.LessOrEqual(delay, max, "attempt %d", attempt)
	}

	// deep attempts cap at MaxDelay before jitter
	capped := policy.RetryDelay(30)
	hour := time.Hour
	s.LessOrEqual(capped, time.Duration(float64(hour)*1.1))
	s.GreaterOrEqual(capped, time.Duration(float64(hour)*0.9))

	// no jitter is exact
	exact := job.RetryPolicy{BaseDelay: time.Second, MaxDelay: time.Hour}
	s.Equal(4*time.Second, exact.RetryDelay(3))
	s.Equal(time.Second, exact.RetryDelay(0))
}
