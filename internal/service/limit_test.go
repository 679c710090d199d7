package service

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/qazuor/qzpay-sub003/internal/domain/limit"
	"github.com/qazuor/qzpay-sub003/internal/domain/usage"
	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/testutil"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

type LimitServiceSuite struct {
	testutil.BaseServiceTestSuite
	service *LimitService
}

func TestLimitService(t *testing.T) {
	suite.Run(t, new(LimitServiceSuite))
}

func (s *LimitServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	stores := s.GetStores()
	s.service = NewLimitService(stores.LimitRepo, stores.UsageRepo, s.GetClock(), s.GetLogger())
}

func (s *LimitServiceSuite) TestSetLimitAndGet() {
	set, err := s.service.SetLimit(s.GetContext(), "cust_1", "projects", 10, types.GrantSourceSubscription)
	s.Require().NoError(err)
	s.Equal(int64(10), set.MaxValue)
	s.Equal(int64(0), set.CurrentValue)

	got, err := s.service.Get(s.GetContext(), "cust_1", "projects")
	s.Require().NoError(err)
	s.Equal(int64(10), got.MaxValue)
}

func (s *LimitServiceSuite) TestSetLimitRejectsNegative() {
	_, err := s.service.SetLimit(s.GetContext(), "cust_1", "projects", -1, types.GrantSourceManual)
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *LimitServiceSuite) TestGetFallsBackToDefinitionDefault() {
	err := s.service.CreateDefinition(s.GetContext(), &limit.Definition{
		Key:          "api_calls",
		Name:         "API calls per month",
		DefaultValue: 1000,
	})
	s.Require().NoError(err)

	got, err := s.service.Get(s.GetContext(), "cust_without_cap", "api_calls")
	s.Require().NoError(err)
	s.Equal(int64(1000), got.MaxValue)
	s.Equal(int64(0), got.CurrentValue)
}

func (s *LimitServiceSuite) TestGetUnknownKey() {
	_, err := s.service.Get(s.GetContext(), "cust_1", "never_defined")
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *LimitServiceSuite) TestAllowed() {
	_, err := s.service.SetLimit(s.GetContext(), "cust_1", "projects", 2, types.GrantSourceSubscription)
	s.Require().NoError(err)

	allowed, err := s.service.Allowed(s.GetContext(), "cust_1", "projects")
	s.Require().NoError(err)
	s.True(allowed)

	_, err = s.service.RecordUsage(s.GetContext(), RecordUsageInput{
		CustomerID: "cust_1",
		LimitKey:   "projects",
		Action:     usage.ActionIncrement,
		Value:      2,
	})
	s.Require().NoError(err)

	allowed, err = s.service.Allowed(s.GetContext(), "cust_1", "projects")
	s.Require().NoError(err)
	s.False(allowed)
}

func (s *LimitServiceSuite) TestRecordUsageIncrement() {
	_, err := s.service.SetLimit(s.GetContext(), "cust_1", "projects", 10, types.GrantSourceSubscription)
	s.Require().NoError(err)

	record, err := s.service.RecordUsage(s.GetContext(), RecordUsageInput{
		CustomerID: "cust_1",
		LimitKey:   "projects",
		Action:     usage.ActionIncrement,
		Value:      3,
	})
	s.Require().NoError(err)
	s.True(record.RecordedAt.Equal(s.GetClock().Now()))

	got, err := s.service.Get(s.GetContext(), "cust_1", "projects")
	s.Require().NoError(err)
	s.Equal(int64(3), got.CurrentValue)
	s.Equal(int64(7), got.Remaining())
}

func (s *LimitServiceSuite) TestRecordUsageSet() {
	_, err := s.service.SetLimit(s.GetContext(), "cust_1", "seats", 50, types.GrantSourceSubscription)
	s.Require().NoError(err)

	_, err = s.service.RecordUsage(s.GetContext(), RecordUsageInput{
		CustomerID: "cust_1",
		LimitKey:   "seats",
		Action:     usage.ActionSet,
		Value:      42,
	})
	s.Require().NoError(err)

	got, err := s.service.Get(s.GetContext(), "cust_1", "seats")
	s.Require().NoError(err)
	s.Equal(int64(42), got.CurrentValue)
}

func (s *LimitServiceSuite) TestRecordUsageIdempotentReplay() {
	_, err := s.service.SetLimit(s.GetContext(), "cust_1", "projects", 10, types.GrantSourceSubscription)
	s.Require().NoError(err)

	input := RecordUsageInput{
		CustomerID:     "cust_1",
		LimitKey:       "projects",
		Action:         usage.ActionIncrement,
		Value:          3,
		IdempotencyKey: "create-project-7",
	}
	first, err := s.service.RecordUsage(s.GetContext(), input)
	s.Require().NoError(err)

	// replay returns the stored record and leaves the counter untouched
	second, err := s.service.RecordUsage(s.GetContext(), input)
	s.Require().NoError(err)
	s.Equal(first.ID, second.ID)

	got, err := s.service.Get(s.GetContext(), "cust_1", "projects")
	s.Require().NoError(err)
	s.Equal(int64(3), got.CurrentValue)

	records, err := s.service.ListUsage(s.GetContext(), &usage.Filter{CustomerID: "cust_1"})
	s.Require().NoError(err)
	s.Len(records, 1)
}

func (s *LimitServiceSuite) TestRecordUsageValidation() {
	_, err := s.service.RecordUsage(s.GetContext(), RecordUsageInput{
		LimitKey: "projects",
		Action:   usage.ActionIncrement,
	})
	s.Error(err)
	s.True(ierr.IsValidation(err))

	_, err = s.service.RecordUsage(s.GetContext(), RecordUsageInput{
		CustomerID: "cust_1",
		LimitKey:   "projects",
		Action:     usage.Action("decrement"),
	})
	s.Error(err)
	s.True(ierr.IsValidation(err))

	_, err = s.service.RecordUsage(s.GetContext(), RecordUsageInput{
		CustomerID: "cust_1",
		LimitKey:   "projects",
		Action:     usage.ActionIncrement,
		Value:      -1,
	})
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *LimitServiceSuite) TestReleaseClampsAtZero() {
	_, err := s.service.SetLimit(s.GetContext(), "cust_1", "projects", 10, types.GrantSourceSubscription)
	s.Require().NoError(err)

	_, err = s.service.RecordUsage(s.GetContext(), RecordUsageInput{
		CustomerID: "cust_1",
		LimitKey:   "projects",
		Action:     usage.ActionIncrement,
		Value:      2,
	})
	s.Require().NoError(err)

	released, err := s.service.Release(s.GetContext(), "cust_1", "projects", 5)
	s.Require().NoError(err)
	s.Equal(int64(0), released.CurrentValue)

	_, err = s.service.Release(s.GetContext(), "cust_1", "projects", -1)
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *LimitServiceSuite) TestSetLimitUpsertKeepsNewCap() {
	_, err := s.service.SetLimit(s.GetContext(), "cust_1", "projects", 10, types.GrantSourceSubscription)
	s.Require().NoError(err)

	upgraded, err := s.service.SetLimit(s.GetContext(), "cust_1", "projects", 25, types.GrantSourceAddon)
	s.Require().NoError(err)
	s.Equal(int64(25), upgraded.MaxValue)

	limits, err := s.service.ListLimits(s.GetContext(), "cust_1")
	s.Require().NoError(err)
	s.Require().Len(limits, 1)
	s.Equal(int64(25), limits[0].MaxValue)
}

func (s *LimitServiceSuite) TestRemoveLimit() {
	_, err := s.service.SetLimit(s.GetContext(), "cust_1", "projects", 10, types.GrantSourceSubscription)
	s.Require().NoError(err)

	s.Require().NoError(s.service.RemoveLimit(s.GetContext(), "cust_1", "projects"))

	_, err = s.service.Get(s.GetContext(), "cust_1", "projects")
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}
