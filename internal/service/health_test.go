package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/testutil"
)

type HealthServiceSuite struct {
	testutil.BaseServiceTestSuite
	service *HealthService
}

func TestHealthService(t *testing.T) {
	suite.Run(t, new(HealthServiceSuite))
}

func (s *HealthServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewHealthService(
		s.GetStores().CustomerRepo,
		s.GetProviderRegistry(),
		s.GetClock(),
		s.GetLogger(),
	)
}

func (s *HealthServiceSuite) TestCheckHealthy() {
	report := s.service.Check(s.GetContext())
	s.Equal(HealthStatusHealthy, report.Status)
	s.True(report.CheckedAt.Equal(s.GetClock().Now()))

	names := make([]string, 0, len(report.Components))
	for _, c := range report.Components {
		names = append(names, c.Name)
		s.Equal(HealthStatusHealthy, c.Status, "component %s", c.Name)
		s.Empty(c.Error)
	}
	s.Contains(names, "storage")
	s.Contains(names, "provider:mock")
}

func (s *HealthServiceSuite) TestProbeClassifiesError() {
	ch := s.service.probe(s.GetContext(), "storage", storageSlowThreshold, func(context.Context) error {
		return ierr.NewError("connection refused").Mark(ierr.ErrSystem)
	})
	s.Equal(HealthStatusUnhealthy, ch.Status)
	s.NotEmpty(ch.Error)
}

func (s *HealthServiceSuite) TestProbeClassifiesSlow() {
	// zero threshold makes any successful probe slow
	ch := s.service.probe(s.GetContext(), "storage", 0, func(context.Context) error {
		return nil
	})
	s.Equal(HealthStatusDegraded, ch.Status)
	s.Empty(ch.Error)
	s.Contains(ch.Details, "slow_threshold_ms")
}

func (s *HealthServiceSuite) TestWorstComponentWins() {
	s.Equal(HealthStatusHealthy, HealthStatusHealthy.worse(HealthStatusHealthy))
	s.Equal(HealthStatusDegraded, HealthStatusHealthy.worse(HealthStatusDegraded))
	s.Equal(HealthStatusUnhealthy, HealthStatusDegraded.worse(HealthStatusUnhealthy))
	s.Equal(HealthStatusUnhealthy, HealthStatusUnhealthy.worse(HealthStatusHealthy))
}
