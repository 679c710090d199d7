package service

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/qazuor/qzpay-sub003/internal/domain/auditlog"
	"github.com/qazuor/qzpay-sub003/internal/publisher"
	"github.com/qazuor/qzpay-sub003/internal/testutil"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

type AuditServiceSuite struct {
	testutil.BaseServiceTestSuite
	service *AuditService
	unsubs  []publisher.Unsubscribe
}

func TestAuditService(t *testing.T) {
	suite.Run(t, new(AuditServiceSuite))
}

func (s *AuditServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewAuditService(s.GetStores().AuditLogRepo, s.GetClock(), s.GetLogger())
	s.unsubs = s.service.Attach(s.GetEventBus())
}

func (s *AuditServiceSuite) TearDownTest() {
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.BaseServiceTestSuite.TearDownTest()
}

func (s *AuditServiceSuite) TestRecord() {
	before := json.RawMessage(`{"status":"active"}`)
	after := json.RawMessage(`{"status":"canceled"}`)
	s.service.Record(s.GetContext(), "subscription", "sub_1", "canceled", before, after)

	trail, err := s.service.ListByEntity(s.GetContext(), "subscription", "sub_1")
	s.Require().NoError(err)
	s.Require().Len(trail, 1)
	s.Equal("canceled", trail[0].Action)
	s.JSONEq(`{"status":"active"}`, string(trail[0].Before))
	s.JSONEq(`{"status":"canceled"}`, string(trail[0].After))
	s.True(trail[0].OccurredAt.Equal(s.GetClock().Now()))
}

func (s *AuditServiceSuite) TestRecordDropsInvalidEntry() {
	s.service.Record(s.GetContext(), "subscription", "", "canceled", nil, nil)

	trail, err := s.service.List(s.GetContext(), &auditlog.Filter{})
	s.Require().NoError(err)
	s.Empty(trail)
}

func (s *AuditServiceSuite) TestBusEventBecomesEntry() {
	s.GetEventBus().Emit(s.GetContext(), &types.LifecycleEvent{
		ID:             types.GenerateUUID(),
		Type:           types.EventSubscriptionRenewed,
		SubscriptionID: "sub_1",
		CustomerID:     "cust_1",
		Timestamp:      s.GetNow(),
	})

	s.Eventually(func() bool {
		trail, err := s.service.ListByEntity(s.GetContext(), "subscription", "sub_1")
		return err == nil && len(trail) == 1 && trail[0].Action == "renewed"
	}, time.Second, 10*time.Millisecond)
}

func (s *AuditServiceSuite) TestBusEventPrefersPayloadEntityID() {
	s.GetEventBus().Emit(s.GetContext(), &types.LifecycleEvent{
		ID:             types.GenerateUUID(),
		Type:           types.EventPaymentSucceeded,
		SubscriptionID: "sub_1",
		CustomerID:     "cust_1",
		Data:           json.RawMessage(`{"payment_id":"pay_42","amount":1000}`),
		Timestamp:      s.GetNow(),
	})

	s.Eventually(func() bool {
		trail, err := s.service.ListByEntity(s.GetContext(), "payment", "pay_42")
		return err == nil && len(trail) == 1 && trail[0].Action == "succeeded"
	}, time.Second, 10*time.Millisecond)
}

func (s *AuditServiceSuite) TestUnmirroredEventLeavesNoEntry() {
	s.GetEventBus().Emit(s.GetContext(), &types.LifecycleEvent{
		ID:         types.GenerateUUID(),
		Type:       types.EventInvoiceDue,
		CustomerID: "cust_1",
		Timestamp:  s.GetNow(),
	})

	// give delivery a chance to happen before asserting absence
	time.Sleep(50 * time.Millisecond)

	trail, err := s.service.List(s.GetContext(), &auditlog.Filter{})
	s.Require().NoError(err)
	s.Empty(trail)
}

func (s *AuditServiceSuite) TestListByEntityIsolatesTrails() {
	s.service.Record(s.GetContext(), "subscription", "sub_1", "created", nil, nil)
	s.service.Record(s.GetContext(), "subscription", "sub_1", "canceled", nil, nil)
	s.service.Record(s.GetContext(), "subscription", "sub_2", "created", nil, nil)

	trail, err := s.service.ListByEntity(s.GetContext(), "subscription", "sub_1")
	s.Require().NoError(err)
	s.Len(trail, 2)
}
