package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/qazuor/qzpay-sub003/internal/domain/vendor"
	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/testutil"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

type VendorServiceSuite struct {
	testutil.BaseServiceTestSuite
	service *VendorService
}

func TestVendorService(t *testing.T) {
	suite.Run(t, new(VendorServiceSuite))
}

func (s *VendorServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewVendorService(
		s.GetStores().VendorRepo,
		s.GetProviderRegistry(),
		s.GetClock(),
		false,
		s.GetLogger(),
	)
}

func (s *VendorServiceSuite) createVendor(commissionBps int64, providerIDs types.ProviderIDs) *vendor.Vendor {
	created, err := s.service.Create(s.GetContext(), &vendor.Vendor{
		Name:           "Acme Widgets",
		Email:          "payouts@acme.example.com",
		CommissionBps:  commissionBps,
		PayoutCurrency: "USD",
		ProviderIDs:    providerIDs,
	})
	s.Require().NoError(err)
	return created
}

func (s *VendorServiceSuite) schedulePayout(vendorID string, gross int64) *vendor.VendorPayout {
	payout, err := s.service.SchedulePayout(s.GetContext(), SchedulePayoutInput{
		VendorID:    vendorID,
		PeriodStart: s.GetNow().AddDate(0, -1, 0),
		PeriodEnd:   s.GetNow(),
		GrossAmount: gross,
	})
	s.Require().NoError(err)
	return payout
}

func (s *VendorServiceSuite) TestCreateValidation() {
	_, err := s.service.Create(s.GetContext(), &vendor.Vendor{CommissionBps: 1500})
	s.Error(err)
	s.True(ierr.IsValidation(err))

	_, err = s.service.Create(s.GetContext(), &vendor.Vendor{Name: "Acme", CommissionBps: 10001})
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *VendorServiceSuite) TestCommissionOn() {
	v := &vendor.Vendor{CommissionBps: 1500}
	s.Equal(int64(1500), v.CommissionOn(10000))
	// rounds down
	s.Equal(int64(14), v.CommissionOn(99))
	s.Equal(int64(0), (&vendor.Vendor{}).CommissionOn(10000))
	s.Equal(int64(10000), (&vendor.Vendor{CommissionBps: 10000}).CommissionOn(10000))
}

func (s *VendorServiceSuite) TestSchedulePayoutDerivesAmounts() {
	v := s.createVendor(1500, types.ProviderIDs{types.ProviderMock: "acct_1"})

	payout := s.schedulePayout(v.ID, 10000)
	s.Equal(types.PayoutStatusScheduled, payout.PayoutStatus)
	s.Equal(int64(10000), payout.GrossAmount)
	s.Equal(int64(1500), payout.CommissionAmount)
	s.Equal(int64(8500), payout.NetAmount)
	s.Equal(types.Currency("USD"), payout.Currency)
}

func (s *VendorServiceSuite) TestSchedulePayoutRejectsNonPositiveGross() {
	v := s.createVendor(1000, nil)

	_, err := s.service.SchedulePayout(s.GetContext(), SchedulePayoutInput{
		VendorID:    v.ID,
		PeriodStart: s.GetNow().AddDate(0, -1, 0),
		PeriodEnd:   s.GetNow(),
		GrossAmount: 0,
	})
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *VendorServiceSuite) TestPayoutValidateReconciles() {
	payout := &vendor.VendorPayout{
		VendorID:         "ven_1",
		GrossAmount:      10000,
		CommissionAmount: 1500,
		NetAmount:        9000,
	}
	err := payout.Validate()
	s.Error(err)
	s.True(ierr.IsValidation(err))

	payout.NetAmount = 8500
	s.NoError(payout.Validate())
}

func (s *VendorServiceSuite) TestProcessScheduledPayouts() {
	v := s.createVendor(1000, types.ProviderIDs{types.ProviderMock: "acct_1"})
	payout := s.schedulePayout(v.ID, 20000)

	result, err := s.service.ProcessScheduledPayouts(s.GetContext())
	s.Require().NoError(err)
	s.Equal(1, result.Processed)
	s.Equal(1, result.Paid)
	s.Equal(0, result.Failed)

	updated, err := s.service.GetPayout(s.GetContext(), payout.ID)
	s.Require().NoError(err)
	s.Equal(types.PayoutStatusPaid, updated.PayoutStatus)
	s.NotEmpty(updated.ProviderTransferID)
	s.Require().NotNil(updated.PaidAt)
	s.True(updated.PaidAt.Equal(s.GetClock().Now()))
}

func (s *VendorServiceSuite) TestProcessPayoutWithoutAccountFails() {
	v := s.createVendor(1000, nil)
	payout := s.schedulePayout(v.ID, 20000)

	result, err := s.service.ProcessScheduledPayouts(s.GetContext())
	s.Require().NoError(err)
	s.Equal(1, result.Processed)
	s.Equal(0, result.Paid)
	s.Equal(1, result.Failed)

	updated, err := s.service.GetPayout(s.GetContext(), payout.ID)
	s.Require().NoError(err)
	s.Equal(types.PayoutStatusFailed, updated.PayoutStatus)
	s.NotEmpty(updated.FailureReason)
}

func (s *VendorServiceSuite) TestFailedPayoutIsNotRetried() {
	v := s.createVendor(1000, nil)
	s.schedulePayout(v.ID, 20000)

	_, err := s.service.ProcessScheduledPayouts(s.GetContext())
	s.Require().NoError(err)

	s.GetClock().Advance(time.Hour)

	result, err := s.service.ProcessScheduledPayouts(s.GetContext())
	s.Require().NoError(err)
	s.Equal(0, result.Processed)
}

func (s *VendorServiceSuite) TestListPayoutsByVendor() {
	v1 := s.createVendor(1000, types.ProviderIDs{types.ProviderMock: "acct_1"})
	v2 := s.createVendor(2000, types.ProviderIDs{types.ProviderMock: "acct_2"})
	s.schedulePayout(v1.ID, 10000)
	s.schedulePayout(v2.ID, 5000)

	payouts, err := s.service.ListPayouts(s.GetContext(), &vendor.PayoutFilter{VendorID: v1.ID})
	s.Require().NoError(err)
	s.Require().Len(payouts, 1)
	s.Equal(v1.ID, payouts[0].VendorID)
}
