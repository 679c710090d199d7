package provider

import (
	"context"
	"fmt"
	"sync"

	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// Well-known test card numbers and their deterministic outcomes
const (
	TestCardSucceeded         = "4242424242424242"
	TestCardDeclined          = "4000000000000002"
	TestCardExpired           = "4000000000000069"
	TestCardInsufficientFunds = "4000000000009995"
	TestCardIncorrectCVC      = "4000000000000127"
	TestCardProcessingError   = "4000000000000119"
	TestCardRequiresAction    = "4000000000003220"
	TestCardAttachFails       = "4000000000000341"
)

type cardOutcome struct {
	failureCode    string
	failureMessage string
}

var cardOutcomes = map[string]cardOutcome{
	TestCardDeclined:          {"card_declined", "Your card was declined."},
	TestCardExpired:           {"expired_card", "Your card has expired."},
	TestCardInsufficientFunds: {"insufficient_funds", "Your card has insufficient funds."},
	TestCardIncorrectCVC:      {"incorrect_cvc", "Your card's security code is incorrect."},
	TestCardProcessingError:   {"processing_error", "An error occurred while processing your card."},
}

// MockProvider is a deterministic in-memory provider for tests and local
// development. Outcomes are keyed by the card number behind the attached
// method token; unknown cards succeed.
type MockProvider struct {
	mu sync.Mutex

	seq       int
	customers map[string]bool
	methods   map[string]string // provider method id -> card number
	payments  map[string]*ChargeResult
}

func NewMockProvider() *MockProvider {
	return &MockProvider{
		customers: make(map[string]bool),
		methods:   make(map[string]string),
		payments:  make(map[string]*ChargeResult),
	}
}

func (m *MockProvider) Kind() types.ProviderKind {
	return types.ProviderMock
}

func (m *MockProvider) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s_mock_%06d", prefix, m.seq)
}

func (m *MockProvider) CreateCustomer(_ context.Context, email, _ string) (string, error) {
	if email == "" {
		return "", ierr.NewError("email is required").
			WithHint("Customer email is required").
			Mark(ierr.ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID("cus")
	m.customers[id] = true
	return id, nil
}

func (m *MockProvider) GetCustomer(_ context.Context, providerCustomerID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.customers[providerCustomerID] {
		return "", ierr.NewError("customer not found").
			WithHint("Provider customer does not exist").
			WithReportableDetails(map[string]any{"provider_customer_id": providerCustomerID}).
			Mark(ierr.ErrNotFound)
	}
	return providerCustomerID, nil
}

func (m *MockProvider) DeleteCustomer(_ context.Context, providerCustomerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.customers[providerCustomerID] {
		return ierr.NewError("customer not found").
			WithHint("Provider customer does not exist").
			WithReportableDetails(map[string]any{"provider_customer_id": providerCustomerID}).
			Mark(ierr.ErrNotFound)
	}
	delete(m.customers, providerCustomerID)
	return nil
}

// AttachPaymentMethod treats the method token as a raw card number
func (m *MockProvider) AttachPaymentMethod(_ context.Context, req AttachRequest) (*AttachResult, error) {
	if len(req.MethodToken) < 4 {
		return nil, ierr.NewError("invalid card number").
			WithHint("Card number is too short").
			Mark(ierr.ErrValidation)
	}
	if req.MethodToken == TestCardAttachFails {
		return nil, ierr.NewError("card cannot be attached").
			WithHint("Your card was declined.").
			WithReportableDetails(map[string]any{"failure_code": "card_declined"}).
			Mark(ierr.ErrPaymentDeclined)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID("pm")
	m.methods[id] = req.MethodToken

	return &AttachResult{
		ProviderMethodID: id,
		Type:             types.PaymentMethodTypeCard,
		CardLast4:        req.MethodToken[len(req.MethodToken)-4:],
		CardBrand:        "visa",
		CardExpMonth:     12,
		CardExpYear:      2030,
	}, nil
}

func (m *MockProvider) DetachPaymentMethod(_ context.Context, providerMethodID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.methods[providerMethodID]; !ok {
		return ierr.NewError("payment method not found").
			WithHint("Provider payment method does not exist").
			WithReportableDetails(map[string]any{"provider_method_id": providerMethodID}).
			Mark(ierr.ErrNotFound)
	}
	delete(m.methods, providerMethodID)
	return nil
}

func (m *MockProvider) Charge(_ context.Context, req ChargeRequest) (*ChargeResult, error) {
	if req.Amount <= 0 {
		return nil, ierr.NewError("amount must be positive").
			WithHint("Charge amount must be positive").
			Mark(ierr.ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	card, ok := m.methods[req.ProviderMethodID]
	if !ok {
		return nil, ierr.NewError("payment method not found").
			WithHint("Provider payment method does not exist").
			WithReportableDetails(map[string]any{"provider_method_id": req.ProviderMethodID}).
			Mark(ierr.ErrNotFound)
	}

	result := &ChargeResult{
		ProviderPaymentID: m.nextID("py"),
		Status:            types.PaymentStatusSucceeded,
	}
	if card == TestCardRequiresAction {
		result.Status = types.PaymentStatusRequiresAction
	} else if outcome, failed := cardOutcomes[card]; failed {
		result.Status = types.PaymentStatusFailed
		result.FailureCode = outcome.failureCode
		result.FailureMessage = outcome.failureMessage
	}

	m.payments[result.ProviderPaymentID] = result
	return result, nil
}

func (m *MockProvider) Refund(_ context.Context, req RefundRequest) (*RefundResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	payment, ok := m.payments[req.ProviderPaymentID]
	if !ok {
		return nil, ierr.NewError("payment not found").
			WithHint("Provider payment does not exist").
			WithReportableDetails(map[string]any{"provider_payment_id": req.ProviderPaymentID}).
			Mark(ierr.ErrNotFound)
	}
	if payment.Status != types.PaymentStatusSucceeded {
		return nil, ierr.NewError("payment is not refundable").
			WithHint("Only succeeded payments can be refunded").
			WithReportableDetails(map[string]any{"status": payment.Status}).
			Mark(ierr.ErrInvalidOperation)
	}

	return &RefundResult{
		ProviderRefundID: m.nextID("re"),
		Status:           types.RefundStatusSucceeded,
	}, nil
}

func (m *MockProvider) Transfer(_ context.Context, req TransferRequest) (*TransferResult, error) {
	if req.Amount <= 0 {
		return nil, ierr.NewError("amount must be positive").
			WithHint("Transfer amount must be positive").
			Mark(ierr.ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return &TransferResult{
		ProviderTransferID: m.nextID("tr"),
		Status:             types.PayoutStatusPaid,
	}, nil
}
