package service

import (
	"context"
	"sync"

	"github.com/qazuor/qzpay-sub003/internal/domain/customer"
	"github.com/qazuor/qzpay-sub003/internal/domain/paymentmethod"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// fixtures shared by the service test suites

func newTestCustomer(ctx context.Context, providerCustomerID string) *customer.Customer {
	return &customer.Customer{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CUSTOMER),
		ExternalID:  types.GenerateUUID(),
		Email:       "dana@example.com",
		Name:        "Dana",
		ProviderIDs: types.ProviderIDs{types.ProviderMock: providerCustomerID},
		BaseModel:   types.GetDefaultBaseModel(ctx, false),
	}
}

func newTestPaymentMethod(ctx context.Context, customerID, providerMethodID string) *paymentmethod.PaymentMethod {
	return &paymentmethod.PaymentMethod{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT_METHOD),
		CustomerID:  customerID,
		Type:        types.PaymentMethodTypeCard,
		MethodSts:   types.PaymentMethodStatusActive,
		IsDefault:   true,
		ProviderIDs: types.ProviderIDs{types.ProviderMock: providerMethodID},
		Version:     1,
		BaseModel:   types.GetDefaultBaseModel(ctx, false),
	}
}

// eventRecorder collects lifecycle events delivered on the bus, which
// dispatches asynchronously.
type eventRecorder struct {
	mu     sync.Mutex
	events []*types.LifecycleEvent
}

func (r *eventRecorder) record(event *types.LifecycleEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *eventRecorder) last() *types.LifecycleEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return nil
	}
	return r.events[len(r.events)-1]
}
