package types

import (
	"database/sql/driver"
	"encoding/json"

	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/samber/lo"
)

// ProviderKind identifies a payment provider variant
type ProviderKind string

const (
	ProviderStripe      ProviderKind = "stripe"
	ProviderMercadoPago ProviderKind = "mercadopago"
	ProviderMock        ProviderKind = "mock"
)

func (p ProviderKind) String() string {
	return string(p)
}

func (p ProviderKind) Validate() error {
	allowed := []ProviderKind{
		ProviderStripe,
		ProviderMercadoPago,
		ProviderMock,
	}
	if !lo.Contains(allowed, p) {
		return ierr.NewError("invalid payment provider").
			WithHint("Invalid payment provider").
			WithReportableDetails(map[string]any{
				"provider":          p,
				"allowed_providers": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ProviderIDs maps a provider to its external object id, e.g. the Stripe
// customer id for a local customer.
type ProviderIDs map[ProviderKind]string

// Value stores ProviderIDs as JSONB
func (p ProviderIDs) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

func (p *ProviderIDs) Scan(src any) error {
	if src == nil {
		*p = nil
		return nil
	}
	raw, ok := src.([]byte)
	if !ok {
		return ierr.NewError("unsupported provider_ids column type").
			Mark(ierr.ErrSystem)
	}
	return json.Unmarshal(raw, p)
}
