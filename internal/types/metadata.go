package types

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/samber/lo"

	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
)

// Metadata is a free-form string map attached to billing entities
type Metadata map[string]string

// Merge returns a new Metadata with the overrides applied on top of m
func (m Metadata) Merge(overrides Metadata) Metadata {
	return lo.Assign(Metadata{}, m, overrides)
}

// Copy returns a shallow copy of m
func (m Metadata) Copy() Metadata {
	return lo.Assign(Metadata{}, m)
}

// Value stores Metadata as JSONB
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *Metadata) Scan(src any) error {
	if src == nil {
		*m = nil
		return nil
	}
	raw, ok := src.([]byte)
	if !ok {
		return ierr.NewError("unsupported metadata column type").
			Mark(ierr.ErrSystem)
	}
	return json.Unmarshal(raw, m)
}
