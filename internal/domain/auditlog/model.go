package auditlog

import (
	"encoding/json"
	"time"

	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// Entry is an append-only record of a state change. Entries are never
// updated or deleted.
type Entry struct {
	ID string `db:"id" json:"id"`

	EntityType string `db:"entity_type" json:"entity_type"`
	EntityID   string `db:"entity_id" json:"entity_id"`

	Action string `db:"action" json:"action"`

	ActorID string `db:"actor_id" json:"actor_id"`

	Before json.RawMessage `db:"before" json:"before,omitempty"`
	After  json.RawMessage `db:"after" json:"after,omitempty"`

	OccurredAt time.Time `db:"occurred_at" json:"occurred_at"`

	Metadata types.Metadata `db:"metadata" json:"metadata,omitempty"`
}

func (e *Entry) Validate() error {
	if e.EntityType == "" || e.EntityID == "" {
		return ierr.NewError("entity reference is required").
			WithHint("Entity type and ID are required").
			Mark(ierr.ErrValidation)
	}
	if e.Action == "" {
		return ierr.NewError("action is required").
			WithHint("Audit action is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}
