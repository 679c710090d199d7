package webhookevent

import (
	"encoding/json"
	"time"

	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// WebhookEvent is a provider notification recorded for idempotent processing
type WebhookEvent struct {
	ID string `db:"id" json:"id"`

	Provider        types.ProviderKind `db:"provider" json:"provider"`
	ProviderEventID string             `db:"provider_event_id" json:"provider_event_id"`
	EventType       string             `db:"event_type" json:"event_type"`

	Payload json.RawMessage `db:"payload" json:"payload"`

	EventStatus types.WebhookEventStatus `db:"event_status" json:"event_status"`

	ReceivedAt  time.Time  `db:"received_at" json:"received_at"`
	ProcessedAt *time.Time `db:"processed_at" json:"processed_at,omitempty"`

	Attempts  int    `db:"attempts" json:"attempts"`
	LastError string `db:"last_error" json:"last_error,omitempty"`

	types.BaseModel
}

func (e *WebhookEvent) Validate() error {
	if err := e.Provider.Validate(); err != nil {
		return err
	}
	if e.ProviderEventID == "" {
		return ierr.NewError("provider_event_id is required").
			WithHint("Provider event ID is required").
			Mark(ierr.ErrValidation)
	}
	if e.EventType == "" {
		return ierr.NewError("event_type is required").
			WithHint("Event type is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// IsProcessed reports whether the event has already been handled; a
// duplicate delivery of a processed event is acknowledged and skipped
func (e *WebhookEvent) IsProcessed() bool {
	return e.EventStatus == types.WebhookEventStatusProcessed
}
