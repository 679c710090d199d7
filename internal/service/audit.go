package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/qazuor/qzpay-sub003/internal/domain/auditlog"
	"github.com/qazuor/qzpay-sub003/internal/logger"
	"github.com/qazuor/qzpay-sub003/internal/publisher"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// AuditService keeps an append-only trail of billing state changes.
// Entries come in two ways: services call Record directly for mutations
// that carry before/after snapshots, and Attach subscribes the trail to
// the event bus so every emitted lifecycle event leaves a record.
type AuditService struct {
	repo   auditlog.Repository
	clock  types.Clock
	logger *logger.Logger
}

func NewAuditService(repo auditlog.Repository, clock types.Clock, log *logger.Logger) *AuditService {
	return &AuditService{
		repo:   repo,
		clock:  clock,
		logger: log,
	}
}

// Record appends one audit entry. Failures are logged and swallowed:
// auditing never blocks the mutation it describes.
func (s *AuditService) Record(ctx context.Context, entityType, entityID, action string, before, after json.RawMessage) {
	entry := &auditlog.Entry{
		ID:         types.GenerateUUIDWithPrefix(types.UUID_PREFIX_AUDIT_LOG),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		ActorID:    types.GetActorID(ctx),
		Before:     before,
		After:      after,
		OccurredAt: s.clock.Now(),
	}
	if err := entry.Validate(); err != nil {
		s.logger.Errorw("invalid audit entry", "entity_type", entityType, "entity_id", entityID, "error", err)
		return
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.Errorw("failed to write audit entry",
			"entity_type", entityType, "entity_id", entityID, "action", action, "error", err)
	}
}

func (s *AuditService) Get(ctx context.Context, id string) (*auditlog.Entry, error) {
	return s.repo.Get(ctx, id)
}

func (s *AuditService) List(ctx context.Context, filter *auditlog.Filter) ([]*auditlog.Entry, error) {
	return s.repo.List(ctx, filter)
}

// ListByEntity returns the full trail for one record, oldest first
func (s *AuditService) ListByEntity(ctx context.Context, entityType, entityID string) ([]*auditlog.Entry, error) {
	return s.repo.List(ctx, &auditlog.Filter{
		QueryFilter: types.NewNoLimitQueryFilter(),
		EntityType:  entityType,
		EntityID:    entityID,
	})
}

// auditedEvents are the bus events mirrored into the audit trail
var auditedEvents = []string{
	types.EventCustomerCreated,
	types.EventCustomerUpdated,
	types.EventCustomerDeleted,
	types.EventSubscriptionCreated,
	types.EventSubscriptionCanceled,
	types.EventSubscriptionReactivate,
	types.EventSubscriptionRenewed,
	types.EventSubscriptionTrialConverted,
	types.EventSubscriptionEnteredGracePeriod,
	types.EventSubscriptionCanceledNonpayment,
	types.EventPaymentSucceeded,
	types.EventPaymentFailed,
	types.EventPaymentRefunded,
	types.EventInvoicePaid,
}

// Attach subscribes the audit trail to the event bus. Each mirrored
// event becomes an entry whose entity and action derive from the event
// name, e.g. "subscription.renewed" audits entity "subscription" with
// action "renewed".
func (s *AuditService) Attach(bus *publisher.EventBus) []publisher.Unsubscribe {
	unsubs := make([]publisher.Unsubscribe, 0, len(auditedEvents))
	for _, name := range auditedEvents {
		unsubs = append(unsubs, bus.On(name, s.recordEvent))
	}
	return unsubs
}

func (s *AuditService) recordEvent(event *types.LifecycleEvent) {
	entityType, action, ok := strings.Cut(event.Type, ".")
	if !ok {
		return
	}
	entityID := s.resolveEntityID(entityType, event)
	if entityID == "" {
		return
	}
	ctx := context.WithValue(context.Background(), types.CtxActorID, types.DefaultActorID)
	s.Record(ctx, entityType, entityID, action, nil, event.Data)
}

// resolveEntityID finds the id of the record the event is about: the
// "<entity>_id" field of the payload when present, otherwise the
// envelope's subscription or customer id.
func (s *AuditService) resolveEntityID(entityType string, event *types.LifecycleEvent) string {
	if len(event.Data) > 0 {
		var payload map[string]any
		if err := json.Unmarshal(event.Data, &payload); err == nil {
			if id, ok := payload[entityType+"_id"].(string); ok && id != "" {
				return id
			}
		}
	}
	switch entityType {
	case "customer":
		return event.CustomerID
	case "subscription":
		return event.SubscriptionID
	}
	if event.SubscriptionID != "" {
		return event.SubscriptionID
	}
	return event.CustomerID
}
