package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	gocache "github.com/patrickmn/go-cache"

	"github.com/qazuor/qzpay-sub003/internal/config"
	"github.com/qazuor/qzpay-sub003/internal/domain/webhookevent"
	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/logger"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

func recoverToError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("%v", r)
}

// Service verifies, deduplicates and dispatches inbound provider
// webhooks. Processed event ids are cached with a short TTL in front
// of the persisted record so replays are skipped without a storage hit.
type Service struct {
	config     *config.Configuration
	verifiers  map[types.ProviderKind]*Verifier
	dispatcher *Dispatcher
	repo       webhookevent.Repository
	seen       *gocache.Cache
	clock      types.Clock
	logger     *logger.Logger
}

func NewService(
	cfg *config.Configuration,
	dispatcher *Dispatcher,
	repo webhookevent.Repository,
	clock types.Clock,
	log *logger.Logger,
) *Service {
	tolerance := time.Duration(cfg.Webhook.ToleranceSeconds()) * time.Second
	verifiers := make(map[types.ProviderKind]*Verifier)
	for provider, secret := range cfg.Webhook.Secrets {
		verifiers[types.ProviderKind(provider)] = NewVerifier(secret, tolerance).WithNow(clock.Now)
	}

	return &Service{
		config:     cfg,
		verifiers:  verifiers,
		dispatcher: dispatcher,
		repo:       repo,
		seen:       gocache.New(24*time.Hour, time.Hour),
		clock:      clock,
		logger:     log,
	}
}

func (s *Service) Dispatcher() *Dispatcher {
	return s.dispatcher
}

func (s *Service) verifierFor(provider types.ProviderKind) *Verifier {
	if v, ok := s.verifiers[provider]; ok {
		return v
	}
	// No secret configured: development mode, verification passes
	tolerance := time.Duration(s.config.Webhook.ToleranceSeconds()) * time.Second
	return NewVerifier("", tolerance).WithNow(s.clock.Now)
}

// Ingest verifies and processes one raw delivery. Duplicate provider
// event ids are acknowledged without reinvoking handlers. Handler
// failures do not surface as errors; the event is recorded as failed
// and dead-lettered once delivery attempts are exhausted.
func (s *Service) Ingest(ctx context.Context, provider types.ProviderKind, payload []byte, signatureHeader string) (*webhookevent.WebhookEvent, error) {
	if err := provider.Validate(); err != nil {
		return nil, err
	}

	event, err := s.verifierFor(provider).ConstructEvent(payload, signatureHeader)
	if err != nil {
		return nil, err
	}

	cacheKey := fmt.Sprintf("%s:%s", provider, event.ID)
	if _, dup := s.seen.Get(cacheKey); dup {
		s.logger.Debugw("skipping duplicate webhook event",
			"provider", provider, "event_id", event.ID)
		return s.repo.GetByProviderEventID(ctx, provider, event.ID)
	}

	existing, err := s.repo.GetByProviderEventID(ctx, provider, event.ID)
	if err != nil && !ierr.IsNotFound(err) {
		return nil, err
	}
	if existing != nil && existing.IsProcessed() {
		s.seen.SetDefault(cacheKey, true)
		return existing, nil
	}

	record := existing
	if record == nil {
		record = &webhookevent.WebhookEvent{
			ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_WEBHOOK_EVENT),
			Provider:        provider,
			ProviderEventID: event.ID,
			EventType:       event.Type,
			Payload:         payload,
			EventStatus:     types.WebhookEventStatusReceived,
			ReceivedAt:      s.clock.Now(),
			BaseModel:       types.GetDefaultBaseModel(ctx, s.config.Billing.Livemode),
		}
		if err := s.repo.Create(ctx, record); err != nil {
			return nil, err
		}
	}

	s.process(ctx, record, event)
	s.seen.SetDefault(cacheKey, true)
	return record, nil
}

func (s *Service) process(ctx context.Context, record *webhookevent.WebhookEvent, event *Event) {
	result := s.dispatcher.Process(ctx, event)
	record.Attempts++

	now := s.clock.Now()
	if result.Processed {
		record.EventStatus = types.WebhookEventStatusProcessed
		record.ProcessedAt = &now
		record.LastError = ""
	} else {
		record.EventStatus = types.WebhookEventStatusFailed
		record.LastError = result.Error
		if record.Attempts >= s.config.Webhook.MaxDeliveryAttempts {
			record.EventStatus = types.WebhookEventStatusDeadLettered
			s.logger.Warnw("webhook event dead-lettered",
				"provider", record.Provider,
				"event_id", record.ProviderEventID,
				"attempts", record.Attempts,
				"error", record.LastError)
		}
	}

	if err := s.repo.Update(ctx, record); err != nil {
		s.logger.Errorw("failed to persist webhook event state",
			"event_id", record.ProviderEventID, "error", err)
	}
}

// RedeliverFailed retries failed (not yet dead-lettered) events with
// exponential backoff between attempts. Invoked by the cleanup schedule.
func (s *Service) RedeliverFailed(ctx context.Context, limit int) (int, error) {
	filter := &webhookevent.Filter{
		QueryFilter: types.QueryFilter{Limit: limit},
		EventStatus: types.WebhookEventStatusFailed,
	}
	events, err := s.repo.List(ctx, filter)
	if err != nil {
		return 0, err
	}

	redelivered := 0
	for _, record := range events {
		event := &Event{
			ID:      record.ProviderEventID,
			Type:    record.EventType,
			Created: record.ReceivedAt,
		}
		var body struct {
			Data map[string]any `json:"data"`
		}
		if err := json.Unmarshal(record.Payload, &body); err != nil {
			s.logger.Warnw("skipping redelivery of unparseable payload",
				"event_id", record.ProviderEventID, "error", err)
			continue
		}
		event.Data = body.Data

		operation := func() error {
			result := s.dispatcher.Process(ctx, event)
			if !result.Processed {
				return fmt.Errorf("handler failed: %s", result.Error)
			}
			return nil
		}

		policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
		record.Attempts++
		if err := backoff.Retry(operation, policy); err != nil {
			record.LastError = err.Error()
			if record.Attempts >= s.config.Webhook.MaxDeliveryAttempts {
				record.EventStatus = types.WebhookEventStatusDeadLettered
			}
		} else {
			now := s.clock.Now()
			record.EventStatus = types.WebhookEventStatusProcessed
			record.ProcessedAt = &now
			record.LastError = ""
			redelivered++
		}

		if err := s.repo.Update(ctx, record); err != nil {
			s.logger.Errorw("failed to persist redelivery state",
				"event_id", record.ProviderEventID, "error", err)
		}
	}
	return redelivered, nil
}
