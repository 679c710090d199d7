package service

import (
	"context"
	"time"

	"github.com/qazuor/qzpay-sub003/internal/domain/customer"
	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/logger"
	"github.com/qazuor/qzpay-sub003/internal/provider"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// HealthStatus classifies a component's availability
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// worse orders statuses so aggregation can take the worst of children
func (s HealthStatus) worse(other HealthStatus) HealthStatus {
	rank := map[HealthStatus]int{
		HealthStatusHealthy:   0,
		HealthStatusDegraded:  1,
		HealthStatusUnhealthy: 2,
	}
	if rank[other] > rank[s] {
		return other
	}
	return s
}

// ComponentHealth is one probe's outcome
type ComponentHealth struct {
	Name           string         `json:"name"`
	Status         HealthStatus   `json:"status"`
	ResponseTimeMs int64          `json:"response_time_ms"`
	Error          string         `json:"error,omitempty"`
	Details        map[string]any `json:"details,omitempty"`
}

// HealthReport aggregates component probes; overall is the worst child
type HealthReport struct {
	Status     HealthStatus      `json:"status"`
	Components []ComponentHealth `json:"components"`
	CheckedAt  time.Time         `json:"checked_at"`
}

const (
	probeTimeout          = 5 * time.Second
	storageSlowThreshold  = 2 * time.Second
	providerSlowThreshold = 3 * time.Second

	// healthProbeCustomerID is intentionally nonexistent; a not-found reply
	// proves the provider API is reachable and responding.
	healthProbeCustomerID = "cus_health_probe_000"
)

// HealthService probes the engine's external dependencies. Each probe
// races a timeout; a slow but successful probe degrades the component
// instead of failing it.
type HealthService struct {
	customerRepo customer.Repository
	registry     *provider.Registry
	clock        types.Clock
	logger       *logger.Logger
}

func NewHealthService(customerRepo customer.Repository, registry *provider.Registry, clock types.Clock, log *logger.Logger) *HealthService {
	return &HealthService{customerRepo: customerRepo, registry: registry, clock: clock, logger: log}
}

// Check probes storage and every configured provider
func (s *HealthService) Check(ctx context.Context) *HealthReport {
	report := &HealthReport{
		Status:    HealthStatusHealthy,
		CheckedAt: s.clock.Now(),
	}

	report.Components = append(report.Components, s.probeStorage(ctx))
	for _, kind := range s.registry.Kinds() {
		report.Components = append(report.Components, s.probeProvider(ctx, kind))
	}

	for _, c := range report.Components {
		report.Status = report.Status.worse(c.Status)
	}
	if report.Status != HealthStatusHealthy {
		s.logger.Warnw("health check not healthy", "status", report.Status)
	}
	return report
}

func (s *HealthService) probeStorage(ctx context.Context) ComponentHealth {
	return s.probe(ctx, "storage", storageSlowThreshold, func(ctx context.Context) error {
		_, err := s.customerRepo.List(ctx, &customer.Filter{
			QueryFilter: types.QueryFilter{Limit: 1},
		})
		return err
	})
}

func (s *HealthService) probeProvider(ctx context.Context, kind types.ProviderKind) ComponentHealth {
	return s.probe(ctx, "provider:"+string(kind), providerSlowThreshold, func(ctx context.Context) error {
		prov, err := s.registry.Get(kind)
		if err != nil {
			return err
		}
		_, err = prov.GetCustomer(ctx, healthProbeCustomerID)
		if ierr.IsNotFound(err) {
			return nil
		}
		return err
	})
}

// probe races fn against the probe timeout and classifies the result
func (s *HealthService) probe(ctx context.Context, name string, slowThreshold time.Duration, fn func(context.Context) error) ComponentHealth {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- fn(probeCtx) }()

	var err error
	select {
	case err = <-done:
	case <-probeCtx.Done():
		err = probeCtx.Err()
	}
	elapsed := time.Since(start)

	ch := ComponentHealth{
		Name:           name,
		Status:         HealthStatusHealthy,
		ResponseTimeMs: elapsed.Milliseconds(),
	}
	switch {
	case err != nil:
		ch.Status = HealthStatusUnhealthy
		ch.Error = err.Error()
	case elapsed > slowThreshold:
		ch.Status = HealthStatusDegraded
		ch.Details = map[string]any{"slow_threshold_ms": slowThreshold.Milliseconds()}
	}
	return ch
}
