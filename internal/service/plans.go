package service

import (
	"context"
	"log"
	"time"

	"github.com/protown/backend/internal/domain"
	"github.com/protown/backend/pkg/square"
)

// PlanCache persists the last processor catalog listing.
type PlanCache interface {
	GetPlans(ctx context.Context) ([]square.PlanVariation, time.Time, error)
	SetPlans(ctx context.Context, plans []square.PlanVariation) error
}

// PlanCatalogService serves the subscription plan catalog, preferring the
// processor's listing with a cache in front, and falling back to the static
// catalog when the processor is unreachable.
type PlanCatalogService struct {
	cache     PlanCache
	processor square.API
	ttl       time.Duration
}

// NewPlanCatalogService creates a new PlanCatalogService.
func NewPlanCatalogService(cache PlanCache, processor square.API, ttl time.Duration) *PlanCatalogService {
	return &PlanCatalogService{cache: cache, processor: processor, ttl: ttl}
}

// List returns the available subscription plans.
func (s *PlanCatalogService) List(ctx context.Context) ([]square.PlanVariation, error) {
	cached, updatedAt, err := s.cache.GetPlans(ctx)
	if err != nil {
		log.Printf("[plans] cache read failed: %v", err)
	}
	if cached != nil && time.Since(updatedAt) < s.ttl {
		return cached, nil
	}

	fresh, err := s.processor.ListSubscriptionPlans(ctx)
	if err != nil {
		log.Printf("[plans] processor catalog unavailable: %v", err)
		if cached != nil {
			// Stale beats static.
			return cached, nil
		}
		return staticPlans(), nil
	}
	if len(fresh) == 0 {
		fresh = staticPlans()
	}

	if err := s.cache.SetPlans(ctx, fresh); err != nil {
		log.Printf("[plans] cache write failed: %v", err)
	}
	return fresh, nil
}

func staticPlans() []square.PlanVariation {
	available := domain.AvailablePlans()
	plans := make([]square.PlanVariation, len(available))
	for i, p := range available {
		plans[i] = square.PlanVariation{
			ID:         p.VariationID,
			Name:       p.Name,
			Cadence:    p.Cadence,
			PriceCents: p.PriceCents,
			Currency:   p.Currency,
		}
	}
	return plans
}
