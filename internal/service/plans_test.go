package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/protown/backend/internal/service"
	"github.com/protown/backend/pkg/square"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePlanCache is an in-memory PlanCache for tests.
type fakePlanCache struct {
	mu        sync.Mutex
	plans     []square.PlanVariation
	updatedAt time.Time
	writes    int
}

func (c *fakePlanCache) GetPlans(ctx context.Context) ([]square.PlanVariation, time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.plans, c.updatedAt, nil
}

func (c *fakePlanCache) SetPlans(ctx context.Context, plans []square.PlanVariation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.plans = plans
	c.updatedAt = time.Now().UTC()
	c.writes++
	return nil
}

func TestPlanCatalogServesFreshCache(t *testing.T) {
	proc := newFakeProcessor()
	proc.listPlansErr = square.ErrUnavailable // processor must not be consulted
	cache := &fakePlanCache{
		plans:     []square.PlanVariation{{ID: "PLAN-CACHED"}},
		updatedAt: time.Now().UTC(),
	}
	svc := service.NewPlanCatalogService(cache, proc, time.Hour)

	plans, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "PLAN-CACHED", plans[0].ID)
}

func TestPlanCatalogRefreshesExpiredCache(t *testing.T) {
	proc := newFakeProcessor()
	proc.plans = []square.PlanVariation{{ID: "PLAN-FRESH"}}
	cache := &fakePlanCache{
		plans:     []square.PlanVariation{{ID: "PLAN-STALE"}},
		updatedAt: time.Now().UTC().Add(-2 * time.Hour),
	}
	svc := service.NewPlanCatalogService(cache, proc, time.Hour)

	plans, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "PLAN-FRESH", plans[0].ID)
	assert.Equal(t, 1, cache.writes)
}

func TestPlanCatalogServesStaleCacheOnOutage(t *testing.T) {
	proc := newFakeProcessor()
	proc.listPlansErr = square.ErrUnavailable
	cache := &fakePlanCache{
		plans:     []square.PlanVariation{{ID: "PLAN-STALE"}},
		updatedAt: time.Now().UTC().Add(-2 * time.Hour),
	}
	svc := service.NewPlanCatalogService(cache, proc, time.Hour)

	plans, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "PLAN-STALE", plans[0].ID)
}

func TestPlanCatalogFallsBackToStaticCatalog(t *testing.T) {
	proc := newFakeProcessor()
	proc.listPlansErr = square.ErrUnavailable
	svc := service.NewPlanCatalogService(&fakePlanCache{}, proc, time.Hour)

	plans, err := svc.List(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, plans)
	assert.Equal(t, testPlanID, plans[0].ID)
}
