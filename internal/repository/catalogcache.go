package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/protown/backend/pkg/square"
)

const planCacheKey = "subscription_plans"

// CatalogCacheRepository stores the last processor catalog listing so the
// plans endpoint can serve it without a round trip on every request.
type CatalogCacheRepository struct {
	db *pgxpool.Pool
}

// NewCatalogCacheRepository creates a new CatalogCacheRepository.
func NewCatalogCacheRepository(db *pgxpool.Pool) *CatalogCacheRepository {
	return &CatalogCacheRepository{db: db}
}

// GetPlans returns the cached plan listing and its age. A nil slice means a
// cache miss.
func (r *CatalogCacheRepository) GetPlans(ctx context.Context) ([]square.PlanVariation, time.Time, error) {
	query := `SELECT data, updated_at FROM catalog_cache WHERE key = $1`
	var raw []byte
	var updatedAt time.Time
	err := r.db.QueryRow(ctx, query, planCacheKey).Scan(&raw, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, time.Time{}, nil
		}
		return nil, time.Time{}, fmt.Errorf("failed to read catalog cache: %w", err)
	}

	var plans []square.PlanVariation
	if err := json.Unmarshal(raw, &plans); err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to decode catalog cache: %w", err)
	}
	return plans, updatedAt, nil
}

// SetPlans replaces the cached plan listing.
func (r *CatalogCacheRepository) SetPlans(ctx context.Context, plans []square.PlanVariation) error {
	raw, err := json.Marshal(plans)
	if err != nil {
		return fmt.Errorf("failed to encode catalog cache: %w", err)
	}

	query := `
		INSERT INTO catalog_cache (key, data, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE
		SET data = EXCLUDED.data, updated_at = NOW()
	`
	if _, err := r.db.Exec(ctx, query, planCacheKey, raw); err != nil {
		return fmt.Errorf("failed to write catalog cache: %w", err)
	}
	return nil
}
