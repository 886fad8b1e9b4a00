package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/protown/backend/internal/domain"
	"github.com/protown/backend/pkg/square"
)

// LocationResolver resolves a usable billing location, falling back to the
// processor's active locations when the configured one is invalid.
type LocationResolver struct {
	processor square.API
}

// NewLocationResolver creates a new LocationResolver.
func NewLocationResolver(processor square.API) *LocationResolver {
	return &LocationResolver{processor: processor}
}

// Resolve returns the configured location id if it is active, otherwise the
// first active location by processor-assigned id. A transient lookup failure
// gets one retry; NoLocations is returned only when the processor reports
// zero active locations.
func (r *LocationResolver) Resolve(ctx context.Context, configuredID string) (string, error) {
	locations, err := r.processor.ListLocations(ctx)
	if errors.Is(err, square.ErrUnavailable) {
		locations, err = r.processor.ListLocations(ctx)
	}
	if err != nil {
		return "", fmt.Errorf("resolve location: %w", err)
	}
	if len(locations) == 0 {
		return "", domain.NewActivationError(domain.ReasonNoLocations, "processor reports no active locations", "")
	}

	if configuredID != "" {
		for _, loc := range locations {
			if loc.ID == configuredID {
				return configuredID, nil
			}
		}
	}

	sort.Slice(locations, func(i, j int) bool { return locations[i].ID < locations[j].ID })
	fallback := locations[0].ID
	if configuredID != "" {
		log.Printf("[location] configured location %s not active, substituting %s", configuredID, fallback)
	} else {
		log.Printf("[location] no location configured, using %s", fallback)
	}
	return fallback, nil
}
