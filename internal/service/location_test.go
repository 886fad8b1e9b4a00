package service_test

import (
	"context"
	"testing"

	"github.com/protown/backend/internal/domain"
	"github.com/protown/backend/internal/service"
	"github.com/protown/backend/pkg/square"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveLocationPrefersConfigured(t *testing.T) {
	proc := newFakeProcessor()
	proc.locations = []square.Location{
		{ID: "LOC-A", Status: "ACTIVE"},
		{ID: "LOC-B", Status: "ACTIVE"},
	}
	r := service.NewLocationResolver(proc)

	id, err := r.Resolve(context.Background(), "LOC-B")
	require.NoError(t, err)
	assert.Equal(t, "LOC-B", id)
}

func TestResolveLocationSubstitutesFirstActiveByID(t *testing.T) {
	proc := newFakeProcessor()
	proc.locations = []square.Location{
		{ID: "LOC-Z", Status: "ACTIVE"},
		{ID: "LOC-A", Status: "ACTIVE"},
	}
	r := service.NewLocationResolver(proc)

	id, err := r.Resolve(context.Background(), "LOC-GONE")
	require.NoError(t, err)
	assert.Equal(t, "LOC-A", id, "fallback is the first active location by id")

	id, err = r.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "LOC-A", id)
}

func TestResolveLocationNoneAvailable(t *testing.T) {
	proc := newFakeProcessor()
	proc.locations = nil
	r := service.NewLocationResolver(proc)

	_, err := r.Resolve(context.Background(), "LOC-A")
	require.Error(t, err)
	actErr, ok := domain.AsActivationError(err)
	require.True(t, ok)
	assert.Equal(t, domain.ReasonNoLocations, actErr.Reason)
}
