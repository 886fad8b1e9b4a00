package service_test

import (
	"context"
	"math/rand"
	"testing"

	"github.com/protown/backend/internal/domain"
	"github.com/protown/backend/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// checkInvariants asserts the structural invariants that must hold after
// every committed transition, whatever path led there.
func checkInvariants(t *testing.T, store *repository.MemoryStore, proc *fakeProcessor, professionalID string) {
	t.Helper()
	ctx := context.Background()

	p, err := store.FindByID(ctx, professionalID)
	require.NoError(t, err)
	require.NotNil(t, p)

	intent, err := store.GetIntent(ctx, professionalID)
	require.NoError(t, err)

	// Subscription id is present exactly in the ACTIVE state.
	if p.ActivationState == domain.StateActive {
		assert.NotNil(t, p.ActiveSubscriptionID)
	} else {
		assert.Nil(t, p.ActiveSubscriptionID)
	}

	// A pending plan is present exactly while awaiting verification.
	if p.ActivationState == domain.StateAwaitingVerification {
		assert.NotNil(t, p.PendingPlanID)
		assert.NotNil(t, intent)
	} else {
		assert.Nil(t, p.PendingPlanID)
		assert.Nil(t, intent)
	}

	// ACTIVE is terminal and reached by exactly one charge.
	assert.LessOrEqual(t, proc.subscriptionCount(), 1)
}

// TestRandomizedTransitionsPreserveInvariants drives one professional through
// a random sequence of admin and self-service operations and checks the
// structural invariants after every step. Operations are allowed to fail
// (conflicts, wrong state); committed state must stay consistent regardless.
func TestRandomizedTransitionsPreserveInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for run := 0; run < 20; run++ {
		store := repository.NewMemoryStore()
		proc := newFakeProcessor()
		p := seedAwaiting(t, store, proc)

		activation := newActivationService(store, proc)
		pros := newProfessionalService(store, proc)
		ctx := context.Background()

		for step := 0; step < 15; step++ {
			switch rng.Intn(6) {
			case 0:
				_, _ = activation.SetVerified(ctx, p.ID, true)
			case 1:
				_, _ = activation.SetVerified(ctx, p.ID, false)
			case 2:
				_, _ = activation.AbandonActivation(ctx, p.ID)
			case 3:
				_, _ = activation.RetryActivation(ctx, p.ID)
			case 4:
				_, _ = pros.UpdatePlan(ctx, p.ID, testPlanID)
			case 5:
				_, _ = pros.UpdatePlan(ctx, p.ID, "VGMYZYBSVKPM3CJWYK35FS7N")
			}
			checkInvariants(t, store, proc, p.ID)
		}
	}
}
