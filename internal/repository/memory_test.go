package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/protown/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedPro(t *testing.T, s *MemoryStore, email string) *domain.Professional {
	t.Helper()
	p := &domain.Professional{
		ID:              domain.NewID(),
		Name:            "Test Pro",
		Email:           email,
		PasswordHash:    "x",
		ActivationState: domain.StateNoPlanSelected,
		CreatedAt:       time.Now().UTC(),
	}
	require.NoError(t, s.Create(context.Background(), p))
	return p
}

func TestMemoryStoreUniqueEmail(t *testing.T) {
	s := NewMemoryStore()
	seedPro(t, s, "a@example.com")

	err := s.Create(context.Background(), &domain.Professional{
		ID: domain.NewID(), Email: "a@example.com",
	})
	require.Error(t, err)
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 409, appErr.Code)
}

func TestUpdateActivationSerializesPerProfessional(t *testing.T) {
	s := NewMemoryStore()
	p := seedPro(t, s, "a@example.com")

	// Each callback reads the current state and increments the failure detail
	// counter non-atomically; serialization through the lease makes the final
	// count exact.
	const workers = 32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.UpdateActivation(context.Background(), p.ID, func(p *domain.Professional, _ *domain.ActivationIntent) (*domain.IntentChange, error) {
				n := 0
				if p.LastFailureDetail != nil {
					n = len(*p.LastFailureDetail)
				}
				time.Sleep(time.Millisecond)
				detail := strings.Repeat("x", n+1)
				p.LastFailureDetail = &detail
				return nil, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, err := s.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastFailureDetail)
	assert.Equal(t, workers, len(*stored.LastFailureDetail))
}

func TestUpdateActivationRollsBackOnCallbackError(t *testing.T) {
	s := NewMemoryStore()
	p := seedPro(t, s, "a@example.com")
	require.NoError(t, s.PutIntent(context.Background(), &domain.ActivationIntent{
		ProfessionalID:  p.ID,
		PlanVariationID: "PLAN-X",
		CreatedAt:       time.Now().UTC(),
	}))

	boom := errors.New("boom")
	_, err := s.UpdateActivation(context.Background(), p.ID, func(p *domain.Professional, _ *domain.ActivationIntent) (*domain.IntentChange, error) {
		p.ActivationState = domain.StateActive
		return &domain.IntentChange{Clear: true}, boom
	})
	require.ErrorIs(t, err, boom)

	// Neither the state change nor the intent clear committed.
	stored, err := s.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateNoPlanSelected, stored.ActivationState)

	intent, err := s.GetIntent(context.Background(), p.ID)
	require.NoError(t, err)
	assert.NotNil(t, intent)
}

func TestUpdateActivationCommitsIntentChangeAtomically(t *testing.T) {
	s := NewMemoryStore()
	p := seedPro(t, s, "a@example.com")
	require.NoError(t, s.PutIntent(context.Background(), &domain.ActivationIntent{
		ProfessionalID:  p.ID,
		PlanVariationID: "PLAN-X",
		CreatedAt:       time.Now().UTC(),
	}))

	subID := "SUB-1"
	_, err := s.UpdateActivation(context.Background(), p.ID, func(p *domain.Professional, intent *domain.ActivationIntent) (*domain.IntentChange, error) {
		require.NotNil(t, intent)
		p.ActivationState = domain.StateActive
		p.ActiveSubscriptionID = &subID
		return &domain.IntentChange{Clear: true}, nil
	})
	require.NoError(t, err)

	stored, err := s.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateActive, stored.ActivationState)

	intent, err := s.GetIntent(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Nil(t, intent)
}

func TestUpdateActivationUnknownProfessional(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.UpdateActivation(context.Background(), "missing", func(p *domain.Professional, _ *domain.ActivationIntent) (*domain.IntentChange, error) {
		return nil, nil
	})
	require.Error(t, err)
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 404, appErr.Code)
}

func TestInstrumentDefaultLifecycle(t *testing.T) {
	s := NewMemoryStore()
	p := seedPro(t, s, "a@example.com")
	ctx := context.Background()
	base := time.Now().UTC()

	first := &domain.PaymentInstrument{ID: "ins-1", ProfessionalID: p.ID, CardRef: "ccof:A", CreatedAt: base}
	second := &domain.PaymentInstrument{ID: "ins-2", ProfessionalID: p.ID, CardRef: "ccof:B", CreatedAt: base.Add(time.Minute)}
	require.NoError(t, s.CreateInstrument(ctx, first))
	require.NoError(t, s.CreateInstrument(ctx, second))

	def, err := s.FindDefault(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, def)
	assert.Equal(t, "ins-1", def.ID, "first instrument becomes default")

	require.NoError(t, s.SetDefault(ctx, p.ID, "ins-2"))
	def, err = s.FindDefault(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "ins-2", def.ID)

	require.NoError(t, s.DeleteInstrument(ctx, p.ID, "ins-2"))
	def, err = s.FindDefault(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, def)
	assert.Equal(t, "ins-1", def.ID, "deleting the default promotes a remaining instrument")

	require.NoError(t, s.DeleteInstrument(ctx, p.ID, "ins-1"))
	def, err = s.FindDefault(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, def)
}

func TestListByProfessionalNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	p := seedPro(t, s, "a@example.com")
	ctx := context.Background()
	base := time.Now().UTC()

	require.NoError(t, s.CreateInstrument(ctx, &domain.PaymentInstrument{ID: "ins-old", ProfessionalID: p.ID, CreatedAt: base}))
	require.NoError(t, s.CreateInstrument(ctx, &domain.PaymentInstrument{ID: "ins-new", ProfessionalID: p.ID, CreatedAt: base.Add(time.Hour)}))

	instruments, err := s.ListByProfessional(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, instruments, 2)
	assert.Equal(t, "ins-new", instruments[0].ID)
}
