package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/protown/backend/internal/domain"
	"github.com/protown/backend/internal/repository"
	"github.com/protown/backend/internal/service"
	"github.com/protown/backend/pkg/square"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedProfessional(t *testing.T, store *repository.MemoryStore, email string) *domain.Professional {
	t.Helper()
	p := &domain.Professional{
		ID:              domain.NewID(),
		Name:            "Sam Plumber",
		Email:           email,
		PasswordHash:    "x",
		ActivationState: domain.StateNoPlanSelected,
		CreatedAt:       time.Now().UTC(),
	}
	require.NoError(t, store.Create(context.Background(), p))
	return p
}

func TestValidateAndSaveStoresCardAndIntent(t *testing.T) {
	store := repository.NewMemoryStore()
	proc := newFakeProcessor()
	svc := service.NewInstrumentService(store, store, store, proc)
	p := seedProfessional(t, store, "sam@example.com")

	result, err := svc.ValidateAndSave(context.Background(), p.ID, "cnon:good-token", testPlanID)
	require.NoError(t, err)

	assert.Equal(t, "VISA", result.Brand)
	assert.Equal(t, "4242", result.Last4)
	assert.Equal(t, domain.StateAwaitingVerification, result.ActivationState)
	assert.Equal(t, 0, proc.subscriptionCount(), "validation must never charge")

	stored, err := store.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateAwaitingVerification, stored.ActivationState)
	require.NotNil(t, stored.PendingPlanID)
	assert.Equal(t, testPlanID, *stored.PendingPlanID)
	require.NotNil(t, stored.ExternalCustomerID)

	intent, err := store.GetIntent(context.Background(), p.ID)
	require.NoError(t, err)
	require.NotNil(t, intent)
	assert.Equal(t, testPlanID, intent.PlanVariationID)

	// First instrument becomes the default.
	def, err := store.FindDefault(context.Background(), p.ID)
	require.NoError(t, err)
	require.NotNil(t, def)
	assert.Equal(t, result.InstrumentID, def.ID)
}

func TestValidateAndSaveRejectsMalformedToken(t *testing.T) {
	store := repository.NewMemoryStore()
	proc := newFakeProcessor()
	svc := service.NewInstrumentService(store, store, store, proc)
	p := seedProfessional(t, store, "sam@example.com")

	_, err := svc.ValidateAndSave(context.Background(), p.ID, "not-a-token", testPlanID)
	require.Error(t, err)
	actErr, ok := domain.AsActivationError(err)
	require.True(t, ok)
	assert.Equal(t, domain.ReasonInstrumentRejected, actErr.Reason)

	// Nothing persisted.
	instruments, err := store.ListByProfessional(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Empty(t, instruments)
}

func TestValidateAndSaveRejectsUnknownPlan(t *testing.T) {
	store := repository.NewMemoryStore()
	proc := newFakeProcessor()
	svc := service.NewInstrumentService(store, store, store, proc)
	p := seedProfessional(t, store, "sam@example.com")

	_, err := svc.ValidateAndSave(context.Background(), p.ID, "cnon:good-token", "NOT-A-PLAN")
	require.Error(t, err)
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 400, appErr.Code)
}

func TestValidateAndSaveReusesExistingCustomerByEmail(t *testing.T) {
	store := repository.NewMemoryStore()
	proc := newFakeProcessor()
	svc := service.NewInstrumentService(store, store, store, proc)
	p := seedProfessional(t, store, "sam@example.com")

	// A customer with this email already exists at the processor.
	existing, err := proc.CreateCustomer(context.Background(), square.CustomerProfile{Email: "sam@example.com"})
	require.NoError(t, err)

	_, err = svc.ValidateAndSave(context.Background(), p.ID, "cnon:good-token", testPlanID)
	require.NoError(t, err)

	stored, err := store.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ExternalCustomerID)
	assert.Equal(t, existing.ID, *stored.ExternalCustomerID, "must adopt the existing customer, not create a duplicate")
	assert.Len(t, proc.customers, 1)
}

func TestValidateAndSaveProcessorDeclineMapsToRejection(t *testing.T) {
	store := repository.NewMemoryStore()
	proc := newFakeProcessor()
	proc.createCardErr = &square.APIError{Status: 400, Code: "INVALID_CARD", Detail: "card token expired"}
	svc := service.NewInstrumentService(store, store, store, proc)
	p := seedProfessional(t, store, "sam@example.com")

	_, err := svc.ValidateAndSave(context.Background(), p.ID, "cnon:expired", testPlanID)
	require.Error(t, err)
	actErr, ok := domain.AsActivationError(err)
	require.True(t, ok)
	assert.Equal(t, domain.ReasonInstrumentRejected, actErr.Reason)
	assert.Contains(t, actErr.Detail(), "card token expired")
}

func TestValidateAndSaveProcessorOutageIsTransient(t *testing.T) {
	store := repository.NewMemoryStore()
	proc := newFakeProcessor()
	proc.createCardErr = square.ErrUnavailable
	svc := service.NewInstrumentService(store, store, store, proc)
	p := seedProfessional(t, store, "sam@example.com")

	_, err := svc.ValidateAndSave(context.Background(), p.ID, "cnon:good-token", testPlanID)
	require.Error(t, err)
	actErr, ok := domain.AsActivationError(err)
	require.True(t, ok)
	assert.Equal(t, domain.ReasonExternalUnavailable, actErr.Reason)
}

func TestValidateAndSaveRejectsWhenAlreadyActive(t *testing.T) {
	store := repository.NewMemoryStore()
	proc := newFakeProcessor()
	svc := service.NewInstrumentService(store, store, store, proc)
	p := seedProfessional(t, store, "sam@example.com")

	subID := "SUB-1"
	_, err := store.UpdateActivation(context.Background(), p.ID, func(p *domain.Professional, _ *domain.ActivationIntent) (*domain.IntentChange, error) {
		p.ActivationState = domain.StateActive
		p.ActiveSubscriptionID = &subID
		return nil, nil
	})
	require.NoError(t, err)

	_, err = svc.ValidateAndSave(context.Background(), p.ID, "cnon:good-token", testPlanID)
	require.Error(t, err)
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 409, appErr.Code)
}

func TestDeleteInstrumentPromotesMostRecent(t *testing.T) {
	store := repository.NewMemoryStore()
	proc := newFakeProcessor()
	svc := service.NewInstrumentService(store, store, store, proc)
	p := seedProfessional(t, store, "sam@example.com")

	base := time.Now().UTC()
	first := &domain.PaymentInstrument{ID: "ins-1", ProfessionalID: p.ID, CardRef: "ccof:A", CreatedAt: base}
	second := &domain.PaymentInstrument{ID: "ins-2", ProfessionalID: p.ID, CardRef: "ccof:B", CreatedAt: base.Add(time.Minute)}
	third := &domain.PaymentInstrument{ID: "ins-3", ProfessionalID: p.ID, CardRef: "ccof:C", CreatedAt: base.Add(2 * time.Minute)}
	for _, ins := range []*domain.PaymentInstrument{first, second, third} {
		require.NoError(t, store.CreateInstrument(context.Background(), ins))
	}

	// First instrument is the default; deleting it promotes the newest.
	require.NoError(t, svc.Delete(context.Background(), p.ID, "ins-1"))

	def, err := store.FindDefault(context.Background(), p.ID)
	require.NoError(t, err)
	require.NotNil(t, def)
	assert.Equal(t, "ins-3", def.ID)
}

func TestSetDefaultIsExclusive(t *testing.T) {
	store := repository.NewMemoryStore()
	proc := newFakeProcessor()
	svc := service.NewInstrumentService(store, store, store, proc)
	p := seedProfessional(t, store, "sam@example.com")

	base := time.Now().UTC()
	require.NoError(t, store.CreateInstrument(context.Background(), &domain.PaymentInstrument{ID: "ins-1", ProfessionalID: p.ID, CardRef: "ccof:A", CreatedAt: base}))
	require.NoError(t, store.CreateInstrument(context.Background(), &domain.PaymentInstrument{ID: "ins-2", ProfessionalID: p.ID, CardRef: "ccof:B", CreatedAt: base.Add(time.Minute)}))

	require.NoError(t, svc.SetDefault(context.Background(), p.ID, "ins-2"))

	instruments, err := svc.List(context.Background(), p.ID)
	require.NoError(t, err)
	defaults := 0
	for _, ins := range instruments {
		if ins.IsDefault {
			defaults++
			assert.Equal(t, "ins-2", ins.ID)
		}
	}
	assert.Equal(t, 1, defaults)
}

func TestValidateAndSaveClearsAbandonedPlan(t *testing.T) {
	store := repository.NewMemoryStore()
	proc := newFakeProcessor()
	svc := service.NewInstrumentService(store, store, store, proc)

	abandoned := testPlanID
	p := &domain.Professional{
		ID:              domain.NewID(),
		Name:            "Back Again",
		Email:           "back@example.com",
		PasswordHash:    "x",
		ActivationState: domain.StateActivationFailed,
		AbandonedPlanID: &abandoned,
		CreatedAt:       time.Now().UTC(),
	}
	require.NoError(t, store.Create(context.Background(), p))

	_, err := svc.ValidateAndSave(context.Background(), p.ID, "cnon:good-token", testPlanID)
	require.NoError(t, err)

	stored, err := store.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateAwaitingVerification, stored.ActivationState)
	assert.Nil(t, stored.AbandonedPlanID, "a fresh card validation supersedes the abandoned plan")
}
