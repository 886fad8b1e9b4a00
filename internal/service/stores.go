package service

import (
	"context"

	"github.com/protown/backend/internal/domain"
)

// ProfessionalStore persists professional records.
type ProfessionalStore interface {
	Create(ctx context.Context, p *domain.Professional) error
	FindByID(ctx context.Context, id string) (*domain.Professional, error)
	FindByEmail(ctx context.Context, email string) (*domain.Professional, error)
	List(ctx context.Context) ([]*domain.Professional, error)
}

// ActivationStore owns activation state transitions. It is the single source
// of truth for activation_state; only the orchestrator writes through it.
type ActivationStore interface {
	// UpdateActivation runs fn while holding an exclusive per-professional
	// lease. fn may mutate the professional; the mutation and the returned
	// intent change commit atomically when fn returns nil. A concurrent
	// update for the same professional blocks until the lease is released.
	UpdateActivation(
		ctx context.Context,
		professionalID string,
		fn func(p *domain.Professional, intent *domain.ActivationIntent) (*domain.IntentChange, error),
	) (*domain.Professional, error)
	GetIntent(ctx context.Context, professionalID string) (*domain.ActivationIntent, error)
	PutIntent(ctx context.Context, intent *domain.ActivationIntent) error
}

// InstrumentStore persists validated payment instruments.
type InstrumentStore interface {
	CreateInstrument(ctx context.Context, ins *domain.PaymentInstrument) error
	ListByProfessional(ctx context.Context, professionalID string) ([]*domain.PaymentInstrument, error)
	FindDefault(ctx context.Context, professionalID string) (*domain.PaymentInstrument, error)
	SetDefault(ctx context.Context, professionalID, instrumentID string) error
	DeleteInstrument(ctx context.Context, professionalID, instrumentID string) error
}

// AdminStore persists back-office accounts.
type AdminStore interface {
	Create(ctx context.Context, a *domain.Admin) error
	FindByEmail(ctx context.Context, email string) (*domain.Admin, error)
	Exists(ctx context.Context, email string) (bool, error)
}
