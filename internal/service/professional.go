package service

import (
	"context"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/protown/backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// ProfessionalService handles account creation and plan selection.
type ProfessionalService struct {
	pros        ProfessionalStore
	activations ActivationStore
	instruments *InstrumentService
	validate    *validator.Validate
}

// NewProfessionalService creates a new ProfessionalService.
func NewProfessionalService(pros ProfessionalStore, activations ActivationStore, instruments *InstrumentService) *ProfessionalService {
	return &ProfessionalService{
		pros:        pros,
		activations: activations,
		instruments: instruments,
		validate:    validator.New(),
	}
}

// Signup creates a professional account. Plan selection and card validation
// are optional extras: a failed instrument step is reported in the response
// but never rolls the account back.
func (s *ProfessionalService) Signup(ctx context.Context, req *domain.SignupRequest) (*domain.SignupResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}

	existing, err := s.pros.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, domain.ErrInternal("failed to check email", err)
	}
	if existing != nil {
		return nil, domain.ErrConflict("an account with this email already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, domain.ErrInternal("failed to hash password", err)
	}

	p := &domain.Professional{
		ID:              domain.NewID(),
		Name:            req.Name,
		Email:           req.Email,
		PasswordHash:    string(hash),
		Phone:           req.Phone,
		BusinessName:    req.BusinessName,
		ActivationState: domain.StateNoPlanSelected,
		CreatedAt:       time.Now().UTC(),
	}
	if req.CustomerID != "" {
		customerID := req.CustomerID
		p.ExternalCustomerID = &customerID
	}

	if err := s.pros.Create(ctx, p); err != nil {
		return nil, err
	}
	log.Printf("[professional] created account %s (%s)", p.ID, p.Email)

	resp := &domain.SignupResponse{Professional: p}

	if req.PlanVariationID == "" {
		return resp, nil
	}
	plan := domain.PlanByVariationID(req.PlanVariationID)
	if plan == nil {
		// Bad plan at signup is not fatal; the account exists and the
		// professional can pick a plan afterwards.
		log.Printf("[professional] %s selected unknown plan %q at signup, ignoring", p.ID, req.PlanVariationID)
		return resp, nil
	}

	if req.PaymentToken != "" {
		// Token present: validate and save the card, which also records the
		// activation intent. Failures surface in the response only.
		result, insErr := s.instruments.ValidateAndSave(ctx, p.ID, req.PaymentToken, plan.VariationID)
		if insErr != nil {
			log.Printf("[professional] %s instrument validation failed at signup: %v", p.ID, insErr)
			if actErr, ok := domain.AsActivationError(insErr); ok {
				reason := string(actErr.Reason)
				detail := actErr.Detail()
				resp.Professional.LastFailureReason = &reason
				resp.Professional.LastFailureDetail = &detail
			}
			return resp, nil
		}
		resp.Instrument = result
		refreshed, err := s.pros.FindByID(ctx, p.ID)
		if err == nil && refreshed != nil {
			resp.Professional = refreshed
		}
		return resp, nil
	}

	// Plan chosen without a card: record the intent now so verification knows
	// what to bill once an instrument arrives.
	updated, err := s.recordPlan(ctx, p.ID, plan.VariationID)
	if err != nil {
		return nil, err
	}
	resp.Professional = updated
	return resp, nil
}

// UpdatePlan changes the pending plan selection. The new selection overwrites
// any prior intent; an active subscription cannot be changed this way.
func (s *ProfessionalService) UpdatePlan(ctx context.Context, professionalID, planVariationID string) (*domain.Professional, error) {
	plan := domain.PlanByVariationID(planVariationID)
	if plan == nil {
		return nil, domain.ErrBadRequest("unknown plan variation")
	}
	p, err := s.pros.FindByID(ctx, professionalID)
	if err != nil {
		return nil, domain.ErrInternal("failed to load professional", err)
	}
	if p == nil {
		return nil, domain.ErrNotFound("professional not found")
	}
	if p.ActivationState == domain.StateActive {
		return nil, domain.ErrConflict("subscription already active; plan changes are not supported here")
	}
	return s.recordPlan(ctx, professionalID, plan.VariationID)
}

func (s *ProfessionalService) recordPlan(ctx context.Context, professionalID, planVariationID string) (*domain.Professional, error) {
	return s.activations.UpdateActivation(ctx, professionalID, func(p *domain.Professional, _ *domain.ActivationIntent) (*domain.IntentChange, error) {
		p.ActivationState = domain.StateAwaitingVerification
		p.PendingPlanID = &planVariationID
		p.AbandonedPlanID = nil
		return &domain.IntentChange{Put: &domain.ActivationIntent{
			ProfessionalID:  professionalID,
			PlanVariationID: planVariationID,
			CustomerIDHint:  p.ExternalCustomerID,
			CreatedAt:       time.Now().UTC(),
		}}, nil
	})
}

// Get returns a professional by id.
func (s *ProfessionalService) Get(ctx context.Context, professionalID string) (*domain.Professional, error) {
	p, err := s.pros.FindByID(ctx, professionalID)
	if err != nil {
		return nil, domain.ErrInternal("failed to load professional", err)
	}
	if p == nil {
		return nil, domain.ErrNotFound("professional not found")
	}
	return p, nil
}

// List returns all professionals, newest first.
func (s *ProfessionalService) List(ctx context.Context) ([]*domain.Professional, error) {
	return s.pros.List(ctx)
}
