package service

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/protown/backend/internal/domain"
	"github.com/protown/backend/pkg/square"
)

// InstrumentService validates payment tokens into reusable instruments and
// manages a professional's stored cards. Validation never charges.
type InstrumentService struct {
	pros        ProfessionalStore
	activations ActivationStore
	instruments InstrumentStore
	processor   square.API
	validate    *validator.Validate
}

// NewInstrumentService creates a new InstrumentService.
func NewInstrumentService(pros ProfessionalStore, activations ActivationStore, instruments InstrumentStore, processor square.API) *InstrumentService {
	return &InstrumentService{
		pros:        pros,
		activations: activations,
		instruments: instruments,
		processor:   processor,
		validate:    validator.New(),
	}
}

// SaveInstrument validates the request shape and runs the card validation
// flow. This is the HTTP entry point; Signup calls ValidateAndSave directly.
func (s *InstrumentService) SaveInstrument(ctx context.Context, professionalID string, req *domain.SaveInstrumentRequest) (*domain.InstrumentResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	return s.ValidateAndSave(ctx, professionalID, req.PaymentToken, req.PlanVariationID)
}

// tokenPrefixes are the formats the frontend tokenizer produces. Anything
// else never reaches the processor.
var tokenPrefixes = []string{"cnon:", "card-nonce-", "card:"}

func validPaymentToken(token string) bool {
	for _, prefix := range tokenPrefixes {
		if strings.HasPrefix(token, prefix) {
			return true
		}
	}
	return false
}

// ValidateAndSave attaches a single-use payment token to the professional's
// processor customer (creating the customer if needed), confirms the
// resulting card is on file, persists the instrument, and records the
// activation intent for the chosen plan. No charge is made.
func (s *InstrumentService) ValidateAndSave(ctx context.Context, professionalID, token, planVariationID string) (*domain.InstrumentResult, error) {
	p, err := s.pros.FindByID(ctx, professionalID)
	if err != nil {
		return nil, domain.ErrInternal("failed to load professional", err)
	}
	if p == nil {
		return nil, domain.ErrNotFound("professional not found")
	}
	if p.ActivationState == domain.StateActive {
		return nil, domain.ErrConflict("subscription already active")
	}

	plan := domain.PlanByVariationID(planVariationID)
	if plan == nil {
		return nil, domain.ErrBadRequest("unknown plan variation")
	}

	if !validPaymentToken(token) {
		return nil, domain.NewActivationError(domain.ReasonInstrumentRejected,
			"invalid payment token format; tokenize the card again", "")
	}

	customerID, err := s.resolveCustomer(ctx, p)
	if err != nil {
		return nil, err
	}

	card, err := s.processor.CreateCard(ctx, customerID, token, uuid.NewString())
	if err != nil {
		return nil, instrumentFailure(err)
	}

	// Defensive re-query: the processor can accept the card-creation call yet
	// return a reference not yet associated with the customer under eventual
	// consistency. The card must show up in the customer's card list before
	// we trust it for billing.
	if err := s.confirmCardOnFile(ctx, customerID, card.ID); err != nil {
		return nil, err
	}

	ins := &domain.PaymentInstrument{
		ID:             domain.NewID(),
		ProfessionalID: p.ID,
		CardRef:        card.ID,
		Brand:          orUnknown(card.Brand),
		Last4:          card.Last4,
		ExpMonth:       card.ExpMonth,
		ExpYear:        card.ExpYear,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.instruments.CreateInstrument(ctx, ins); err != nil {
		return nil, domain.ErrInternal("failed to save instrument", err)
	}

	now := time.Now().UTC()
	updated, err := s.activations.UpdateActivation(ctx, p.ID, func(p *domain.Professional, _ *domain.ActivationIntent) (*domain.IntentChange, error) {
		p.ActivationState = domain.StateAwaitingVerification
		p.PendingPlanID = &plan.VariationID
		p.ExternalCustomerID = &customerID
		p.AbandonedPlanID = nil
		p.LastFailureReason = nil
		p.LastFailureDetail = nil
		return &domain.IntentChange{Put: &domain.ActivationIntent{
			ProfessionalID:  p.ID,
			PlanVariationID: plan.VariationID,
			CustomerIDHint:  &customerID,
			CreatedAt:       now,
		}}, nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[instrument] saved card %s****%s for professional %s (no charge)", ins.Brand, ins.Last4, p.ID)
	return &domain.InstrumentResult{
		InstrumentID:    ins.ID,
		Brand:           ins.Brand,
		Last4:           ins.Last4,
		ActivationState: updated.ActivationState,
	}, nil
}

// resolveCustomer returns the professional's processor customer id, reusing a
// stored id, adopting an existing customer with the same email, or creating
// one. Idempotent on email.
func (s *InstrumentService) resolveCustomer(ctx context.Context, p *domain.Professional) (string, error) {
	if p.ExternalCustomerID != nil && *p.ExternalCustomerID != "" {
		return *p.ExternalCustomerID, nil
	}

	matches, err := s.processor.SearchCustomersByEmail(ctx, p.Email)
	if err != nil {
		return "", instrumentFailure(err)
	}
	if len(matches) > 0 {
		return earliestCustomer(matches).ID, nil
	}

	given, family := splitName(p.Name)
	customer, err := s.processor.CreateCustomer(ctx, square.CustomerProfile{
		GivenName:  given,
		FamilyName: family,
		Email:      p.Email,
		Phone:      p.Phone,
	})
	if err != nil {
		return "", instrumentFailure(err)
	}
	return customer.ID, nil
}

func (s *InstrumentService) confirmCardOnFile(ctx context.Context, customerID, cardRef string) error {
	cards, err := s.processor.ListCards(ctx, customerID)
	if err != nil {
		return instrumentFailure(err)
	}
	want := NormalizeCardRef(cardRef)
	for _, card := range cards {
		if NormalizeCardRef(card.ID) == want {
			return nil
		}
	}
	return domain.NewActivationError(domain.ReasonInstrumentRejected,
		"card was created but is not associated with the customer", "")
}

// List returns the professional's stored instruments.
func (s *InstrumentService) List(ctx context.Context, professionalID string) ([]*domain.PaymentInstrument, error) {
	return s.instruments.ListByProfessional(ctx, professionalID)
}

// SetDefault marks the given instrument as the billing default.
func (s *InstrumentService) SetDefault(ctx context.Context, professionalID, instrumentID string) error {
	return s.instruments.SetDefault(ctx, professionalID, instrumentID)
}

// Delete removes an instrument; the most recently created remaining
// instrument is promoted when the default is removed.
func (s *InstrumentService) Delete(ctx context.Context, professionalID, instrumentID string) error {
	return s.instruments.DeleteInstrument(ctx, professionalID, instrumentID)
}

// instrumentFailure maps processor errors onto the failure taxonomy:
// transport/5xx problems are transient, everything the processor rejected is
// a bad instrument.
func instrumentFailure(err error) error {
	if errors.Is(err, square.ErrUnavailable) {
		return domain.NewActivationError(domain.ReasonExternalUnavailable, "payment processor unavailable", err.Error())
	}
	if apiErr, ok := square.AsAPIError(err); ok {
		return domain.NewActivationError(domain.ReasonInstrumentRejected, "payment token rejected", apiErr.Detail)
	}
	return domain.ErrInternal("instrument validation failed", err)
}

func earliestCustomer(customers []square.Customer) square.Customer {
	sorted := make([]square.Customer, len(customers))
	copy(sorted, customers)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})
	return sorted[0]
}

func splitName(full string) (given, family string) {
	parts := strings.SplitN(strings.TrimSpace(full), " ", 2)
	given = parts[0]
	if len(parts) > 1 {
		family = parts[1]
	}
	return given, family
}

func orUnknown(brand string) string {
	if brand == "" {
		return "UNKNOWN"
	}
	return brand
}
