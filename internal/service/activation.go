package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/protown/backend/internal/domain"
	"github.com/protown/backend/pkg/square"
)

// idempotencyNamespace is fixed so a retried verification of the same intent
// reproduces the same subscription key and the processor deduplicates it.
var idempotencyNamespace = uuid.MustParse("9d3f5b1c-7a42-4e8b-b0d6-2c1a8f4e6d03")

// ActivationService drives the verification-gated activation flow. Flipping a
// professional to verified is the only path that charges a stored card.
type ActivationService struct {
	activations ActivationStore
	instruments InstrumentStore
	verifier    *CardOwnershipVerifier
	locations   *LocationResolver
	processor   square.API

	defaultLocationID string
}

// NewActivationService creates a new ActivationService.
func NewActivationService(activations ActivationStore, instruments InstrumentStore, processor square.API, defaultLocationID string) *ActivationService {
	return &ActivationService{
		activations:       activations,
		instruments:       instruments,
		verifier:          NewCardOwnershipVerifier(processor),
		locations:         NewLocationResolver(processor),
		processor:         processor,
		defaultLocationID: defaultLocationID,
	}
}

// SetVerified updates the verification flag. Setting it to true on a
// professional with a pending activation intent creates the subscription and
// starts billing. The whole decision runs under the professional's activation
// lease so concurrent toggles serialize.
func (s *ActivationService) SetVerified(ctx context.Context, professionalID string, verified bool) (*domain.ActivationResult, error) {
	var result domain.ActivationResult

	p, err := s.activations.UpdateActivation(ctx, professionalID, func(p *domain.Professional, intent *domain.ActivationIntent) (*domain.IntentChange, error) {
		if !verified {
			p.Verified = false
			return nil, nil
		}

		// Already active: idempotent. Re-verification never double-charges.
		if p.ActivationState == domain.StateActive {
			p.Verified = true
			return nil, nil
		}

		if intent == nil {
			// Nothing queued for billing. Verification still succeeds so an
			// operator can vet a professional before they pick a plan.
			p.Verified = true
			reason := string(domain.ReasonNoPendingSubscription)
			result.FailureReason = &reason
			return nil, nil
		}

		sub, actErr := s.activate(ctx, p, intent)
		if actErr != nil {
			// Attempt failed. The professional stays unverified and awaiting,
			// the intent survives, and the reason is recorded for operators.
			p.Verified = false
			reason, detail := failureFields(actErr)
			p.LastFailureReason = &reason
			if detail != "" {
				p.LastFailureDetail = &detail
			} else {
				p.LastFailureDetail = nil
			}
			result.FailureReason = &reason
			if detail != "" {
				result.FailureDetail = &detail
			}
			log.Printf("[activation] professional %s: %s (%s)", p.ID, reason, detail)
			return nil, nil
		}

		p.ActivationState = domain.StateActive
		p.Verified = true
		p.ActiveSubscriptionID = &sub.ID
		p.PendingPlanID = nil
		p.LastFailureReason = nil
		p.LastFailureDetail = nil
		log.Printf("[activation] professional %s activated, subscription %s", p.ID, sub.ID)
		return &domain.IntentChange{Clear: true}, nil
	})
	if err != nil {
		return nil, err
	}

	result.ProfessionalID = p.ID
	result.ActivationState = p.ActivationState
	result.Verified = p.Verified
	result.SubscriptionID = p.ActiveSubscriptionID
	return &result, nil
}

// activate performs one subscription attempt for the given intent. Returned
// errors are *domain.ActivationError unless something internal broke.
func (s *ActivationService) activate(ctx context.Context, p *domain.Professional, intent *domain.ActivationIntent) (*square.Subscription, error) {
	instrument, err := s.instruments.FindDefault(ctx, p.ID)
	if err != nil {
		return nil, domain.ErrInternal("failed to load default instrument", err)
	}
	if instrument == nil {
		return nil, domain.NewActivationError(domain.ReasonNoPaymentInstrument,
			"no payment instrument on file", "")
	}

	customerID, err := s.billingCustomer(ctx, p, intent)
	if err != nil {
		return nil, err
	}

	if err := s.confirmOwnership(ctx, customerID, instrument.CardRef); err != nil {
		return nil, err
	}

	locationHint := s.defaultLocationID
	if intent.LocationHint != nil && *intent.LocationHint != "" {
		locationHint = *intent.LocationHint
	}
	locationID, err := s.locations.Resolve(ctx, locationHint)
	if err != nil {
		return nil, err
	}

	params := square.CreateSubscriptionParams{
		CustomerID:      customerID,
		CardID:          instrument.CardRef,
		PlanVariationID: intent.PlanVariationID,
		LocationID:      locationID,
		IdempotencyKey:  subscriptionKey(p.ID, intent),
	}

	sub, err := s.processor.CreateSubscription(ctx, params)
	if errors.Is(err, square.ErrUnavailable) {
		// Ambiguous outcome: the charge may have landed. Replaying the same
		// idempotency key either creates the subscription or returns the one
		// already made, so one retry both re-checks and adopts.
		sub, err = s.processor.CreateSubscription(ctx, params)
	}
	if err != nil {
		return nil, billingFailure(err)
	}
	return sub, nil
}

// billingCustomer resolves the processor customer to bill, preferring the
// intent's hint, then the stored id, then an email match. A transient search
// failure gets one retry before the attempt is recorded as unavailable.
func (s *ActivationService) billingCustomer(ctx context.Context, p *domain.Professional, intent *domain.ActivationIntent) (string, error) {
	if intent.CustomerIDHint != nil && *intent.CustomerIDHint != "" {
		return *intent.CustomerIDHint, nil
	}
	if p.ExternalCustomerID != nil && *p.ExternalCustomerID != "" {
		return *p.ExternalCustomerID, nil
	}

	matches, err := s.processor.SearchCustomersByEmail(ctx, p.Email)
	if errors.Is(err, square.ErrUnavailable) {
		matches, err = s.processor.SearchCustomersByEmail(ctx, p.Email)
	}
	if err != nil {
		return "", billingFailure(err)
	}
	if len(matches) == 0 {
		return "", domain.NewActivationError(domain.ReasonNoPaymentInstrument,
			"no processor customer exists for this professional; re-validate the card", "")
	}
	return earliestCustomer(matches).ID, nil
}

// confirmOwnership checks the stored card belongs to the customer about to be
// billed. An unknown result gets one retry before the attempt is abandoned as
// a transient failure.
func (s *ActivationService) confirmOwnership(ctx context.Context, customerID, cardRef string) error {
	ownership, err := s.verifier.Verify(ctx, customerID, cardRef)
	if ownership == CardOwnershipUnknown {
		ownership, err = s.verifier.Verify(ctx, customerID, cardRef)
	}
	switch ownership {
	case CardOwned:
		return nil
	case CardNotOwned:
		return domain.NewActivationError(domain.ReasonCardNotOwned,
			"stored card does not belong to the billing customer", "")
	default:
		detail := ""
		if err != nil {
			detail = err.Error()
		}
		return domain.NewActivationError(domain.ReasonExternalUnavailable,
			"could not confirm card ownership", detail)
	}
}

// subscriptionKey derives the idempotency key from the intent so every retry
// of the same intent reuses it. A plan change produces a new intent and
// therefore a new key.
func subscriptionKey(professionalID string, intent *domain.ActivationIntent) string {
	seed := fmt.Sprintf("%s|%s|%d", professionalID, intent.PlanVariationID, intent.CreatedAt.Unix())
	return uuid.NewSHA1(idempotencyNamespace, []byte(seed)).String()
}

// AbandonActivation cancels a pending activation. The intent is consumed, the
// pending plan is remembered so a retry can restore it, and the professional
// lands in the failed state until an operator retries.
func (s *ActivationService) AbandonActivation(ctx context.Context, professionalID string) (*domain.Professional, error) {
	return s.activations.UpdateActivation(ctx, professionalID, func(p *domain.Professional, intent *domain.ActivationIntent) (*domain.IntentChange, error) {
		if p.ActivationState != domain.StateAwaitingVerification {
			return nil, domain.ErrConflict("no pending activation to abandon")
		}
		p.ActivationState = domain.StateActivationFailed
		p.AbandonedPlanID = p.PendingPlanID
		p.PendingPlanID = nil
		return &domain.IntentChange{Clear: true}, nil
	})
}

// RetryActivation moves a failed professional back to awaiting verification
// with a fresh intent for the abandoned plan.
func (s *ActivationService) RetryActivation(ctx context.Context, professionalID string) (*domain.Professional, error) {
	return s.activations.UpdateActivation(ctx, professionalID, func(p *domain.Professional, _ *domain.ActivationIntent) (*domain.IntentChange, error) {
		if p.ActivationState != domain.StateActivationFailed {
			return nil, domain.ErrConflict("professional is not in a failed activation state")
		}
		if p.AbandonedPlanID == nil {
			return nil, domain.ErrConflict("no abandoned plan to retry")
		}
		plan := *p.AbandonedPlanID
		p.ActivationState = domain.StateAwaitingVerification
		p.PendingPlanID = &plan
		p.AbandonedPlanID = nil
		p.LastFailureReason = nil
		p.LastFailureDetail = nil
		return &domain.IntentChange{Put: &domain.ActivationIntent{
			ProfessionalID:  p.ID,
			PlanVariationID: plan,
			CustomerIDHint:  p.ExternalCustomerID,
			CreatedAt:       time.Now().UTC(),
		}}, nil
	})
}

// billingFailure maps subscription-creation errors onto the failure taxonomy.
func billingFailure(err error) error {
	if errors.Is(err, square.ErrUnavailable) {
		return domain.NewActivationError(domain.ReasonExternalUnavailable,
			"payment processor unavailable", err.Error())
	}
	if apiErr, ok := square.AsAPIError(err); ok {
		return domain.NewActivationError(domain.ReasonInstrumentRejected,
			"payment was declined", apiErr.Detail)
	}
	return err
}

// failureFields extracts the recorded reason and detail from an activation
// attempt error. Non-taxonomy errors are recorded as transient.
func failureFields(err error) (reason, detail string) {
	if actErr, ok := domain.AsActivationError(err); ok {
		return string(actErr.Reason), actErr.Detail()
	}
	return string(domain.ReasonExternalUnavailable), err.Error()
}
