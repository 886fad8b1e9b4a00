package domain

import "time"

// ActivationState is the professional's position in the activation state machine.
type ActivationState string

const (
	StateNoPlanSelected       ActivationState = "NO_PLAN_SELECTED"
	StateAwaitingVerification ActivationState = "AWAITING_VERIFICATION"
	StateActive               ActivationState = "ACTIVE"
	StateActivationFailed     ActivationState = "ACTIVATION_FAILED"
)

// Professional represents a registered service professional.
//
// ActiveSubscriptionID is non-nil iff ActivationState is ACTIVE, and
// PendingPlanID is non-nil iff ActivationState is AWAITING_VERIFICATION.
// Only the activation orchestrator mutates these fields after signup.
type Professional struct {
	ID                   string          `json:"id"`
	Name                 string          `json:"name"`
	Email                string          `json:"email"`
	PasswordHash         string          `json:"-"`
	Phone                string          `json:"phone,omitempty"`
	BusinessName         string          `json:"businessName,omitempty"`
	ActivationState      ActivationState `json:"activationState"`
	Verified             bool            `json:"verified"`
	ExternalCustomerID   *string         `json:"externalCustomerId,omitempty"`
	PendingPlanID        *string         `json:"pendingPlanId,omitempty"`
	ActiveSubscriptionID *string         `json:"activeSubscriptionId,omitempty"`
	// AbandonedPlanID remembers the plan of an intent consumed by an
	// explicit abandon, so an admin retry can restore it.
	AbandonedPlanID   *string   `json:"-"`
	LastFailureReason *string   `json:"lastFailureReason,omitempty"`
	LastFailureDetail *string   `json:"lastFailureDetail,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

// ActivationIntent is the durable record of what should happen when an admin
// verifies the professional. At most one exists per professional; it is
// consumed atomically with the transition out of AWAITING_VERIFICATION.
type ActivationIntent struct {
	ProfessionalID  string    `json:"professionalId"`
	PlanVariationID string    `json:"planVariationId"`
	CustomerIDHint  *string   `json:"customerIdHint,omitempty"`
	LocationHint    *string   `json:"locationHint,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// IntentChange describes what happens to the activation intent when an
// activation update commits. Clearing and putting are mutually exclusive.
type IntentChange struct {
	Clear bool
	Put   *ActivationIntent
}

// ActivationResult is what a verification toggle reports back to the caller.
type ActivationResult struct {
	ProfessionalID  string          `json:"professionalId"`
	ActivationState ActivationState `json:"activationState"`
	Verified        bool            `json:"verified"`
	SubscriptionID  *string         `json:"subscriptionId,omitempty"`
	FailureReason   *string         `json:"failureReason,omitempty"`
	FailureDetail   *string         `json:"failureDetail,omitempty"`
}

// SignupRequest is the input for creating a professional account.
// PaymentToken and PlanVariationID are optional: the instrument step is
// decoupled and its failure never rolls back account creation.
type SignupRequest struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	Phone           string `json:"phone,omitempty"`
	BusinessName    string `json:"businessName,omitempty"`
	PlanVariationID string `json:"planVariationId,omitempty"`
	PaymentToken    string `json:"paymentToken,omitempty"`
	// CustomerID lets the frontend reuse a customer created during a prior
	// standalone card validation, avoiding duplicates at the processor.
	CustomerID string `json:"customerId,omitempty"`
}

// SignupResponse reports the created account plus the instrument outcome.
type SignupResponse struct {
	Professional *Professional     `json:"professional"`
	Instrument   *InstrumentResult `json:"instrument,omitempty"`
}

// UpdatePlanRequest changes the pending plan selection before verification.
// A new selection overwrites any prior intent.
type UpdatePlanRequest struct {
	PlanVariationID string `json:"planVariationId" validate:"required"`
}

// SetVerifiedRequest is the admin toggle that may trigger activation.
type SetVerifiedRequest struct {
	Verified *bool `json:"verified" validate:"required"`
}
