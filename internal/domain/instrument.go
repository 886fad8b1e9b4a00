package domain

import "time"

// PaymentInstrument is a validated, reusable reference to a card held by the
// external processor. No charge is made when it is created. The card
// reference is immutable; cards are replaced, never edited.
type PaymentInstrument struct {
	ID             string    `json:"id"`
	ProfessionalID string    `json:"professionalId"`
	CardRef        string    `json:"-"`
	Brand          string    `json:"brand"`
	Last4          string    `json:"last4"`
	ExpMonth       int       `json:"expMonth,omitempty"`
	ExpYear        int       `json:"expYear,omitempty"`
	IsDefault      bool      `json:"isDefault"`
	CreatedAt      time.Time `json:"createdAt"`
}

// SaveInstrumentRequest validates and stores a card from a single-use token.
type SaveInstrumentRequest struct {
	PaymentToken    string `json:"paymentToken" validate:"required"`
	PlanVariationID string `json:"planVariationId" validate:"required"`
}

// InstrumentResult reports the outcome of instrument validation.
type InstrumentResult struct {
	InstrumentID    string          `json:"instrumentId"`
	Brand           string          `json:"brand"`
	Last4           string          `json:"last4"`
	ActivationState ActivationState `json:"activationState"`
}
