package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured application error with HTTP status code.
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error constructors.

func ErrNotFound(msg string) *AppError {
	return &AppError{Code: http.StatusNotFound, Message: msg}
}

func ErrUnauthorized(msg string) *AppError {
	return &AppError{Code: http.StatusUnauthorized, Message: msg}
}

func ErrBadRequest(msg string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: msg}
}

func ErrConflict(msg string) *AppError {
	return &AppError{Code: http.StatusConflict, Message: msg}
}

func ErrValidation(msg string) *AppError {
	return &AppError{Code: http.StatusUnprocessableEntity, Message: msg}
}

func ErrInternal(msg string, err error) *AppError {
	return &AppError{Code: http.StatusInternalServerError, Message: msg, Err: err}
}

// AsAppError attempts to extract an AppError from an error chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// FailureReason classifies why instrument validation or an activation attempt
// failed. Reasons are recorded on the professional so an admin can decide
// whether to retry.
type FailureReason string

const (
	// ReasonInstrumentRejected: the payment token was invalid, expired, or
	// already used. User-correctable.
	ReasonInstrumentRejected FailureReason = "instrument_rejected"
	// ReasonExternalUnavailable: the processor could not be reached or
	// answered with a server error. Transient.
	ReasonExternalUnavailable FailureReason = "external_unavailable"
	// ReasonNoPendingSubscription: no activation intent on file.
	ReasonNoPendingSubscription FailureReason = "no_pending_subscription"
	// ReasonNoPaymentInstrument: nothing chargeable on file. The recorded
	// detail distinguishes a missing stored card ("no payment instrument on
	// file") from a missing processor customer ("no processor customer
	// exists..."); the latter is fixed by re-validating the card, not by
	// collecting a new one.
	ReasonNoPaymentInstrument FailureReason = "no_payment_instrument"
	// ReasonCardNotOwned: the stored card reference does not belong to the
	// resolved customer. Never auto-retried.
	ReasonCardNotOwned FailureReason = "card_not_owned_by_customer"
	// ReasonNoLocations: the processor reports zero active billing locations.
	ReasonNoLocations FailureReason = "no_locations_available"
)

// ActivationError carries a failure reason plus the external error payload
// when the processor supplied one.
type ActivationError struct {
	Reason   FailureReason
	Message  string
	External string
}

func (e *ActivationError) Error() string {
	if e.External != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Reason, e.Message, e.External)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

// Detail returns the admin-facing failure description.
func (e *ActivationError) Detail() string {
	if e.External != "" {
		return e.Message + ": " + e.External
	}
	return e.Message
}

// NewActivationError builds an ActivationError.
func NewActivationError(reason FailureReason, msg, external string) *ActivationError {
	return &ActivationError{Reason: reason, Message: msg, External: external}
}

// AsActivationError attempts to extract an ActivationError from an error chain.
func AsActivationError(err error) (*ActivationError, bool) {
	var actErr *ActivationError
	if errors.As(err, &actErr) {
		return actErr, true
	}
	return nil, false
}
