package square

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// API is the set of processor operations the services consume. Implementations
// must be safe for concurrent use.
type API interface {
	// CreateCustomer creates a customer profile and returns it.
	CreateCustomer(ctx context.Context, profile CustomerProfile) (*Customer, error)
	// SearchCustomersByEmail returns every customer with an exact email match.
	SearchCustomersByEmail(ctx context.Context, email string) ([]Customer, error)
	// CreateCard attaches a single-use payment token to a customer and
	// returns the reusable card. No charge is made.
	CreateCard(ctx context.Context, customerID, token, idempotencyKey string) (*Card, error)
	// ListCards returns the cards on file for a customer.
	ListCards(ctx context.Context, customerID string) ([]Card, error)
	// ListLocations returns the active billing locations.
	ListLocations(ctx context.Context) ([]Location, error)
	// CreateSubscription creates a subscription, charging the card as a side
	// effect. Replaying the same idempotency key returns the existing
	// subscription instead of charging again.
	CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*Subscription, error)
	// ListSubscriptionPlans returns the subscription plan variations in the
	// processor catalog.
	ListSubscriptionPlans(ctx context.Context) ([]PlanVariation, error)
}

// Customer is a processor-side customer profile.
type Customer struct {
	ID         string    `json:"id"`
	GivenName  string    `json:"given_name"`
	FamilyName string    `json:"family_name"`
	Email      string    `json:"email_address"`
	Phone      string    `json:"phone_number"`
	CreatedAt  time.Time `json:"created_at"`
}

// CustomerProfile is the input for creating a customer.
type CustomerProfile struct {
	GivenName  string
	FamilyName string
	Email      string
	Phone      string
}

// Card is a stored card on file. ID is the reusable card reference.
type Card struct {
	ID         string `json:"id"`
	CustomerID string `json:"customer_id"`
	Brand      string `json:"card_brand"`
	Last4      string `json:"last_4"`
	ExpMonth   int    `json:"exp_month"`
	ExpYear    int    `json:"exp_year"`
	Enabled    bool   `json:"enabled"`
}

// Location is a billing location.
type Location struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Subscription is the processor's view of a created subscription.
type Subscription struct {
	ID              string `json:"id"`
	Status          string `json:"status"`
	CustomerID      string `json:"customer_id"`
	CardID          string `json:"card_id"`
	LocationID      string `json:"location_id"`
	PlanVariationID string `json:"plan_variation_id"`
}

// PlanVariation is a subscription plan variation from the catalog.
type PlanVariation struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Cadence    string `json:"cadence"`
	PriceCents int64  `json:"priceCents"`
	Currency   string `json:"currency"`
}

// CreateSubscriptionParams are the inputs for the charge-triggering call.
type CreateSubscriptionParams struct {
	CustomerID      string
	CardID          string
	PlanVariationID string
	LocationID      string
	IdempotencyKey  string
}

// ErrUnavailable marks transport failures and processor 5xx responses.
// Callers check it with errors.Is and may retry.
var ErrUnavailable = errors.New("square: unavailable")

// APIError is a processor-reported request failure (4xx).
type APIError struct {
	Status   int
	Category string
	Code     string
	Detail   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("square API error (%d) %s: %s", e.Status, e.Code, e.Detail)
}

// AsAPIError attempts to extract an APIError from an error chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
