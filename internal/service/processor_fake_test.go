package service_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/protown/backend/pkg/square"
)

// fakeProcessor is an in-memory square.API with controllable failure modes.
type fakeProcessor struct {
	mu sync.Mutex

	customers []square.Customer
	cards     map[string][]square.Card
	locations []square.Location
	plans     []square.PlanVariation

	// subscriptions is keyed by idempotency key so replays return the
	// existing subscription, like the real processor.
	subscriptions map[string]*square.Subscription
	subAttempts   int
	usedKeys      []string

	// failure controls; the error slices are consumed one call at a time
	declineSubscription bool
	ambiguousOnce       bool // record the subscription, then report unavailable
	listCardsErrs       []error
	createCardErr       error
	listLocationsErrs   []error
	searchErrs          []error
	listPlansErr        error
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{
		cards:         make(map[string][]square.Card),
		subscriptions: make(map[string]*square.Subscription),
		locations: []square.Location{
			{ID: "LOC-MAIN", Name: "Main", Status: "ACTIVE"},
		},
	}
}

func (f *fakeProcessor) CreateCustomer(ctx context.Context, profile square.CustomerProfile) (*square.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := square.Customer{
		ID:         fmt.Sprintf("CUST-%d", len(f.customers)+1),
		GivenName:  profile.GivenName,
		FamilyName: profile.FamilyName,
		Email:      profile.Email,
		Phone:      profile.Phone,
		CreatedAt:  time.Now().UTC(),
	}
	f.customers = append(f.customers, c)
	return &c, nil
}

func (f *fakeProcessor) SearchCustomersByEmail(ctx context.Context, email string) ([]square.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.searchErrs) > 0 {
		err := f.searchErrs[0]
		f.searchErrs = f.searchErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	var out []square.Customer
	for _, c := range f.customers {
		if c.Email == email {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeProcessor) CreateCard(ctx context.Context, customerID, token, idempotencyKey string) (*square.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createCardErr != nil {
		return nil, f.createCardErr
	}
	card := square.Card{
		ID:         fmt.Sprintf("ccof:CARD-%s-%d", customerID, len(f.cards[customerID])+1),
		CustomerID: customerID,
		Brand:      "VISA",
		Last4:      "4242",
		ExpMonth:   12,
		ExpYear:    2030,
		Enabled:    true,
	}
	f.cards[customerID] = append(f.cards[customerID], card)
	return &card, nil
}

func (f *fakeProcessor) ListCards(ctx context.Context, customerID string) ([]square.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.listCardsErrs) > 0 {
		err := f.listCardsErrs[0]
		f.listCardsErrs = f.listCardsErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return append([]square.Card(nil), f.cards[customerID]...), nil
}

func (f *fakeProcessor) ListLocations(ctx context.Context) ([]square.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.listLocationsErrs) > 0 {
		err := f.listLocationsErrs[0]
		f.listLocationsErrs = f.listLocationsErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return append([]square.Location(nil), f.locations...), nil
}

func (f *fakeProcessor) CreateSubscription(ctx context.Context, params square.CreateSubscriptionParams) (*square.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subAttempts++
	f.usedKeys = append(f.usedKeys, params.IdempotencyKey)

	if existing, ok := f.subscriptions[params.IdempotencyKey]; ok {
		return existing, nil
	}
	if f.declineSubscription {
		return nil, &square.APIError{
			Status:   402,
			Category: "PAYMENT_METHOD_ERROR",
			Code:     "CARD_DECLINED",
			Detail:   "card was declined",
		}
	}

	sub := &square.Subscription{
		ID:              fmt.Sprintf("SUB-%d", len(f.subscriptions)+1),
		Status:          "ACTIVE",
		CustomerID:      params.CustomerID,
		CardID:          params.CardID,
		LocationID:      params.LocationID,
		PlanVariationID: params.PlanVariationID,
	}
	f.subscriptions[params.IdempotencyKey] = sub

	if f.ambiguousOnce {
		f.ambiguousOnce = false
		return nil, square.ErrUnavailable
	}
	return sub, nil
}

func (f *fakeProcessor) ListSubscriptionPlans(ctx context.Context) ([]square.PlanVariation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listPlansErr != nil {
		return nil, f.listPlansErr
	}
	return append([]square.PlanVariation(nil), f.plans...), nil
}

// subscriptionCount returns how many distinct subscriptions were created,
// which is the number of times a card was actually charged.
func (f *fakeProcessor) subscriptionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscriptions)
}
