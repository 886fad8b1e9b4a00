package square

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const apiVersion = "2024-01-18"

// Config holds everything the client needs at construction time. Environment
// selection is explicit here; the client never reads ambient state at call
// time.
type Config struct {
	AccessToken string
	// Environment is "sandbox" or "production". Ignored when BaseURL is set.
	Environment string
	// BaseURL overrides the environment-derived endpoint (used in tests).
	BaseURL string
	Timeout time.Duration
}

var environmentURLs = map[string]string{
	"sandbox":    "https://connect.squareupsandbox.com",
	"production": "https://connect.squareup.com",
}

// Client calls the Square REST API directly (no SDK dependency).
type Client struct {
	accessToken string
	baseURL     string
	httpClient  *http.Client
}

// NewClient creates a Square API client from the given config.
func NewClient(cfg Config) (*Client, error) {
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("square: access token is required")
	}
	base := cfg.BaseURL
	if base == "" {
		var ok bool
		base, ok = environmentURLs[cfg.Environment]
		if !ok {
			return nil, fmt.Errorf("square: unknown environment %q", cfg.Environment)
		}
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		accessToken: cfg.AccessToken,
		baseURL:     base,
		httpClient:  &http.Client{Timeout: timeout},
	}, nil
}

// CreateCustomer creates a customer profile.
func (c *Client) CreateCustomer(ctx context.Context, profile CustomerProfile) (*Customer, error) {
	body := map[string]interface{}{
		"given_name":    profile.GivenName,
		"family_name":   profile.FamilyName,
		"email_address": profile.Email,
	}
	if profile.Phone != "" {
		body["phone_number"] = profile.Phone
	}

	var out struct {
		Customer Customer `json:"customer"`
	}
	if err := c.do(ctx, http.MethodPost, "/v2/customers", body, &out); err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return &out.Customer, nil
}

// SearchCustomersByEmail returns customers with an exact email match.
func (c *Client) SearchCustomersByEmail(ctx context.Context, email string) ([]Customer, error) {
	body := map[string]interface{}{
		"query": map[string]interface{}{
			"filter": map[string]interface{}{
				"email_address": map[string]string{"exact": email},
			},
		},
	}

	var out struct {
		Customers []Customer `json:"customers"`
	}
	if err := c.do(ctx, http.MethodPost, "/v2/customers/search", body, &out); err != nil {
		return nil, fmt.Errorf("search customers: %w", err)
	}
	return out.Customers, nil
}

// CreateCard attaches a payment token to a customer as a card on file.
func (c *Client) CreateCard(ctx context.Context, customerID, token, idempotencyKey string) (*Card, error) {
	body := map[string]interface{}{
		"idempotency_key": idempotencyKey,
		"source_id":       token,
		"card": map[string]string{
			"customer_id": customerID,
		},
	}

	var out struct {
		Card Card `json:"card"`
	}
	if err := c.do(ctx, http.MethodPost, "/v2/cards", body, &out); err != nil {
		return nil, fmt.Errorf("create card: %w", err)
	}
	return &out.Card, nil
}

// ListCards returns the enabled cards on file for a customer.
func (c *Client) ListCards(ctx context.Context, customerID string) ([]Card, error) {
	path := "/v2/cards?customer_id=" + url.QueryEscape(customerID)

	var out struct {
		Cards []Card `json:"cards"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	return out.Cards, nil
}

// ListLocations returns the active locations for the account.
func (c *Client) ListLocations(ctx context.Context) ([]Location, error) {
	var out struct {
		Locations []Location `json:"locations"`
	}
	if err := c.do(ctx, http.MethodGet, "/v2/locations", nil, &out); err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}

	active := make([]Location, 0, len(out.Locations))
	for _, loc := range out.Locations {
		if loc.Status == "ACTIVE" {
			active = append(active, loc)
		}
	}
	return active, nil
}

// CreateSubscription creates a subscription; the processor performs the first
// charge as a side effect. A replayed idempotency key returns the original
// subscription.
func (c *Client) CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*Subscription, error) {
	body := map[string]interface{}{
		"idempotency_key":   params.IdempotencyKey,
		"location_id":       params.LocationID,
		"plan_variation_id": params.PlanVariationID,
		"customer_id":       params.CustomerID,
		"card_id":           params.CardID,
	}

	var out struct {
		Subscription Subscription `json:"subscription"`
	}
	if err := c.do(ctx, http.MethodPost, "/v2/subscriptions", body, &out); err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}
	return &out.Subscription, nil
}

// ListSubscriptionPlans returns subscription plan variations from the catalog.
func (c *Client) ListSubscriptionPlans(ctx context.Context) ([]PlanVariation, error) {
	var out struct {
		Objects []struct {
			ID               string `json:"id"`
			Type             string `json:"type"`
			PlanVariationDef struct {
				Name   string `json:"name"`
				Phases []struct {
					Cadence      string `json:"cadence"`
					RecurringPriceMoney struct {
						Amount   int64  `json:"amount"`
						Currency string `json:"currency"`
					} `json:"recurring_price_money"`
				} `json:"phases"`
			} `json:"subscription_plan_variation_data"`
		} `json:"objects"`
	}
	if err := c.do(ctx, http.MethodGet, "/v2/catalog/list?types=SUBSCRIPTION_PLAN_VARIATION", nil, &out); err != nil {
		return nil, fmt.Errorf("list subscription plans: %w", err)
	}

	plans := make([]PlanVariation, 0, len(out.Objects))
	for _, obj := range out.Objects {
		if obj.Type != "SUBSCRIPTION_PLAN_VARIATION" {
			continue
		}
		plan := PlanVariation{ID: obj.ID, Name: obj.PlanVariationDef.Name}
		if len(obj.PlanVariationDef.Phases) > 0 {
			phase := obj.PlanVariationDef.Phases[0]
			plan.Cadence = phase.Cadence
			plan.PriceCents = phase.RecurringPriceMoney.Amount
			plan.Currency = phase.RecurringPriceMoney.Currency
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

// do issues one request and decodes the response into out. Transport errors
// and 5xx responses wrap ErrUnavailable; 4xx responses become an APIError
// carrying the first processor error entry.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Square-Version", apiVersion)
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, firstErrorDetail(payload))
	}
	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode, Detail: "unknown error"}
		var parsed struct {
			Errors []struct {
				Category string `json:"category"`
				Code     string `json:"code"`
				Detail   string `json:"detail"`
			} `json:"errors"`
		}
		if json.Unmarshal(payload, &parsed) == nil && len(parsed.Errors) > 0 {
			apiErr.Category = parsed.Errors[0].Category
			apiErr.Code = parsed.Errors[0].Code
			if parsed.Errors[0].Detail != "" {
				apiErr.Detail = parsed.Errors[0].Detail
			} else {
				apiErr.Detail = parsed.Errors[0].Code
			}
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}
	return nil
}

func firstErrorDetail(payload []byte) string {
	var parsed struct {
		Errors []struct {
			Detail string `json:"detail"`
			Code   string `json:"code"`
		} `json:"errors"`
	}
	if json.Unmarshal(payload, &parsed) == nil && len(parsed.Errors) > 0 {
		if parsed.Errors[0].Detail != "" {
			return parsed.Errors[0].Detail
		}
		return parsed.Errors[0].Code
	}
	return string(payload)
}
