package domain

// Plan describes a subscription plan variation offered to professionals.
// VariationID is the processor's catalog identifier; it is what gets stored
// on the activation intent and sent with the charge-triggering call.
type Plan struct {
	VariationID string `json:"variationId"`
	Name        string `json:"name"`
	Cadence     string `json:"cadence"` // MONTHLY or ANNUAL
	PriceCents  int64  `json:"priceCents"`
	Currency    string `json:"currency"`
}

// AvailablePlans returns the plan variations a professional may select.
func AvailablePlans() []Plan {
	return []Plan{
		{
			VariationID: "LYIAHPLNYRD3AX5FPCDDYDV3",
			Name:        "Pro Network Monthly",
			Cadence:     "MONTHLY",
			PriceCents:  4900,
			Currency:    "USD",
		},
		{
			VariationID: "VGMYZYBSVKPM3CJWYK35FS7N",
			Name:        "Pro Network Yearly",
			Cadence:     "ANNUAL",
			PriceCents:  49900,
			Currency:    "USD",
		},
	}
}

// PlanByVariationID returns the plan for a catalog variation id, or nil if
// the id is not a selectable plan.
func PlanByVariationID(id string) *Plan {
	for _, p := range AvailablePlans() {
		if p.VariationID == id {
			return &p
		}
	}
	return nil
}
