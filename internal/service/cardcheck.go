package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/protown/backend/pkg/square"
)

// CardOwnership is the outcome of an ownership check.
type CardOwnership string

const (
	CardOwned    CardOwnership = "OWNED"
	CardNotOwned CardOwnership = "NOT_OWNED"
	// CardOwnershipUnknown means the check was inconclusive: the customer had
	// zero cards on file, which can be a propagation delay rather than a real
	// mismatch. Callers retry once before failing.
	CardOwnershipUnknown CardOwnership = "UNKNOWN"
)

// CardOwnershipVerifier confirms a stored card reference belongs to a given
// processor customer before it is used to charge.
type CardOwnershipVerifier struct {
	processor square.API
}

// NewCardOwnershipVerifier creates a new CardOwnershipVerifier.
func NewCardOwnershipVerifier(processor square.API) *CardOwnershipVerifier {
	return &CardOwnershipVerifier{processor: processor}
}

// NormalizeCardRef canonicalizes a card reference for comparison. The
// processor returns the same card as "ccof:XXXX" in some responses and bare
// "XXXX" in others; all comparisons go through this one function.
func NormalizeCardRef(ref string) string {
	return strings.TrimPrefix(strings.TrimSpace(ref), "ccof:")
}

// Verify reports whether cardRef is on file for customerID.
func (v *CardOwnershipVerifier) Verify(ctx context.Context, customerID, cardRef string) (CardOwnership, error) {
	cards, err := v.processor.ListCards(ctx, customerID)
	if err != nil {
		return CardOwnershipUnknown, fmt.Errorf("verify card ownership: %w", err)
	}
	if len(cards) == 0 {
		return CardOwnershipUnknown, nil
	}

	want := NormalizeCardRef(cardRef)
	for _, card := range cards {
		if NormalizeCardRef(card.ID) == want {
			return CardOwned, nil
		}
	}
	return CardNotOwned, nil
}
