package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

// LineItem is one purchased line as the payment collaborator sees it.
type LineItem struct {
	Name       string `json:"name"`
	UnitAmount int64  `json:"unitAmount"` // smallest currency unit, e.g. cents
	Quantity   int64  `json:"quantity"`
}

type Customer struct {
	Name  string
	Email string
}

// Request describes the order handed to a Gateway.
type Request struct {
	OrderID  string
	Currency string
	Items    []LineItem
	Customer Customer
}

// Result is one of: Completed (payment done, nothing else to do), or a
// hosted session to send the buyer to (RedirectURL) or embed (ClientSecret).
type Result struct {
	Completed    bool   `json:"completed"`
	SessionID    string `json:"sessionId,omitempty"`
	RedirectURL  string `json:"redirectUrl,omitempty"`
	ClientSecret string `json:"clientSecret,omitempty"`
	Reference    string `json:"reference,omitempty"`
}

// Gateway creates a payment for an order. Failures are *apperr.Error values
// of kind Checkout or Network; nothing is retried.
type Gateway interface {
	CreateSession(ctx context.Context, req Request) (*Result, error)
	Name() string
}

// Confirmer is implemented by gateways that can verify a hosted session
// after the provider redirects back with its id.
type Confirmer interface {
	ConfirmSession(ctx context.Context, sessionID string) error
}

// ToMinorUnits converts a major-unit amount to the smallest currency unit,
// rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromMinorUnits is the inverse of ToMinorUnits.
func FromMinorUnits(amount int64) decimal.Decimal {
	return decimal.New(amount, -2)
}
