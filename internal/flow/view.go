package flow

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"template_shop_server/internal/apperr"
	"template_shop_server/internal/cart"
	"template_shop_server/internal/types"
)

// View is the screen the session is on. Exactly one is active at a time.
type View string

const (
	ViewForm       View = "form"
	ViewLoading    View = "loading"
	ViewPreview    View = "preview"
	ViewCart       View = "cart"
	ViewCheckout   View = "checkout"
	ViewProcessing View = "processing"
	ViewDownload   View = "download"
)

var (
	// ErrBusy rejects an action while a generation or payment call is in flight.
	ErrBusy = errors.New("another request is already in progress")
	// ErrTransition is returned when an action's guard fails in the current view.
	ErrTransition = errors.New("action not allowed in the current view")
	// ErrEmptyCart is the checkout guard failure.
	ErrEmptyCart = fmt.Errorf("%w: cart is empty", ErrTransition)
	// ErrStale is returned to the caller whose result arrived after the
	// session moved on; the result was discarded.
	ErrStale = errors.New("result discarded: the session has moved on")
)

// Failure is a user-facing error. On the controller it is either the error
// overlay (generation failures) or an inline message on the current view.
type Failure struct {
	Kind      apperr.Kind `json:"kind"`
	Message   string      `json:"message"`
	Retryable bool        `json:"retryable"`
}

func failureFrom(err error) *Failure {
	return &Failure{
		Kind:      apperr.KindOf(err),
		Message:   apperr.MessageOf(err),
		Retryable: apperr.Retryable(err),
	}
}

type CartLine struct {
	Index     int    `json:"index"`
	ID        string `json:"id"`
	Name      string `json:"name"`
	UnitPrice string `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
	Subtotal  string `json:"subtotal"`
}

type CartSummary struct {
	Items []CartLine `json:"items"`
	Count int        `json:"count"`
	Total string     `json:"total"`
}

func summarize(items []cart.Item) CartSummary {
	s := CartSummary{Items: make([]CartLine, 0, len(items))}
	sum := decimal.Zero
	for i, it := range items {
		s.Items = append(s.Items, CartLine{
			Index:     i,
			ID:        it.ID,
			Name:      it.Name,
			UnitPrice: cart.FormatPrice(it.UnitPrice),
			Quantity:  it.Quantity,
			Subtotal:  cart.FormatPrice(it.Subtotal()),
		})
		s.Count += it.Quantity
		sum = sum.Add(it.Subtotal())
	}
	s.Total = cart.FormatPrice(sum)
	return s
}

// PaymentSession is a hosted checkout the buyer still has to complete.
type PaymentSession struct {
	ID           string `json:"id,omitempty"`
	RedirectURL  string `json:"redirectUrl,omitempty"`
	ClientSecret string `json:"clientSecret,omitempty"`
}

// Snapshot is the read model the front end renders from.
type Snapshot struct {
	SessionID       string                    `json:"sessionId"`
	View            View                      `json:"view"`
	Pending         bool                      `json:"pending"`
	Error           *Failure                  `json:"error,omitempty"`
	Notice          *Failure                  `json:"notice,omitempty"`
	Template        *types.GeneratedTemplate  `json:"template,omitempty"`
	LastPreferences *types.UserPreferences    `json:"lastPreferences,omitempty"`
	Cart            CartSummary               `json:"cart"`
	Payment         *PaymentSession           `json:"payment,omitempty"`
	Purchased       []types.GeneratedTemplate `json:"purchased,omitempty"`
}
