package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"go.uber.org/zap"

	"template_shop_server/internal/apperr"
)

var (
	_ Gateway   = (*StripeGateway)(nil)
	_ Confirmer = (*StripeGateway)(nil)
)

// StripeGateway opens Stripe hosted Checkout sessions. The buyer is sent to
// the session URL; Stripe redirects back to SuccessURL with the session id.
type StripeGateway struct {
	api        *client.API
	successURL string
	cancelURL  string
	logger     *zap.Logger
}

type StripeConfig struct {
	SecretKey  string
	SuccessURL string // "?session_id={CHECKOUT_SESSION_ID}" is appended when missing
	CancelURL  string
	APIURL     string // override for tests; empty means api.stripe.com
	Timeout    time.Duration
}

func NewStripeGateway(cfg StripeConfig, logger *zap.Logger) *StripeGateway {
	var backends *stripe.Backends
	if cfg.APIURL != "" || cfg.Timeout > 0 {
		backendConfig := &stripe.BackendConfig{
			HTTPClient:        &http.Client{Timeout: cfg.Timeout},
			MaxNetworkRetries: stripe.Int64(0),
			LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
		}
		if cfg.APIURL != "" {
			backendConfig.URL = stripe.String(cfg.APIURL)
		}
		backend := stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig)
		backends = &stripe.Backends{API: backend, Connect: backend, Uploads: backend}
	}

	success := cfg.SuccessURL
	if success != "" && !strings.Contains(success, "{CHECKOUT_SESSION_ID}") {
		sep := "?"
		if strings.Contains(success, "?") {
			sep = "&"
		}
		success += sep + "session_id={CHECKOUT_SESSION_ID}"
	}

	return &StripeGateway{
		api:        client.New(cfg.SecretKey, backends),
		successURL: success,
		cancelURL:  cfg.CancelURL,
		logger:     logger.Named("StripeGateway"),
	}
}

func (g *StripeGateway) Name() string { return "stripe" }

func (g *StripeGateway) CreateSession(ctx context.Context, req Request) (*Result, error) {
	currency := strings.ToLower(req.Currency)
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(g.successURL),
		CancelURL:         stripe.String(g.cancelURL),
		ClientReferenceID: stripe.String(req.OrderID),
	}
	if req.Customer.Email != "" {
		params.CustomerEmail = stripe.String(req.Customer.Email)
	}
	for _, it := range req.Items {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(it.Name),
				},
				UnitAmount: stripe.Int64(it.UnitAmount),
			},
			Quantity: stripe.Int64(it.Quantity),
		})
	}
	params.Context = ctx

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		g.logger.Warn("Stripe session creation failed", zap.String("order_id", req.OrderID), zap.Error(err))
		return nil, stripeError(err)
	}

	g.logger.Info("Stripe session created", zap.String("order_id", req.OrderID), zap.String("session_id", sess.ID))
	return &Result{SessionID: sess.ID, RedirectURL: sess.URL, ClientSecret: sess.ClientSecret}, nil
}

// ConfirmSession checks that the session was actually paid before the
// purchase is treated as complete.
func (g *StripeGateway) ConfirmSession(ctx context.Context, sessionID string) error {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := g.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return stripeError(err)
	}
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid &&
		sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusNoPaymentRequired {
		return apperr.Checkout("Payment has not been completed yet.", fmt.Errorf("session %s status %s", sessionID, sess.PaymentStatus))
	}
	return nil
}

func stripeError(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		if se.HTTPStatusCode >= 500 || se.Type == stripe.ErrorTypeAPI && se.HTTPStatusCode == 0 {
			return apperr.Network("The payment service is unavailable. Please try again.", err)
		}
		msg := se.Msg
		if msg == "" {
			msg = "Failed to create a checkout session."
		}
		return apperr.Checkout("Could not proceed to payment: "+msg, err)
	}
	return apperr.Network("Could not reach the payment service. Please try again.", err)
}
