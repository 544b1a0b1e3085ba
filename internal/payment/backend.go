package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"template_shop_server/internal/apperr"
)

var (
	_ Gateway   = (*BackendGateway)(nil)
	_ Confirmer = (*BackendGateway)(nil)
)

// BackendGateway asks a separate checkout backend to open a hosted payment
// session: POST <base>/create-checkout-session {items:[{name,price,quantity}]}.
// The return is verified with GET <base>/checkout-session/<id>.
type BackendGateway struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewBackendGateway(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *BackendGateway {
	return &BackendGateway{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("BackendGateway"),
	}
}

func (g *BackendGateway) Name() string { return "backend" }

type backendItem struct {
	Name     string      `json:"name"`
	Price    json.Number `json:"price"` // major units, e.g. 19.99
	Quantity int64       `json:"quantity"`
}

type backendRequest struct {
	Items         []backendItem `json:"items"`
	CustomerEmail string        `json:"customerEmail,omitempty"`
	OrderID       string        `json:"orderId,omitempty"`
}

type backendResponse struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	ClientSecret  string `json:"clientSecret"`
	PaymentStatus string `json:"paymentStatus"`
	Error         string `json:"error"`
}

func (g *BackendGateway) CreateSession(ctx context.Context, req Request) (*Result, error) {
	if g.baseURL == "" {
		return nil, apperr.Checkout("Payments are not configured. Please try again later.", nil)
	}

	body := backendRequest{CustomerEmail: req.Customer.Email, OrderID: req.OrderID}
	for _, it := range req.Items {
		body.Items = append(body.Items, backendItem{
			Name:     it.Name,
			Price:    json.Number(FromMinorUnits(it.UnitAmount).StringFixed(2)),
			Quantity: it.Quantity,
		})
	}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal checkout request: %w", err)
	}

	apiURL := g.baseURL + "/create-checkout-session"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("build checkout request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	g.logger.Info("Creating checkout session", zap.String("order_id", req.OrderID), zap.String("url", apiURL))
	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperr.Network("Could not reach the payment service. Please try again.", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperr.Network("Could not read the payment service response.", err)
	}

	var out backendResponse
	_ = json.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		g.logger.Warn("Checkout backend returned an error",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", raw),
		)
		msg := out.Error
		if msg == "" {
			msg = "Failed to create a checkout session."
		}
		return nil, apperr.Checkout("Could not proceed to payment: "+msg, fmt.Errorf("status %s", resp.Status))
	}
	if out.ID == "" || (out.URL == "" && out.ClientSecret == "") {
		g.logger.Warn("Checkout backend returned an incomplete session", zap.ByteString("body", raw))
		return nil, apperr.Checkout("Could not proceed to payment: the payment service returned no session.", nil)
	}

	return &Result{SessionID: out.ID, RedirectURL: out.URL, ClientSecret: out.ClientSecret}, nil
}

// ConfirmSession asks the backend whether the session was paid.
func (g *BackendGateway) ConfirmSession(ctx context.Context, sessionID string) error {
	if g.baseURL == "" {
		return apperr.Checkout("Payments are not configured. Please try again later.", nil)
	}
	if sessionID == "" {
		return apperr.Checkout("Payment could not be verified.", errors.New("empty session id"))
	}

	apiURL := g.baseURL + "/checkout-session/" + url.PathEscape(sessionID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("build confirmation request: %w", err)
	}
	if g.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return apperr.Network("Could not reach the payment service. Please try again.", err)
	}
	defer resp.Body.Close()

	var out backendResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil && resp.StatusCode < 300 {
		return apperr.Network("Could not read the payment service response.", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		g.logger.Warn("Checkout session lookup failed", zap.String("session_id", sessionID), zap.Int("status", resp.StatusCode))
		return apperr.Checkout("Payment could not be verified.", fmt.Errorf("status %s", resp.Status))
	}
	if out.ID != sessionID {
		return apperr.Checkout("Payment could not be verified.", fmt.Errorf("session %q, backend returned %q", sessionID, out.ID))
	}
	switch out.PaymentStatus {
	case "paid", "no_payment_required":
		return nil
	default:
		return apperr.Checkout("Payment has not been completed yet.", fmt.Errorf("session %s status %q", sessionID, out.PaymentStatus))
	}
}
