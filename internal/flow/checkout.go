package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"template_shop_server/internal/apperr"
	"template_shop_server/internal/cart"
	"template_shop_server/internal/export"
	"template_shop_server/internal/metrics"
	"template_shop_server/internal/orders"
	"template_shop_server/internal/payment"
	"template_shop_server/internal/types"
)

type pendingPayment struct {
	orderID      string
	sessionID    string
	redirectURL  string
	clientSecret string
	customer     payment.Customer
	items        []cart.Item
}

// AddToCart puts the previewed template in the cart and opens the cart.
func (c *Controller) AddToCart(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()

	if c.pending {
		return ErrBusy
	}
	if c.view != ViewPreview || c.template == nil {
		return fmt.Errorf("%w: no generated template to add", ErrTransition)
	}

	item := cart.Item{ID: c.template.ID, Name: c.template.Name, UnitPrice: c.cfg.TemplatePrice}
	if err := c.deps.Cart.AddItem(ctx, item); err != nil {
		return err
	}
	c.enter(ViewCart)
	return nil
}

// AddService puts a configured service in the cart. It does not change view.
func (c *Controller) AddService(ctx context.Context, serviceID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()

	for _, s := range c.cfg.Services {
		if s.ID == serviceID {
			return c.deps.Cart.AddItem(ctx, cart.Item{ID: s.ID, Name: s.Name, UnitPrice: s.Price})
		}
	}
	return apperr.Validation(fmt.Sprintf("Unknown service %q.", serviceID))
}

// ViewCart opens the cart from any idle view.
func (c *Controller) ViewCart() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()

	if c.pending {
		return ErrBusy
	}
	c.enter(ViewCart)
	return nil
}

func (c *Controller) RemoveItem(ctx context.Context, index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()
	if c.pending {
		return ErrBusy
	}
	return c.deps.Cart.RemoveItem(ctx, index)
}

func (c *Controller) ChangeQuantity(ctx context.Context, index, delta int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()
	if c.pending {
		return ErrBusy
	}
	return c.deps.Cart.ChangeQuantity(ctx, index, delta)
}

// ProceedToCheckout moves from the cart to the checkout form. It is
// rejected, leaving the view on the cart, when the cart is empty.
func (c *Controller) ProceedToCheckout() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()

	if c.view != ViewCart {
		return fmt.Errorf("%w: checkout starts from the cart", ErrTransition)
	}
	if c.deps.Cart.Len() == 0 {
		c.notice = &Failure{Kind: apperr.KindValidation, Message: "Your cart is empty. Please add items before proceeding."}
		return ErrEmptyCart
	}
	c.enter(ViewCheckout)
	return nil
}

// GoBack returns from the cart or checkout to the view it was opened from.
func (c *Controller) GoBack() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()

	if c.view != ViewCart && c.view != ViewCheckout {
		return fmt.Errorf("%w: nothing to go back from", ErrTransition)
	}
	c.payment = nil
	c.notice = nil
	if n := len(c.history); n > 0 {
		c.view = c.history[n-1]
		c.history = c.history[:n-1]
	} else {
		c.view = ViewForm
	}
	if c.view == ViewPreview && c.template == nil {
		c.view = ViewForm
	}
	return nil
}

// ValidateCustomer checks the checkout form: both fields are required and
// the email must contain '@'.
func ValidateCustomer(name, email string) error {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(email) == "" {
		return apperr.Validation("Please enter your name and email address.")
	}
	if !strings.Contains(email, "@") {
		return apperr.Validation("Please enter a valid email address.")
	}
	return nil
}

// Checkout submits the checkout form. A gateway that completes the payment
// moves the session to Download with an empty cart. A hosted session is
// stored and the view stays on Checkout until CompletePurchase. Failures
// leave the form editable and the cart untouched.
func (c *Controller) Checkout(ctx context.Context, name, email string) error {
	c.mu.Lock()
	c.touch()

	if c.pending {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.view != ViewCheckout {
		c.mu.Unlock()
		return fmt.Errorf("%w: not on the checkout form", ErrTransition)
	}
	if err := ValidateCustomer(name, email); err != nil {
		c.notice = failureFrom(err)
		c.mu.Unlock()
		return err
	}
	items := c.deps.Cart.Items()
	if len(items) == 0 {
		c.notice = &Failure{Kind: apperr.KindValidation, Message: "Your cart is empty."}
		c.mu.Unlock()
		return ErrEmptyCart
	}

	customer := payment.Customer{Name: strings.TrimSpace(name), Email: strings.TrimSpace(email)}
	req := payment.Request{
		OrderID:  uuid.NewString(),
		Currency: c.cfg.Currency,
		Customer: customer,
	}
	for _, it := range items {
		req.Items = append(req.Items, payment.LineItem{
			Name:       it.Name,
			UnitAmount: payment.ToMinorUnits(it.UnitPrice),
			Quantity:   int64(it.Quantity),
		})
	}

	c.pending = true
	c.token++
	tok := c.token
	c.notice = nil
	c.payment = nil
	c.view = ViewProcessing
	c.mu.Unlock()

	gateway := c.deps.Gateway.Name()
	res, err := c.deps.Gateway.CreateSession(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	if tok != c.token {
		c.logger.Debug("Discarding stale payment result", zap.String("order_id", req.OrderID))
		return ErrStale
	}
	c.pending = false

	if err != nil {
		c.view = ViewCheckout
		if errors.Is(err, context.Canceled) {
			return err
		}
		if apperr.KindOf(err) == apperr.KindInternal {
			err = apperr.Checkout("Could not proceed to payment. Please try again.", err)
		}
		c.notice = failureFrom(err)
		metrics.Checkouts.WithLabelValues(gateway, "failed").Inc()
		c.logger.Warn("Checkout failed", zap.String("order_id", req.OrderID), zap.Error(err))
		return err
	}

	if res.Completed {
		metrics.Checkouts.WithLabelValues(gateway, "completed").Inc()
		c.completeLocked(ctx, req.OrderID, customer, items, res.Reference)
		return nil
	}

	if _, ok := c.deps.Gateway.(payment.Confirmer); !ok || res.SessionID == "" {
		c.view = ViewCheckout
		err := apperr.Checkout("Could not proceed to payment. Please try again.",
			fmt.Errorf("gateway %s returned a session that cannot be confirmed", gateway))
		c.notice = failureFrom(err)
		metrics.Checkouts.WithLabelValues(gateway, "failed").Inc()
		c.logger.Error("Unverifiable payment session", zap.String("order_id", req.OrderID), zap.Error(err))
		return err
	}

	metrics.Checkouts.WithLabelValues(gateway, "redirect").Inc()
	c.payment = &pendingPayment{
		orderID:      req.OrderID,
		sessionID:    res.SessionID,
		redirectURL:  res.RedirectURL,
		clientSecret: res.ClientSecret,
		customer:     customer,
		items:        items,
	}
	c.view = ViewCheckout
	c.logger.Info("Awaiting hosted payment", zap.String("order_id", req.OrderID), zap.String("payment_session", res.SessionID))
	return nil
}

// CompletePurchase finishes a hosted checkout when the provider sends the
// buyer back with sessionID.
func (c *Controller) CompletePurchase(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	c.touch()

	if c.pending {
		c.mu.Unlock()
		return ErrBusy
	}
	p := c.payment
	if p == nil {
		c.mu.Unlock()
		return fmt.Errorf("%w: no payment in progress", ErrTransition)
	}
	if p.sessionID == "" || sessionID != p.sessionID {
		c.mu.Unlock()
		return apperr.Checkout("This payment does not belong to your current checkout.", fmt.Errorf("session %q, expected %q", sessionID, p.sessionID))
	}
	confirmer, ok := c.deps.Gateway.(payment.Confirmer)
	if !ok {
		c.mu.Unlock()
		return apperr.Checkout("Payment could not be verified.", fmt.Errorf("gateway %s cannot confirm sessions", c.deps.Gateway.Name()))
	}
	c.pending = true
	c.token++
	tok := c.token
	c.view = ViewProcessing
	c.mu.Unlock()

	err := confirmer.ConfirmSession(ctx, sessionID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if tok != c.token {
		return ErrStale
	}
	c.pending = false
	if err != nil {
		c.view = ViewCheckout
		c.notice = failureFrom(err)
		metrics.Checkouts.WithLabelValues(c.deps.Gateway.Name(), "failed").Inc()
		return err
	}

	metrics.Checkouts.WithLabelValues(c.deps.Gateway.Name(), "completed").Inc()
	c.completeLocked(ctx, p.orderID, p.customer, p.items, sessionID)
	return nil
}

// completeLocked clears the cart, records the order and opens Download.
// Post-payment bookkeeping failures are logged; the buyer has paid. The
// bookkeeping outlives a cancelled request.
func (c *Controller) completeLocked(ctx context.Context, orderID string, customer payment.Customer, items []cart.Item, ref string) {
	ctx = context.WithoutCancel(ctx)
	var bought []types.GeneratedTemplate
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
		if t, ok := c.catalog[it.ID]; ok {
			bought = append(bought, t)
		}
	}

	if err := c.deps.Cart.Clear(ctx); err != nil {
		c.logger.Error("Failed to clear cart after purchase", zap.String("order_id", orderID), zap.Error(err))
	}

	if c.deps.Recorder != nil {
		order := orders.Order{
			ID:            orderID,
			SessionID:     c.sessionID,
			CustomerName:  customer.Name,
			CustomerEmail: customer.Email,
			Items:         items,
			Total:         total,
			Gateway:       c.deps.Gateway.Name(),
			PaymentRef:    ref,
			CreatedAt:     time.Now().UTC(),
		}
		if err := c.deps.Recorder.Record(ctx, order); err != nil {
			c.logger.Error("Failed to record order", zap.String("order_id", orderID), zap.Error(err))
		}
	}

	if c.cfg.ExportDir != "" {
		for _, t := range bought {
			if _, err := export.WriteDir(c.cfg.ExportDir, t); err != nil {
				c.logger.Error("Failed to export purchased template", zap.String("template_id", t.ID), zap.Error(err))
			}
		}
	}

	c.purchased = append(c.purchased, bought...)
	c.payment = nil
	c.notice = nil
	c.history = nil
	c.view = ViewDownload
	c.logger.Info("Purchase completed",
		zap.String("order_id", orderID),
		zap.String("total", cart.FormatPrice(total)),
		zap.Int("templates", len(bought)),
	)
}
