package flow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"template_shop_server/internal/ai"
	"template_shop_server/internal/apperr"
	"template_shop_server/internal/cart"
	"template_shop_server/internal/orders"
	"template_shop_server/internal/payment"
	"template_shop_server/internal/types"
)

// Service is a fixed-price item that can be put in the cart next to
// generated templates.
type Service struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type Config struct {
	TemplatePrice        decimal.Decimal
	Currency             string
	ClearCartOnStartOver bool
	ExportDir            string // purchased templates are mirrored here when set
	Services             []Service
}

// Deps are the collaborators a Controller drives.
type Deps struct {
	Generator ai.Generator
	Gateway   payment.Gateway
	Recorder  orders.Recorder
	Cart      *cart.Engine
	Logger    *zap.Logger
}

// Controller is one session's generation flow and checkout state machine.
// State changes are serialised by mu, which is released while an external
// call runs; pending and token keep those calls non-reentrant and let
// StartOver invalidate a result that is still on its way.
type Controller struct {
	mu sync.Mutex

	sessionID string
	cfg       Config
	deps      Deps
	logger    *zap.Logger

	view    View
	history []View
	failure *Failure // error overlay
	notice  *Failure // inline message on the current view

	template  *types.GeneratedTemplate
	lastPrefs *types.UserPreferences

	pending bool
	token   uint64

	payment   *pendingPayment
	purchased []types.GeneratedTemplate
	catalog   map[string]types.GeneratedTemplate

	lastActive time.Time
}

func NewController(sessionID string, cfg Config, deps Deps) *Controller {
	return &Controller{
		sessionID:  sessionID,
		cfg:        cfg,
		deps:       deps,
		logger:     deps.Logger.Named("FlowController").With(zap.String("session_id", sessionID)),
		view:       ViewForm,
		catalog:    make(map[string]types.GeneratedTemplate),
		lastActive: time.Now(),
	}
}

// Submit validates prefs and runs one generation call.
func (c *Controller) Submit(ctx context.Context, prefs types.UserPreferences) error {
	prefs = normalize(prefs)

	c.mu.Lock()
	c.touch()
	if c.pending {
		c.mu.Unlock()
		return ErrBusy
	}
	if prefs.Subject() == "" {
		err := apperr.Validation("Please describe the website you want (topic is required).")
		c.notice = failureFrom(err)
		c.mu.Unlock()
		return err
	}

	origin := c.view
	if origin != ViewPreview {
		origin = ViewForm
	}
	c.pending = true
	c.token++
	tok := c.token
	c.lastPrefs = &prefs
	c.failure, c.notice = nil, nil
	c.view = ViewLoading
	c.mu.Unlock()

	c.logger.Info("Generation started", zap.String("topic", prefs.Subject()))
	tpl, err := c.deps.Generator.Generate(ctx, prefs)

	c.mu.Lock()
	defer c.mu.Unlock()
	if tok != c.token {
		c.logger.Debug("Discarding stale generation result", zap.Uint64("token", tok), zap.Uint64("current", c.token))
		return ErrStale
	}
	c.pending = false

	switch {
	case errors.Is(err, context.Canceled):
		c.view = origin
		return err
	case apperr.KindOf(err) == apperr.KindValidation:
		c.view = origin
		c.notice = failureFrom(err)
		return err
	case err != nil:
		c.view = origin
		c.failure = failureFrom(err)
		c.logger.Warn("Generation failed", zap.Error(err))
		return err
	}

	c.template = tpl
	c.catalog[tpl.ID] = *tpl
	c.view = ViewPreview
	c.history = nil
	return nil
}

// Regenerate replays the last submitted preferences. Without any it falls
// back to the form and reports no error.
func (c *Controller) Regenerate(ctx context.Context) error {
	c.mu.Lock()
	if c.pending {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.lastPrefs == nil {
		c.touch()
		c.view = ViewForm
		c.failure = nil
		c.mu.Unlock()
		return nil
	}
	prefs := *c.lastPrefs
	c.mu.Unlock()
	return c.Submit(ctx, prefs)
}

// DismissError closes the error overlay. The last preferences are kept so
// Regenerate still works.
func (c *Controller) DismissError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()
	c.failure = nil
}

// StartOver returns to an empty form from anywhere. Any in-flight result is
// invalidated. The cart is kept unless ClearCartOnStartOver is set.
func (c *Controller) StartOver(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()

	c.token++
	c.pending = false
	c.view = ViewForm
	c.history = nil
	c.failure, c.notice = nil, nil
	c.template = nil
	c.lastPrefs = nil
	c.payment = nil

	if c.cfg.ClearCartOnStartOver {
		if err := c.deps.Cart.Clear(ctx); err != nil {
			c.logger.Error("Failed to clear cart on start over", zap.Error(err))
			return err
		}
	}
	return nil
}

// Snapshot returns the current read model.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		SessionID: c.sessionID,
		View:      c.view,
		Pending:   c.pending,
		Error:     c.failure,
		Notice:    c.notice,
		Cart:      summarize(c.deps.Cart.Items()),
	}
	if c.template != nil {
		tpl := *c.template
		s.Template = &tpl
	}
	if c.lastPrefs != nil {
		prefs := *c.lastPrefs
		s.LastPreferences = &prefs
	}
	if c.payment != nil {
		s.Payment = &PaymentSession{
			ID:           c.payment.sessionID,
			RedirectURL:  c.payment.redirectURL,
			ClientSecret: c.payment.clientSecret,
		}
	}
	if len(c.purchased) > 0 {
		s.Purchased = append([]types.GeneratedTemplate(nil), c.purchased...)
	}
	return s
}

// View reports the active view.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// Lookup finds a template generated in this session.
func (c *Controller) Lookup(id string) (types.GeneratedTemplate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.catalog[id]
	return t, ok
}

// Purchased finds a template this session has paid for.
func (c *Controller) Purchased(id string) (types.GeneratedTemplate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.purchased {
		if t.ID == id {
			return t, true
		}
	}
	return types.GeneratedTemplate{}, false
}

func (c *Controller) Cart() *cart.Engine { return c.deps.Cart }

func (c *Controller) idleSince() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

func (c *Controller) busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// touch must be called with mu held.
func (c *Controller) touch() { c.lastActive = time.Now() }

// enter moves to v, remembering the current view for GoBack. mu held.
func (c *Controller) enter(v View) {
	if c.view != v {
		c.history = append(c.history, c.view)
	}
	c.view = v
	c.notice = nil
}

func normalize(p types.UserPreferences) types.UserPreferences {
	p.WebsiteType = strings.TrimSpace(p.WebsiteType)
	p.Topic = strings.TrimSpace(p.Topic)
	p.ColorScheme = strings.TrimSpace(p.ColorScheme)
	p.SpecificRequests = strings.TrimSpace(p.SpecificRequests)
	p.Description = strings.TrimSpace(p.Description)
	var sections []string
	for _, s := range p.Sections {
		sections = append(sections, types.SplitSections(s)...)
	}
	p.Sections = sections
	return p
}
