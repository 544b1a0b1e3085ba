package flow_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"template_shop_server/internal/apperr"
	"template_shop_server/internal/cart"
	"template_shop_server/internal/flow"
	"template_shop_server/internal/mocks"
	"template_shop_server/internal/orders"
	"template_shop_server/internal/payment"
	"template_shop_server/internal/types"
)

var bakery = types.UserPreferences{
	WebsiteType: "Restaurant",
	Topic:       "Artisan Bakery",
	Sections:    []string{"Menu", "About"},
	ColorScheme: "warm",
}

func bakeryTemplate(id string) *types.GeneratedTemplate {
	return &types.GeneratedTemplate{
		ID:          id,
		Name:        "Website for Artisan Bakery",
		HTMLContent: "<!DOCTYPE html><html><body>Bread</body></html>",
		Preferences: bakery,
	}
}

type harness struct {
	ctrl     *flow.Controller
	gen      *mocks.Generator
	gateway  payment.Gateway
	store    *cart.MemoryStore
	recorder *orders.MemoryRecorder
}

func newHarness(t *testing.T, gateway payment.Gateway, cfg flow.Config) *harness {
	t.Helper()
	store := cart.NewMemoryStore()
	engine, err := cart.NewEngine(context.Background(), store, zap.NewNop())
	require.NoError(t, err)

	if cfg.TemplatePrice.IsZero() {
		cfg.TemplatePrice = decimal.RequireFromString("49.99")
	}
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	if gateway == nil {
		gateway = payment.NewSimulatedGateway(0, zap.NewNop())
	}

	h := &harness{
		gen:      &mocks.Generator{},
		gateway:  gateway,
		store:    store,
		recorder: orders.NewMemoryRecorder(),
	}
	h.ctrl = flow.NewController("sess-1", cfg, flow.Deps{
		Generator: h.gen,
		Gateway:   gateway,
		Recorder:  h.recorder,
		Cart:      engine,
		Logger:    zap.NewNop(),
	})
	return h
}

// toCheckout drives the session from the form to the checkout view with
// one template in the cart.
func (h *harness) toCheckout(t *testing.T, id string) {
	t.Helper()
	h.gen.On("Generate", mock.Anything, mock.Anything).Return(bakeryTemplate(id), nil).Once()
	require.NoError(t, h.ctrl.Submit(context.Background(), bakery))
	require.NoError(t, h.ctrl.AddToCart(context.Background()))
	require.NoError(t, h.ctrl.ProceedToCheckout())
	require.Equal(t, flow.ViewCheckout, h.ctrl.View())
}

func TestSubmitSuccessShowsPreview(t *testing.T) {
	h := newHarness(t, nil, flow.Config{})
	h.gen.On("Generate", mock.Anything, bakery).Return(bakeryTemplate("t1"), nil).Once()

	require.NoError(t, h.ctrl.Submit(context.Background(), bakery))

	snap := h.ctrl.Snapshot()
	assert.Equal(t, flow.ViewPreview, snap.View)
	require.NotNil(t, snap.Template)
	assert.Equal(t, "t1", snap.Template.ID)
	assert.False(t, snap.Pending)
	assert.Nil(t, snap.Error)
	h.gen.AssertExpectations(t)
}

func TestSubmitWithoutTopicIsRejected(t *testing.T) {
	h := newHarness(t, nil, flow.Config{})

	err := h.ctrl.Submit(context.Background(), types.UserPreferences{WebsiteType: "Blog", Topic: "   "})

	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	snap := h.ctrl.Snapshot()
	assert.Equal(t, flow.ViewForm, snap.View)
	require.NotNil(t, snap.Notice)
	assert.Nil(t, snap.LastPreferences)
	h.gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestSubmitFailureShowsOverlayOnForm(t *testing.T) {
	h := newHarness(t, nil, flow.Config{})
	h.gen.On("Generate", mock.Anything, mock.Anything).
		Return(nil, apperr.Network("Network error. Please check your connection.", errors.New("dial tcp"))).Once()

	err := h.ctrl.Submit(context.Background(), bakery)

	assert.Equal(t, apperr.KindNetwork, apperr.KindOf(err))
	snap := h.ctrl.Snapshot()
	assert.Equal(t, flow.ViewForm, snap.View)
	require.NotNil(t, snap.Error)
	assert.True(t, snap.Error.Retryable)
	assert.False(t, snap.Pending)

	h.ctrl.DismissError()
	snap = h.ctrl.Snapshot()
	assert.Nil(t, snap.Error)
	require.NotNil(t, snap.LastPreferences, "dismissing keeps the preferences for regenerate")
}

func TestSubmitWhileBusyIsRejected(t *testing.T) {
	h := newHarness(t, nil, flow.Config{})
	release := make(chan struct{})
	started := make(chan struct{})
	h.gen.On("Generate", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(bakeryTemplate("t1"), nil).Once()

	done := make(chan error, 1)
	go func() { done <- h.ctrl.Submit(context.Background(), bakery) }()
	<-started

	assert.Equal(t, flow.ViewLoading, h.ctrl.View())
	assert.ErrorIs(t, h.ctrl.Submit(context.Background(), bakery), flow.ErrBusy)
	assert.ErrorIs(t, h.ctrl.Regenerate(context.Background()), flow.ErrBusy)
	assert.ErrorIs(t, h.ctrl.ViewCart(), flow.ErrBusy)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, flow.ViewPreview, h.ctrl.View())
	h.gen.AssertNumberOfCalls(t, "Generate", 1)
}

func TestStartOverDiscardsInFlightResult(t *testing.T) {
	h := newHarness(t, nil, flow.Config{})
	release := make(chan struct{})
	started := make(chan struct{})
	h.gen.On("Generate", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(bakeryTemplate("late"), nil).Once()

	done := make(chan error, 1)
	go func() { done <- h.ctrl.Submit(context.Background(), bakery) }()
	<-started

	require.NoError(t, h.ctrl.StartOver(context.Background()))
	close(release)

	assert.ErrorIs(t, <-done, flow.ErrStale)
	snap := h.ctrl.Snapshot()
	assert.Equal(t, flow.ViewForm, snap.View)
	assert.Nil(t, snap.Template)
	assert.False(t, snap.Pending)
	_, ok := h.ctrl.Lookup("late")
	assert.False(t, ok)
}

func TestRegenerateReplaysIdenticalPreferences(t *testing.T) {
	h := newHarness(t, nil, flow.Config{})
	var seen []types.UserPreferences
	h.gen.On("Generate", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			seen = append(seen, args.Get(1).(types.UserPreferences))
		}).
		Return(nil, apperr.Generation("Failed to generate website template. Please try again.", nil)).Times(3)

	assert.Error(t, h.ctrl.Submit(context.Background(), bakery))
	assert.Error(t, h.ctrl.Regenerate(context.Background()))
	assert.Error(t, h.ctrl.Regenerate(context.Background()))

	require.Len(t, seen, 3)
	assert.Equal(t, seen[0], seen[1])
	assert.Equal(t, seen[0], seen[2])
	assert.Equal(t, bakery.Topic, seen[2].Topic)
	assert.Equal(t, []string{"Menu", "About"}, seen[2].Sections)
}

func TestRegenerateWhileCheckoutPendingIsRejected(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	gw := &mocks.Gateway{}
	gw.On("CreateSession", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(&payment.Result{Completed: true}, nil).Once()
	h := newHarness(t, gw, flow.Config{})
	h.toCheckout(t, "t1")
	require.NoError(t, h.ctrl.StartOver(context.Background()))
	require.NoError(t, h.ctrl.ViewCart())
	require.NoError(t, h.ctrl.ProceedToCheckout())

	done := make(chan error, 1)
	go func() { done <- h.ctrl.Checkout(context.Background(), "Ada", "ada@example.com") }()
	<-started

	assert.ErrorIs(t, h.ctrl.Regenerate(context.Background()), flow.ErrBusy)
	assert.Equal(t, flow.ViewProcessing, h.ctrl.View())

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, flow.ViewDownload, h.ctrl.View())
}

func TestRegenerateWithoutPreferencesFallsBackToForm(t *testing.T) {
	h := newHarness(t, nil, flow.Config{})

	assert.NoError(t, h.ctrl.Regenerate(context.Background()))
	assert.Equal(t, flow.ViewForm, h.ctrl.View())
	h.gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestRegenerateFromPreviewReturnsToPreviewOnFailure(t *testing.T) {
	h := newHarness(t, nil, flow.Config{})
	h.gen.On("Generate", mock.Anything, mock.Anything).Return(bakeryTemplate("t1"), nil).Once()
	h.gen.On("Generate", mock.Anything, mock.Anything).
		Return(nil, apperr.Generation("Failed to generate website template. Please try again.", nil)).Once()

	require.NoError(t, h.ctrl.Submit(context.Background(), bakery))
	assert.Error(t, h.ctrl.Regenerate(context.Background()))

	snap := h.ctrl.Snapshot()
	assert.Equal(t, flow.ViewPreview, snap.View)
	require.NotNil(t, snap.Template)
	assert.Equal(t, "t1", snap.Template.ID)
	require.NotNil(t, snap.Error)
}

func TestEmptyCartCannotProceedToCheckout(t *testing.T) {
	h := newHarness(t, nil, flow.Config{})
	require.NoError(t, h.ctrl.ViewCart())

	err := h.ctrl.ProceedToCheckout()

	assert.ErrorIs(t, err, flow.ErrEmptyCart)
	assert.ErrorIs(t, err, flow.ErrTransition)
	snap := h.ctrl.Snapshot()
	assert.Equal(t, flow.ViewCart, snap.View)
	require.NotNil(t, snap.Notice)
}

func TestAddToCartRequiresPreview(t *testing.T) {
	h := newHarness(t, nil, flow.Config{})

	assert.ErrorIs(t, h.ctrl.AddToCart(context.Background()), flow.ErrTransition)
	assert.Equal(t, 0, h.ctrl.Cart().Len())
}

func TestAddToCartTwiceIncrementsQuantity(t *testing.T) {
	h := newHarness(t, nil, flow.Config{})
	h.gen.On("Generate", mock.Anything, mock.Anything).Return(bakeryTemplate("t1"), nil).Once()
	require.NoError(t, h.ctrl.Submit(context.Background(), bakery))

	require.NoError(t, h.ctrl.AddToCart(context.Background()))
	require.NoError(t, h.ctrl.GoBack())
	assert.Equal(t, flow.ViewPreview, h.ctrl.View())
	require.NoError(t, h.ctrl.AddToCart(context.Background()))

	snap := h.ctrl.Snapshot()
	require.Len(t, snap.Cart.Items, 1)
	assert.Equal(t, 2, snap.Cart.Items[0].Quantity)
	assert.Equal(t, "99.98", snap.Cart.Total)
	assert.Equal(t, 2, snap.Cart.Count)
}

func TestAddServiceUsesConfiguredPrice(t *testing.T) {
	h := newHarness(t, nil, flow.Config{Services: []flow.Service{
		{ID: "hosting", Name: "Hosting (1 year)", Price: decimal.RequireFromString("120")},
	}})

	require.NoError(t, h.ctrl.AddService(context.Background(), "hosting"))
	err := h.ctrl.AddService(context.Background(), "unknown")

	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	snap := h.ctrl.Snapshot()
	require.Len(t, snap.Cart.Items, 1)
	assert.Equal(t, "120.00", snap.Cart.Total)
}

func TestGoBackFromCheckoutReturnsToCart(t *testing.T) {
	h := newHarness(t, nil, flow.Config{})
	h.toCheckout(t, "t1")

	require.NoError(t, h.ctrl.GoBack())
	assert.Equal(t, flow.ViewCart, h.ctrl.View())
	require.NoError(t, h.ctrl.GoBack())
	assert.Equal(t, flow.ViewPreview, h.ctrl.View())
	assert.ErrorIs(t, h.ctrl.GoBack(), flow.ErrTransition)
}

func TestCheckoutRejectsInvalidEmail(t *testing.T) {
	gw := &mocks.Gateway{}
	h := newHarness(t, gw, flow.Config{})
	h.toCheckout(t, "t1")

	err := h.ctrl.Checkout(context.Background(), "Ada", "ada.example.com")

	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	snap := h.ctrl.Snapshot()
	assert.Equal(t, flow.ViewCheckout, snap.View)
	require.NotNil(t, snap.Notice)
	assert.Equal(t, 1, snap.Cart.Count)
	gw.AssertNotCalled(t, "CreateSession", mock.Anything, mock.Anything)
}

func TestCheckoutCompletesAndClearsCart(t *testing.T) {
	dir := t.TempDir()
	h := newHarness(t, nil, flow.Config{ExportDir: dir})
	h.toCheckout(t, "t1")

	require.NoError(t, h.ctrl.Checkout(context.Background(), "Ada", "ada@example.com"))

	snap := h.ctrl.Snapshot()
	assert.Equal(t, flow.ViewDownload, snap.View)
	assert.Empty(t, snap.Cart.Items)
	assert.Equal(t, "0.00", snap.Cart.Total)
	assert.JSONEq(t, `[]`, string(h.store.Raw()))
	require.Len(t, snap.Purchased, 1)
	assert.Equal(t, "t1", snap.Purchased[0].ID)

	_, ok := h.ctrl.Purchased("t1")
	assert.True(t, ok)

	recorded := h.recorder.Orders()
	require.Len(t, recorded, 1)
	assert.Equal(t, "ada@example.com", recorded[0].CustomerEmail)
	assert.Equal(t, "49.99", recorded[0].Total.StringFixed(2))
	assert.Equal(t, "simulated", recorded[0].Gateway)

	assert.DirExists(t, dir+"/t1")
}

func TestCheckoutFailureKeepsCart(t *testing.T) {
	gw := &mocks.Gateway{}
	gw.On("CreateSession", mock.Anything, mock.Anything).
		Return(nil, apperr.Checkout("Could not proceed to payment: card declined", nil)).Once()
	h := newHarness(t, gw, flow.Config{})
	h.toCheckout(t, "t1")

	err := h.ctrl.Checkout(context.Background(), "Ada", "ada@example.com")

	assert.Equal(t, apperr.KindCheckout, apperr.KindOf(err))
	snap := h.ctrl.Snapshot()
	assert.Equal(t, flow.ViewCheckout, snap.View)
	require.NotNil(t, snap.Notice)
	assert.Contains(t, snap.Notice.Message, "card declined")
	assert.Equal(t, 1, snap.Cart.Count)
	assert.Empty(t, h.recorder.Orders())
}

func TestCheckoutUnexpectedErrorBecomesCheckoutKind(t *testing.T) {
	gw := &mocks.Gateway{}
	gw.On("CreateSession", mock.Anything, mock.Anything).Return(nil, errors.New("boom")).Once()
	h := newHarness(t, gw, flow.Config{})
	h.toCheckout(t, "t1")

	err := h.ctrl.Checkout(context.Background(), "Ada", "ada@example.com")

	assert.Equal(t, apperr.KindCheckout, apperr.KindOf(err))
}

func TestHostedCheckoutCompletesOnReturn(t *testing.T) {
	gw := &mocks.ConfirmingGateway{}
	gw.On("CreateSession", mock.Anything, mock.MatchedBy(func(req payment.Request) bool {
		return len(req.Items) == 1 && req.Items[0].UnitAmount == 4999 && req.Customer.Email == "ada@example.com"
	})).Return(&payment.Result{SessionID: "cs_1", RedirectURL: "https://pay.example/cs_1"}, nil).Once()
	gw.On("ConfirmSession", mock.Anything, "cs_1").Return(nil).Once()
	h := newHarness(t, gw, flow.Config{})
	h.toCheckout(t, "t1")

	require.NoError(t, h.ctrl.Checkout(context.Background(), "Ada", "ada@example.com"))

	snap := h.ctrl.Snapshot()
	assert.Equal(t, flow.ViewCheckout, snap.View)
	require.NotNil(t, snap.Payment)
	assert.Equal(t, "https://pay.example/cs_1", snap.Payment.RedirectURL)
	assert.Equal(t, 1, snap.Cart.Count)

	err := h.ctrl.CompletePurchase(context.Background(), "cs_other")
	assert.Equal(t, apperr.KindCheckout, apperr.KindOf(err))

	require.NoError(t, h.ctrl.CompletePurchase(context.Background(), "cs_1"))
	snap = h.ctrl.Snapshot()
	assert.Equal(t, flow.ViewDownload, snap.View)
	assert.Empty(t, snap.Cart.Items)
	assert.Nil(t, snap.Payment)
	gw.AssertExpectations(t)
}

func TestHostedCheckoutRequiresConfirmingGateway(t *testing.T) {
	gw := &mocks.Gateway{}
	gw.On("CreateSession", mock.Anything, mock.Anything).
		Return(&payment.Result{RedirectURL: "https://pay.example/x"}, nil).Once()
	h := newHarness(t, gw, flow.Config{})
	h.toCheckout(t, "t1")

	err := h.ctrl.Checkout(context.Background(), "Ada", "ada@example.com")
	assert.Equal(t, apperr.KindCheckout, apperr.KindOf(err))

	assert.ErrorIs(t, h.ctrl.CompletePurchase(context.Background(), "anything-forged"), flow.ErrTransition)
	snap := h.ctrl.Snapshot()
	assert.Equal(t, flow.ViewCheckout, snap.View)
	assert.Nil(t, snap.Payment)
	assert.Empty(t, snap.Purchased)
	assert.Equal(t, 1, snap.Cart.Count)
	assert.Empty(t, h.recorder.Orders())
}

func TestBackendCheckoutIsVerifiedOnReturn(t *testing.T) {
	var paid atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/create-checkout-session":
			_, _ = w.Write([]byte(`{"id":"cs_1","url":"https://pay.example/cs_1"}`))
		case r.URL.Path == "/checkout-session/cs_1" && paid.Load():
			_, _ = w.Write([]byte(`{"id":"cs_1","paymentStatus":"paid"}`))
		case r.URL.Path == "/checkout-session/cs_1":
			_, _ = w.Write([]byte(`{"id":"cs_1","paymentStatus":"unpaid"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()
	h := newHarness(t, payment.NewBackendGateway(srv.URL, "", 5*time.Second, zap.NewNop()), flow.Config{})
	h.toCheckout(t, "t1")
	ctx := context.Background()

	require.NoError(t, h.ctrl.Checkout(ctx, "Ada", "ada@example.com"))

	assert.Equal(t, apperr.KindCheckout, apperr.KindOf(h.ctrl.CompletePurchase(ctx, "anything-forged")))
	assert.Equal(t, apperr.KindCheckout, apperr.KindOf(h.ctrl.CompletePurchase(ctx, "")))
	assert.Equal(t, apperr.KindCheckout, apperr.KindOf(h.ctrl.CompletePurchase(ctx, "cs_1")))
	snap := h.ctrl.Snapshot()
	assert.Equal(t, flow.ViewCheckout, snap.View)
	assert.Empty(t, snap.Purchased)
	assert.Equal(t, 1, snap.Cart.Count)

	paid.Store(true)
	require.NoError(t, h.ctrl.CompletePurchase(ctx, "cs_1"))
	snap = h.ctrl.Snapshot()
	assert.Equal(t, flow.ViewDownload, snap.View)
	assert.Empty(t, snap.Cart.Items)
	require.Len(t, h.recorder.Orders(), 1)
	assert.Equal(t, "cs_1", h.recorder.Orders()[0].PaymentRef)
}

// cancelAwareStore fails saves on a cancelled context, like a network store.
type cancelAwareStore struct {
	*cart.MemoryStore
}

func (s cancelAwareStore) Save(ctx context.Context, items []cart.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.MemoryStore.Save(ctx, items)
}

func TestPurchaseBookkeepingSurvivesClientDisconnect(t *testing.T) {
	store := cancelAwareStore{cart.NewMemoryStore()}
	engine, err := cart.NewEngine(context.Background(), store, zap.NewNop())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw := &mocks.Gateway{}
	gw.On("CreateSession", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(&payment.Result{Completed: true, Reference: "ref-1"}, nil).Once()
	gen := &mocks.Generator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return(bakeryTemplate("t1"), nil).Once()
	recorder := orders.NewMemoryRecorder()
	ctrl := flow.NewController("sess-1", flow.Config{TemplatePrice: decimal.RequireFromString("49.99"), Currency: "usd"}, flow.Deps{
		Generator: gen,
		Gateway:   gw,
		Recorder:  recorder,
		Cart:      engine,
		Logger:    zap.NewNop(),
	})
	require.NoError(t, ctrl.Submit(ctx, bakery))
	require.NoError(t, ctrl.AddToCart(ctx))
	require.NoError(t, ctrl.ProceedToCheckout())

	require.NoError(t, ctrl.Checkout(ctx, "Ada", "ada@example.com"))

	assert.Equal(t, flow.ViewDownload, ctrl.View())
	assert.JSONEq(t, `[]`, string(store.Raw()))
	assert.Len(t, recorder.Orders(), 1)
}

func TestCompletePurchaseWithoutPaymentIsRejected(t *testing.T) {
	h := newHarness(t, nil, flow.Config{})

	assert.ErrorIs(t, h.ctrl.CompletePurchase(context.Background(), "cs_1"), flow.ErrTransition)
}

func TestStartOverKeepsCartByDefault(t *testing.T) {
	h := newHarness(t, nil, flow.Config{})
	h.toCheckout(t, "t1")

	require.NoError(t, h.ctrl.StartOver(context.Background()))

	snap := h.ctrl.Snapshot()
	assert.Equal(t, flow.ViewForm, snap.View)
	assert.Equal(t, 1, snap.Cart.Count)
}

func TestStartOverCanClearCart(t *testing.T) {
	h := newHarness(t, nil, flow.Config{ClearCartOnStartOver: true})
	h.toCheckout(t, "t1")

	require.NoError(t, h.ctrl.StartOver(context.Background()))

	assert.Equal(t, 0, h.ctrl.Cart().Len())
}

func memoryFactory(stores *cart.MemoryStores, gen *mocks.Generator, created *int) flow.Factory {
	return func(ctx context.Context, id string) (*flow.Controller, error) {
		*created++
		engine, err := cart.NewEngine(ctx, stores.Store(id), zap.NewNop())
		if err != nil {
			return nil, err
		}
		return flow.NewController(id, flow.Config{TemplatePrice: decimal.RequireFromString("49.99")}, flow.Deps{
			Generator: gen,
			Gateway:   payment.NewSimulatedGateway(0, zap.NewNop()),
			Cart:      engine,
			Logger:    zap.NewNop(),
		}), nil
	}
}

func TestSessionsCreateOnceAndEvictIdle(t *testing.T) {
	created := 0
	stores := cart.NewMemoryStores()
	sessions := flow.NewSessions(memoryFactory(stores, &mocks.Generator{}, &created), time.Minute, zap.NewNop(),
		flow.WithEvictHook(stores.Forget))

	a, err := sessions.Get(context.Background(), "a")
	require.NoError(t, err)
	again, err := sessions.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Same(t, a, again)
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, stores.Len())

	assert.Equal(t, 0, sessions.Sweep(time.Now()))
	assert.Equal(t, 1, sessions.Sweep(time.Now().Add(2*time.Minute)))
	assert.Equal(t, 0, sessions.Len())
	assert.Equal(t, 0, stores.Len())
}

func TestSessionsEvictLeastRecentlyUsedAtCapacity(t *testing.T) {
	created := 0
	stores := cart.NewMemoryStores()
	var evicted []string
	sessions := flow.NewSessions(memoryFactory(stores, &mocks.Generator{}, &created), time.Hour, zap.NewNop(),
		flow.WithMaxSessions(2),
		flow.WithEvictHook(func(id string) {
			evicted = append(evicted, id)
			stores.Forget(id)
		}))
	ctx := context.Background()

	a, err := sessions.Get(ctx, "a")
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	_, err = sessions.Get(ctx, "b")
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	require.NoError(t, a.ViewCart())

	for i := 0; i < 50; i++ {
		_, err := sessions.Get(ctx, fmt.Sprintf("anon-%d", i))
		require.NoError(t, err)
	}

	assert.Equal(t, 2, sessions.Len())
	assert.Equal(t, 2, stores.Len())
	require.NotEmpty(t, evicted)
	assert.Equal(t, []string{"b", "a"}, evicted[:2])
}

func TestSessionsLimitWhenAllBusy(t *testing.T) {
	created := 0
	gen := &mocks.Generator{}
	release := make(chan struct{})
	started := make(chan struct{})
	gen.On("Generate", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(bakeryTemplate("t1"), nil).Once()
	sessions := flow.NewSessions(memoryFactory(cart.NewMemoryStores(), gen, &created), time.Hour, zap.NewNop(),
		flow.WithMaxSessions(1))
	ctx := context.Background()

	a, err := sessions.Get(ctx, "a")
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- a.Submit(ctx, bakery) }()
	<-started

	_, err = sessions.Get(ctx, "b")
	assert.ErrorIs(t, err, flow.ErrSessionLimit)

	close(release)
	require.NoError(t, <-done)
	_, err = sessions.Get(ctx, "b")
	assert.NoError(t, err)
	assert.Equal(t, 1, sessions.Len())
}
