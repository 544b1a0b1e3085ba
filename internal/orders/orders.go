package orders

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"template_shop_server/internal/cart"
)

// Order is a confirmed purchase.
type Order struct {
	ID            string
	SessionID     string
	CustomerName  string
	CustomerEmail string
	Items         []cart.Item
	Total         decimal.Decimal
	Gateway       string
	PaymentRef    string
	CreatedAt     time.Time
}

// Recorder keeps the purchase ledger.
type Recorder interface {
	Record(ctx context.Context, o Order) error
}

var _ Recorder = (*MemoryRecorder)(nil)

type MemoryRecorder struct {
	mu     sync.Mutex
	orders []Order
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

func (r *MemoryRecorder) Record(_ context.Context, o Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = append(r.orders, o)
	return nil
}

// Orders returns the recorded orders, oldest first.
func (r *MemoryRecorder) Orders() []Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Order(nil), r.orders...)
}
