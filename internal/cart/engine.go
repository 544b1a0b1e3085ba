package cart

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"template_shop_server/internal/metrics"
)

// ErrStore wraps any failure to persist a mutation.
var ErrStore = errors.New("cart store failure")

// Engine owns one cart. Each mutation is applied to a copy, written through
// the Store, and only then made visible, so memory and storage never diverge.
type Engine struct {
	mu     sync.Mutex
	items  []Item
	store  Store
	logger *zap.Logger
}

// NewEngine loads the persisted cart once. A corrupt payload yields an empty
// cart; any other load failure is returned.
func NewEngine(ctx context.Context, store Store, logger *zap.Logger) (*Engine, error) {
	e := &Engine{store: store, logger: logger.Named("CartEngine")}

	items, err := store.Load(ctx)
	switch {
	case errors.Is(err, ErrCorrupt):
		e.logger.Warn("Persisted cart unreadable, starting empty", zap.Error(err))
	case err != nil:
		return nil, fmt.Errorf("load cart: %w", err)
	default:
		e.items = items
	}
	return e, nil
}

// AddItem increments the quantity of an existing line with the same ID, or
// appends the item with quantity 1. The stored name and price win over the
// incoming ones for an existing line.
func (e *Engine) AddItem(ctx context.Context, item Item) error {
	return e.mutate(ctx, "add", func(items []Item) []Item {
		for i := range items {
			if items[i].ID == item.ID {
				items[i].Quantity++
				return items
			}
		}
		item.Quantity = 1
		return append(items, item)
	})
}

// RemoveItem deletes the line at index. Out-of-range indexes are a no-op.
func (e *Engine) RemoveItem(ctx context.Context, index int) error {
	return e.mutate(ctx, "remove", func(items []Item) []Item {
		if index < 0 || index >= len(items) {
			return nil
		}
		return slices.Delete(items, index, index+1)
	})
}

// ChangeQuantity adds delta to the line at index. A result below 1 removes
// the line. Out-of-range indexes and a zero delta are no-ops.
func (e *Engine) ChangeQuantity(ctx context.Context, index, delta int) error {
	return e.mutate(ctx, "quantity", func(items []Item) []Item {
		if index < 0 || index >= len(items) || delta == 0 {
			return nil
		}
		if q := items[index].Quantity + delta; q >= 1 {
			items[index].Quantity = q
			return items
		}
		return slices.Delete(items, index, index+1)
	})
}

// Clear empties the cart.
func (e *Engine) Clear(ctx context.Context) error {
	return e.mutate(ctx, "clear", func(items []Item) []Item {
		return items[:0]
	})
}

// Items returns a copy of the lines in display order.
func (e *Engine) Items() []Item {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.items)
}

// Total is the unrounded sum of every line's subtotal.
func (e *Engine) Total() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return total(e.items)
}

// Count is the sum of quantities, as shown on the cart badge.
func (e *Engine) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, it := range e.items {
		n += it.Quantity
	}
	return n
}

func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.items)
}

// mutate runs fn on a private copy. fn returns nil to signal "nothing
// changed", which skips the write.
func (e *Engine) mutate(ctx context.Context, op string, fn func([]Item) []Item) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := fn(slices.Clone(e.items))
	if next == nil {
		metrics.CartMutations.WithLabelValues(op, "noop").Inc()
		return nil
	}
	if err := e.store.Save(ctx, next); err != nil {
		metrics.CartMutations.WithLabelValues(op, "error").Inc()
		e.logger.Error("Failed to persist cart", zap.String("op", op), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	e.items = next
	metrics.CartMutations.WithLabelValues(op, "ok").Inc()
	return nil
}

func total(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.Subtotal())
	}
	return sum
}
