package cart

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// StorageKey is the well-known key the cart is persisted under.
const StorageKey = "shoppingCart"

// ErrCorrupt is returned by Decode (and stores) when persisted data cannot be
// read back as a cart.
var ErrCorrupt = errors.New("persisted cart is corrupt")

// Item is one cart line. ID is the identity key; a cart holds at most one
// Item per ID and never an Item with Quantity below 1.
type Item struct {
	ID        string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

// Subtotal is UnitPrice * Quantity, unrounded.
func (i Item) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// record is the persisted layout: {id, name, price, quantity} with price as a
// plain JSON number.
type record struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Price    json.Number `json:"price"`
	Quantity int         `json:"quantity"`
}

func (i Item) MarshalJSON() ([]byte, error) {
	return json.Marshal(record{
		ID:       i.ID,
		Name:     i.Name,
		Price:    json.Number(i.UnitPrice.String()),
		Quantity: i.Quantity,
	})
}

func (i *Item) UnmarshalJSON(data []byte) error {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	price, err := decimal.NewFromString(r.Price.String())
	if err != nil {
		return fmt.Errorf("price %q: %w", r.Price, err)
	}
	*i = Item{ID: r.ID, Name: r.Name, UnitPrice: price, Quantity: r.Quantity}
	return nil
}

// Encode serialises items in display order.
func Encode(items []Item) ([]byte, error) {
	if items == nil {
		items = []Item{}
	}
	return json.Marshal(items)
}

// Decode parses a persisted cart. Empty input is an empty cart. Rows that
// break the cart invariants make the whole payload corrupt.
func Decode(data []byte) ([]Item, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	seen := make(map[string]struct{}, len(items))
	for idx, it := range items {
		switch {
		case it.ID == "":
			return nil, fmt.Errorf("%w: row %d has no id", ErrCorrupt, idx)
		case it.Quantity < 1:
			return nil, fmt.Errorf("%w: row %d has quantity %d", ErrCorrupt, idx, it.Quantity)
		case it.UnitPrice.IsNegative():
			return nil, fmt.Errorf("%w: row %d has negative price", ErrCorrupt, idx)
		}
		if _, dup := seen[it.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrCorrupt, it.ID)
		}
		seen[it.ID] = struct{}{}
	}
	return items, nil
}

// FormatPrice renders an amount for display with exactly two decimals.
func FormatPrice(d decimal.Decimal) string {
	return d.StringFixed(2)
}
