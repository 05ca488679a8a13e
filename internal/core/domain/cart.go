package domain

import (
	"slices"

	"github.com/shopspring/decimal"
)

// A LineItem is a product snapshot plus the requested quantity.
type LineItem struct {
	Product
	Quantity int
}

// Subtotal returns price * quantity.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Purchasable reports whether the line can go to checkout.
// A line added while the product had no stock carries quantity 0.
func (li LineItem) Purchasable() bool {
	return li.Quantity > 0
}

// A Cart is an ordered set of line items keyed by product id.
//
// Cart values are immutable: every operation returns a new Cart and
// never touches the receiver's backing array.
type Cart struct {
	items []LineItem
}

// NewCart builds a cart from restored items. Items are taken as is.
func NewCart(items []LineItem) Cart {
	return Cart{items: slices.Clone(items)}
}

// Items returns a copy of the line items in insertion order.
func (c Cart) Items() []LineItem {
	return slices.Clone(c.items)
}

// Len returns the number of distinct line items.
func (c Cart) Len() int {
	return len(c.items)
}

// Lookup returns the line item for the product id.
func (c Cart) Lookup(productID string) (LineItem, bool) {
	i := c.index(productID)
	if i < 0 {
		return LineItem{}, false
	}
	return c.items[i], true
}

// Add merges quantity of p into the cart.
//
// A quantity below 1 is treated as 1. An existing line grows to
// min(existing+quantity, p.Stock) and keeps its first snapshot;
// a new line is appended with min(quantity, p.Stock).
func (c Cart) Add(p Product, quantity int) Cart {
	quantity = max(quantity, 1)
	stock := p.availableStock()

	items := slices.Clone(c.items)
	if i := c.index(p.ID); i >= 0 {
		items[i].Quantity = min(items[i].Quantity+quantity, stock)
		return Cart{items: items}
	}

	items = append(items, LineItem{Product: p, Quantity: min(quantity, stock)})
	return Cart{items: items}
}

// Remove drops the line for productID if present.
func (c Cart) Remove(productID string) Cart {
	return Cart{items: slices.DeleteFunc(slices.Clone(c.items),
		func(li LineItem) bool { return li.ID == productID },
	)}
}

// UpdateQuantity clamps quantity into [0, item.Stock] and replaces the
// line's quantity, removing the line when the result is 0.
//
// ok is false when no line exists for productID; the cart is unchanged.
func (c Cart) UpdateQuantity(productID string, quantity int) (_ Cart, ok bool) {
	i := c.index(productID)
	if i < 0 {
		return c, false
	}

	quantity = min(max(quantity, 0), c.items[i].availableStock())
	if quantity == 0 {
		return c.Remove(productID), true
	}

	items := slices.Clone(c.items)
	items[i].Quantity = quantity
	return Cart{items: items}, true
}

// Total returns the sum of price * quantity over all lines.
func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, li := range c.items {
		total = total.Add(li.Subtotal())
	}
	return total
}

// ItemCount returns the total units in the cart.
func (c Cart) ItemCount() int {
	var n int
	for _, li := range c.items {
		n += li.Quantity
	}
	return n
}

// Purchasable reports whether at least one line can go to checkout.
func (c Cart) Purchasable() bool {
	return slices.ContainsFunc(c.items, LineItem.Purchasable)
}

func (c Cart) index(productID string) int {
	return slices.IndexFunc(c.items, func(li LineItem) bool {
		return li.ID == productID
	})
}
