package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

var (
	FreeShippingThreshold = decimal.RequireFromString("199.00")
	FlatShippingCost      = decimal.RequireFromString("25.00")
)

// A Snapshot is the derived state published after every mutation.
type Snapshot struct {
	Items     []LineItem
	Total     decimal.Decimal
	ItemCount int
}

// SnapshotOf derives a Snapshot from the cart.
func SnapshotOf(c Cart) Snapshot {
	return Snapshot{
		Items:     c.Items(),
		Total:     c.Total(),
		ItemCount: c.ItemCount(),
	}
}

// A Summary is the checkout view of a cart.
type Summary struct {
	Subtotal  decimal.Decimal
	Shipping  decimal.Decimal
	Savings   decimal.Decimal
	Total     decimal.Decimal
	ItemCount int
}

// FreeShipping reports whether no shipping is charged.
func (s Summary) FreeShipping() bool {
	return s.Shipping.IsZero()
}

// SummaryOf computes shipping and savings for the cart.
//
// Shipping is free for an empty subtotal and for subtotals above
// [FreeShippingThreshold]; otherwise [FlatShippingCost] is charged.
func SummaryOf(c Cart) Summary {
	subtotal := c.Total()

	shipping := FlatShippingCost
	if subtotal.IsZero() || subtotal.GreaterThan(FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	savings := decimal.Zero
	for _, li := range c.items {
		if !li.HasDiscount() {
			continue
		}
		diff := li.OriginalPrice.Decimal.Sub(li.Price)
		savings = savings.Add(diff.Mul(decimal.NewFromInt(int64(li.Quantity))))
	}

	return Summary{
		Subtotal:  subtotal,
		Shipping:  shipping,
		Savings:   savings,
		Total:     subtotal.Add(shipping),
		ItemCount: c.ItemCount(),
	}
}

type PersistenceOp string

const (
	OpLoad   PersistenceOp = "load"
	OpSave   PersistenceOp = "save"
	OpDecode PersistenceOp = "decode"
)

// A PersistenceFailure describes a storage error that was recovered
// locally and never surfaced to the caller of a cart operation.
type PersistenceFailure struct {
	Op  PersistenceOp
	Key string
	Err error
	At  time.Time
}
