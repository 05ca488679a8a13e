package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

var ErrProductNotFound = errors.New("product not found")

// A Product is a catalog entry as the cart sees it at the moment of
// reference. The cart never mutates it.
type Product struct {
	ID            string
	Name          string
	Brand         string
	Category      string
	Price         decimal.Decimal
	OriginalPrice decimal.NullDecimal
	Stock         int
	ImageURL      string
}

var hundred = decimal.NewFromInt(100)

// PriceScale is the number of decimal places a price may carry.
const PriceScale = 2

// MaxPrice is the exclusive price ceiling. Together with [PriceScale] it
// keeps a price within 14 significant digits, which round-trips exactly
// through a float64 record field.
var MaxPrice = decimal.New(1, 12)

// ValidPrice reports whether d is a non-negative price in whole cents
// below [MaxPrice].
func ValidPrice(d decimal.Decimal) bool {
	return !d.IsNegative() &&
		d.LessThan(MaxPrice) &&
		d.Equal(d.Truncate(PriceScale))
}

// HasDiscount reports whether the original price is set and above the price.
func (p Product) HasDiscount() bool {
	return p.OriginalPrice.Valid && p.OriginalPrice.Decimal.GreaterThan(p.Price)
}

// DiscountPercent returns the rounded discount in whole percent,
// or 0 when the product is not discounted.
func (p Product) DiscountPercent() int {
	if !p.HasDiscount() || p.OriginalPrice.Decimal.IsZero() {
		return 0
	}
	orig := p.OriginalPrice.Decimal
	return int(orig.Sub(p.Price).Div(orig).Mul(hundred).Round(0).IntPart())
}

func (p Product) availableStock() int {
	return max(p.Stock, 0)
}
