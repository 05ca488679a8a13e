package httphandler

import (
	"github.com/niksmo/darkstore/internal/core/domain"
	"github.com/shopspring/decimal"
)

// Money is written as a JSON string with two decimals ("12.50") and read
// from either a string or a number.
type Money struct {
	decimal.Decimal
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.StringFixed(2) + `"`), nil
}

type (
	Product struct {
		ID              string `json:"id"`
		Name            string `json:"name"`
		Brand           string `json:"brand"`
		Category        string `json:"category"`
		Price           Money  `json:"price"`
		OriginalPrice   *Money `json:"original_price,omitempty"`
		DiscountPercent int    `json:"discount_percent,omitempty"`
		Stock           int    `json:"stock"`
		ImageURL        string `json:"image_url"`
	}

	LineItem struct {
		Product
		Quantity int   `json:"quantity"`
		Subtotal Money `json:"subtotal"`
	}

	Summary struct {
		Subtotal     Money `json:"subtotal"`
		Shipping     Money `json:"shipping"`
		Savings      Money `json:"savings"`
		Total        Money `json:"total"`
		ItemCount    int   `json:"item_count"`
		FreeShipping bool  `json:"free_shipping"`
	}

	Cart struct {
		Items     []LineItem `json:"items"`
		Total     Money      `json:"total"`
		ItemCount int        `json:"item_count"`
		Summary   Summary    `json:"summary"`
	}
)

type (
	AddItemRequest struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	}

	UpdateItemRequest struct {
		Quantity *int `json:"quantity"`
	}
)

func productToDomain(p Product) domain.Product {
	dp := domain.Product{
		ID:       p.ID,
		Name:     p.Name,
		Brand:    p.Brand,
		Category: p.Category,
		Price:    p.Price.Decimal,
		Stock:    p.Stock,
		ImageURL: p.ImageURL,
	}
	if p.OriginalPrice != nil {
		dp.OriginalPrice = decimal.NewNullDecimal(p.OriginalPrice.Decimal)
	}
	return dp
}

func productFromDomain(p domain.Product) Product {
	v := Product{
		ID:              p.ID,
		Name:            p.Name,
		Brand:           p.Brand,
		Category:        p.Category,
		Price:           money(p.Price),
		DiscountPercent: p.DiscountPercent(),
		Stock:           p.Stock,
		ImageURL:        p.ImageURL,
	}
	if p.OriginalPrice.Valid {
		orig := money(p.OriginalPrice.Decimal)
		v.OriginalPrice = &orig
	}
	return v
}

func summaryFromDomain(s domain.Summary) Summary {
	return Summary{
		Subtotal:     money(s.Subtotal),
		Shipping:     money(s.Shipping),
		Savings:      money(s.Savings),
		Total:        money(s.Total),
		ItemCount:    s.ItemCount,
		FreeShipping: s.FreeShipping(),
	}
}

func cartFromDomain(snap domain.Snapshot, summary domain.Summary) Cart {
	items := make([]LineItem, len(snap.Items))
	for i, li := range snap.Items {
		items[i] = LineItem{
			Product:  productFromDomain(li.Product),
			Quantity: li.Quantity,
			Subtotal: money(li.Subtotal()),
		}
	}
	return Cart{
		Items:     items,
		Total:     money(snap.Total),
		ItemCount: snap.ItemCount,
		Summary:   summaryFromDomain(summary),
	}
}

func money(d decimal.Decimal) Money {
	return Money{d}
}
