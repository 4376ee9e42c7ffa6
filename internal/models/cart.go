package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Cart struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

type CartItem struct {
	ID        int64 `json:"id"`
	CartID    int64 `json:"cart_id"`
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// CartLine is a cart item resolved against the catalog. Product is nil when
// the referenced product no longer exists.
type CartLine struct {
	Product   *Product        `json:"product"`
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type CartView struct {
	CartID int64           `json:"cart_id,omitempty"`
	Items  []CartLine      `json:"items"`
	Total  decimal.Decimal `json:"total"`
}

type Receipt struct {
	Items       []CartLine      `json:"items"`
	Total       decimal.Decimal `json:"total"`
	PurchasedAt time.Time       `json:"purchased_at"`
}

// Subtotal is price times quantity in exact decimal arithmetic. A missing
// product contributes zero.
func Subtotal(p *Product, quantity int) decimal.Decimal {
	if p == nil {
		return decimal.Zero
	}
	return p.Price.Mul(decimal.NewFromInt(int64(quantity)))
}

func NewCartLine(item CartItem, p *Product) CartLine {
	return CartLine{
		Product:   p,
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
		Subtotal:  Subtotal(p, item.Quantity),
	}
}

// Total sums line subtotals. It is recomputed on every call.
func Total(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal)
	}
	return total
}

func NewCartView(cartID int64, lines []CartLine) CartView {
	if lines == nil {
		lines = []CartLine{}
	}
	return CartView{CartID: cartID, Items: lines, Total: Total(lines)}
}
