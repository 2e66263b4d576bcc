package cart

import (
	"github.com/shopspring/decimal"

	"github.com/hanko-field/storefront/internal/domain"
)

// addLine returns a new item list with one more unit of product. Existing lines keep their position.
func addLine(items []domain.CartLineItem, product domain.Product) []domain.CartLineItem {
	out := make([]domain.CartLineItem, len(items), len(items)+1)
	copy(out, items)
	for i := range out {
		if out[i].ID == product.ID {
			out[i].Quantity++
			return out
		}
	}
	return append(out, domain.CartLineItem{Product: product, Quantity: 1})
}

// removeLine returns the list without the line for id and whether such a line existed.
func removeLine(items []domain.CartLineItem, id int) ([]domain.CartLineItem, domain.CartLineItem, bool) {
	out := make([]domain.CartLineItem, 0, len(items))
	var removed domain.CartLineItem
	found := false
	for _, item := range items {
		if item.ID == id {
			removed = item
			found = true
			continue
		}
		out = append(out, item)
	}
	if !found {
		return items, domain.CartLineItem{}, false
	}
	return out, removed, true
}

func sumTotal(items []domain.CartLineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}
