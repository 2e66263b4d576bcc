package cart

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/hanko-field/storefront/internal/domain"
)

var errCorruptSnapshot = errors.New("cart: corrupt snapshot")

type snapshotLine struct {
	ID          int             `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	Image       string          `json:"image"`
	Quantity    int             `json:"quantity"`
}

func encodeSnapshot(items []domain.CartLineItem) ([]byte, error) {
	lines := make([]snapshotLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, snapshotLine{
			ID:          item.ID,
			Name:        item.Name,
			Price:       item.Price,
			Description: item.Description,
			Image:       item.Image,
			Quantity:    item.Quantity,
		})
	}
	return json.Marshal(lines)
}

func decodeSnapshot(data []byte) ([]domain.CartLineItem, error) {
	var lines []snapshotLine
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, fmt.Errorf("%w: %v", errCorruptSnapshot, err)
	}
	seen := make(map[int]struct{}, len(lines))
	items := make([]domain.CartLineItem, 0, len(lines))
	for _, line := range lines {
		if line.Quantity < 1 || line.Price.IsNegative() {
			return nil, fmt.Errorf("%w: line %d has quantity %d price %s", errCorruptSnapshot, line.ID, line.Quantity, line.Price)
		}
		if _, dup := seen[line.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate line %d", errCorruptSnapshot, line.ID)
		}
		seen[line.ID] = struct{}{}
		items = append(items, domain.CartLineItem{
			Product: domain.Product{
				ID:          line.ID,
				Name:        line.Name,
				Price:       line.Price,
				Description: line.Description,
				Image:       line.Image,
			},
			Quantity: line.Quantity,
		})
	}
	return items, nil
}
