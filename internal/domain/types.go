package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Product is an immutable catalog entry.
type Product struct {
	ID          int
	Name        string
	Price       decimal.Decimal
	Description string
	Image       string
}

// CartLineItem is a product in the cart with its quantity. A cart holds at most one line per product id.
type CartLineItem struct {
	Product
	Quantity int
}

// Subtotal returns price × quantity for the line.
func (l CartLineItem) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Field names a checkout form input.
type Field string

const (
	FieldName    Field = "name"
	FieldPhone   Field = "phone"
	FieldAddress Field = "address"
	FieldCity    Field = "city"
	FieldZip     Field = "zip"
	FieldState   Field = "state"
)

// Fields lists the checkout inputs in display order.
var Fields = []Field{FieldName, FieldPhone, FieldAddress, FieldCity, FieldZip, FieldState}

// ParseField maps user input onto a known field.
func ParseField(value string) (Field, bool) {
	candidate := Field(strings.ToLower(strings.TrimSpace(value)))
	for _, f := range Fields {
		if f == candidate {
			return f, true
		}
	}
	return "", false
}

// CheckoutForm holds the shipping details entered during checkout.
type CheckoutForm struct {
	Name    string
	Phone   string
	Address string
	City    string
	Zip     string
	State   string
}

// Get returns the current value of field.
func (f CheckoutForm) Get(field Field) string {
	switch field {
	case FieldName:
		return f.Name
	case FieldPhone:
		return f.Phone
	case FieldAddress:
		return f.Address
	case FieldCity:
		return f.City
	case FieldZip:
		return f.Zip
	case FieldState:
		return f.State
	}
	return ""
}

// With returns a copy of the form with field set to value.
func (f CheckoutForm) With(field Field, value string) CheckoutForm {
	switch field {
	case FieldName:
		f.Name = value
	case FieldPhone:
		f.Phone = value
	case FieldAddress:
		f.Address = value
	case FieldCity:
		f.City = value
	case FieldZip:
		f.Zip = value
	case FieldState:
		f.State = value
	}
	return f
}

// FieldErrors maps a field to its validation message.
type FieldErrors map[Field]string

// Clone returns an independent copy.
func (e FieldErrors) Clone() FieldErrors {
	out := make(FieldErrors, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// OrderRecord is the snapshot taken when a demo order is confirmed. It is never persisted.
type OrderRecord struct {
	OrderID     string
	Form        CheckoutForm
	Items       []CartLineItem
	Total       decimal.Decimal
	ConfirmedAt time.Time
}

// TotalQuantity sums the quantities of the ordered lines.
func (o OrderRecord) TotalQuantity() int {
	return TotalQuantity(o.Items)
}

// TotalQuantity sums line quantities.
func TotalQuantity(items []CartLineItem) int {
	n := 0
	for _, item := range items {
		n += item.Quantity
	}
	return n
}
