// Package catalog holds the immutable product list offered by the storefront.
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"

	"github.com/hanko-field/storefront/internal/domain"
)

var (
	// ErrProductNotFound is returned when no product carries the requested id.
	ErrProductNotFound = errors.New("catalog: product not found")
	// ErrInvalidCatalog wraps every validation failure reported while building a catalog.
	ErrInvalidCatalog = errors.New("catalog: invalid product data")
)

var (
	markdown          = goldmark.New()
	descriptionPolicy = bluemonday.UGCPolicy().RequireNoFollowOnLinks(true)
)

// Catalog is a read-only, ordered list of products.
type Catalog struct {
	products []domain.Product
	index    map[int]int
	html     map[int]string
}

// New validates products and builds a catalog that preserves their order.
func New(products []domain.Product) (*Catalog, error) {
	c := &Catalog{
		products: make([]domain.Product, 0, len(products)),
		index:    make(map[int]int, len(products)),
		html:     make(map[int]string, len(products)),
	}
	for _, p := range products {
		if err := validateProduct(p); err != nil {
			return nil, err
		}
		if _, dup := c.index[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %d", ErrInvalidCatalog, p.ID)
		}
		rendered, err := renderDescription(p.Description)
		if err != nil {
			return nil, fmt.Errorf("%w: product %d description: %v", ErrInvalidCatalog, p.ID, err)
		}
		c.index[p.ID] = len(c.products)
		c.html[p.ID] = rendered
		c.products = append(c.products, p)
	}
	return c, nil
}

// List returns the products in catalog order. The slice is a copy.
func (c *Catalog) List() []domain.Product {
	out := make([]domain.Product, len(c.products))
	copy(out, c.products)
	return out
}

// Get returns the product with the given id.
func (c *Catalog) Get(id int) (domain.Product, error) {
	i, ok := c.index[id]
	if !ok {
		return domain.Product{}, ErrProductNotFound
	}
	return c.products[i], nil
}

// Len reports the number of products.
func (c *Catalog) Len() int { return len(c.products) }

// DescriptionHTML returns the sanitised HTML rendering of the product description.
func (c *Catalog) DescriptionHTML(id int) string {
	return c.html[id]
}

func validateProduct(p domain.Product) error {
	var problems []string
	if p.ID <= 0 {
		problems = append(problems, "id must be positive")
	}
	if strings.TrimSpace(p.Name) == "" {
		problems = append(problems, "name is required")
	}
	if p.Price.IsNegative() {
		problems = append(problems, "price must not be negative")
	}
	if strings.TrimSpace(p.Description) == "" {
		problems = append(problems, "description is required")
	}
	if strings.TrimSpace(p.Image) == "" {
		problems = append(problems, "image is required")
	} else if u, err := url.Parse(p.Image); err != nil || u.Scheme == "" {
		problems = append(problems, "image must be an absolute URI")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: product %d (%q): %s", ErrInvalidCatalog, p.ID, p.Name, strings.Join(problems, ", "))
	}
	return nil
}

func renderDescription(source string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(source), &buf); err != nil {
		return "", err
	}
	return strings.TrimSpace(descriptionPolicy.Sanitize(buf.String())), nil
}
