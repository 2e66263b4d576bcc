// Package nav names the places the storefront can send a shopper.
package nav

import (
	"context"
	"sync"
)

// Destination is a navigable storefront location.
type Destination string

const (
	Catalog  Destination = "catalog"
	Checkout Destination = "checkout"
)

// Path returns the route the destination maps to.
func (d Destination) Path() string {
	switch d {
	case Catalog:
		return "/products"
	case Checkout:
		return "/checkout"
	}
	return "/"
}

// Navigator moves the shopper to a destination.
type Navigator interface {
	Navigate(ctx context.Context, to Destination)
}

// Recorder remembers the last requested destination so the response can redirect.
type Recorder struct {
	mu   sync.Mutex
	last Destination
}

// Navigate implements Navigator.
func (r *Recorder) Navigate(_ context.Context, to Destination) {
	r.mu.Lock()
	r.last = to
	r.mu.Unlock()
}

// Take returns and clears the pending destination.
func (r *Recorder) Take() (Destination, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	to := r.last
	r.last = ""
	return to, to != ""
}
