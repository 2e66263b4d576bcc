package cart

import (
	"context"
	"errors"
)

// ErrNoProvider signals that cart operations were attempted without a store on the context.
var ErrNoProvider = errors.New("cart: FromContext called without a store; wrap the handler with WithStore")

type contextKey struct{}

// WithStore makes s available to downstream handlers.
func WithStore(ctx context.Context, s *Store) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the store placed by WithStore. It panics with ErrNoProvider when none is present.
func FromContext(ctx context.Context) *Store {
	if s, ok := Lookup(ctx); ok {
		return s
	}
	panic(ErrNoProvider)
}

// Lookup returns the store placed by WithStore, if any.
func Lookup(ctx context.Context) (*Store, bool) {
	if ctx == nil {
		return nil, false
	}
	s, ok := ctx.Value(contextKey{}).(*Store)
	return s, ok && s != nil
}
