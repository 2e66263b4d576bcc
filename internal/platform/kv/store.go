// Package kv provides the byte-oriented key-value persistence used for cart snapshots.
package kv

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned by Get when no value is stored under the key.
var ErrNotFound = errors.New("kv: key not found")

// Store persists opaque values under string keys.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Namespace scopes every key of the underlying store below prefix.
type Namespace struct {
	store  Store
	prefix string
}

// NewNamespace wraps store so that keys are written as "<prefix>:<key>".
func NewNamespace(store Store, prefix string) *Namespace {
	return &Namespace{store: store, prefix: strings.TrimSuffix(prefix, ":")}
}

func (n *Namespace) key(key string) string {
	if n.prefix == "" {
		return key
	}
	return n.prefix + ":" + key
}

// Get implements Store.
func (n *Namespace) Get(ctx context.Context, key string) ([]byte, error) {
	return n.store.Get(ctx, n.key(key))
}

// Set implements Store.
func (n *Namespace) Set(ctx context.Context, key string, value []byte) error {
	return n.store.Set(ctx, n.key(key), value)
}

// Delete implements Store.
func (n *Namespace) Delete(ctx context.Context, key string) error {
	return n.store.Delete(ctx, n.key(key))
}
