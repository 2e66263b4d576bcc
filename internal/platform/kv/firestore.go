package kv

import (
	"context"
	"net/url"
	"time"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/hanko-field/storefront/internal/platform/firestore"
)

const defaultCollection = "storefront_kv"

// FirestoreStore keeps each key as a document in a single collection.
type FirestoreStore struct {
	provider   *pfirestore.Provider
	collection string
}

type firestoreEntry struct {
	Value     []byte    `firestore:"value"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// NewFirestoreStore constructs a Firestore-backed store. The client is dialled on first use.
func NewFirestoreStore(provider *pfirestore.Provider, collection string) *FirestoreStore {
	if collection == "" {
		collection = defaultCollection
	}
	return &FirestoreStore{provider: provider, collection: collection}
}

func (s *FirestoreStore) doc(ctx context.Context, key string) (*firestore.DocumentRef, error) {
	client, err := s.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	// Document ids may not contain slashes.
	return client.Collection(s.collection).Doc(url.PathEscape(key)), nil
}

// Get implements Store.
func (s *FirestoreStore) Get(ctx context.Context, key string) ([]byte, error) {
	ref, err := s.doc(ctx, key)
	if err != nil {
		return nil, err
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		if pfirestore.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, pfirestore.WrapError("kv.get", err)
	}
	var entry firestoreEntry
	if err := snap.DataTo(&entry); err != nil {
		return nil, pfirestore.WrapError("kv.decode", err)
	}
	return entry.Value, nil
}

// Set implements Store.
func (s *FirestoreStore) Set(ctx context.Context, key string, value []byte) error {
	ref, err := s.doc(ctx, key)
	if err != nil {
		return err
	}
	_, err = ref.Set(ctx, firestoreEntry{Value: value, UpdatedAt: time.Now().UTC()})
	return pfirestore.WrapError("kv.set", err)
}

// Delete implements Store.
func (s *FirestoreStore) Delete(ctx context.Context, key string) error {
	ref, err := s.doc(ctx, key)
	if err != nil {
		return err
	}
	_, err = ref.Delete(ctx)
	return pfirestore.WrapError("kv.delete", err)
}
