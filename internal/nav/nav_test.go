package nav

import (
	"context"
	"testing"
)

func TestRecorderTake(t *testing.T) {
	var r Recorder
	if _, ok := r.Take(); ok {
		t.Fatalf("expected no pending destination")
	}
	r.Navigate(context.Background(), Checkout)
	r.Navigate(context.Background(), Catalog)
	to, ok := r.Take()
	if !ok || to != Catalog || to.Path() != "/products" {
		t.Fatalf("unexpected destination %q", to)
	}
	if _, ok := r.Take(); ok {
		t.Fatalf("expected destination to be consumed")
	}
}
