package session

import (
	"context"
	"testing"
)

func TestMemoryQuestionCache_PutGetClear(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryQuestionCache()

	if _, ok := cache.Get(ctx, "c1"); ok {
		t.Fatalf("expected miss on empty cache")
	}

	cache.Put(ctx, "c1", question("q1"))
	got, ok := cache.Get(ctx, "c1")
	if !ok || got.ID != "q1" {
		t.Fatalf("expected q1, got %+v ok=%v", got, ok)
	}

	// Entries are isolated per contribution.
	if _, ok := cache.Get(ctx, "c2"); ok {
		t.Fatalf("expected miss for a different contribution")
	}

	cache.Clear(ctx, "c1")
	if _, ok := cache.Get(ctx, "c1"); ok {
		t.Fatalf("expected miss after clear")
	}
}

func TestMemoryQuestionCache_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryQuestionCache()
	cache.Put(ctx, "c1", question("q1"))

	first, _ := cache.Get(ctx, "c1")
	first.Text = "mutated"
	second, _ := cache.Get(ctx, "c1")
	if second.Text == "mutated" {
		t.Fatalf("expected cached question to be copy-safe")
	}
}
