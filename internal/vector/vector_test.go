package vector

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
)

func TestCosine(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"length mismatch", []float32{1, 2}, []float32{1, 2, 3}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 2}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Cosine(tc.a, tc.b)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("Cosine = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestMemoryStoreCRUD(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	rec := TextRecord{ID: "a", Text: "hello", Vector: []float32{1, 0}}
	if err := store.Upsert(ctx, rec); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := store.Get(ctx, "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Text != "hello" {
		t.Fatalf("get text = %q", got.Text)
	}

	// Upsert replaces.
	rec.Text = "updated"
	if err := store.Upsert(ctx, rec); err != nil {
		t.Fatalf("upsert replace: %v", err)
	}
	got, _ = store.Get(ctx, "a")
	if got.Text != "updated" {
		t.Fatalf("expected replacement, got %q", got.Text)
	}

	n, err := store.Count(ctx)
	if err != nil || n != 1 {
		t.Fatalf("count = %d, err %v", n, err)
	}

	if err := store.Delete(ctx, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Delete(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestMemoryStoreSearchRanking(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	records := []TextRecord{
		{ID: "x", Text: "x axis", Vector: []float32{1, 0}},
		{ID: "y", Text: "y axis", Vector: []float32{0, 1}},
		{ID: "xy", Text: "diagonal", Vector: []float32{1, 1}},
	}
	for _, r := range records {
		if err := store.Upsert(ctx, r); err != nil {
			t.Fatalf("upsert %s: %v", r.ID, err)
		}
	}

	results, err := store.Search(ctx, []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Record.ID != "x" {
		t.Fatalf("best match = %s, want x", results[0].Record.ID)
	}
	if results[1].Record.ID != "xy" {
		t.Fatalf("second match = %s, want xy", results[1].Record.ID)
	}
	if results[0].Score < results[1].Score {
		t.Fatalf("results not ordered by score")
	}
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			rec := TextRecord{
				ID:     string(rune('a' + n%26)),
				Text:   "t",
				Vector: []float32{float32(n), 1},
			}
			_ = store.Upsert(ctx, rec)
			_, _ = store.Search(ctx, []float32{1, 1}, 5)
			_, _ = store.List(ctx)
		}(i)
	}
	wg.Wait()

	n, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n == 0 || n > 20 {
		t.Fatalf("unexpected record count %d", n)
	}
}
