package vector

import (
	"context"
	"errors"
	"math"
	"sort"
)

// ErrNotFound is returned when a record id is absent from the store.
var ErrNotFound = errors.New("vector record not found")

// TextRecord is one embedded text entry.
type TextRecord struct {
	ID     string    `json:"id"`
	Text   string    `json:"text"`
	Vector []float32 `json:"vector"`
}

// SearchResult pairs a stored record with its similarity to the query vector.
type SearchResult struct {
	Record TextRecord `json:"record"`
	Score  float64    `json:"score"`
}

// Store is the persistence boundary for embedded text. Implementations must
// be safe for concurrent use.
type Store interface {
	Upsert(ctx context.Context, rec TextRecord) error
	Get(ctx context.Context, id string) (TextRecord, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]TextRecord, error)
	Search(ctx context.Context, query []float32, limit int) ([]SearchResult, error)
	Count(ctx context.Context) (int, error)
}

// Cosine computes cosine similarity between two vectors. Mismatched lengths
// or zero vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// rank scores the records against the query and returns the top results,
// highest similarity first.
func rank(records []TextRecord, query []float32, limit int) []SearchResult {
	results := make([]SearchResult, 0, len(records))
	for _, rec := range records {
		results = append(results, SearchResult{Record: rec, Score: Cosine(query, rec.Vector)})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}
