package services

import (
	"context"
	"fmt"
	"testing"
)

// fakeEmbedder returns a distinct vector per unique text and records every
// batch it is asked for.
type fakeEmbedder struct {
	calls   int
	batches [][]string
	err     error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	f.calls++
	f.batches = append(f.batches, append([]string{}, texts...))
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float64, len(texts))
	for i, text := range texts {
		vectors[i] = []float64{float64(len(text)), float64(i)}
	}
	return vectors, nil
}

func TestEmbedBatchOrderPreserved(t *testing.T) {
	provider := &fakeEmbedder{}
	svc := NewEmbeddingService(provider, 0)

	texts := []string{"alpha", "be", "gamma!"}
	vectors, err := svc.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vectors) != len(texts) {
		t.Fatalf("got %d vectors, want %d", len(vectors), len(texts))
	}
	for i, text := range texts {
		if vectors[i][0] != float64(len(text)) {
			t.Errorf("vector %d = %v, not aligned with input %q", i, vectors[i], text)
		}
	}
}

func TestEmbedBatchCachesRepeats(t *testing.T) {
	provider := &fakeEmbedder{}
	svc := NewEmbeddingService(provider, 0)
	ctx := context.Background()

	first, err := svc.EmbedBatch(ctx, []string{"intro slide", "summary slide"})
	if err != nil {
		t.Fatalf("first EmbedBatch: %v", err)
	}
	second, err := svc.EmbedBatch(ctx, []string{"summary slide", "intro slide"})
	if err != nil {
		t.Fatalf("second EmbedBatch: %v", err)
	}

	if provider.calls != 1 {
		t.Fatalf("provider called %d times, want 1", provider.calls)
	}
	if first[0][0] != second[1][0] || first[1][0] != second[0][0] {
		t.Errorf("cached vectors not reused: first=%v second=%v", first, second)
	}
}

func TestEmbedBatchDedupsWithinBatch(t *testing.T) {
	provider := &fakeEmbedder{}
	svc := NewEmbeddingService(provider, 0)

	vectors, err := svc.EmbedBatch(context.Background(), []string{"same", "same", "other"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}

	if got := provider.batches[0]; len(got) != 2 {
		t.Fatalf("provider batch = %v, want 2 unique texts", got)
	}
	if vectors[0][0] != vectors[1][0] {
		t.Errorf("duplicate inputs got different vectors: %v vs %v", vectors[0], vectors[1])
	}
}

func TestEmbedBatchPartialHit(t *testing.T) {
	provider := &fakeEmbedder{}
	svc := NewEmbeddingService(provider, 0)
	ctx := context.Background()

	if _, err := svc.EmbedBatch(ctx, []string{"cached"}); err != nil {
		t.Fatalf("seed EmbedBatch: %v", err)
	}
	if _, err := svc.EmbedBatch(ctx, []string{"cached", "fresh"}); err != nil {
		t.Fatalf("mixed EmbedBatch: %v", err)
	}

	if provider.calls != 2 {
		t.Fatalf("provider called %d times, want 2", provider.calls)
	}
	if got := provider.batches[1]; len(got) != 1 || got[0] != "fresh" {
		t.Fatalf("second provider batch = %v, want only the miss", got)
	}
}

func TestEmbedBatchProviderErrorLeavesCacheClean(t *testing.T) {
	provider := &fakeEmbedder{err: fmt.Errorf("rate limited")}
	svc := NewEmbeddingService(provider, 0)

	if _, err := svc.EmbedBatch(context.Background(), []string{"text"}); err == nil {
		t.Fatal("expected provider error")
	}
	if svc.Len() != 0 {
		t.Fatalf("cache has %d entries after failed call, want 0", svc.Len())
	}
}

func TestEmbedCacheEviction(t *testing.T) {
	provider := &fakeEmbedder{}
	svc := NewEmbeddingService(provider, 2)
	ctx := context.Background()

	for _, text := range []string{"a", "bb", "ccc"} {
		if _, err := svc.EmbedBatch(ctx, []string{text}); err != nil {
			t.Fatalf("EmbedBatch(%q): %v", text, err)
		}
	}
	if svc.Len() != 2 {
		t.Fatalf("cache size = %d, want capacity 2", svc.Len())
	}

	// "a" was evicted; embedding it again hits the provider.
	calls := provider.calls
	if _, err := svc.EmbedBatch(ctx, []string{"a"}); err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if provider.calls != calls+1 {
		t.Errorf("provider calls = %d, want %d (evicted entry re-embedded)", provider.calls, calls+1)
	}
}

func TestEmbedBatchLargerThanCache(t *testing.T) {
	provider := &fakeEmbedder{}
	svc := NewEmbeddingService(provider, 2)

	// More unique misses than the cache holds: the batch must still
	// succeed even though inserting the later vectors evicts the earlier
	// ones before the call returns.
	texts := []string{"a", "bb", "ccc"}
	vectors, err := svc.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vectors) != len(texts) {
		t.Fatalf("got %d vectors, want %d", len(vectors), len(texts))
	}
	for i, text := range texts {
		if vectors[i] == nil || vectors[i][0] != float64(len(text)) {
			t.Errorf("vector %d = %v, not aligned with input %q", i, vectors[i], text)
		}
	}
	if provider.calls != 1 {
		t.Errorf("provider called %d times, want 1", provider.calls)
	}
	if svc.Len() != 2 {
		t.Errorf("cache size = %d, want capacity 2", svc.Len())
	}
}

func TestEmbedReset(t *testing.T) {
	provider := &fakeEmbedder{}
	svc := NewEmbeddingService(provider, 0)
	ctx := context.Background()

	if _, err := svc.Embed(ctx, "text"); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	svc.Reset()
	if svc.Len() != 0 {
		t.Fatalf("cache size after Reset = %d, want 0", svc.Len())
	}
	if _, err := svc.Embed(ctx, "text"); err != nil {
		t.Fatalf("Embed after Reset: %v", err)
	}
	if provider.calls != 2 {
		t.Errorf("provider calls = %d, want 2 (reset dropped the cached vector)", provider.calls)
	}
}

func TestEmbedBatchEmptyInput(t *testing.T) {
	svc := NewEmbeddingService(&fakeEmbedder{}, 0)
	vectors, err := svc.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("EmbedBatch(nil): %v", err)
	}
	if vectors != nil {
		t.Fatalf("vectors = %v, want nil", vectors)
	}
}
