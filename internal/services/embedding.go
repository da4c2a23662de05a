package services

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	openai "github.com/sashabaranov/go-openai"
)

// EmbeddingProvider issues a single embeddings request for a batch of texts.
// Vectors come back in input order. Provider errors are not retried here.
type EmbeddingProvider interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// OpenAIEmbedder calls the OpenAI embeddings endpoint.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

func NewOpenAIEmbedder(client *openai.Client, model string) *OpenAIEmbedder {
	return &OpenAIEmbedder{client: client, model: openai.EmbeddingModel(model)}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("request embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}
	vectors := make([][]float64, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", item.Index)
		}
		vec := make([]float64, len(item.Embedding))
		for i, v := range item.Embedding {
			vec[i] = float64(v)
		}
		vectors[item.Index] = vec
	}
	return vectors, nil
}

const DefaultEmbedCacheSize = 4096

type cacheEntry struct {
	hash   string
	vector []float64
}

// EmbeddingService embeds batches of texts through a content-hash cache so
// the provider is called at most once per unique text for the life of the
// service. The cache is LRU-bounded; eviction only costs a re-embed.
type EmbeddingService struct {
	provider EmbeddingProvider
	capacity int

	// The mutex covers the whole check-then-insert sequence so concurrent
	// analyses sharing one cache never race duplicate provider calls for
	// the same uncached text.
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List
}

func NewEmbeddingService(provider EmbeddingProvider, capacity int) *EmbeddingService {
	if capacity <= 0 {
		capacity = DefaultEmbedCacheSize
	}
	return &EmbeddingService{
		provider: provider,
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// EmbedBatch returns one vector per input text, in input order. Cached texts
// are served from memory; the remaining unique texts go to the provider in a
// single call, preserving their relative order.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if s.provider == nil {
		return nil, errors.New("embedding provider is not configured")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([][]float64, len(texts))
	hashes := make([]string, len(texts))

	var missTexts []string
	var missHashes []string
	seen := make(map[string]bool)

	for i, text := range texts {
		h := hashText(text)
		hashes[i] = h
		if vec, ok := s.lookup(h); ok {
			results[i] = vec
			continue
		}
		if !seen[h] {
			seen[h] = true
			missTexts = append(missTexts, text)
			missHashes = append(missHashes, h)
		}
	}

	// Backfill misses from the provider's response, not from the cache: a
	// batch with more unique misses than the cache capacity would evict
	// earlier entries before they could be reread.
	if len(missTexts) > 0 {
		vectors, err := s.provider.Embed(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(missTexts) {
			return nil, fmt.Errorf("expected %d vectors, got %d", len(missTexts), len(vectors))
		}
		byHash := make(map[string][]float64, len(missHashes))
		for i, h := range missHashes {
			s.insert(h, vectors[i])
			byHash[h] = vectors[i]
		}
		for i := range results {
			if results[i] == nil {
				results[i] = byHash[hashes[i]]
			}
		}
	}
	return results, nil
}

// Embed is the single-text convenience used for queries.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float64, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Reset drops all cached vectors.
func (s *EmbeddingService) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*list.Element)
	s.order.Init()
}

// Len reports the number of cached vectors.
func (s *EmbeddingService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *EmbeddingService) lookup(hash string) ([]float64, bool) {
	elem, ok := s.entries[hash]
	if !ok {
		return nil, false
	}
	s.order.MoveToFront(elem)
	return elem.Value.(*cacheEntry).vector, true
}

func (s *EmbeddingService) insert(hash string, vector []float64) {
	if elem, ok := s.entries[hash]; ok {
		s.order.MoveToFront(elem)
		elem.Value.(*cacheEntry).vector = vector
		return
	}
	s.entries[hash] = s.order.PushFront(&cacheEntry{hash: hash, vector: vector})
	for len(s.entries) > s.capacity {
		oldest := s.order.Back()
		if oldest == nil {
			break
		}
		s.order.Remove(oldest)
		delete(s.entries, oldest.Value.(*cacheEntry).hash)
	}
}

func hashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
