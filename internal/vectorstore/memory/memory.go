package memory

import (
	"errors"
	"math"
	"sort"
	"sync"

	"study-ai/internal/models"
	"study-ai/internal/vectorstore"
)

// Storage is an in-memory vector store using brute-force cosine similarity.
// Upserting a unit id that already exists replaces it, so reindexing a
// document is idempotent.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	ids       map[string]int
	units     []models.ContentUnit
	vectors   [][]float64
}

func NewStorage() *Storage {
	return &Storage{ids: make(map[string]int)}
}

func (s *Storage) Upsert(units []models.ContentUnit, vectors [][]float64) error {
	if len(units) != len(vectors) {
		return errors.New("units and vectors length mismatch")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, v := range vectors {
		if s.dimension == 0 {
			s.dimension = len(v)
		}
		if len(v) != s.dimension {
			return errors.New("vector dimension mismatch")
		}
		if idx, ok := s.ids[units[i].ID]; ok {
			s.units[idx] = units[i]
			s.vectors[idx] = v
			continue
		}
		s.ids[units[i].ID] = len(s.units)
		s.units = append(s.units, units[i])
		s.vectors = append(s.vectors, v)
	}
	return nil
}

func (s *Storage) Query(vector []float64, topK int, filter vectorstore.Filter) ([]vectorstore.ScoredUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 {
		topK = 5
	}
	results := make([]vectorstore.ScoredUnit, 0, len(s.units))
	for i := range s.units {
		if !filter.Matches(s.units[i]) {
			continue
		}
		results = append(results, vectorstore.ScoredUnit{
			Unit:  s.units[i],
			Score: cosine(s.vectors[i], vector),
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

func (s *Storage) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = make(map[string]int)
	s.units = nil
	s.vectors = nil
	s.dimension = 0
	return nil
}

func cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
