// Package vectorstore defines the external vector index the pipeline writes
// content units into and queries during retrieval. The core never ranks
// vectors itself; similarity math lives behind this interface.
package vectorstore

import "study-ai/internal/models"

// ScoredUnit is one nearest-neighbor hit.
type ScoredUnit struct {
	Unit  models.ContentUnit
	Score float64
}

// Filter restricts a query by metadata equality. Supported keys: "type"
// (text|slide) and "source" (source document). A nil filter matches all.
type Filter map[string]string

// Storage persists unit vectors and supports cosine nearest-neighbor search.
type Storage interface {
	Upsert(units []models.ContentUnit, vectors [][]float64) error
	Query(vector []float64, topK int, filter Filter) ([]ScoredUnit, error)
	Clear() error
}

// Matches reports whether a unit satisfies the filter.
func (f Filter) Matches(unit models.ContentUnit) bool {
	if t, ok := f["type"]; ok && string(unit.Type) != t {
		return false
	}
	if src, ok := f["source"]; ok && unit.SourceDocument != src {
		return false
	}
	return true
}
