package services

import (
	"context"
	"fmt"
	"sort"

	"study-ai/internal/models"
	"study-ai/internal/vectorstore"
)

// Per-question retrieval depth. Fast mode trades thoroughness for latency.
const (
	topKPerQuestionFast = 4
	topKPerQuestion     = 8
)

// RetrievalService embeds queries and organizes vector store hits for the
// learner: grouped by source document, ordered by slide position rather than
// relevance, so material reads in its natural order.
type RetrievalService struct {
	embeddings *EmbeddingService
	store      vectorstore.Storage
}

func NewRetrievalService(embeddings *EmbeddingService, store vectorstore.Storage) *RetrievalService {
	return &RetrievalService{embeddings: embeddings, store: store}
}

// FindRelevantSlides retrieves the slides most relevant to the given topics,
// grouped by document display name and sorted by slide position ascending
// within each group. An empty store yields an empty map, not an error.
func (s *RetrievalService) FindRelevantSlides(ctx context.Context, topics string, topK int) (map[string][]models.ContentUnit, error) {
	vector, err := s.embeddings.Embed(ctx, topics)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := s.store.Query(vector, topK, vectorstore.Filter{"type": string(models.UnitSlide)})
	if err != nil {
		return nil, fmt.Errorf("query store: %w", err)
	}

	grouped := make(map[string][]models.ContentUnit)
	for _, hit := range hits {
		key := hit.Unit.DisplayName
		if key == "" {
			key = hit.Unit.SourceDocument
		}
		grouped[key] = append(grouped[key], hit.Unit)
	}
	for key := range grouped {
		units := grouped[key]
		sort.Slice(units, func(i, j int) bool { return units[i].Position < units[j].Position })
	}
	return grouped, nil
}

// TopUnits returns the highest ranked units for a query across all unit
// types, in relevance order. Used by the knowledge-base tools.
func (s *RetrievalService) TopUnits(ctx context.Context, query string, topK int) ([]models.ContentUnit, error) {
	vector, err := s.embeddings.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := s.store.Query(vector, topK, nil)
	if err != nil {
		return nil, fmt.Errorf("query store: %w", err)
	}
	units := make([]models.ContentUnit, len(hits))
	for i, hit := range hits {
		units[i] = hit.Unit
	}
	return units, nil
}

// MapQuestions retrieves remediation material for each target question
// independently. No cross-question deduplication happens; the same unit may
// appear under several questions. A provider or store failure aborts the
// remaining questions.
func (s *RetrievalService) MapQuestions(ctx context.Context, questions []models.Question, fastMode bool) (models.QuestionSlideMap, error) {
	topK := topKPerQuestion
	if fastMode {
		topK = topKPerQuestionFast
	}
	slideMap := make(models.QuestionSlideMap, len(questions))
	for _, q := range questions {
		grouped, err := s.FindRelevantSlides(ctx, q.Text, topK)
		if err != nil {
			return nil, fmt.Errorf("retrieve for question %s: %w", q.Number, err)
		}
		slideMap[q.Number] = grouped
	}
	return slideMap, nil
}
