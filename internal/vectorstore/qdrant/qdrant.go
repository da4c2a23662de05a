package qdrant

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"study-ai/internal/models"
	"study-ai/internal/vectorstore"
)

// Storage is a minimal REST client to Qdrant. It uses cosine distance and
// creates the collection on first upsert, sized to the first vector seen.
type Storage struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client

	initMu      sync.Mutex
	initialized bool
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Storage{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

func (s *Storage) ensureCollection(dimension int) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	if s.initialized {
		return nil
	}
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	// Qdrant returns 200 OK if the collection already exists with the
	// same schema; a real error propagates.
	if err := s.putJSON(fmt.Sprintf("%s/collections/%s", s.url, s.collection), body); err != nil {
		return err
	}
	s.initialized = true
	return nil
}

func (s *Storage) Upsert(units []models.ContentUnit, vectors [][]float64) error {
	if len(units) != len(vectors) {
		return errors.New("units and vectors length mismatch")
	}
	if len(units) == 0 {
		return nil
	}
	if err := s.ensureCollection(len(vectors[0])); err != nil {
		return err
	}
	points := make([]map[string]any, len(units))
	for i, unit := range units {
		points[i] = map[string]any{
			// Qdrant point ids must be UUIDs or unsigned ints. Deriving
			// one from the unit id keeps reindexing idempotent.
			"id":     pointID(unit.ID),
			"vector": vectors[i],
			"payload": map[string]any{
				"unit_id":      unit.ID,
				"source":       unit.SourceDocument,
				"position":     unit.Position,
				"type":         string(unit.Type),
				"display_name": unit.DisplayName,
				"text":         unit.Text,
			},
		}
	}
	body := map[string]any{"points": points}
	return s.putJSON(fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, s.collection), body)
}

func (s *Storage) Query(vector []float64, topK int, filter vectorstore.Filter) ([]vectorstore.ScoredUnit, error) {
	if topK <= 0 {
		topK = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	if cond := filterConditions(filter); len(cond) > 0 {
		req["filter"] = map[string]any{"must": cond}
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.postJSON(fmt.Sprintf("%s/collections/%s/points/search", s.url, s.collection), req, &resp); err != nil {
		return nil, err
	}
	results := make([]vectorstore.ScoredUnit, 0, len(resp.Result))
	for _, r := range resp.Result {
		unit := models.ContentUnit{}
		if v, ok := r.Payload["unit_id"].(string); ok {
			unit.ID = v
		}
		if v, ok := r.Payload["source"].(string); ok {
			unit.SourceDocument = v
		}
		if v, ok := r.Payload["position"].(float64); ok {
			unit.Position = int(v)
		}
		if v, ok := r.Payload["type"].(string); ok {
			unit.Type = models.UnitType(v)
		}
		if v, ok := r.Payload["display_name"].(string); ok {
			unit.DisplayName = v
		}
		if v, ok := r.Payload["text"].(string); ok {
			unit.Text = v
		}
		results = append(results, vectorstore.ScoredUnit{Unit: unit, Score: r.Score})
	}
	return results, nil
}

func (s *Storage) Clear() error {
	// Best-effort: drop collection
	req, _ := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/collections/%s", s.url, s.collection), nil)
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	if resp, err := s.client.Do(req); err == nil {
		resp.Body.Close()
	}
	s.initMu.Lock()
	s.initialized = false
	s.initMu.Unlock()
	return nil
}

func pointID(unitID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(unitID)).String()
}

func filterConditions(filter vectorstore.Filter) []map[string]any {
	var cond []map[string]any
	if t, ok := filter["type"]; ok {
		cond = append(cond, map[string]any{"key": "type", "match": map[string]any{"value": t}})
	}
	if src, ok := filter["source"]; ok {
		cond = append(cond, map[string]any{"key": "source", "match": map[string]any{"value": src}})
	}
	return cond
}

func (s *Storage) putJSON(url string, body any) error {
	data, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPut, url, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant PUT %s failed: %s", url, resp.Status)
	}
	return nil
}

func (s *Storage) postJSON(url string, body any, out any) error {
	data, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant POST %s failed: %s", url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
