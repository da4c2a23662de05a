package qdrant

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"study-ai/internal/models"
)

// fakeQdrant counts collection-level requests so tests can observe when the
// client creates or drops the collection.
type fakeQdrant struct {
	mu      sync.Mutex
	creates int
	deletes int
}

func (f *fakeQdrant) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/units":
			f.creates++
		case r.Method == http.MethodDelete && r.URL.Path == "/collections/units":
			f.deletes++
		}
		w.Write([]byte(`{"result": true, "status": "ok"}`))
	})
}

func testUnit(id string) models.ContentUnit {
	return models.ContentUnit{
		ID:             id,
		Text:           "text for " + id,
		SourceDocument: "deck.pptx",
		Position:       1,
		Type:           models.UnitSlide,
	}
}

func TestClearResetsCollectionInit(t *testing.T) {
	fake := &fakeQdrant{}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	store := NewStorage(Config{URL: server.URL, Collection: "units"})
	vectors := [][]float64{{1, 0}}

	if err := store.Upsert([]models.ContentUnit{testUnit("a_0")}, vectors); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := store.Upsert([]models.ContentUnit{testUnit("a_1")}, vectors); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}
	if fake.creates != 1 {
		t.Fatalf("collection created %d times before Clear, want 1", fake.creates)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if fake.deletes != 1 {
		t.Fatalf("collection deleted %d times, want 1", fake.deletes)
	}

	// The dropped collection must be recreated on the next upsert.
	if err := store.Upsert([]models.ContentUnit{testUnit("a_0")}, vectors); err != nil {
		t.Fatalf("Upsert after Clear: %v", err)
	}
	if fake.creates != 2 {
		t.Fatalf("collection created %d times after Clear, want 2", fake.creates)
	}
}

func TestClearConcurrentWithUpsert(t *testing.T) {
	fake := &fakeQdrant{}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	store := NewStorage(Config{URL: server.URL, Collection: "units"})
	vectors := [][]float64{{1, 0}}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := store.Upsert([]models.ContentUnit{testUnit("u")}, vectors); err != nil {
				t.Errorf("Upsert: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if err := store.Clear(); err != nil {
				t.Errorf("Clear: %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestUpsertPointIDIsStable(t *testing.T) {
	if pointID("deck_3") != pointID("deck_3") {
		t.Fatal("point id not deterministic for the same unit id")
	}
	if pointID("deck_3") == pointID("deck_4") {
		t.Fatal("distinct unit ids mapped to the same point id")
	}
}
