package services

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"study-ai/internal/db"
	"study-ai/internal/models"
)

func openTestDB(t *testing.T) *AnalysisStore {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewAnalysisStore(conn)
}

func TestAnalysisStoreSaveAndGet(t *testing.T) {
	store := openTestDB(t)
	ctx := context.Background()

	saved, err := store.Save(ctx, models.Analysis{
		TestName:      "midterm.pdf",
		Policy:        models.PolicyBothPresent,
		ScorePercent:  75.0,
		TotalGraded:   20,
		QuestionCount: 20,
		TopicAnalysis: "topics",
		Guide:         "the guide body",
		DurationSecs:  42,
		EstimateSecs:  40,
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved.ID == 0 {
		t.Fatal("Save did not assign an id")
	}

	got, err := store.Get(ctx, saved.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.TestName != "midterm.pdf" || got.ScorePercent != 75.0 || got.Guide != "the guide body" {
		t.Errorf("Get = %+v", got)
	}
	if got.Policy != models.PolicyBothPresent {
		t.Errorf("policy = %s", got.Policy)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not persisted")
	}
}

func TestAnalysisStoreGetMissing(t *testing.T) {
	store := openTestDB(t)
	if _, err := store.Get(context.Background(), 12345); !errors.Is(err, ErrAnalysisNotFound) {
		t.Fatalf("err = %v, want ErrAnalysisNotFound", err)
	}
}

func TestAnalysisStoreListNewestFirstWithoutGuide(t *testing.T) {
	store := openTestDB(t)
	ctx := context.Background()

	for _, name := range []string{"first.pdf", "second.pdf"} {
		if _, err := store.Save(ctx, models.Analysis{
			TestName: name,
			Policy:   models.PolicyNeither,
			Guide:    "guide for " + name,
		}); err != nil {
			t.Fatalf("Save(%s): %v", name, err)
		}
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d analyses, want 2", len(list))
	}
	if list[0].TestName != "second.pdf" {
		t.Errorf("list order = %s, %s, want newest first", list[0].TestName, list[1].TestName)
	}
	for _, a := range list {
		if strings.Contains(a.Guide, "guide for") {
			t.Errorf("listing carries the guide body for %s", a.TestName)
		}
	}
}
