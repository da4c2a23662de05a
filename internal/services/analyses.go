package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"study-ai/internal/models"
)

var ErrAnalysisNotFound = errors.New("analysis not found")

// AnalysisStore persists completed analysis runs.
type AnalysisStore struct {
	db *sql.DB
}

func NewAnalysisStore(db *sql.DB) *AnalysisStore {
	return &AnalysisStore{db: db}
}

func (s *AnalysisStore) Save(ctx context.Context, a models.Analysis) (models.Analysis, error) {
	a.CreatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO analyses (test_name, policy, score_percent, total_graded, question_count, topic_analysis, guide, duration_secs, estimate_secs, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.TestName, a.Policy, a.ScorePercent, a.TotalGraded, a.QuestionCount,
		a.TopicAnalysis, a.Guide, a.DurationSecs, a.EstimateSecs, a.CreatedAt)
	if err != nil {
		return models.Analysis{}, fmt.Errorf("insert analysis: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Analysis{}, fmt.Errorf("analysis id: %w", err)
	}
	a.ID = id
	return a, nil
}

// List returns saved analyses newest first, without the guide body to keep
// listings light.
func (s *AnalysisStore) List(ctx context.Context) ([]models.Analysis, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, test_name, policy, score_percent, total_graded, question_count, topic_analysis, duration_secs, estimate_secs, created_at
		FROM analyses ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	var out []models.Analysis
	for rows.Next() {
		var a models.Analysis
		if err := rows.Scan(&a.ID, &a.TestName, &a.Policy, &a.ScorePercent, &a.TotalGraded,
			&a.QuestionCount, &a.TopicAnalysis, &a.DurationSecs, &a.EstimateSecs, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *AnalysisStore) Get(ctx context.Context, id int64) (models.Analysis, error) {
	var a models.Analysis
	err := s.db.QueryRowContext(ctx, `
		SELECT id, test_name, policy, score_percent, total_graded, question_count, topic_analysis, guide, duration_secs, estimate_secs, created_at
		FROM analyses WHERE id = ?`, id).
		Scan(&a.ID, &a.TestName, &a.Policy, &a.ScorePercent, &a.TotalGraded,
			&a.QuestionCount, &a.TopicAnalysis, &a.Guide, &a.DurationSecs, &a.EstimateSecs, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Analysis{}, ErrAnalysisNotFound
	}
	if err != nil {
		return models.Analysis{}, fmt.Errorf("get analysis: %w", err)
	}
	return a, nil
}
