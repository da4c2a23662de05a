package services

import (
	"context"
	"fmt"
	"strings"

	"study-ai/internal/models"
)

const (
	askTopK     = 3
	quizTopK    = 5
	guideTopK   = 5
	mapTopK     = 4
	maxToolUnit = 1500
)

// ToolsService backs the ad-hoc study tools: question answering, quiz
// generation, topic guides, and concept maps over the indexed material.
type ToolsService struct {
	ai        *AIService
	retrieval *RetrievalService
}

func NewToolsService(ai *AIService, retrieval *RetrievalService) *ToolsService {
	return &ToolsService{ai: ai, retrieval: retrieval}
}

// ToolResult pairs generated text with the units it was grounded on.
type ToolResult struct {
	Text    string
	Sources []models.ContentUnit
}

func (s *ToolsService) Ask(ctx context.Context, question string) (ToolResult, error) {
	units, err := s.retrieval.TopUnits(ctx, question, askTopK)
	if err != nil {
		return ToolResult{}, err
	}
	answer, err := s.ai.Answer(ctx, unitsContext(units), question)
	if err != nil {
		return ToolResult{}, err
	}
	return ToolResult{Text: answer, Sources: units}, nil
}

func (s *ToolsService) Quiz(ctx context.Context, topic string) (ToolResult, error) {
	units, err := s.retrieval.TopUnits(ctx, topic, quizTopK)
	if err != nil {
		return ToolResult{}, err
	}
	quiz, err := s.ai.Quiz(ctx, unitsContext(units))
	if err != nil {
		return ToolResult{}, err
	}
	return ToolResult{Text: quiz, Sources: units}, nil
}

func (s *ToolsService) StudyGuide(ctx context.Context, topic string) (ToolResult, error) {
	units, err := s.retrieval.TopUnits(ctx, topic, guideTopK)
	if err != nil {
		return ToolResult{}, err
	}
	guide, err := s.ai.TopicGuide(ctx, unitsContext(units))
	if err != nil {
		return ToolResult{}, err
	}
	return ToolResult{Text: guide, Sources: units}, nil
}

func (s *ToolsService) ConceptMap(ctx context.Context, topic string) (ToolResult, error) {
	units, err := s.retrieval.TopUnits(ctx, topic, mapTopK)
	if err != nil {
		return ToolResult{}, err
	}
	diagram, err := s.ai.ConceptMap(ctx, unitsContext(units))
	if err != nil {
		return ToolResult{}, err
	}
	return ToolResult{Text: diagram, Sources: units}, nil
}

func unitsContext(units []models.ContentUnit) string {
	if len(units) == 0 {
		return "(no indexed course material available)"
	}
	var b strings.Builder
	for i, unit := range units {
		if i > 0 {
			b.WriteString("\n\n")
		}
		name := unit.DisplayName
		if name == "" {
			name = unit.SourceDocument
		}
		fmt.Fprintf(&b, "[%s, unit %d]\n%s", name, unit.Position, truncateRunes(unit.Text, maxToolUnit))
	}
	return b.String()
}
