package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

var (
	// ErrAIUnavailable is returned when the OpenAI integration is not configured.
	ErrAIUnavailable = errors.New("openai integration is not configured")
)

// CompletionProvider runs one chat completion with the given sampling
// settings and returns the raw output text. Provider errors propagate to the
// caller without retries.
type CompletionProvider interface {
	Complete(ctx context.Context, system, user string, temperature float32, maxTokens int) (string, error)
}

type openAIChat struct {
	client *openai.Client
	model  string
}

func (c *openAIChat) Complete(ctx context.Context, system, user string, temperature float32, maxTokens int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("request completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// AIService wraps the completion provider with the prompt templates and
// sampling settings of each pipeline stage.
type AIService struct {
	chat CompletionProvider
}

func NewAIService(apiKey, model, apiEndpoint string) *AIService {
	if apiKey == "" {
		return &AIService{}
	}
	cfg := openai.DefaultConfig(apiKey)
	if apiEndpoint != "" {
		cfg.BaseURL = apiEndpoint
	}
	return &AIService{chat: &openAIChat{client: openai.NewClientWithConfig(cfg), model: model}}
}

// NewAIServiceWithProvider wires a custom provider, used by tests.
func NewAIServiceWithProvider(p CompletionProvider) *AIService {
	return &AIService{chat: p}
}

func (s *AIService) disabled() bool {
	return s.chat == nil
}

// extractJSON removes markdown code block formatting if present and extracts the JSON
func extractJSON(content string) string {
	content = strings.TrimSpace(content)

	// Remove markdown code blocks like ```json ... ``` or ``` ... ```
	if strings.HasPrefix(content, "```") {
		// Skip past the opening ``` and optional language identifier (e.g., "json")
		start := 3
		// Find the first newline to skip the language identifier line
		if newlineIdx := strings.Index(content[start:], "\n"); newlineIdx != -1 {
			start += newlineIdx + 1
		}

		// Find the closing ```
		if endIdx := strings.Index(content[start:], "```"); endIdx != -1 {
			content = content[start : start+endIdx]
		} else {
			// No closing ```, just take everything after the opening
			content = content[start:]
		}
	}

	content = strings.TrimSpace(content)

	// Additional safety: find the first { and last } to extract just the JSON object
	if startIdx := strings.Index(content, "{"); startIdx != -1 {
		if endIdx := strings.LastIndex(content, "}"); endIdx != -1 && endIdx > startIdx {
			content = content[startIdx : endIdx+1]
		}
	}

	return strings.TrimSpace(content)
}

// TestExtraction is the strict schema a practice test is parsed into. All
// three maps are keyed by stringified question number.
type TestExtraction struct {
	Questions      map[string]string `json:"questions"`
	CorrectAnswers map[string]string `json:"correct_answers"`
	UserAnswers    map[string]string `json:"user_answers"`
}

// ExtractionResult tags the parse outcome. Degraded means the completion
// output could not be parsed and all maps were substituted empty; downstream
// treats that as "zero questions found", not as an error.
type ExtractionResult struct {
	TestExtraction
	Degraded bool
	Reason   string
}

const extractionSystemPrompt = "You are an expert at reading practice tests and extracting their questions and answers into strict JSON."

// ExtractTestStructure asks the completion service to parse a practice test
// into questions, the answer key, and the learner's marked answers.
func (s *AIService) ExtractTestStructure(ctx context.Context, testContent string) (ExtractionResult, error) {
	if s.disabled() {
		return ExtractionResult{}, ErrAIUnavailable
	}

	prompt := fmt.Sprintf(`Extract every question from this practice test.

Strictly respond with a JSON object:
{"questions": {"1": "question text"}, "correct_answers": {"1": "A"}, "user_answers": {"1": "B"}}

- "questions" maps each question number to its full question text.
- "correct_answers" maps question numbers to the answer key token (usually a choice letter). Omit entries the document does not reveal; use {} if there is no answer key.
- "user_answers" maps question numbers to the answer the test taker marked. Omit entries with no visible selection; use {} if none are marked.
Question numbers are always stringified positive integers.

Practice Test Content:
%s`, testContent)

	raw, err := s.chat.Complete(ctx, extractionSystemPrompt, prompt, 0.1, 4096)
	if err != nil {
		return ExtractionResult{}, err
	}

	var extraction TestExtraction
	jsonStr := extractJSON(raw)
	if err := json.Unmarshal([]byte(jsonStr), &extraction); err != nil {
		log.Printf("test extraction output was not valid JSON, degrading to empty: %v", err)
		return ExtractionResult{
			TestExtraction: emptyExtraction(),
			Degraded:       true,
			Reason:         err.Error(),
		}, nil
	}

	// Backfill any mapping the model omitted.
	if extraction.Questions == nil {
		extraction.Questions = map[string]string{}
	}
	if extraction.CorrectAnswers == nil {
		extraction.CorrectAnswers = map[string]string{}
	}
	if extraction.UserAnswers == nil {
		extraction.UserAnswers = map[string]string{}
	}
	return ExtractionResult{TestExtraction: extraction}, nil
}

func emptyExtraction() TestExtraction {
	return TestExtraction{
		Questions:      map[string]string{},
		CorrectAnswers: map[string]string{},
		UserAnswers:    map[string]string{},
	}
}

// AnalyzeTest produces the topic breakdown used as the retrieval query for
// remediation material.
func (s *AIService) AnalyzeTest(ctx context.Context, testContent string, focusQuestions []string) (string, error) {
	if s.disabled() {
		return "", ErrAIUnavailable
	}

	focusClause := "Analyze all questions"
	if len(focusQuestions) > 0 {
		focusClause = "Focus on these question numbers: " + strings.Join(focusQuestions, ", ")
	}

	prompt := fmt.Sprintf(`Analyze this practice test and extract detailed information for each question.

Practice Test Content:
%s

%s

For each question (especially flagged/incorrect ones), provide:
1. Question number (if identifiable)
2. Main topic/concept being tested
3. Specific sub-topics or skills required
4. Key terms, formulas, or concepts needed to answer correctly
5. Common misconceptions or mistakes for this type of question

Format as a structured list with clear question-by-question breakdown.`, testContent, focusClause)

	return s.chat.Complete(ctx,
		"You are an expert at analyzing practice tests and identifying key topics and concepts.",
		prompt, 0.3, 1200)
}

// GenerateGuideBatch runs one study-guide batch prompt. Fast mode trades
// length for latency.
func (s *AIService) GenerateGuideBatch(ctx context.Context, prompt string, fastMode bool) (string, error) {
	if s.disabled() {
		return "", ErrAIUnavailable
	}
	temperature := float32(0.5)
	maxTokens := 1600
	if fastMode {
		temperature = 0.4
		maxTokens = 1000
	}
	return s.chat.Complete(ctx, "You are an expert tutor creating personalized study guides.", prompt, temperature, maxTokens)
}

// Answer responds to a learner question grounded in retrieved course context.
func (s *AIService) Answer(ctx context.Context, contextText, question string) (string, error) {
	if s.disabled() {
		return "", ErrAIUnavailable
	}
	system := `You are an AI study assistant. Use the provided context to answer questions accurately and helpfully. If the context doesn't contain enough information to answer fully, acknowledge this and suggest what additional information might be needed.`
	user := fmt.Sprintf("Context:\n%s\n\nQuestion: %s", contextText, question)
	return s.chat.Complete(ctx, system, user, 0.3, 500)
}

// Quiz generates practice questions over the retrieved context.
func (s *AIService) Quiz(ctx context.Context, contextText string) (string, error) {
	if s.disabled() {
		return "", ErrAIUnavailable
	}
	system := `Generate a quiz based on the provided content. Create 3 questions of varying difficulty (easy, medium, hard). Each question should test understanding rather than mere recall. Include answers and explanations.`
	return s.chat.Complete(ctx, system, "Content to base quiz on:\n"+contextText, 0.7, 1000)
}

// TopicGuide writes a focused study guide for one topic.
func (s *AIService) TopicGuide(ctx context.Context, contextText string) (string, error) {
	if s.disabled() {
		return "", ErrAIUnavailable
	}
	system := `Create a comprehensive study guide based on the provided content.
Include:
1. Key concepts and definitions
2. Important relationships and connections
3. Common misconceptions
4. Practice problems or examples
5. Summary of main points`
	return s.chat.Complete(ctx, system, "Content to base study guide on:\n"+contextText, 0.5, 1500)
}

// ConceptMap renders a textual map of how ideas in the context relate.
func (s *AIService) ConceptMap(ctx context.Context, contextText string) (string, error) {
	if s.disabled() {
		return "", ErrAIUnavailable
	}
	system := `Create a textual concept map showing relationships between key ideas. Use simple ASCII/Unicode characters to show connections. Format should be clear and readable in a monospace font.`
	return s.chat.Complete(ctx, system, "Content to map:\n"+contextText, 0.4, 1000)
}
