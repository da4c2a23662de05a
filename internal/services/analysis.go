package services

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"study-ai/internal/extract"
	"study-ai/internal/models"
)

// AnalysisOptions carries the caller's knobs for one practice-test run.
type AnalysisOptions struct {
	// Flagged question numbers the learner explicitly wants reviewed, in
	// addition to whatever the diff finds.
	Flagged []string
	// FastMode trades thoroughness for latency end to end: fewer retrieved
	// units per question, larger guide batches, smaller token budgets.
	FastMode bool
}

// AnalysisResult is everything one pipeline run produces.
type AnalysisResult struct {
	TestName      string
	QuestionCount int
	Extraction    ExtractionResult
	Diff          models.DiffResult
	TopicAnalysis string
	SlideMap      models.QuestionSlideMap
	Guide         models.StudyGuide
	EstimateSecs  int
	DurationSecs  int
	SavedID       int64
}

// AnalysisService orchestrates the remediation pipeline: extract the test,
// parse its structure, diff answers, map weak questions to course material,
// and assemble the study guide.
type AnalysisService struct {
	ai        *AIService
	retrieval *RetrievalService
	guides    *GuideService
	analyses  *AnalysisStore

	now func() time.Time
}

func NewAnalysisService(ai *AIService, retrieval *RetrievalService, guides *GuideService, analyses *AnalysisStore) *AnalysisService {
	return &AnalysisService{
		ai:        ai,
		retrieval: retrieval,
		guides:    guides,
		analyses:  analyses,
		now:       time.Now,
	}
}

// EstimateSeconds predicts wall time for analyzing the given test document,
// for display while the caller polls a background job.
func EstimateSeconds(path string, unitCount int) int {
	perUnit := 0.5
	if strings.EqualFold(filepath.Ext(path), ".pptx") {
		perUnit = 0.2
	}
	return int(20.0 + float64(unitCount)*perUnit)
}

// AnalyzeTest runs the full pipeline over a practice test document. A test
// with no extractable questions returns a zero-valued result ("nothing to
// review") rather than an error; only unsupported formats, provider
// failures, and store failures abort the run.
func (s *AnalysisService) AnalyzeTest(ctx context.Context, path, displayName string, opts AnalysisOptions, progress ProgressCallback) (*AnalysisResult, error) {
	started := s.now()
	report := func(step, message string, current int) {
		if progress != nil {
			progress(step, message, current, 100)
		}
	}

	report("extract", "Extracting test text", 0)
	content, unitCount, err := extract.TestText(path)
	if err != nil {
		return nil, err
	}

	result := &AnalysisResult{
		TestName:     displayName,
		EstimateSecs: EstimateSeconds(path, unitCount),
	}

	report("structure", "Parsing questions and answers", 10)
	extraction, err := s.ai.ExtractTestStructure(ctx, content)
	if err != nil {
		return nil, err
	}
	result.Extraction = extraction
	result.QuestionCount = len(extraction.Questions)

	if result.QuestionCount == 0 {
		// Degraded or genuinely question-free: a normal, handleable state.
		result.Diff = models.DiffResult{
			Policy:   models.PolicyNeither,
			Outcomes: map[string]models.Outcome{},
		}
		result.DurationSecs = int(s.now().Sub(started).Seconds())
		report("complete", "No questions found", 100)
		return result, s.save(ctx, result)
	}

	questions := extraction.QuestionList()

	report("diff", "Grading answers", 25)
	diff := Diff(questions, extraction.CorrectAnswers, extraction.UserAnswers)
	diff.ReviewSet = MergeFlagged(diff.ReviewSet, opts.Flagged)
	result.Diff = diff
	log.Printf("analysis %q: policy=%s graded=%d score=%.1f review=%d",
		displayName, diff.Policy, diff.TotalGraded, diff.ScorePercent, len(diff.ReviewSet))

	report("analyze", "Analyzing test topics", 35)
	analysis, err := s.ai.AnalyzeTest(ctx, content, diff.ReviewSet)
	if err != nil {
		return nil, err
	}
	result.TopicAnalysis = analysis

	report("retrieve", "Finding relevant course material", 55)
	targets := make([]models.Question, 0, len(diff.ReviewSet))
	for _, num := range diff.ReviewSet {
		text := extraction.Questions[num]
		if strings.TrimSpace(text) == "" {
			// Flagged numbers the extraction never saw still need a
			// non-empty retrieval query.
			text = "Question " + num
		}
		targets = append(targets, models.Question{Number: num, Text: text})
	}
	slideMap, err := s.retrieval.MapQuestions(ctx, targets, opts.FastMode)
	if err != nil {
		return nil, err
	}
	result.SlideMap = slideMap

	report("generate", "Generating study guide", 70)
	guide, err := s.guides.Assemble(ctx, analysis, diff.ReviewSet, extraction.Questions, slideMap, opts.FastMode)
	if err != nil {
		// Keep whatever sections already completed; the caller decides
		// whether to retry the whole step.
		result.Guide = guide
		return result, err
	}
	result.Guide = guide

	report("save", "Saving analysis", 95)
	result.DurationSecs = int(s.now().Sub(started).Seconds())
	if err := s.save(ctx, result); err != nil {
		return result, err
	}
	report("complete", "Analysis complete", 100)
	return result, nil
}

func (s *AnalysisService) save(ctx context.Context, result *AnalysisResult) error {
	if s.analyses == nil {
		return nil
	}
	record := models.Analysis{
		TestName:      result.TestName,
		Policy:        result.Diff.Policy,
		ScorePercent:  result.Diff.ScorePercent,
		TotalGraded:   result.Diff.TotalGraded,
		QuestionCount: result.QuestionCount,
		TopicAnalysis: result.TopicAnalysis,
		Guide:         result.Guide.Text,
		DurationSecs:  result.DurationSecs,
		EstimateSecs:  result.EstimateSecs,
	}
	saved, err := s.analyses.Save(ctx, record)
	if err != nil {
		return fmt.Errorf("save analysis: %w", err)
	}
	result.SavedID = saved.ID
	return nil
}

// QuestionList returns the extracted questions sorted in ascending numeric
// order.
func (e TestExtraction) QuestionList() []models.Question {
	nums := make([]string, 0, len(e.Questions))
	for num := range e.Questions {
		nums = append(nums, num)
	}
	models.SortQuestionNumbers(nums)
	questions := make([]models.Question, len(nums))
	for i, num := range nums {
		questions[i] = models.Question{Number: num, Text: e.Questions[num]}
	}
	return questions
}
