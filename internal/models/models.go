package models

import (
	"sort"
	"strconv"
	"time"
)

type DocumentType string

const (
	DocumentMaterial DocumentType = "material"
	DocumentTest     DocumentType = "test"
)

// UnitType distinguishes chunked free text from per-slide units.
type UnitType string

const (
	UnitText  UnitType = "text"
	UnitSlide UnitType = "slide"
)

// Document is an uploaded file tracked in the registry. StoredPath is the
// server-side copy; OriginalName is what the user uploaded and what content
// units display.
type Document struct {
	ID           int64
	OriginalName string
	StoredPath   string
	Type         DocumentType
	PageCount    int
	UploadedAt   time.Time
}

// ContentUnit is one indexed piece of course material: a text chunk or a
// single slide. Identity derives from (SourceDocument, Position); units are
// never mutated after ingestion.
type ContentUnit struct {
	ID             string
	Text           string
	SourceDocument string
	Position       int
	Type           UnitType
	DisplayName    string
}

// Question is one extracted practice-test question. Number stays a string
// for stable map keys; use QuestionLess for numeric ordering.
type Question struct {
	Number string
	Text   string
}

// AnswerMap maps a stringified question number to a short answer token
// (typically a choice letter). Either the key or the learner side may be
// empty when the source document omits it.
type AnswerMap map[string]string

// ReviewPolicy records which of the answer key / learner answers were
// available when an analysis was diffed. Selected once per analysis.
type ReviewPolicy string

const (
	PolicyBothPresent ReviewPolicy = "both_present"
	PolicyKeyOnly     ReviewPolicy = "key_only"
	PolicyAnswersOnly ReviewPolicy = "answers_only"
	PolicyNeither     ReviewPolicy = "neither"
)

// Outcome classifies one graded question.
type Outcome string

const (
	OutcomeCorrect    Outcome = "correct"
	OutcomeWrong      Outcome = "wrong"
	OutcomeUnanswered Outcome = "unanswered"
)

// DiffResult is the per-analysis grading summary. Derived data, recomputed
// on every run.
type DiffResult struct {
	Policy       ReviewPolicy
	Outcomes     map[string]Outcome
	TotalGraded  int
	CorrectCount int
	Wrong        []string
	Unanswered   []string
	ScorePercent float64
	// ReviewSet holds the question numbers the pipeline will remediate.
	// Never empty when at least one question was extracted.
	ReviewSet []string
}

// QuestionSlideMap maps a question number to the content units matched for
// it, grouped by source document and ordered by position within each group.
type QuestionSlideMap map[string]map[string][]ContentUnit

// StudyGuideBatch is the generated text for one contiguous batch of review
// questions.
type StudyGuideBatch struct {
	QuestionNumbers []string
	Text            string
}

// StudyGuide is the ordered concatenation of batch outputs.
type StudyGuide struct {
	Batches []StudyGuideBatch
	Text    string
}

// Analysis is a persisted practice-test analysis run.
type Analysis struct {
	ID            int64
	TestName      string
	Policy        ReviewPolicy
	ScorePercent  float64
	TotalGraded   int
	QuestionCount int
	TopicAnalysis string
	Guide         string
	DurationSecs  int
	EstimateSecs  int
	CreatedAt     time.Time
}

// QuestionLess orders stringified question numbers numerically, falling
// back to lexical order for non-numeric values.
func QuestionLess(a, b string) bool {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		return ai < bi
	}
	if aerr == nil {
		return true
	}
	if berr == nil {
		return false
	}
	return a < b
}

// SortQuestionNumbers sorts in place in ascending numeric order.
func SortQuestionNumbers(nums []string) {
	sort.Slice(nums, func(i, j int) bool { return QuestionLess(nums[i], nums[j]) })
}
