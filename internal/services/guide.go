package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"study-ai/internal/models"
)

const (
	// A single completion covering many questions risks truncated output,
	// so the review set is split into fixed-size batches. Fast mode uses
	// larger batches (fewer calls).
	guideBatchSizeFast = 10
	guideBatchSize     = 6

	// Cap on content units included in one batch prompt.
	maxPromptUnits = 10
	// Unit text is truncated to this many runes inside a prompt.
	maxUnitChars = 500

	guideDelimiter = "\n\n---\n\n"
)

// GuideService assembles the final study guide from per-batch completions.
type GuideService struct {
	ai *AIService
}

func NewGuideService(ai *AIService) *GuideService {
	return &GuideService{ai: ai}
}

// Assemble partitions the review questions into batches in ascending numeric
// order, generates each batch's guide section grounded in that batch's
// mapped content units, and concatenates the sections in batch order. Every
// input question lands in exactly one batch. A provider failure aborts the
// remaining batches; sections already generated are returned with the error.
func (s *GuideService) Assemble(
	ctx context.Context,
	topicAnalysis string,
	reviewSet []string,
	questionText map[string]string,
	slideMap models.QuestionSlideMap,
	fastMode bool,
) (models.StudyGuide, error) {
	ordered := append([]string{}, reviewSet...)
	models.SortQuestionNumbers(ordered)

	size := guideBatchSize
	if fastMode {
		size = guideBatchSizeFast
	}

	var guide models.StudyGuide
	for _, batch := range BatchQuestions(ordered, size) {
		prompt := s.batchPrompt(topicAnalysis, batch, questionText, slideMap, fastMode)
		text, err := s.ai.GenerateGuideBatch(ctx, prompt, fastMode)
		if err != nil {
			return guide, fmt.Errorf("generate guide for questions %s: %w", strings.Join(batch, ", "), err)
		}
		guide.Batches = append(guide.Batches, models.StudyGuideBatch{
			QuestionNumbers: batch,
			Text:            text,
		})
	}

	parts := make([]string, len(guide.Batches))
	for i, b := range guide.Batches {
		parts[i] = strings.TrimSpace(b.Text)
	}
	guide.Text = strings.Join(parts, guideDelimiter)
	return guide, nil
}

// BatchQuestions splits an ordered question list into consecutive batches of
// at most size questions.
func BatchQuestions(nums []string, size int) [][]string {
	if size <= 0 {
		size = guideBatchSize
	}
	var batches [][]string
	for start := 0; start < len(nums); start += size {
		end := start + size
		if end > len(nums) {
			end = len(nums)
		}
		batches = append(batches, nums[start:end])
	}
	return batches
}

func (s *GuideService) batchPrompt(
	topicAnalysis string,
	batch []string,
	questionText map[string]string,
	slideMap models.QuestionSlideMap,
	fastMode bool,
) string {
	style := "comprehensive"
	if fastMode {
		style = "concise"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Based on this practice test analysis and the relevant course material, create a %s study guide for questions %s.\n\n", style, strings.Join(batch, ", "))

	b.WriteString("Practice Test Analysis:\n")
	b.WriteString(topicAnalysis)
	b.WriteString("\n\nQuestions to cover:\n")
	for _, num := range batch {
		text := strings.TrimSpace(questionText[num])
		if text == "" {
			fmt.Fprintf(&b, "Question %s\n", num)
			continue
		}
		fmt.Fprintf(&b, "Question %s: %s\n", num, text)
	}

	b.WriteString("\nRelevant Course Material (from course slides):\n")
	b.WriteString(formatUnitsForPrompt(batch, slideMap, maxPromptUnits))

	b.WriteString(`
Create a personalized study guide that:
1. For EACH of the questions listed above:
   - Clearly state which slide(s) cover the required concept
   - Explain the concept in detail with examples from the slides
   - Highlight what was likely misunderstood
   - Provide step-by-step guidance on how to approach similar questions

2. Organize by question number, showing:
   - Question X -> Review Slide Y from [filename]
   - Key concept explanation
   - Common mistakes to avoid

3. Include a summary of priority slides to review

Format with clear headings, bullet points, and explicit slide references.`)
	return b.String()
}

// formatUnitsForPrompt flattens the units mapped to the batch's questions,
// grouped by document, capped at maxUnits to bound prompt size.
func formatUnitsForPrompt(batch []string, slideMap models.QuestionSlideMap, maxUnits int) string {
	type docUnits struct {
		name  string
		units []models.ContentUnit
	}

	byDoc := make(map[string][]models.ContentUnit)
	seen := make(map[string]bool)
	for _, num := range batch {
		for doc, units := range slideMap[num] {
			for _, unit := range units {
				if seen[unit.ID] {
					continue
				}
				seen[unit.ID] = true
				byDoc[doc] = append(byDoc[doc], unit)
			}
		}
	}
	if len(byDoc) == 0 {
		return "(no indexed course material matched these questions)\n"
	}

	docs := make([]docUnits, 0, len(byDoc))
	for name, units := range byDoc {
		sort.Slice(units, func(i, j int) bool { return units[i].Position < units[j].Position })
		docs = append(docs, docUnits{name: name, units: units})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].name < docs[j].name })

	var b strings.Builder
	count := 0
	for _, doc := range docs {
		if count >= maxUnits {
			break
		}
		fmt.Fprintf(&b, "\nFrom %s:\n", doc.name)
		for _, unit := range doc.units {
			if count >= maxUnits {
				break
			}
			fmt.Fprintf(&b, "\nSlide %d:\n%s\n", unit.Position, truncateRunes(unit.Text, maxUnitChars))
			count++
		}
	}
	return b.String()
}

func truncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
