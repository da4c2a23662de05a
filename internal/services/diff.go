package services

import (
	"strings"

	"study-ai/internal/models"
)

// SelectPolicy decides once per analysis which diff branch applies, from
// which of the answer key and learner answers carry any non-empty values.
func SelectPolicy(key, learner models.AnswerMap) models.ReviewPolicy {
	hasKey := hasAnswers(key)
	hasLearner := hasAnswers(learner)
	switch {
	case hasKey && hasLearner:
		return models.PolicyBothPresent
	case hasKey:
		return models.PolicyKeyOnly
	case hasLearner:
		return models.PolicyAnswersOnly
	default:
		return models.PolicyNeither
	}
}

func hasAnswers(m models.AnswerMap) bool {
	for _, v := range m {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

// Diff grades the learner against the answer key and derives the review set
// the pipeline will remediate.
//
// Grading covers only questions keyed with a non-empty value: a matching
// learner answer (case-insensitive) is correct, a differing one is wrong,
// and a missing one is unanswered (counted as incorrect for the score).
// Questions absent from the key are never graded, even when answered.
//
// The fallback ladder guarantees a non-empty review set whenever any
// question exists: with both maps, review = wrong + unanswered; with only a
// key, every keyed question needs review; with only learner answers or
// neither, every extracted question needs review.
func Diff(questions []models.Question, key, learner models.AnswerMap) models.DiffResult {
	result := models.DiffResult{
		Policy:   SelectPolicy(key, learner),
		Outcomes: make(map[string]models.Outcome),
	}

	switch result.Policy {
	case models.PolicyBothPresent, models.PolicyKeyOnly:
		for num, want := range key {
			want = strings.TrimSpace(want)
			if want == "" {
				continue
			}
			result.TotalGraded++
			got := strings.TrimSpace(learner[num])
			switch {
			case got == "":
				result.Outcomes[num] = models.OutcomeUnanswered
				result.Unanswered = append(result.Unanswered, num)
			case strings.EqualFold(got, want):
				result.Outcomes[num] = models.OutcomeCorrect
				result.CorrectCount++
			default:
				result.Outcomes[num] = models.OutcomeWrong
				result.Wrong = append(result.Wrong, num)
			}
		}
	}

	if result.TotalGraded > 0 {
		result.ScorePercent = float64(result.CorrectCount) / float64(result.TotalGraded) * 100
	}

	switch result.Policy {
	case models.PolicyBothPresent:
		result.ReviewSet = append(append([]string{}, result.Wrong...), result.Unanswered...)
	case models.PolicyKeyOnly:
		for num, want := range key {
			if strings.TrimSpace(want) != "" {
				result.ReviewSet = append(result.ReviewSet, num)
			}
		}
	default:
		// Without a key there is nothing to grade; every extracted question
		// needs review.
		for _, q := range questions {
			result.ReviewSet = append(result.ReviewSet, q.Number)
		}
	}

	models.SortQuestionNumbers(result.Wrong)
	models.SortQuestionNumbers(result.Unanswered)
	models.SortQuestionNumbers(result.ReviewSet)
	return result
}

// MergeFlagged adds caller-flagged question numbers to a review set. Flagged
// questions join even when unkeyed (explicit selection overrides grading).
func MergeFlagged(reviewSet, flagged []string) []string {
	present := make(map[string]bool, len(reviewSet))
	merged := append([]string{}, reviewSet...)
	for _, num := range reviewSet {
		present[num] = true
	}
	for _, num := range flagged {
		num = strings.TrimSpace(num)
		if num == "" || present[num] {
			continue
		}
		present[num] = true
		merged = append(merged, num)
	}
	models.SortQuestionNumbers(merged)
	return merged
}
