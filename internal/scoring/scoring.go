// Package scoring turns final answers into a score, pass/fail verdict,
// and per-section breakdown.
//
// Score is a pure function: no side effects, deterministic, idempotent.
// Both the voluntary and forced-termination submission paths call it
// exactly once, but it can be called standalone at any time.
package scoring

import (
	"math"

	"proctord/internal/exam"
)

// Score computes the outcome for the given questions and answers
// against a passing threshold expressed as a percentage.
//
// Correctness is exact string equality between the selected option and
// the question's correct option; an unanswered question is never
// correct. The section breakdown preserves first-seen section order.
func Score(questions []exam.Question, answers []exam.AnswerRecord, passingThreshold int) *exam.Outcome {
	total := len(questions)
	correct := 0

	sectionIndex := make(map[string]int)
	sections := make([]exam.SectionResult, 0)

	for i, q := range questions {
		idx, ok := sectionIndex[q.Section]
		if !ok {
			idx = len(sections)
			sectionIndex[q.Section] = idx
			sections = append(sections, exam.SectionResult{Section: q.Section})
		}
		sections[idx].Total++

		if i >= len(answers) {
			continue
		}
		a := answers[i]
		if a.Answered && a.Selected == q.Correct {
			correct++
			sections[idx].Correct++
		}
	}

	for i := range sections {
		sections[i].Percentage = percentage(sections[i].Correct, sections[i].Total)
	}

	pct := percentage(correct, total)
	return &exam.Outcome{
		Score:          correct,
		TotalQuestions: total,
		Percentage:     pct,
		Passed:         pct >= passingThreshold,
		Sections:       sections,
	}
}

func percentage(correct, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(correct) / float64(total)))
}
