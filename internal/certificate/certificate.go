// Package certificate decides certificate eligibility for finished
// attempts and builds the payload handed to the external renderer.
//
// Rendering and delivery are the certificate collaborator's concern;
// this package only enforces the eligibility rule: completed and
// passed. A terminated attempt is never eligible, regardless of its
// computed score.
package certificate

import (
	"errors"
	"time"

	"proctord/internal/exam"
)

// ErrNotEligible is returned when a certificate is requested for an
// ineligible attempt.
var ErrNotEligible = errors.New("certificate: attempt not eligible")

// Certificate is the renderer payload for an eligible attempt.
type Certificate struct {
	AttemptID  string    `json:"attempt_id"`
	TestID     string    `json:"test_id"`
	Recipient  string    `json:"recipient"`
	Score      int       `json:"score"`
	Total      int       `json:"total"`
	Percentage int       `json:"percentage"`
	IssuedAt   time.Time `json:"issued_at"`
}

// Eligible reports whether the attempt qualifies for certificate
// issuance.
func Eligible(a *exam.Attempt) bool {
	if a == nil || a.Outcome == nil {
		return false
	}
	return a.Status == exam.StatusCompleted && a.Outcome.Passed
}

// Build creates the certificate payload for an eligible attempt.
func Build(a *exam.Attempt, recipient string) (*Certificate, error) {
	if !Eligible(a) {
		return nil, ErrNotEligible
	}
	return &Certificate{
		AttemptID:  a.ID,
		TestID:     a.TestID,
		Recipient:  recipient,
		Score:      a.Outcome.Score,
		Total:      a.Outcome.TotalQuestions,
		Percentage: a.Outcome.Percentage,
		IssuedAt:   time.Now(),
	}, nil
}
