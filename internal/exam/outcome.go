package exam

// Outcome is the computed result of a finished attempt. It is computed
// exactly once, at submission, and never recomputed afterward.
type Outcome struct {
	Score          int  `json:"score"`
	TotalQuestions int  `json:"total_questions"`
	Percentage     int  `json:"percentage"`
	Passed         bool `json:"passed"`

	Sections []SectionResult `json:"sections"`
}

// SectionResult is the per-section score breakdown, in first-seen
// section order.
type SectionResult struct {
	Section    string `json:"section"`
	Correct    int    `json:"correct"`
	Total      int    `json:"total"`
	Percentage int    `json:"percentage"`
}
