package exam

// AnswerRecord is the per-question answer state. The zero value is the
// initial state for every question: unanswered and unflagged.
type AnswerRecord struct {
	Selected string `json:"selected"`
	Answered bool   `json:"answered"`
	Flagged  bool   `json:"flagged"`
}

// AnswerSheet holds exactly one AnswerRecord per question, in question
// order. It is pure data: not safe for concurrent use on its own; the
// session engine serializes all access.
type AnswerSheet struct {
	records []AnswerRecord
}

// NewAnswerSheet returns a sheet with n blank records.
func NewAnswerSheet(n int) *AnswerSheet {
	return &AnswerSheet{records: make([]AnswerRecord, n)}
}

// Len returns the number of records.
func (s *AnswerSheet) Len() int {
	return len(s.records)
}

// Set records the selected option for question index. Re-answering
// overwrites the previous selection.
func (s *AnswerSheet) Set(index int, option string) error {
	if index < 0 || index >= len(s.records) {
		return ErrInvalidQuestion
	}
	s.records[index].Selected = option
	s.records[index].Answered = true
	return nil
}

// ToggleFlag flips the review flag for question index.
func (s *AnswerSheet) ToggleFlag(index int) error {
	if index < 0 || index >= len(s.records) {
		return ErrInvalidQuestion
	}
	s.records[index].Flagged = !s.records[index].Flagged
	return nil
}

// Get returns the record for question index.
func (s *AnswerSheet) Get(index int) (AnswerRecord, error) {
	if index < 0 || index >= len(s.records) {
		return AnswerRecord{}, ErrInvalidQuestion
	}
	return s.records[index], nil
}

// Records returns a copy of all records, in question order.
func (s *AnswerSheet) Records() []AnswerRecord {
	out := make([]AnswerRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Unanswered returns the number of questions with no selection.
func (s *AnswerSheet) Unanswered() int {
	n := 0
	for _, r := range s.records {
		if !r.Answered {
			n++
		}
	}
	return n
}

// Flagged returns the number of questions flagged for review.
func (s *AnswerSheet) Flagged() int {
	n := 0
	for _, r := range s.records {
		if r.Flagged {
			n++
		}
	}
	return n
}
