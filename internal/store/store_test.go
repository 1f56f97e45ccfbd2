package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proctord/internal/exam"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "attempts.db"), []byte("test-secret-0123456789abcdef"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func finishedAttempt(testID string, status exam.AttemptStatus) *exam.Attempt {
	questions := []exam.Question{
		{ID: "q1", Section: "vocabulary", Prompt: "p", Options: []string{"a", "b"}, Correct: "a"},
		{ID: "q2", Section: "grammar", Prompt: "p", Options: []string{"a", "b"}, Correct: "b"},
	}
	a := exam.NewAttempt(testID, questions, 30*time.Minute)
	a.Answers.Set(0, "a")
	a.Answers.ToggleFlag(1)
	a.Status = status
	a.TimeSpent = 12 * time.Minute
	a.Outcome = &exam.Outcome{
		Score:          1,
		TotalQuestions: 2,
		Percentage:     50,
		Passed:         false,
		Sections: []exam.SectionResult{
			{Section: "vocabulary", Correct: 1, Total: 1, Percentage: 100},
			{Section: "grammar", Correct: 0, Total: 1, Percentage: 0},
		},
	}
	a.RecordViolation(exam.Violation{
		Type:      exam.ViolationTabSwitch,
		Detail:    "Exam surface hidden or minimized.",
		Timestamp: time.Now(),
		Counted:   true,
	})
	a.RecordViolation(exam.Violation{
		Type:      exam.ViolationWindowBlur,
		Detail:    "Exam surface lost foreground focus.",
		Timestamp: time.Now().Add(100 * time.Millisecond),
		Counted:   false,
	})
	return a
}

func TestRecordAndHistory(t *testing.T) {
	s := openTestStore(t)

	a := finishedAttempt("kakunin", exam.StatusCompleted)
	require.NoError(t, s.Record(a))

	history, err := s.History("", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)

	sum := history[0]
	assert.Equal(t, a.ID, sum.ID)
	assert.Equal(t, "kakunin", sum.TestID)
	assert.Equal(t, exam.StatusCompleted, sum.Status)
	assert.Equal(t, 1, sum.Score)
	assert.Equal(t, 2, sum.TotalQuestions)
	assert.Equal(t, 50, sum.Percentage)
	assert.False(t, sum.Passed)
	assert.Equal(t, 12*60, sum.TimeSpentSeconds)
	assert.Equal(t, 2, sum.Violations)
}

func TestRecordRejectsUnfinished(t *testing.T) {
	s := openTestStore(t)

	a := finishedAttempt("kakunin", exam.StatusInProgress)
	require.ErrorIs(t, s.Record(a), ErrNotFinished)

	b := finishedAttempt("kakunin", exam.StatusCompleted)
	b.Outcome = nil
	require.ErrorIs(t, s.Record(b), ErrNotFinished)

	require.ErrorIs(t, s.Record(nil), ErrNotFinished)
}

func TestHistoryFilterAndOrder(t *testing.T) {
	s := openTestStore(t)

	first := finishedAttempt("kakunin", exam.StatusCompleted)
	first.StartedAt = time.Now().Add(-2 * time.Hour)
	require.NoError(t, s.Record(first))

	second := finishedAttempt("kakunin", exam.StatusTerminated)
	second.StartedAt = time.Now().Add(-time.Hour)
	require.NoError(t, s.Record(second))

	other := finishedAttempt("jlpt_n5", exam.StatusCompleted)
	require.NoError(t, s.Record(other))

	history, err := s.History("kakunin", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)

	// Newest first.
	assert.Equal(t, second.ID, history[0].ID)
	assert.Equal(t, first.ID, history[1].ID)

	all, err := s.History("", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	limited, err := s.History("", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestHistoryEmptyStore(t *testing.T) {
	s := openTestStore(t)

	history, err := s.History("", 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestViolationsRoundTrip(t *testing.T) {
	s := openTestStore(t)

	a := finishedAttempt("kakunin", exam.StatusTerminated)
	require.NoError(t, s.Record(a))

	violations, err := s.Violations(a.ID)
	require.NoError(t, err)
	require.Len(t, violations, 2)

	// Oldest first; Counted survives the round trip.
	assert.Equal(t, exam.ViolationTabSwitch, violations[0].Type)
	assert.True(t, violations[0].Counted)
	assert.Equal(t, exam.ViolationWindowBlur, violations[1].Type)
	assert.False(t, violations[1].Counted)
	assert.Equal(t, "Exam surface hidden or minimized.", violations[0].Detail)
}

func TestViolationsUnknownAttempt(t *testing.T) {
	s := openTestStore(t)

	violations, err := s.Violations("nonexistent")
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestVerifyValidRecord(t *testing.T) {
	s := openTestStore(t)

	a := finishedAttempt("kakunin", exam.StatusCompleted)
	require.NoError(t, s.Record(a))

	ok, err := s.Verify(a.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyDetectsTampering(t *testing.T) {
	s := openTestStore(t)

	a := finishedAttempt("kakunin", exam.StatusCompleted)
	require.NoError(t, s.Record(a))

	// Inflate the stored score behind the HMAC's back.
	_, err := s.db.Exec(`UPDATE attempts SET score = 2, percentage = 100, passed = 1 WHERE id = ?`, a.ID)
	require.NoError(t, err)

	ok, err := s.Verify(a.ID)
	require.NoError(t, err)
	assert.False(t, ok, "tampered record must fail verification")
}

func TestVerifyUnknownAttempt(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Verify("nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVerifyAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "attempts.db")
	secret := []byte("stable-secret-0123456789abcdef")

	s, err := Open(path, secret)
	require.NoError(t, err)

	a := finishedAttempt("kakunin", exam.StatusCompleted)
	require.NoError(t, s.Record(a))
	require.NoError(t, s.Close())

	// Same secret: verification still passes after a restart.
	s2, err := Open(path, secret)
	require.NoError(t, err)
	defer s2.Close()

	ok, err := s2.Verify(a.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyFailsWithDifferentSecret(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "attempts.db")

	s, err := Open(path, []byte("first-secret-0123456789abcdef"))
	require.NoError(t, err)

	a := finishedAttempt("kakunin", exam.StatusCompleted)
	require.NoError(t, s.Record(a))
	require.NoError(t, s.Close())

	s2, err := Open(path, []byte("other-secret-0123456789abcdef"))
	require.NoError(t, err)
	defer s2.Close()

	ok, err := s2.Verify(a.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRecordDuplicateAttemptID(t *testing.T) {
	s := openTestStore(t)

	a := finishedAttempt("kakunin", exam.StatusCompleted)
	require.NoError(t, s.Record(a))

	err := s.Record(a)
	assert.Error(t, err, "primary key must reject a duplicate attempt")
}

func TestRecordPersistsAnswers(t *testing.T) {
	s := openTestStore(t)

	a := finishedAttempt("kakunin", exam.StatusCompleted)
	require.NoError(t, s.Record(a))

	rows, err := s.db.Query(`
		SELECT question_idx, question_id, selected, answered, flagged
		FROM answers WHERE attempt_id = ? ORDER BY question_idx`, a.ID)
	require.NoError(t, err)
	defer rows.Close()

	type row struct {
		idx               int
		qid               string
		selected          any
		answered, flagged int
	}
	var got []row
	for rows.Next() {
		var r row
		require.NoError(t, rows.Scan(&r.idx, &r.qid, &r.selected, &r.answered, &r.flagged))
		got = append(got, r)
	}
	require.NoError(t, rows.Err())
	require.Len(t, got, 2)

	assert.Equal(t, "q1", got[0].qid)
	assert.Equal(t, 1, got[0].answered)
	assert.Equal(t, "q2", got[1].qid)
	assert.Equal(t, 0, got[1].answered)
	assert.Equal(t, 1, got[1].flagged)
	assert.Nil(t, got[1].selected, "unanswered question stores NULL selection")
}

func TestPing(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Ping(context.Background()))
}
