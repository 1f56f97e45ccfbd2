package content

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"proctord/internal/exam"
)

const validJSONBank = `{
  "id": "kakunin",
  "title": "Placement Check",
  "duration_seconds": 1800,
  "passing_threshold": 70,
  "questions": [
    {
      "id": "q1",
      "section": "vocabulary",
      "prompt": "Select the reading.",
      "options": ["a", "b", "c", "d"],
      "correct": "a"
    },
    {
      "id": "q2",
      "section": "grammar",
      "prompt": "Select the particle.",
      "options": ["wa", "ga", "wo", "ni"],
      "correct": "ga",
      "explanation": "Subject marker."
    }
  ]
}`

const validYAMLBank = `id: jlpt_n5
title: JLPT N5 Practice
duration_seconds: 2700
passing_threshold: 60
questions:
  - id: n5-1
    section: vocabulary
    prompt: Choose the meaning.
    options: [cat, dog, bird, fish]
    correct: cat
  - id: n5-2
    section: reading
    prompt: Choose the kanji.
    options: ["日", "月", "火", "水"]
    correct: "月"
`

func writeBank(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write bank: %v", err)
	}
	return path
}

func TestOpenLoadsJSONAndYAML(t *testing.T) {
	dir := t.TempDir()
	writeBank(t, dir, "kakunin.json", validJSONBank)
	writeBank(t, dir, "n5.yaml", validYAMLBank)

	lib, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if n := len(lib.TestIDs()); n != 2 {
		t.Fatalf("expected 2 tests, got %d: %v", n, lib.TestIDs())
	}

	def, err := lib.Test("kakunin")
	if err != nil {
		t.Fatalf("Test(kakunin) failed: %v", err)
	}
	if def.Title != "Placement Check" {
		t.Errorf("title = %q", def.Title)
	}
	if def.Duration() != 30*time.Minute {
		t.Errorf("duration = %v, want 30m", def.Duration())
	}
	if def.PassingThreshold != 70 {
		t.Errorf("threshold = %d", def.PassingThreshold)
	}
	if len(def.Questions) != 2 {
		t.Errorf("expected 2 questions, got %d", len(def.Questions))
	}

	n5, err := lib.Test("jlpt_n5")
	if err != nil {
		t.Fatalf("Test(jlpt_n5) failed: %v", err)
	}
	if n5.PassingThreshold != 60 {
		t.Errorf("yaml threshold = %d, want 60", n5.PassingThreshold)
	}
	if n5.Questions[1].Correct != "月" {
		t.Errorf("yaml correct option = %q", n5.Questions[1].Correct)
	}
}

func TestOpenUnknownTest(t *testing.T) {
	dir := t.TempDir()
	writeBank(t, dir, "kakunin.json", validJSONBank)

	lib, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if _, err := lib.Test("missing"); !errors.Is(err, ErrUnknownTest) {
		t.Errorf("expected ErrUnknownTest, got %v", err)
	}
}

func TestOpenMissingDirectory(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "nope"), nil); err == nil {
		t.Error("unreadable bank directory should be an error")
	}
}

func TestOpenSkipsInvalidBank(t *testing.T) {
	dir := t.TempDir()
	writeBank(t, dir, "good.json", validJSONBank)
	writeBank(t, dir, "broken.json", `{"id": "broken"`)
	writeBank(t, dir, "no_questions.json", `{
		"id": "empty", "duration_seconds": 600, "passing_threshold": 50,
		"questions": []
	}`)

	lib, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	// One valid bank survives; the invalid ones are skipped, not fatal.
	if n := len(lib.TestIDs()); n != 1 {
		t.Errorf("expected 1 test, got %d: %v", n, lib.TestIDs())
	}
}

func TestOpenIgnoresNonBankFiles(t *testing.T) {
	dir := t.TempDir()
	writeBank(t, dir, "kakunin.json", validJSONBank)
	writeBank(t, dir, "README.md", "# banks")
	writeBank(t, dir, "notes.txt", "ignore me")

	lib, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if n := len(lib.TestIDs()); n != 1 {
		t.Errorf("expected 1 test, got %d", n)
	}
}

func TestValidateRejectsBadBanks(t *testing.T) {
	tests := []struct {
		name string
		def  TestDefinition
	}{
		{"missing id", TestDefinition{DurationSeconds: 600, PassingThreshold: 50,
			Questions: validQuestions()}},
		{"zero duration", TestDefinition{ID: "t", PassingThreshold: 50,
			Questions: validQuestions()}},
		{"threshold above 100", TestDefinition{ID: "t", DurationSeconds: 600,
			PassingThreshold: 150, Questions: validQuestions()}},
		{"no questions", TestDefinition{ID: "t", DurationSeconds: 600,
			PassingThreshold: 50}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.def.validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func validQuestions() []exam.Question {
	return []exam.Question{
		{ID: "q1", Section: "s", Prompt: "p", Options: []string{"a", "b"}, Correct: "a"},
	}
}

func TestValidateRejectsDuplicateQuestionIDs(t *testing.T) {
	def := TestDefinition{
		ID: "t", DurationSeconds: 600, PassingThreshold: 50,
		Questions: []exam.Question{
			{ID: "q1", Section: "s", Prompt: "p", Options: []string{"a", "b"}, Correct: "a"},
			{ID: "q1", Section: "s", Prompt: "p", Options: []string{"a", "b"}, Correct: "b"},
		},
	}
	if err := def.validate(); err == nil {
		t.Error("duplicate question IDs should be rejected")
	}
}

func TestValidateRejectsCorrectOptionMissing(t *testing.T) {
	def := TestDefinition{
		ID: "t", DurationSeconds: 600, PassingThreshold: 50,
		Questions: []exam.Question{
			{ID: "q1", Section: "s", Prompt: "p", Options: []string{"a", "b"}, Correct: "z"},
		},
	}
	if err := def.validate(); err == nil {
		t.Error("correct option missing from option list should be rejected")
	}
}

func TestReloadKeepsPreviousGoodVersion(t *testing.T) {
	dir := t.TempDir()
	path := writeBank(t, dir, "kakunin.json", validJSONBank)

	lib, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	// Corrupt the bank on disk; a reload skips it and the previous
	// version stays served.
	if err := os.WriteFile(path, []byte("{broken"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := lib.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	def, err := lib.Test("kakunin")
	if err != nil {
		t.Fatalf("previous version should still be served: %v", err)
	}
	if def.Title != "Placement Check" {
		t.Errorf("unexpected title after reload: %q", def.Title)
	}
}

func TestSchemaRejectsWrongTypes(t *testing.T) {
	dir := t.TempDir()
	writeBank(t, dir, "bad.json", `{
		"id": "bad", "duration_seconds": "half an hour",
		"passing_threshold": 70,
		"questions": [{"id": "q1", "section": "s", "prompt": "p",
			"options": ["a", "b"], "correct": "a"}]
	}`)

	lib, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if len(lib.TestIDs()) != 0 {
		t.Error("schema should reject a non-integer duration")
	}
}
