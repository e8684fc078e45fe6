package session

import (
	"testing"

	"quiz-session-service/internal/domain"
)

func TestScoreExcludesFreeText(t *testing.T) {
	questions := []domain.Question{
		{ID: "q1", Kind: domain.SingleChoice, CorrectOption: "A", Options: []string{"A", "B"}},
		{ID: "q2", Kind: domain.FreeText},
	}
	answers := map[string]domain.AnswerValue{
		"q1": domain.TextAnswer("A"),
		"q2": domain.TextAnswer("anything at all"),
	}

	got := Score(questions, answers)
	if got.Total != 1 || got.Correct != 1 || got.Percent != 100 {
		t.Fatalf("expected 1/1 = 100%%, got %+v", got)
	}
}

func TestScoreZeroObjectiveQuestions(t *testing.T) {
	questions := []domain.Question{
		{ID: "q1", Kind: domain.FreeText},
	}

	got := Score(questions, nil)
	if got.Total != 0 || got.Percent != 0 {
		t.Fatalf("expected 0%% for zero objective questions, got %+v", got)
	}
}

func TestScoreSingleChoiceExactMatch(t *testing.T) {
	questions := []domain.Question{
		{ID: "q1", Kind: domain.SingleChoice, CorrectOption: "Paris", Options: []string{"Paris", "Lyon"}},
	}

	cases := []struct {
		name   string
		answer domain.AnswerValue
		want   int
	}{
		{"exact", domain.TextAnswer("Paris"), 1},
		{"case differs", domain.TextAnswer("paris"), 0},
		{"unanswered", domain.AnswerValue{}, 0},
	}
	for _, tc := range cases {
		got := Score(questions, map[string]domain.AnswerValue{"q1": tc.answer})
		if got.Correct != tc.want {
			t.Fatalf("%s: expected correct=%d, got %+v", tc.name, tc.want, got)
		}
	}
}

func TestScoreMultipleChoiceSetEquality(t *testing.T) {
	questions := []domain.Question{
		{ID: "q1", Kind: domain.MultipleChoice, CorrectOptions: []string{"B", "A"}, Options: []string{"A", "B", "C"}},
	}

	cases := []struct {
		name   string
		chosen []string
		want   int
	}{
		{"same set different order", []string{"A", "B"}, 1},
		{"subset", []string{"A"}, 0},
		{"superset", []string{"A", "B", "C"}, 0},
		{"disjoint", []string{"C"}, 0},
		{"empty", nil, 0},
	}
	for _, tc := range cases {
		answers := map[string]domain.AnswerValue{"q1": domain.ChoicesAnswer(tc.chosen)}
		got := Score(questions, answers)
		if got.Correct != tc.want {
			t.Fatalf("%s: expected correct=%d, got %+v", tc.name, tc.want, got)
		}
	}
}

func TestScorePercentageRatio(t *testing.T) {
	questions := []domain.Question{
		{ID: "q1", Kind: domain.SingleChoice, CorrectOption: "A", Options: []string{"A", "B"}},
		{ID: "q2", Kind: domain.SingleChoice, CorrectOption: "A", Options: []string{"A", "B"}},
		{ID: "q3", Kind: domain.SingleChoice, CorrectOption: "A", Options: []string{"A", "B"}},
		{ID: "q4", Kind: domain.SingleChoice, CorrectOption: "A", Options: []string{"A", "B"}},
	}
	answers := map[string]domain.AnswerValue{
		"q1": domain.TextAnswer("A"),
		"q2": domain.TextAnswer("B"),
		"q3": domain.TextAnswer("A"),
		"q4": domain.TextAnswer("A"),
	}

	got := Score(questions, answers)
	if got.Correct != 3 || got.Total != 4 || got.Percent != 75 {
		t.Fatalf("expected 3/4 = 75%%, got %+v", got)
	}
}
