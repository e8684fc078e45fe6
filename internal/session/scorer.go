package session

import "quiz-session-service/internal/domain"

// Score grades the answer store against the quiz's objective questions.
// Free-text questions are excluded from the total and cannot affect the
// percentage. A quiz with no objective questions scores 0%.
func Score(questions []domain.Question, answers map[string]domain.AnswerValue) domain.ScoreSummary {
	var correct, total int
	for _, q := range questions {
		if !q.Objective() {
			continue
		}
		total++
		if answeredCorrectly(q, answers[q.ID]) {
			correct++
		}
	}

	summary := domain.ScoreSummary{Correct: correct, Total: total}
	if total > 0 {
		summary.Percent = float64(correct) / float64(total) * 100
	}
	return summary
}

func answeredCorrectly(q domain.Question, answer domain.AnswerValue) bool {
	switch q.Kind {
	case domain.SingleChoice:
		return !answer.Multi() && answer.Text == q.CorrectOption && q.CorrectOption != ""
	case domain.MultipleChoice:
		return setsEqual(answer.Choices, q.CorrectOptions)
	}
	return false
}

// setsEqual compares two selections as sets: same cardinality and every
// chosen value present among the correct ones, order-independent.
func setsEqual(chosen, correct []string) bool {
	if len(chosen) == 0 || len(chosen) != len(correct) {
		return false
	}
	want := make(map[string]struct{}, len(correct))
	for _, c := range correct {
		want[c] = struct{}{}
	}
	for _, c := range chosen {
		if _, ok := want[c]; !ok {
			return false
		}
	}
	return true
}
