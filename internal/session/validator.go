package session

import "quiz-session-service/internal/domain"

// Validation messages surfaced inline under the offending field.
const (
	msgFieldRequired  = "This field is required."
	msgPickOne        = "Please select an option."
	msgPickAtLeastOne = "Please select at least one option."
	msgNameRequired   = "Name is required."
	msgEmailRequired  = "Email is required."
)

// Synthetic error keys for the identity step.
const (
	FieldRespondentName  = "respondentName"
	FieldRespondentEmail = "respondentEmail"
)

// Validate checks a single question against the answer store and returns
// the error message for it, if any. Non-required questions never fail.
func Validate(q domain.Question, answers map[string]domain.AnswerValue) (string, bool) {
	if !q.Required {
		return "", false
	}
	answer := answers[q.ID]
	switch q.Kind {
	case domain.FreeText:
		if answer.Blank() {
			return msgFieldRequired, true
		}
	case domain.SingleChoice:
		if answer.Blank() {
			return msgPickOne, true
		}
	case domain.MultipleChoice:
		if !answer.Multi() || answer.Blank() {
			return msgPickAtLeastOne, true
		}
	}
	return "", false
}

// ValidateMany runs Validate over the given questions and returns a map
// containing only the failing ones.
func ValidateMany(questions []domain.Question, answers map[string]domain.AnswerValue) map[string]string {
	errs := make(map[string]string)
	for _, q := range questions {
		if msg, failed := Validate(q, answers); failed {
			errs[q.ID] = msg
		}
	}
	return errs
}
