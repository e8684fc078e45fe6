package domain

import (
	"encoding/json"
	"strings"
)

// QuizKind distinguishes scored assessments from unscored surveys.
type QuizKind string

const (
	KindAssessment QuizKind = "ASSESSMENT"
	KindSurvey     QuizKind = "SURVEY"
)

// QuizStatus mirrors the publishing lifecycle of the authoring side.
// Only PUBLISHED quizzes accept respondent sessions.
type QuizStatus string

const (
	StatusDraft     QuizStatus = "DRAFT"
	StatusPublished QuizStatus = "PUBLISHED"
	StatusClosed    QuizStatus = "CLOSED"
)

// QuestionKind determines the input control and the answer value shape.
type QuestionKind string

const (
	FreeText       QuestionKind = "TEXT"
	SingleChoice   QuestionKind = "SINGLE_CHOICE"
	MultipleChoice QuestionKind = "MULTIPLE_CHOICE"
)

// Question is one prompt within a quiz. Correctness data is only
// meaningful for choice kinds on assessment quizzes.
type Question struct {
	ID             string       `json:"id"`
	Text           string       `json:"text"`
	Kind           QuestionKind `json:"type"`
	Required       bool         `json:"required"`
	Options        []string     `json:"options,omitempty"`
	CorrectOption  string       `json:"correctOption,omitempty"`
	CorrectOptions []string     `json:"correctOptions,omitempty"`
	Order          int          `json:"order"`
}

// Objective reports whether the question has a checkable correct answer.
func (q Question) Objective() bool {
	return q.Kind == SingleChoice || q.Kind == MultipleChoice
}

// Quiz is the definition a respondent session runs against.
type Quiz struct {
	ID               string     `json:"id"`
	Slug             string     `json:"slug,omitempty"`
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	Kind             QuizKind   `json:"type"`
	Status           QuizStatus `json:"status"`
	Anonymous        bool       `json:"anonymous"`
	TimeLimitMinutes int        `json:"timeLimit,omitempty"`
	Questions        []Question `json:"questions"`
}

// Timed reports whether the quiz runs under a countdown deadline.
func (q Quiz) Timed() bool {
	return q.TimeLimitMinutes > 0
}

// Runnable validates the definition before a session may start: at least
// one question, and every choice question carries two or more distinct
// options.
func (q Quiz) Runnable() error {
	if len(q.Questions) == 0 {
		return ErrNoQuestions
	}
	for _, question := range q.Questions {
		if question.Kind == FreeText {
			continue
		}
		seen := make(map[string]struct{}, len(question.Options))
		for _, opt := range question.Options {
			seen[opt] = struct{}{}
		}
		if len(seen) < 2 {
			return ErrBadDefinition
		}
	}
	return nil
}

// AnswerValue is the union of the two answer shapes: a single string for
// TEXT and SINGLE_CHOICE questions, a list of selections for
// MULTIPLE_CHOICE. The zero value means "not answered".
type AnswerValue struct {
	Text    string
	Choices []string
	multi   bool
}

// TextAnswer builds a single-string answer value.
func TextAnswer(s string) AnswerValue {
	return AnswerValue{Text: s}
}

// ChoicesAnswer builds a multi-selection answer value.
func ChoicesAnswer(selected []string) AnswerValue {
	return AnswerValue{Choices: selected, multi: true}
}

// Multi reports whether the value carries a selection list.
func (v AnswerValue) Multi() bool { return v.multi }

// Blank reports whether the value counts as unanswered for requiredness
// checks: blank-after-trim text, or an empty selection list.
func (v AnswerValue) Blank() bool {
	if v.multi {
		return len(v.Choices) == 0
	}
	return strings.TrimSpace(v.Text) == ""
}

// MarshalJSON encodes the value the way the admin API expects: a plain
// string for single-valued answers, an array for multi-selections.
func (v AnswerValue) MarshalJSON() ([]byte, error) {
	if v.multi {
		choices := v.Choices
		if choices == nil {
			choices = []string{}
		}
		return json.Marshal(choices)
	}
	return json.Marshal(v.Text)
}

// UnmarshalJSON accepts either wire shape.
func (v *AnswerValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = TextAnswer(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*v = ChoicesAnswer(list)
	return nil
}

// Answer pairs a question with the respondent's value in the submission
// payload.
type Answer struct {
	QuestionID string      `json:"questionId"`
	Value      AnswerValue `json:"value"`
}

// ScoreSummary is the scoring result over a quiz's objective questions.
type ScoreSummary struct {
	Percent float64 `json:"score"`
	Correct int     `json:"correct"`
	Total   int     `json:"total"`
}

// Submission is the final payload handed to the submission sink. Name and
// email are empty for anonymous quizzes; ScorePercent is nil for surveys.
type Submission struct {
	Answers         []Answer `json:"answers"`
	RespondentName  string   `json:"respondentName,omitempty"`
	RespondentEmail string   `json:"respondentEmail,omitempty"`
	ElapsedSeconds  int      `json:"completingTime"`
	ScorePercent    *float64 `json:"score,omitempty"`
}
