package entity

import "time"

type QuestionType string

const (
	QuestionTypeSelect         QuestionType = "SELECT"
	QuestionTypeMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTypeText           QuestionType = "TEXT"
	QuestionTypeBoolean        QuestionType = "BOOLEAN"
)

type Poll struct {
	ID                    int64
	Title                 string
	Description           *string
	RequireIdentification bool
	IsOpen                bool
	CreatedBy             int64
	SemesterID            *int64
	ClassID               *int64
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type PollQuestion struct {
	ID           int64
	PollID       int64
	QuestionText string
	QuestionType QuestionType
	IsRequired   bool
	SortOrder    int
	Options      []PollQuestionOption
}

type PollQuestionOption struct {
	ID         int64
	QuestionID int64
	OptionText string
	SortOrder  int
}

// PollResponse is one raw answer row. Multi-select questions produce one row
// per selected option for the same respondent.
type PollResponse struct {
	ID               int64
	PollID           int64
	QuestionID       int64
	RespondentID     string
	SelectedOptionID *int64
	AnswerText       *string
	CreatedAt        time.Time
}
