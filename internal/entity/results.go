package entity

import "time"

// PollResults is the aggregated view of all responses to a poll.
type PollResults struct {
	PollID           int64             `json:"poll_id"`
	Title            string            `json:"title"`
	TotalRespondents int               `json:"total_respondents"`
	Questions        []QuestionResults `json:"questions"`
}

// QuestionResults carries per-question tallies. TotalResponses counts distinct
// respondents who answered this question, not raw rows.
type QuestionResults struct {
	QuestionID      int64         `json:"question_id"`
	QuestionText    string        `json:"question_text"`
	QuestionType    QuestionType  `json:"question_type"`
	TotalResponses  int           `json:"total_responses"`
	Options         []OptionCount `json:"options,omitempty"`
	TextAnswers     []TextAnswer  `json:"text_answers,omitempty"`
	TrueCount       int           `json:"true_count,omitempty"`
	FalseCount      int           `json:"false_count,omitempty"`
	TruePercentage  float64       `json:"true_percentage,omitempty"`
	FalsePercentage float64       `json:"false_percentage,omitempty"`
}

type OptionCount struct {
	OptionID   int64   `json:"option_id"`
	OptionText string  `json:"option_text"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type TextAnswer struct {
	ResponseID int64     `json:"response_id"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
}
