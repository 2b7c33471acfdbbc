package polls

import (
	"github.com/classchain/classchain/internal/entity"
)

// Aggregate computes per-question tallies for a poll. Percentages are taken
// over the distinct respondents who answered that question, not over the
// poll's total respondents, so partially answered questions report accurate
// participation. Multi-select questions produce several rows per respondent;
// counting distinct respondents keeps the denominators honest.
//
// Text answers are included only when includeText is set; the public results
// view suppresses them entirely.
func Aggregate(poll entity.Poll, questions []entity.PollQuestion, responses []entity.PollResponse, includeText bool) entity.PollResults {
	byQuestion := make(map[int64][]entity.PollResponse)
	allRespondents := make(map[string]struct{})
	for _, r := range responses {
		byQuestion[r.QuestionID] = append(byQuestion[r.QuestionID], r)
		allRespondents[r.RespondentID] = struct{}{}
	}

	results := entity.PollResults{
		PollID:           poll.ID,
		Title:            poll.Title,
		TotalRespondents: len(allRespondents),
	}

	for _, q := range questions {
		rows := byQuestion[q.ID]

		respondents := make(map[string]struct{})
		for _, r := range rows {
			respondents[r.RespondentID] = struct{}{}
		}

		qr := entity.QuestionResults{
			QuestionID:     q.ID,
			QuestionText:   q.QuestionText,
			QuestionType:   q.QuestionType,
			TotalResponses: len(respondents),
		}

		switch q.QuestionType {
		case entity.QuestionTypeSelect, entity.QuestionTypeMultipleChoice:
			qr.Options = tallyOptions(q.Options, rows, len(respondents))
		case entity.QuestionTypeText:
			if includeText {
				qr.TextAnswers = collectTextAnswers(rows)
			}
		case entity.QuestionTypeBoolean:
			qr.TrueCount, qr.FalseCount, qr.TruePercentage, qr.FalsePercentage = tallyBoolean(rows)
		}

		results.Questions = append(results.Questions, qr)
	}

	return results
}

func tallyOptions(options []entity.PollQuestionOption, rows []entity.PollResponse, totalRespondents int) []entity.OptionCount {
	counts := make(map[int64]int)
	for _, r := range rows {
		if r.SelectedOptionID != nil {
			counts[*r.SelectedOptionID]++
		}
	}

	tallies := make([]entity.OptionCount, 0, len(options))
	for _, o := range options {
		count := counts[o.ID]
		var percentage float64
		if totalRespondents > 0 {
			percentage = float64(count) / float64(totalRespondents) * 100
		}
		tallies = append(tallies, entity.OptionCount{
			OptionID:   o.ID,
			OptionText: o.OptionText,
			Count:      count,
			Percentage: percentage,
		})
	}

	return tallies
}

func collectTextAnswers(rows []entity.PollResponse) []entity.TextAnswer {
	var answers []entity.TextAnswer
	for _, r := range rows {
		if r.AnswerText == nil {
			continue
		}
		answers = append(answers, entity.TextAnswer{
			ResponseID: r.ID,
			Text:       *r.AnswerText,
			CreatedAt:  r.CreatedAt,
		})
	}
	return answers
}

// tallyBoolean counts literal "true"/"false" answers; percentages are over
// their sum only, and both are 0 when nothing was answered.
func tallyBoolean(rows []entity.PollResponse) (trueCount, falseCount int, truePct, falsePct float64) {
	for _, r := range rows {
		if r.AnswerText == nil {
			continue
		}
		switch *r.AnswerText {
		case "true":
			trueCount++
		case "false":
			falseCount++
		}
	}

	total := trueCount + falseCount
	if total > 0 {
		truePct = float64(trueCount) / float64(total) * 100
		falsePct = float64(falseCount) / float64(total) * 100
	}

	return trueCount, falseCount, truePct, falsePct
}
