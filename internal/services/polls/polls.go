// Package polls implements poll administration, responding and results.
package polls

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/classchain/classchain/internal/entity"
	"github.com/classchain/classchain/internal/nonce"
	"github.com/classchain/classchain/internal/storage"
)

var (
	ErrValidation         = errors.New("validation error")
	ErrPollClosed         = errors.New("poll is closed")
	ErrInvalidNonce       = errors.New("invalid or expired link, please rescan")
	ErrAlreadyResponded   = errors.New("already responded")
	ErrNotIdentified      = errors.New("identification required for this poll")
	ErrPollNotFound       = errors.New("poll not found or unauthorized")
	ErrRequiredUnanswered = errors.New("a required question was not answered")
)

type PollStorage interface {
	SavePoll(ctx context.Context, poll entity.Poll, questions []entity.PollQuestion) (int64, error)
	PollByID(ctx context.Context, id int64) (entity.Poll, error)
	PollsByAdmin(ctx context.Context, adminID int64) ([]entity.Poll, error)
	QuestionsByPollID(ctx context.Context, pollID int64) ([]entity.PollQuestion, error)
	UpdatePoll(ctx context.Context, id int64, title string, description *string, isOpen bool, adminID int64) error
	DeletePoll(ctx context.Context, id, adminID int64) error
}

type ResponseStorage interface {
	SaveResponses(ctx context.Context, responses []entity.PollResponse) error
	ResponsesByPollID(ctx context.Context, pollID int64) ([]entity.PollResponse, error)
	HasResponded(ctx context.Context, pollID int64, respondentID string) (bool, error)
}

type Polls struct {
	log             *slog.Logger
	pollStorage     PollStorage
	responseStorage ResponseStorage
	nonces          *nonce.Store
}

func New(log *slog.Logger, pollStorage PollStorage, responseStorage ResponseStorage, nonces *nonce.Store) *Polls {
	return &Polls{
		log:             log,
		pollStorage:     pollStorage,
		responseStorage: responseStorage,
		nonces:          nonces,
	}
}

// Answer is one submitted answer. Multi-select questions carry several
// option ids; TEXT and BOOLEAN questions carry Text.
type Answer struct {
	QuestionID        int64
	SelectedOptionIDs []int64
	Text              *string
}

func (p *Polls) CreatePoll(ctx context.Context, poll entity.Poll, questions []entity.PollQuestion) (int64, error) {
	const op = "polls.CreatePoll"

	if poll.Title == "" {
		return 0, fmt.Errorf("%w: title is empty", ErrValidation)
	}
	for _, q := range questions {
		if q.QuestionText == "" {
			return 0, fmt.Errorf("%w: question text is empty", ErrValidation)
		}
		switch q.QuestionType {
		case entity.QuestionTypeSelect, entity.QuestionTypeMultipleChoice:
			if len(q.Options) == 0 {
				return 0, fmt.Errorf("%w: choice question needs at least one option", ErrValidation)
			}
		case entity.QuestionTypeText, entity.QuestionTypeBoolean:
		default:
			return 0, fmt.Errorf("%w: unknown question type %q", ErrValidation, q.QuestionType)
		}
	}

	pollID, err := p.pollStorage.SavePoll(ctx, poll, questions)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	p.log.Info("poll created", slog.Int64("pollID", pollID), slog.Int64("adminID", poll.CreatedBy))

	return pollID, nil
}

func (p *Polls) GetPoll(ctx context.Context, id int64) (entity.Poll, []entity.PollQuestion, error) {
	const op = "polls.GetPoll"

	poll, err := p.pollStorage.PollByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrPollNotFound) {
			return entity.Poll{}, nil, fmt.Errorf("%s: %w", op, ErrPollNotFound)
		}
		return entity.Poll{}, nil, fmt.Errorf("%s: %w", op, err)
	}

	questions, err := p.pollStorage.QuestionsByPollID(ctx, id)
	if err != nil {
		return entity.Poll{}, nil, fmt.Errorf("%s: %w", op, err)
	}

	return poll, questions, nil
}

func (p *Polls) GetPolls(ctx context.Context, adminID int64) ([]entity.Poll, error) {
	const op = "polls.GetPolls"

	polls, err := p.pollStorage.PollsByAdmin(ctx, adminID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return polls, nil
}

func (p *Polls) UpdatePoll(ctx context.Context, id int64, title string, description *string, isOpen bool, adminID int64) error {
	const op = "polls.UpdatePoll"

	if title == "" {
		return fmt.Errorf("%w: title is empty", ErrValidation)
	}

	err := p.pollStorage.UpdatePoll(ctx, id, title, description, isOpen, adminID)
	if err != nil {
		if errors.Is(err, storage.ErrPollNotFound) {
			return fmt.Errorf("%s: %w", op, ErrPollNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (p *Polls) DeletePoll(ctx context.Context, id, adminID int64) error {
	const op = "polls.DeletePoll"

	err := p.pollStorage.DeletePoll(ctx, id, adminID)
	if err != nil {
		if errors.Is(err, storage.ErrPollNotFound) {
			return fmt.Errorf("%s: %w", op, ErrPollNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	p.log.Info("poll deleted", slog.Int64("pollID", id), slog.Int64("adminID", adminID))

	return nil
}

// NewRespondLink issues the shared respond nonce for a poll and returns the
// token with its absolute expiry. The link stays valid until TTL expiry; one
// QR code serves the whole audience.
func (p *Polls) NewRespondLink(ctx context.Context, pollID, adminID int64) (string, time.Time, error) {
	const op = "polls.NewRespondLink"

	poll, err := p.pollStorage.PollByID(ctx, pollID)
	if err != nil || poll.CreatedBy != adminID {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, ErrPollNotFound)
	}

	key := nonce.PollKey(pollID)
	token, err := p.nonces.Issue(ctx, key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	remaining, err := p.nonces.RemainingTTL(ctx, key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	return token, time.Now().Add(remaining), nil
}

// RespondForm validates the link nonce and returns the poll with its
// questions for rendering.
func (p *Polls) RespondForm(ctx context.Context, pollID int64, nonceToken string) (entity.Poll, []entity.PollQuestion, error) {
	const op = "polls.RespondForm"

	poll, err := p.pollStorage.PollByID(ctx, pollID)
	if err != nil {
		if errors.Is(err, storage.ErrPollNotFound) {
			return entity.Poll{}, nil, fmt.Errorf("%s: %w", op, ErrPollNotFound)
		}
		return entity.Poll{}, nil, fmt.Errorf("%s: %w", op, err)
	}
	if !poll.IsOpen {
		return entity.Poll{}, nil, fmt.Errorf("%s: %w", op, ErrPollClosed)
	}

	ok, err := p.nonces.Validate(ctx, nonce.PollKey(pollID), nonceToken)
	if err != nil {
		return entity.Poll{}, nil, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return entity.Poll{}, nil, fmt.Errorf("%s: %w", op, ErrInvalidNonce)
	}

	questions, err := p.pollStorage.QuestionsByPollID(ctx, pollID)
	if err != nil {
		return entity.Poll{}, nil, fmt.Errorf("%s: %w", op, err)
	}

	return poll, questions, nil
}

// Respond validates the link nonce and stores the respondent's full answer
// set in one transaction. respondentID is either a generated anonymous token
// or "attendant-<id>" when the poll requires identification.
func (p *Polls) Respond(ctx context.Context, pollID int64, nonceToken, respondentID string, identified bool, answers []Answer) error {
	const op = "polls.Respond"

	poll, err := p.pollStorage.PollByID(ctx, pollID)
	if err != nil {
		if errors.Is(err, storage.ErrPollNotFound) {
			return fmt.Errorf("%s: %w", op, ErrPollNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if !poll.IsOpen {
		return fmt.Errorf("%s: %w", op, ErrPollClosed)
	}
	if poll.RequireIdentification && !identified {
		return fmt.Errorf("%s: %w", op, ErrNotIdentified)
	}

	ok, err := p.nonces.Validate(ctx, nonce.PollKey(pollID), nonceToken)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", op, ErrInvalidNonce)
	}

	responded, err := p.responseStorage.HasResponded(ctx, pollID, respondentID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if responded {
		return fmt.Errorf("%s: %w", op, ErrAlreadyResponded)
	}

	questions, err := p.pollStorage.QuestionsByPollID(ctx, pollID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	rows, err := buildResponseRows(pollID, respondentID, questions, answers)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := p.responseStorage.SaveResponses(ctx, rows); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	p.log.Info("poll response saved", slog.Int64("pollID", pollID), slog.Int("answers", len(answers)))

	return nil
}

// buildResponseRows checks each answer against its question and expands
// multi-select answers into one row per selected option.
func buildResponseRows(pollID int64, respondentID string, questions []entity.PollQuestion, answers []Answer) ([]entity.PollResponse, error) {
	byQuestion := make(map[int64]entity.PollQuestion, len(questions))
	for _, q := range questions {
		byQuestion[q.ID] = q
	}

	answered := make(map[int64]bool, len(answers))
	var rows []entity.PollResponse

	for _, a := range answers {
		q, ok := byQuestion[a.QuestionID]
		if !ok {
			return nil, fmt.Errorf("%w: unknown question %d", ErrValidation, a.QuestionID)
		}
		if answered[q.ID] {
			return nil, fmt.Errorf("%w: duplicate answer for question %d", ErrValidation, q.ID)
		}

		switch q.QuestionType {
		case entity.QuestionTypeSelect:
			if len(a.SelectedOptionIDs) != 1 {
				return nil, fmt.Errorf("%w: select question %d needs exactly one option", ErrValidation, q.ID)
			}
			optionID := a.SelectedOptionIDs[0]
			if !hasOption(q, optionID) {
				return nil, fmt.Errorf("%w: option %d does not belong to question %d", ErrValidation, optionID, q.ID)
			}
			rows = append(rows, entity.PollResponse{
				PollID: pollID, QuestionID: q.ID, RespondentID: respondentID, SelectedOptionID: &a.SelectedOptionIDs[0],
			})
		case entity.QuestionTypeMultipleChoice:
			if len(a.SelectedOptionIDs) == 0 {
				return nil, fmt.Errorf("%w: multiple choice question %d needs at least one option", ErrValidation, q.ID)
			}
			for i := range a.SelectedOptionIDs {
				if !hasOption(q, a.SelectedOptionIDs[i]) {
					return nil, fmt.Errorf("%w: option %d does not belong to question %d", ErrValidation, a.SelectedOptionIDs[i], q.ID)
				}
				rows = append(rows, entity.PollResponse{
					PollID: pollID, QuestionID: q.ID, RespondentID: respondentID, SelectedOptionID: &a.SelectedOptionIDs[i],
				})
			}
		case entity.QuestionTypeText:
			if a.Text == nil || *a.Text == "" {
				return nil, fmt.Errorf("%w: text question %d needs an answer", ErrValidation, q.ID)
			}
			rows = append(rows, entity.PollResponse{
				PollID: pollID, QuestionID: q.ID, RespondentID: respondentID, AnswerText: a.Text,
			})
		case entity.QuestionTypeBoolean:
			if a.Text == nil || (*a.Text != "true" && *a.Text != "false") {
				return nil, fmt.Errorf("%w: boolean question %d needs true or false", ErrValidation, q.ID)
			}
			rows = append(rows, entity.PollResponse{
				PollID: pollID, QuestionID: q.ID, RespondentID: respondentID, AnswerText: a.Text,
			})
		}

		answered[q.ID] = true
	}

	for _, q := range questions {
		if q.IsRequired && !answered[q.ID] {
			return nil, fmt.Errorf("%w: question %d", ErrRequiredUnanswered, q.ID)
		}
	}

	return rows, nil
}

func hasOption(q entity.PollQuestion, optionID int64) bool {
	for _, o := range q.Options {
		if o.ID == optionID {
			return true
		}
	}
	return false
}

// AdminResults returns the full aggregation, including text answers, for the
// poll's owner. Ownership failures surface as not-found.
func (p *Polls) AdminResults(ctx context.Context, pollID, adminID int64) (entity.PollResults, error) {
	const op = "polls.AdminResults"

	poll, err := p.pollStorage.PollByID(ctx, pollID)
	if err != nil || poll.CreatedBy != adminID {
		return entity.PollResults{}, fmt.Errorf("%s: %w", op, ErrPollNotFound)
	}

	return p.results(ctx, op, poll, true)
}

// PublicResults suppresses text answers entirely.
func (p *Polls) PublicResults(ctx context.Context, pollID int64) (entity.PollResults, error) {
	const op = "polls.PublicResults"

	poll, err := p.pollStorage.PollByID(ctx, pollID)
	if err != nil {
		if errors.Is(err, storage.ErrPollNotFound) {
			return entity.PollResults{}, fmt.Errorf("%s: %w", op, ErrPollNotFound)
		}
		return entity.PollResults{}, fmt.Errorf("%s: %w", op, err)
	}

	return p.results(ctx, op, poll, false)
}

func (p *Polls) results(ctx context.Context, op string, poll entity.Poll, includeText bool) (entity.PollResults, error) {
	questions, err := p.pollStorage.QuestionsByPollID(ctx, poll.ID)
	if err != nil {
		return entity.PollResults{}, fmt.Errorf("%s: %w", op, err)
	}

	responses, err := p.responseStorage.ResponsesByPollID(ctx, poll.ID)
	if err != nil {
		return entity.PollResults{}, fmt.Errorf("%s: %w", op, err)
	}

	return Aggregate(poll, questions, responses, includeText), nil
}
