package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/classchain/classchain/internal/entity"
	"github.com/classchain/classchain/internal/storage"
)

// SavePoll inserts the poll with all questions and options in one transaction
// so a poll can never exist half-built.
func (s *Storage) SavePoll(ctx context.Context, poll entity.Poll, questions []entity.PollQuestion) (int64, error) {
	const op = "storage.postgres.SavePoll"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	var pollID int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO polls (title, description, require_identification, is_open, created_by, semester_id, class_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		poll.Title, poll.Description, poll.RequireIdentification, poll.IsOpen, poll.CreatedBy, poll.SemesterID, poll.ClassID,
	).Scan(&pollID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, mapPqError(err, storage.ErrSemesterNotFound))
	}

	for _, q := range questions {
		var questionID int64
		err = tx.QueryRowContext(ctx,
			`INSERT INTO poll_questions (poll_id, question_text, question_type, is_required, sort_order)
			 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			pollID, q.QuestionText, q.QuestionType, q.IsRequired, q.SortOrder,
		).Scan(&questionID)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}

		for _, o := range q.Options {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO poll_question_options (question_id, option_text, sort_order) VALUES ($1, $2, $3)`,
				questionID, o.OptionText, o.SortOrder,
			)
			if err != nil {
				return 0, fmt.Errorf("%s: %w", op, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return pollID, nil
}

func (s *Storage) PollByID(ctx context.Context, id int64) (entity.Poll, error) {
	const op = "storage.postgres.PollByID"

	query := `SELECT id, title, description, require_identification, is_open, created_by, semester_id, class_id, created_at, updated_at FROM polls WHERE id = $1`

	var poll entity.Poll
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&poll.ID, &poll.Title, &poll.Description, &poll.RequireIdentification, &poll.IsOpen,
		&poll.CreatedBy, &poll.SemesterID, &poll.ClassID, &poll.CreatedAt, &poll.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.Poll{}, fmt.Errorf("%s: %w", op, storage.ErrPollNotFound)
		}
		return entity.Poll{}, fmt.Errorf("%s: %w", op, err)
	}

	return poll, nil
}

func (s *Storage) PollsByAdmin(ctx context.Context, adminID int64) ([]entity.Poll, error) {
	const op = "storage.postgres.PollsByAdmin"

	query := `SELECT id, title, description, require_identification, is_open, created_by, semester_id, class_id, created_at, updated_at FROM polls WHERE created_by = $1 ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, adminID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var polls []entity.Poll
	for rows.Next() {
		var poll entity.Poll
		if err := rows.Scan(
			&poll.ID, &poll.Title, &poll.Description, &poll.RequireIdentification, &poll.IsOpen,
			&poll.CreatedBy, &poll.SemesterID, &poll.ClassID, &poll.CreatedAt, &poll.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		polls = append(polls, poll)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows error: %w", op, err)
	}

	return polls, nil
}

// QuestionsByPollID returns questions with their options, both in sortOrder.
func (s *Storage) QuestionsByPollID(ctx context.Context, pollID int64) ([]entity.PollQuestion, error) {
	const op = "storage.postgres.QuestionsByPollID"

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, poll_id, question_text, question_type, is_required, sort_order FROM poll_questions WHERE poll_id = $1 ORDER BY sort_order`,
		pollID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var questions []entity.PollQuestion
	index := make(map[int64]int)
	for rows.Next() {
		var q entity.PollQuestion
		if err := rows.Scan(&q.ID, &q.PollID, &q.QuestionText, &q.QuestionType, &q.IsRequired, &q.SortOrder); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		index[q.ID] = len(questions)
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows error: %w", op, err)
	}

	optRows, err := s.db.QueryContext(ctx,
		`SELECT o.id, o.question_id, o.option_text, o.sort_order
		 FROM poll_question_options o
		 JOIN poll_questions q ON q.id = o.question_id
		 WHERE q.poll_id = $1
		 ORDER BY o.sort_order`,
		pollID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer optRows.Close()

	for optRows.Next() {
		var o entity.PollQuestionOption
		if err := optRows.Scan(&o.ID, &o.QuestionID, &o.OptionText, &o.SortOrder); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		if i, ok := index[o.QuestionID]; ok {
			questions[i].Options = append(questions[i].Options, o)
		}
	}
	if err := optRows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows error: %w", op, err)
	}

	return questions, nil
}

func (s *Storage) UpdatePoll(ctx context.Context, id int64, title string, description *string, isOpen bool, adminID int64) error {
	const op = "storage.postgres.UpdatePoll"

	const query = `UPDATE polls SET title = $1, description = $2, is_open = $3, updated_at = NOW() WHERE id = $4 AND created_by = $5`

	res, err := s.db.ExecContext(ctx, query, title, description, isOpen, id, adminID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrPollNotFound)
	}
	return nil
}

func (s *Storage) DeletePoll(ctx context.Context, id, adminID int64) error {
	const op = "storage.postgres.DeletePoll"

	query := `DELETE FROM polls WHERE id = $1 AND created_by = $2`

	res, err := s.db.ExecContext(ctx, query, id, adminID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrPollNotFound
	}

	return nil
}

// SaveResponses writes a respondent's full answer set in one transaction.
func (s *Storage) SaveResponses(ctx context.Context, responses []entity.PollResponse) error {
	const op = "storage.postgres.SaveResponses"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	for _, r := range responses {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO poll_responses (poll_id, question_id, respondent_id, selected_option_id, answer_text)
			 VALUES ($1, $2, $3, $4, $5)`,
			r.PollID, r.QuestionID, r.RespondentID, r.SelectedOptionID, r.AnswerText,
		)
		if err != nil {
			return fmt.Errorf("%s: %w", op, mapPqError(err, storage.ErrOptionNotFound))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) ResponsesByPollID(ctx context.Context, pollID int64) ([]entity.PollResponse, error) {
	const op = "storage.postgres.ResponsesByPollID"

	query := `SELECT id, poll_id, question_id, respondent_id, selected_option_id, answer_text, created_at FROM poll_responses WHERE poll_id = $1 ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, pollID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var responses []entity.PollResponse
	for rows.Next() {
		var r entity.PollResponse
		if err := rows.Scan(&r.ID, &r.PollID, &r.QuestionID, &r.RespondentID, &r.SelectedOptionID, &r.AnswerText, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		responses = append(responses, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows error: %w", op, err)
	}

	return responses, nil
}

func (s *Storage) HasResponded(ctx context.Context, pollID int64, respondentID string) (bool, error) {
	const op = "storage.postgres.HasResponded"

	query := `SELECT EXISTS(SELECT 1 FROM poll_responses WHERE poll_id = $1 AND respondent_id = $2)`

	var exists bool
	err := s.db.QueryRowContext(ctx, query, pollID, respondentID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return exists, nil
}
