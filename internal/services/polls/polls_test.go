package polls_test

import (
	"context"
	"testing"
	"time"

	"github.com/classchain/classchain/internal/entity"
	"github.com/classchain/classchain/internal/nonce"
	"github.com/classchain/classchain/internal/services/polls"
	"github.com/classchain/classchain/internal/storage"
	"github.com/classchain/classchain/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePollStorage struct {
	polls     map[int64]entity.Poll
	questions map[int64][]entity.PollQuestion
	nextID    int64
}

func newFakePollStorage() *fakePollStorage {
	return &fakePollStorage{
		polls:     make(map[int64]entity.Poll),
		questions: make(map[int64][]entity.PollQuestion),
		nextID:    1,
	}
}

func (f *fakePollStorage) SavePoll(_ context.Context, poll entity.Poll, questions []entity.PollQuestion) (int64, error) {
	poll.ID = f.nextID
	f.nextID++
	f.polls[poll.ID] = poll
	f.questions[poll.ID] = questions
	return poll.ID, nil
}

func (f *fakePollStorage) PollByID(_ context.Context, id int64) (entity.Poll, error) {
	poll, ok := f.polls[id]
	if !ok {
		return entity.Poll{}, storage.ErrPollNotFound
	}
	return poll, nil
}

func (f *fakePollStorage) PollsByAdmin(_ context.Context, adminID int64) ([]entity.Poll, error) {
	var out []entity.Poll
	for _, p := range f.polls {
		if p.CreatedBy == adminID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePollStorage) QuestionsByPollID(_ context.Context, pollID int64) ([]entity.PollQuestion, error) {
	return f.questions[pollID], nil
}

func (f *fakePollStorage) UpdatePoll(_ context.Context, id int64, title string, description *string, isOpen bool, adminID int64) error {
	poll, ok := f.polls[id]
	if !ok || poll.CreatedBy != adminID {
		return storage.ErrPollNotFound
	}
	poll.Title = title
	poll.Description = description
	poll.IsOpen = isOpen
	f.polls[id] = poll
	return nil
}

func (f *fakePollStorage) DeletePoll(_ context.Context, id, adminID int64) error {
	poll, ok := f.polls[id]
	if !ok || poll.CreatedBy != adminID {
		return storage.ErrPollNotFound
	}
	delete(f.polls, id)
	delete(f.questions, id)
	return nil
}

type fakeResponseStorage struct {
	rows []entity.PollResponse
}

func (f *fakeResponseStorage) SaveResponses(_ context.Context, responses []entity.PollResponse) error {
	f.rows = append(f.rows, responses...)
	return nil
}

func (f *fakeResponseStorage) ResponsesByPollID(_ context.Context, pollID int64) ([]entity.PollResponse, error) {
	var out []entity.PollResponse
	for _, r := range f.rows {
		if r.PollID == pollID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeResponseStorage) HasResponded(_ context.Context, pollID int64, respondentID string) (bool, error) {
	for _, r := range f.rows {
		if r.PollID == pollID && r.RespondentID == respondentID {
			return true, nil
		}
	}
	return false, nil
}

type pollFixture struct {
	service   *polls.Polls
	storage   *fakePollStorage
	responses *fakeResponseStorage
	nonces    *nonce.Store
}

func newPollFixture(t *testing.T) *pollFixture {
	t.Helper()
	pollStorage := newFakePollStorage()
	responseStorage := &fakeResponseStorage{}
	nonces := nonce.NewStore(testutil.NewFakeKV(), 10*time.Minute)

	return &pollFixture{
		service:   polls.New(testutil.Logger(), pollStorage, responseStorage, nonces),
		storage:   pollStorage,
		responses: responseStorage,
		nonces:    nonces,
	}
}

// seedPoll creates an open poll with one required SELECT question (options A
// and B) and returns the poll id with a valid respond nonce.
func (fx *pollFixture) seedPoll(t *testing.T, requireIdentification bool) (int64, string) {
	t.Helper()
	ctx := context.Background()

	pollID, err := fx.service.CreatePoll(ctx, entity.Poll{
		Title:                 "Lecture feedback",
		IsOpen:                true,
		CreatedBy:             1,
		RequireIdentification: requireIdentification,
	}, []entity.PollQuestion{{
		ID:           10,
		QuestionText: "Pick one",
		QuestionType: entity.QuestionTypeSelect,
		IsRequired:   true,
		Options: []entity.PollQuestionOption{
			{ID: 100, OptionText: "A"},
			{ID: 101, OptionText: "B"},
		},
	}})
	require.NoError(t, err)

	token, _, err := fx.service.NewRespondLink(ctx, pollID, 1)
	require.NoError(t, err)

	return pollID, token
}

func selectAnswer(questionID int64, optionIDs ...int64) polls.Answer {
	return polls.Answer{QuestionID: questionID, SelectedOptionIDs: optionIDs}
}

func TestCreatePoll_Validation(t *testing.T) {
	fx := newPollFixture(t)
	ctx := context.Background()

	_, err := fx.service.CreatePoll(ctx, entity.Poll{}, nil)
	assert.ErrorIs(t, err, polls.ErrValidation)

	_, err = fx.service.CreatePoll(ctx, entity.Poll{Title: "p"}, []entity.PollQuestion{{
		QuestionText: "choose",
		QuestionType: entity.QuestionTypeSelect,
	}})
	assert.ErrorIs(t, err, polls.ErrValidation, "choice question without options")

	_, err = fx.service.CreatePoll(ctx, entity.Poll{Title: "p"}, []entity.PollQuestion{{
		QuestionText: "q",
		QuestionType: "RANKING",
	}})
	assert.ErrorIs(t, err, polls.ErrValidation, "unknown question type")
}

func TestRespond_Success(t *testing.T) {
	fx := newPollFixture(t)
	ctx := context.Background()
	pollID, token := fx.seedPoll(t, false)

	err := fx.service.Respond(ctx, pollID, token, "anon-1", false, []polls.Answer{selectAnswer(10, 100)})
	require.NoError(t, err)

	require.Len(t, fx.responses.rows, 1)
	assert.Equal(t, pollID, fx.responses.rows[0].PollID)
	assert.Equal(t, int64(100), *fx.responses.rows[0].SelectedOptionID)
}

func TestRespond_Duplicate(t *testing.T) {
	fx := newPollFixture(t)
	ctx := context.Background()
	pollID, token := fx.seedPoll(t, false)

	require.NoError(t, fx.service.Respond(ctx, pollID, token, "anon-1", false, []polls.Answer{selectAnswer(10, 100)}))

	err := fx.service.Respond(ctx, pollID, token, "anon-1", false, []polls.Answer{selectAnswer(10, 101)})
	assert.ErrorIs(t, err, polls.ErrAlreadyResponded)

	// A different respondent is still fine.
	assert.NoError(t, fx.service.Respond(ctx, pollID, token, "anon-2", false, []polls.Answer{selectAnswer(10, 101)}))
}

func TestRespond_ClosedPoll(t *testing.T) {
	fx := newPollFixture(t)
	ctx := context.Background()
	pollID, token := fx.seedPoll(t, false)

	require.NoError(t, fx.service.UpdatePoll(ctx, pollID, "Lecture feedback", nil, false, 1))

	err := fx.service.Respond(ctx, pollID, token, "anon-1", false, []polls.Answer{selectAnswer(10, 100)})
	assert.ErrorIs(t, err, polls.ErrPollClosed)
}

func TestRespond_InvalidNonce(t *testing.T) {
	fx := newPollFixture(t)
	ctx := context.Background()
	pollID, _ := fx.seedPoll(t, false)

	err := fx.service.Respond(ctx, pollID, "stale-token", "anon-1", false, []polls.Answer{selectAnswer(10, 100)})
	assert.ErrorIs(t, err, polls.ErrInvalidNonce)
}

func TestRespond_IdentificationRequired(t *testing.T) {
	fx := newPollFixture(t)
	ctx := context.Background()
	pollID, token := fx.seedPoll(t, true)

	err := fx.service.Respond(ctx, pollID, token, "anon-1", false, []polls.Answer{selectAnswer(10, 100)})
	assert.ErrorIs(t, err, polls.ErrNotIdentified)

	assert.NoError(t, fx.service.Respond(ctx, pollID, token, "attendant-7", true, []polls.Answer{selectAnswer(10, 100)}))
}

func TestRespond_RequiredUnanswered(t *testing.T) {
	fx := newPollFixture(t)
	ctx := context.Background()
	pollID, token := fx.seedPoll(t, false)

	err := fx.service.Respond(ctx, pollID, token, "anon-1", false, nil)
	assert.ErrorIs(t, err, polls.ErrRequiredUnanswered)
}

func TestRespond_AnswerValidation(t *testing.T) {
	fx := newPollFixture(t)
	ctx := context.Background()
	pollID, token := fx.seedPoll(t, false)

	cases := []struct {
		name    string
		answers []polls.Answer
	}{
		{name: "select with two options", answers: []polls.Answer{selectAnswer(10, 100, 101)}},
		{name: "foreign option", answers: []polls.Answer{selectAnswer(10, 999)}},
		{name: "unknown question", answers: []polls.Answer{selectAnswer(10, 100), selectAnswer(99, 100)}},
		{name: "duplicate answer", answers: []polls.Answer{selectAnswer(10, 100), selectAnswer(10, 101)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := fx.service.Respond(ctx, pollID, token, "anon-1", false, tc.answers)
			assert.ErrorIs(t, err, polls.ErrValidation)
		})
	}
}

func TestRespond_MultiSelectExpansion(t *testing.T) {
	fx := newPollFixture(t)
	ctx := context.Background()

	pollID, err := fx.service.CreatePoll(ctx, entity.Poll{Title: "p", IsOpen: true, CreatedBy: 1},
		[]entity.PollQuestion{{
			ID:           20,
			QuestionText: "Pick many",
			QuestionType: entity.QuestionTypeMultipleChoice,
			Options: []entity.PollQuestionOption{
				{ID: 200, OptionText: "X"},
				{ID: 201, OptionText: "Y"},
			},
		}})
	require.NoError(t, err)
	token, _, err := fx.service.NewRespondLink(ctx, pollID, 1)
	require.NoError(t, err)

	require.NoError(t, fx.service.Respond(ctx, pollID, token, "anon-1", false,
		[]polls.Answer{selectAnswer(20, 200, 201)}))

	require.Len(t, fx.responses.rows, 2, "one row per selected option")
	assert.Equal(t, "anon-1", fx.responses.rows[0].RespondentID)
	assert.Equal(t, "anon-1", fx.responses.rows[1].RespondentID)
}

func TestRespond_BooleanValidation(t *testing.T) {
	fx := newPollFixture(t)
	ctx := context.Background()

	pollID, err := fx.service.CreatePoll(ctx, entity.Poll{Title: "p", IsOpen: true, CreatedBy: 1},
		[]entity.PollQuestion{{
			ID:           30,
			QuestionText: "Was it useful?",
			QuestionType: entity.QuestionTypeBoolean,
		}})
	require.NoError(t, err)
	token, _, err := fx.service.NewRespondLink(ctx, pollID, 1)
	require.NoError(t, err)

	maybe := "maybe"
	err = fx.service.Respond(ctx, pollID, token, "anon-1", false,
		[]polls.Answer{{QuestionID: 30, Text: &maybe}})
	assert.ErrorIs(t, err, polls.ErrValidation)

	yes := "true"
	assert.NoError(t, fx.service.Respond(ctx, pollID, token, "anon-1", false,
		[]polls.Answer{{QuestionID: 30, Text: &yes}}))
}

func TestNewRespondLink_Unauthorized(t *testing.T) {
	fx := newPollFixture(t)
	ctx := context.Background()
	pollID, _ := fx.seedPoll(t, false)

	_, _, err := fx.service.NewRespondLink(ctx, pollID, 999)
	assert.ErrorIs(t, err, polls.ErrPollNotFound)
}

func TestRespondForm_ClosedAndNonce(t *testing.T) {
	fx := newPollFixture(t)
	ctx := context.Background()
	pollID, token := fx.seedPoll(t, false)

	_, questions, err := fx.service.RespondForm(ctx, pollID, token)
	require.NoError(t, err)
	require.Len(t, questions, 1)

	_, _, err = fx.service.RespondForm(ctx, pollID, "wrong")
	assert.ErrorIs(t, err, polls.ErrInvalidNonce)

	require.NoError(t, fx.service.UpdatePoll(ctx, pollID, "Lecture feedback", nil, false, 1))
	_, _, err = fx.service.RespondForm(ctx, pollID, token)
	assert.ErrorIs(t, err, polls.ErrPollClosed)
}

func TestAdminResults_OwnershipAndText(t *testing.T) {
	fx := newPollFixture(t)
	ctx := context.Background()

	pollID, err := fx.service.CreatePoll(ctx, entity.Poll{Title: "p", IsOpen: true, CreatedBy: 1},
		[]entity.PollQuestion{{
			ID:           40,
			QuestionText: "Comments?",
			QuestionType: entity.QuestionTypeText,
		}})
	require.NoError(t, err)
	token, _, err := fx.service.NewRespondLink(ctx, pollID, 1)
	require.NoError(t, err)

	comment := "loved it"
	require.NoError(t, fx.service.Respond(ctx, pollID, token, "anon-1", false,
		[]polls.Answer{{QuestionID: 40, Text: &comment}}))

	_, err = fx.service.AdminResults(ctx, pollID, 999)
	assert.ErrorIs(t, err, polls.ErrPollNotFound)

	admin, err := fx.service.AdminResults(ctx, pollID, 1)
	require.NoError(t, err)
	require.Len(t, admin.Questions[0].TextAnswers, 1)
	assert.Equal(t, "loved it", admin.Questions[0].TextAnswers[0].Text)

	public, err := fx.service.PublicResults(ctx, pollID)
	require.NoError(t, err)
	assert.Empty(t, public.Questions[0].TextAnswers)
}

func TestDeletePoll_Ownership(t *testing.T) {
	fx := newPollFixture(t)
	ctx := context.Background()
	pollID, _ := fx.seedPoll(t, false)

	assert.ErrorIs(t, fx.service.DeletePoll(ctx, pollID, 999), polls.ErrPollNotFound)
	assert.NoError(t, fx.service.DeletePoll(ctx, pollID, 1))

	_, _, err := fx.service.GetPoll(ctx, pollID)
	assert.ErrorIs(t, err, polls.ErrPollNotFound)
}
