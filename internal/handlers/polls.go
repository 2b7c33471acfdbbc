package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/classchain/classchain/internal/entity"
	"github.com/classchain/classchain/internal/middleware"
	"github.com/classchain/classchain/internal/services/polls"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type PollHandler struct {
	pollService  *polls.Polls
	secureCookie bool
}

type CreatePollRequest struct {
	Title                 string                  `json:"title" binding:"required"`
	Description           *string                 `json:"description"`
	RequireIdentification bool                    `json:"require_identification"`
	IsOpen                bool                    `json:"is_open"`
	SemesterID            *int64                  `json:"semester_id"`
	ClassID               *int64                  `json:"class_id"`
	Questions             []CreateQuestionRequest `json:"questions" binding:"required,min=1,dive"`
}

type CreateQuestionRequest struct {
	QuestionText string   `json:"question_text" binding:"required"`
	QuestionType string   `json:"question_type" binding:"required,oneof=SELECT MULTIPLE_CHOICE TEXT BOOLEAN"`
	IsRequired   bool     `json:"is_required"`
	Options      []string `json:"options"`
}

type UpdatePollRequest struct {
	Title       string  `json:"title" binding:"required"`
	Description *string `json:"description"`
	IsOpen      *bool   `json:"is_open" binding:"required"`
}

type RespondRequest struct {
	Answers []AnswerRequest `json:"answers" binding:"required,min=1,dive"`
}

type AnswerRequest struct {
	QuestionID        int64   `json:"question_id" binding:"required"`
	SelectedOptionIDs []int64 `json:"selected_option_ids"`
	Text              *string `json:"text"`
}

func NewPollHandler(pollService *polls.Polls, secureCookie bool) *PollHandler {
	return &PollHandler{pollService: pollService, secureCookie: secureCookie}
}

// respondedCookie flags an anonymous browser that already answered a poll.
func respondedCookie(pollID int64) string {
	return fmt.Sprintf("poll_%d_responded", pollID)
}

func (h *PollHandler) CreatePoll(c *gin.Context) {
	var req CreatePollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	admin, ok := adminID(c)
	if !ok {
		return
	}

	poll := entity.Poll{
		Title:                 req.Title,
		Description:           req.Description,
		RequireIdentification: req.RequireIdentification,
		IsOpen:                req.IsOpen,
		CreatedBy:             admin,
		SemesterID:            req.SemesterID,
		ClassID:               req.ClassID,
	}

	questions := make([]entity.PollQuestion, 0, len(req.Questions))
	for i, q := range req.Questions {
		question := entity.PollQuestion{
			QuestionText: q.QuestionText,
			QuestionType: entity.QuestionType(q.QuestionType),
			IsRequired:   q.IsRequired,
			SortOrder:    i,
		}
		for j, text := range q.Options {
			question.Options = append(question.Options, entity.PollQuestionOption{OptionText: text, SortOrder: j})
		}
		questions = append(questions, question)
	}

	pollID, err := h.pollService.CreatePoll(c.Request.Context(), poll, questions)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"poll_id": pollID})
}

func (h *PollHandler) GetPolls(c *gin.Context) {
	admin, ok := adminID(c)
	if !ok {
		return
	}

	pollList, err := h.pollService.GetPolls(c.Request.Context(), admin)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"polls": pollList})
}

func (h *PollHandler) GetPoll(c *gin.Context) {
	pollID, ok := pathID(c, "id")
	if !ok {
		return
	}

	admin, ok := adminID(c)
	if !ok {
		return
	}

	poll, questions, err := h.pollService.GetPoll(c.Request.Context(), pollID)
	if err != nil {
		respondError(c, err)
		return
	}
	if poll.CreatedBy != admin {
		c.JSON(http.StatusNotFound, gin.H{"error": polls.ErrPollNotFound.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"poll": poll, "questions": questions})
}

func (h *PollHandler) UpdatePoll(c *gin.Context) {
	var req UpdatePollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	pollID, ok := pathID(c, "id")
	if !ok {
		return
	}

	admin, ok := adminID(c)
	if !ok {
		return
	}

	if err := h.pollService.UpdatePoll(c.Request.Context(), pollID, req.Title, req.Description, *req.IsOpen, admin); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"poll_id": pollID})
}

func (h *PollHandler) DeletePoll(c *gin.Context) {
	pollID, ok := pathID(c, "id")
	if !ok {
		return
	}

	admin, ok := adminID(c)
	if !ok {
		return
	}

	if err := h.pollService.DeletePoll(c.Request.Context(), pollID, admin); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusNoContent, gin.H{})
}

func (h *PollHandler) NewLink(c *gin.Context) {
	pollID, ok := pathID(c, "id")
	if !ok {
		return
	}

	admin, ok := adminID(c)
	if !ok {
		return
	}

	token, expiresAt, err := h.pollService.NewRespondLink(c.Request.Context(), pollID, admin)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"nonce":      token,
		"url":        fmt.Sprintf("/poll/%d/respond?nonce=%s", pollID, token),
		"expires_at": expiresAt,
	})
}

// Respond accepts a full answer set from the public link. Anonymous
// respondents are deduplicated with a browser cookie; identified ones with a
// duplicate-response query keyed on "attendant-<id>".
func (h *PollHandler) Respond(c *gin.Context) {
	var req RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	pollID, ok := pathID(c, "id")
	if !ok {
		return
	}

	nonceToken := c.Query("nonce")
	if nonceToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing nonce"})
		return
	}

	var respondentID string
	identified := false
	if sess, ok := middleware.SessionFromContext(c); ok {
		respondentID = fmt.Sprintf("attendant-%d", sess.SubjectID)
		identified = true
	} else {
		if _, err := c.Cookie(respondedCookie(pollID)); err == nil {
			c.JSON(http.StatusConflict, gin.H{"error": polls.ErrAlreadyResponded.Error()})
			return
		}
		respondentID = uuid.NewString()
	}

	answers := make([]polls.Answer, 0, len(req.Answers))
	for _, a := range req.Answers {
		answers = append(answers, polls.Answer{
			QuestionID:        a.QuestionID,
			SelectedOptionIDs: a.SelectedOptionIDs,
			Text:              a.Text,
		})
	}

	if err := h.pollService.Respond(c.Request.Context(), pollID, nonceToken, respondentID, identified, answers); err != nil {
		respondError(c, err)
		return
	}

	if !identified {
		c.SetCookie(respondedCookie(pollID), "1", int((90 * 24 * time.Hour).Seconds()), "/", "", h.secureCookie, true)
	}

	c.JSON(http.StatusOK, gin.H{"responded": true})
}

// RespondForm validates the link nonce and returns the poll with its
// questions so a client can render the response form.
func (h *PollHandler) RespondForm(c *gin.Context) {
	pollID, ok := pathID(c, "id")
	if !ok {
		return
	}

	nonceToken := c.Query("nonce")
	if nonceToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing nonce"})
		return
	}

	poll, questions, err := h.pollService.RespondForm(c.Request.Context(), pollID, nonceToken)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"poll": poll, "questions": questions})
}

func (h *PollHandler) AdminResults(c *gin.Context) {
	pollID, ok := pathID(c, "id")
	if !ok {
		return
	}

	admin, ok := adminID(c)
	if !ok {
		return
	}

	results, err := h.pollService.AdminResults(c.Request.Context(), pollID, admin)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (h *PollHandler) PublicResults(c *gin.Context) {
	pollID, ok := pathID(c, "id")
	if !ok {
		return
	}

	results, err := h.pollService.PublicResults(c.Request.Context(), pollID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}
