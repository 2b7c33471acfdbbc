package handlers

import (
	"errors"
	"net/http"

	"github.com/classchain/classchain/internal/lib/session"
	"github.com/classchain/classchain/internal/services/attendance"
	"github.com/classchain/classchain/internal/services/auth"
	"github.com/classchain/classchain/internal/services/polls"
	"github.com/classchain/classchain/internal/storage"
	"github.com/gin-gonic/gin"
)

// respondError maps service sentinels to status codes and user-facing
// messages. Anything unmapped is a plain 500; internal wrapping never leaks.
func respondError(c *gin.Context, err error) {
	type mapping struct {
		sentinel error
		status   int
	}

	mappings := []mapping{
		{session.ErrUnauthenticated, http.StatusUnauthorized},
		{auth.ErrUnauthorized, http.StatusUnauthorized},
		{auth.ErrInvalidNonce, http.StatusUnauthorized},
		{auth.ErrInvalidSignature, http.StatusUnauthorized},
		{polls.ErrPollNotFound, http.StatusNotFound},
		{attendance.ErrRoomNotFound, http.StatusNotFound},
		{storage.ErrAttendantNotFound, http.StatusNotFound},
		{polls.ErrValidation, http.StatusBadRequest},
		{attendance.ErrValidation, http.StatusBadRequest},
		{polls.ErrRequiredUnanswered, http.StatusBadRequest},
		{polls.ErrInvalidNonce, http.StatusBadRequest},
		{attendance.ErrInvalidNonce, http.StatusBadRequest},
		{attendance.ErrInvalidSignature, http.StatusBadRequest},
		{polls.ErrNotIdentified, http.StatusForbidden},
		{polls.ErrPollClosed, http.StatusConflict},
		{attendance.ErrRoomClosed, http.StatusConflict},
		{polls.ErrAlreadyResponded, http.StatusConflict},
		{attendance.ErrAlreadyRecorded, http.StatusConflict},
		{attendance.ErrWalletMismatch, http.StatusConflict},
		{attendance.ErrWalletInUse, http.StatusConflict},
		{storage.ErrAttendantExists, http.StatusConflict},
		{storage.ErrForeignKeyViolation, http.StatusBadRequest},
	}

	for _, m := range mappings {
		if errors.Is(err, m.sentinel) {
			c.JSON(m.status, gin.H{"error": m.sentinel.Error()})
			return
		}
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
