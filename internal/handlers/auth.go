package handlers

import (
	"net/http"
	"time"

	"github.com/classchain/classchain/internal/middleware"
	"github.com/classchain/classchain/internal/services/auth"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService  *auth.Auth
	sessionTTL   time.Duration
	secureCookie bool
}

type ChallengeRequest struct {
	Address string `json:"address" binding:"required"`
}

type SignInRequest struct {
	Address   string `json:"address" binding:"required"`
	Nonce     string `json:"nonce" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

func NewAuthHandler(authService *auth.Auth, sessionTTL time.Duration, secureCookie bool) *AuthHandler {
	return &AuthHandler{authService: authService, sessionTTL: sessionTTL, secureCookie: secureCookie}
}

func (h *AuthHandler) Challenge(c *gin.Context) {
	var req ChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	message, err := h.authService.Challenge(c.Request.Context(), req.Address)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": message})
}

func (h *AuthHandler) SignIn(c *gin.Context) {
	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	token, admin, err := h.authService.SignIn(c.Request.Context(), req.Address, req.Nonce, req.Signature)
	if err != nil {
		respondError(c, err)
		return
	}

	c.SetCookie(middleware.AdminCookie, token, int(h.sessionTTL.Seconds()), "/", "", h.secureCookie, true)
	c.JSON(http.StatusOK, gin.H{"address": admin.WalletAddress, "role": admin.Role})
}

func (h *AuthHandler) SignOut(c *gin.Context) {
	c.SetCookie(middleware.AdminCookie, "", -1, "/", "", h.secureCookie, true)
	c.JSON(http.StatusOK, gin.H{"signed_out": true})
}
