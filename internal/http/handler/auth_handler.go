// Package handler maps the HTTP surface onto the account and refresh-token
// services.
package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fernlabs/authgate/internal/domain"
	"github.com/fernlabs/authgate/internal/http/middleware"
	"github.com/fernlabs/authgate/internal/limiter"
	"github.com/fernlabs/authgate/internal/service"
)

// Uniform client-facing messages. Authentication failures deliberately do
// not reveal which check failed.
const (
	msgBadCredentials = "wrong username or password"
	msgBadRefresh     = "invalid refresh token"
	msgServerError    = "internal server error"
)

// AuthHandler serves registration, login, refresh, logout, and identity
// endpoints.
type AuthHandler struct {
	Accounts *service.AccountService
	Tokens   *service.RefreshTokenService
	Attempts limiter.Limiter
	Logger   *zap.Logger
}

// NewAuthHandler creates the handler set.
func NewAuthHandler(accounts *service.AccountService, tokens *service.RefreshTokenService, attempts limiter.Limiter, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{Accounts: accounts, Tokens: tokens, Attempts: attempts, Logger: logger}
}

type credentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// Register creates a new account.
func (h *AuthHandler) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	_, err := h.Accounts.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUsernameTaken):
			c.JSON(http.StatusBadRequest, gin.H{"error": domain.ErrUsernameTaken.Error()})
		case errors.Is(err, domain.ErrBadPassword):
			c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		default:
			h.log().Error("register failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": msgServerError})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "account created"})
}

// Login verifies credentials and returns an access/refresh token pair.
func (h *AuthHandler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	ip := c.ClientIP()
	if h.Attempts != nil {
		allowed, err := h.Attempts.Allow(c.Request.Context(), req.Username, ip)
		if err != nil {
			h.log().Error("login limiter check failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": msgServerError})
			return
		}
		if !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many failed attempts"})
			return
		}
	}

	access, account, err := h.Accounts.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if domain.AuthenticationFailure(err) {
			if h.Attempts != nil {
				if ferr := h.Attempts.Failure(c.Request.Context(), req.Username, ip); ferr != nil {
					h.log().Warn("login limiter record failed", zap.Error(ferr))
				}
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": msgBadCredentials})
			return
		}
		h.log().Error("login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgServerError})
		return
	}

	if h.Attempts != nil {
		if err := h.Attempts.Success(c.Request.Context(), req.Username, ip); err != nil {
			h.log().Warn("login limiter clear failed", zap.Error(err))
		}
	}

	refresh, err := h.Tokens.Issue(c.Request.Context(), account.ID)
	if err != nil {
		h.log().Error("refresh token issue failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgServerError})
		return
	}

	c.JSON(http.StatusOK, service.TokenPair{AccessToken: access, RefreshToken: refresh.Token})
}

// Refresh exchanges a refresh token for a fresh access token.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refreshToken is required"})
		return
	}

	pair, err := h.Tokens.RefreshAccessToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrTokenNotFound), errors.Is(err, domain.ErrTokenExpired):
			c.JSON(http.StatusUnauthorized, gin.H{"error": msgBadRefresh})
		default:
			h.log().Error("refresh failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": msgServerError})
		}
		return
	}

	c.JSON(http.StatusOK, pair)
}

// Logout revokes every refresh token of the authenticated account.
func (h *AuthHandler) Logout(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	if err := h.Tokens.RevokeAllForAccount(c.Request.Context(), identity.Account.ID); err != nil {
		h.log().Error("logout failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgServerError})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Me returns the authenticated account's public fields.
func (h *AuthHandler) Me(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":       identity.Account.ID,
		"username": identity.Account.Username,
	})
}

// SecuredHello is the minimal protected probe endpoint.
func (h *AuthHandler) SecuredHello(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Hello, %s! This is a secured endpoint.", identity.Account.Username)})
}

func (h *AuthHandler) log() *zap.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return zap.L()
}
