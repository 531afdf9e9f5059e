package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"growth-chat/internal/service"
)

// UserHandler mantiene dependencias para registro y login.
type UserHandler struct {
	logger       *zap.Logger
	userServ     *service.UserService
	jwtServ      *service.JWTService
	loginLimiter service.RateLimiter
}

// NewUserHandler crea una instancia de UserHandler con dependencias necesarias.
func NewUserHandler(logger *zap.Logger, userServ *service.UserService, jwtServ *service.JWTService, loginLimiter service.RateLimiter) *UserHandler {
	if loginLimiter == nil {
		loginLimiter = service.AllowAll{}
	}
	return &UserHandler{
		logger:       logger,
		userServ:     userServ,
		jwtServ:      jwtServ,
		loginLimiter: loginLimiter,
	}
}

// Register maneja POST /auth/register.
func (h *UserHandler) Register(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid register request", zap.Error(err))
		writeError(c, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.userServ.Register(c.Request.Context(), service.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailTaken), errors.Is(err, service.ErrUsernameTaken):
			writeError(c, http.StatusConflict, err.Error())
		case errors.Is(err, service.ErrInvalidEmail),
			errors.Is(err, service.ErrInvalidUsername),
			errors.Is(err, service.ErrWeakPassword):
			writeError(c, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("register failed", zap.Error(err))
			writeError(c, http.StatusInternalServerError, "could not register user")
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "User registered", "id": user.ID})
}

// Login maneja POST /auth/login y emite un access token.
func (h *UserHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid login request", zap.Error(err))
		writeError(c, http.StatusBadRequest, "invalid request")
		return
	}

	if !h.loginLimiter.Allow("login:" + strings.ToLower(strings.TrimSpace(req.Email))) {
		writeError(c, http.StatusTooManyRequests, "too many login attempts")
		return
	}

	user, err := h.userServ.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			writeError(c, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.logger.Error("login failed", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "could not login")
		return
	}

	token, err := h.jwtServ.Issue(user.Email)
	if err != nil {
		h.logger.Error("issue token failed", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "could not issue token")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"accessToken": token,
		"tokenType":   "Bearer",
		"expiresIn":   int64(h.jwtServ.TTL().Seconds()),
	})
}
