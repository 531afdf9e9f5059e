package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"growth-chat/internal/service"
)

// ChatHandler expone el orquestador de conversaciones.
type ChatHandler struct {
	logger  *zap.Logger
	chat    *service.ChatService
	limiter service.RateLimiter
}

// NewChatHandler crea un ChatHandler listo para usar.
func NewChatHandler(logger *zap.Logger, chat *service.ChatService, limiter service.RateLimiter) *ChatHandler {
	if limiter == nil {
		limiter = service.AllowAll{}
	}
	return &ChatHandler{
		logger:  logger,
		chat:    chat,
		limiter: limiter,
	}
}

type chatRequest struct {
	Message       string `json:"message"`
	ChatSessionID *int64 `json:"chatSessionId"`
	SystemPrompt  string `json:"systemPrompt"`
	Model         string `json:"model"`
}

func (r chatRequest) input() service.ChatInput {
	return service.ChatInput{
		Message:      r.Message,
		SystemPrompt: r.SystemPrompt,
		Model:        r.Model,
		SessionID:    r.ChatSessionID,
	}
}

// Chat maneja POST /chat.
func (h *ChatHandler) Chat(c *gin.Context) {
	req, subject, ok := h.bindChat(c)
	if !ok {
		return
	}

	res, err := h.chat.Chat(c.Request.Context(), req.input(), subject)
	if err != nil {
		writeChatError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ListSessions maneja GET /chat/sessions.
func (h *ChatHandler) ListSessions(c *gin.Context) {
	subject, _ := SubjectFromContext(c)
	sessions, err := h.chat.ListSessions(c.Request.Context(), subject)
	if err != nil {
		writeChatError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, sessions)
}

// ListMessages maneja GET /chat/sessions/:id/messages.
func (h *ChatHandler) ListMessages(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	subject, _ := SubjectFromContext(c)
	messages, err := h.chat.ListMessages(c.Request.Context(), id, subject)
	if err != nil {
		writeChatError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

// DeleteSession maneja DELETE /chat/sessions/:id.
func (h *ChatHandler) DeleteSession(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	subject, _ := SubjectFromContext(c)
	if err := h.chat.DeleteSession(c.Request.Context(), id, subject); err != nil {
		writeChatError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SectionChat maneja POST /sections/:id/chat.
func (h *ChatHandler) SectionChat(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	req, subject, ok := h.bindChat(c)
	if !ok {
		return
	}

	res, err := h.chat.ChatInSection(c.Request.Context(), id, req.input(), subject)
	if err != nil {
		writeChatError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetSectionChat maneja GET /sections/:id/chat.
func (h *ChatHandler) GetSectionChat(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	subject, _ := SubjectFromContext(c)
	res, err := h.chat.GetSectionChat(c.Request.Context(), id, subject)
	if err != nil {
		writeChatError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *ChatHandler) bindChat(c *gin.Context) (chatRequest, string, bool) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid chat request", zap.Error(err))
		writeError(c, http.StatusBadRequest, "invalid request")
		return chatRequest{}, "", false
	}

	subject, _ := SubjectFromContext(c)
	if subject != "" && !h.limiter.Allow("chat:"+subject) {
		writeError(c, http.StatusTooManyRequests, "too many chat requests")
		return chatRequest{}, "", false
	}
	return req, subject, true
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}
