package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"growth-chat/internal/llm"
	"growth-chat/internal/service"
)

type errorResponse struct {
	Status  int    `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeError(c *gin.Context, status int, message string) {
	c.JSON(status, errorResponse{
		Status:  status,
		Error:   http.StatusText(status),
		Message: message,
	})
}

// writeChatError traduce errores del orquestador y del gateway a respuestas HTTP.
func writeChatError(c *gin.Context, logger *zap.Logger, err error) {
	var upstream *llm.UpstreamError
	var transport *llm.TransportError

	switch {
	case errors.Is(err, service.ErrChatInvalidInput),
		errors.Is(err, service.ErrChatBadRequest),
		errors.Is(err, llm.ErrInvalidInput):
		writeError(c, http.StatusBadRequest, publicMessage(err))
	case errors.Is(err, service.ErrChatUnauthorized):
		writeError(c, http.StatusUnauthorized, unauthorizedMessage)
	case errors.Is(err, service.ErrChatAccessDenied):
		writeError(c, http.StatusForbidden, publicMessage(service.ErrChatAccessDenied))
	case errors.Is(err, service.ErrChatNotFound):
		writeError(c, http.StatusNotFound, publicMessage(service.ErrChatNotFound))
	case errors.Is(err, llm.ErrTimeout):
		writeError(c, http.StatusGatewayTimeout, "AI provider timed out")
	case errors.As(err, &upstream):
		writeError(c, http.StatusBadGateway, fmt.Sprintf("AI provider error (status %d)", upstream.Status))
	case errors.As(err, &transport):
		writeError(c, http.StatusBadGateway, "AI provider unreachable")
	default:
		logger.Error("chat request failed", zap.Error(err), zap.String("path", c.FullPath()))
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func publicMessage(err error) string {
	return strings.TrimPrefix(err.Error(), "chat: ")
}
