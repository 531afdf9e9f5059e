package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"growth-chat/internal/service"
)

const (
	authSubjectKey = "auth_subject"

	unauthorizedMessage = "Authentication is required to access this resource"
)

// IdentityMiddleware valida el bearer token en rutas protegidas y guarda el subject en el contexto.
func IdentityMiddleware(jwtSvc *service.JWTService, apiRoot string) gin.HandlerFunc {
	authPrefix := strings.TrimRight(apiRoot, "/") + "/auth/"
	return func(c *gin.Context) {
		if isOpenRequest(c.Request, authPrefix) {
			c.Next()
			return
		}
		if jwtSvc == nil {
			writeError(c, http.StatusInternalServerError, "jwt not configured")
			c.Abort()
			return
		}

		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if len(header) < len("Bearer ") || !strings.EqualFold(header[:len("Bearer ")], "bearer ") {
			writeError(c, http.StatusUnauthorized, unauthorizedMessage)
			c.Abort()
			return
		}

		token := strings.TrimSpace(header[len("Bearer "):])
		subject, err := jwtSvc.Verify(token)
		if err != nil {
			writeError(c, http.StatusUnauthorized, unauthorizedMessage)
			c.Abort()
			return
		}

		c.Set(authSubjectKey, subject)
		c.Next()
	}
}

func isOpenRequest(r *http.Request, authPrefix string) bool {
	if r.Method == http.MethodOptions {
		return true
	}
	path := r.URL.Path
	if path == "/health" || strings.HasPrefix(path, "/health/") {
		return true
	}
	return strings.HasPrefix(path, authPrefix)
}

// SubjectFromContext obtiene el subject autenticado desde el contexto.
func SubjectFromContext(c *gin.Context) (string, bool) {
	val, ok := c.Get(authSubjectKey)
	if !ok {
		return "", false
	}
	subject, ok := val.(string)
	return subject, ok && subject != ""
}
