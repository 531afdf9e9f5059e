package http

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"growth-chat/internal/service"
)

const requestIDHeader = "X-Request-ID"

// RouterConfig agrupa los parámetros de montaje del router.
type RouterConfig struct {
	APIRoot     string
	CORSOrigins []string
}

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	cfg RouterConfig,
	jwtSvc *service.JWTService,
	userH *UserHandler,
	chatH *ChatHandler,
	healthH *HealthHandler,
) *gin.Engine {
	apiRoot := "/" + strings.Trim(cfg.APIRoot, "/")
	if apiRoot == "/" {
		apiRoot = "/api"
	}

	r := gin.New()

	r.Use(requestIDMiddleware(), zapLoggerMiddleware(logger), gin.Recovery())
	if corsMw, ok := corsMiddleware(cfg.CORSOrigins); ok {
		r.Use(corsMw)
	}
	r.Use(jsonContentTypeMiddleware(), IdentityMiddleware(jwtSvc, apiRoot))

	r.GET("/health", healthH.Live)
	r.GET("/health/db", healthH.DB)

	api := r.Group(apiRoot)

	auth := api.Group("/auth")
	auth.POST("/register", userH.Register)
	auth.POST("/login", userH.Login)

	chat := api.Group("/chat")
	chat.POST("", chatH.Chat)
	chat.GET("/sessions", chatH.ListSessions)
	chat.GET("/sessions/:id/messages", chatH.ListMessages)
	chat.DELETE("/sessions/:id", chatH.DeleteSession)

	sections := api.Group("/sections")
	sections.POST("/:id/chat", chatH.SectionChat)
	sections.GET("/:id/chat", chatH.GetSectionChat)

	return r
}

func corsMiddleware(origins []string) (gin.HandlerFunc, bool) {
	allowed := make([]string, 0, len(origins))
	wildcard := false
	for _, o := range origins {
		o = strings.TrimSpace(o)
		switch {
		case o == "":
		case o == "*":
			wildcard = true
		default:
			allowed = append(allowed, o)
		}
	}

	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Authorization", "Content-Type", requestIDHeader},
		ExposeHeaders: []string{requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	switch {
	case wildcard:
		cfg.AllowAllOrigins = true
	case len(allowed) > 0:
		cfg.AllowOrigins = allowed
		cfg.AllowCredentials = true
	default:
		return nil, false
	}
	return cors.New(cfg), true
}

// requestIDMiddleware propaga o genera un identificador por request.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("request_id", c.GetString("request_id")),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
