package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"growth-chat/internal/config"
	"growth-chat/internal/db"
	"growth-chat/internal/email"
	apihttp "growth-chat/internal/http"
	"growth-chat/internal/llm"
	"growth-chat/internal/logging"
	"growth-chat/internal/repository"
	"growth-chat/internal/repository/memory"
	"growth-chat/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type stores struct {
	users    repository.UserRepository
	sessions repository.ChatSessionRepository
	messages repository.ChatMessageRepository
	sections repository.SectionRepository
	ping     apihttp.Pinger
	close    func()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.New(logging.Options{
		Production: cfg.IsProduction(),
		FilePath:   cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})
	defer logger.Sync()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("storage init", zap.Error(err))
	}
	defer st.close()

	if cfg.AIAPIKey == "" {
		logger.Warn("ai api key not configured")
	}
	llmClient := llm.NewGeminiClient(llm.GeminiOptions{
		BaseURL:      cfg.AIBaseURL,
		APIKey:       cfg.AIAPIKey,
		DefaultModel: cfg.AIDefaultModel,
		Timeout:      cfg.AITimeout(),
		KeyPlacement: cfg.AIKeyPlacement,
	}, logger)

	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret not configured")
	}
	jwtSvc := service.NewJWTService(service.JWTOptions{
		Secret:    cfg.JWTSecret,
		Issuer:    cfg.JWTIssuer,
		Audience:  cfg.JWTAudience,
		TTL:       cfg.JWTTTL(),
		ClockSkew: cfg.JWTClockSkew(),
	})

	emailSender := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	chatLimiter, loginLimiter, closeRedis := rateLimiters(ctx, cfg, logger)
	defer closeRedis()

	userSvc := service.NewUserService(logger, st.users, emailSender)
	chatSvc := service.NewChatService(service.ChatServiceDeps{
		Users:               service.NewCachedUserDirectory(service.NewRepositoryUserDirectory(st.users), cfg.UserCacheTTL()),
		Sessions:            st.sessions,
		Messages:            st.messages,
		Sections:            st.sections,
		LLM:                 llmClient,
		Logger:              logger,
		DefaultModel:        llmClient.DefaultModel(),
		SectionHistoryLimit: cfg.SectionHistoryLimit,
	})

	router := apihttp.NewRouter(logger,
		apihttp.RouterConfig{APIRoot: cfg.APIRoot, CORSOrigins: cfg.CORSAllowedOrigins},
		jwtSvc,
		apihttp.NewUserHandler(logger, userSvc, jwtSvc, loginLimiter),
		apihttp.NewChatHandler(logger, chatSvc, chatLimiter),
		apihttp.NewHealthHandler(logger, st.ping),
	)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting server",
		zap.String("port", cfg.HTTPPort),
		zap.String("api_root", cfg.APIRoot),
		zap.String("storage", cfg.StorageDriver),
	)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (stores, error) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		logger.Warn("using in-memory storage, data is lost on restart")
		mem := memory.NewStore()
		return stores{
			users:    mem.Users(),
			sessions: mem.Sessions(),
			messages: mem.Messages(),
			sections: mem.Sections(),
			close:    func() {},
		}, nil
	}

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return stores{}, err
	}
	if cfg.DBAutoMigrate {
		if err := db.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return stores{}, err
		}
	}
	return stores{
		users:    repository.NewPgUserRepository(pool),
		sessions: repository.NewPgChatSessionRepository(pool),
		messages: repository.NewPgChatMessageRepository(pool),
		sections: repository.NewPgSectionRepository(pool),
		ping:     func(ctx context.Context) error { return db.Ping(ctx, pool) },
		close:    pool.Close,
	}, nil
}

func rateLimiters(ctx context.Context, cfg *config.Config, logger *zap.Logger) (service.RateLimiter, service.RateLimiter, func()) {
	chat := service.NewMemoryRateLimiter(time.Minute, cfg.ChatRateLimitPerMinute)
	login := service.NewMemoryRateLimiter(time.Minute, cfg.LoginRateLimitPerMinute)
	if cfg.RedisAddr == "" {
		return chat, login, func() {}
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctxPing).Err(); err != nil {
		logger.Warn("redis ping failed, using in-memory rate limits", zap.Error(err))
		_ = redisClient.Close()
		return chat, login, func() {}
	}

	chat = service.NewRedisRateLimiter(redisClient, "ratelimit:", time.Minute, cfg.ChatRateLimitPerMinute)
	login = service.NewRedisRateLimiter(redisClient, "ratelimit:", time.Minute, cfg.LoginRateLimitPerMinute)
	return chat, login, func() { _ = redisClient.Close() }
}
