package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"growth-chat/internal/config"
	"growth-chat/internal/db"
	"growth-chat/internal/domain"
	"growth-chat/internal/llm"
	"growth-chat/internal/repository"
	"growth-chat/internal/repository/memory"
	"growth-chat/internal/service"
)

const cliEmail = "cli_test@example.com"

func main() {
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	var users repository.UserRepository
	var sessions repository.ChatSessionRepository
	var messages repository.ChatMessageRepository
	var sections repository.SectionRepository
	if cfg.StorageDriver == config.StorageDriverMemory {
		mem := memory.NewStore()
		users, sessions, messages, sections = mem.Users(), mem.Sessions(), mem.Messages(), mem.Sections()
	} else {
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			log.Fatal(err)
		}
		defer pool.Close()
		if err := db.EnsureSchema(ctx, pool); err != nil {
			log.Fatalf("schema: %v", err)
		}
		users = repository.NewPgUserRepository(pool)
		sessions = repository.NewPgChatSessionRepository(pool)
		messages = repository.NewPgChatMessageRepository(pool)
		sections = repository.NewPgSectionRepository(pool)
	}

	llmClient := llm.NewGeminiClient(llm.GeminiOptions{
		BaseURL:      cfg.AIBaseURL,
		APIKey:       cfg.AIAPIKey,
		DefaultModel: cfg.AIDefaultModel,
		Timeout:      cfg.AITimeout(),
		KeyPlacement: cfg.AIKeyPlacement,
	}, logger)

	userSvc := service.NewUserService(logger, users, nil)
	chatSvc := service.NewChatService(service.ChatServiceDeps{
		Users:               service.NewRepositoryUserDirectory(users),
		Sessions:            sessions,
		Messages:            messages,
		Sections:            sections,
		LLM:                 llmClient,
		Logger:              logger,
		DefaultModel:        llmClient.DefaultModel(),
		SectionHistoryLimit: cfg.SectionHistoryLimit,
	})

	if err := ensureUser(ctx, userSvc); err != nil {
		log.Fatal(err)
	}

	color.Cyan("===== Chat por terminal =====")
	fmt.Println("Comandos: /sessions, /open <id>, /new, /history, /delete <id>, /quit")

	var current *int64
	for {
		if current == nil {
			fmt.Print("Tu (nueva sesion) > ")
		} else {
			fmt.Printf("Tu [#%d] > ", *current)
		}
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			fields := strings.Fields(line)
			switch fields[0] {
			case "/quit", "/salir":
				return
			case "/new":
				current = nil
				fmt.Println("La proxima pregunta abre una sesion nueva.")
			case "/sessions":
				listSessions(ctx, chatSvc)
			case "/open":
				id, ok := argID(fields)
				if !ok {
					continue
				}
				current = &id
				printHistory(ctx, chatSvc, id)
			case "/history":
				if current == nil {
					fmt.Println("No hay sesion abierta.")
					continue
				}
				printHistory(ctx, chatSvc, *current)
			case "/delete":
				id, ok := argID(fields)
				if !ok {
					continue
				}
				if err := chatSvc.DeleteSession(ctx, id, cliEmail); err != nil {
					fmt.Printf("Error borrando sesion: %v\n", err)
					continue
				}
				if current != nil && *current == id {
					current = nil
				}
				fmt.Println("Sesion eliminada.")
			default:
				fmt.Println("Comando desconocido.")
			}
			continue
		}

		res, err := chatSvc.Chat(ctx, service.ChatInput{Message: line, SessionID: current}, cliEmail)
		if err != nil {
			color.Red("Error en chat: %v", err)
			continue
		}
		if res.IsNew {
			fmt.Printf("(sesion #%d: %s)\n", res.SessionID, res.Title)
		}
		id := res.SessionID
		current = &id
		color.Green("IA > %s", res.Reply)
	}
}

func ensureUser(ctx context.Context, userSvc *service.UserService) error {
	_, err := userSvc.Register(ctx, service.RegisterInput{
		Email:    cliEmail,
		Username: "cli_test",
		Password: uuid.NewString(),
	})
	if err == nil || errors.Is(err, service.ErrEmailTaken) {
		return nil
	}
	return fmt.Errorf("crear usuario cli: %w", err)
}

func listSessions(ctx context.Context, chatSvc *service.ChatService) {
	sessions, err := chatSvc.ListSessions(ctx, cliEmail)
	if err != nil {
		fmt.Printf("Error listando sesiones: %v\n", err)
		return
	}
	if len(sessions) == 0 {
		fmt.Println("No hay sesiones.")
		return
	}
	for _, s := range sessions {
		fmt.Printf("[#%d] %s (%s, ultima actividad %s)\n", s.ID, s.Title, s.Model, s.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
}

func printHistory(ctx context.Context, chatSvc *service.ChatService, sessionID int64) {
	msgs, err := chatSvc.ListMessages(ctx, sessionID, cliEmail)
	if err != nil {
		fmt.Printf("Error leyendo historial: %v\n", err)
		return
	}
	fmt.Printf("---- Historial #%d ----\n", sessionID)
	for _, m := range msgs {
		who := "Tu"
		if m.Role == domain.RoleAssistant {
			who = "IA"
		}
		fmt.Printf("%s > %s\n", who, m.Content)
	}
	fmt.Println("----------------------")
}

func argID(fields []string) (int64, bool) {
	if len(fields) < 2 {
		fmt.Println("Falta el id de la sesion.")
		return 0, false
	}
	id, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || id <= 0 {
		fmt.Println("Id invalido.")
		return 0, false
	}
	return id, true
}
