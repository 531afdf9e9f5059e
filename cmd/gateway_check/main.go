package main

import (
	"context"
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"growth-chat/internal/config"
	"growth-chat/internal/llm"
)

// Scenario describe una llamada al proveedor y lo que se espera de ella.
type Scenario struct {
	Name         string
	Message      string
	SystemPrompt string
	Model        string
	MustContain  string
	WantUpstream bool
}

func main() {
	ctx := context.Background()
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.AIAPIKey == "" {
		log.Fatal("AI_API_KEY is required")
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	client := llm.NewGeminiClient(llm.GeminiOptions{
		BaseURL:      cfg.AIBaseURL,
		APIKey:       cfg.AIAPIKey,
		DefaultModel: cfg.AIDefaultModel,
		Timeout:      cfg.AITimeout(),
		KeyPlacement: cfg.AIKeyPlacement,
	}, logger)

	scenarios := []Scenario{
		{
			Name:    "Saludo basico",
			Message: "Say hello in one short sentence.",
		},
		{
			Name:         "Respeta system prompt",
			Message:      "What is the answer?",
			SystemPrompt: "Reply with exactly the single word PONG and nothing else.",
			MustContain:  "pong",
		},
		{
			Name:         "Contexto de seccion",
			Message:      "Growth loops turn the output of one cycle into the input of the next.\n\nUser question: What does the output of one cycle become?",
			SystemPrompt: "You are a helpful course assistant. Answer based on the section content.",
			MustContain:  "input",
		},
		{
			Name:         "Modelo inexistente",
			Message:      "ping",
			Model:        "models/does-not-exist-model",
			WantUpstream: true,
		},
	}

	passed := 0
	total := len(scenarios)

	for _, sc := range scenarios {
		color.Cyan("=== Ejecutando: %s ===", sc.Name)

		start := time.Now()
		reply, err := client.Generate(ctx, llm.GenerateRequest{
			Message:      sc.Message,
			SystemPrompt: sc.SystemPrompt,
			Model:        sc.Model,
		})
		latency := time.Since(start).Round(time.Millisecond)

		var upstream *llm.UpstreamError
		switch {
		case sc.WantUpstream:
			if errors.As(err, &upstream) {
				color.Green("✅ PASS [%s] status=%d latency=%s\n", sc.Name, upstream.Status, latency)
				passed++
			} else {
				color.Red("❌ FAIL [%s] esperaba error upstream, got err=%v latency=%s\n", sc.Name, err, latency)
			}
		case err != nil:
			color.Red("❌ FAIL [%s] %v latency=%s\n", sc.Name, err, latency)
		case strings.TrimSpace(reply) == "":
			color.Red("❌ FAIL [%s] respuesta vacia latency=%s\n", sc.Name, latency)
		case sc.MustContain != "" && !strings.Contains(strings.ToLower(reply), sc.MustContain):
			color.Red("❌ FAIL [%s] falta %q en %q latency=%s\n", sc.Name, sc.MustContain, reply, latency)
		default:
			color.Green("✅ PASS [%s] latency=%s\n--- Respuesta ---\n%s\n-----------------\n", sc.Name, latency, reply)
			passed++
		}
	}

	if passed != total {
		color.Red("Tests: %d/%d pasaron", passed, total)
		os.Exit(1)
	}
	color.Green("Tests: %d/%d pasaron", passed, total)
}
