package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultModel   = "gemini-2.5-flash"
	DefaultTimeout = 15 * time.Second

	maxErrorBody   = 4 << 10
	maxBodyExcerpt = 512
)

// GeminiOptions agrupa la configuración del cliente.
type GeminiOptions struct {
	BaseURL      string
	APIKey       string
	DefaultModel string
	Timeout      time.Duration
	KeyPlacement string
	HTTPClient   *http.Client
}

// GeminiClient implementa LLMClient contra la API generateContent.
type GeminiClient struct {
	baseURL      string
	apiKey       string
	defaultModel string
	keyPlacement string
	timeout      time.Duration
	client       *http.Client
	logger       *zap.Logger
}

// NewGeminiClient construye el cliente con valores por defecto razonables.
func NewGeminiClient(opts GeminiOptions, logger *zap.Logger) *GeminiClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(opts.BaseURL) == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if strings.TrimSpace(opts.DefaultModel) == "" {
		opts.DefaultModel = DefaultModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.KeyPlacement != KeyInHeader {
		opts.KeyPlacement = KeyInQuery
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	return &GeminiClient{
		baseURL:      opts.BaseURL,
		apiKey:       opts.APIKey,
		defaultModel: opts.DefaultModel,
		keyPlacement: opts.KeyPlacement,
		timeout:      opts.Timeout,
		client:       httpClient,
		logger:       logger,
	}
}

func (c *GeminiClient) DefaultModel() string {
	return c.defaultModel
}

func (c *GeminiClient) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if strings.TrimSpace(req.Message) == "" {
		return "", ErrInvalidInput
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.defaultModel
	}

	bodyBytes, err := json.Marshal(buildPayload(req.Message, req.SystemPrompt))
	if err != nil {
		return "", &TransportError{Op: "marshal request", Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := endpointURL(c.baseURL, model, c.apiKey, c.keyPlacement)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", &TransportError{Op: "create request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.keyPlacement == KeyInHeader && c.apiKey != "" {
		httpReq.Header.Set(apiKeyHeader, c.apiKey)
	}

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		if isTimeout(ctx, err) {
			c.logger.Warn("llm request timed out", zap.String("model", model), zap.Duration("timeout", c.timeout))
			return "", fmt.Errorf("%w after %s", ErrTimeout, c.timeout)
		}
		return "", &TransportError{Op: "do request", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		excerpt := strings.TrimSpace(string(raw))
		if len(excerpt) > maxBodyExcerpt {
			excerpt = excerpt[:maxBodyExcerpt]
		}
		c.logger.Warn("llm upstream error",
			zap.String("model", model),
			zap.Int("status", resp.StatusCode),
			zap.Duration("latency", time.Since(start)),
		)
		return "", &UpstreamError{Status: resp.StatusCode, Body: excerpt}
	}

	var decoded generateContentResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		if isTimeout(ctx, err) {
			return "", fmt.Errorf("%w after %s", ErrTimeout, c.timeout)
		}
		return "", &TransportError{Op: "decode response", Err: err}
	}

	c.logger.Debug("llm reply received",
		zap.String("model", model),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)
	return extractText(decoded), nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
