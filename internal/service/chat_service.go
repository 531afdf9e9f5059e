package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"growth-chat/internal/domain"
	"growth-chat/internal/llm"
	"growth-chat/internal/repository"
)

const (
	EmptyReplyPlaceholder = "(Empty response)"
	DefaultChatTitle      = "New chat"
	SectionSystemPrompt   = "You are a helpful course assistant. Answer based on the section content."

	titleMaxRunes              = 30
	defaultSectionHistoryLimit = 50
)

var (
	ErrChatInvalidInput  = errors.New("chat: invalid input")
	ErrChatBadRequest    = errors.New("chat: session id is required")
	ErrChatUnauthorized  = errors.New("chat: unauthorized")
	ErrChatAccessDenied  = errors.New("chat: session not found or access denied")
	ErrChatNotFound      = errors.New("chat: not found")
	ErrChatNotConfigured = errors.New("chat service not configured")
)

// ChatServiceDeps agrupa las dependencias del orquestador.
type ChatServiceDeps struct {
	Users               UserDirectory
	Sessions            repository.ChatSessionRepository
	Messages            repository.ChatMessageRepository
	Sections            repository.SectionRepository
	LLM                 llm.LLMClient
	Logger              *zap.Logger
	DefaultModel        string
	SectionHistoryLimit int
	Now                 func() time.Time
}

// ChatService orquesta un turno de chat: sesión, mensajes y llamada al modelo.
type ChatService struct {
	users        UserDirectory
	sessions     repository.ChatSessionRepository
	messages     *MessageService
	sections     repository.SectionRepository
	llm          llm.LLMClient
	logger       *zap.Logger
	defaultModel string
	historyLimit int
	now          func() time.Time
}

func NewChatService(deps ChatServiceDeps) *ChatService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if strings.TrimSpace(deps.DefaultModel) == "" {
		deps.DefaultModel = llm.DefaultModel
	}
	if deps.SectionHistoryLimit <= 0 {
		deps.SectionHistoryLimit = defaultSectionHistoryLimit
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	messages := NewMessageService(deps.Messages)
	messages.now = deps.Now
	return &ChatService{
		users:        deps.Users,
		sessions:     deps.Sessions,
		messages:     messages,
		sections:     deps.Sections,
		llm:          deps.LLM,
		logger:       deps.Logger,
		defaultModel: deps.DefaultModel,
		historyLimit: deps.SectionHistoryLimit,
		now:          deps.Now,
	}
}

type ChatInput struct {
	Message      string
	SystemPrompt string
	Model        string
	SessionID    *int64
}

type ChatResult struct {
	Reply     string `json:"reply"`
	SessionID int64  `json:"sessionId"`
	Model     string `json:"model"`
	Title     string `json:"title"`
	IsNew     bool   `json:"isNew"`
}

type SessionSummary struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Model     string    `json:"model"`
	SectionID *int64    `json:"sectionId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type SectionChat struct {
	SessionID *int64               `json:"sessionId"`
	Messages  []domain.ChatMessage `json:"messages"`
}

// turn describe un intercambio ya validado y con sesión resuelta.
type turn struct {
	user         domain.User
	session      domain.ChatSession
	isNew        bool
	stored       string
	prompt       string
	systemPrompt string
	model        string
}

// BuildTitle deriva el título de una sesión nueva a partir del primer mensaje.
func BuildTitle(message string) string {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return DefaultChatTitle
	}
	if utf8.RuneCountInString(trimmed) <= titleMaxRunes {
		return trimmed
	}
	runes := []rune(trimmed)
	return string(runes[:titleMaxRunes]) + "…"
}

func (s *ChatService) Chat(ctx context.Context, in ChatInput, subject string) (ChatResult, error) {
	if err := s.ready(); err != nil {
		return ChatResult{}, err
	}
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return ChatResult{}, fmt.Errorf("%w: message must not be blank", ErrChatInvalidInput)
	}
	user, err := s.resolveUser(ctx, subject, ErrChatAccessDenied)
	if err != nil {
		return ChatResult{}, err
	}
	model := s.modelOrDefault(in.Model)

	var (
		session domain.ChatSession
		isNew   bool
	)
	if in.SessionID == nil {
		session, err = s.createSession(ctx, user, BuildTitle(message), model, nil)
		if err != nil {
			return ChatResult{}, err
		}
		isNew = true
	} else {
		session, err = s.sessions.GetByIDAndUser(ctx, *in.SessionID, user.ID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ChatResult{}, ErrChatAccessDenied
			}
			return ChatResult{}, fmt.Errorf("load session: %w", err)
		}
	}

	return s.exchange(ctx, turn{
		user:         user,
		session:      session,
		isNew:        isNew,
		stored:       message,
		prompt:       message,
		systemPrompt: strings.TrimSpace(in.SystemPrompt),
		model:        model,
	})
}

// exchange persiste USER, llama al modelo, persiste ASSISTANT y actualiza la sesión.
// Usa un contexto sin cancelación para que un cliente desconectado no corte el turno.
func (s *ChatService) exchange(ctx context.Context, t turn) (ChatResult, error) {
	detached := context.WithoutCancel(ctx)

	userAt := s.now().UTC()
	if _, err := s.messages.Append(detached, domain.ChatMessage{
		SessionID: t.session.ID,
		UserID:    t.user.ID,
		Role:      domain.RoleUser,
		Content:   t.stored,
		CreatedAt: userAt,
	}); err != nil {
		return ChatResult{}, fmt.Errorf("store user message: %w", err)
	}

	reply, err := s.llm.Generate(detached, llm.GenerateRequest{
		Message:      t.prompt,
		SystemPrompt: t.systemPrompt,
		Model:        t.model,
	})
	if err != nil {
		s.logger.Warn("chat reply failed",
			zap.Int64("session_id", t.session.ID),
			zap.String("model", t.model),
			zap.Error(err),
		)
		return ChatResult{}, fmt.Errorf("generate reply: %w", err)
	}
	if strings.TrimSpace(reply) == "" {
		reply = EmptyReplyPlaceholder
	}

	assistantAt := s.now().UTC()
	if assistantAt.Before(userAt) {
		assistantAt = userAt
	}
	if _, err := s.messages.Append(detached, domain.ChatMessage{
		SessionID: t.session.ID,
		UserID:    t.user.ID,
		Role:      domain.RoleAssistant,
		Content:   reply,
		CreatedAt: assistantAt,
	}); err != nil {
		return ChatResult{}, fmt.Errorf("store assistant message: %w", err)
	}
	if err := s.sessions.Touch(detached, t.session.ID, assistantAt); err != nil {
		return ChatResult{}, fmt.Errorf("touch session: %w", err)
	}

	return ChatResult{
		Reply:     reply,
		SessionID: t.session.ID,
		Model:     t.model,
		Title:     t.session.Title,
		IsNew:     t.isNew,
	}, nil
}

func (s *ChatService) ListSessions(ctx context.Context, subject string) ([]SessionSummary, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	user, err := s.resolveUser(ctx, subject, ErrChatUnauthorized)
	if err != nil {
		return nil, err
	}
	sessions, err := s.sessions.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		ai, aj := sessions[i].LastActivity(), sessions[j].LastActivity()
		if !ai.Equal(aj) {
			return ai.After(aj)
		}
		return sessions[i].ID > sessions[j].ID
	})

	out := make([]SessionSummary, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, SessionSummary{
			ID:        session.ID,
			Title:     session.Title,
			Model:     session.Model,
			SectionID: session.SectionID,
			CreatedAt: session.CreatedAt,
			UpdatedAt: session.LastActivity(),
		})
	}
	return out, nil
}

func (s *ChatService) ListMessages(ctx context.Context, sessionID int64, subject string) ([]domain.ChatMessage, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	user, err := s.resolveUser(ctx, subject, ErrChatUnauthorized)
	if err != nil {
		return nil, err
	}
	if sessionID <= 0 {
		return nil, ErrChatBadRequest
	}
	if _, err := s.sessions.GetByIDAndUser(ctx, sessionID, user.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	return s.messages.ListBySession(ctx, sessionID)
}

func (s *ChatService) DeleteSession(ctx context.Context, sessionID int64, subject string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if sessionID <= 0 {
		return fmt.Errorf("%w: session id is required", ErrChatInvalidInput)
	}
	user, err := s.resolveUser(ctx, subject, ErrChatAccessDenied)
	if err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, sessionID, user.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrChatAccessDenied
		}
		return fmt.Errorf("delete session: %w", err)
	}
	s.logger.Info("chat session deleted", zap.Int64("session_id", sessionID), zap.Int64("user_id", user.ID))
	return nil
}

// ChatInSection conversa sobre una sección de curso; hay una sola sesión por usuario y sección.
func (s *ChatService) ChatInSection(ctx context.Context, sectionID int64, in ChatInput, subject string) (ChatResult, error) {
	if err := s.ready(); err != nil {
		return ChatResult{}, err
	}
	if s.sections == nil {
		return ChatResult{}, ErrChatNotConfigured
	}
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return ChatResult{}, fmt.Errorf("%w: message must not be blank", ErrChatInvalidInput)
	}
	if sectionID <= 0 {
		return ChatResult{}, fmt.Errorf("%w: section id is required", ErrChatInvalidInput)
	}
	user, err := s.resolveUser(ctx, subject, ErrChatAccessDenied)
	if err != nil {
		return ChatResult{}, err
	}
	section, err := s.sections.GetByID(ctx, sectionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ChatResult{}, ErrChatNotFound
		}
		return ChatResult{}, fmt.Errorf("load section: %w", err)
	}
	model := s.modelOrDefault(in.Model)

	session, isNew, err := s.sectionSession(ctx, user, sectionID, message, model)
	if err != nil {
		return ChatResult{}, err
	}

	systemPrompt := strings.TrimSpace(in.SystemPrompt)
	if systemPrompt == "" {
		systemPrompt = SectionSystemPrompt
	}
	return s.exchange(ctx, turn{
		user:         user,
		session:      session,
		isNew:        isNew,
		stored:       message,
		prompt:       section.Content + "\n\nUser question: " + message,
		systemPrompt: systemPrompt,
		model:        model,
	})
}

// GetSectionChat devuelve los últimos mensajes de la sesión de la sección, si existe.
func (s *ChatService) GetSectionChat(ctx context.Context, sectionID int64, subject string) (SectionChat, error) {
	if err := s.ready(); err != nil {
		return SectionChat{}, err
	}
	user, err := s.resolveUser(ctx, subject, ErrChatUnauthorized)
	if err != nil {
		return SectionChat{}, err
	}
	if sectionID <= 0 {
		return SectionChat{}, fmt.Errorf("%w: section id is required", ErrChatInvalidInput)
	}
	session, err := s.sessions.GetByUserAndSection(ctx, user.ID, sectionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return SectionChat{Messages: []domain.ChatMessage{}}, nil
		}
		return SectionChat{}, fmt.Errorf("load section session: %w", err)
	}
	msgs, err := s.messages.ListRecent(ctx, session.ID, s.historyLimit)
	if err != nil {
		return SectionChat{}, fmt.Errorf("list section messages: %w", err)
	}
	id := session.ID
	return SectionChat{SessionID: &id, Messages: msgs}, nil
}

func (s *ChatService) sectionSession(ctx context.Context, user domain.User, sectionID int64, message, model string) (domain.ChatSession, bool, error) {
	session, err := s.sessions.GetByUserAndSection(ctx, user.ID, sectionID)
	if err == nil {
		return session, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return domain.ChatSession{}, false, fmt.Errorf("load section session: %w", err)
	}

	session, err = s.createSession(ctx, user, BuildTitle(message), model, &sectionID)
	if err == nil {
		return session, true, nil
	}
	if !errors.Is(err, repository.ErrConflict) {
		return domain.ChatSession{}, false, err
	}
	// Otra request creó la sesión primero.
	session, err = s.sessions.GetByUserAndSection(ctx, user.ID, sectionID)
	if err != nil {
		return domain.ChatSession{}, false, fmt.Errorf("reload section session: %w", err)
	}
	return session, false, nil
}

func (s *ChatService) createSession(ctx context.Context, user domain.User, title, model string, sectionID *int64) (domain.ChatSession, error) {
	now := s.now().UTC()
	session, err := s.sessions.Create(ctx, domain.ChatSession{
		UserID:    user.ID,
		Title:     title,
		Model:     model,
		SectionID: sectionID,
		CreatedAt: now,
		UpdatedAt: &now,
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return domain.ChatSession{}, err
		}
		return domain.ChatSession{}, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// resolveUser devuelve denied cuando el subject está vacío o no corresponde a un usuario.
func (s *ChatService) resolveUser(ctx context.Context, subject string, denied error) (domain.User, error) {
	if strings.TrimSpace(subject) == "" {
		return domain.User{}, denied
	}
	user, err := s.users.ResolveSubject(ctx, subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return domain.User{}, denied
		}
		return domain.User{}, fmt.Errorf("resolve user: %w", err)
	}
	return user, nil
}

func (s *ChatService) modelOrDefault(model string) string {
	model = strings.TrimSpace(model)
	if model == "" {
		return s.defaultModel
	}
	return model
}

func (s *ChatService) ready() error {
	if s == nil || s.users == nil || s.sessions == nil || s.llm == nil {
		return ErrChatNotConfigured
	}
	return nil
}
