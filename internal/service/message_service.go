package service

import (
	"context"
	"errors"
	"time"

	"growth-chat/internal/domain"
	"growth-chat/internal/repository"
)

// MessageService valida y persiste mensajes del historial de chat.
type MessageService struct {
	repo repository.ChatMessageRepository
	now  func() time.Time
}

var (
	ErrMessageServiceNotConfigured = errors.New("message service not configured")
	ErrMessageInvalidInput         = errors.New("message invalid input")
)

func NewMessageService(repo repository.ChatMessageRepository) *MessageService {
	return &MessageService{repo: repo, now: time.Now}
}

// Append guarda un mensaje; los mensajes nunca se modifican después.
func (s *MessageService) Append(ctx context.Context, msg domain.ChatMessage) (domain.ChatMessage, error) {
	if s == nil || s.repo == nil {
		return domain.ChatMessage{}, ErrMessageServiceNotConfigured
	}
	if msg.SessionID <= 0 || msg.UserID <= 0 || !msg.Role.Valid() || msg.Content == "" {
		return domain.ChatMessage{}, ErrMessageInvalidInput
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now().UTC()
	}
	return s.repo.Create(ctx, msg)
}

func (s *MessageService) ListBySession(ctx context.Context, sessionID int64) ([]domain.ChatMessage, error) {
	if s == nil || s.repo == nil {
		return nil, ErrMessageServiceNotConfigured
	}
	if sessionID <= 0 {
		return []domain.ChatMessage{}, nil
	}
	msgs, err := s.repo.ListBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []domain.ChatMessage{}
	}
	return msgs, nil
}

func (s *MessageService) ListRecent(ctx context.Context, sessionID int64, limit int) ([]domain.ChatMessage, error) {
	if s == nil || s.repo == nil {
		return nil, ErrMessageServiceNotConfigured
	}
	if sessionID <= 0 {
		return []domain.ChatMessage{}, nil
	}
	msgs, err := s.repo.ListRecentBySessionID(ctx, sessionID, limit)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []domain.ChatMessage{}
	}
	return msgs, nil
}
