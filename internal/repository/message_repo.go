package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"growth-chat/internal/domain"
)

type ChatMessageRepository interface {
	Create(ctx context.Context, message domain.ChatMessage) (domain.ChatMessage, error)
	ListBySessionID(ctx context.Context, sessionID int64) ([]domain.ChatMessage, error)
	ListRecentBySessionID(ctx context.Context, sessionID int64, limit int) ([]domain.ChatMessage, error)
}

type PgChatMessageRepository struct {
	pool *pgxpool.Pool
}

func NewPgChatMessageRepository(pool *pgxpool.Pool) *PgChatMessageRepository {
	return &PgChatMessageRepository{pool: pool}
}

func (r *PgChatMessageRepository) Create(ctx context.Context, message domain.ChatMessage) (domain.ChatMessage, error) {
	const query = `
		INSERT INTO chat_messages (session_id, user_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := r.pool.QueryRow(ctx, query,
		message.SessionID,
		message.UserID,
		string(message.Role),
		message.Content,
		message.CreatedAt,
	).Scan(&message.ID)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	return message, nil
}

func (r *PgChatMessageRepository) ListBySessionID(ctx context.Context, sessionID int64) ([]domain.ChatMessage, error) {
	const query = `
		SELECT id, session_id, user_id, role, content, created_at
		FROM chat_messages
		WHERE session_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	return collectMessages(rows)
}

// ListRecentBySessionID devuelve los últimos limit mensajes en orden ascendente.
func (r *PgChatMessageRepository) ListRecentBySessionID(ctx context.Context, sessionID int64, limit int) ([]domain.ChatMessage, error) {
	const query = `
		SELECT id, session_id, user_id, role, content, created_at
		FROM (
			SELECT id, session_id, user_id, role, content, created_at
			FROM chat_messages
			WHERE session_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.pool.Query(ctx, query, sessionID, limit)
	if err != nil {
		return nil, err
	}
	return collectMessages(rows)
}

func collectMessages(rows pgx.Rows) ([]domain.ChatMessage, error) {
	defer rows.Close()

	var messages []domain.ChatMessage
	for rows.Next() {
		var msg domain.ChatMessage
		var role string
		err := rows.Scan(
			&msg.ID,
			&msg.SessionID,
			&msg.UserID,
			&role,
			&msg.Content,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		msg.Role = domain.Role(role)
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}
