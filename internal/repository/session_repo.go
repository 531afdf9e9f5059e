package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"growth-chat/internal/domain"
)

// ChatSessionRepository define el contrato de persistencia para sesiones de chat.
type ChatSessionRepository interface {
	Create(ctx context.Context, session domain.ChatSession) (domain.ChatSession, error)
	GetByIDAndUser(ctx context.Context, id, userID int64) (domain.ChatSession, error)
	GetByUserAndSection(ctx context.Context, userID, sectionID int64) (domain.ChatSession, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.ChatSession, error)
	Touch(ctx context.Context, id int64, at time.Time) error
	Delete(ctx context.Context, id, userID int64) error
}

type PgChatSessionRepository struct {
	pool *pgxpool.Pool
}

func NewPgChatSessionRepository(pool *pgxpool.Pool) *PgChatSessionRepository {
	return &PgChatSessionRepository{pool: pool}
}

const sessionColumns = `id, user_id, title, model, section_id, created_at, updated_at`

func (r *PgChatSessionRepository) Create(ctx context.Context, session domain.ChatSession) (domain.ChatSession, error) {
	const query = `
		INSERT INTO chat_sessions (user_id, title, model, section_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := r.pool.QueryRow(ctx, query,
		session.UserID,
		session.Title,
		session.Model,
		session.SectionID,
		session.CreatedAt,
		session.UpdatedAt,
	).Scan(&session.ID)
	if err != nil {
		return domain.ChatSession{}, translateWriteError(err)
	}
	return session, nil
}

func (r *PgChatSessionRepository) GetByIDAndUser(ctx context.Context, id, userID int64) (domain.ChatSession, error) {
	const query = `SELECT ` + sessionColumns + `
		FROM chat_sessions
		WHERE id = $1 AND user_id = $2
	`
	return scanSession(r.pool.QueryRow(ctx, query, id, userID))
}

func (r *PgChatSessionRepository) GetByUserAndSection(ctx context.Context, userID, sectionID int64) (domain.ChatSession, error) {
	const query = `SELECT ` + sessionColumns + `
		FROM chat_sessions
		WHERE user_id = $1 AND section_id = $2
	`
	return scanSession(r.pool.QueryRow(ctx, query, userID, sectionID))
}

func (r *PgChatSessionRepository) ListByUser(ctx context.Context, userID int64) ([]domain.ChatSession, error) {
	const query = `SELECT ` + sessionColumns + `
		FROM chat_sessions
		WHERE user_id = $1
		ORDER BY COALESCE(updated_at, created_at) DESC, id DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.ChatSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// Touch nunca retrocede updated_at.
func (r *PgChatSessionRepository) Touch(ctx context.Context, id int64, at time.Time) error {
	const query = `
		UPDATE chat_sessions
		SET updated_at = GREATEST(COALESCE(updated_at, created_at), $2)
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete borra la sesión y sus mensajes en una sola transacción.
func (r *PgChatSessionRepository) Delete(ctx context.Context, id, userID int64) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const lockQuery = `SELECT id FROM chat_sessions WHERE id = $1 AND user_id = $2 FOR UPDATE`
		var found int64
		if err := tx.QueryRow(ctx, lockQuery, id, userID).Scan(&found); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM chat_messages WHERE session_id = $1`, id); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM chat_sessions WHERE id = $1`, id)
		return err
	})
}

func scanSession(row pgx.Row) (domain.ChatSession, error) {
	var s domain.ChatSession
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.Title,
		&s.Model,
		&s.SectionID,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return domain.ChatSession{}, err
	}
	return s, nil
}
