package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"growth-chat/internal/domain"
)

// SectionRepository expone las secciones de curso en modo lectura.
type SectionRepository interface {
	GetByID(ctx context.Context, id int64) (domain.Section, error)
}

type PgSectionRepository struct {
	pool *pgxpool.Pool
}

func NewPgSectionRepository(pool *pgxpool.Pool) *PgSectionRepository {
	return &PgSectionRepository{pool: pool}
}

func (r *PgSectionRepository) GetByID(ctx context.Context, id int64) (domain.Section, error) {
	const query = `
		SELECT id, course_id, title, content
		FROM sections
		WHERE id = $1
	`
	var s domain.Section
	err := r.pool.QueryRow(ctx, query, id).Scan(&s.ID, &s.CourseID, &s.Title, &s.Content)
	if err != nil {
		return domain.Section{}, err
	}
	return s, nil
}
