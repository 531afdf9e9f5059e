package service

import (
	"context"
	"errors"
	"time"

	"github.com/patrickmn/go-cache"

	"growth-chat/internal/domain"
	"growth-chat/internal/repository"
)

// UserDirectory resuelve el subject autenticado a un usuario registrado.
type UserDirectory interface {
	ResolveSubject(ctx context.Context, subject string) (domain.User, error)
}

// RepositoryUserDirectory consulta directamente el repositorio de usuarios.
type RepositoryUserDirectory struct {
	users repository.UserRepository
}

func NewRepositoryUserDirectory(users repository.UserRepository) *RepositoryUserDirectory {
	return &RepositoryUserDirectory{users: users}
}

func (d *RepositoryUserDirectory) ResolveSubject(ctx context.Context, subject string) (domain.User, error) {
	subject = normalizeEmail(subject)
	if subject == "" {
		return domain.User{}, ErrUserNotFound
	}
	user, err := d.users.GetByEmail(ctx, subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

// CachedUserDirectory guarda en memoria las resoluciones exitosas.
type CachedUserDirectory struct {
	next  UserDirectory
	cache *cache.Cache
}

func NewCachedUserDirectory(next UserDirectory, ttl time.Duration) *CachedUserDirectory {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedUserDirectory{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (d *CachedUserDirectory) ResolveSubject(ctx context.Context, subject string) (domain.User, error) {
	key := normalizeEmail(subject)
	if key == "" {
		return domain.User{}, ErrUserNotFound
	}
	if cached, ok := d.cache.Get(key); ok {
		if user, ok := cached.(domain.User); ok {
			return user, nil
		}
	}
	user, err := d.next.ResolveSubject(ctx, key)
	if err != nil {
		return domain.User{}, err
	}
	d.cache.SetDefault(key, user)
	return user, nil
}
