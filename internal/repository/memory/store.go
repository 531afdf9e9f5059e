package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"growth-chat/internal/domain"
	"growth-chat/internal/repository"
)

// Store guarda usuarios, sesiones y mensajes en memoria bajo un único lock.
type Store struct {
	mu       sync.RWMutex
	users    map[int64]domain.User
	sessions map[int64]domain.ChatSession
	messages map[int64][]domain.ChatMessage
	sections map[int64]domain.Section
	nextUser int64
	nextSess int64
	nextMsg  int64
}

func NewStore() *Store {
	return &Store{
		users:    make(map[int64]domain.User),
		sessions: make(map[int64]domain.ChatSession),
		messages: make(map[int64][]domain.ChatMessage),
		sections: make(map[int64]domain.Section),
	}
}

func (s *Store) Users() *UserStore { return &UserStore{s: s} }

func (s *Store) Sessions() *ChatSessionStore { return &ChatSessionStore{s: s} }

func (s *Store) Messages() *ChatMessageStore { return &ChatMessageStore{s: s} }

func (s *Store) Sections() *SectionStore { return &SectionStore{s: s} }

// PutSection carga una sección de solo lectura.
func (s *Store) PutSection(section domain.Section) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sections[section.ID] = section
}

// UserStore implementa repository.UserRepository.
type UserStore struct{ s *Store }

func (u *UserStore) Create(_ context.Context, user domain.User) (domain.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, existing := range u.s.users {
		if existing.Email == user.Email {
			return domain.User{}, repository.ConflictError{Constraint: repository.ConstraintUsersEmail}
		}
		if existing.Username == user.Username {
			return domain.User{}, repository.ConflictError{Constraint: repository.ConstraintUsersUsername}
		}
	}
	u.s.nextUser++
	user.ID = u.s.nextUser
	u.s.users[user.ID] = user
	return user, nil
}

func (u *UserStore) GetByID(_ context.Context, id int64) (domain.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	user, ok := u.s.users[id]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	return user, nil
}

func (u *UserStore) GetByEmail(_ context.Context, email string) (domain.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	for _, user := range u.s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return domain.User{}, repository.ErrNotFound
}

// ChatSessionStore implementa repository.ChatSessionRepository.
type ChatSessionStore struct{ s *Store }

func (c *ChatSessionStore) Create(_ context.Context, session domain.ChatSession) (domain.ChatSession, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if session.SectionID != nil {
		for _, existing := range c.s.sessions {
			if existing.UserID == session.UserID && existing.SectionID != nil && *existing.SectionID == *session.SectionID {
				return domain.ChatSession{}, repository.ConflictError{Constraint: "uq_chat_sessions_user_section"}
			}
		}
	}
	c.s.nextSess++
	session.ID = c.s.nextSess
	c.s.sessions[session.ID] = cloneSession(session)
	return session, nil
}

func (c *ChatSessionStore) GetByIDAndUser(_ context.Context, id, userID int64) (domain.ChatSession, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	session, ok := c.s.sessions[id]
	if !ok || !session.OwnedBy(userID) {
		return domain.ChatSession{}, repository.ErrNotFound
	}
	return cloneSession(session), nil
}

func (c *ChatSessionStore) GetByUserAndSection(_ context.Context, userID, sectionID int64) (domain.ChatSession, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	for _, session := range c.s.sessions {
		if session.UserID == userID && session.SectionID != nil && *session.SectionID == sectionID {
			return cloneSession(session), nil
		}
	}
	return domain.ChatSession{}, repository.ErrNotFound
}

func (c *ChatSessionStore) ListByUser(_ context.Context, userID int64) ([]domain.ChatSession, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	var out []domain.ChatSession
	for _, session := range c.s.sessions {
		if session.OwnedBy(userID) {
			out = append(out, cloneSession(session))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := out[i].LastActivity(), out[j].LastActivity()
		if !ai.Equal(aj) {
			return ai.After(aj)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (c *ChatSessionStore) Touch(_ context.Context, id int64, at time.Time) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	session, ok := c.s.sessions[id]
	if !ok {
		return repository.ErrNotFound
	}
	if at.After(session.LastActivity()) {
		session.UpdatedAt = &at
	} else if session.UpdatedAt == nil {
		created := session.CreatedAt
		session.UpdatedAt = &created
	}
	c.s.sessions[id] = session
	return nil
}

func (c *ChatSessionStore) Delete(_ context.Context, id, userID int64) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	session, ok := c.s.sessions[id]
	if !ok || !session.OwnedBy(userID) {
		return repository.ErrNotFound
	}
	delete(c.s.messages, id)
	delete(c.s.sessions, id)
	return nil
}

// ChatMessageStore implementa repository.ChatMessageRepository.
type ChatMessageStore struct{ s *Store }

func (m *ChatMessageStore) Create(_ context.Context, message domain.ChatMessage) (domain.ChatMessage, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.sessions[message.SessionID]; !ok {
		return domain.ChatMessage{}, repository.ErrNotFound
	}
	m.s.nextMsg++
	message.ID = m.s.nextMsg
	m.s.messages[message.SessionID] = append(m.s.messages[message.SessionID], message)
	return message, nil
}

func (m *ChatMessageStore) ListBySessionID(_ context.Context, sessionID int64) ([]domain.ChatMessage, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	return sortedMessages(m.s.messages[sessionID]), nil
}

func (m *ChatMessageStore) ListRecentBySessionID(_ context.Context, sessionID int64, limit int) ([]domain.ChatMessage, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	all := sortedMessages(m.s.messages[sessionID])
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

// SectionStore implementa repository.SectionRepository.
type SectionStore struct{ s *Store }

func (r *SectionStore) GetByID(_ context.Context, id int64) (domain.Section, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	section, ok := r.s.sections[id]
	if !ok {
		return domain.Section{}, repository.ErrNotFound
	}
	return section, nil
}

func sortedMessages(in []domain.ChatMessage) []domain.ChatMessage {
	out := make([]domain.ChatMessage, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func cloneSession(s domain.ChatSession) domain.ChatSession {
	if s.UpdatedAt != nil {
		t := *s.UpdatedAt
		s.UpdatedAt = &t
	}
	if s.SectionID != nil {
		id := *s.SectionID
		s.SectionID = &id
	}
	return s
}

var (
	_ repository.UserRepository        = (*UserStore)(nil)
	_ repository.ChatSessionRepository = (*ChatSessionStore)(nil)
	_ repository.ChatMessageRepository = (*ChatMessageStore)(nil)
	_ repository.SectionRepository     = (*SectionStore)(nil)
)
