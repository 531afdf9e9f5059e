package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"growth-chat/internal/domain"
	"growth-chat/internal/repository"
)

func TestUserStoreRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	users := NewStore().Users()

	if _, err := users.Create(ctx, domain.User{Email: "a@example.com", Username: "a"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := users.Create(ctx, domain.User{Email: "a@example.com", Username: "b"})
	var conflict repository.ConflictError
	if !errors.As(err, &conflict) || conflict.Constraint != repository.ConstraintUsersEmail {
		t.Fatalf("expected email conflict, got %v", err)
	}
	_, err = users.Create(ctx, domain.User{Email: "b@example.com", Username: "a"})
	if !errors.As(err, &conflict) || conflict.Constraint != repository.ConstraintUsersUsername {
		t.Fatalf("expected username conflict, got %v", err)
	}
	if _, err := users.GetByEmail(ctx, "missing@example.com"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestChatSessionStoreOrderingAndTouch(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	sessions := store.Sessions()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	legacy, _ := sessions.Create(ctx, domain.ChatSession{UserID: 1, Title: "legacy", CreatedAt: base.Add(2 * time.Hour)})
	older, _ := sessions.Create(ctx, domain.ChatSession{UserID: 1, Title: "older", CreatedAt: base, UpdatedAt: ptrTime(base.Add(time.Hour))})
	_, _ = sessions.Create(ctx, domain.ChatSession{UserID: 2, Title: "foreign", CreatedAt: base.Add(5 * time.Hour)})

	list, err := sessions.ListByUser(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != legacy.ID || list[1].ID != older.ID {
		t.Fatalf("unexpected order: %+v", list)
	}

	if err := sessions.Touch(ctx, older.ID, base.Add(3*time.Hour)); err != nil {
		t.Fatalf("touch: %v", err)
	}
	if err := sessions.Touch(ctx, older.ID, base); err != nil {
		t.Fatalf("touch backwards: %v", err)
	}
	got, _ := sessions.GetByIDAndUser(ctx, older.ID, 1)
	if !got.UpdatedAt.Equal(base.Add(3 * time.Hour)) {
		t.Fatalf("expected updated_at to stay monotonic, got %s", got.UpdatedAt)
	}

	if _, err := sessions.GetByIDAndUser(ctx, older.ID, 2); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected foreign lookup to miss, got %v", err)
	}
}

func TestChatSessionStoreSectionUniqueness(t *testing.T) {
	ctx := context.Background()
	sessions := NewStore().Sessions()
	sectionID := int64(7)

	if _, err := sessions.Create(ctx, domain.ChatSession{UserID: 1, SectionID: &sectionID}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := sessions.Create(ctx, domain.ChatSession{UserID: 1, SectionID: &sectionID}); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := sessions.Create(ctx, domain.ChatSession{UserID: 2, SectionID: &sectionID}); err != nil {
		t.Fatalf("other user should get own section session: %v", err)
	}
}

func TestDeleteCascadesMessages(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	session, _ := store.Sessions().Create(ctx, domain.ChatSession{UserID: 1, CreatedAt: time.Now()})
	for i := 0; i < 3; i++ {
		if _, err := store.Messages().Create(ctx, domain.ChatMessage{SessionID: session.ID, UserID: 1, Role: domain.RoleUser, Content: "hi", CreatedAt: time.Now()}); err != nil {
			t.Fatalf("create message: %v", err)
		}
	}

	if err := store.Sessions().Delete(ctx, session.ID, 2); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected foreign delete to miss, got %v", err)
	}
	if err := store.Sessions().Delete(ctx, session.ID, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	msgs, _ := store.Messages().ListBySessionID(ctx, session.ID)
	if len(msgs) != 0 {
		t.Fatalf("expected messages to be removed, got %d", len(msgs))
	}
}

func TestListRecentBySessionID(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	session, _ := store.Sessions().Create(ctx, domain.ChatSession{UserID: 1})
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, _ = store.Messages().Create(ctx, domain.ChatMessage{SessionID: session.ID, Content: string(rune('a' + i)), CreatedAt: base.Add(time.Duration(i) * time.Second)})
	}

	recent, _ := store.Messages().ListRecentBySessionID(ctx, session.ID, 2)
	if len(recent) != 2 || recent[0].Content != "d" || recent[1].Content != "e" {
		t.Fatalf("unexpected recent messages: %+v", recent)
	}
}

func ptrTime(t time.Time) *time.Time {
	return &t
}
