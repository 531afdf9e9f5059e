package domain

import "time"

// ChatSession agrupa los mensajes de una conversación de un único usuario.
type ChatSession struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"-"`
	Title     string     `json:"title"`
	Model     string     `json:"model"`
	SectionID *int64     `json:"sectionId,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// LastActivity usa UpdatedAt y cae a CreatedAt en filas antiguas sin ese dato.
func (s ChatSession) LastActivity() time.Time {
	if s.UpdatedAt != nil {
		return *s.UpdatedAt
	}
	return s.CreatedAt
}

func (s ChatSession) OwnedBy(userID int64) bool {
	return s.UserID == userID
}
