package model

import "time"

type MessageKind string

const (
	MessageKindUser   MessageKind = "user"
	MessageKindSystem MessageKind = "system"
)

// ChatMessage — сообщение в журнале чата. Удаление логическое: is_deleted=true,
// content сохраняется для аудита и никогда не отдаётся клиентам.
type ChatMessage struct {
	ID        int64       `json:"id"`
	ChatID    int64       `json:"chat_id"`
	UserID    int64       `json:"user_id"`
	Content   string      `json:"content"`
	Kind      MessageKind `json:"kind"`
	IsDeleted bool        `json:"is_deleted"`
	CreatedAt time.Time   `json:"created_at"`

	// Проекция для сериализации (JOIN-ы, не колонки chat_messages).
	Author *User   `json:"author,omitempty"`
	SeenBy []int64 `json:"seen_by,omitempty"`
}
