package ws

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/eventbook/internal/model"
)

type EventType string

const (
	EventJoin      EventType = "join"
	EventMessage   EventType = "message"
	EventTyping    EventType = "typing"
	EventSeen      EventType = "seen"
	EventDelete    EventType = "delete"
	EventHistory   EventType = "history"
	EventDeleted   EventType = "deleted"
	EventDeleteAck EventType = "delete-ack"
	EventError     EventType = "error"
)

// IncomingEvent is what the client sends to the server.
// Ids arrive as raw JSON: clients send both numbers and numeric strings,
// non-numeric entries are discarded at the parse step, not rejected wholesale.
type IncomingEvent struct {
	Type       EventType         `json:"type"`
	ActivityID json.RawMessage   `json:"activityId,omitempty"`
	Token      string            `json:"token,omitempty"`
	Content    string            `json:"content,omitempty"`
	MessageID  json.RawMessage   `json:"messageId,omitempty"`
	MessageIDs []json.RawMessage `json:"messageIds,omitempty"`
}

// --- Typed outbound events (flat wire shapes, avoid map[string]any allocations) ---

type HistoryEvent struct {
	Type     EventType     `json:"type"`
	Messages []MessageView `json:"messages"`
}

type MessageEvent struct {
	Type    EventType   `json:"type"`
	Message MessageView `json:"message"`
}

type TypingEvent struct {
	Type   EventType `json:"type"`
	UserID int64     `json:"userId"`
}

type SeenEvent struct {
	Type       EventType `json:"type"`
	UserID     int64     `json:"userId"`
	MessageIDs []int64   `json:"messageIds"`
}

type DeletedEvent struct {
	Type       EventType `json:"type"`
	MessageIDs []int64   `json:"messageIds"`
}

type DeleteAckEvent struct {
	Type      EventType `json:"type"`
	OK        bool      `json:"ok"`
	MessageID int64     `json:"messageId"`
}

type ErrorEvent struct {
	Type    EventType `json:"type"`
	Message string    `json:"message"`
}

func errorEvent(message string) ErrorEvent {
	return ErrorEvent{Type: EventError, Message: message}
}

// MessageView — клиентская проекция сообщения (история и броадкасты).
type MessageView struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	UserName  string    `json:"userName"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	SeenBy    []int64   `json:"seenBy"`
	System    bool      `json:"system"`
}

// legacySystemPrefix — старые строки хранили маркер системного сообщения прямо
// в content; новые строки используют колонку kind. Срезается при сериализации.
const legacySystemPrefix = "__system__:"

// SerializeMessage строит клиентскую проекцию: имя автора скрывается для
// системных сообщений, seenBy всегда массив (не null).
func SerializeMessage(m *model.ChatMessage) MessageView {
	content := m.Content
	system := m.Kind == model.MessageKindSystem
	if strings.HasPrefix(content, legacySystemPrefix) {
		system = true
		content = strings.TrimSpace(content[len(legacySystemPrefix):])
	}
	userName := ""
	if !system {
		userName = m.Author.DisplayName()
	}
	seenBy := m.SeenBy
	if seenBy == nil {
		seenBy = []int64{}
	}
	return MessageView{
		ID:        m.ID,
		UserID:    m.UserID,
		UserName:  userName,
		Content:   content,
		CreatedAt: m.CreatedAt,
		SeenBy:    seenBy,
		System:    system,
	}
}

// parseID разбирает id из сырого JSON: число или строка с числом.
func parseID(raw json.RawMessage) (int64, bool) {
	s := string(bytes.TrimSpace(raw))
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if s == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// parseIDList разбирает список id, молча отбрасывая нечисловые элементы.
func parseIDList(raw []json.RawMessage) []int64 {
	ids := make([]int64, 0, len(raw))
	for _, r := range raw {
		if id, ok := parseID(r); ok {
			ids = append(ids, id)
		}
	}
	return ids
}
