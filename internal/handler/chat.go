package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/eventbook/internal/access"
	"github.com/eventbook/internal/logger"
	"github.com/eventbook/internal/middleware"
	"github.com/eventbook/internal/model"
	"github.com/eventbook/internal/repository"
	"github.com/eventbook/internal/ws"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
	maxContentLen   = 1000
)

// ChatHandler — read-side REST поверх того же чата: метаданные, пагинация
// истории и служебная вставка системных сообщений.
type ChatHandler struct {
	resolver     *access.Resolver
	activityRepo *repository.ActivityRepository
	chatRepo     *repository.ChatRepository
	msgRepo      *repository.MessageRepository
	hub          *ws.Hub
}

func NewChatHandler(
	resolver *access.Resolver,
	activityRepo *repository.ActivityRepository,
	chatRepo *repository.ChatRepository,
	msgRepo *repository.MessageRepository,
	hub *ws.Hub,
) *ChatHandler {
	return &ChatHandler{
		resolver:     resolver,
		activityRepo: activityRepo,
		chatRepo:     chatRepo,
		msgRepo:      msgRepo,
		hub:          hub,
	}
}

func activityIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "activityId"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func writeAccessError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, access.ErrActivityNotFound):
		writeError(w, http.StatusNotFound, "activity not found")
	case errors.Is(err, access.ErrForbidden):
		writeError(w, http.StatusForbidden, "access denied")
	default:
		logger.Errorf("chat access: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type chatResponse struct {
	ChatID     int64 `json:"chatId"`
	ActivityID int64 `json:"activityId"`
}

// GetChat возвращает чат активности, создавая его лениво (как join по WS).
func (h *ChatHandler) GetChat(w http.ResponseWriter, r *http.Request) {
	activityID, ok := activityIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid activity id")
		return
	}
	user := middleware.GetUser(r.Context())
	chatID, err := h.resolver.ChatFor(r.Context(), activityID, user)
	if err != nil {
		writeAccessError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{ChatID: chatID, ActivityID: activityID})
}

type messagesResponse struct {
	Messages []ws.MessageView `json:"messages"`
}

// GetMessages отдаёт страницу истории, старые первыми.
// ?before=<id> — курсор назад, ?limit= — размер страницы (по умолчанию 50, максимум 200).
func (h *ChatHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	activityID, ok := activityIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid activity id")
		return
	}
	user := middleware.GetUser(r.Context())
	chatID, err := h.resolver.ChatFor(r.Context(), activityID, user)
	if err != nil {
		writeAccessError(w, err)
		return
	}

	limit := queryInt(r, "limit", defaultPageSize)
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	before := queryInt64(r, "before", 0)

	var messages []model.ChatMessage
	if before > 0 {
		messages, err = h.msgRepo.ListBefore(r.Context(), chatID, before, limit)
	} else {
		messages, err = h.msgRepo.Recent(r.Context(), chatID, limit)
	}
	if err != nil {
		logger.Errorf("chat messages chat=%d: %v", chatID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	views := make([]ws.MessageView, 0, len(messages))
	for i := range messages {
		views = append(views, ws.SerializeMessage(&messages[i]))
	}
	writeJSON(w, http.StatusOK, messagesResponse{Messages: views})
}

type systemMessageRequest struct {
	UserID  int64  `json:"userId"`
	Content string `json:"content"`
}

// PostSystemMessage вставляет системное сообщение в чат активности и
// рассылает его в комнату. Ручка закрыта InternalOnly: вызывают её свои
// сервисы (оплата, бронирование) от имени совершившего действие пользователя.
func (h *ChatHandler) PostSystemMessage(w http.ResponseWriter, r *http.Request) {
	activityID, ok := activityIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid activity id")
		return
	}

	var req systemMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	content := strings.TrimSpace(req.Content)
	if req.UserID <= 0 || content == "" {
		writeError(w, http.StatusBadRequest, "userId and content required")
		return
	}
	if utf8.RuneCountInString(content) > maxContentLen {
		writeError(w, http.StatusBadRequest, "content too long")
		return
	}

	if _, err := h.activityRepo.GetByID(r.Context(), activityID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "activity not found")
			return
		}
		logger.Errorf("system message activity=%d: %v", activityID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	chat, err := h.chatRepo.GetOrCreateForActivity(r.Context(), activityID)
	if err != nil {
		logger.Errorf("system message chat activity=%d: %v", activityID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	m := &model.ChatMessage{
		ChatID:  chat.ID,
		UserID:  req.UserID,
		Content: content,
		Kind:    model.MessageKindSystem,
	}
	if err := h.msgRepo.Insert(r.Context(), m); err != nil {
		logger.Errorf("system message insert chat=%d: %v", chat.ID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	saved, err := h.msgRepo.GetByID(r.Context(), chat.ID, m.ID)
	if err != nil {
		logger.Errorf("system message reload message=%d: %v", m.ID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	view := ws.SerializeMessage(saved)
	h.hub.Broadcast(activityID, ws.MessageEvent{Type: ws.EventMessage, Message: view}, nil)
	writeJSON(w, http.StatusCreated, view)
}
