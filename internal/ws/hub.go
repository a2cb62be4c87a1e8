package ws

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/eventbook/internal/access"
	"github.com/eventbook/internal/auth"
	"github.com/eventbook/internal/logger"
	"github.com/eventbook/internal/model"
	"github.com/eventbook/internal/repository"
)

const (
	historyLimit     = 50
	maxContentLength = 1000
)

// TokenVerifier проверяет JWT из события join и возвращает пользователя.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*model.User, error)
}

// AccessResolver отвечает на вопрос "пускать ли этого пользователя в чат
// активности" и возвращает id чата (создавая его лениво).
type AccessResolver interface {
	ChatFor(ctx context.Context, activityID int64, user *model.User) (int64, error)
}

type MessageStore interface {
	Insert(ctx context.Context, m *model.ChatMessage) error
	GetByID(ctx context.Context, chatID, id int64) (*model.ChatMessage, error)
	Recent(ctx context.Context, chatID int64, limit int) ([]model.ChatMessage, error)
	FilterSeeable(ctx context.Context, chatID int64, ids []int64) ([]int64, error)
	MarkDeleted(ctx context.Context, id int64) error
}

type SeenStore interface {
	Upsert(ctx context.Context, messageID, userID int64, seenAt time.Time) error
}

// EventLimiter ограничивает частоту событий на пользователя. Если nil — лимита нет.
type EventLimiter interface {
	AllowEvent(ctx context.Context, userID int64) (bool, error)
}

// Hub держит реестр комнат: activityID -> подключения, прошедшие join.
// Состояние под mu; register/unregister идут через каналы в Run, чтобы
// учёт подключений и лимит были в одном месте.
type Hub struct {
	mu    sync.RWMutex
	rooms map[int64]map[*Client]struct{}
	total int

	maxConns int
	verifier TokenVerifier
	access   AccessResolver
	messages MessageStore
	seen     SeenStore
	limiter  EventLimiter

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub(
	verifier TokenVerifier,
	access AccessResolver,
	messages MessageStore,
	seen SeenStore,
	limiter EventLimiter,
	maxConns int,
) *Hub {
	if maxConns <= 0 {
		maxConns = 10000
	}
	return &Hub{
		rooms:      make(map[int64]map[*Client]struct{}),
		maxConns:   maxConns,
		verifier:   verifier,
		access:     access,
		messages:   messages,
		seen:       seen,
		limiter:    limiter,
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) shutdown() {
	// Collect all clients under the lock, do NOT perform I/O under mutex.
	h.mu.Lock()
	allClients := make([]*Client, 0, h.total)
	seen := make(map[*Client]struct{}, h.total)
	for _, clients := range h.rooms {
		for c := range clients {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			allClients = append(allClients, c)
		}
	}
	h.rooms = make(map[int64]map[*Client]struct{})
	h.total = 0
	h.mu.Unlock()

	// Close connections outside the lock (network I/O).
	for _, c := range allClients {
		c.Close()
	}
	for _, c := range allClients {
		c.Wait()
	}
}

// addClient учитывает подключение и проверяет лимит. В комнату клиент
// попадает только после join.
func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	if h.total >= h.maxConns {
		h.mu.Unlock()
		logger.Errorf("ws connection limit reached (%d), rejecting session=%s", h.maxConns, c.id)
		c.Close()
		return
	}
	c.registered = true
	h.total++
	h.mu.Unlock()
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	// Из комнаты убираем всегда: клиент мог успеть сделать join до того,
	// как Run обработал его register (каналы независимы), или быть отбит
	// лимитом подключений уже после join.
	if c.activityID != 0 {
		if clients, ok := h.rooms[c.activityID]; ok {
			delete(clients, c)
			if len(clients) == 0 {
				delete(h.rooms, c.activityID)
			}
		}
	}
	// Счётчик трогаем только для учтённых подключений.
	if c.registered {
		c.registered = false
		h.total--
	}
	h.mu.Unlock()

	// Network I/O outside the lock.
	c.Close()
}

// bindRoom переводит клиента в комнату активности. Повторный join — это
// явная смена комнаты: из старой клиент убирается сразу.
func (h *Hub) bindRoom(c *Client, userID, activityID, chatID int64) {
	h.mu.Lock()
	if c.activityID != 0 && c.activityID != activityID {
		if clients, ok := h.rooms[c.activityID]; ok {
			delete(clients, c)
			if len(clients) == 0 {
				delete(h.rooms, c.activityID)
			}
		}
	}
	if _, ok := h.rooms[activityID]; !ok {
		h.rooms[activityID] = make(map[*Client]struct{})
	}
	h.rooms[activityID][c] = struct{}{}
	c.userID = userID
	c.activityID = activityID
	c.chatID = chatID
	h.mu.Unlock()
}

// HandleEvent dispatches incoming WebSocket events.
// Всё, кроме join, требует привязки к комнате. Работа с БД идёт на своём
// контексте с таймаутом, а не на контексте соединения: обрыв клиента не
// должен отменять начатую запись и её броадкаст.
func (h *Hub) HandleEvent(c *Client, ev IncomingEvent) {
	logger.Debugf("ws event type=%s session=%s", ev.Type, c.id)
	switch ev.Type {
	case EventJoin:
		h.handleJoin(c, ev)
	case EventMessage, EventTyping, EventSeen, EventDelete:
		if !c.joined() {
			h.sendToClient(c, errorEvent("Join a room first"))
			return
		}
		switch ev.Type {
		case EventMessage:
			h.handleMessage(c, ev)
		case EventTyping:
			h.handleTyping(c)
		case EventSeen:
			h.handleSeen(c, ev)
		case EventDelete:
			h.handleDelete(c, ev)
		}
	default:
		h.sendToClient(c, errorEvent("Unknown event type"))
	}
}

// joinFailure maps auth/access errors to the client-facing message.
// fatal=true закрывает соединение: клиент без прав не должен висеть на сокете.
func joinFailure(err error) (msg string, fatal bool) {
	switch {
	case errors.Is(err, auth.ErrMissingToken):
		return "Authentication required", true
	case errors.Is(err, auth.ErrInvalidToken):
		return "Invalid or expired token", true
	case errors.Is(err, auth.ErrUnknownUser):
		return "User not found", true
	case errors.Is(err, access.ErrActivityNotFound):
		return "Activity not found", true
	case errors.Is(err, access.ErrForbidden):
		return "Forbidden", true
	default:
		return "Internal error", false
	}
}

func (h *Hub) handleJoin(c *Client, ev IncomingEvent) {
	defer logger.DeferLogDuration("ws.handleJoin", time.Now())()

	activityID, ok := parseID(ev.ActivityID)
	if !ok || activityID <= 0 {
		h.sendToClient(c, errorEvent("Invalid activityId"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	user, err := h.verifier.Verify(ctx, ev.Token)
	if err != nil {
		msg, fatal := joinFailure(err)
		if msg == "Internal error" {
			logger.Errorf("ws join verify session=%s: %v", c.id, err)
		}
		h.sendToClient(c, errorEvent(msg))
		if fatal {
			c.Close()
		}
		return
	}

	chatID, err := h.access.ChatFor(ctx, activityID, user)
	if err != nil {
		msg, fatal := joinFailure(err)
		if msg == "Internal error" {
			logger.Errorf("ws join access activity=%d user=%d: %v", activityID, user.ID, err)
		}
		h.sendToClient(c, errorEvent(msg))
		if fatal {
			c.Close()
		}
		return
	}

	h.bindRoom(c, user.ID, activityID, chatID)

	history, err := h.messages.Recent(ctx, chatID, historyLimit)
	if err != nil {
		logger.Errorf("ws history chat=%d: %v", chatID, err)
		h.sendToClient(c, errorEvent("Internal error"))
		return
	}
	views := make([]MessageView, 0, len(history))
	for i := range history {
		views = append(views, SerializeMessage(&history[i]))
	}
	h.sendToClient(c, HistoryEvent{Type: EventHistory, Messages: views})
}

func (h *Hub) handleMessage(c *Client, ev IncomingEvent) {
	defer logger.DeferLogDuration("ws.handleMessage", time.Now())()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if h.limiter != nil {
		allowed, err := h.limiter.AllowEvent(ctx, c.userID)
		if err != nil {
			// Лимитер недоступен — пропускаем, а не валим чат.
			logger.Errorf("ws rate limiter user=%d: %v", c.userID, err)
		} else if !allowed {
			h.sendToClient(c, errorEvent("Too many messages"))
			return
		}
	}

	content := strings.TrimSpace(ev.Content)
	if content == "" {
		h.sendToClient(c, errorEvent("Message content required"))
		return
	}
	if utf8.RuneCountInString(content) > maxContentLength {
		h.sendToClient(c, errorEvent("Message too long"))
		return
	}

	m := &model.ChatMessage{
		ChatID:  c.chatID,
		UserID:  c.userID,
		Content: content,
		Kind:    model.MessageKindUser,
	}
	if err := h.messages.Insert(ctx, m); err != nil {
		logger.Errorf("ws save message chat=%d user=%d: %v", c.chatID, c.userID, err)
		h.sendToClient(c, errorEvent("Internal error"))
		return
	}

	// Автор видел собственное сообщение.
	if err := h.seen.Upsert(ctx, m.ID, c.userID, time.Now().UTC()); err != nil {
		logger.Errorf("ws self seen message=%d user=%d: %v", m.ID, c.userID, err)
		h.sendToClient(c, errorEvent("Internal error"))
		return
	}

	// Перечитываем с автором и seenBy, чтобы все получили одинаковую проекцию.
	saved, err := h.messages.GetByID(ctx, c.chatID, m.ID)
	if err != nil {
		logger.Errorf("ws reload message=%d: %v", m.ID, err)
		h.sendToClient(c, errorEvent("Internal error"))
		return
	}

	h.Broadcast(c.activityID, MessageEvent{Type: EventMessage, Message: SerializeMessage(saved)}, nil)
}

// handleTyping — чистый сигнал, в БД ничего не пишется. Отправителю не шлётся.
func (h *Hub) handleTyping(c *Client) {
	h.Broadcast(c.activityID, TypingEvent{Type: EventTyping, UserID: c.userID}, c)
}

func (h *Hub) handleSeen(c *Client, ev IncomingEvent) {
	defer logger.DeferLogDuration("ws.handleSeen", time.Now())()

	ids := parseIDList(ev.MessageIDs)
	if len(ids) == 0 {
		h.sendToClient(c, errorEvent("messageIds array required"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Чужие и удалённые id молча отбрасываются.
	valid, err := h.messages.FilterSeeable(ctx, c.chatID, ids)
	if err != nil {
		logger.Errorf("ws seen filter chat=%d user=%d: %v", c.chatID, c.userID, err)
		h.sendToClient(c, errorEvent("Internal error"))
		return
	}
	if len(valid) == 0 {
		return
	}

	now := time.Now().UTC()
	for _, id := range valid {
		if err := h.seen.Upsert(ctx, id, c.userID, now); err != nil {
			logger.Errorf("ws seen upsert message=%d user=%d: %v", id, c.userID, err)
			h.sendToClient(c, errorEvent("Internal error"))
			return
		}
	}

	h.Broadcast(c.activityID, SeenEvent{Type: EventSeen, UserID: c.userID, MessageIDs: valid}, nil)
}

func (h *Hub) handleDelete(c *Client, ev IncomingEvent) {
	defer logger.DeferLogDuration("ws.handleDelete", time.Now())()

	activityID, ok := parseID(ev.ActivityID)
	if !ok || activityID != c.activityID {
		h.sendToClient(c, errorEvent("Invalid activityId"))
		return
	}
	messageID, ok := parseID(ev.MessageID)
	if !ok {
		h.sendToClient(c, errorEvent("Invalid messageId"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	m, err := h.messages.GetByID(ctx, c.chatID, messageID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			h.sendToClient(c, errorEvent("Message not found"))
			return
		}
		logger.Errorf("ws delete lookup message=%d: %v", messageID, err)
		h.sendToClient(c, errorEvent("Internal error"))
		return
	}

	// Повторное удаление — идемпотентный ack без броадкаста.
	if m.IsDeleted {
		h.sendToClient(c, DeleteAckEvent{Type: EventDeleteAck, OK: true, MessageID: messageID})
		return
	}
	if m.UserID != c.userID {
		h.sendToClient(c, errorEvent("Forbidden"))
		return
	}

	if err := h.messages.MarkDeleted(ctx, messageID); err != nil {
		logger.Errorf("ws delete message=%d: %v", messageID, err)
		h.sendToClient(c, errorEvent("Internal error"))
		return
	}

	h.Broadcast(c.activityID, DeletedEvent{Type: EventDeleted, MessageIDs: []int64{messageID}}, nil)
	h.sendToClient(c, DeleteAckEvent{Type: EventDeleteAck, OK: true, MessageID: messageID})
}

// Broadcast sends an event to every client bound to the activity room.
// exclude пропускает отправителя (typing). Отправка вне блокировки.
func (h *Hub) Broadcast(activityID int64, ev any, exclude *Client) {
	h.mu.RLock()
	clients, ok := h.rooms[activityID]
	if !ok {
		h.mu.RUnlock()
		return
	}
	targets := make([]*Client, 0, len(clients))
	for c := range clients {
		if c == exclude {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.sendToClient(c, ev)
	}
}

// RoomSize returns the number of clients bound to the activity room.
func (h *Hub) RoomSize(activityID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[activityID])
}

func (h *Hub) sendToClient(c *Client, ev any) {
	select {
	case c.send <- ev:
	case <-c.done:
	default:
		// Backpressure: send buffer full, close slow client.
		logger.Errorf("ws send buffer full, closing slow client session=%s", c.id)
		c.Close()
	}
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
