package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/eventbook/internal/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufSize    = 256
)

// bufPool pools bytes.Buffer for JSON encoding in the hot-path (writePump).
var bufPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// Client represents a single WebSocket connection.
// Lifecycle: NewClient -> Start(ctx, cancel) -> [readPump, writePump] -> Close -> Wait.
//
// userID/activityID/chatID — привязка сессии. Заполняются только после
// успешного join (всегда под h.mu, см. Hub.bindRoom) и читаются либо из
// горутины readPump, либо под h.mu.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan any
	id   string // session id, только для логов

	userID     int64
	activityID int64
	chatID     int64
	// registered выставляется в Hub.addClient; без него removeClient
	// не трогает счётчик (клиент мог быть отбит лимитом подключений).
	registered bool

	// done is used as a non-blocking guard in sendToClient.
	done chan struct{}
	// cancel cancels the context passed to Start, triggering pump shutdown.
	cancel context.CancelFunc
	once   sync.Once
	wg     sync.WaitGroup
}

func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan any, sendBufSize),
		id:   uuid.NewString(),
		done: make(chan struct{}),
	}
}

// joined reports whether this session passed a successful join.
// Вызывается только из readPump, гонок с bindRoom нет.
func (c *Client) joined() bool {
	return c.chatID != 0
}

// Start launches readPump and writePump goroutines with controlled lifecycle.
// ctx controls pump lifetime; cancel is stored for Close().
func (c *Client) Start(ctx context.Context, cancel context.CancelFunc) {
	c.cancel = cancel
	c.wg.Add(2)
	go c.writePump(ctx)
	go c.readPump(ctx)
}

// Wait blocks until both pump goroutines have exited.
func (c *Client) Wait() {
	c.wg.Wait()
}

// Close signals the client to stop. Safe to call multiple times from any goroutine.
// Сокет рвёт writePump: на отмене контекста он доливает send и шлёт CloseMessage,
// иначе пара "error + close" до клиента не доезжает. readPump разблокируется,
// когда writePump закроет соединение в defer.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		if c.cancel != nil {
			c.cancel()
			return
		}
		// Пампы не запущены — закрываем напрямую.
		c.conn.Close()
	})
}

// readPump reads events from the WebSocket connection.
// Exits on read error or context cancel; сокет на остановке закрывает writePump.
func (c *Client) readPump(ctx context.Context) {
	defer c.wg.Done()
	defer func() {
		c.hub.Unregister(c)
		// Не трогаем сокет напрямую: Close отменяет контекст, writePump
		// доливает буфер, шлёт close-фрейм и закрывает соединение сам.
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logger.Errorf("ws set read deadline session=%s: %v", c.id, err)
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Errorf("ws read error session=%s: %v", c.id, err)
			}
			return
		}

		var ev IncomingEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			c.hub.sendToClient(c, errorEvent("Invalid JSON"))
			continue
		}

		c.hub.HandleEvent(c, ev)
	}
}

// writePump writes events to the WebSocket connection.
// На отмене контекста сначала доливает накопившийся буфер (важно для пары
// "error + close"), затем шлёт CloseMessage.
func (c *Client) writePump(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			c.drain()
			if err := c.conn.WriteMessage(websocket.CloseMessage, nil); err != nil {
				logger.Errorf("ws close message session=%s: %v", c.id, err)
			}
			return
		case ev := <-c.send:
			if err := c.writeEvent(ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logger.Errorf("ws set write deadline session=%s: %v", c.id, err)
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// drain flushes pending events from the send buffer before the close frame.
func (c *Client) drain() {
	for {
		select {
		case ev := <-c.send:
			if err := c.writeEvent(ev); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Client) writeEvent(ev any) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		logger.Errorf("ws set write deadline session=%s: %v", c.id, err)
		return err
	}
	buf := bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	enc := json.NewEncoder(buf)
	if err := enc.Encode(ev); err != nil {
		bufPool.Put(buf)
		logger.Errorf("ws marshal error session=%s: %v", c.id, err)
		return nil
	}
	data := buf.Bytes()
	// json.Encoder appends '\n'; trim it for WebSocket text messages.
	if len(data) > 0 && data[len(data)-1] == '\n' {
		data = data[:len(data)-1]
	}
	writeErr := c.conn.WriteMessage(websocket.TextMessage, data)
	bufPool.Put(buf)
	return writeErr
}
