package memory

import (
	"context"
	"sync"
	"time"
)

const (
	grantTTL        = 60 * time.Second
	eventRateWindow = 60 * time.Second
)

type grant struct {
	chatID int64
	exp    time.Time
}

type key struct {
	activityID int64
	userID     int64
}

// Client — in-memory реализация GrantCache для режима -dev без Redis.
type Client struct {
	mu              sync.RWMutex
	grants          map[key]grant
	events          map[int64][]time.Time
	eventsPerMinute int
}

func New(eventsPerMinute int) *Client {
	return &Client{
		grants:          make(map[key]grant),
		events:          make(map[int64][]time.Time),
		eventsPerMinute: eventsPerMinute,
	}
}

func (c *Client) Close() error { return nil }

func (c *Client) GetGrant(ctx context.Context, activityID, userID int64) (int64, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	g, ok := c.grants[key{activityID, userID}]
	if !ok || time.Now().After(g.exp) {
		return 0, false, nil
	}
	return g.chatID, true, nil
}

func (c *Client) SetGrant(ctx context.Context, activityID, userID, chatID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.grants[key{activityID, userID}] = grant{chatID: chatID, exp: time.Now().Add(grantTTL)}
	return nil
}

func (c *Client) AllowEvent(ctx context.Context, userID int64) (bool, error) {
	if c.eventsPerMinute <= 0 {
		return true, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	cut := now.Add(-eventRateWindow)
	slice := c.events[userID]
	var kept []time.Time
	for _, t := range slice {
		if t.After(cut) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= c.eventsPerMinute {
		c.events[userID] = kept
		return false, nil
	}
	c.events[userID] = append(kept, now)
	return true, nil
}
