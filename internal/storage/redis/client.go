package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTL гранта короткий: исключение участника из активности должно быстро
// закрывать ему чат. Rate limit: eventsPerMinute ws-событий на пользователя.
const (
	GrantTTL        = 60 * time.Second
	EventRateWindow = 60 * time.Second
)

type Client struct {
	cli             *redis.Client
	eventsPerMinute int
}

func New(ctx context.Context, url string, eventsPerMinute int) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{cli: cli, eventsPerMinute: eventsPerMinute}, nil
}

func (c *Client) Close() error {
	return c.cli.Close()
}

func grantKey(activityID, userID int64) string {
	return fmt.Sprintf("chat_grant:%d:%d", activityID, userID)
}

// GetGrant возвращает закешированный chat id гранта или ok=false при промахе.
func (c *Client) GetGrant(ctx context.Context, activityID, userID int64) (int64, bool, error) {
	val, err := c.cli.Get(ctx, grantKey(activityID, userID)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	chatID, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, nil
	}
	return chatID, true, nil
}

func (c *Client) SetGrant(ctx context.Context, activityID, userID, chatID int64) error {
	return c.cli.Set(ctx, grantKey(activityID, userID), strconv.FormatInt(chatID, 10), GrantTTL).Err()
}

// AllowEvent проверяет ws_limit:{userID}: не более eventsPerMinute событий за окно.
func (c *Client) AllowEvent(ctx context.Context, userID int64) (bool, error) {
	if c.eventsPerMinute <= 0 {
		return true, nil
	}
	key := "ws_limit:" + strconv.FormatInt(userID, 10)
	n, err := c.cli.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		c.cli.Expire(ctx, key, EventRateWindow)
	}
	return n <= int64(c.eventsPerMinute), nil
}
