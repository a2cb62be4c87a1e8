package storage

import "context"

// GrantCache — кеш разрешённого доступа к чату активности ((activity, user) → chat id)
// и rate limit ws-событий на пользователя.
// Реализации: redis.Client, memory.Client (для -dev без Redis).
type GrantCache interface {
	GetGrant(ctx context.Context, activityID, userID int64) (chatID int64, ok bool, err error)
	SetGrant(ctx context.Context, activityID, userID, chatID int64) error
	AllowEvent(ctx context.Context, userID int64) (allowed bool, err error)
	Close() error
}
