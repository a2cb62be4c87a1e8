// Package access решает, может ли пользователь читать/писать чат активности,
// и лениво создаёт сам чат. Политика: участник, хост, владелец
// организации-хоста или admin.
package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eventbook/internal/logger"
	"github.com/eventbook/internal/model"
	"github.com/eventbook/internal/repository"
	"github.com/eventbook/internal/storage"
)

var (
	ErrActivityNotFound = errors.New("activity not found")
	ErrForbidden        = errors.New("forbidden")
)

// ActivityStore — граница CRUD-сервиса активностей (реализация: repository.ActivityRepository).
type ActivityStore interface {
	GetByID(ctx context.Context, id int64) (*model.Activity, error)
	IsParticipant(ctx context.Context, activityID, userID int64) (bool, error)
}

// ChatStore лениво создаёт журнал чата (реализация: repository.ChatRepository).
type ChatStore interface {
	GetOrCreateForActivity(ctx context.Context, activityID int64) (*model.Chat, error)
}

type Resolver struct {
	activities ActivityStore
	chats      ChatStore
	cache      storage.GrantCache // nil — без кеша
}

func NewResolver(activities ActivityStore, chats ChatStore, cache storage.GrantCache) *Resolver {
	return &Resolver{activities: activities, chats: chats, cache: cache}
}

// ChatFor возвращает chat id активности, если пользователю разрешён доступ.
// Кешируются только положительные решения (короткий TTL); отказы всегда
// перепроверяются по БД.
func (r *Resolver) ChatFor(ctx context.Context, activityID int64, user *model.User) (int64, error) {
	defer logger.DeferLogDuration("access.ChatFor", time.Now())()

	if r.cache != nil {
		chatID, ok, err := r.cache.GetGrant(ctx, activityID, user.ID)
		if err != nil {
			logger.Errorf("access grant cache get activity=%d user=%d: %v", activityID, user.ID, err)
		} else if ok {
			return chatID, nil
		}
	}

	activity, err := r.activities.GetByID(ctx, activityID)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, ErrActivityNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("access.ChatFor activity: %w", err)
	}

	allowed := user.IsAdmin() ||
		(activity.HostUserID != nil && *activity.HostUserID == user.ID) ||
		(activity.OrgOwnerID != nil && *activity.OrgOwnerID == user.ID)
	if !allowed {
		allowed, err = r.activities.IsParticipant(ctx, activityID, user.ID)
		if err != nil {
			return 0, fmt.Errorf("access.ChatFor participant: %w", err)
		}
	}
	if !allowed {
		return 0, ErrForbidden
	}

	chat, err := r.chats.GetOrCreateForActivity(ctx, activityID)
	if err != nil {
		return 0, fmt.Errorf("access.ChatFor chat: %w", err)
	}

	if r.cache != nil {
		if err := r.cache.SetGrant(ctx, activityID, user.ID, chat.ID); err != nil {
			logger.Errorf("access grant cache set activity=%d user=%d: %v", activityID, user.ID, err)
		}
	}
	return chat.ID, nil
}
