package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eventbook/internal/logger"
	"github.com/eventbook/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ChatRepository struct {
	pool *pgxpool.Pool
}

func NewChatRepository(pool *pgxpool.Pool) *ChatRepository {
	return &ChatRepository{pool: pool}
}

func (r *ChatRepository) GetByActivity(ctx context.Context, activityID int64) (*model.Chat, error) {
	defer logger.DeferLogDuration("chat.GetByActivity", time.Now())()
	c := &model.Chat{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, activity_id, created_at FROM chats WHERE activity_id = $1`, activityID,
	).Scan(&c.ID, &c.ActivityID, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("chatRepo.GetByActivity: %w", err)
	}
	return c, nil
}

// GetOrCreateForActivity возвращает чат активности, создавая его при первом обращении.
// Upsert одним запросом: конкурентные join-ы не создают дублей.
func (r *ChatRepository) GetOrCreateForActivity(ctx context.Context, activityID int64) (*model.Chat, error) {
	defer logger.DeferLogDuration("chat.GetOrCreateForActivity", time.Now())()
	c := &model.Chat{}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO chats (activity_id) VALUES ($1)
		 ON CONFLICT (activity_id) DO UPDATE SET activity_id = EXCLUDED.activity_id
		 RETURNING id, activity_id, created_at`, activityID,
	).Scan(&c.ID, &c.ActivityID, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("chatRepo.GetOrCreateForActivity: %w", err)
	}
	return c, nil
}
