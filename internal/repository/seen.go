package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/eventbook/internal/logger"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SeenRepository struct {
	pool *pgxpool.Pool
}

func NewSeenRepository(pool *pgxpool.Pool) *SeenRepository {
	return &SeenRepository{pool: pool}
}

// Upsert — идемпотентная отметка "прочитано": уникальная пара (message_id, user_id),
// повторы поглощаются ON CONFLICT DO NOTHING, seen_at первой отметки сохраняется.
func (r *SeenRepository) Upsert(ctx context.Context, messageID, userID int64, seenAt time.Time) error {
	defer logger.DeferLogDuration("seen.Upsert", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO chat_message_seen (message_id, user_id, seen_at)
		 VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		messageID, userID, seenAt,
	)
	if err != nil {
		return fmt.Errorf("seenRepo.Upsert: %w", err)
	}
	return nil
}

// CountForMessage возвращает число отметок для сообщения (проверки идемпотентности).
func (r *SeenRepository) CountForMessage(ctx context.Context, messageID int64) (int, error) {
	defer logger.DeferLogDuration("seen.CountForMessage", time.Now())()
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM chat_message_seen WHERE message_id = $1`, messageID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("seenRepo.CountForMessage: %w", err)
	}
	return n, nil
}
