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

type ActivityRepository struct {
	pool *pgxpool.Pool
}

func NewActivityRepository(pool *pgxpool.Pool) *ActivityRepository {
	return &ActivityRepository{pool: pool}
}

// GetByID возвращает активность с владельцем организации-хоста (для проверки доступа к чату).
func (r *ActivityRepository) GetByID(ctx context.Context, id int64) (*model.Activity, error) {
	defer logger.DeferLogDuration("activity.GetByID", time.Now())()
	a := &model.Activity{}
	err := r.pool.QueryRow(ctx,
		`SELECT a.id, a.title, a.host_user_id, a.host_organisation_id, o.owner_id, a.created_at
		 FROM activities a
		 LEFT JOIN organisations o ON o.id = a.host_organisation_id
		 WHERE a.id = $1`, id,
	).Scan(&a.ID, &a.Title, &a.HostUserID, &a.HostOrganisationID, &a.OrgOwnerID, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("activityRepo.GetByID: %w", err)
	}
	return a, nil
}

func (r *ActivityRepository) IsParticipant(ctx context.Context, activityID, userID int64) (bool, error) {
	defer logger.DeferLogDuration("activity.IsParticipant", time.Now())()
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM activity_participants WHERE activity_id = $1 AND user_id = $2)`,
		activityID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("activityRepo.IsParticipant: %w", err)
	}
	return exists, nil
}

func (r *ActivityRepository) AddParticipant(ctx context.Context, activityID, userID int64) error {
	defer logger.DeferLogDuration("activity.AddParticipant", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO activity_participants (activity_id, user_id)
		 VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		activityID, userID,
	)
	if err != nil {
		return fmt.Errorf("activityRepo.AddParticipant: %w", err)
	}
	return nil
}
