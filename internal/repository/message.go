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

type MessageRepository struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

// msgCols — колонки сообщения с автором и списком прочитавших (порядок соответствует scanMessage).
const msgCols = `m.id, m.chat_id, m.user_id, m.content, m.kind, m.is_deleted, m.created_at,
	        u.id, u.firstname, u.lastname, u.pseudo, u.email, u.role, u.created_at,
	        COALESCE((SELECT array_agg(s.user_id ORDER BY s.user_id)
	                  FROM chat_message_seen s WHERE s.message_id = m.id), '{}')`

func scanMessage(s interface{ Scan(dest ...any) error }, m *model.ChatMessage) error {
	author := &model.User{}
	err := s.Scan(&m.ID, &m.ChatID, &m.UserID, &m.Content, &m.Kind, &m.IsDeleted, &m.CreatedAt,
		&author.ID, &author.Firstname, &author.Lastname, &author.Pseudo, &author.Email, &author.Role, &author.CreatedAt,
		&m.SeenBy)
	if err != nil {
		return err
	}
	m.Author = author
	return nil
}

// Insert сохраняет сообщение; id и created_at назначает БД (монотонный порядок в чате).
func (r *MessageRepository) Insert(ctx context.Context, m *model.ChatMessage) error {
	defer logger.DeferLogDuration("msg.Insert", time.Now())()
	if m.Kind == "" {
		m.Kind = model.MessageKindUser
	}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO chat_messages (chat_id, user_id, content, kind)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		m.ChatID, m.UserID, m.Content, m.Kind,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("msgRepo.Insert: %w", err)
	}
	return nil
}

// GetByID возвращает сообщение чата с автором и прочитавшими. Тумбстоуны тоже
// возвращаются — вызывающий сам решает, отдавать ли их клиенту.
func (r *MessageRepository) GetByID(ctx context.Context, chatID, id int64) (*model.ChatMessage, error) {
	defer logger.DeferLogDuration("msg.GetByID", time.Now())()
	m := &model.ChatMessage{}
	err := scanMessage(r.pool.QueryRow(ctx,
		`SELECT `+msgCols+`
		 FROM chat_messages m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.id = $1 AND m.chat_id = $2`, id, chatID,
	), m)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("msgRepo.GetByID: %w", err)
	}
	return m, nil
}

// Recent возвращает последние limit неудалённых сообщений чата, старые первыми.
func (r *MessageRepository) Recent(ctx context.Context, chatID int64, limit int) ([]model.ChatMessage, error) {
	defer logger.DeferLogDuration("msg.Recent", time.Now())()
	messages, err := r.queryMessages(ctx,
		`SELECT `+msgCols+`
		 FROM chat_messages m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.chat_id = $1 AND m.is_deleted = false
		 ORDER BY m.id DESC
		 LIMIT $2`, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.Recent: %w", err)
	}
	reverse(messages)
	return messages, nil
}

// ListBefore — страница истории для HTTP: limit сообщений с id < before
// (before=0 — с конца), старые первыми, как и Recent.
func (r *MessageRepository) ListBefore(ctx context.Context, chatID, before int64, limit int) ([]model.ChatMessage, error) {
	defer logger.DeferLogDuration("msg.ListBefore", time.Now())()
	sql := `SELECT ` + msgCols + `
		 FROM chat_messages m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.chat_id = $1 AND m.is_deleted = false`
	args := []any{chatID}
	if before > 0 {
		sql += ` AND m.id < $2`
		args = append(args, before)
	}
	args = append(args, limit)
	sql += fmt.Sprintf(` ORDER BY m.id DESC LIMIT $%d`, len(args))

	messages, err := r.queryMessages(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.ListBefore: %w", err)
	}
	reverse(messages)
	return messages, nil
}

// FilterSeeable оставляет только id сообщений, принадлежащих чату и не удалённых
// (валидация id из события seen).
func (r *MessageRepository) FilterSeeable(ctx context.Context, chatID int64, ids []int64) ([]int64, error) {
	defer logger.DeferLogDuration("msg.FilterSeeable", time.Now())()
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM chat_messages
		 WHERE id = ANY($1) AND chat_id = $2 AND is_deleted = false
		 ORDER BY id`, ids, chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.FilterSeeable query: %w", err)
	}
	defer rows.Close()

	valid := make([]int64, 0, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("msgRepo.FilterSeeable scan: %w", err)
		}
		valid = append(valid, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("msgRepo.FilterSeeable rows: %w", err)
	}
	return valid, nil
}

// MarkDeleted ставит тумбстоун. Content не очищается: строка остаётся для аудита,
// в клиентские выборки она больше не попадает.
func (r *MessageRepository) MarkDeleted(ctx context.Context, id int64) error {
	defer logger.DeferLogDuration("msg.MarkDeleted", time.Now())()
	_, err := r.pool.Exec(ctx,
		`UPDATE chat_messages SET is_deleted = true WHERE id = $1`, id,
	)
	if err != nil {
		return fmt.Errorf("msgRepo.MarkDeleted: %w", err)
	}
	return nil
}

// GetRaw — привилегированное чтение строки как есть, включая тумбстоуны (аудит, тесты).
func (r *MessageRepository) GetRaw(ctx context.Context, id int64) (*model.ChatMessage, error) {
	defer logger.DeferLogDuration("msg.GetRaw", time.Now())()
	m := &model.ChatMessage{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, chat_id, user_id, content, kind, is_deleted, created_at
		 FROM chat_messages WHERE id = $1`, id,
	).Scan(&m.ID, &m.ChatID, &m.UserID, &m.Content, &m.Kind, &m.IsDeleted, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("msgRepo.GetRaw: %w", err)
	}
	return m, nil
}

func (r *MessageRepository) queryMessages(ctx context.Context, sql string, args ...any) ([]model.ChatMessage, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	messages := make([]model.ChatMessage, 0, 16)
	for rows.Next() {
		var m model.ChatMessage
		if err := scanMessage(rows, &m); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return messages, nil
}

func reverse(messages []model.ChatMessage) {
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
}
