package middleware

import (
	"context"

	"github.com/eventbook/internal/model"
)

type contextKey string

const UserKey contextKey = "user"

// GetUser возвращает пользователя из контекста (устанавливается BearerAuth).
func GetUser(ctx context.Context) *model.User {
	u, _ := ctx.Value(UserKey).(*model.User)
	return u
}
