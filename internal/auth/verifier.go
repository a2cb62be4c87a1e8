// Package auth проверяет bearer-токены чата. Токены выпускает внешний сервис
// авторизации; здесь только валидация подписи и резолв пользователя.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eventbook/internal/model"
	"github.com/eventbook/internal/repository"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("authentication required")
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrUnknownUser  = errors.New("user not found")
)

// Claims — payload токена внешнего auth-сервиса: числовой id пользователя и роль.
type Claims struct {
	UserID int64      `json:"id"`
	Role   model.Role `json:"role"`
	jwt.RegisteredClaims
}

// UserGetter резолвит id из токена в пользователя (обычно repository.UserRepository).
type UserGetter interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

type Verifier struct {
	secret []byte
	users  UserGetter
}

func NewVerifier(secret string, users UserGetter) *Verifier {
	return &Verifier{secret: []byte(secret), users: users}
}

// Verify валидирует токен (HMAC) и возвращает пользователя из БД.
// Токен с валидной подписью, но несуществующим пользователем отклоняется.
func (v *Verifier) Verify(ctx context.Context, token string) (*model.User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID <= 0 {
		return nil, ErrInvalidToken
	}
	user, err := v.users.GetByID(ctx, claims.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUnknownUser
	}
	if err != nil {
		return nil, fmt.Errorf("auth.Verify: %w", err)
	}
	return user, nil
}

// Sign выпускает токен с теми же claims, что внешний auth-сервис (dev и тесты).
func (v *Verifier) Sign(userID int64, role model.Role, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// BearerToken извлекает токен из заголовка Authorization ("Bearer <token>").
func BearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
