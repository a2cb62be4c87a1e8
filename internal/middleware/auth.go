package middleware

import (
	"context"
	"net/http"

	"github.com/eventbook/internal/auth"
)

// BearerAuth проверяет JWT из заголовка Authorization и кладёт пользователя
// в контекст. Единый ответ 401 без деталей: причину отказа наружу не светим.
func BearerAuth(verifier *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.BearerToken(r.Header.Get("Authorization"))
			user, err := verifier.Verify(r.Context(), token)
			if err != nil {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), UserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
