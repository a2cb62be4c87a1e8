package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/eventbook/internal/auth"
	"github.com/eventbook/internal/model"
	"github.com/eventbook/internal/repository"
)

type stubUsers struct {
	users map[int64]*model.User
}

func (s *stubUsers) GetByID(_ context.Context, id int64) (*model.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func TestBearerAuth(t *testing.T) {
	verifier := auth.NewVerifier("secret", &stubUsers{users: map[int64]*model.User{
		1: {ID: 1, Pseudo: "ann"},
	}})
	token, err := verifier.Sign(1, model.RoleUser, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	var gotUser *model.User
	h := BearerAuth(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = GetUser(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	// Валидный токен: пользователь в контексте.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotUser == nil || gotUser.ID != 1 {
		t.Fatalf("user in context = %+v, want id 1", gotUser)
	}

	// Без заголовка и с мусором — 401.
	for _, header := range []string{"", "Bearer garbage", "Basic abc"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want 401", header, rec.Code)
		}
	}
}
