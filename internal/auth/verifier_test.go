package auth

import (
	"context"
	"errors"
	"testing"
	"time"

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

func newVerifier() *Verifier {
	return NewVerifier("test_secret", &stubUsers{users: map[int64]*model.User{
		1: {ID: 1, Pseudo: "ann", Role: model.RoleUser},
	}})
}

func TestVerifyValidToken(t *testing.T) {
	v := newVerifier()
	token, err := v.Sign(1, model.RoleUser, time.Minute)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	user, err := v.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if user.ID != 1 || user.Pseudo != "ann" {
		t.Errorf("unexpected user: %+v", user)
	}
}

func TestVerifyMissingToken(t *testing.T) {
	v := newVerifier()
	for _, token := range []string{"", "   "} {
		if _, err := v.Verify(context.Background(), token); !errors.Is(err, ErrMissingToken) {
			t.Errorf("Verify(%q) = %v, want ErrMissingToken", token, err)
		}
	}
}

func TestVerifyGarbageToken(t *testing.T) {
	v := newVerifier()
	if _, err := v.Verify(context.Background(), "not.a.jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	v := newVerifier()
	token, err := v.Sign(1, model.RoleUser, -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := v.Verify(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	other := NewVerifier("other_secret", nil)
	token, err := other.Sign(1, model.RoleUser, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	v := newVerifier()
	if _, err := v.Verify(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyUnknownUser(t *testing.T) {
	v := newVerifier()
	token, err := v.Sign(42, model.RoleUser, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := v.Verify(context.Background(), token); !errors.Is(err, ErrUnknownUser) {
		t.Errorf("err = %v, want ErrUnknownUser", err)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"Bearer  abc ", "abc"},
		{"Basic abc", ""},
		{"abc", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := BearerToken(tt.header); got != tt.want {
			t.Errorf("BearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}
