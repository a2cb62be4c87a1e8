package model

import (
	"strings"
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type User struct {
	ID        int64     `json:"id"`
	Firstname string    `json:"firstname"`
	Lastname  string    `json:"lastname"`
	Pseudo    string    `json:"pseudo"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// DisplayName возвращает имя для чата: pseudo, иначе "firstname lastname".
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Pseudo != "" {
		return u.Pseudo
	}
	return strings.TrimSpace(strings.TrimSpace(u.Firstname) + " " + strings.TrimSpace(u.Lastname))
}
