package model

import "testing"

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name string
		user *User
		want string
	}{
		{"pseudo wins", &User{Pseudo: "ann", Firstname: "Anna", Lastname: "Lee"}, "ann"},
		{"full name", &User{Firstname: "Anna", Lastname: "Lee"}, "Anna Lee"},
		{"first only", &User{Firstname: "Anna"}, "Anna"},
		{"last only", &User{Lastname: "Lee"}, "Lee"},
		{"empty", &User{}, ""},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.user.DisplayName(); got != tt.want {
				t.Errorf("DisplayName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsAdmin(t *testing.T) {
	if (&User{Role: RoleUser}).IsAdmin() {
		t.Error("user role reported as admin")
	}
	if !(&User{Role: RoleAdmin}).IsAdmin() {
		t.Error("admin role not detected")
	}
}
