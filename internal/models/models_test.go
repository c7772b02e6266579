package models

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestAuthEventType_Valid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value AuthEventType
		valid bool
	}{
		{AuthEventLoginSucceeded, true},
		{AuthEventLoginFailed, true},
		{AuthEventSignup, true},
		{AuthEventLogout, true},
		{AuthEventSessionRefreshed, true},
		{AuthEventSessionRefreshUserMissing, true},
		{AuthEventSessionsRevoked, true},
		{AuthEventType("password_reset"), false},
		{AuthEventType(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.value), func(t *testing.T) {
			t.Parallel()
			if got := tt.value.Valid(); got != tt.valid {
				t.Errorf("Valid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestUser_PasswordHashNeverSerialised(t *testing.T) {
	t.Parallel()

	u := &User{ID: uuid.New(), Email: "a@example.com", PasswordHash: "$argon2id$secret"}
	data, err := json.Marshal(u)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if strings.Contains(string(data), "argon2id") {
		t.Errorf("Password hash leaked into JSON: %s", data)
	}
}

func TestUser_Public(t *testing.T) {
	t.Parallel()

	name := "Ada"
	u := &User{ID: uuid.New(), Email: "a@example.com", Name: &name}
	p := u.Public()
	if p.ID != u.ID.String() || p.Email != u.Email || p.Name != u.Name || p.Image != nil {
		t.Errorf("Public() = %+v", p)
	}
}
