package database

import (
	"context"
	"time"

	"github.com/benvon/smart-forms/internal/models"
	"github.com/benvon/smart-forms/internal/session"
	"github.com/google/uuid"
)

// UserRepositoryInterface defines the user operations used by handlers and the admin CLI
// This interface enables better testability by allowing mock implementations
type UserRepositoryInterface interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, name, imageURL *string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// AuthEventRepositoryInterface defines the auth event operations used by the audit worker
type AuthEventRepositoryInterface interface {
	Create(ctx context.Context, event *models.AuthEvent) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.AuthEvent, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Ensure concrete types implement the interfaces
var (
	_ UserRepositoryInterface      = (*UserRepository)(nil)
	_ AuthEventRepositoryInterface = (*AuthEventRepository)(nil)
	_ session.UserLookup           = (*UserRepository)(nil)
)
