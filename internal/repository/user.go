package repository

import (
	"context"
	"errors"
	"time"

	"todo-service/internal/domain"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// UserRepository defines persistence operations for User entities.
type UserRepository interface {
	Init(ctx context.Context) error
	// Create inserts a user row. Inserting an ID that already exists is a
	// no-op so that webhook redeliveries stay idempotent.
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// UpdateSubscription overwrites the subscription flag and expiry.
	// A nil ends clears the stored expiry.
	UpdateSubscription(ctx context.Context, id string, subscribed bool, ends *time.Time) error
}
