package repository

import (
	"context"

	"todo-service/internal/domain"
)

// TodoRepository exposes persistence operations for Todo rows.
type TodoRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, todo *domain.Todo) error
	GetByID(ctx context.Context, id string) (*domain.Todo, error)
	Delete(ctx context.Context, id string) error
	// ListPage returns the user's todos whose title contains search
	// (case-insensitive), newest first.
	ListPage(ctx context.Context, userID, search string, limit, offset int) ([]domain.Todo, error)
	// Count counts the rows ListPage would page over.
	Count(ctx context.Context, userID, search string) (int, error)
	// CountByUser counts every todo the user owns, ignoring any filter.
	CountByUser(ctx context.Context, userID string) (int, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Todo, error)
}
