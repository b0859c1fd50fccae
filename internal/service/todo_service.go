package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"todo-service/internal/domain"
	"todo-service/internal/repository"
)

const (
	// PageSize is the fixed number of todos per list page.
	PageSize = 10
	// FreeTodoLimit caps how many todos a non-subscribed user may hold.
	FreeTodoLimit = 3
)

var (
	// ErrTodoNotFound indicates no todo row matches the given id.
	ErrTodoNotFound = errors.New("todo not found")
	// ErrForbidden indicates the todo belongs to a different user.
	ErrForbidden = errors.New("forbidden")
	// ErrQuotaExceeded indicates the free-tier todo limit was hit.
	ErrQuotaExceeded = errors.New("free tier todo limit reached")
)

// TodoPage is one page of a user's filtered todo listing.
type TodoPage struct {
	Todos       []domain.Todo
	CurrentPage int
	TotalPages  int
}

// TodoService coordinates todo operations backed by repositories.
type TodoService interface {
	// List returns the caller's todos matching search, newest first,
	// paged at PageSize. Pages below 1 clamp to 1.
	List(ctx context.Context, userID string, page int, search string) (*TodoPage, error)
	// Create adds a todo for the caller, enforcing the free-tier quota
	// against the user's full current todo count.
	Create(ctx context.Context, userID, title string) (*domain.Todo, error)
	// Delete removes a todo the caller owns.
	Delete(ctx context.Context, userID, todoID string) error
	ListAll(ctx context.Context, userID string) ([]domain.Todo, error)
}

type todoService struct {
	todos repository.TodoRepository
	users repository.UserRepository
	now   func() time.Time
}

func NewTodoService(todos repository.TodoRepository, users repository.UserRepository) TodoService {
	return &todoService{
		todos: todos,
		users: users,
		now:   time.Now,
	}
}

func (s *todoService) List(ctx context.Context, userID string, page int, search string) (*TodoPage, error) {
	if page < 1 {
		page = 1
	}

	todos, err := s.todos.ListPage(ctx, userID, search, PageSize, (page-1)*PageSize)
	if err != nil {
		return nil, err
	}

	// Separate count query, no transaction with the page fetch. A write
	// between the two can skew totalPages by one, which is acceptable here.
	total, err := s.todos.Count(ctx, userID, search)
	if err != nil {
		return nil, err
	}

	return &TodoPage{
		Todos:       todos,
		CurrentPage: page,
		TotalPages:  (total + PageSize - 1) / PageSize,
	}, nil
}

func (s *todoService) Create(ctx context.Context, userID, title string) (*domain.Todo, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if !user.IsSubscribed {
		count, err := s.todos.CountByUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		if count >= FreeTodoLimit {
			return nil, ErrQuotaExceeded
		}
	}

	todo := &domain.Todo{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		CreatedAt: s.now().UTC(),
	}
	if err := s.todos.Create(ctx, todo); err != nil {
		return nil, err
	}
	return todo, nil
}

func (s *todoService) Delete(ctx context.Context, userID, todoID string) error {
	todo, err := s.todos.GetByID(ctx, todoID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTodoNotFound
		}
		return err
	}

	if todo.UserID != userID {
		return ErrForbidden
	}

	if err := s.todos.Delete(ctx, todoID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTodoNotFound
		}
		return err
	}
	return nil
}

func (s *todoService) ListAll(ctx context.Context, userID string) ([]domain.Todo, error) {
	return s.todos.ListByUser(ctx, userID)
}
