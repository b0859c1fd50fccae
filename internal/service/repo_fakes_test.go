package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"todo-service/internal/domain"
	"todo-service/internal/repository"
)

type fakeUserRepo struct {
	users map[string]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*domain.User{}}
}

func (r *fakeUserRepo) Init(ctx context.Context) error { return nil }

func (r *fakeUserRepo) Create(ctx context.Context, user *domain.User) error {
	if _, exists := r.users[user.ID]; exists {
		return nil
	}
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) UpdateSubscription(ctx context.Context, id string, subscribed bool, ends *time.Time) error {
	user, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.IsSubscribed = subscribed
	user.SubscriptionEnds = ends
	return nil
}

type fakeTodoRepo struct {
	todos []domain.Todo
}

func (r *fakeTodoRepo) Init(ctx context.Context) error { return nil }

func (r *fakeTodoRepo) Create(ctx context.Context, todo *domain.Todo) error {
	r.todos = append(r.todos, *todo)
	return nil
}

func (r *fakeTodoRepo) GetByID(ctx context.Context, id string) (*domain.Todo, error) {
	for i := range r.todos {
		if r.todos[i].ID == id {
			copied := r.todos[i]
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeTodoRepo) Delete(ctx context.Context, id string) error {
	for i := range r.todos {
		if r.todos[i].ID == id {
			r.todos = append(r.todos[:i], r.todos[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *fakeTodoRepo) matching(userID, search string) []domain.Todo {
	var matched []domain.Todo
	for _, todo := range r.todos {
		if todo.UserID != userID {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(todo.Title), strings.ToLower(search)) {
			continue
		}
		matched = append(matched, todo)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	return matched
}

func (r *fakeTodoRepo) ListPage(ctx context.Context, userID, search string, limit, offset int) ([]domain.Todo, error) {
	matched := r.matching(userID, search)
	if offset >= len(matched) {
		return []domain.Todo{}, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (r *fakeTodoRepo) Count(ctx context.Context, userID, search string) (int, error) {
	return len(r.matching(userID, search)), nil
}

func (r *fakeTodoRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	return len(r.matching(userID, "")), nil
}

func (r *fakeTodoRepo) ListByUser(ctx context.Context, userID string) ([]domain.Todo, error) {
	return r.matching(userID, ""), nil
}

var (
	_ repository.UserRepository = (*fakeUserRepo)(nil)
	_ repository.TodoRepository = (*fakeTodoRepo)(nil)
)
