package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"todo-service/internal/domain"
	"todo-service/internal/repository"
)

const createTodosTable = `
CREATE TABLE IF NOT EXISTS todos (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL REFERENCES users(id),
	title TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_todos_user_created ON todos(user_id, created_at DESC);
`

type TodoRepository struct {
	db *sqlx.DB
}

func NewTodoRepository(db *sqlx.DB) repository.TodoRepository {
	return &TodoRepository{db: db}
}

func (r *TodoRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createTodosTable); err != nil {
		return fmt.Errorf("create todos table: %w", err)
	}
	return nil
}

func (r *TodoRepository) Create(ctx context.Context, todo *domain.Todo) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO todos (id, user_id, title, created_at)
VALUES (?, ?, ?, ?)`,
		todo.ID,
		todo.UserID,
		todo.Title,
		todo.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert todo: %w", err)
	}
	return nil
}

func (r *TodoRepository) GetByID(ctx context.Context, id string) (*domain.Todo, error) {
	var todo domain.Todo
	err := r.db.GetContext(ctx, &todo, `
SELECT id, user_id, title, created_at
FROM todos
WHERE id = ?`,
		id,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select todo: %w", err)
	}
	return &todo, nil
}

func (r *TodoRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM todos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete todo rows affected: %w", err)
	}
	if affected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *TodoRepository) ListPage(ctx context.Context, userID, search string, limit, offset int) ([]domain.Todo, error) {
	query := `
SELECT id, user_id, title, created_at
FROM todos
WHERE user_id = ?`
	args := []any{userID}
	if search != "" {
		query += ` AND lower(title) LIKE lower(?) ESCAPE '\'`
		args = append(args, likePattern(search))
	}
	query += `
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	todos := []domain.Todo{}
	if err := r.db.SelectContext(ctx, &todos, query, args...); err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	return todos, nil
}

func (r *TodoRepository) Count(ctx context.Context, userID, search string) (int, error) {
	query := `SELECT COUNT(*) FROM todos WHERE user_id = ?`
	args := []any{userID}
	if search != "" {
		query += ` AND lower(title) LIKE lower(?) ESCAPE '\'`
		args = append(args, likePattern(search))
	}

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count todos: %w", err)
	}
	return count, nil
}

func (r *TodoRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM todos WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("count todos by user: %w", err)
	}
	return count, nil
}

func (r *TodoRepository) ListByUser(ctx context.Context, userID string) ([]domain.Todo, error) {
	todos := []domain.Todo{}
	err := r.db.SelectContext(ctx, &todos, `
SELECT id, user_id, title, created_at
FROM todos
WHERE user_id = ?
ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list todos by user: %w", err)
	}
	return todos, nil
}

// likePattern wraps a raw search term for a substring LIKE match,
// escaping the wildcard characters the user may have typed. The
// lower() fold it pairs with is ASCII-only in sqlite, so matching
// stays case-sensitive for non-ASCII titles.
func likePattern(search string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(search) + "%"
}
