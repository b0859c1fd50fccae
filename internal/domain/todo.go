package domain

import "time"

// Todo is a single list item owned by exactly one user.
type Todo struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Title     string    `db:"title"`
	CreatedAt time.Time `db:"created_at"`
}
