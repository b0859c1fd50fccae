package domain

import "time"

// User is the local materialization of an identity-provider account.
// ID is the stable subject issued by the provider and never changes.
type User struct {
	ID               string     `db:"id"`
	Email            string     `db:"email"`
	IsSubscribed     bool       `db:"is_subscribed"`
	SubscriptionEnds *time.Time `db:"subscription_ends"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}
