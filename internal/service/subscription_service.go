package service

import (
	"context"
	"errors"
	"time"

	"todo-service/internal/repository"
)

var (
	// ErrUserNotFound indicates no local user row matches the caller's identity.
	ErrUserNotFound = errors.New("user not found")
)

// SubscriptionStatus is the caller-visible subscription state.
type SubscriptionStatus struct {
	IsSubscribed     bool
	SubscriptionEnds *time.Time
}

// SubscriptionService reads and writes a user's subscription flag and expiry.
type SubscriptionService interface {
	// Activate marks the user subscribed until one calendar month from now.
	// Repeated calls overwrite the expiry, they never stack.
	Activate(ctx context.Context, userID string) (time.Time, error)
	// Status reports the current subscription state, lazily downgrading an
	// expired subscription before responding.
	Status(ctx context.Context, userID string) (SubscriptionStatus, error)
}

type subscriptionService struct {
	users repository.UserRepository
	now   func() time.Time
}

func NewSubscriptionService(users repository.UserRepository) SubscriptionService {
	return &subscriptionService{
		users: users,
		now:   time.Now,
	}
}

func (s *subscriptionService) Activate(ctx context.Context, userID string) (time.Time, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return time.Time{}, ErrUserNotFound
		}
		return time.Time{}, err
	}

	ends := s.now().UTC().AddDate(0, 1, 0)
	if err := s.users.UpdateSubscription(ctx, userID, true, &ends); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return time.Time{}, ErrUserNotFound
		}
		return time.Time{}, err
	}
	return ends, nil
}

func (s *subscriptionService) Status(ctx context.Context, userID string) (SubscriptionStatus, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return SubscriptionStatus{}, ErrUserNotFound
		}
		return SubscriptionStatus{}, err
	}

	// Lazy expiry: the stored record is downgraded on read, there is no
	// background sweep. A user who never asks again keeps a stale row.
	if user.SubscriptionEnds != nil && user.SubscriptionEnds.Before(s.now()) {
		if err := s.users.UpdateSubscription(ctx, userID, false, nil); err != nil {
			return SubscriptionStatus{}, err
		}
		return SubscriptionStatus{IsSubscribed: false, SubscriptionEnds: nil}, nil
	}

	return SubscriptionStatus{
		IsSubscribed:     user.IsSubscribed,
		SubscriptionEnds: user.SubscriptionEnds,
	}, nil
}
