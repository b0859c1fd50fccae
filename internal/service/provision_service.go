package service

import (
	"context"
	"errors"

	"todo-service/internal/domain"
	"todo-service/internal/repository"
)

// ProvisioningService materializes local user rows from identity-provider
// lifecycle events.
type ProvisioningService interface {
	// ProvisionUser creates a user row keyed by the provider's subject.
	// Redelivered events for an existing id are accepted without effect.
	ProvisionUser(ctx context.Context, id, email string) (*domain.User, error)
}

type provisioningService struct {
	users repository.UserRepository
}

func NewProvisioningService(users repository.UserRepository) ProvisioningService {
	return &provisioningService{users: users}
}

func (s *provisioningService) ProvisionUser(ctx context.Context, id, email string) (*domain.User, error) {
	if id == "" {
		return nil, errors.New("user id is required")
	}
	if email == "" {
		return nil, errors.New("email is required")
	}

	user := &domain.User{
		ID:           id,
		Email:        email,
		IsSubscribed: false,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
