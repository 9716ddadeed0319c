package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"riceshop/backend/internal/domain"
	"riceshop/backend/internal/store"
)

func (s *Service) RegisterUser(ctx context.Context, req domain.RegisterRequest) (domain.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	if err := s.checkStruct(req); err != nil {
		return domain.User{}, err
	}

	role := req.Role
	if role == "" {
		role = domain.RoleSales
	}
	if !role.Valid() {
		return domain.User{}, fmt.Errorf("%w: role must be admin, sales or manager", store.ErrInvalidArgument)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.passwordCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.repo.CreateUser(ctx, domain.User{
		Username:     req.Username,
		PasswordHash: string(hash),
		Role:         role,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.User{}, fmt.Errorf("%w: Username already exists!", store.ErrConflict)
		}
		return domain.User{}, err
	}

	log.Info().Str("user_id", created.ID).Str("username", created.Username).Str("role", string(created.Role)).Msg("user registered")
	return *created, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.repo.ListUsers(ctx)
}

// UpdateUser changes the username and/or role. Passwords are not editable here.
func (s *Service) UpdateUser(ctx context.Context, id string, req domain.UserUpdateRequest) (domain.User, error) {
	existing, err := s.repo.GetUserByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.User{}, userNotFound(err)
	}

	updated := *existing
	if req.Username != nil {
		username := strings.TrimSpace(*req.Username)
		if len(username) < 3 {
			return domain.User{}, fmt.Errorf("%w: username must be at least 3 characters", store.ErrInvalidArgument)
		}
		updated.Username = username
	}
	if req.Role != nil {
		if !req.Role.Valid() {
			return domain.User{}, fmt.Errorf("%w: role must be admin, sales or manager", store.ErrInvalidArgument)
		}
		updated.Role = *req.Role
	}

	saved, err := s.repo.UpdateUser(ctx, updated)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.User{}, fmt.Errorf("%w: Username already exists!", store.ErrConflict)
		}
		return domain.User{}, userNotFound(err)
	}

	log.Info().Str("user_id", saved.ID).Str("role", string(saved.Role)).Str("by", actorOrAnonymous(ctx).Username).Msg("user updated")
	return *saved, nil
}

func (s *Service) DeleteUser(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if actor, ok := ActorFromContext(ctx); ok && actor.ID == id {
		return fmt.Errorf("%w: you cannot delete your own account", store.ErrInvalidArgument)
	}
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return userNotFound(err)
	}
	log.Info().Str("user_id", id).Str("by", actorOrAnonymous(ctx).Username).Msg("user deleted")
	return nil
}

func userNotFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: User not found.", store.ErrNotFound)
	}
	return err
}
