package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/event-nexus-api/internal/models"
	appErrors "github.com/noah-isme/event-nexus-api/pkg/errors"
)

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	Deactivate(ctx context.Context, id string) error
	ListActive(ctx context.Context) ([]models.User, error)
}

type ownedEventsRemover interface {
	DeleteAllByOwner(ctx context.Context, ownerID string) error
}

// UpdateProfileRequest carries the mutable profile fields.
type UpdateProfileRequest struct {
	Name            string  `json:"name" validate:"required,max=100"`
	TelephoneNumber *string `json:"telephone_number" validate:"omitempty,max=30"`
	Department      *string `json:"department" validate:"omitempty,max=200"`
}

// UserService provides account profile use cases.
type UserService struct {
	repo      userRepository
	events    ownedEventsRemover
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs a UserService instance.
func NewUserService(repo userRepository, events ownedEventsRemover, validate *validator.Validate, logger *zap.Logger) *UserService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, events: events, validator: validate, logger: logger}
}

// Get returns the active user with the given ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}
	return user, nil
}

// UpdateProfile updates name, telephone number and department.
func (s *UserService) UpdateProfile(ctx context.Context, id string, req UpdateProfileRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	user.Name = strings.TrimSpace(req.Name)
	user.TelephoneNumber = req.TelephoneNumber
	user.Department = req.Department

	if err := s.repo.UpdateProfile(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update profile")
	}
	return user, nil
}

// Deactivate soft-deletes the account. An organizer's events are soft-deleted
// in the same operation so they stop appearing in public listings.
func (s *UserService) Deactivate(ctx context.Context, id string) error {
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if user.Role == models.RoleOrganizer && s.events != nil {
		if err := s.events.DeleteAllByOwner(ctx, id); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove owned events")
		}
	}

	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate account")
	}
	s.logger.Info("account deactivated", zap.String("user_id", id), zap.String("role", string(user.Role)))
	return nil
}

// List returns all active users.
func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	users, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	return users, nil
}
