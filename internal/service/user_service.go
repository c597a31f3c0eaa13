package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/faculty-reporting-api/internal/authz"
	"github.com/noah-isme/faculty-reporting-api/internal/models"
	appErrors "github.com/noah-isme/faculty-reporting-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, id authz.Identity, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
}

// CreateUserRequest holds payload for registering users.
type CreateUserRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	Password string          `json:"password" validate:"required,min=6"`
	FullName string          `json:"full_name" validate:"required"`
	Role     models.UserRole `json:"role" validate:"required"`
	StreamID *string         `json:"stream_id,omitempty"`
}

// UpdateUserRequest holds payload for updating users.
type UpdateUserRequest struct {
	FullName string          `json:"full_name" validate:"required"`
	Role     models.UserRole `json:"role" validate:"required"`
	StreamID *string         `json:"stream_id,omitempty"`
	Active   bool            `json:"active"`
}

// UserService handles account management. Creation, update and removal are
// program-leader operations; reads go through the policy evaluator so users
// only ever see accounts inside their own stream.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs the user service.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, validator: validate, logger: logger}
}

// List returns users visible to the caller plus pagination metadata.
func (s *UserService) List(ctx context.Context, id authz.Identity, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, id, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	return users, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns a single user if the caller's policy permits it.
func (s *UserService) Get(ctx context.Context, id authz.Identity, userID string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	res := authz.UserResource(user.ID, user.StreamID)
	if d := authz.Decide(id, authz.ActionReadOne, res); !d.Allowed {
		return nil, denyToErr(authz.ActionReadOne, d, "user not found")
	}
	return user, nil
}

// Create registers a new account. Stream affiliation is mandatory for every
// role except program leader.
func (s *UserService) Create(ctx context.Context, id authz.Identity, req CreateUserRequest) (*models.User, error) {
	if d := authz.Decide(id, authz.ActionCreate, authz.ListResource(authz.ResourceUser)); !d.Allowed {
		return nil, denyToErr(authz.ActionCreate, d, "user not found")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}
	if !req.Role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role")
	}
	if req.Role != models.RoleProgramLeader && req.StreamID == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "stream_id is required for stream-scoped roles")
	}

	if existing, err := s.repo.FindByEmail(ctx, req.Email); err == nil && existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already used")
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate email")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Role:         req.Role,
		StreamID:     req.StreamID,
		Active:       true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}
	return user, nil
}

// Update modifies an existing account.
func (s *UserService) Update(ctx context.Context, id authz.Identity, userID string, req UpdateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}
	if !req.Role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role")
	}
	if req.Role != models.RoleProgramLeader && req.StreamID == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "stream_id is required for stream-scoped roles")
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	res := authz.UserResource(user.ID, user.StreamID)
	if d := authz.Decide(id, authz.ActionUpdate, res); !d.Allowed {
		return nil, denyToErr(authz.ActionUpdate, d, "user not found")
	}

	user.FullName = req.FullName
	user.Role = req.Role
	user.StreamID = req.StreamID
	user.Active = req.Active
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}
	return user, nil
}

// Deactivate marks an account inactive instead of removing the row, so
// report and feedback authorship stays resolvable.
func (s *UserService) Deactivate(ctx context.Context, id authz.Identity, userID string) error {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	res := authz.UserResource(user.ID, user.StreamID)
	if d := authz.Decide(id, authz.ActionDelete, res); !d.Allowed {
		return denyToErr(authz.ActionDelete, d, "user not found")
	}

	if err := s.repo.Delete(ctx, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate user")
	}
	return nil
}
