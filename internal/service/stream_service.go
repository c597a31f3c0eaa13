package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/faculty-reporting-api/internal/authz"
	"github.com/noah-isme/faculty-reporting-api/internal/models"
	"github.com/noah-isme/faculty-reporting-api/internal/repository"
	appErrors "github.com/noah-isme/faculty-reporting-api/pkg/errors"
)

type streamRepository interface {
	List(ctx context.Context) ([]models.Stream, error)
	FindByID(ctx context.Context, id string) (*models.Stream, error)
	Create(ctx context.Context, stream *models.Stream) error
	Update(ctx context.Context, stream *models.Stream) error
	Delete(ctx context.Context, id string) error
}

// StreamService handles stream administration. Streams are global
// vocabulary: everyone reads them, only program leaders change them.
type StreamService struct {
	repo      streamRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStreamService constructs the stream service.
func NewStreamService(repo streamRepository, validate *validator.Validate, logger *zap.Logger) *StreamService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamService{repo: repo, validator: validate, logger: logger}
}

// List returns all streams.
func (s *StreamService) List(ctx context.Context) ([]models.Stream, error) {
	streams, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list streams")
	}
	return streams, nil
}

// Get returns a stream by id.
func (s *StreamService) Get(ctx context.Context, id string) (*models.Stream, error) {
	stream, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "stream not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load stream")
	}
	return stream, nil
}

// Create registers a new stream.
func (s *StreamService) Create(ctx context.Context, id authz.Identity, req models.CreateStreamRequest) (*models.Stream, error) {
	if d := authz.Decide(id, authz.ActionCreate, authz.ListResource(authz.ResourceStream)); !d.Allowed {
		return nil, denyToErr(authz.ActionCreate, d, "stream not found")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid stream payload")
	}
	stream := &models.Stream{Code: req.Code, Name: req.Name}
	if err := s.repo.Create(ctx, stream); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create stream")
	}
	return stream, nil
}

// Update renames a stream.
func (s *StreamService) Update(ctx context.Context, id authz.Identity, streamID string, req models.UpdateStreamRequest) (*models.Stream, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid stream payload")
	}
	stream, err := s.repo.FindByID(ctx, streamID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "stream not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load stream")
	}
	if d := authz.Decide(id, authz.ActionUpdate, authz.StreamResource(stream.ID)); !d.Allowed {
		return nil, denyToErr(authz.ActionUpdate, d, "stream not found")
	}
	stream.Code = req.Code
	stream.Name = req.Name
	if err := s.repo.Update(ctx, stream); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update stream")
	}
	return stream, nil
}

// Delete removes a stream. The repository refuses the delete in the same
// transaction that re-checks for referencing courses, so scoped rows never
// lose their anchor to a concurrent course creation.
func (s *StreamService) Delete(ctx context.Context, id authz.Identity, streamID string) error {
	if d := authz.Decide(id, authz.ActionDelete, authz.StreamResource(streamID)); !d.Allowed {
		return denyToErr(authz.ActionDelete, d, "stream not found")
	}
	if err := s.repo.Delete(ctx, streamID); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return appErrors.Clone(appErrors.ErrNotFound, "stream not found")
		case errors.Is(err, repository.ErrStreamInUse):
			return appErrors.Clone(appErrors.ErrStreamReferenced, "")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete stream")
	}
	return nil
}
