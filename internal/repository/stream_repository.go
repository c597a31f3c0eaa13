package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/faculty-reporting-api/internal/models"
)

// StreamRepository persists academic streams.
type StreamRepository struct {
	db *sqlx.DB
}

// NewStreamRepository constructs the repository.
func NewStreamRepository(db *sqlx.DB) *StreamRepository {
	return &StreamRepository{db: db}
}

// List returns all streams ordered by code. Streams are a small, shared
// vocabulary visible to every authenticated role.
func (r *StreamRepository) List(ctx context.Context) ([]models.Stream, error) {
	const query = `SELECT id, code, name, created_at, updated_at FROM streams ORDER BY code ASC`
	var streams []models.Stream
	if err := r.db.SelectContext(ctx, &streams, query); err != nil {
		return nil, fmt.Errorf("list streams: %w", err)
	}
	return streams, nil
}

// FindByID returns a stream by identifier.
func (r *StreamRepository) FindByID(ctx context.Context, id string) (*models.Stream, error) {
	const query = `SELECT id, code, name, created_at, updated_at FROM streams WHERE id = $1 LIMIT 1`
	var stream models.Stream
	if err := r.db.GetContext(ctx, &stream, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find stream by id: %w", err)
	}
	return &stream, nil
}

// Create inserts a new stream.
func (r *StreamRepository) Create(ctx context.Context, stream *models.Stream) error {
	if stream.ID == "" {
		stream.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	stream.CreatedAt = now
	stream.UpdatedAt = now
	const query = `INSERT INTO streams (id, code, name, created_at, updated_at) VALUES (:id, :code, :name, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, stream); err != nil {
		return fmt.Errorf("create stream: %w", err)
	}
	return nil
}

// Update renames a stream.
func (r *StreamRepository) Update(ctx context.Context, stream *models.Stream) error {
	stream.UpdatedAt = time.Now().UTC()
	const query = `UPDATE streams SET code = :code, name = :name, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, stream); err != nil {
		return fmt.Errorf("update stream: %w", err)
	}
	return nil
}

// ErrStreamInUse reports a delete blocked by courses still referencing
// the stream.
var ErrStreamInUse = errors.New("stream is referenced by courses")

// Delete removes a stream row. The reference check and the delete run in
// one transaction against a locked row, so a course created after a
// separate count could never orphan its stream. A foreign key violation
// on the delete itself maps to the same in-use error.
func (r *StreamRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin stream delete: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var locked string
	if err := tx.GetContext(ctx, &locked, `SELECT id FROM streams WHERE id = $1 FOR UPDATE`, id); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("lock stream: %w", err)
	}

	var count int
	if err := tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM courses WHERE stream_id = $1`, id); err != nil {
		return fmt.Errorf("count stream courses: %w", err)
	}
	if count > 0 {
		return ErrStreamInUse
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM streams WHERE id = $1`, id); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "foreign_key_violation" {
			return ErrStreamInUse
		}
		return fmt.Errorf("delete stream: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit stream delete: %w", err)
	}
	committed = true
	return nil
}
