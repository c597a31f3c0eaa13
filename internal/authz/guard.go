package authz

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// OwnershipLoader re-reads the minimal ownership tuple for a resource id
// inside the guarding transaction. Implementations must lock the row
// (SELECT ... FOR UPDATE) so the decision and the write observe the same
// snapshot. A missing row is reported as sql.ErrNoRows.
type OwnershipLoader func(ctx context.Context, tx *sqlx.Tx, resourceID string) (Resource, error)

// Guard wraps mutations so that the ownership check and the write execute
// in one transaction. This closes the read-then-write race between an
// initial check and the statement it authorized.
type Guard struct {
	db *sqlx.DB
}

// NewGuard constructs a mutation guard over the shared pool.
func NewGuard(db *sqlx.DB) *Guard {
	return &Guard{db: db}
}

// Do begins a transaction, loads the fresh ownership tuple, re-runs the
// policy evaluator against it and only then executes perform inside the
// same transaction. Any deny, load failure or perform error rolls back.
// Context cancellation aborts the transaction rather than committing
// partially.
func (g *Guard) Do(ctx context.Context, id Identity, action Action, resourceID string, load OwnershipLoader, perform func(ctx context.Context, tx *sqlx.Tx, res Resource) error) error {
	tx, err := g.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin guard transaction: %v", ErrDatabaseUnavailable, err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := load(ctx, tx, resourceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: load ownership tuple: %v", ErrDatabaseUnavailable, err)
	}

	if decision := Decide(id, action, res); !decision.Allowed {
		return Denied(action, decision)
	}

	if err := perform(ctx, tx, res); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit guarded mutation: %v", ErrDatabaseUnavailable, err)
	}
	committed = true
	return nil
}
