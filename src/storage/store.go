package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("record not found")

// querier is satisfied by both *sql.DB and *sql.Tx so every method works
// inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store wraps the relational store handle. It is handed to the orchestrator,
// importers and services explicitly rather than reached for as a global.
type Store struct {
	db *sql.DB
	q  querier
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, q: db}
}

// WithinTransaction runs fn against a Store bound to a single transaction.
// Nested calls are a caller bug; the orchestrator opens one transaction per
// entity family so a timeout between families leaves committed batches intact.
func (s *Store) WithinTransaction(ctx context.Context, fn func(tx *Store) error) error {
	if s.q != querier(s.db) {
		return errors.New("storage: nested transaction")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(&Store{db: s.db, q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// nullTime converts a nullable timestamp column to a *time.Time.
func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	value := t.Time
	return &value
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	value := s.String
	return &value
}

func nullFloat(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	value := f.Float64
	return &value
}

func nullInt(i sql.NullInt64) *int {
	if !i.Valid {
		return nil
	}
	value := int(i.Int64)
	return &value
}
