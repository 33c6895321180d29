// Package storage holds the Postgres backed system, policy, benchmark
// catalog and test result stores.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	apperrors "compliance/pkg/errors"
	"compliance/pkg/metrics"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// observe records query metrics and tags failures as retryable
// infrastructure errors. sql.ErrNoRows passes through untouched.
func observe(operation string, start time.Time, err error) error {
	metrics.ObserveDatabaseQueryDuration("postgres", operation, time.Since(start))
	if err == nil || errors.Is(err, sql.ErrNoRows) {
		metrics.IncDatabaseQuery("postgres", operation, "success")
		return err
	}
	metrics.IncDatabaseQuery("postgres", operation, "error")
	return apperrors.Unavailable(fmt.Errorf("%s: %w", operation, err))
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
