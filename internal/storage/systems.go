package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	apperrors "compliance/pkg/errors"
)

func (s *Store) FindSystem(ctx context.Context, orgID, systemID string) (*System, error) {
	start := time.Now()
	query := `
		SELECT id, org_id, display_name, os_major, os_minor
		FROM systems
		WHERE id = $1 AND org_id = $2
	`

	var (
		sys     System
		osMajor sql.NullInt32
		osMinor sql.NullInt32
	)
	err := s.db.QueryRowContext(ctx, query, systemID, orgID).Scan(
		&sys.ID,
		&sys.OrgID,
		&sys.DisplayName,
		&osMajor,
		&osMinor,
	)
	if err = observe("find_system", start, err); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrNotFound.WithMessage(fmt.Sprintf("system %s not found", systemID))
		}
		return nil, err
	}

	sys.OSMajor = int(osMajor.Int32)
	sys.OSMinor = int(osMinor.Int32)
	return &sys, nil
}

// DeleteHost removes a system with its policy assignments and results. It
// reports whether the system existed.
func (s *Store) DeleteHost(ctx context.Context, systemID string) (bool, error) {
	start := time.Now()
	var deleted int64

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM test_results WHERE system_id = $1`, systemID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM policy_systems WHERE system_id = $1`, systemID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM systems WHERE id = $1`, systemID)
		if err != nil {
			return err
		}
		deleted, err = res.RowsAffected()
		return err
	})
	if err = observe("delete_host", start, err); err != nil {
		return false, err
	}

	return deleted > 0, nil
}
