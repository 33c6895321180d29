package storage

import (
	"context"
	"database/sql"
	"time"
)

// SaveResult upserts a test result keyed by (system, policy, end time) and
// replaces its rule results, so a redelivered report overwrites rather
// than duplicates.
func (s *Store) SaveResult(ctx context.Context, r TestResult) (string, error) {
	start := time.Now()
	var id string

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO test_results
				(system_id, policy_id, profile_ref_id, security_guide_version, score, supported, compliant, start_time, end_time)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (system_id, policy_id, end_time) DO UPDATE SET
				profile_ref_id = EXCLUDED.profile_ref_id,
				security_guide_version = EXCLUDED.security_guide_version,
				score = EXCLUDED.score,
				supported = EXCLUDED.supported,
				compliant = EXCLUDED.compliant,
				start_time = EXCLUDED.start_time
			RETURNING id
		`,
			r.SystemID,
			r.PolicyID,
			r.ProfileRefID,
			r.SecurityGuideVersion,
			r.Score,
			r.Supported,
			r.Compliant,
			sql.NullTime{Time: r.StartTime, Valid: !r.StartTime.IsZero()},
			r.EndTime,
		).Scan(&id)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM rule_results WHERE test_result_id = $1`, id); err != nil {
			return err
		}
		if len(r.RuleResults) == 0 {
			return nil
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO rule_results (test_result_id, rule_ref_id, result, severity)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (test_result_id, rule_ref_id) DO UPDATE SET result = EXCLUDED.result, severity = EXCLUDED.severity
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, rr := range r.RuleResults {
			if _, err := stmt.ExecContext(ctx, id, rr.RuleRefID, rr.Result, rr.Severity); err != nil {
				return err
			}
		}
		return nil
	})
	if err = observe("save_result", start, err); err != nil {
		return "", err
	}

	return id, nil
}
