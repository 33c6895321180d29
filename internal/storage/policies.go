package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	apperrors "compliance/pkg/errors"
)

// FindPolicy returns the policy of orgID that the system is assigned to for
// the given profile.
func (s *Store) FindPolicy(ctx context.Context, orgID, systemID, profileRefID string) (*Policy, error) {
	start := time.Now()
	query := `
		SELECT p.id, p.title, p.profile_ref_id, p.os_major, p.compliance_threshold
		FROM policies p
		JOIN policy_systems ps ON ps.policy_id = p.id
		WHERE ps.system_id = $1 AND p.org_id = $2 AND p.profile_ref_id = $3
		ORDER BY p.created_at ASC
		LIMIT 1
	`

	var p Policy
	err := s.db.QueryRowContext(ctx, query, systemID, orgID, profileRefID).Scan(
		&p.ID,
		&p.Title,
		&p.ProfileRefID,
		&p.OSMajor,
		&p.ComplianceThreshold,
	)
	if err = observe("find_policy", start, err); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrNotFound.WithMessage(
				fmt.Sprintf("no policy with profile %s assigned to system %s", profileRefID, systemID))
		}
		return nil, err
	}

	return &p, nil
}

func (s *Store) History(ctx context.Context, policyID, systemID string) (History, error) {
	start := time.Now()
	query := `
		SELECT score, supported
		FROM test_results
		WHERE policy_id = $1 AND system_id = $2
		ORDER BY end_time DESC
		LIMIT 1
	`

	var h History
	err := s.db.QueryRowContext(ctx, query, policyID, systemID).Scan(&h.LatestScore, &h.LatestSupported)
	if err = observe("history", start, err); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return History{}, nil
		}
		return History{}, err
	}

	h.HasResults = true
	return h, nil
}
