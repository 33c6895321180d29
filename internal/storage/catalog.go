package storage

import (
	"context"
	"time"

	"github.com/lib/pq"
)

// SupportedProfile reports whether the benchmark version ships the profile
// for the given OS minor release.
func (s *Store) SupportedProfile(ctx context.Context, benchmarkRefID, version, profileRefID string, osMinor int) (bool, error) {
	start := time.Now()
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM profiles pr
			JOIN security_guides sg ON sg.id = pr.security_guide_id
			JOIN profile_os_minor_versions pv ON pv.profile_id = pr.id
			WHERE sg.ref_id = $1 AND sg.version = $2 AND pr.ref_id = $3 AND pv.os_minor = $4
		)
	`

	var supported bool
	err := s.db.QueryRowContext(ctx, query, benchmarkRefID, version, profileRefID, osMinor).Scan(&supported)
	if err = observe("supported_profile", start, err); err != nil {
		return false, err
	}
	return supported, nil
}

// RemediableRules filters ruleRefIDs down to rules that have a remediation
// in the given benchmark version.
func (s *Store) RemediableRules(ctx context.Context, benchmarkRefID, version string, ruleRefIDs []string) ([]string, error) {
	if len(ruleRefIDs) == 0 {
		return nil, nil
	}

	start := time.Now()
	query := `
		SELECT r.ref_id
		FROM rules r
		JOIN security_guides sg ON sg.id = r.security_guide_id
		WHERE sg.ref_id = $1 AND sg.version = $2 AND r.remediation_available AND r.ref_id = ANY($3)
		ORDER BY r.ref_id
	`

	rows, err := s.db.QueryContext(ctx, query, benchmarkRefID, version, pq.Array(ruleRefIDs))
	if err != nil {
		return nil, observe("remediable_rules", start, err)
	}
	defer rows.Close()

	var refs []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, observe("remediable_rules", start, err)
		}
		refs = append(refs, ref)
	}

	if err := observe("remediable_rules", start, rows.Err()); err != nil {
		return nil, err
	}
	return refs, nil
}
