// Package compliance decides whether a parsed scan meets its policy and
// whether the outcome warrants a non-compliance notice.
package compliance

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"compliance/internal/logger"
	"compliance/internal/storage"
	"compliance/pkg/cel"
	"compliance/pkg/metrics"
	"compliance/pkg/tracing"
)

type Store interface {
	History(ctx context.Context, policyID, systemID string) (storage.History, error)
	SaveResult(ctx context.Context, r storage.TestResult) (string, error)
}

// Subject is the system and policy a scan is judged against.
type Subject struct {
	SystemID  string
	OrgID     string
	PolicyID  string
	Threshold float64
	OSMajor   int
	OSMinor   int
}

type Scan struct {
	ProfileID        string
	BenchmarkVersion string
	Score            float64
	Supported        bool
	StartTime        time.Time
	EndTime          time.Time
	RuleResults      []storage.RuleResult
}

type Result struct {
	Compliant           bool
	ShouldNotify        bool
	ThresholdUsed       float64
	PreviouslyCompliant bool
	HadNoPriorResult    bool
	TestResultID        string
}

type Evaluator struct {
	store  Store
	rule   *cel.Rule
	logger logger.Logger
}

func NewEvaluator(store Store, rule *cel.Rule, log logger.Logger) *Evaluator {
	return &Evaluator{
		store:  store,
		rule:   rule,
		logger: log,
	}
}

// Evaluate reads the prior state of the system under the policy, judges the
// scan and persists it when compliant. History is always read before the
// write so a fresh result never counts as its own predecessor.
func (e *Evaluator) Evaluate(ctx context.Context, subj Subject, scan Scan) (Result, error) {
	ctx, span := tracing.StartSpan(ctx, "compliance.evaluate",
		attribute.String("policy.id", subj.PolicyID),
		attribute.String("system.id", subj.SystemID),
	)
	defer span.End()

	history, err := e.store.History(ctx, subj.PolicyID, subj.SystemID)
	if err != nil {
		span.RecordError(err)
		return Result{}, err
	}

	res := Result{
		ThresholdUsed:    subj.Threshold,
		HadNoPriorResult: !history.HasResults,
	}

	if history.HasResults {
		res.PreviouslyCompliant, err = e.rule.Evaluate(ctx, e.facts(subj, scan.ProfileID, history.LatestSupported, history.LatestScore))
		if err != nil {
			return Result{}, fmt.Errorf("failed to evaluate previous result: %w", err)
		}
	}

	res.Compliant, err = e.rule.Evaluate(ctx, e.facts(subj, scan.ProfileID, scan.Supported, scan.Score))
	if err != nil {
		return Result{}, fmt.Errorf("failed to evaluate scan: %w", err)
	}
	res.ShouldNotify = res.PreviouslyCompliant || res.HadNoPriorResult

	if res.Compliant {
		metrics.IncComplianceEvaluation("compliant")
		res.TestResultID, err = e.store.SaveResult(ctx, storage.TestResult{
			SystemID:             subj.SystemID,
			PolicyID:             subj.PolicyID,
			ProfileRefID:         scan.ProfileID,
			SecurityGuideVersion: scan.BenchmarkVersion,
			Score:                scan.Score,
			Supported:            scan.Supported,
			Compliant:            true,
			StartTime:            scan.StartTime,
			EndTime:              scan.EndTime,
			RuleResults:          scan.RuleResults,
		})
		if err != nil {
			span.RecordError(err)
			return Result{}, err
		}
	} else {
		metrics.IncComplianceEvaluation("non_compliant")
	}

	e.logger.DebugwCtx(ctx, "Evaluated scan",
		"policy_id", subj.PolicyID,
		"score", scan.Score,
		"threshold", subj.Threshold,
		"supported", scan.Supported,
		"compliant", res.Compliant,
		"should_notify", res.ShouldNotify,
	)

	return res, nil
}

func (e *Evaluator) facts(subj Subject, profileID string, supported bool, score float64) cel.Facts {
	return cel.Facts{
		Supported: supported,
		Score:     score,
		Threshold: subj.Threshold,
		ProfileID: profileID,
		OSMajor:   subj.OSMajor,
		OSMinor:   subj.OSMinor,
	}
}
