package ingest

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"compliance/internal/constants"
	"compliance/internal/reports"
	"compliance/internal/storage"
	"compliance/internal/xccdf"
	apperrors "compliance/pkg/errors"
	"compliance/pkg/metrics"
	"compliance/pkg/models"
	"compliance/pkg/tracing"
)

// Catalog is the read side of the system, policy and benchmark stores that
// a parsed report is cross-referenced against.
type Catalog interface {
	FindSystem(ctx context.Context, orgID, systemID string) (*storage.System, error)
	FindPolicy(ctx context.Context, orgID, systemID, profileRefID string) (*storage.Policy, error)
	SupportedProfile(ctx context.Context, benchmarkRefID, version, profileRefID string, osMinor int) (bool, error)
	RemediableRules(ctx context.Context, benchmarkRefID, version string, ruleRefIDs []string) ([]string, error)
}

// ParsedReport is one scan from a bundle resolved against the host's policy.
type ParsedReport struct {
	Source            string
	Report            *xccdf.Report
	System            storage.System
	Policy            storage.Policy
	Supported         bool
	RemediationIssues []string
}

type ReportParser struct {
	catalog Catalog
}

func NewReportParser(catalog Catalog) *ReportParser {
	return &ReportParser{catalog: catalog}
}

// Parse decodes blob and resolves it for the event's host. Store failures
// come back as KindTransient, everything else as KindReportParse.
func (p *ReportParser) Parse(ctx context.Context, ev *models.InboundEvent, blob reports.Blob) (*ParsedReport, error) {
	ctx, span := tracing.StartSpan(ctx, "ingest.parse", attribute.String("report.source", blob.Name))
	defer span.End()

	pr, err := p.parse(ctx, ev, blob)
	if err != nil {
		span.RecordError(err)
		metrics.IncReportParsed(Classify(err).String())
		return nil, err
	}
	metrics.IncReportParsed("success")
	return pr, nil
}

func (p *ReportParser) parse(ctx context.Context, ev *models.InboundEvent, blob reports.Blob) (*ParsedReport, error) {
	report, err := xccdf.Parse(blob.Data)
	if err != nil {
		return nil, newError(KindReportParse, err, "%s is not a valid scan report", blobName(blob))
	}

	hostID, orgID := ev.HostID(), ev.OrgID()

	system, err := p.catalog.FindSystem(ctx, orgID, hostID)
	if err != nil {
		return nil, lookupError(err, "system %s is not registered", hostID)
	}

	policy, err := p.catalog.FindPolicy(ctx, orgID, system.ID, report.ProfileID)
	if err != nil {
		return nil, lookupError(err, "no policy for profile %s is assigned to system %s", report.ProfileID, hostID)
	}

	supported, err := p.catalog.SupportedProfile(ctx, report.BenchmarkID, report.BenchmarkVersion, report.ProfileID, system.OSMinor)
	if err != nil {
		return nil, lookupError(err, "failed to check profile support")
	}

	issues, err := p.remediationIssues(ctx, report, system)
	if err != nil {
		return nil, lookupError(err, "failed to resolve remediations")
	}

	return &ParsedReport{
		Source:            blob.Name,
		Report:            report,
		System:            *system,
		Policy:            *policy,
		Supported:         supported,
		RemediationIssues: issues,
	}, nil
}

// remediationIssues lists ssg:rhel<major>|<profile>|<rule> for every failed
// rule that ships a remediation.
func (p *ReportParser) remediationIssues(ctx context.Context, report *xccdf.Report, system *storage.System) ([]string, error) {
	failed := report.FailedRules()
	if len(failed) == 0 {
		return []string{}, nil
	}

	refs := make([]string, 0, len(failed))
	for _, rr := range failed {
		refs = append(refs, rr.RuleID)
	}

	remediable, err := p.catalog.RemediableRules(ctx, report.BenchmarkID, report.BenchmarkVersion, refs)
	if err != nil {
		return nil, err
	}

	major := xccdf.OSMajorFromBenchmark(report.BenchmarkID)
	if major == 0 {
		major = system.OSMajor
	}

	issues := make([]string, 0, len(remediable))
	for _, ref := range remediable {
		issues = append(issues, fmt.Sprintf("%s%d|%s|%s", constants.RemediationIssuePrefix, major, report.ShortProfileRef(), ref))
	}
	return issues, nil
}

// lookupError keeps retryable store failures transient and turns the rest,
// not-found included, into a parse failure of this report.
func lookupError(err error, format string, args ...interface{}) error {
	if apperrors.IsRetryable(err) {
		return newError(KindTransient, err, format, args...)
	}
	return newError(KindReportParse, err, format, args...)
}

func blobName(blob reports.Blob) string {
	if blob.Name == "" {
		return "report"
	}
	return blob.Name
}
