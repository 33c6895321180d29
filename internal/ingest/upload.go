package ingest

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"compliance/internal/audit"
	"compliance/internal/compliance"
	"compliance/internal/constants"
	"compliance/internal/identity"
	"compliance/internal/logger"
	"compliance/internal/notify"
	"compliance/internal/reports"
	"compliance/internal/storage"
	"compliance/internal/xccdf"
	apperrors "compliance/pkg/errors"
	"compliance/pkg/models"
	"compliance/pkg/tracing"
)

type Evaluator interface {
	Evaluate(ctx context.Context, subj compliance.Subject, scan compliance.Scan) (compliance.Result, error)
}

type Notifier interface {
	NonCompliant(ctx context.Context, n notify.NonCompliance)
	Remediation(ctx context.Context, systemID string, issueIDs []string)
	UploadFailed(ctx context.Context, f notify.UploadFailure)
}

type SystemFinder interface {
	FindSystem(ctx context.Context, orgID, systemID string) (*storage.System, error)
}

type UploadDeps struct {
	Identity  identity.Validator
	Reports   reports.Store
	Parser    *ReportParser
	Evaluator Evaluator
	Notifier  Notifier
	Results   *ResultProducer
	Systems   SystemFinder
	Audit     audit.Logger
}

// UploadHandler runs the report pipeline for one upload event: identity,
// fetch, parse, evaluate, notify, produce.
type UploadHandler struct {
	deps     UploadDeps
	failFast bool
	logger   logger.Logger
}

func NewUploadHandler(deps UploadDeps, failFast bool, log logger.Logger) *UploadHandler {
	return &UploadHandler{
		deps:     deps,
		failFast: failFast,
		logger:   log,
	}
}

// Handle returns nil once the outcome is final, including permanent
// failures that were reported. Any returned error is transient.
func (h *UploadHandler) Handle(ctx context.Context, ev *models.InboundEvent, st *cycleState) error {
	meta := ev.PlatformMetadata

	entitled, err := h.deps.Identity.Entitled(ctx, meta.B64Identity)
	if err != nil {
		return newError(KindTransient, err, "identity check failed")
	}
	if !entitled {
		return h.reject(ctx, ev, st, newError(KindEntitlement, apperrors.ErrForbidden, "invalid identity or missing insights entitlement"))
	}

	bundle, err := h.fetch(ctx, meta.URL)
	if err != nil {
		ie := asError(err)
		if !ie.Kind.Permanent() {
			return ie
		}
		return h.reject(ctx, ev, st, ie)
	}
	if len(bundle) == 0 {
		return h.reject(ctx, ev, st, newError(KindReportValidation, nil, "no reports found in upload"))
	}
	st.bundle = bundle

	for _, blob := range st.bundle {
		pr, err := h.deps.Parser.Parse(ctx, ev, blob)
		if err != nil {
			ie := asError(err)
			if !ie.Kind.Permanent() {
				return ie
			}
			h.logger.WarnwCtx(ctx, "Skipping unparseable report", "source", blob.Name, "error", ie)
			st.failed = append(st.failed, ie)
			if h.failFast {
				break
			}
			continue
		}
		st.parsed = append(st.parsed, pr)
	}

	if len(st.parsed) == 0 || (h.failFast && len(st.failed) > 0) {
		return h.reject(ctx, ev, st, st.failed[0])
	}
	for _, ie := range st.failed {
		h.deps.Audit.Fail(ctx, "Invalid report: "+ie.Reason())
	}

	for _, pr := range st.parsed {
		if err := h.evaluate(ctx, ev, pr); err != nil {
			return err
		}
	}

	if err := h.deps.Results.Produce(ctx, meta.RequestID, constants.ValidationSuccess); err != nil {
		return err
	}
	st.outcome = constants.ValidationSuccess

	for _, pr := range st.parsed {
		h.deps.Audit.Success(ctx, fmt.Sprintf("Successful report of %s for policy %s from system %s",
			pr.Report.ShortProfileRef(), pr.Policy.ID, pr.System.ID))
	}
	return nil
}

func (h *UploadHandler) fetch(ctx context.Context, url string) (reports.Bundle, error) {
	ctx, span := tracing.StartSpan(ctx, "ingest.fetch")
	defer span.End()

	bundle, err := h.deps.Reports.Fetch(ctx, url)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("report.count", len(bundle)))
	return bundle, nil
}

func (h *UploadHandler) evaluate(ctx context.Context, ev *models.InboundEvent, pr *ParsedReport) error {
	report := pr.Report
	subj := compliance.Subject{
		SystemID:  pr.System.ID,
		OrgID:     pr.System.OrgID,
		PolicyID:  pr.Policy.ID,
		Threshold: pr.Policy.ComplianceThreshold,
		OSMajor:   pr.System.OSMajor,
		OSMinor:   pr.System.OSMinor,
	}
	scan := compliance.Scan{
		ProfileID:        report.ProfileID,
		BenchmarkVersion: report.BenchmarkVersion,
		Score:            report.Score,
		Supported:        pr.Supported,
		StartTime:        report.StartTime,
		EndTime:          report.EndTime,
		RuleResults:      ruleResults(report.RuleResults),
	}

	res, err := h.deps.Evaluator.Evaluate(ctx, subj, scan)
	if err != nil {
		return newError(KindTransient, err, "failed to evaluate report")
	}

	if !res.Compliant && res.ShouldNotify {
		h.deps.Notifier.NonCompliant(ctx, notify.NonCompliance{
			SystemID:    pr.System.ID,
			DisplayName: pr.System.DisplayName,
			OrgID:       ev.OrgID(),
			Account:     ev.PlatformMetadata.Account,
			RequestID:   ev.PlatformMetadata.RequestID,
			PolicyID:    pr.Policy.ID,
			PolicyTitle: pr.Policy.Title,
			Threshold:   res.ThresholdUsed,
			Score:       report.Score,
		})
	}
	h.deps.Notifier.Remediation(ctx, pr.System.ID, pr.RemediationIssues)
	return nil
}

// reject reports a permanent failure: audit entry, upload failure notice
// for known hosts, and a failed validation result. A host lookup that fails
// on the store aborts before anything is reported.
func (h *UploadHandler) reject(ctx context.Context, ev *models.InboundEvent, st *cycleState, ie *Error) error {
	meta := ev.PlatformMetadata

	system, err := h.lookupHost(ctx, ev)
	if err != nil {
		return err
	}

	h.logger.WarnwCtx(ctx, "Rejected upload", "kind", ie.Kind.String(), "error", ie)
	h.deps.Audit.Fail(ctx, auditMessage(meta.RequestID, ie))

	if system != nil {
		h.deps.Notifier.UploadFailed(ctx, notify.UploadFailure{
			HostID:      system.ID,
			DisplayName: system.DisplayName,
			OrgID:       ev.OrgID(),
			Account:     meta.Account,
			RequestID:   meta.RequestID,
			Error:       failureNotice(ev.HostID(), ie.Kind),
		})
	}

	if err := h.deps.Results.Produce(ctx, meta.RequestID, constants.ValidationFailed); err != nil {
		return err
	}
	st.outcome = constants.ValidationFailed
	return nil
}

// lookupHost returns nil for hosts the store does not know.
func (h *UploadHandler) lookupHost(ctx context.Context, ev *models.InboundEvent) (*storage.System, error) {
	system, err := h.deps.Systems.FindSystem(ctx, ev.OrgID(), ev.HostID())
	switch {
	case err == nil:
		return system, nil
	case apperrors.IsNotFound(err):
		return nil, nil
	case apperrors.IsRetryable(err):
		return nil, newError(KindTransient, err, "failed to look up host for upload failure notice")
	}
	h.logger.WarnwCtx(ctx, "Could not look up host for upload failure notice", "error", err)
	return nil, nil
}

func auditMessage(requestID string, ie *Error) string {
	switch ie.Kind {
	case KindEntitlement:
		return fmt.Sprintf("Rejected report with request id %s: invalid identity or missing insights entitlement", requestID)
	case KindDownload:
		return fmt.Sprintf("Failed to download report with request id %s: %s", requestID, ie.Reason())
	case KindReportValidation:
		return fmt.Sprintf("Invalid upload with request id %s: %s", requestID, ie.Reason())
	}
	return "Invalid report: " + ie.Reason()
}

func failureNotice(hostID string, kind Kind) string {
	switch kind {
	case KindEntitlement:
		return fmt.Sprintf("Failed to parse any uploaded report from host %s: invalid identity or missing insights entitlement.", hostID)
	case KindReportParse:
		return fmt.Sprintf("Failed to parse any uploaded report from host %s: invalid format.", hostID)
	}
	return fmt.Sprintf("Unable to locate any uploaded report from host %s.", hostID)
}

func ruleResults(in []xccdf.RuleResult) []storage.RuleResult {
	out := make([]storage.RuleResult, 0, len(in))
	for _, rr := range in {
		out = append(out, storage.RuleResult{
			RuleRefID: rr.RuleID,
			Result:    rr.Result,
			Severity:  rr.Severity,
		})
	}
	return out
}
