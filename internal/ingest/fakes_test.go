package ingest

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"compliance/internal/broker"
	"compliance/internal/compliance"
	"compliance/internal/constants"
	"compliance/internal/logger"
	"compliance/internal/notify"
	"compliance/internal/reports"
	"compliance/internal/storage"
	"compliance/pkg/cel"
	apperrors "compliance/pkg/errors"
	"compliance/pkg/models"
)

const reportXML = `<?xml version="1.0" encoding="UTF-8"?>
<Benchmark xmlns="http://checklists.nist.gov/xccdf/1.2" id="xccdf_org.ssgproject.content_benchmark_RHEL-8">
  <version>0.1.63</version>
  <TestResult id="tr-cis" start-time="2026-03-01T10:00:00+00:00" end-time="2026-03-01T10:05:00+00:00">
    <profile idref="xccdf_org.ssgproject.content_profile_cis"/>
    <rule-result idref="xccdf_org.ssgproject.content_rule_package_aide_installed" severity="medium"><result>pass</result></rule-result>
    <rule-result idref="xccdf_org.ssgproject.content_rule_sshd_disable_root_login" severity="high"><result>fail</result></rule-result>
    <score system="urn:xccdf:scoring:default" maximum="100">91.25</score>
  </TestResult>
</Benchmark>`

const (
	hostID    = "1b1c2a7e-4b1f-4e55-9c77-0b9f7b7c6f10"
	orgID     = "org-1"
	requestID = "req-1"
	resultTop = "platform.upload.validation"
	source    = "compliance-test"
)

var producedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeIdentity struct {
	entitled bool
	err      error
	calls    int
}

func (f *fakeIdentity) Entitled(ctx context.Context, b64 string) (bool, error) {
	f.calls++
	return f.entitled, f.err
}

type fakeReports struct {
	bundles map[string]reports.Bundle
	err     error
	calls   int
}

func (f *fakeReports) Fetch(ctx context.Context, url string) (reports.Bundle, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.bundles[url], nil
}

type fakeCatalog struct {
	systems      map[string]storage.System
	policy       *storage.Policy
	supported    bool
	remediable   []string
	systemErr    error
	policyErr    error
	remediateErr error
	lookups      int
}

func (f *fakeCatalog) FindSystem(ctx context.Context, orgID, systemID string) (*storage.System, error) {
	f.lookups++
	if f.systemErr != nil {
		return nil, f.systemErr
	}
	sys, ok := f.systems[systemID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &sys, nil
}

func (f *fakeCatalog) FindPolicy(ctx context.Context, orgID, systemID, profileRefID string) (*storage.Policy, error) {
	if f.policyErr != nil {
		return nil, f.policyErr
	}
	if f.policy == nil {
		return nil, apperrors.ErrNotFound
	}
	p := *f.policy
	return &p, nil
}

func (f *fakeCatalog) SupportedProfile(ctx context.Context, benchmarkRefID, version, profileRefID string, osMinor int) (bool, error) {
	return f.supported, nil
}

func (f *fakeCatalog) RemediableRules(ctx context.Context, benchmarkRefID, version string, ruleRefIDs []string) ([]string, error) {
	if f.remediateErr != nil {
		return nil, f.remediateErr
	}
	return f.remediable, nil
}

type fakeResults struct {
	history storage.History
	saved   []storage.TestResult
}

func (f *fakeResults) History(ctx context.Context, policyID, systemID string) (storage.History, error) {
	return f.history, nil
}

func (f *fakeResults) SaveResult(ctx context.Context, r storage.TestResult) (string, error) {
	f.saved = append(f.saved, r)
	return "tr-1", nil
}

type sentNotice struct {
	kind     string
	systemID string
	issues   []string
	text     string
}

type fakeNotifier struct {
	sent []sentNotice
}

func (f *fakeNotifier) NonCompliant(ctx context.Context, n notify.NonCompliance) {
	f.sent = append(f.sent, sentNotice{kind: "non_compliant", systemID: n.SystemID})
}

func (f *fakeNotifier) Remediation(ctx context.Context, systemID string, issueIDs []string) {
	f.sent = append(f.sent, sentNotice{kind: "remediation", systemID: systemID, issues: issueIDs})
}

func (f *fakeNotifier) UploadFailed(ctx context.Context, u notify.UploadFailure) {
	f.sent = append(f.sent, sentNotice{kind: "upload_failed", systemID: u.HostID, text: u.Error})
}

func (f *fakeNotifier) kinds() []string {
	var kinds []string
	for _, n := range f.sent {
		kinds = append(kinds, n.kind)
	}
	return kinds
}

type fakeProducer struct {
	mu        sync.Mutex
	err       error
	onPublish func()
	messages  []models.ValidationMessage
}

func (f *fakeProducer) Publish(ctx context.Context, topic, key string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.onPublish != nil {
		f.onPublish()
	}
	f.messages = append(f.messages, payload.(models.ValidationMessage))
	return nil
}

func (f *fakeProducer) Close() error { return nil }

type auditEntry struct {
	level string
	msg   string
}

type fakeAudit struct {
	entries []auditEntry
}

func (f *fakeAudit) Success(ctx context.Context, msg string) {
	f.entries = append(f.entries, auditEntry{level: "success", msg: msg})
}

func (f *fakeAudit) Fail(ctx context.Context, msg string) {
	f.entries = append(f.entries, auditEntry{level: "fail", msg: msg})
}

func (f *fakeAudit) fails() []string {
	var out []string
	for _, e := range f.entries {
		if e.level == "fail" {
			out = append(out, e.msg)
		}
	}
	return out
}

type fakeQueue struct {
	err  error
	jobs []models.DeleteHostJob
}

func (f *fakeQueue) Enqueue(ctx context.Context, job models.DeleteHostJob) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

// harness wires a Dispatcher to in-memory collaborators.
type harness struct {
	identity *fakeIdentity
	reports  *fakeReports
	catalog  *fakeCatalog
	results  *fakeResults
	notifier *fakeNotifier
	producer *fakeProducer
	audit    *fakeAudit
	queue    *fakeQueue

	dispatcher *Dispatcher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		identity: &fakeIdentity{entitled: true},
		reports: &fakeReports{bundles: map[string]reports.Bundle{
			"https://reports.example.com/one": {{Name: "report.xml", Data: []byte(reportXML)}},
		}},
		catalog: &fakeCatalog{
			systems: map[string]storage.System{
				hostID: {ID: hostID, OrgID: orgID, DisplayName: "web-01", OSMajor: 8, OSMinor: 6},
			},
			policy:     &storage.Policy{ID: "pol-1", Title: "CIS", ProfileRefID: "xccdf_org.ssgproject.content_profile_cis", OSMajor: 8, ComplianceThreshold: 90},
			supported:  true,
			remediable: []string{"xccdf_org.ssgproject.content_rule_sshd_disable_root_login"},
		},
		results:  &fakeResults{},
		notifier: &fakeNotifier{},
		producer: &fakeProducer{},
		audit:    &fakeAudit{},
		queue:    &fakeQueue{},
	}
	h.dispatcher = h.build(t, false)
	return h
}

func (h *harness) build(t *testing.T, failFast bool) *Dispatcher {
	t.Helper()
	env, err := cel.NewEvaluator()
	require.NoError(t, err)
	rule, err := env.CompileRule(constants.DefaultComplianceRule)
	require.NoError(t, err)

	log := logger.NopLogger()
	results := NewResultProducer(h.producer, resultTop, log).WithSource(source)
	results.now = func() time.Time { return producedAt }

	upload := NewUploadHandler(UploadDeps{
		Identity:  h.identity,
		Reports:   h.reports,
		Parser:    NewReportParser(h.catalog),
		Evaluator: compliance.NewEvaluator(h.results, rule, log),
		Notifier:  h.notifier,
		Results:   results,
		Systems:   h.catalog,
		Audit:     h.audit,
	}, failFast, log)
	return NewDispatcher(upload, NewDeletionHandler(h.queue, h.audit, log), log)
}

func uploadEvent(url string) map[string]interface{} {
	return map[string]interface{}{
		"type": "created",
		"host": map[string]interface{}{"id": hostID, "org_id": orgID},
		"platform_metadata": map[string]interface{}{
			"service":      "compliance",
			"org_id":       orgID,
			"request_id":   requestID,
			"b64_identity": "aWRlbnRpdHk=",
			"url":          url,
		},
	}
}

func message(t *testing.T, offset int64, event map[string]interface{}) broker.Message {
	t.Helper()
	raw, err := json.Marshal(event)
	require.NoError(t, err)
	return broker.Message{Topic: "platform.inventory.events", Offset: offset, Value: raw}
}
