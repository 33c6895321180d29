package xccdf

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resultsDocument = `<?xml version="1.0" encoding="UTF-8"?>
<Benchmark xmlns="http://checklists.nist.gov/xccdf/1.2" id="xccdf_org.ssgproject.content_benchmark_RHEL-8" resolved="1">
  <status>draft</status>
  <title>Guide to the Secure Configuration of Red Hat Enterprise Linux 8</title>
  <version>0.1.63</version>
  <Profile id="xccdf_org.ssgproject.content_profile_cis">
    <title>CIS</title>
    <version>1.0</version>
  </Profile>
  <TestResult id="xccdf_org.open-scap_testresult_xccdf_org.ssgproject.content_profile_cis"
      start-time="2024-03-01T10:00:00+00:00" end-time="2024-03-01T10:05:00+00:00">
    <benchmark href="#scap" id="xccdf_org.ssgproject.content_benchmark_RHEL-8"/>
    <profile idref="xccdf_org.ssgproject.content_profile_cis"/>
    <target>host1.example.com</target>
    <rule-result idref="xccdf_org.ssgproject.content_rule_package_aide_installed" severity="medium">
      <result>pass</result>
    </rule-result>
    <rule-result idref="xccdf_org.ssgproject.content_rule_sshd_disable_root_login" severity="high">
      <result>fail</result>
    </rule-result>
    <rule-result idref="xccdf_org.ssgproject.content_rule_grub2_password" severity="high">
      <result>notapplicable</result>
    </rule-result>
    <score system="urn:xccdf:scoring:flat" maximum="20.0">10.0</score>
    <score system="urn:xccdf:scoring:default" maximum="100.000000">91.250000</score>
  </TestResult>
</Benchmark>`

const arfDocument = `<?xml version="1.0" encoding="UTF-8"?>
<arf:asset-report-collection xmlns:arf="http://scap.nist.gov/schema/asset-reporting-format/1.1"
    xmlns:xccdf-1.2="http://checklists.nist.gov/xccdf/1.2">
  <arf:report-requests>
    <arf:report-request id="collection1">
      <arf:content>
        <ds:data-stream-collection xmlns:ds="http://scap.nist.gov/schema/scap/source/1.2">
          <ds:component id="scap_org.open-scap_comp_ssg-rhel9-xccdf.xml">
            <xccdf-1.2:Benchmark id="xccdf_org.ssgproject.content_benchmark_RHEL-9">
              <xccdf-1.2:version>0.1.72</xccdf-1.2:version>
            </xccdf-1.2:Benchmark>
          </ds:component>
        </ds:data-stream-collection>
      </arf:content>
    </arf:report-request>
  </arf:report-requests>
  <arf:reports>
    <arf:report id="xccdf1">
      <arf:content>
        <TestResult xmlns="http://checklists.nist.gov/xccdf/1.2" id="tr1" end-time="2024-05-02T08:00:00">
          <profile idref="xccdf_org.ssgproject.content_profile_pci-dss"/>
          <rule-result idref="xccdf_org.ssgproject.content_rule_a"><result>error</result></rule-result>
          <score maximum="50">25</score>
        </TestResult>
      </arf:content>
    </arf:report>
  </arf:reports>
</arf:asset-report-collection>`

func TestParseResultsDocument(t *testing.T) {
	report, err := Parse([]byte(resultsDocument))
	require.NoError(t, err)

	assert.Equal(t, "xccdf_org.ssgproject.content_benchmark_RHEL-8", report.BenchmarkID)
	assert.Equal(t, "0.1.63", report.BenchmarkVersion)
	assert.Equal(t, "xccdf_org.ssgproject.content_profile_cis", report.ProfileID)
	assert.Equal(t, "cis", report.ShortProfileRef())
	assert.Equal(t, "host1.example.com", report.Target)
	assert.InDelta(t, 91.25, report.Score, 0.0001)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 5, 0, 0, time.UTC), report.EndTime)
	require.Len(t, report.RuleResults, 3)

	failed := report.FailedRules()
	require.Len(t, failed, 1)
	assert.Equal(t, "xccdf_org.ssgproject.content_rule_sshd_disable_root_login", failed[0].RuleID)
	assert.Equal(t, "high", failed[0].Severity)
}

func TestParseARF(t *testing.T) {
	report, err := Parse([]byte(arfDocument))
	require.NoError(t, err)

	assert.Equal(t, "xccdf_org.ssgproject.content_benchmark_RHEL-9", report.BenchmarkID)
	assert.Equal(t, "0.1.72", report.BenchmarkVersion)
	assert.Equal(t, "pci-dss", report.ShortProfileRef())
	assert.InDelta(t, 50.0, report.Score, 0.0001)
	assert.Equal(t, time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC), report.EndTime)
	assert.Len(t, report.FailedRules(), 1)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not xml", "this is not a report"},
		{"truncated", `<Benchmark><TestResult id="x"><profile idref="p"/>`},
		{"no test result", `<Benchmark id="b"><version>1</version></Benchmark>`},
		{"no profile", `<TestResult id="x"><score>10</score></TestResult>`},
		{"no score", `<TestResult id="x"><profile idref="p"/></TestResult>`},
		{"bad score", `<TestResult id="x"><profile idref="p"/><score>high</score></TestResult>`},
		{"bad time", `<TestResult id="x" end-time="yesterday"><profile idref="p"/><score>1</score></TestResult>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			var fe *FormatError
			assert.True(t, errors.As(err, &fe))
		})
	}
}

func TestParseNoTestResultSentinel(t *testing.T) {
	_, err := Parse([]byte(`<Benchmark id="b"/>`))
	assert.ErrorIs(t, err, ErrNoTestResult)
}

func TestOSMajorFromBenchmark(t *testing.T) {
	assert.Equal(t, 8, OSMajorFromBenchmark("xccdf_org.ssgproject.content_benchmark_RHEL-8"))
	assert.Equal(t, 9, OSMajorFromBenchmark("xccdf_org.ssgproject.content_benchmark_RHEL-9"))
	assert.Equal(t, 0, OSMajorFromBenchmark("custom"))
}

func TestShortProfileRef(t *testing.T) {
	assert.Equal(t, "ospp", ShortProfileRef("xccdf_org.ssgproject.content_profile_ospp"))
	assert.Equal(t, "custom_profile", ShortProfileRef("custom_profile"))
}
