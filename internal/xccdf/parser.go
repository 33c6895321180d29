// Package xccdf extracts scan results from XCCDF 1.2 result documents and
// ARF collections produced by OpenSCAP.
package xccdf

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

const (
	profilePrefix   = "xccdf_org.ssgproject.content_profile_"
	benchmarkPrefix = "xccdf_org.ssgproject.content_benchmark_"
	defaultScoring  = "urn:xccdf:scoring:default"
)

// ErrNoTestResult means the document holds no scan results.
var ErrNoTestResult = errors.New("no TestResult element found")

// FormatError is returned for documents that are not usable scan results.
type FormatError struct {
	Cause error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid XCCDF report: %v", e.Cause)
}

func (e *FormatError) Unwrap() error {
	return e.Cause
}

type Report struct {
	BenchmarkID      string
	BenchmarkVersion string
	TestResultID     string
	ProfileID        string
	Target           string
	StartTime        time.Time
	EndTime          time.Time
	Score            float64
	RuleResults      []RuleResult
}

type RuleResult struct {
	RuleID   string
	Result   string
	Severity string
}

// Failed reports whether the rule was evaluated and did not pass.
func (r RuleResult) Failed() bool {
	switch r.Result {
	case "fail", "error", "unknown":
		return true
	}
	return false
}

func (r *Report) FailedRules() []RuleResult {
	var failed []RuleResult
	for _, rr := range r.RuleResults {
		if rr.Failed() {
			failed = append(failed, rr)
		}
	}
	return failed
}

// ShortProfileRef returns the profile id without the SCAP Security Guide
// prefix, e.g. "cis" for xccdf_org.ssgproject.content_profile_cis.
func (r *Report) ShortProfileRef() string {
	return ShortProfileRef(r.ProfileID)
}

func ShortProfileRef(profileID string) string {
	lower := strings.ToLower(profileID)
	if i := strings.Index(lower, profilePrefix); i >= 0 {
		return lower[i+len(profilePrefix):]
	}
	return lower
}

// OSMajorFromBenchmark derives the RHEL major version from a benchmark id
// such as xccdf_org.ssgproject.content_benchmark_RHEL-8. It returns 0 when
// the id carries no version.
func OSMajorFromBenchmark(benchmarkID string) int {
	ref := strings.TrimPrefix(benchmarkID, benchmarkPrefix)
	i := strings.LastIndex(ref, "-")
	if i < 0 {
		return 0
	}
	major, err := strconv.Atoi(ref[i+1:])
	if err != nil {
		return 0
	}
	return major
}

type testResultXML struct {
	ID        string `xml:"id,attr"`
	StartTime string `xml:"start-time,attr"`
	EndTime   string `xml:"end-time,attr"`
	Benchmark struct {
		ID string `xml:"id,attr"`
	} `xml:"benchmark"`
	Profile struct {
		IDRef string `xml:"idref,attr"`
	} `xml:"profile"`
	Target      string          `xml:"target"`
	RuleResults []ruleResultXML `xml:"rule-result"`
	Scores      []scoreXML      `xml:"score"`
}

type ruleResultXML struct {
	IDRef    string `xml:"idref,attr"`
	Severity string `xml:"severity,attr"`
	Result   string `xml:"result"`
}

type scoreXML struct {
	System  string `xml:"system,attr"`
	Maximum string `xml:"maximum,attr"`
	Value   string `xml:",chardata"`
}

// Parse reads the first TestResult in data together with the version of
// the enclosing or referenced Benchmark.
func Parse(data []byte) (*Report, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = true

	var (
		report       Report
		found        bool
		benchDone    bool
		benchDepth   = -1
		depth        int
		benchmarkID  string
		benchVersion string
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &FormatError{Cause: err}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch t.Name.Local {
			case "Benchmark":
				if !benchDone && benchDepth < 0 {
					benchDepth = depth
					benchmarkID = attr(t, "id")
				}
			case "version":
				if benchDepth >= 0 && depth == benchDepth+1 && benchVersion == "" {
					var v string
					if err := dec.DecodeElement(&v, &t); err != nil {
						return nil, &FormatError{Cause: err}
					}
					benchVersion = strings.TrimSpace(v)
					depth--
				}
			case "TestResult":
				if found {
					continue
				}
				var tr testResultXML
				if err := dec.DecodeElement(&tr, &t); err != nil {
					return nil, &FormatError{Cause: err}
				}
				depth--
				if err := fill(&report, tr); err != nil {
					return nil, &FormatError{Cause: err}
				}
				found = true
			}
		case xml.EndElement:
			if depth == benchDepth {
				benchDepth = -1
				benchDone = true
			}
			depth--
		}
	}

	if !found {
		return nil, &FormatError{Cause: ErrNoTestResult}
	}

	if report.BenchmarkID == "" {
		report.BenchmarkID = benchmarkID
	}
	report.BenchmarkVersion = benchVersion

	return &report, nil
}

func fill(r *Report, tr testResultXML) error {
	r.TestResultID = tr.ID
	r.ProfileID = strings.TrimSpace(tr.Profile.IDRef)
	r.Target = strings.TrimSpace(tr.Target)
	r.BenchmarkID = tr.Benchmark.ID

	if r.ProfileID == "" {
		return errors.New("TestResult has no profile reference")
	}

	var err error
	if r.StartTime, err = parseTime(tr.StartTime); err != nil {
		return fmt.Errorf("invalid start-time: %w", err)
	}
	if r.EndTime, err = parseTime(tr.EndTime); err != nil {
		return fmt.Errorf("invalid end-time: %w", err)
	}

	score, err := pickScore(tr.Scores)
	if err != nil {
		return err
	}
	r.Score = score

	r.RuleResults = make([]RuleResult, 0, len(tr.RuleResults))
	for _, rr := range tr.RuleResults {
		r.RuleResults = append(r.RuleResults, RuleResult{
			RuleID:   rr.IDRef,
			Result:   strings.TrimSpace(rr.Result),
			Severity: rr.Severity,
		})
	}

	return nil
}

// pickScore prefers the default scoring system and normalises to a
// percentage of the declared maximum.
func pickScore(scores []scoreXML) (float64, error) {
	if len(scores) == 0 {
		return 0, errors.New("TestResult has no score")
	}

	chosen := scores[0]
	for _, s := range scores {
		if s.System == defaultScoring {
			chosen = s
			break
		}
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(chosen.Value), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid score %q: %w", chosen.Value, err)
	}

	if chosen.Maximum != "" {
		maximum, err := strconv.ParseFloat(strings.TrimSpace(chosen.Maximum), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid score maximum %q: %w", chosen.Maximum, err)
		}
		if maximum > 0 && maximum != 100 {
			value = value / maximum * 100
		}
	}

	return value, nil
}

func parseTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", v)
}

func attr(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
