package storage

import "time"

type System struct {
	ID          string
	OrgID       string
	DisplayName string
	OSMajor     int
	OSMinor     int
}

type Policy struct {
	ID                  string
	Title               string
	ProfileRefID        string
	OSMajor             int
	ComplianceThreshold float64
}

// History is the latest stored result of a system under a policy.
type History struct {
	HasResults      bool
	LatestScore     float64
	LatestSupported bool
}

type TestResult struct {
	SystemID             string
	PolicyID             string
	ProfileRefID         string
	SecurityGuideVersion string
	Score                float64
	Supported            bool
	Compliant            bool
	StartTime            time.Time
	EndTime              time.Time
	RuleResults          []RuleResult
}

type RuleResult struct {
	RuleRefID string
	Result    string
	Severity  string
}
