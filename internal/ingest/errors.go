package ingest

import (
	"context"
	"errors"
	"fmt"

	"compliance/internal/reports"
	"compliance/internal/xccdf"
)

// Kind is the closed set of outcomes the dispatcher branches on.
type Kind int

const (
	KindNone Kind = iota
	KindEntitlement
	KindReportValidation
	KindReportParse
	KindDownload
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindEntitlement:
		return "entitlement"
	case KindReportValidation:
		return "report_validation"
	case KindReportParse:
		return "report_parse"
	case KindDownload:
		return "download"
	case KindTransient:
		return "transient"
	}
	return "unknown"
}

// Permanent kinds are handled in place and the message is committed.
func (k Kind) Permanent() bool {
	switch k {
	case KindEntitlement, KindReportValidation, KindReportParse, KindDownload:
		return true
	}
	return false
}

type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Reason is the human readable part used in audit entries.
func (e *Error) Reason() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return e.Kind.String()
}

func newError(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Classify maps any error returned by a collaborator to a Kind. Errors
// that carry no recognised tag are treated as transient so they are
// redelivered rather than committed with an incomplete outcome.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}

	var ie *Error
	if errors.As(err, &ie) {
		return ie.Kind
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}

	var de *reports.DownloadError
	if errors.As(err, &de) {
		return KindDownload
	}

	var fe *xccdf.FormatError
	if errors.As(err, &fe) {
		return KindReportParse
	}

	return KindTransient
}

// asError returns err as an *Error of its classified kind.
func asError(err error) *Error {
	var ie *Error
	if errors.As(err, &ie) {
		return ie
	}
	return &Error{Kind: Classify(err), Cause: err}
}
