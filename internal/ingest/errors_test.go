package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"compliance/internal/reports"
	"compliance/internal/xccdf"
	apperrors "compliance/pkg/errors"
)

func TestClassify(t *testing.T) {
	download := &reports.DownloadError{URL: "https://example.com/r", Cause: errors.New("404")}

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil", err: nil, want: KindNone},
		{name: "tagged", err: newError(KindEntitlement, nil, "denied"), want: KindEntitlement},
		{name: "tagged and wrapped", err: fmt.Errorf("outer: %w", newError(KindReportValidation, nil, "empty")), want: KindReportValidation},
		{name: "download error", err: download, want: KindDownload},
		{name: "wrapped download error", err: fmt.Errorf("fetch: %w", download), want: KindDownload},
		{name: "format error", err: &xccdf.FormatError{Cause: xccdf.ErrNoTestResult}, want: KindReportParse},
		{name: "unavailable", err: apperrors.Unavailable(errors.New("db down")), want: KindTransient},
		{name: "context canceled", err: context.Canceled, want: KindTransient},
		{name: "deadline", err: fmt.Errorf("fetch: %w", context.DeadlineExceeded), want: KindTransient},
		{name: "unknown", err: errors.New("surprise"), want: KindTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestKindPermanent(t *testing.T) {
	for _, k := range []Kind{KindEntitlement, KindReportValidation, KindReportParse, KindDownload} {
		assert.True(t, k.Permanent(), k.String())
	}
	assert.False(t, KindTransient.Permanent())
	assert.False(t, KindNone.Permanent())
}

func TestErrorReason(t *testing.T) {
	assert.Equal(t, "empty", newError(KindReportValidation, nil, "empty").Reason())
	assert.Equal(t, "boom", (&Error{Kind: KindDownload, Cause: errors.New("boom")}).Reason())

	err := newError(KindTransient, errors.New("reset"), "save failed")
	assert.Equal(t, "transient: save failed: reset", err.Error())
	assert.True(t, errors.Is(err, err.Cause))
}
