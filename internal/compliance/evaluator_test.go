package compliance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compliance/internal/constants"
	"compliance/internal/logger"
	"compliance/internal/storage"
	"compliance/pkg/cel"
	apperrors "compliance/pkg/errors"
)

type fakeStore struct {
	history    storage.History
	historyErr error
	saveErr    error

	calls []string
	saved []storage.TestResult
}

func (f *fakeStore) History(ctx context.Context, policyID, systemID string) (storage.History, error) {
	f.calls = append(f.calls, "history")
	return f.history, f.historyErr
}

func (f *fakeStore) SaveResult(ctx context.Context, r storage.TestResult) (string, error) {
	f.calls = append(f.calls, "save")
	if f.saveErr != nil {
		return "", f.saveErr
	}
	f.saved = append(f.saved, r)
	return "tr-1", nil
}

func newEvaluator(t *testing.T, store Store) *Evaluator {
	t.Helper()
	env, err := cel.NewEvaluator()
	require.NoError(t, err)
	rule, err := env.CompileRule(constants.DefaultComplianceRule)
	require.NoError(t, err)
	return NewEvaluator(store, rule, logger.NopLogger())
}

var subject = Subject{SystemID: "sys-1", OrgID: "org-1", PolicyID: "pol-1", Threshold: 90, OSMajor: 8, OSMinor: 6}

func scan(score float64, supported bool) Scan {
	return Scan{
		ProfileID:        "xccdf_org.ssgproject.content_profile_cis",
		BenchmarkVersion: "0.1.60",
		Score:            score,
		Supported:        supported,
		EndTime:          time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name    string
		history storage.History
		scan    Scan
		want    Result
	}{
		{
			name: "first compliant result",
			scan: scan(95, true),
			want: Result{Compliant: true, ShouldNotify: true, HadNoPriorResult: true, ThresholdUsed: 90, TestResultID: "tr-1"},
		},
		{
			name: "first non-compliant result notifies",
			scan: scan(50, true),
			want: Result{ShouldNotify: true, HadNoPriorResult: true, ThresholdUsed: 90},
		},
		{
			name:    "drop below threshold notifies",
			history: storage.History{HasResults: true, LatestScore: 95, LatestSupported: true},
			scan:    scan(50, true),
			want:    Result{ShouldNotify: true, PreviouslyCompliant: true, ThresholdUsed: 90},
		},
		{
			name:    "already non-compliant does not repeat",
			history: storage.History{HasResults: true, LatestScore: 40, LatestSupported: true},
			scan:    scan(50, true),
			want:    Result{ThresholdUsed: 90},
		},
		{
			name:    "unsupported prior result was not compliant",
			history: storage.History{HasResults: true, LatestScore: 100, LatestSupported: false},
			scan:    scan(50, true),
			want:    Result{ThresholdUsed: 90},
		},
		{
			name: "unsupported scan is never compliant",
			scan: scan(100, false),
			want: Result{ShouldNotify: true, HadNoPriorResult: true, ThresholdUsed: 90},
		},
		{
			name: "score equal to threshold is compliant",
			scan: scan(90, true),
			want: Result{Compliant: true, ShouldNotify: true, HadNoPriorResult: true, ThresholdUsed: 90, TestResultID: "tr-1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{history: tt.history}
			got, err := newEvaluator(t, store).Evaluate(context.Background(), subject, tt.scan)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			if tt.want.Compliant {
				require.Len(t, store.saved, 1)
				assert.Equal(t, "sys-1", store.saved[0].SystemID)
				assert.True(t, store.saved[0].Compliant)
			} else {
				assert.Empty(t, store.saved)
			}
		})
	}
}

func TestEvaluate_ReadsHistoryBeforeSaving(t *testing.T) {
	store := &fakeStore{}
	_, err := newEvaluator(t, store).Evaluate(context.Background(), subject, scan(99, true))
	require.NoError(t, err)
	assert.Equal(t, []string{"history", "save"}, store.calls)
}

func TestEvaluate_PropagatesStoreErrors(t *testing.T) {
	unavailable := apperrors.Unavailable(errors.New("connection reset"))

	t.Run("history", func(t *testing.T) {
		store := &fakeStore{historyErr: unavailable}
		_, err := newEvaluator(t, store).Evaluate(context.Background(), subject, scan(99, true))
		assert.True(t, apperrors.IsRetryable(err))
		assert.Empty(t, store.saved)
	})

	t.Run("save", func(t *testing.T) {
		store := &fakeStore{saveErr: unavailable}
		_, err := newEvaluator(t, store).Evaluate(context.Background(), subject, scan(99, true))
		assert.True(t, apperrors.IsRetryable(err))
	})
}
