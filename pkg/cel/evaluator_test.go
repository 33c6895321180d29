package cel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvaluator(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)
	assert.NotNil(t, eval)
}

func TestValidateExpression(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	tests := []struct {
		name      string
		expr      string
		wantError bool
	}{
		{
			name: "default rule",
			expr: `supported && score >= threshold`,
		},
		{
			name: "profile condition",
			expr: `profile_id == "xccdf_org.ssgproject.content_profile_cis" && score > 90.0`,
		},
		{
			name:      "invalid syntax",
			expr:      `invalid syntax here!!!`,
			wantError: true,
		},
		{
			name:      "undefined variable",
			expr:      `policy == "x"`,
			wantError: true,
		},
		{
			name:      "non-bool result",
			expr:      `score - threshold`,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := eval.ValidateExpression(tt.expr)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRuleEvaluate(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	rule, err := eval.CompileRule(RuleExamples["default"])
	require.NoError(t, err)
	assert.Equal(t, `supported && score >= threshold`, rule.Expression())

	tests := []struct {
		name  string
		facts Facts
		want  bool
	}{
		{"above threshold", Facts{Supported: true, Score: 91.5, Threshold: 90}, true},
		{"equal threshold", Facts{Supported: true, Score: 90, Threshold: 90}, true},
		{"below threshold", Facts{Supported: true, Score: 89.9, Threshold: 90}, false},
		{"unsupported", Facts{Supported: false, Score: 100, Threshold: 0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := rule.Evaluate(context.Background(), tt.facts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRuleExamplesCompile(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	for name, expr := range RuleExamples {
		t.Run(name, func(t *testing.T) {
			_, err := eval.CompileRule(expr)
			assert.NoError(t, err)
		})
	}
}

func TestRuleUsesOSVersion(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	rule, err := eval.CompileRule(RuleExamples["rhel9_only_gate"])
	require.NoError(t, err)

	got, err := rule.Evaluate(context.Background(), Facts{Supported: true, Score: 10, Threshold: 90, OSMajor: 8})
	require.NoError(t, err)
	assert.True(t, got)

	got, err = rule.Evaluate(context.Background(), Facts{Supported: true, Score: 10, Threshold: 90, OSMajor: 9})
	require.NoError(t, err)
	assert.False(t, got)
}
