package cel

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"
)

// Facts are the inputs a compliance rule can reference.
type Facts struct {
	Supported bool
	Score     float64
	Threshold float64
	ProfileID string
	OSMajor   int
	OSMinor   int
}

func (f Facts) vars() map[string]interface{} {
	return map[string]interface{}{
		"supported":  f.Supported,
		"score":      f.Score,
		"threshold":  f.Threshold,
		"profile_id": f.ProfileID,
		"os_major":   int64(f.OSMajor),
		"os_minor":   int64(f.OSMinor),
	}
}

type Evaluator struct {
	env *cel.Env
}

func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("supported", cel.BoolType),
		cel.Variable("score", cel.DoubleType),
		cel.Variable("threshold", cel.DoubleType),
		cel.Variable("profile_id", cel.StringType),
		cel.Variable("os_major", cel.IntType),
		cel.Variable("os_minor", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{env: env}, nil
}

func (e *Evaluator) ValidateExpression(expression string) error {
	_, err := e.compile(expression)
	return err
}

// Rule is a compiled boolean compliance rule, safe for concurrent use.
type Rule struct {
	expression string
	program    cel.Program
}

func (e *Evaluator) CompileRule(expression string) (*Rule, error) {
	ast, err := e.compile(expression)
	if err != nil {
		return nil, err
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return &Rule{expression: expression, program: program}, nil
}

func (e *Evaluator) compile(expression string) (*cel.Ast, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("compliance rule must return bool, got %v", ast.OutputType())
	}

	return ast, nil
}

func (r *Rule) Expression() string {
	return r.expression
}

func (r *Rule) Evaluate(ctx context.Context, facts Facts) (bool, error) {
	result, _, err := r.program.ContextEval(ctx, facts.vars())
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	boolVal, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", result.Value())
	}

	return boolVal, nil
}
