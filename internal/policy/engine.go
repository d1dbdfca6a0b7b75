package policy

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/open-policy-agent/opa/rego"
)

// Decision values returned by the tool policy.
const (
	DecisionAllow = "allow"
	DecisionBlock = "block"
)

//go:embed tool_policy.rego
var DefaultPolicy string

// Input is the document the tool policy is evaluated against.
type Input struct {
	Tool    string         `json:"tool_name"`
	Mode    string         `json:"mode"`
	Segment string         `json:"segment"`
	Args    map[string]any `json:"args,omitempty"`
}

// Engine is the OPA tool policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine prepares the given rego module. The module must define data.tool_policy.decision.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.tool_policy.decision"),
		rego.Module("tool_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}
	return &Engine{query: query}, nil
}

// LoadEngine uses the rego file at path, or the embedded policy when path is empty.
func LoadEngine(ctx context.Context, path string) (*Engine, error) {
	if strings.TrimSpace(path) == "" {
		return NewEngine(ctx, DefaultPolicy)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tool policy %s: %w", path, err)
	}
	return NewEngine(ctx, string(b))
}

// Evaluate returns the decision for one tool call. A policy without a matching
// rule allows the call.
func (e *Engine) Evaluate(ctx context.Context, in Input) (string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(in.document()))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return DecisionAllow, nil
	}

	s, ok := results[0].Expressions[0].Value.(string)
	if !ok {
		return "", fmt.Errorf("policy decision has unexpected type %T", results[0].Expressions[0].Value)
	}
	return s, nil
}

// document converts the input to plain JSON-like values for rego.
func (in Input) document() map[string]any {
	args := in.Args
	if args == nil {
		args = map[string]any{}
	}
	return map[string]any{
		"tool_name": in.Tool,
		"mode":      in.Mode,
		"segment":   in.Segment,
		"args":      args,
	}
}
