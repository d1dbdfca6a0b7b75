package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/xeipuuv/gojsonschema"

	logx "github.com/lofty-concierge/server/pkg/logger"
)

// HandlerFunc runs a tool with validated arguments. The returned text is fed
// back to the model; a returned error is converted to text by the caller.
type HandlerFunc func(ctx context.Context, args Args) (string, error)

// Tool is a schema-typed operation the model may call. It implements
// tool.InvokableTool and never returns a Go error from InvokableRun.
type Tool struct {
	Name        string
	Description string
	Params      map[string]*schema.ParameterInfo
	Fn          HandlerFunc

	validator *gojsonschema.Schema
	gate      Gate
}

var _ tool.InvokableTool = (*Tool)(nil)

// ToolValidationError lists every schema violation of one call.
type ToolValidationError struct {
	ToolName string
	Errors   []string
}

func (e *ToolValidationError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.ToolName, strings.Join(e.Errors, "; "))
}

func (t *Tool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name:        t.Name,
		Desc:        t.Description,
		ParamsOneOf: schema.NewParamsOneOfByParams(t.Params),
	}, nil
}

func (t *Tool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("tool_name", t.Name).Interface("panic", r).Msg("tool panicked")
			out, err = fmt.Sprintf("Error: %s could not be completed right now. Please try again or ask for a project manager.", t.Name), nil
		}
	}()

	args, verr := t.parse(argumentsInJSON)
	if verr != nil {
		logx.Warn().Str("tool_name", t.Name).Err(verr).Msg("rejected tool arguments")
		return fmt.Sprintf("Error: %v. Ask the client for the missing details and call %s again.", verr, t.Name), nil
	}

	if t.gate != nil {
		sc := scopeFrom(ctx)
		allowed, reason := t.gate.Allow(ctx, t.Name, sc, args)
		if !allowed {
			logx.Info().Str("tool_name", t.Name).Str("mode", sc.Mode()).Str("segment", string(sc.Segment)).Str("reason", reason).Msg("tool blocked by policy")
			return fmt.Sprintf("The %s operation is not available in this conversation.", t.Name), nil
		}
	}

	text, ferr := t.Fn(ctx, args)
	if ferr != nil {
		logx.Error().Str("tool_name", t.Name).Err(ferr).Msg("tool failed")
		return fmt.Sprintf("Error: %s could not be completed right now. Please try again or ask for a project manager.", t.Name), nil
	}
	return text, nil
}

// parse decodes and validates the model-supplied JSON arguments.
func (t *Tool) parse(argumentsInJSON string) (Args, error) {
	raw := strings.TrimSpace(argumentsInJSON)
	if raw == "" {
		raw = "{}"
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, &ToolValidationError{ToolName: t.Name, Errors: []string{"arguments are not a JSON object"}}
	}
	if args == nil {
		args = map[string]any{}
	}
	if err := t.validate(args); err != nil {
		return nil, err
	}
	return Args(args), nil
}

// compile prepares the argument validator. It must run before the tool is shared.
func (t *Tool) compile() error {
	s, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(jsonSchemaOf(t.Params)))
	if err != nil {
		return fmt.Errorf("schema for %s: %w", t.Name, err)
	}
	t.validator = s
	return nil
}

func (t *Tool) validate(args map[string]any) error {
	if t.validator == nil {
		return fmt.Errorf("tool %s has no compiled schema", t.Name)
	}

	result, err := t.validator.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if result.Valid() {
		return nil
	}
	var msgs []string
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return &ToolValidationError{ToolName: t.Name, Errors: msgs}
}

// jsonSchemaOf builds the JSON schema enforced on arguments. Required string
// parameters must also be non-blank.
func jsonSchemaOf(params map[string]*schema.ParameterInfo) map[string]any {
	props := map[string]any{}
	required := []string{}
	for name, p := range params {
		prop := map[string]any{"type": string(p.Type)}
		if p.Required && p.Type == schema.String {
			prop["minLength"] = 1
			prop["pattern"] = `\S`
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		props[name] = prop
		if p.Required {
			required = append(required, name)
		}
	}
	sort.Strings(required)

	doc := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	return doc
}

// Args is a validated argument map.
type Args map[string]any

// String returns the trimmed string value of key, formatting non-strings.
func (a Args) String(key string) string {
	v, ok := a[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}
