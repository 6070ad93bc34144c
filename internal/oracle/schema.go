package oracle

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/mashnoor/llm-ift/internal/types"
)

// SchemaValidationError reports a structurally invalid oracle response:
// a required finding field is missing or carries the wrong type.
type SchemaValidationError struct {
	Field  string
	Reason string
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("oracle: invalid finding field %q: %s", e.Field, e.Reason)
}

// ExtractJSON locates the structured payload inside a possibly free-form
// oracle response by slicing from the first '{' to the last '}'.
func ExtractJSON(raw []byte) (json.RawMessage, error) {
	start := bytes.IndexByte(raw, '{')
	end := bytes.LastIndexByte(raw, '}')
	if start < 0 || end < start {
		return nil, &SchemaValidationError{Field: "(payload)", Reason: "no JSON object in response"}
	}
	return json.RawMessage(raw[start : end+1]), nil
}

// requiredFindingFields maps the finding schema: field name -> type checker.
var requiredFindingFields = []struct {
	name  string
	check func(json.RawMessage) error
}{
	{"is_vulnerable", wantBool},
	{"involved_signals_or_submodules", wantStringList},
	{"leakage_steps", wantStringList},
	{"leakage_category", wantStringOrNull},
	{"explanation", wantString},
}

// ParseFinding validates the payload against the five required fields of a
// module finding and decodes it. Any missing field or type mismatch is a
// SchemaValidationError.
func ParseFinding(module string, payload json.RawMessage) (types.ModuleFinding, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return types.ModuleFinding{}, &SchemaValidationError{Field: "(payload)", Reason: err.Error()}
	}
	for _, f := range requiredFindingFields {
		raw, ok := fields[f.name]
		if !ok {
			return types.ModuleFinding{}, &SchemaValidationError{Field: f.name, Reason: "missing"}
		}
		if err := f.check(raw); err != nil {
			return types.ModuleFinding{}, &SchemaValidationError{Field: f.name, Reason: err.Error()}
		}
	}

	var finding types.ModuleFinding
	if err := json.Unmarshal(payload, &finding); err != nil {
		return types.ModuleFinding{}, &SchemaValidationError{Field: "(payload)", Reason: err.Error()}
	}
	finding.Module = module
	finding.Incomplete = false
	return finding, nil
}

func wantBool(raw json.RawMessage) error {
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("want bool")
	}
	return nil
}

func wantString(raw json.RawMessage) error {
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("want string")
	}
	return nil
}

func wantStringOrNull(raw json.RawMessage) error {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("want string or null")
	}
	return nil
}

func wantStringList(raw json.RawMessage) error {
	var v []string
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("want string list")
	}
	return nil
}
