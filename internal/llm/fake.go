package llm

import (
	"context"
	"encoding/json"
)

// FakeClient returns deterministic, minimal JSON payloads per phase for
// offline runs and testing.
type FakeClient struct {
	// Responses overrides the canned payload for a phase when set.
	Responses map[string]json.RawMessage
}

func NewFakeClient() *FakeClient {
	return &FakeClient{}
}

func (f *FakeClient) Name() string { return "FakeLLM" }
func (f *FakeClient) Close() error { return nil }

func (f *FakeClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	phase := PhaseFrom(ctx)
	if f.Responses != nil {
		if raw, ok := f.Responses[phase]; ok {
			return raw, nil
		}
	}
	var obj any
	switch phase {
	case "hier_init":
		obj = map[string]any{"acknowledged": true}
	case "module_analysis":
		obj = map[string]any{
			"is_vulnerable":                  false,
			"involved_signals_or_submodules": []string{},
			"leakage_steps":                  []string{},
			"leakage_category":               nil,
			"explanation":                    "fake module analysis: no definite leakage found",
			"asset_flows":                    []string{},
		}
	case "asset_id":
		obj = map[string]any{"assets": []string{"key"}}
	case "design_summary":
		obj = map[string]any{"summary": "fake design summary"}
	default:
		obj = map[string]any{}
	}
	b, _ := json.Marshal(obj)
	return json.RawMessage(b), nil
}
