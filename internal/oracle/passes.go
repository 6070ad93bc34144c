package oracle

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mashnoor/llm-ift/internal/llm"
)

// HierInit primes the oracle with the design structure before the
// per-module loop. Failures are non-fatal: the per-module prompts carry
// enough context on their own.
type HierInit struct{ LLM llm.LLMClient }

func (p *HierInit) Run(ctx context.Context, order []string, adjacency map[string][]string) error {
	ctx = llm.WithPhase(ctx, "hier_init")
	_, err := p.LLM.GenerateJSON(ctx, promptHierInit, map[string]any{
		"sorted_modules": order,
		"adjacency_list": adjacency,
	})
	return err
}

// AssetIdentification extracts the critical security assets of a source
// slice. Runs once per design before the module loop; the result seeds the
// context store's provenance summaries.
type AssetIdentification struct{ LLM llm.LLMClient }

func (p *AssetIdentification) Run(ctx context.Context, verilogCode string) ([]string, error) {
	ctx = llm.WithPhase(ctx, "asset_id")
	raw, err := p.LLM.GenerateJSON(ctx, promptAssetID, map[string]any{
		"verilog_code": verilogCode,
	})
	if err != nil {
		return nil, err
	}
	payload, err := ExtractJSON(raw)
	if err != nil {
		return nil, err
	}
	var out struct {
		Assets []string `json:"assets"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("oracle: asset_id JSON invalid: %w", err)
	}
	return out.Assets, nil
}

// DesignSummary produces the optional narrative over the accumulated
// context. The deterministic aggregator remains the source of truth for the
// verdict; this pass only enriches the report's explanation.
type DesignSummary struct{ LLM llm.LLMClient }

func (p *DesignSummary) Run(ctx context.Context, accumulated string, order []string, adjacency map[string][]string) (string, error) {
	ctx = llm.WithPhase(ctx, "design_summary")
	raw, err := p.LLM.GenerateJSON(ctx, promptDesignSummary, map[string]any{
		"accumulated_context": accumulated,
		"sorted_modules":      order,
		"adjacency_list":      adjacency,
	})
	if err != nil {
		return "", err
	}
	payload, err := ExtractJSON(raw)
	if err != nil {
		return "", err
	}
	var out struct {
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", fmt.Errorf("oracle: design_summary JSON invalid: %w", err)
	}
	return out.Summary, nil
}
