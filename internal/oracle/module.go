package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/mashnoor/llm-ift/internal/llm"
	"github.com/mashnoor/llm-ift/internal/types"
)

// DefaultMaxAttempts matches the network-retry convention of the llm
// middleware.
const DefaultMaxAttempts = 3

// ModuleAnalysis asks the oracle for a structured finding on one module.
// A single logical invocation may involve several physical attempts: the
// oracle is an unreliable structured-output producer, so each response is
// validated against the finding schema and re-requested on failure.
type ModuleAnalysis struct {
	LLM         llm.LLMClient
	MaxAttempts int
}

// Run returns a validated finding for the module described by mc. When the
// retry budget is exhausted (or the transport reports a permanent error),
// the finding degrades to the fail-safe default instead of failing the run;
// the returned error is non-nil only for context cancellation.
func (p *ModuleAnalysis) Run(ctx context.Context, mc types.ModuleContext) (types.ModuleFinding, error) {
	max := p.MaxAttempts
	if max <= 0 {
		max = DefaultMaxAttempts
	}
	ctx = llm.WithPhase(ctx, "module_analysis")

	input := map[string]any{
		"module_name":         mc.Module,
		"dependencies":        mc.Dependencies,
		"verilog_code":        mc.Source,
		"ancestor_path":       mc.AncestorPath,
		"asset_summary":       mc.AssetSummary,
		"dependency_findings": mc.DepFindings,
	}

	var last error
	for attempt := 0; attempt < max; attempt++ {
		if attempt > 0 {
			// Same context, with a repair hint naming the defect.
			input["regen_hint"] = map[string]any{
				"reason": fmt.Sprintf("previous response was malformed: %v; return the exact JSON schema requested", last),
			}
		}
		raw, err := p.LLM.GenerateJSON(ctx, promptModuleAnalysis, input)
		if err != nil {
			if ctx.Err() != nil {
				return types.ModuleFinding{}, ctx.Err()
			}
			var pErr *llm.PermanentError
			if errors.As(err, &pErr) {
				last = err
				break
			}
			last = err
			continue
		}
		payload, err := ExtractJSON(raw)
		if err != nil {
			last = err
			continue
		}
		finding, err := ParseFinding(mc.Module, payload)
		if err != nil {
			last = err
			continue
		}
		return finding, nil
	}

	return Failsafe(mc.Module, last), nil
}

// Failsafe synthesizes the non-vulnerable default finding used when the
// oracle cannot be made to produce a valid result within the retry budget.
// Incomplete is set so the final report can distinguish this from a real
// clean verdict.
func Failsafe(module string, cause error) types.ModuleFinding {
	explanation := "oracle invocation failed"
	if cause != nil {
		explanation = fmt.Sprintf("oracle invocation failed: %v", cause)
	}
	return types.ModuleFinding{
		Module:          module,
		IsVulnerable:    false,
		InvolvedSignals: []string{},
		LeakageSteps:    []string{},
		LeakageCategory: nil,
		Explanation:     explanation,
		Incomplete:      true,
	}
}
