package report

import (
	"fmt"
	"strings"

	"github.com/mashnoor/llm-ift/internal/hiergraph"
	"github.com/mashnoor/llm-ift/internal/types"
)

// Aggregate merges per-module findings into one design-level verdict.
//
// The design is vulnerable iff a dependency path exists from a leaking
// module up to the top module along which every module reported
// is_vulnerable=true with a non-empty leakage_steps contribution. The top
// module is the externally observable destination of such a path; it does
// not need a contributing finding of its own. An isolated vulnerable leaf
// whose parent does not propagate the finding does not taint the design:
// a leak only counts once it reaches an externally observable point.
func Aggregate(res hiergraph.Resolution, findings map[string]types.ModuleFinding) types.DesignReport {
	contributing := make(map[string]bool, len(findings))
	for name, f := range findings {
		if f.IsVulnerable && len(f.LeakageSteps) > 0 {
			contributing[name] = true
		}
	}

	// A contributing chain reaches the observable boundary when it ends at
	// the top itself or at a direct dependency of the top. Walk downward
	// from those entry points through contributing modules only; the
	// modules reached form the propagated leakage front.
	propagated := make(map[string]bool)
	var stack []string
	if contributing[res.Top] {
		propagated[res.Top] = true
		stack = append(stack, res.Top)
	}
	for _, dep := range res.Deps[res.Top] {
		if contributing[dep] && !propagated[dep] {
			propagated[dep] = true
			stack = append(stack, dep)
		}
	}
	for len(stack) > 0 {
		m := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, dep := range res.Deps[m] {
			if contributing[dep] && !propagated[dep] {
				propagated[dep] = true
				stack = append(stack, dep)
			}
		}
	}

	report := types.DesignReport{
		VulnerableModules: []string{},
		LeakagePath:       []string{},
	}

	var explanations []string
	for _, name := range res.Order {
		f, ok := findings[name]
		if !ok {
			continue
		}
		if f.Incomplete {
			report.Incomplete = true
			report.FailedModules = append(report.FailedModules, name)
		}
		if !propagated[name] {
			continue
		}
		report.VulnerableModules = append(report.VulnerableModules, name)
		for _, step := range f.LeakageSteps {
			report.LeakagePath = append(report.LeakagePath, fmt.Sprintf("%s: %s", name, step))
		}
		if report.LeakageType == "" && f.LeakageCategory != nil {
			report.LeakageType = *f.LeakageCategory
		}
		explanations = append(explanations, fmt.Sprintf("[%s] %s", name, f.Explanation))
	}

	report.IsVulnerable = len(propagated) > 0

	switch {
	case report.IsVulnerable:
		report.Explanation = fmt.Sprintf(
			"information leakage reaches the top module %q through %d module(s).\n%s",
			res.Top, len(report.VulnerableModules), strings.Join(explanations, "\n"))
	case report.Incomplete:
		report.Explanation = fmt.Sprintf(
			"no propagated leakage found, but the analysis is incomplete: oracle invocation failed for [%s]",
			strings.Join(report.FailedModules, ", "))
	default:
		report.Explanation = "no information leakage reaches an externally observable point of the design"
	}

	return report
}
