package report

import (
	"reflect"
	"strings"
	"testing"

	"github.com/mashnoor/llm-ift/internal/hiergraph"
	"github.com/mashnoor/llm-ift/internal/types"
)

func chainResolution() hiergraph.Resolution {
	// top uses mid, mid uses leaf.
	g := hiergraph.New()
	g.AddEdge("top", "mid")
	g.AddEdge("mid", "leaf")
	res, err := hiergraph.Resolve(g, "top")
	if err != nil {
		panic(err)
	}
	return res
}

func vulnerable(module, step string) types.ModuleFinding {
	cat := "direct disclosure"
	return types.ModuleFinding{
		Module:          module,
		IsVulnerable:    true,
		LeakageSteps:    []string{step},
		LeakageCategory: &cat,
		Explanation:     module + " leaks",
	}
}

func clean(module string) types.ModuleFinding {
	return types.ModuleFinding{
		Module:       module,
		Explanation:  module + " is clean",
		LeakageSteps: []string{},
	}
}

func TestAggregatePropagatedChain(t *testing.T) {
	res := chainResolution()
	findings := map[string]types.ModuleFinding{
		"leaf": vulnerable("leaf", "key bits latched into shared register"),
		"mid":  vulnerable("mid", "shared register forwarded to parent port"),
		"top":  vulnerable("top", "parent port wired to external debug pin"),
	}
	rep := Aggregate(res, findings)
	if !rep.IsVulnerable {
		t.Fatalf("expected vulnerable design")
	}
	if !reflect.DeepEqual(rep.VulnerableModules, []string{"leaf", "mid", "top"}) {
		t.Fatalf("VulnerableModules = %v", rep.VulnerableModules)
	}
	if len(rep.LeakagePath) != 3 || !strings.HasPrefix(rep.LeakagePath[0], "leaf: ") {
		t.Fatalf("LeakagePath = %v", rep.LeakagePath)
	}
	if rep.LeakageType != "direct disclosure" {
		t.Fatalf("LeakageType = %q", rep.LeakageType)
	}
}

func TestAggregateChainReachingCleanTop(t *testing.T) {
	// A fully vulnerable chain ending at a direct dependency of the top
	// taints the design even when the top's own finding is clean: the top
	// is the observable destination, not a required contributor.
	g := hiergraph.New()
	g.AddEdge("top", "B")
	g.AddEdge("B", "A")
	res, err := hiergraph.Resolve(g, "top")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	findings := map[string]types.ModuleFinding{
		"A":   vulnerable("A", "leak"),
		"B":   vulnerable("B", "forward"),
		"top": clean("top"),
	}
	rep := Aggregate(res, findings)
	if !rep.IsVulnerable {
		t.Fatalf("expected vulnerable design: %+v", rep)
	}
	if !reflect.DeepEqual(rep.VulnerableModules, []string{"A", "B"}) {
		t.Fatalf("VulnerableModules = %v", rep.VulnerableModules)
	}
	if !reflect.DeepEqual(rep.LeakagePath, []string{"A: leak", "B: forward"}) {
		t.Fatalf("LeakagePath = %v", rep.LeakagePath)
	}
}

func TestAggregateChainReachingTopWithoutTopFinding(t *testing.T) {
	g := hiergraph.New()
	g.AddEdge("top", "B")
	g.AddEdge("B", "A")
	res, err := hiergraph.Resolve(g, "top")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	findings := map[string]types.ModuleFinding{
		"A": vulnerable("A", "leak"),
		"B": vulnerable("B", "forward"),
	}
	rep := Aggregate(res, findings)
	if !rep.IsVulnerable {
		t.Fatalf("expected vulnerable design: %+v", rep)
	}
	if !reflect.DeepEqual(rep.LeakagePath, []string{"A: leak", "B: forward"}) {
		t.Fatalf("LeakagePath = %v", rep.LeakagePath)
	}
}

func TestAggregateContainedLeak(t *testing.T) {
	// The leaf leaks internally but mid does not pass it on: the design as a
	// whole stays clean.
	res := chainResolution()
	findings := map[string]types.ModuleFinding{
		"leaf": vulnerable("leaf", "key visible on internal scratch wire"),
		"mid":  clean("mid"),
		"top":  clean("top"),
	}
	rep := Aggregate(res, findings)
	if rep.IsVulnerable {
		t.Fatalf("contained leak must not taint the design: %+v", rep)
	}
	if len(rep.VulnerableModules) != 0 {
		t.Fatalf("VulnerableModules = %v", rep.VulnerableModules)
	}
}

func TestAggregateBrokenChain(t *testing.T) {
	// Vulnerable leaf and vulnerable top with a clean module between them:
	// the leaf's leak stays contained; only the top's own leak counts.
	res := chainResolution()
	findings := map[string]types.ModuleFinding{
		"leaf": vulnerable("leaf", "leak at leaf"),
		"mid":  clean("mid"),
		"top":  vulnerable("top", "unrelated top leak"),
	}
	rep := Aggregate(res, findings)
	if !rep.IsVulnerable {
		t.Fatalf("top itself leaking means the design is vulnerable")
	}
	// Only top contributes to the propagated front; leaf's leak is contained.
	if !reflect.DeepEqual(rep.VulnerableModules, []string{"top"}) {
		t.Fatalf("VulnerableModules = %v", rep.VulnerableModules)
	}
}

func TestAggregateVulnerableWithoutSteps(t *testing.T) {
	// is_vulnerable with empty leakage_steps is not a usable contribution.
	res := chainResolution()
	f := types.ModuleFinding{Module: "top", IsVulnerable: true, LeakageSteps: []string{}}
	rep := Aggregate(res, map[string]types.ModuleFinding{
		"leaf": clean("leaf"),
		"mid":  clean("mid"),
		"top":  f,
	})
	if rep.IsVulnerable {
		t.Fatalf("vulnerable verdict without steps must not count: %+v", rep)
	}
}

func TestAggregateIncomplete(t *testing.T) {
	res := chainResolution()
	failed := types.ModuleFinding{
		Module:      "mid",
		Explanation: "oracle invocation failed: timeout",
		Incomplete:  true,
	}
	rep := Aggregate(res, map[string]types.ModuleFinding{
		"leaf": clean("leaf"),
		"mid":  failed,
		"top":  clean("top"),
	})
	if rep.IsVulnerable {
		t.Fatalf("fail-safe finding must not make the design vulnerable")
	}
	if !rep.Incomplete {
		t.Fatalf("report must be marked incomplete")
	}
	if !reflect.DeepEqual(rep.FailedModules, []string{"mid"}) {
		t.Fatalf("FailedModules = %v", rep.FailedModules)
	}
	if !strings.Contains(rep.Explanation, "incomplete") {
		t.Fatalf("Explanation = %q", rep.Explanation)
	}
}

func TestAggregateAllClean(t *testing.T) {
	res := chainResolution()
	rep := Aggregate(res, map[string]types.ModuleFinding{
		"leaf": clean("leaf"),
		"mid":  clean("mid"),
		"top":  clean("top"),
	})
	if rep.IsVulnerable || rep.Incomplete {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if rep.Explanation == "" {
		t.Fatalf("clean report needs an explanation")
	}
}
