package types

// Oracle exchange ------------------------------------------------------------------

// ModuleContext is the payload handed to the oracle for one module: the
// module's own source, the finalized findings of its direct dependencies,
// and a condensed asset-provenance summary for its branch of the hierarchy.
// Declared input/output signal names are not modeled as a separate
// attribute: they ride opaquely inside Source, and only the oracle assigns
// them meaning.
type ModuleContext struct {
	Module       string          `json:"module"`
	Source       string          `json:"source"`
	Dependencies []string        `json:"dependencies"`
	DepFindings  []ModuleFinding `json:"dependency_findings"`
	AncestorPath []string        `json:"ancestor_path"`
	AssetSummary []string        `json:"asset_summary"`
}

// ModuleFinding is the validated, schema-conformant oracle verdict for one
// module. Exactly one finding exists per module per run.
type ModuleFinding struct {
	Module          string   `json:"module"`
	IsVulnerable    bool     `json:"is_vulnerable"`
	InvolvedSignals []string `json:"involved_signals_or_submodules"`
	LeakageSteps    []string `json:"leakage_steps"`
	LeakageCategory *string  `json:"leakage_category"`
	Explanation     string   `json:"explanation"`

	// AssetFlows records "asset X flows to signal Y" statements the oracle
	// reported, consumed by descendant-context provenance summaries.
	AssetFlows []string `json:"asset_flows,omitempty"`

	// Incomplete marks a fail-safe finding synthesized after the oracle
	// retry budget was exhausted. Never set by a real oracle response.
	Incomplete bool `json:"incomplete,omitempty"`
}

// Final artifact -------------------------------------------------------------------

// DesignReport is the design-level verdict aggregated over all module
// findings reachable in the analysis order.
type DesignReport struct {
	IsVulnerable      bool     `json:"is_vulnerable"`
	VulnerableModules []string `json:"vulnerable_modules"`
	LeakagePath       []string `json:"leakage_path"`
	LeakageType       string   `json:"leakage_type,omitempty"`
	Explanation       string   `json:"explanation"`

	// Incomplete distinguishes "provably clean" from "clean because the
	// analysis of some modules failed".
	Incomplete    bool     `json:"incomplete,omitempty"`
	FailedModules []string `json:"failed_modules,omitempty"`
}
