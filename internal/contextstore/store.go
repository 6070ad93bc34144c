package contextstore

import (
	"fmt"
	"sync"

	"github.com/mashnoor/llm-ift/internal/types"
)

// AlreadyFinalizedError reports a second Finalize call for the same module
// in one run. This is an orchestration bug, never expected in correct
// operation.
type AlreadyFinalizedError struct {
	Module string
}

func (e *AlreadyFinalizedError) Error() string {
	return fmt.Sprintf("contextstore: module %q already finalized", e.Module)
}

// OrderViolationError reports a context build that would expose a finding
// not yet finalized, which violates the topological discipline.
type OrderViolationError struct {
	Module     string
	Dependency string
}

func (e *OrderViolationError) Error() string {
	return fmt.Sprintf("contextstore: building context for %q before dependency %q is finalized", e.Module, e.Dependency)
}

type moduleEntry struct {
	source    string
	deps      []string
	ancestors []string
	assets    []string

	finding   types.ModuleFinding
	finalized bool
	context   *types.ModuleContext
}

// Store holds the accumulated analysis context per module. Append-only:
// each module's finding is written exactly once and is read-only
// afterwards, so concurrent reads after finalize need no coordination
// beyond the internal RWMutex.
type Store struct {
	mu           sync.RWMutex
	modules      map[string]*moduleEntry
	designAssets []string
}

func New() *Store {
	return &Store{modules: make(map[string]*moduleEntry)}
}

// AddModule registers a module's static analysis inputs: its source slice,
// direct dependencies, and ancestor chain. Must be called before Finalize
// or BuildContext for that module.
func (s *Store) AddModule(name, source string, deps, ancestors []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.modules[name]; ok {
		return
	}
	s.modules[name] = &moduleEntry{
		source:    source,
		deps:      append([]string(nil), deps...),
		ancestors: append([]string(nil), ancestors...),
	}
}

// SetDesignAssets records the design-level sensitive assets identified
// before the module loop.
func (s *Store) SetDesignAssets(assets []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.designAssets = append([]string(nil), assets...)
}

// SetModuleAssets records the assets statically identified in one module's
// own source, used for ancestor provenance summaries.
func (s *Store) SetModuleAssets(name string, assets []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.modules[name]; ok {
		e.assets = append([]string(nil), assets...)
	}
}

// Finalize writes a module's validated finding exactly once.
func (s *Store) Finalize(name string, finding types.ModuleFinding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.modules[name]
	if !ok {
		return fmt.Errorf("contextstore: unknown module %q", name)
	}
	if e.finalized {
		return &AlreadyFinalizedError{Module: name}
	}
	finding.Module = name
	e.finding = finding
	e.finalized = true
	return nil
}

// Finding returns a module's finalized finding.
func (s *Store) Finding(name string) (types.ModuleFinding, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.modules[name]
	if !ok || !e.finalized {
		return types.ModuleFinding{}, false
	}
	return e.finding, true
}

// Findings returns all finalized findings keyed by module name.
func (s *Store) Findings() map[string]types.ModuleFinding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]types.ModuleFinding, len(s.modules))
	for name, e := range s.modules {
		if e.finalized {
			out[name] = e.finding
		}
	}
	return out
}

// BuildContext composes the oracle payload for a module: its own source,
// the full findings of its direct dependencies (which must already be
// finalized), and the asset-provenance summary for its branch. Once built,
// a context is cached and never retracted.
func (s *Store) BuildContext(name string) (types.ModuleContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.modules[name]
	if !ok {
		return types.ModuleContext{}, fmt.Errorf("contextstore: unknown module %q", name)
	}
	if e.context != nil {
		return *e.context, nil
	}

	depFindings := make([]types.ModuleFinding, 0, len(e.deps))
	for _, dep := range e.deps {
		de, ok := s.modules[dep]
		if !ok || !de.finalized {
			return types.ModuleContext{}, &OrderViolationError{Module: name, Dependency: dep}
		}
		depFindings = append(depFindings, de.finding)
	}

	mc := types.ModuleContext{
		Module:       name,
		Source:       e.source,
		Dependencies: append([]string(nil), e.deps...),
		DepFindings:  depFindings,
		AncestorPath: append([]string(nil), e.ancestors...),
		AssetSummary: s.assetSummaryLocked(e),
	}
	e.context = &mc
	return mc, nil
}

// assetSummaryLocked condenses what is statically and causally known about
// sensitive assets entering this module's branch: design-level assets,
// assets held by ancestors (so a module gaining access to an asset it was
// not given can be flagged), and asset flows reported by already-finalized
// dependencies.
func (s *Store) assetSummaryLocked(e *moduleEntry) []string {
	summary := []string{}
	for _, a := range s.designAssets {
		summary = append(summary, fmt.Sprintf("design asset %q is tracked through this hierarchy", a))
	}
	for _, anc := range e.ancestors {
		ae, ok := s.modules[anc]
		if !ok {
			continue
		}
		for _, a := range ae.assets {
			summary = append(summary, fmt.Sprintf("ancestor module %q holds asset %q; it enters this branch", anc, a))
		}
	}
	for _, dep := range e.deps {
		de, ok := s.modules[dep]
		if !ok || !de.finalized {
			continue
		}
		for _, flow := range de.finding.AssetFlows {
			summary = append(summary, fmt.Sprintf("dependency %q reported: %s", dep, flow))
		}
	}
	if len(summary) == 0 {
		summary = append(summary, "no sensitive assets are known to enter this module")
	}
	return summary
}

// Snapshot is the per-module debug record exported for external inspection.
type Snapshot struct {
	Context *types.ModuleContext `json:"context,omitempty"`
	Finding *types.ModuleFinding `json:"finding,omitempty"`
}

// Snapshots returns the built contexts and finalized findings keyed by
// module name. Write-only from the pipeline's perspective.
func (s *Store) Snapshots() map[string]Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Snapshot, len(s.modules))
	for name, e := range s.modules {
		var snap Snapshot
		if e.context != nil {
			c := *e.context
			snap.Context = &c
		}
		if e.finalized {
			f := e.finding
			snap.Finding = &f
		}
		if snap.Context != nil || snap.Finding != nil {
			out[name] = snap
		}
	}
	return out
}
