package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mashnoor/llm-ift/internal/contextstore"
	"github.com/mashnoor/llm-ift/internal/hiergraph"
	"github.com/mashnoor/llm-ift/internal/oracle"
	"github.com/mashnoor/llm-ift/internal/report"
	"github.com/mashnoor/llm-ift/internal/types"
)

// State is the run-level position in the analysis state machine.
type State int

const (
	StateNotStarted State = iota
	StateResolving
	StateAnalyzing
	StateAggregating
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateResolving:
		return "resolving"
	case StateAnalyzing:
		return "analyzing"
	case StateAggregating:
		return "aggregating"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// CancelPolicy selects the run-boundary behavior when the context is
// canceled mid-analysis.
type CancelPolicy int

const (
	// CancelPartialReport finalizes unprocessed modules to the fail-safe
	// default so aggregation still covers whatever completed.
	CancelPartialReport CancelPolicy = iota
	// CancelFail marks the whole run failed.
	CancelFail
)

// Event is a progress notification for external observers.
type Event struct {
	Type   string    `json:"type"` // run_started, module_contextualizing, module_invoking, module_recorded, run_done, run_failed
	Module string    `json:"module,omitempty"`
	Error  string    `json:"error,omitempty"`
	Time   time.Time `json:"time"`
}

// Emitter consumes engine progress events. Implementations must not block.
type Emitter interface {
	Emit(ev Event)
}

// Invoker is the oracle contract the engine drives per module.
type Invoker interface {
	Run(ctx context.Context, mc types.ModuleContext) (types.ModuleFinding, error)
}

// Engine drives the hierarchical analysis: resolve the dependency graph,
// analyze modules in topological order (independent modules concurrently up
// to Parallel), record findings in the context store, and aggregate the
// design report. Per-module oracle failures degrade to fail-safe findings;
// only structural graph errors fail the run.
type Engine struct {
	Oracle   Invoker
	Init     *oracle.HierInit            // optional: primes the oracle with the design structure
	Assets   *oracle.AssetIdentification // optional: seeds provenance summaries
	Summary  *oracle.DesignSummary       // optional: narrative appended to the report explanation
	Parallel int
	Cancel   CancelPolicy
	Emitter  Emitter

	mu    sync.Mutex
	state State
}

// State returns the engine's current run state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

func (e *Engine) emit(ev Event) {
	if e.Emitter != nil {
		ev.Time = time.Now()
		e.Emitter.Emit(ev)
	}
}

// Run analyzes the design rooted at top. sources maps module names to their
// literal source slices. The returned store exposes per-module snapshots
// for debugging.
func (e *Engine) Run(ctx context.Context, g *hiergraph.Graph, top string, sources map[string]string) (types.DesignReport, *contextstore.Store, error) {
	if e.Oracle == nil {
		return types.DesignReport{}, nil, fmt.Errorf("engine: oracle is nil")
	}
	e.setState(StateResolving)
	e.emit(Event{Type: "run_started", Module: top})

	res, err := hiergraph.Resolve(g, top)
	if err != nil {
		e.setState(StateFailed)
		e.emit(Event{Type: "run_failed", Error: err.Error()})
		return types.DesignReport{}, nil, err
	}

	store := contextstore.New()
	for _, name := range res.Order {
		store.AddModule(name, sources[name], res.Deps[name], g.Ancestors(name))
	}

	if e.Init != nil {
		// Priming is best-effort: the per-module prompts are self-contained.
		_ = e.Init.Run(ctx, res.Order, res.Deps)
	}
	if e.Assets != nil {
		for _, name := range res.Order {
			if src := sources[name]; src != "" {
				if assets, err := e.Assets.Run(ctx, src); err == nil {
					store.SetModuleAssets(name, assets)
				}
			}
		}
	}

	e.setState(StateAnalyzing)
	if err := e.analyze(ctx, res, store); err != nil {
		e.setState(StateFailed)
		e.emit(Event{Type: "run_failed", Error: err.Error()})
		return types.DesignReport{}, store, err
	}

	e.setState(StateAggregating)
	findings := store.Findings()
	rep := report.Aggregate(res, findings)
	if e.Summary != nil {
		// Narrative only; the deterministic verdict above stands regardless.
		var acc []string
		for _, m := range res.Order {
			if f, ok := findings[m]; ok {
				acc = append(acc, fmt.Sprintf("[%s] %s", m, f.Explanation))
			}
		}
		if s, err := e.Summary.Run(ctx, strings.Join(acc, "\n"), res.Order, res.Deps); err == nil && s != "" {
			rep.Explanation += "\n\nSummary: " + s
		}
	}
	e.setState(StateDone)
	e.emit(Event{Type: "run_done"})
	return rep, store, nil
}

type completion struct {
	module  string
	finding types.ModuleFinding
	err     error
}

// analyze dispatches modules in dependency order. A module never starts
// before all its direct dependencies are finalized; modules with no edge
// between them run concurrently up to Parallel.
func (e *Engine) analyze(ctx context.Context, res hiergraph.Resolution, store *contextstore.Store) error {
	parallel := e.Parallel
	if parallel <= 0 {
		parallel = 1
	}

	pending := make(map[string]int, len(res.Order))
	parents := make(map[string][]string, len(res.Order))
	for _, m := range res.Order {
		pending[m] = len(res.Deps[m])
		for _, dep := range res.Deps[m] {
			parents[dep] = append(parents[dep], m)
		}
	}

	launched := make(map[string]bool, len(res.Order))
	finalized := make(map[string]bool, len(res.Order))
	completionCh := make(chan completion, len(res.Order))
	inflight := 0
	canceled := false

	launch := func(name string) error {
		e.emit(Event{Type: "module_contextualizing", Module: name})
		mc, err := store.BuildContext(name)
		if err != nil {
			// Ordering violations are orchestration bugs; always fatal.
			return err
		}
		launched[name] = true
		inflight++
		e.emit(Event{Type: "module_invoking", Module: name})
		go func() {
			finding, err := e.Oracle.Run(ctx, mc)
			completionCh <- completion{module: name, finding: finding, err: err}
		}()
		return nil
	}

	// Launch every ready module, in analysis order, up to the limit.
	tryLaunch := func() error {
		for _, m := range res.Order {
			if inflight >= parallel {
				return nil
			}
			if !launched[m] && pending[m] == 0 {
				if err := launch(m); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := tryLaunch(); err != nil {
		return err
	}

	for len(finalized) < len(res.Order) {
		if inflight == 0 {
			if canceled {
				break
			}
			return fmt.Errorf("engine: deadlock, nothing inflight and nothing ready")
		}
		select {
		case <-ctx.Done():
			if e.Cancel == CancelFail {
				return ctx.Err()
			}
			// Partial-report policy: stop launching, let in-flight calls
			// drain, fail-safe everything else.
			canceled = true
			c := <-completionCh
			inflight--
			if err := e.record(c, store, finalized, pending, parents); err != nil {
				return err
			}
		case c := <-completionCh:
			inflight--
			if err := e.record(c, store, finalized, pending, parents); err != nil {
				return err
			}
			if !canceled {
				if err := tryLaunch(); err != nil {
					return err
				}
			}
		}
	}

	if canceled {
		for _, m := range res.Order {
			if !finalized[m] {
				if err := store.Finalize(m, oracle.Failsafe(m, ctx.Err())); err != nil {
					return err
				}
				finalized[m] = true
			}
		}
	}
	return nil
}

func (e *Engine) record(c completion, store *contextstore.Store, finalized map[string]bool, pending map[string]int, parents map[string][]string) error {
	finding := c.finding
	if c.err != nil {
		// The oracle pass degrades internally; an error here is the
		// context being canceled mid-call. Fail-safe the module so the
		// partial report still covers it.
		finding = oracle.Failsafe(c.module, c.err)
	}
	if err := store.Finalize(c.module, finding); err != nil {
		return err
	}
	finalized[c.module] = true
	e.emit(Event{Type: "module_recorded", Module: c.module})
	for _, p := range parents[c.module] {
		pending[p]--
	}
	return nil
}
