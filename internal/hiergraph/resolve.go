package hiergraph

import (
	"fmt"
	"strings"
)

// Resolution is the output of Resolve: a dependency-respecting analysis
// order (children strictly before every module that uses them), the direct
// dependency list per ordered module, and the modules that were dropped
// because the top module cannot reach them.
type Resolution struct {
	Top         string
	Order       []string
	Deps        map[string][]string
	Unreachable []string
}

// UnknownTopModuleError is returned when the requested top module is not
// part of the module set.
type UnknownTopModuleError struct {
	Top string
}

func (e *UnknownTopModuleError) Error() string {
	return fmt.Sprintf("hiergraph: top module %q not found in design", e.Top)
}

// CycleError is returned when the hierarchy is not a DAG. Hardware module
// hierarchies cannot be mutually recursive, so this is always fatal.
type CycleError struct {
	Stuck []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("hiergraph: dependency cycle involving [%s]", strings.Join(e.Stuck, ", "))
}

// Resolve computes the bottom-up analysis order for the subgraph reachable
// from top. Kahn's algorithm over the "child before parent" orientation;
// ties broken by first-seen declaration order so repeated runs on unchanged
// input produce identical orders.
func Resolve(g *Graph, top string) (Resolution, error) {
	if !g.Has(top) {
		return Resolution{}, &UnknownTopModuleError{Top: top}
	}

	// Restrict to modules reachable from the top.
	reach := map[string]bool{top: true}
	stack := []string{top}
	for len(stack) > 0 {
		m := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, c := range g.Children(m) {
			if !reach[c] {
				reach[c] = true
				stack = append(stack, c)
			}
		}
	}

	// Indegree in the reversed orientation: a module waits on its children.
	pending := make(map[string]int, len(reach))
	for m := range reach {
		pending[m] = len(g.Children(m))
	}

	order := make([]string, 0, len(reach))
	deps := make(map[string][]string, len(reach))
	done := make(map[string]bool, len(reach))

	for len(order) < len(reach) {
		// Deterministic pick: the first declared module whose children are
		// all finalized.
		next := ""
		for _, m := range g.order {
			if reach[m] && !done[m] && pending[m] == 0 {
				next = m
				break
			}
		}
		if next == "" {
			var stuck []string
			for _, m := range g.order {
				if reach[m] && !done[m] {
					stuck = append(stuck, m)
				}
			}
			return Resolution{}, &CycleError{Stuck: stuck}
		}
		done[next] = true
		order = append(order, next)
		deps[next] = g.Children(next)
		for _, p := range g.Parents(next) {
			if reach[p] {
				pending[p]--
			}
		}
	}

	var unreachable []string
	for _, m := range g.order {
		if !reach[m] {
			unreachable = append(unreachable, m)
		}
	}

	return Resolution{Top: top, Order: order, Deps: deps, Unreachable: unreachable}, nil
}

// Layers groups the analysis order into dependency layers: every module in
// layer i depends only on modules in layers < i. Modules within one layer
// share no edge and may be analyzed concurrently.
func Layers(res Resolution) [][]string {
	depth := make(map[string]int, len(res.Order))
	var layers [][]string
	for _, m := range res.Order {
		d := 0
		for _, c := range res.Deps[m] {
			if dc, ok := depth[c]; ok && dc+1 > d {
				d = dc + 1
			}
		}
		depth[m] = d
		for len(layers) <= d {
			layers = append(layers, nil)
		}
		layers[d] = append(layers[d], m)
	}
	return layers
}
