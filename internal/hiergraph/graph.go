package hiergraph

import "strings"

// Graph models a module hierarchy: unique module names and directed
// parent→child "uses" edges. Insertion order is preserved so that repeated
// runs on unchanged input resolve to the same analysis order.
type Graph struct {
	order []string
	index map[string]int
	edges map[string][]string
}

func New() *Graph {
	return &Graph{index: make(map[string]int), edges: make(map[string][]string)}
}

// FromEdges builds a graph from a module list (first-seen order) and a
// parent→children adjacency map. Modules referenced only by edges are
// registered after the listed ones, in parent iteration order.
func FromEdges(modules []string, edges map[string][]string) *Graph {
	g := New()
	for _, m := range modules {
		g.AddModule(m)
	}
	for _, parent := range g.Modules() {
		for _, child := range edges[parent] {
			g.AddEdge(parent, child)
		}
	}
	return g
}

// AddModule registers a module name. Duplicates are ignored.
func (g *Graph) AddModule(name string) {
	if _, ok := g.index[name]; ok {
		return
	}
	g.index[name] = len(g.order)
	g.order = append(g.order, name)
}

// AddEdge records "parent uses child", registering both endpoints.
// Duplicate edges are collapsed.
func (g *Graph) AddEdge(parent, child string) {
	g.AddModule(parent)
	g.AddModule(child)
	for _, c := range g.edges[parent] {
		if c == child {
			return
		}
	}
	g.edges[parent] = append(g.edges[parent], child)
}

func (g *Graph) Has(name string) bool {
	_, ok := g.index[name]
	return ok
}

// Modules returns all module names in first-seen order.
func (g *Graph) Modules() []string {
	return append([]string(nil), g.order...)
}

// Children returns the direct dependencies of a module, in edge order.
func (g *Graph) Children(name string) []string {
	return append([]string(nil), g.edges[name]...)
}

// Parents returns the modules that use name, in first-seen order.
func (g *Graph) Parents(name string) []string {
	var out []string
	for _, m := range g.order {
		for _, c := range g.edges[m] {
			if c == name {
				out = append(out, m)
				break
			}
		}
	}
	return out
}

// Ancestors returns the chain of modules above name in the hierarchy,
// outermost first. With multiple instantiation sites all distinct ancestors
// are included once, ordered by first-seen declaration order.
func (g *Graph) Ancestors(name string) []string {
	seen := map[string]bool{name: true}
	frontier := []string{name}
	anc := map[string]bool{}
	for len(frontier) > 0 {
		next := frontier[:0:0]
		for _, m := range frontier {
			for _, p := range g.Parents(m) {
				if !seen[p] {
					seen[p] = true
					anc[p] = true
					next = append(next, p)
				}
			}
		}
		frontier = next
	}
	var out []string
	for _, m := range g.order {
		if anc[m] {
			out = append(out, m)
		}
	}
	return out
}

// testBenchPrefixes matches the extraction convention for test harness
// modules, which never take part in the analysis.
var testBenchPrefixes = []string{"test_", "tb_", "tbTOP"}

// IsTestBench reports whether a module name looks like a test harness.
func IsTestBench(name string) bool {
	for _, p := range testBenchPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// FilterTestBench drops test-bench modules (and edges touching them) before
// graph construction.
func FilterTestBench(modules []string, edges map[string][]string) ([]string, map[string][]string) {
	keep := make([]string, 0, len(modules))
	for _, m := range modules {
		if !IsTestBench(m) {
			keep = append(keep, m)
		}
	}
	outEdges := make(map[string][]string, len(edges))
	for parent, children := range edges {
		if IsTestBench(parent) {
			continue
		}
		var kept []string
		for _, c := range children {
			if !IsTestBench(c) {
				kept = append(kept, c)
			}
		}
		if len(kept) > 0 {
			outEdges[parent] = kept
		}
	}
	return keep, outEdges
}
