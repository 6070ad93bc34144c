package netlist

import (
	"context"
	"strings"
)

// Hierarchy is the raw extraction result: module names in discovery order
// and parent→child "uses" edges. Test-bench modules are already excluded.
type Hierarchy struct {
	Modules []string
	Edges   map[string][]string
}

// Extractor converts raw design source into a module hierarchy.
type Extractor interface {
	Extract(ctx context.Context, verilogFile, top string) (Hierarchy, error)
}

// ParseHierarchy parses the indented hierarchy section of a Yosys
// `hierarchy -top` run. Lines look like:
//
//	Top module:  \top
//	Used module:     \mid
//	Used module:         \leaf
//
// Indentation expresses nesting; a blank line ends the section.
func ParseHierarchy(output string) Hierarchy {
	h := Hierarchy{Edges: make(map[string][]string)}
	seen := make(map[string]bool)

	addModule := func(name string) {
		if !seen[name] {
			seen[name] = true
			h.Modules = append(h.Modules, name)
		}
	}
	addEdge := func(parent, child string) {
		for _, c := range h.Edges[parent] {
			if c == child {
				return
			}
		}
		h.Edges[parent] = append(h.Edges[parent], child)
	}

	type frame struct {
		name   string
		indent int
	}
	var stack []frame
	started := false

	for _, line := range strings.Split(output, "\n") {
		switch {
		case strings.Contains(line, "Top module:"):
			rest := strings.ReplaceAll(strings.SplitN(line, "Top module:", 2)[1], "\\", "")
			name := strings.TrimSpace(rest)
			if name == "" {
				continue
			}
			addModule(name)
			stack = []frame{{name: name, indent: leadingSpaces(rest)}}
			started = true

		case started && strings.Contains(line, "Used module:"):
			rest := strings.ReplaceAll(strings.SplitN(line, "Used module:", 2)[1], "\\", "")
			name := strings.TrimSpace(rest)
			if name == "" {
				continue
			}
			indent := leadingSpaces(rest)
			for len(stack) > 1 && stack[len(stack)-1].indent >= indent {
				stack = stack[:len(stack)-1]
			}
			addModule(name)
			addEdge(stack[len(stack)-1].name, name)
			stack = append(stack, frame{name: name, indent: indent})

		case started && strings.TrimSpace(line) == "":
			started = false
		}
	}

	return h
}

func leadingSpaces(s string) int {
	n := 0
	for _, r := range s {
		if r != ' ' {
			break
		}
		n++
	}
	return n
}
