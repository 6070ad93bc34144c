package netlist

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// YosysExtractor shells out to Yosys and parses its hierarchy report.
type YosysExtractor struct {
	// Bin is the yosys executable; "yosys" on PATH when empty.
	Bin string
}

func (y *YosysExtractor) Extract(ctx context.Context, verilogFile, top string) (Hierarchy, error) {
	bin := y.Bin
	if bin == "" {
		bin = "yosys"
	}
	script := fmt.Sprintf("read_verilog %s; hierarchy -top %s -auto-top", verilogFile, top)
	cmd := exec.CommandContext(ctx, bin, "-p", script)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return Hierarchy{}, fmt.Errorf("netlist: yosys failed: %s", msg)
	}

	h := ParseHierarchy(stdout.String())
	if len(h.Modules) == 0 {
		return Hierarchy{}, fmt.Errorf("netlist: no hierarchy found for top %q", top)
	}
	return filterTestBench(h), nil
}

// filterTestBench drops test-harness modules before the hierarchy is handed
// to the resolver. Prefix convention: test_, tb_, tbTOP.
func filterTestBench(h Hierarchy) Hierarchy {
	out := Hierarchy{Edges: make(map[string][]string)}
	for _, m := range h.Modules {
		if !isTestBenchName(m) {
			out.Modules = append(out.Modules, m)
		}
	}
	for parent, children := range h.Edges {
		if isTestBenchName(parent) {
			continue
		}
		for _, c := range children {
			if !isTestBenchName(c) {
				out.Edges[parent] = append(out.Edges[parent], c)
			}
		}
	}
	return out
}

func isTestBenchName(name string) bool {
	return strings.HasPrefix(name, "test_") ||
		strings.HasPrefix(name, "tb_") ||
		strings.HasPrefix(name, "tbTOP")
}
