package netlist

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

const yosysOutput = `
-- Executing script --

2. Executing HIERARCHY pass (managing design hierarchy).

Top module:  \soc_top
Used module:     \cpu
Used module:         \alu
Used module:         \regfile
Used module:     \uart

End of script.
`

func TestParseHierarchy(t *testing.T) {
	h := ParseHierarchy(yosysOutput)
	wantModules := []string{"soc_top", "cpu", "alu", "regfile", "uart"}
	if !reflect.DeepEqual(h.Modules, wantModules) {
		t.Fatalf("Modules = %v, want %v", h.Modules, wantModules)
	}
	wantEdges := map[string][]string{
		"soc_top": {"cpu", "uart"},
		"cpu":     {"alu", "regfile"},
	}
	if !reflect.DeepEqual(h.Edges, wantEdges) {
		t.Fatalf("Edges = %v, want %v", h.Edges, wantEdges)
	}
}

func TestParseHierarchyDuplicateInstances(t *testing.T) {
	// Two instances of the same child must collapse to one edge.
	out := `
Top module:  \top
Used module:     \adder
Used module:     \adder
`
	h := ParseHierarchy(out)
	if !reflect.DeepEqual(h.Edges["top"], []string{"adder"}) {
		t.Fatalf("Edges[top] = %v, want [adder]", h.Edges["top"])
	}
}

func TestParseHierarchyEmpty(t *testing.T) {
	h := ParseHierarchy("nothing useful here")
	if len(h.Modules) != 0 || len(h.Edges) != 0 {
		t.Fatalf("expected empty hierarchy, got %+v", h)
	}
}

const combinedSource = `
module alu(input [7:0] a, b, output [7:0] y);
  assign y = a + b;
endmodule

module top(input clk);
  wire [7:0] x;
  alu u0(.a(x), .b(x), .y());
endmodule
`

func TestSlice(t *testing.T) {
	src, ok := Slice(combinedSource, "alu")
	if !ok {
		t.Fatalf("Slice(alu) not found")
	}
	if !strings.HasPrefix(src, "module alu") || !strings.HasSuffix(src, "endmodule") {
		t.Fatalf("sliced text malformed: %q", src)
	}
	if strings.Contains(src, "module top") {
		t.Fatalf("slice leaked the next module: %q", src)
	}

	if _, ok := Slice(combinedSource, "missing"); ok {
		t.Fatalf("Slice(missing) reported found")
	}

	// "alu" must not match "alu_ext".
	ext := "module alu_ext(); endmodule"
	if _, ok := Slice(ext, "alu"); ok {
		t.Fatalf("Slice matched a prefix of a longer module name")
	}
}

func TestSliceAll(t *testing.T) {
	all := SliceAll(combinedSource)
	if len(all) != 2 {
		t.Fatalf("SliceAll found %d modules, want 2", len(all))
	}
	for _, name := range []string{"alu", "top"} {
		if _, ok := all[name]; !ok {
			t.Fatalf("SliceAll missing %s", name)
		}
	}
}

func TestLoadDesign(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"core.v":      "module core(); endmodule\n",
		"alu.v":       "module alu(); endmodule\n",
		"tb_core.v":   "module tb_core(); endmodule\n",
		"test_alu.v":  "module test_alu(); endmodule\n",
		"notes.txt":   "not verilog",
		"ctrl.vhd":    "entity ctrl is end;\n",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	src, err := LoadDesign(dir)
	if err != nil {
		t.Fatalf("LoadDesign() error = %v", err)
	}
	for _, want := range []string{"module core", "module alu", "entity ctrl"} {
		if !strings.Contains(src, want) {
			t.Fatalf("combined source missing %q", want)
		}
	}
	for _, banned := range []string{"tb_core", "test_alu", "not verilog"} {
		if strings.Contains(src, banned) {
			t.Fatalf("combined source includes %q", banned)
		}
	}
}

func TestLoadDesignEmpty(t *testing.T) {
	if _, err := LoadDesign(t.TempDir()); err == nil {
		t.Fatalf("expected error for empty folder")
	}
}
