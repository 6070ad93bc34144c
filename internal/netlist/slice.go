package netlist

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var moduleDeclRe = regexp.MustCompile(`(?s)module\s+(\w+)\b.*?endmodule`)

// Slice extracts a single module's literal source text from combined
// Verilog code. The second return value is false when the module is absent.
func Slice(source, module string) (string, bool) {
	re, err := regexp.Compile(`(?s)module\s+` + regexp.QuoteMeta(module) + `\b.*?endmodule`)
	if err != nil {
		return "", false
	}
	m := re.FindString(source)
	if m == "" {
		return "", false
	}
	return m, true
}

// SliceAll returns every module definition found in the combined source,
// keyed by module name.
func SliceAll(source string) map[string]string {
	out := make(map[string]string)
	for _, m := range moduleDeclRe.FindAllStringSubmatch(source, -1) {
		out[m[1]] = m[0]
	}
	return out
}

// LoadDesign concatenates the Verilog sources of a design folder, skipping
// test-bench files by the test_/tb_/tbTOP prefix convention.
func LoadDesign(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("netlist: read design folder: %w", err)
	}
	var b strings.Builder
	for _, e := range entries {
		if e.IsDir() || isTestBenchName(e.Name()) {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".v" && ext != ".vhd" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return "", fmt.Errorf("netlist: read %s: %w", e.Name(), err)
		}
		b.Write(data)
		b.WriteByte('\n')
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("netlist: no verilog sources in %s", dir)
	}
	return b.String(), nil
}
