package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mashnoor/llm-ift/internal/config"
	"github.com/mashnoor/llm-ift/internal/engine"
	"github.com/mashnoor/llm-ift/internal/hiergraph"
	"github.com/mashnoor/llm-ift/internal/llm"
	"github.com/mashnoor/llm-ift/internal/netlist"
	"github.com/mashnoor/llm-ift/internal/oracle"
	"github.com/mashnoor/llm-ift/internal/resultstore"
	"github.com/mashnoor/llm-ift/internal/types"
)

// batchConfig mirrors the batch configuration file:
//
//	{
//	  "model": "gemini-2.5-flash",
//	  "designs": [
//	    {"folder": "benchmarks/aes_t100", "top_module": "top", "label": true}
//	  ]
//	}
type batchConfig struct {
	Model   string        `json:"model,omitempty"`
	Designs []batchDesign `json:"designs"`
}

type batchDesign struct {
	Folder string `json:"folder"`
	Top    string `json:"top_module"`
	Label  bool   `json:"label"`
}

func main() {
	configPath := flag.String("config", "", "path to the batch configuration JSON file")
	outDir := flag.String("out", "batch_results", "output directory")
	fake := flag.Bool("fake", false, "use the deterministic fake oracle (offline)")
	parallel := flag.Int("parallel", 0, "concurrent oracle invocations per design")
	flag.Parse()
	if *configPath == "" {
		log.Fatal("-config is required")
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatal(err)
	}

	data, err := os.ReadFile(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	var batch batchConfig
	if err := json.Unmarshal(data, &batch); err != nil {
		log.Fatal(err)
	}
	if len(batch.Designs) == 0 {
		log.Fatal("batch config lists no designs")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if batch.Model != "" {
		cfg.Model = batch.Model
	}
	if *parallel > 0 {
		cfg.Parallel = *parallel
	}

	ctx := context.Background()
	cli := buildClient(ctx, cfg, *fake)
	defer cli.Close()

	results := resultstore.NewFromEnv(filepath.Join(*outDir, "results.json"))
	defer results.Close()

	total, succeeded, correct := 0, 0, 0
	for i, d := range batch.Designs {
		log.Printf("[%d/%d] %s (top=%s, label=%v)", i+1, len(batch.Designs), d.Folder, d.Top, d.Label)
		total++
		rep, err := analyzeDesign(ctx, cli, cfg, *outDir, d)
		if err != nil {
			log.Printf("  ERROR: %v", err)
			continue
		}
		succeeded++
		ok := rep.IsVulnerable == d.Label
		if ok {
			correct++
		}
		status := "INCORRECT"
		if ok {
			status = "CORRECT"
		}
		log.Printf("  %s (actual=%v predicted=%v)", status, d.Label, rep.IsVulnerable)

		label := d.Label
		if err := results.Put(ctx, resultstore.Record{
			Design: sanitize(d.Folder),
			Top:    d.Top,
			Label:  &label,
			Report: rep,
		}); err != nil {
			log.Printf("  result store: %v", err)
		}
	}

	accuracy := 0.0
	if succeeded > 0 {
		accuracy = float64(correct) / float64(succeeded) * 100
	}
	summary := map[string]any{
		"total_designs":       total,
		"successful":          succeeded,
		"failed":              total - succeeded,
		"correct_predictions": correct,
		"accuracy":            fmt.Sprintf("%.2f%%", accuracy),
	}
	b, _ := json.MarshalIndent(summary, "", "  ")
	if err := os.WriteFile(filepath.Join(*outDir, "summary.json"), b, 0o644); err != nil {
		log.Printf("write summary: %v", err)
	}

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("BATCH ANALYSIS SUMMARY")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Total Designs: %d\n", total)
	fmt.Printf("Successful: %d\n", succeeded)
	fmt.Printf("Failed: %d\n", total-succeeded)
	fmt.Printf("Correct Predictions: %d/%d\n", correct, succeeded)
	fmt.Printf("Accuracy: %.2f%%\n", accuracy)
	fmt.Printf("\nResults saved to: %s/\n", *outDir)
}

func analyzeDesign(ctx context.Context, cli llm.LLMClient, cfg *config.Config, outDir string, d batchDesign) (types.DesignReport, error) {
	source, err := netlist.LoadDesign(d.Folder)
	if err != nil {
		return types.DesignReport{}, err
	}

	tmpFile := filepath.Join(outDir, "tmp_batch.v")
	if err := os.WriteFile(tmpFile, []byte(source), 0o644); err != nil {
		return types.DesignReport{}, err
	}
	defer os.Remove(tmpFile)

	extractor := &netlist.YosysExtractor{}
	hier, err := extractor.Extract(ctx, tmpFile, d.Top)
	if err != nil {
		return types.DesignReport{}, err
	}

	g := hiergraph.FromEdges(hier.Modules, hier.Edges)
	sources := make(map[string]string, len(hier.Modules))
	for _, m := range hier.Modules {
		if src, ok := netlist.Slice(source, m); ok {
			sources[m] = src
		}
	}

	eng := &engine.Engine{
		Oracle:   &oracle.ModuleAnalysis{LLM: cli, MaxAttempts: cfg.MaxAttempts},
		Init:     &oracle.HierInit{LLM: cli},
		Assets:   &oracle.AssetIdentification{LLM: cli},
		Parallel: cfg.Parallel,
		Cancel:   cancelPolicy(cfg.CancelPolicy),
	}
	rep, store, err := eng.Run(ctx, g, d.Top, sources)
	if err != nil {
		return types.DesignReport{}, err
	}

	out := map[string]any{
		"folder":   d.Folder,
		"top":      d.Top,
		"label":    d.Label,
		"report":   rep,
		"contexts": store.Snapshots(),
	}
	b, _ := json.MarshalIndent(out, "", "  ")
	name := sanitize(d.Folder) + ".json"
	if err := os.WriteFile(filepath.Join(outDir, name), b, 0o644); err != nil {
		log.Printf("  write %s: %v", name, err)
	}
	return rep, nil
}

func buildClient(ctx context.Context, cfg *config.Config, fake bool) llm.LLMClient {
	var base llm.LLMClient
	if fake {
		base = llm.NewFakeClient()
	} else {
		apiKey := os.Getenv("GEMINI_API_KEY")
		if apiKey == "" {
			log.Fatal("GEMINI_API_KEY is not set")
		}
		cli, err := llm.NewGeminiClient(ctx, apiKey, cfg.Model)
		if err != nil {
			log.Fatal(err)
		}
		base = cli
	}
	return llm.Wrap(base,
		llm.WithLogging(nil),
		llm.RateLimitFromEnv("IFT", "GEMINI"),
		llm.Retry(cfg.MaxAttempts, 500*time.Millisecond),
	)
}

func cancelPolicy(name string) engine.CancelPolicy {
	if strings.EqualFold(name, "fail") {
		return engine.CancelFail
	}
	return engine.CancelPartialReport
}

func sanitize(path string) string {
	s := strings.ReplaceAll(filepath.Clean(path), string(filepath.Separator), "_")
	return strings.TrimPrefix(s, "._")
}
