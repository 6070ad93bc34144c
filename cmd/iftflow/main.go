package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mashnoor/llm-ift/internal/artifactstore"
	"github.com/mashnoor/llm-ift/internal/config"
	"github.com/mashnoor/llm-ift/internal/engine"
	"github.com/mashnoor/llm-ift/internal/hiergraph"
	"github.com/mashnoor/llm-ift/internal/llm"
	"github.com/mashnoor/llm-ift/internal/netlist"
	"github.com/mashnoor/llm-ift/internal/oracle"
	"github.com/mashnoor/llm-ift/internal/resultstore"
	"github.com/mashnoor/llm-ift/internal/watch"
)

func main() {
	design := flag.String("design", "", "path to the folder containing the Verilog design")
	top := flag.String("top", "", "name of the top module")
	model := flag.String("model", "", "Gemini model id (overrides IFT_MODEL)")
	outDir := flag.String("out", "out", "output directory")
	label := flag.String("label", "", "ground-truth vulnerability label (true/false)")
	parallel := flag.Int("parallel", 0, "concurrent oracle invocations (overrides IFT_PARALLEL)")
	fake := flag.Bool("fake", false, "use the deterministic fake oracle (offline)")
	watchAddr := flag.String("watch", "", "serve run progress over websocket at this address (e.g. :8089)")
	saveContexts := flag.Bool("save-contexts", true, "write per-module context/finding snapshots")
	timeout := flag.Duration("timeout", 0, "overall run timeout (0 = none)")
	flag.Parse()
	if *design == "" || *top == "" {
		log.Fatal("-design and -top are required")
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatal(err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if *model != "" {
		cfg.Model = *model
	}
	if *parallel > 0 {
		cfg.Parallel = *parallel
	}

	ctx := context.Background()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	cli := buildClient(ctx, cfg, *fake)
	defer cli.Close()

	source, err := netlist.LoadDesign(*design)
	if err != nil {
		log.Fatal(err)
	}

	// Yosys reads from a file; hand it the combined design.
	tmpFile := filepath.Join(*outDir, "combined_design.v")
	if err := os.WriteFile(tmpFile, []byte(source), 0o644); err != nil {
		log.Fatal(err)
	}
	defer os.Remove(tmpFile)

	extractor := &netlist.YosysExtractor{}
	hier, err := extractor.Extract(ctx, tmpFile, *top)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("extracted %d modules from %s", len(hier.Modules), *design)

	g := hiergraph.FromEdges(hier.Modules, hier.Edges)
	sources := make(map[string]string, len(hier.Modules))
	for _, m := range hier.Modules {
		src, ok := netlist.Slice(source, m)
		if !ok {
			log.Printf("warning: no source for module %q", m)
			continue
		}
		sources[m] = src
	}

	if res, err := hiergraph.Resolve(g, *top); err == nil {
		for i, layer := range hiergraph.Layers(res) {
			log.Printf("layer %d: %s", i, strings.Join(layer, ", "))
		}
	}

	eng := &engine.Engine{
		Oracle:   &oracle.ModuleAnalysis{LLM: cli, MaxAttempts: cfg.MaxAttempts},
		Init:     &oracle.HierInit{LLM: cli},
		Assets:   &oracle.AssetIdentification{LLM: cli},
		Summary:  &oracle.DesignSummary{LLM: cli},
		Parallel: cfg.Parallel,
		Cancel:   cancelPolicy(cfg.CancelPolicy),
	}

	if *watchAddr != "" {
		hub := watch.NewHub()
		eng.Emitter = hub
		mux := http.NewServeMux()
		mux.HandleFunc("/watch", hub.Handler())
		go func() {
			log.Printf("watch endpoint on ws://%s/watch", *watchAddr)
			if err := http.ListenAndServe(*watchAddr, mux); err != nil {
				log.Printf("watch server: %v", err)
			}
		}()
		defer hub.Close()
	}

	rep, store, err := eng.Run(ctx, g, *top, sources)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("ANALYSIS RESULTS")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Vulnerable: %v\n", rep.IsVulnerable)

	var actual *bool
	if *label != "" {
		v := strings.EqualFold(*label, "true")
		actual = &v
		match := "MISMATCH"
		if rep.IsVulnerable == v {
			match = "OK"
		}
		fmt.Printf("Actual Label: %v (%s)\n", v, match)
	}
	if len(rep.VulnerableModules) > 0 {
		fmt.Printf("Vulnerable Modules: %s\n", strings.Join(rep.VulnerableModules, ", "))
	}
	if rep.LeakageType != "" {
		fmt.Printf("Leakage Type: %s\n", rep.LeakageType)
	}
	if len(rep.LeakagePath) > 0 {
		fmt.Println("Leakage Path:")
		for _, step := range rep.LeakagePath {
			fmt.Printf("  %s\n", step)
		}
	}
	if rep.Incomplete {
		fmt.Printf("Incomplete: oracle failed for [%s]\n", strings.Join(rep.FailedModules, ", "))
	}
	fmt.Printf("\nExplanation:\n%s\n", rep.Explanation)
	fmt.Println(strings.Repeat("=", 80))

	writeJSON(*outDir, "report.json", rep)
	if *saveContexts {
		writeJSON(*outDir, "contexts.json", store.Snapshots())
	}

	designName := filepath.Base(filepath.Clean(*design))
	results := resultstore.NewFromEnv(filepath.Join(*outDir, "results.json"))
	defer results.Close()
	if err := results.Put(ctx, resultstore.Record{
		Design: designName,
		Top:    *top,
		Label:  actual,
		Report: rep,
	}); err != nil {
		log.Printf("result store: %v", err)
	}

	if cfg.Artifact.Enabled {
		s3, err := artifactstore.NewS3Store(artifactstore.S3Config{
			Endpoint:  cfg.Artifact.Endpoint,
			Region:    cfg.Artifact.Region,
			AccessKey: cfg.Artifact.AccessKey,
			SecretKey: cfg.Artifact.SecretKey,
			Bucket:    cfg.Artifact.Bucket,
			UseSSL:    cfg.Artifact.UseSSL,
		})
		if err != nil {
			log.Printf("artifact store: %v", err)
		} else {
			runID := fmt.Sprintf("%s-%d", designName, time.Now().Unix())
			if err := s3.PutJSON(ctx, runID, "report.json", rep); err != nil {
				log.Printf("artifact store: %v", err)
			}
			if *saveContexts {
				if err := s3.PutJSON(ctx, runID, "contexts.json", store.Snapshots()); err != nil {
					log.Printf("artifact store: %v", err)
				}
			}
		}
	}

	log.Printf("analysis completed, results in %s", *outDir)
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

func writeJSON(dir, name string, v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	if err := os.WriteFile(filepath.Join(dir, name), b, 0o644); err != nil {
		log.Printf("write %s: %v", name, err)
	}
}
