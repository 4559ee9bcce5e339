package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/TobiSchelling/newsjuice/internal/browser"
	"github.com/TobiSchelling/newsjuice/internal/chunk"
	"github.com/TobiSchelling/newsjuice/internal/collect"
	"github.com/TobiSchelling/newsjuice/internal/config"
	"github.com/TobiSchelling/newsjuice/internal/embed"
	"github.com/TobiSchelling/newsjuice/internal/fetch"
	"github.com/TobiSchelling/newsjuice/internal/load"
	"github.com/TobiSchelling/newsjuice/internal/logging"
	"github.com/TobiSchelling/newsjuice/internal/pipeline"
	"github.com/TobiSchelling/newsjuice/internal/retrieve"
	"github.com/TobiSchelling/newsjuice/internal/server"
	"github.com/TobiSchelling/newsjuice/internal/store"
	"github.com/TobiSchelling/newsjuice/internal/store/badger"
	"github.com/TobiSchelling/newsjuice/internal/store/postgres"
	"github.com/TobiSchelling/newsjuice/internal/store/sqlite"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
)

func main() {
	// A missing .env is fine; secrets may come from the real environment.
	_ = godotenv.Load()

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "newsjuice",
	Short:         "News ingestion and vector retrieval",
	Long:          "NewsJuice scrapes news sources into a JSON Lines log, loads chunk embeddings into a vector store, and answers similarity queries.",
	Version:       version,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logging.Setup("info", verbose)

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("%w: loading config: %w", config.ErrConfiguration, err)
		}
		logger = logging.Setup(cfg.Logging.Level, verbose)
		logger.Debug("loaded config", "path", path)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(scrapeCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("newsjuice", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/newsjuice/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure sources, the embedding provider, and the vector store.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show vector store status and the last load run",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		stats, err := st.Stats(ctx)
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Store: %s (%s)\n\n", cfg.Store.Backend, storeLocation())
		fmt.Println("Chunks:")
		fmt.Printf("  Total: %d\n", stats.Chunks)
		fmt.Printf("  Articles: %d\n", stats.Articles)

		if len(stats.BySource) > 0 {
			fmt.Println("\nArticles by source:")
			printBySource(stats.BySource)
		}

		fmt.Println("\nLast load:")
		if stats.LastRun == nil {
			fmt.Println("  none yet; run 'newsjuice load'")
			return nil
		}
		r := stats.LastRun
		fmt.Printf("  Started: %s\n", r.StartedAt.Local().Format(time.DateTime))
		fmt.Printf("  Duration: %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
		fmt.Printf("  Model: %s\n", r.Model)
		fmt.Printf("  Articles: %d (%d skipped)\n", r.Articles, r.SkippedArticles)
		fmt.Printf("  Chunks: %d attempted, %d succeeded, %d failed\n", r.Attempted, r.Succeeded, r.Failed)
		return nil
	},
}

// --- scrape command ---

var scrapeOut string

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape configured sources into the interchange log",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		collector, err := newCollector()
		if err != nil {
			return err
		}

		logPath := cfg.LogPath()
		if scrapeOut != "" {
			logPath = scrapeOut
		}

		fmt.Println("Scraping sources...")
		pipe := pipeline.New(collector, nil, nil, logPath, logger)
		result, step := pipe.Scrape(cmd.Context())
		if step.Err != nil {
			return step.Err
		}

		printScrape(result, logPath)
		return nil
	},
}

func init() {
	scrapeCmd.Flags().StringVar(&scrapeOut, "out", "", "Interchange log to write (default from config)")
}

// --- load command ---

var loadIn string

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Chunk, embed and store the articles in the interchange log",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logPath := cfg.LogPath()
		if loadIn != "" {
			logPath = loadIn
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		loader, err := newLoader(st)
		if err != nil {
			return err
		}

		fmt.Printf("Loading %s...\n", logPath)
		pipe := pipeline.New(nil, loader, st, logPath, logger)
		result, step := pipe.Load(ctx)
		if step.Err != nil {
			return step.Err
		}

		printLoad(result)
		return nil
	},
}

func init() {
	loadCmd.Flags().StringVar(&loadIn, "in", "", "Interchange log to read (default from config)")
}

// --- run command ---

var dryRun bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: scrape -> load",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate(); err != nil {
			return err
		}

		collector, err := newCollector()
		if err != nil {
			return err
		}
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		loader, err := newLoader(st)
		if err != nil {
			return err
		}

		pipe := pipeline.New(collector, loader, st, cfg.LogPath(), logger)

		var result *pipeline.Result
		if dryRun {
			result = pipe.DryRun(ctx)
		} else {
			result = pipe.Run(ctx)
		}

		for i, step := range result.Steps {
			fmt.Printf("\nStep %d/2: %s\n", i+1, step.Name)
			if step.Err != nil {
				fmt.Printf("  Error: %v\n", step.Err)
			} else {
				fmt.Printf("  %s\n", step.Summary)
			}
		}

		if err := result.Failed(); err != nil {
			return err
		}
		if result.Scrape != nil {
			printScrape(result.Scrape, result.LogPath)
		}
		if result.Load != nil {
			printLoad(result.Load)
		}
		if !dryRun {
			fmt.Println("\nPipeline complete! Run 'newsjuice query' or 'newsjuice serve' to search.")
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without executing")
}

// --- query command ---

var (
	queryK      int
	queryMetric string
	queryOut    string
)

var queryCmd = &cobra.Command{
	Use:   "query TEXT",
	Short: "Search the vector store",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		text := strings.Join(args, " ")

		metric := queryMetric
		if metric == "" {
			metric = cfg.Store.Metric
		}

		retriever, st, err := newRetriever(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		results, err := retriever.Retrieve(ctx, retrieve.Query{
			Text:   text,
			K:      queryK,
			Metric: store.Metric(metric),
		})
		if err != nil {
			return err
		}

		if len(results) == 0 {
			fmt.Println("No matching chunks. Is the store loaded?")
		}
		for i, r := range results {
			preview := runewidth.Truncate(strings.Join(strings.Fields(r.Text), " "), 76, "...")
			fmt.Printf("%d. [%.4f] %s\n", i+1, r.Distance, r.ChunkID)
			if r.Title != "" {
				fmt.Printf("   %s\n", r.Title)
			}
			fmt.Printf("   %s\n", preview)
		}

		if queryOut != "" {
			report := retrieve.Markdown(text, results)
			if err := os.WriteFile(queryOut, []byte(report), 0o644); err != nil {
				return fmt.Errorf("writing report: %w", err)
			}
			fmt.Printf("\nReport written to %s\n", queryOut)
		}
		return nil
	},
}

func init() {
	queryCmd.Flags().IntVarP(&queryK, "k", "k", retrieve.DefaultK, "Number of results")
	queryCmd.Flags().StringVar(&queryMetric, "metric", "", "Distance metric: cosine, euclidean or inner_product (default from config)")
	queryCmd.Flags().StringVar(&queryOut, "out", "", "Write a Markdown report to this file")
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local search UI",
	RunE: func(cmd *cobra.Command, args []string) error {
		retriever, st, err := newRetriever(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(retriever, st, port, logger)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}

// --- wiring ---

func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Backend {
	case "", "sqlite":
		st, err := sqlite.Open(cfg.StorePath(), logger)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "badger":
		st, err := badger.Open(cfg.StorePath(), false, logger)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "postgres":
		dsn := os.Getenv(cfg.Store.DSNEnv)
		if dsn == "" {
			return nil, fmt.Errorf("%w: %s is not set", config.ErrConfiguration, cfg.Store.DSNEnv)
		}
		metric, err := store.ParseMetric(cfg.Store.Metric)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", config.ErrConfiguration, err)
		}
		st, err := postgres.Open(ctx, postgres.Options{
			DSN:       dsn,
			Table:     cfg.Store.Table,
			Dimension: cfg.Embedding.Dimension,
			Metric:    metric,
		}, logger)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("%w: unknown store backend %q", config.ErrConfiguration, cfg.Store.Backend)
	}
}

func storeLocation() string {
	if cfg.Store.Backend == "postgres" {
		return "$" + cfg.Store.DSNEnv + " table " + cfg.Store.Table
	}
	return cfg.StorePath()
}

func newCollector() (*collect.Collector, error) {
	client := fetch.NewClient(cfg.Fetch.UserAgent, cfg.FetchTimeout(), cfg.FetchDelay())

	var launcher browser.Launcher
	if len(cfg.Sources.Crawls) > 0 {
		launcher = browser.NewChrome(browser.ChromeOptions{
			Headless:  cfg.Browser.Headless,
			ExecPath:  cfg.Browser.ExecPath,
			UserAgent: cfg.Fetch.UserAgent,
			Timeout:   time.Duration(cfg.Browser.TimeoutSeconds) * time.Second,
		})
	}
	return collect.NewCollector(cfg, client, launcher, logger)
}

func newLoader(st store.Store) (*load.Loader, error) {
	embedder, err := embed.New(cfg.Embedding, logger)
	if err != nil {
		return nil, err
	}
	chunker, err := chunk.New(chunk.Options{
		Strategy:             cfg.Chunking.Strategy,
		Size:                 cfg.Chunking.Size,
		Overlap:              cfg.Chunking.Overlap,
		BreakpointPercentile: cfg.Chunking.BreakpointPercentile,
	}, embedder)
	if err != nil {
		return nil, err
	}
	return load.New(chunker, embedder, st, load.WithWorkers(cfg.Loader.Workers), load.WithLogger(logger))
}

func newRetriever(ctx context.Context) (*retrieve.Retriever, store.Store, error) {
	embedder, err := embed.New(cfg.Embedding, logger)
	if err != nil {
		return nil, nil, err
	}
	st, err := openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	return retrieve.New(embedder, st, logger), st, nil
}

// --- output ---

func printScrape(result *collect.Result, logPath string) {
	fmt.Println("\nScrape complete:")
	fmt.Printf("  Total found: %d\n", result.Found())
	fmt.Printf("  Written: %d\n", result.Written)
	fmt.Printf("  Fetch failures: %d\n", result.Failed())
	fmt.Printf("  Log: %s\n", logPath)

	if reasons := result.SkipReasons(); len(reasons) > 0 {
		fmt.Println("\nSkipped:")
		for _, rc := range reasons {
			fmt.Printf("  %s: %d\n", rc.Reason, rc.Count)
		}
	}

	if len(result.Sources) > 0 {
		fmt.Println("\nArticles by source:")
		for _, s := range result.Sources {
			line := fmt.Sprintf("  %s: %d of %d", s.Name, s.Accepted, s.Found)
			if s.Err != nil {
				line += fmt.Sprintf(" (error: %v)", s.Err)
			}
			fmt.Println(line)
		}
	}
}

func printLoad(result *load.Result) {
	fmt.Println("\nLoad complete:")
	fmt.Printf("  Articles: %d (%d without chunks)\n", result.Articles, result.SkippedArticles)
	fmt.Printf("  Chunks: {attempted: %d, succeeded: %d, failed: %d}\n",
		result.Attempted, result.Succeeded, result.Failed)
	fmt.Printf("  Run: %s\n", result.RunID)
}

func printBySource(counts map[string]int) {
	// Sort sources by count descending
	type kv struct {
		key string
		val int
	}
	var sorted []kv
	for k, v := range counts {
		sorted = append(sorted, kv{k, v})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].val != sorted[j].val {
			return sorted[i].val > sorted[j].val
		}
		return sorted[i].key < sorted[j].key
	})
	for _, s := range sorted {
		name := s.key
		if name == "" {
			name = "(unknown)"
		}
		fmt.Printf("  %s: %d\n", name, s.val)
	}
}
