package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/TobiSchelling/newsjuice/internal/collect"
	"github.com/TobiSchelling/newsjuice/internal/interchange"
	"github.com/TobiSchelling/newsjuice/internal/load"
	"github.com/TobiSchelling/newsjuice/internal/store"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full pipeline run.
type Result struct {
	LogPath string
	Scrape  *collect.Result
	Load    *load.Result
	Steps   []StepResult
}

// Failed reports whether any step returned an error.
func (r *Result) Failed() error {
	for _, s := range r.Steps {
		if s.Err != nil {
			return s.Err
		}
	}
	return nil
}

// Pipeline runs scrape and load over one interchange log.
type Pipeline struct {
	collector *collect.Collector
	loader    *load.Loader
	store     store.Store
	logPath   string
	logger    *slog.Logger
}

// New creates a new pipeline. The loader and store may be nil for a
// scrape-only pipeline.
func New(collector *collect.Collector, loader *load.Loader, st store.Store, logPath string, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		collector: collector,
		loader:    loader,
		store:     st,
		logPath:   logPath,
		logger:    logger.With("component", "pipeline"),
	}
}

// Run executes scrape then load. Load is skipped when scrape fails.
func (p *Pipeline) Run(ctx context.Context) *Result {
	r := &Result{LogPath: p.logPath}

	p.logger.Info("Step 1/2: Scraping sources...")
	scraped, step := p.Scrape(ctx)
	r.Scrape = scraped
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	p.logger.Info("Step 2/2: Loading vector store...")
	loaded, step := p.Load(ctx)
	r.Load = loaded
	r.Steps = append(r.Steps, step)
	return r
}

// Scrape collects every source into a fresh interchange log.
func (p *Pipeline) Scrape(ctx context.Context) (*collect.Result, StepResult) {
	step := StepResult{Name: "Scrape"}
	if p.collector == nil {
		step.Err = errors.New("no collector configured")
		return nil, step
	}

	w, err := interchange.Create(p.logPath)
	if err != nil {
		step.Err = err
		return nil, step
	}
	res, err := p.collector.Collect(ctx, w)
	if cerr := w.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("closing interchange log: %w", cerr)
	}
	if err != nil {
		step.Err = err
		return res, step
	}

	step.Summary = fmt.Sprintf("Wrote %d articles to %s (%d found, %d rejected, %d fetch failures)",
		res.Written, p.logPath, res.Found(), res.Skipped.Rejected(), res.Failed())
	return res, step
}

// Load reads the interchange log and loads every record.
func (p *Pipeline) Load(ctx context.Context) (*load.Result, StepResult) {
	step := StepResult{Name: "Load"}
	if p.loader == nil {
		step.Err = errors.New("no loader configured")
		return nil, step
	}

	records, stats, err := interchange.ReadFile(p.logPath, p.logger)
	if err != nil {
		step.Err = err
		return nil, step
	}
	if stats.Malformed > 0 {
		p.logger.Warn("interchange log has malformed lines", "count", stats.Malformed)
	}

	res, err := p.loader.Load(ctx, records)
	if err != nil {
		step.Err = err
		return nil, step
	}
	step.Summary = fmt.Sprintf("Loaded %d articles: %d chunks attempted, %d succeeded, %d failed",
		res.Articles, res.Attempted, res.Succeeded, res.Failed)
	return &res, step
}

// DryRun shows what would be done without executing.
func (p *Pipeline) DryRun(ctx context.Context) *Result {
	r := &Result{LogPath: p.logPath}

	var names []string
	if p.collector != nil {
		names = p.collector.SourceNames()
	}
	r.Steps = append(r.Steps, StepResult{
		Name:    "Scrape",
		Summary: fmt.Sprintf("[dry-run] Would scrape %d sources %v into %s", len(names), names, p.logPath),
	})

	summary := "[dry-run] No interchange log yet"
	if _, err := os.Stat(p.logPath); err == nil {
		_, stats, err := interchange.ReadFile(p.logPath, p.logger)
		if err == nil {
			summary = fmt.Sprintf("[dry-run] Existing log holds %d records (%d malformed lines)", stats.Records, stats.Malformed)
		}
	}
	if p.store != nil {
		if st, err := p.store.Stats(ctx); err == nil {
			summary += fmt.Sprintf("; store has %d chunks from %d articles", st.Chunks, st.Articles)
		}
	}
	r.Steps = append(r.Steps, StepResult{Name: "Load", Summary: summary})

	return r
}
