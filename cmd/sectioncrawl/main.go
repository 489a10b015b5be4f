// Command sectioncrawl crawls a site from a seed URL and ranks its pages
// against a catalog of sections and subsections.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/go-scripts/sectioncrawl/internal/catalog"
	"github.com/go-scripts/sectioncrawl/internal/config"
	"github.com/go-scripts/sectioncrawl/internal/crawl"
	"github.com/go-scripts/sectioncrawl/internal/export"
	"github.com/go-scripts/sectioncrawl/internal/fetcher"
	"github.com/go-scripts/sectioncrawl/internal/progress"
	"github.com/go-scripts/sectioncrawl/internal/scoring"
	"github.com/go-scripts/sectioncrawl/internal/storage"
	"github.com/go-scripts/sectioncrawl/internal/types"
	"github.com/go-scripts/sectioncrawl/ui"
)

// CLIFlags are the command line options. Zero values keep the config file
// or default setting.
type CLIFlags struct {
	Seed        string        `arg:"" help:"Seed URL to start crawling from"`
	Catalog     string        `help:"Path to the section catalog (YAML)" short:"s" required:"" type:"existingfile"`
	Org         string        `help:"Organization name substituted into the catalog"`
	Location    string        `help:"Organization location as \"city, country\""`
	Config      string        `help:"Path to a TOML configuration file" short:"c"`
	Budget      int           `help:"Maximum number of pages to fetch" short:"b"`
	Timeout     time.Duration `help:"Per-page fetch timeout" short:"t"`
	TopK        int           `help:"Pages kept per subsection" name:"top-k" short:"k"`
	Workers     int           `help:"Number of concurrent fetch workers" short:"w"`
	Output      string        `help:"Path to output file" short:"o"`
	Format      string        `help:"Output format (json or csv)" short:"f"`
	Screenshots string        `help:"Directory to store page screenshots in"`
	NoRender    bool          `help:"Fetch with plain HTTP only, without a headless browser"`
	Classifier  bool          `help:"Score pages with the configured LLM classifier"`
	TUI         bool          `help:"Show the interactive dashboard instead of line progress" name:"tui"`
	Progress    string        `help:"Line progress style (spinner, bar or log)" enum:"spinner,bar,log" default:"spinner"`
	Debug       bool          `help:"Enable debug logging"`
}

func main() {
	var flags CLIFlags
	kong.Parse(&flags,
		kong.Name("sectioncrawl"),
		kong.Description("Crawl a site and rank its pages per catalog subsection."),
		kong.UsageOnError(),
	)

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          "sectioncrawl",
	})
	if flags.Debug {
		logger.SetLevel(log.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flags, logger); err != nil {
		logger.Error("Crawl failed", "err", err)
		stop()
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies the flags over it.
func loadConfig(flags CLIFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.Config)
	if err != nil {
		return nil, err
	}

	if flags.Budget > 0 {
		cfg.Crawl.Budget = flags.Budget
	}
	if flags.Timeout > 0 {
		cfg.Crawl.TimeoutSeconds = max(int(flags.Timeout/time.Second), 1)
	}
	if flags.TopK > 0 {
		cfg.Crawl.TopK = flags.TopK
	}
	if flags.Workers > 0 {
		cfg.Crawl.Workers = flags.Workers
	}
	if flags.Output != "" {
		cfg.Output.Path = flags.Output
	}
	if flags.Format != "" {
		cfg.Output.Format = flags.Format
	}
	if flags.Screenshots != "" {
		cfg.Output.ScreenshotDir = flags.Screenshots
	}
	if flags.NoRender {
		cfg.Fetch.Render = false
	}
	if flags.Classifier {
		cfg.Classifier.Enabled = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, flags CLIFlags, logger *log.Logger) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	cat, err := catalog.LoadFile(flags.Catalog, catalog.NewPlaceholders(flags.Org, flags.Location))
	if err != nil {
		return err
	}
	logger.Debug("Loaded catalog", "sections", len(cat.Sections), "subsections", len(cat.Subsections()))

	clog := componentLogger(flags.TUI, logger)
	fetchOpts := []fetcher.Option{fetcher.WithLogger(clog)}
	if cfg.Output.ScreenshotDir != "" {
		store, err := storage.NewFileStore(cfg.Output.ScreenshotDir)
		if err != nil {
			return err
		}
		fetchOpts = append(fetchOpts, fetcher.WithScreenshotStore(store))
	}
	f := fetcher.New(cfg.FetchConfig(), fetchOpts...)
	defer f.Close()

	var scorer scoring.Scorer = scoring.NewKeywordScorer()
	var crawlOpts []crawl.Option
	if cfg.Classifier.Enabled {
		classifier, err := scoring.NewLLMClassifier(cfg.LLMConfig(), nil, clog)
		if err != nil {
			return err
		}
		scorer = scoring.NewClassifierScorer(classifier, scoring.NewKeywordScorer(), clog)
		if cfg.Crawl.PrefetchClassifier {
			crawlOpts = append(crawlOpts, crawl.WithPrefetchScorer(scorer))
		}
	}

	format, err := export.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}

	var result *types.CrawlResult
	if flags.TUI {
		result, err = runWithDashboard(ctx, flags.Seed, cat, f, scorer, cfg, crawlOpts)
	} else {
		result, err = runWithReporter(ctx, flags.Seed, lineReporter(flags.Progress, logger), cat, f, scorer, cfg, crawlOpts, logger)
	}
	if result != nil {
		if werr := export.WriteFile(cfg.Output.Path, format, result, cat); werr != nil {
			err = errors.Join(err, werr)
		} else {
			logger.Info("Results written", "path", cfg.Output.Path, "format", format)
		}
		fmt.Println(ui.RenderSummary(result))
	}
	return err
}

// componentLogger is the logger handed to the fetcher and classifier. The
// dashboard owns the terminal, so their logs are dropped when it runs.
func componentLogger(tui bool, logger *log.Logger) *log.Logger {
	if tui {
		return log.New(io.Discard)
	}
	return logger
}

// lineReporter picks the progress output for non-interactive runs.
func lineReporter(style string, logger *log.Logger) progress.Reporter {
	switch style {
	case "bar":
		return progress.NewTracker(os.Stderr)
	case "log":
		return progress.NewLogReporter(logger.With("component", "progress"))
	default:
		return progress.NewSpinnerReporter(os.Stderr)
	}
}

func runWithReporter(ctx context.Context, seed string, reporter progress.Reporter, cat *catalog.Catalog, f *fetcher.DualFetcher, scorer scoring.Scorer, cfg *config.Config, opts []crawl.Option, logger *log.Logger) (*types.CrawlResult, error) {
	switch r := reporter.(type) {
	case *progress.SpinnerReporter:
		defer r.Stop()
	case *progress.Tracker:
		defer fmt.Fprintln(os.Stderr)
	}
	opts = append(opts, crawl.WithReporter(reporter), crawl.WithLogger(logger))

	o, err := crawl.New(cat, f, scorer, cfg.CrawlConfig(), opts...)
	if err != nil {
		return nil, err
	}
	return o.Run(ctx, seed)
}

func runWithDashboard(ctx context.Context, seed string, cat *catalog.Catalog, f *fetcher.DualFetcher, scorer scoring.Scorer, cfg *config.Config, opts []crawl.Option) (*types.CrawlResult, error) {
	events := progress.NewChannelReporter(1024)
	opts = append(opts, crawl.WithReporter(events))

	o, err := crawl.New(cat, f, scorer, cfg.CrawlConfig(), opts...)
	if err != nil {
		return nil, err
	}

	crawlCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		result *types.CrawlResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := o.Run(crawlCtx, seed)
		events.Close()
		done <- outcome{result, err}
	}()

	p := tea.NewProgram(ui.NewLayout(events.Events(), cfg.Crawl.Workers), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		cancel()
		<-done
		return nil, fmt.Errorf("dashboard failed: %w", err)
	}

	// Quitting the dashboard early stops the crawl; the partial result is kept.
	cancel()
	out := <-done
	return out.result, out.err
}
