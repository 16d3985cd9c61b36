// Command scrape runs one catalog scrape from the terminal: a retailer's URL
// list in, a CSV of products out. Challenges can be solved interactively in
// the visible browser window.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/pricelab/catalog-scraper/internal/browser"
	"github.com/pricelab/catalog-scraper/internal/challenge"
	"github.com/pricelab/catalog-scraper/internal/config"
	"github.com/pricelab/catalog-scraper/internal/pacing"
	"github.com/pricelab/catalog-scraper/internal/profile"
	"github.com/pricelab/catalog-scraper/internal/report"
	"github.com/pricelab/catalog-scraper/internal/scraper"
	"github.com/pricelab/catalog-scraper/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		retailer = flag.String("retailer", "", "retailer tag (defaults to dispatch by list file name)")
		list     = flag.String("list", "", "path to the URL list file, one URL per line (required)")
		category = flag.String("category", "", "category label assigned to every product")
		out      = flag.String("out", "products.csv", "output CSV path")
		headless = flag.Bool("headless", true, "run the browser without a visible window")
		solve    = flag.Bool("solve", false, "allow one interactive challenge solve (forces a visible window)")
		quiet    = flag.Bool("quiet", false, "disable log output")
	)
	flag.Parse()

	if *list == "" {
		flag.Usage()
		return errors.New("-list is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	var logger *slog.Logger
	if *quiet {
		logger = slog.New(slog.DiscardHandler)
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	registry := profile.Default()
	var prof profile.Profile
	if *retailer != "" {
		prof, err = registry.ByRetailer(*retailer)
	} else {
		prof, err = registry.ByListFile(filepath.Base(*list))
	}
	if err != nil {
		return err
	}

	urls, err := storage.ReadURLList(*list)
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		return fmt.Errorf("url list %s is empty", *list)
	}

	// A challenge can only be solved in a window the operator can see.
	if *solve {
		*headless = false
	}

	factory, err := browser.NewFactory(&browser.Options{
		Headless:       *headless,
		SlowMo:         cfg.Browser.SlowMo,
		Timeout:        cfg.Browser.Timeout,
		UserAgent:      cfg.Browser.UserAgent,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
		AcceptLanguage: cfg.Browser.AcceptLanguage,
		TimezoneID:     cfg.Browser.TimezoneID,
		Locale:         cfg.Browser.Locale,
		ProxyServer:    cfg.Browser.ProxyServer,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize browser: %w", err)
	}
	defer factory.Close()

	session, err := factory.NewSession()
	if err != nil {
		return err
	}
	defer session.Close()

	var prompter challenge.Prompter = challenge.NopPrompter{}
	if *solve {
		prompter = challenge.NewConsolePrompter(os.Stdin, os.Stderr)
	}

	policy := pacing.NewRandomPolicy(
		pacing.Range{Min: cfg.Scraper.PreRequestMin, Max: cfg.Scraper.PreRequestMax},
		pacing.Range{Min: cfg.Scraper.InterRequestMin, Max: cfg.Scraper.InterRequestMax},
	)

	engine := scraper.NewEngine(session, prof, policy, prompter, scraper.Config{
		NavigationTimeout:    cfg.Browser.Timeout,
		SaveErrorScreenshots: cfg.Scraper.SaveErrorScreenshots,
		AllowHumanSolve:      *solve,
		AbortOnRepeatBlock:   cfg.Scraper.AbortOnRepeatBlock,
		SolveWait:            cfg.Scraper.SolveWait,
		SolvePollInterval:    cfg.Scraper.SolvePollInterval,
		ArtifactDir:          cfg.Scraper.ArtifactDir,
		CookiePath:           filepath.Join(cfg.Scraper.CookieDir, prof.CookieFile),
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	products, scrapeErr := engine.Scrape(ctx, urls, *category)

	// Whatever was collected gets written even when the run ended early.
	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	if err := report.WriteCSV(f, products); err != nil {
		return err
	}
	if err := report.WriteSummary(os.Stdout, prof.Retailer, *category, len(urls), products); err != nil {
		return err
	}

	if scrapeErr != nil {
		return fmt.Errorf("run ended early: %w", scrapeErr)
	}

	logger.Info("done", "out", *out, "products", len(products))
	return nil
}
