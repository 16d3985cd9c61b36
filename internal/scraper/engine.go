package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pricelab/catalog-scraper/internal/challenge"
	"github.com/pricelab/catalog-scraper/internal/driver"
	"github.com/pricelab/catalog-scraper/internal/extract"
	"github.com/pricelab/catalog-scraper/internal/models"
	"github.com/pricelab/catalog-scraper/internal/pacing"
	"github.com/pricelab/catalog-scraper/internal/profile"
)

// Config is the per-run engine policy, independent of the retailer profile.
type Config struct {
	NavigationTimeout    time.Duration
	SaveErrorScreenshots bool
	AllowHumanSolve      bool
	AbortOnRepeatBlock   bool
	SolveWait            time.Duration
	SolvePollInterval    time.Duration
	ArtifactDir          string
	// CookiePath is the retailer's cookie store; empty disables persistence.
	CookiePath string
}

// Engine drives one browser session over a retailer's catalog URLs, strictly
// sequentially. URLs are never scraped concurrently: the paced, single-file
// schedule is the anti-detection strategy, not a missing feature.
type Engine struct {
	session    driver.Session
	prof       profile.Profile
	policy     pacing.Policy
	prompter   challenge.Prompter
	cascade    *extract.Cascade
	text       *extract.Extractor
	structured *extract.StructuredExtractor
	detector   *challenge.Detector
	cfg        Config
	logger     *slog.Logger
}

func NewEngine(session driver.Session, prof profile.Profile, policy pacing.Policy, prompter challenge.Prompter, cfg Config, logger *slog.Logger) *Engine {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 30 * time.Second
	}

	return &Engine{
		session:    session,
		prof:       prof,
		policy:     policy,
		prompter:   prompter,
		cascade:    extract.NewCascade(logger),
		text:       extract.NewExtractor(),
		structured: extract.NewStructuredExtractor(prof.Structured),
		detector:   challenge.NewDetector(prof.ChallengeMarkers, prof.ChallengePhrases, logger),
		cfg:        cfg,
		logger:     logger.With("component", "engine", "retailer", prof.Retailer),
	}
}

// Scrape processes urls in order and returns every product discovered, in the
// order its node was encountered. Per-URL failures are logged and skipped;
// the error return is reserved for run-enders: cancellation, a lost session,
// or an abort after a repeat challenge. Accumulated products are returned in
// every case.
func (e *Engine) Scrape(ctx context.Context, urls []string, category string) ([]models.Product, error) {
	products := make([]models.Product, 0)

	targets := make([]string, 0, len(urls))
	for _, url := range urls {
		if strings.TrimSpace(url) != "" {
			targets = append(targets, url)
		}
	}
	if len(targets) == 0 {
		return products, nil
	}

	e.importCookies()

	// Recovery state (one solve attempt, repeat-block tracking) lives and
	// dies with this call.
	recovery := challenge.NewController(e.detector, e.prompter, challenge.Config{
		AllowHumanSolve:    e.cfg.AllowHumanSolve,
		SolveWait:          e.cfg.SolveWait,
		PollInterval:       e.cfg.SolvePollInterval,
		AbortOnRepeatBlock: e.cfg.AbortOnRepeatBlock,
		SaveScreenshots:    e.cfg.SaveErrorScreenshots,
		ArtifactDir:        e.cfg.ArtifactDir,
		CookiePath:         e.cfg.CookiePath,
	}, e.logger)

	for i, url := range targets {
		if err := pacing.Wait(ctx, e.policy.PreRequestDelay()); err != nil {
			return products, err
		}

		batch, err := e.scrapeURL(ctx, recovery, url, category)
		products = append(products, batch...)
		if err != nil {
			return products, err
		}

		if i < len(targets)-1 {
			if err := pacing.Wait(ctx, e.policy.InterRequestDelay()); err != nil {
				return products, err
			}
		}
	}

	e.logger.Info("scrape completed", "urls", len(targets), "products", len(products))
	return products, nil
}

// scrapeURL handles one catalog page end to end. A nil error with an empty
// batch means the URL contributed nothing but the run goes on.
func (e *Engine) scrapeURL(ctx context.Context, recovery *challenge.Controller, url, category string) ([]models.Product, error) {
	nav, err := e.session.Navigate(ctx, url, e.cfg.NavigationTimeout)
	if err != nil {
		if errors.Is(err, driver.ErrSessionClosed) || ctx.Err() != nil {
			return nil, fmt.Errorf("navigating %s: %w", url, err)
		}
		e.logger.Error("navigation failed", "url", url, "error", err)
		e.saveErrorScreenshot("navigation")
		return nil, nil
	}

	if res := e.detector.Classify(nav.Status, e.session); res.Blocked {
		outcome, err := recovery.HandleChallenge(ctx, e.session, url, res.Reason)
		if err != nil {
			return nil, err
		}
		switch outcome {
		case challenge.OutcomeAbort:
			return nil, ErrRunAborted
		case challenge.OutcomeSkip:
			return nil, nil
		}
		// OutcomeProceed: the page cleared, extract from it as-is.
	}

	nodes, selector := e.cascade.Resolve(e.session, e.prof.ProductSelectors)
	if len(nodes) == 0 {
		e.logger.Warn("no product nodes matched", "url", url, "final_url", nav.FinalURL)
		return nil, nil
	}
	e.logger.Info("resolved product nodes", "url", url, "selector", selector, "count", len(nodes))

	batch := make([]models.Product, 0, len(nodes))
	for _, node := range nodes {
		product, ok, err := e.extractNode(node, category)
		if err != nil {
			e.logger.Warn("node extraction failed", "url", url, "error", err)
			continue
		}
		if !ok {
			continue
		}
		batch = append(batch, product)
	}

	// Any successful extraction means the site served us real content, so
	// capture the accrued trust even without a challenge event.
	if len(batch) > 0 && e.cfg.CookiePath != "" {
		if err := e.session.SaveCookies(e.cfg.CookiePath); err != nil {
			e.logger.Debug("cookie save failed", "error", err)
		}
	}

	return batch, nil
}

func (e *Engine) extractNode(node driver.Node, category string) (models.Product, bool, error) {
	if e.prof.Mode == profile.ModeStructured {
		html, err := node.HTML()
		if err != nil {
			return models.Product{}, false, err
		}
		product, ok := e.structured.Extract(html, category)
		return product, ok, nil
	}

	text, err := node.Text()
	if err != nil {
		return models.Product{}, false, err
	}
	product, ok := e.text.Extract(text, category)
	return product, ok, nil
}

// importCookies restores the persisted session, if any, before the first
// navigation. A missing store is the normal cold-start case.
func (e *Engine) importCookies() {
	if e.cfg.CookiePath == "" {
		return
	}
	if err := e.session.LoadCookies(e.cfg.CookiePath); err != nil {
		e.logger.Warn("cookie import failed", "path", e.cfg.CookiePath, "error", err)
	}
}

func (e *Engine) saveErrorScreenshot(label string) {
	if !e.cfg.SaveErrorScreenshots || e.cfg.ArtifactDir == "" {
		return
	}
	if err := os.MkdirAll(e.cfg.ArtifactDir, 0755); err != nil {
		e.logger.Warn("failed to create artifact dir", "error", err)
		return
	}

	path := filepath.Join(e.cfg.ArtifactDir, fmt.Sprintf("error_%s_%s.png", label, time.Now().Format("20060102_150405")))
	if err := e.session.Screenshot(path); err != nil {
		e.logger.Warn("failed to save error screenshot", "error", err)
	}
}
