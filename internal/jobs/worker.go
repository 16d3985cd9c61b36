package jobs

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"

	"github.com/pricelab/catalog-scraper/internal/challenge"
	"github.com/pricelab/catalog-scraper/internal/driver"
	"github.com/pricelab/catalog-scraper/internal/models"
	"github.com/pricelab/catalog-scraper/internal/pacing"
	"github.com/pricelab/catalog-scraper/internal/profile"
	"github.com/pricelab/catalog-scraper/internal/queue"
	"github.com/pricelab/catalog-scraper/internal/scraper"
)

// Finalizer commits a finished run: terminal status, product rows and outbox
// events in one transaction.
type Finalizer interface {
	Finalize(ctx context.Context, run *models.ScrapeRun, status models.RunStatus, products []models.Product, runErr string) error
}

// WorkerConfig is the engine policy applied to every run the worker executes.
type WorkerConfig struct {
	Engine    scraper.Config
	Pre       pacing.Range
	Inter     pacing.Range
	CookieDir string
}

// Worker drains the run queue. Runs execute strictly one at a time; a second
// concurrent browser session against the same retailer would undermine the
// pacing policy.
type Worker struct {
	runs      RunStore
	finalizer Finalizer
	queue     queue.Queue
	sessions  scraper.SessionFactory
	registry  *profile.Registry
	cfg       WorkerConfig
	logger    *slog.Logger

	// newScraper builds the engine for one run; tests substitute a fake.
	newScraper func(session driver.Session, prof profile.Profile, cfg scraper.Config) scraper.Scraper
}

func NewWorker(runs RunStore, finalizer Finalizer, q queue.Queue, sessions scraper.SessionFactory, registry *profile.Registry, cfg WorkerConfig, logger *slog.Logger) *Worker {
	w := &Worker{
		runs:      runs,
		finalizer: finalizer,
		queue:     q,
		sessions:  sessions,
		registry:  registry,
		cfg:       cfg,
		logger:    logger.With("component", "job_worker"),
	}

	w.newScraper = func(session driver.Session, prof profile.Profile, engineCfg scraper.Config) scraper.Scraper {
		policy := pacing.NewRandomPolicy(cfg.Pre, cfg.Inter)
		return scraper.NewEngine(session, prof, policy, challenge.NopPrompter{}, engineCfg, logger)
	}

	return w
}

// Start processes queued runs until ctx ends or the queue closes.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("job worker started")

	for {
		task, err := w.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrQueueClosed) || ctx.Err() != nil {
				w.logger.Info("job worker stopping")
				return
			}
			w.logger.Error("failed to pop task", "error", err)
			continue
		}

		w.process(ctx, task)
	}
}

func (w *Worker) process(ctx context.Context, task *queue.Task) {
	claimed, err := w.runs.Claim(ctx, task.RunID)
	if err != nil {
		w.logger.Error("failed to claim run", "run_id", task.RunID, "error", err)
		return
	}
	if !claimed {
		// Another worker took it, or the run was already executed.
		return
	}

	run, err := w.runs.GetByID(ctx, task.RunID)
	if err != nil {
		w.logger.Error("failed to load claimed run", "run_id", task.RunID, "error", err)
		return
	}

	w.logger.Info("processing run", "run_id", run.ID, "retailer", run.Retailer, "urls", len(run.URLs))

	products, scrapeErr := w.execute(ctx, run)

	status := models.RunStatusCompleted
	errMsg := ""
	switch {
	case errors.Is(scrapeErr, scraper.ErrRunAborted):
		status = models.RunStatusAborted
		errMsg = scrapeErr.Error()
	case scrapeErr != nil:
		status = models.RunStatusFailed
		errMsg = scrapeErr.Error()
	}

	if err := w.finalizer.Finalize(ctx, run, status, products, errMsg); err != nil {
		w.logger.Error("failed to finalize run", "run_id", run.ID, "error", err)
		return
	}

	w.logger.Info("run finished", "run_id", run.ID, "status", status, "products", len(products))
}

// execute scrapes one run on a fresh session. Accumulated products are
// returned alongside any run-ending error.
func (w *Worker) execute(ctx context.Context, run *models.ScrapeRun) ([]models.Product, error) {
	prof, err := w.registry.ByRetailer(run.Retailer)
	if err != nil {
		return nil, err
	}

	session, err := w.sessions.NewSession()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := session.Close(); err != nil {
			w.logger.Warn("failed to close session", "error", err)
		}
	}()

	engineCfg := w.cfg.Engine
	if prof.CookieFile != "" && w.cfg.CookieDir != "" {
		engineCfg.CookiePath = filepath.Join(w.cfg.CookieDir, prof.CookieFile)
	}

	return w.newScraper(session, prof, engineCfg).Scrape(ctx, run.URLs, run.Category)
}
