// Package jobs runs submitted scrape runs in the background: a manager that
// queues them and a worker that claims and executes them one at a time.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pricelab/catalog-scraper/internal/models"
	"github.com/pricelab/catalog-scraper/internal/profile"
	"github.com/pricelab/catalog-scraper/internal/queue"
)

// RunStore is the slice of the run repository the manager and worker use.
type RunStore interface {
	Create(ctx context.Context, run *models.ScrapeRun) error
	GetByID(ctx context.Context, id string) (*models.ScrapeRun, error)
	Claim(ctx context.Context, id string) (bool, error)
	QueuedIDs(ctx context.Context) ([]string, error)
}

// ProductStore reads back the products a run persisted.
type ProductStore interface {
	ListByRun(ctx context.Context, runID string) ([]models.Product, error)
}

// Manager accepts scrape submissions and feeds the worker queue.
type Manager struct {
	runs     RunStore
	products ProductStore
	queue    queue.Queue
	registry *profile.Registry
	logger   *slog.Logger
}

func NewManager(runs RunStore, products ProductStore, q queue.Queue, registry *profile.Registry, logger *slog.Logger) *Manager {
	return &Manager{
		runs:     runs,
		products: products,
		queue:    q,
		registry: registry,
		logger:   logger.With("component", "job_manager"),
	}
}

// Submit validates the retailer, persists a queued run and enqueues it.
// Blank URLs are dropped here so the stored run reflects what will actually
// be scraped.
func (m *Manager) Submit(ctx context.Context, retailer, category string, urls []string) (*models.ScrapeRun, error) {
	prof, err := m.registry.ByRetailer(retailer)
	if err != nil {
		return nil, err
	}

	targets := make([]string, 0, len(urls))
	for _, url := range urls {
		if strings.TrimSpace(url) != "" {
			targets = append(targets, strings.TrimSpace(url))
		}
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("no non-blank urls submitted")
	}

	run := &models.ScrapeRun{
		Retailer: prof.Retailer,
		Category: category,
		URLs:     targets,
	}
	if err := m.runs.Create(ctx, run); err != nil {
		return nil, err
	}

	if err := m.queue.Push(&queue.Task{RunID: run.ID, Retailer: run.Retailer}); err != nil {
		return nil, fmt.Errorf("failed to enqueue run: %w", err)
	}

	m.logger.Info("run submitted", "run_id", run.ID, "retailer", run.Retailer, "urls", len(targets))
	return run, nil
}

func (m *Manager) GetRun(ctx context.Context, id string) (*models.ScrapeRun, error) {
	return m.runs.GetByID(ctx, id)
}

func (m *Manager) GetRunProducts(ctx context.Context, id string) ([]models.Product, error) {
	if _, err := m.runs.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return m.products.ListByRun(ctx, id)
}

func (m *Manager) Profiles() []profile.Profile {
	return m.registry.All()
}

// RequeuePending re-enqueues runs that were still queued when the previous
// process stopped.
func (m *Manager) RequeuePending(ctx context.Context) error {
	ids, err := m.runs.QueuedIDs(ctx)
	if err != nil {
		return err
	}

	for _, id := range ids {
		if err := m.queue.Push(&queue.Task{RunID: id}); err != nil {
			return fmt.Errorf("failed to re-enqueue run %s: %w", id, err)
		}
	}

	if len(ids) > 0 {
		m.logger.Info("re-enqueued pending runs", "count", len(ids))
	}
	return nil
}
