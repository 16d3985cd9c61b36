package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pricelab/catalog-scraper/internal/models"
)

var ErrRunNotFound = errors.New("scrape run not found")

// RunRepository persists scrape runs through their queued → running →
// terminal lifecycle.
type RunRepository struct {
	db *DB
}

func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a run in queued state. A zero ID is assigned.
func (r *RunRepository) Create(ctx context.Context, run *models.ScrapeRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.Status == "" {
		run.Status = models.RunStatusQueued
	}
	run.CreatedAt = time.Now()

	query := `
		INSERT INTO scrape_run (id, retailer, category, urls, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.pool.Exec(ctx, query,
		run.ID, run.Retailer, run.Category, run.URLs, string(run.Status), run.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert scrape run: %w", err)
	}

	return nil
}

func (r *RunRepository) GetByID(ctx context.Context, id string) (*models.ScrapeRun, error) {
	query := `
		SELECT id, retailer, category, urls, status, product_count,
			COALESCE(error, ''), created_at, started_at, finished_at
		FROM scrape_run
		WHERE id = $1`

	run := &models.ScrapeRun{}
	err := r.db.pool.QueryRow(ctx, query, id).Scan(
		&run.ID, &run.Retailer, &run.Category, &run.URLs, &run.Status,
		&run.ProductCount, &run.Error, &run.CreatedAt, &run.StartedAt, &run.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scrape run: %w", err)
	}

	return run, nil
}

// Claim moves a queued run to running. It reports false when another worker
// got there first or the run is no longer queued; claiming uses SKIP LOCKED
// so two workers never block on the same row.
func (r *RunRepository) Claim(ctx context.Context, id string) (bool, error) {
	var claimed bool
	err := r.db.Transaction(ctx, func(tx pgx.Tx) error {
		var lockedID string
		err := tx.QueryRow(ctx, `
			SELECT id FROM scrape_run
			WHERE id = $1 AND status = 'queued'
			FOR UPDATE SKIP LOCKED`, id).Scan(&lockedID)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to lock run: %w", err)
		}

		_, err = tx.Exec(ctx, `
			UPDATE scrape_run SET status = 'running', started_at = NOW()
			WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to mark run running: %w", err)
		}

		claimed = true
		return nil
	})

	return claimed, err
}

// FinishWithTx finalizes a run inside the caller's transaction, so the
// terminal status, the product rows and the outbox events commit atomically.
func (r *RunRepository) FinishWithTx(ctx context.Context, tx pgx.Tx, id string, status models.RunStatus, productCount int, runErr string) error {
	result, err := tx.Exec(ctx, `
		UPDATE scrape_run
		SET status = $1, product_count = $2, error = NULLIF($3, ''), finished_at = NOW()
		WHERE id = $4`,
		string(status), productCount, runErr, id)
	if err != nil {
		return fmt.Errorf("failed to finalize run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	return nil
}

// QueuedIDs returns queued runs in submission order, for re-enqueueing after
// a restart.
func (r *RunRepository) QueuedIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id FROM scrape_run WHERE status = 'queued' ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list queued runs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan run id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return ids, nil
}

// ProductRepository persists the products a run discovered.
type ProductRepository struct {
	db *DB
}

func NewProductRepository(db *DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// InsertBatchWithTx stores products in encounter order inside the caller's
// transaction. Position preserves the order nodes were met across URLs.
func (r *ProductRepository) InsertBatchWithTx(ctx context.Context, tx pgx.Tx, runID string, products []models.Product) error {
	query := `
		INSERT INTO product (
			id, run_id, position, name, category,
			price, old_price, bulk_price, is_bulk, discount, is_on_sale
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11)`

	for i, p := range products {
		_, err := tx.Exec(ctx, query,
			uuid.New(), runID, i, p.Name, p.Category,
			p.Price, p.OldPrice, p.BulkPrice, p.IsBulk, p.Discount, p.IsOnSale)
		if err != nil {
			return fmt.Errorf("failed to insert product %q: %w", p.Name, err)
		}
	}

	return nil
}

// ListByRun returns a run's products in encounter order.
func (r *ProductRepository) ListByRun(ctx context.Context, runID string) ([]models.Product, error) {
	query := `
		SELECT name, category, price, old_price, bulk_price,
			is_bulk, COALESCE(discount, ''), is_on_sale
		FROM product
		WHERE run_id = $1
		ORDER BY position ASC`

	rows, err := r.db.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := make([]models.Product, 0)
	for rows.Next() {
		var p models.Product
		err := rows.Scan(&p.Name, &p.Category, &p.Price, &p.OldPrice, &p.BulkPrice,
			&p.IsBulk, &p.Discount, &p.IsOnSale)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return products, nil
}
