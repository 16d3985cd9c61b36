package jobs

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pricelab/catalog-scraper/internal/database"
	"github.com/pricelab/catalog-scraper/internal/events"
	"github.com/pricelab/catalog-scraper/internal/models"
)

// TxFinalizer commits a finished run atomically: product rows, terminal run
// status and the outbox events land in one transaction, so the relay never
// announces a run whose products are missing.
type TxFinalizer struct {
	db        *database.DB
	runs      *database.RunRepository
	products  *database.ProductRepository
	publisher *events.Publisher
}

func NewTxFinalizer(db *database.DB, runs *database.RunRepository, products *database.ProductRepository, publisher *events.Publisher) *TxFinalizer {
	return &TxFinalizer{
		db:        db,
		runs:      runs,
		products:  products,
		publisher: publisher,
	}
}

func (f *TxFinalizer) Finalize(ctx context.Context, run *models.ScrapeRun, status models.RunStatus, products []models.Product, runErr string) error {
	err := f.db.Transaction(ctx, func(tx pgx.Tx) error {
		if err := f.products.InsertBatchWithTx(ctx, tx, run.ID, products); err != nil {
			return err
		}
		if err := f.runs.FinishWithTx(ctx, tx, run.ID, status, len(products), runErr); err != nil {
			return err
		}

		if err := f.publisher.PublishProductsScrapedWithTx(ctx, tx, &events.ProductsScrapedPayload{
			RunID:    run.ID,
			Retailer: run.Retailer,
			Category: run.Category,
			Products: products,
		}); err != nil {
			return err
		}

		return f.publisher.PublishRunCompletedWithTx(ctx, tx, &events.RunCompletedPayload{
			RunID:        run.ID,
			Retailer:     run.Retailer,
			Category:     run.Category,
			Status:       string(status),
			ProductCount: len(products),
			Error:        runErr,
		})
	})
	if err != nil {
		return fmt.Errorf("failed to finalize run %s: %w", run.ID, err)
	}

	return nil
}
