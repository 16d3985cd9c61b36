// Package scraper orchestrates one catalog scrape: paced sequential
// navigation over a retailer's category URLs, challenge detection and
// recovery, selector resolution and field extraction, with cookie persistence
// along the way.
package scraper

import (
	"context"
	"errors"

	"github.com/pricelab/catalog-scraper/internal/driver"
	"github.com/pricelab/catalog-scraper/internal/models"
)

var (
	// ErrRunAborted marks a run terminated early after the site re-challenged
	// a session whose one solve was already consumed. Products accumulated
	// before the abort are still returned alongside it.
	ErrRunAborted = errors.New("run aborted after repeated challenge")
)

// Scraper is the engine seam the jobs worker and the CLI drive.
type Scraper interface {
	Scrape(ctx context.Context, urls []string, category string) ([]models.Product, error)
}

// SessionFactory hands out isolated browser sessions. The caller owns the
// returned session and must close it.
type SessionFactory interface {
	NewSession() (driver.Session, error)
}
