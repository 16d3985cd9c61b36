package extract

import (
	"log/slog"

	"github.com/pricelab/catalog-scraper/internal/driver"
)

// NodeQuerier is the slice of the browser session the cascade needs.
type NodeQuerier interface {
	QueryAll(selector string) ([]driver.Node, error)
}

// Cascade resolves product nodes by trying candidate selectors in priority
// order. The first selector yielding at least one node wins and later
// candidates are never consulted, so one page never mixes node shapes from
// two selectors.
type Cascade struct {
	logger *slog.Logger
}

func NewCascade(logger *slog.Logger) *Cascade {
	return &Cascade{logger: logger.With("component", "cascade")}
}

// Resolve returns the matched nodes and the selector that produced them. No
// selector matching is not an error: the result is simply empty. A selector
// that fails to evaluate is logged and skipped in favor of the next
// candidate.
func (c *Cascade) Resolve(page NodeQuerier, selectors []string) ([]driver.Node, string) {
	for _, selector := range selectors {
		nodes, err := page.QueryAll(selector)
		if err != nil {
			c.logger.Warn("selector query failed", "selector", selector, "error", err)
			continue
		}
		if len(nodes) > 0 {
			c.logger.Debug("selector matched", "selector", selector, "nodes", len(nodes))
			return nodes, selector
		}
	}
	return nil, ""
}
