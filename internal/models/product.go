package models

import (
	"time"
)

// Product is one scraped catalog entry. A record is built once per matched
// product node and never mutated afterwards; two scrapes of the same URL
// produce independent records.
type Product struct {
	Name      string   `json:"name"`
	Category  string   `json:"category"`
	Price     float64  `json:"price"`
	OldPrice  *float64 `json:"old_price,omitempty"`
	BulkPrice *float64 `json:"bulk_price,omitempty"`
	IsBulk    bool     `json:"is_bulk"`
	Discount  string   `json:"discount,omitempty"`
	IsOnSale  bool     `json:"is_on_sale"`
}

// NewProduct derives the sale and bulk flags from the parsed fields. A product
// counts as on sale only when the old price is strictly higher than the
// current one; old and bulk prices stay nil when they were not parsed from
// their own tokens.
func NewProduct(name, category string, price float64, oldPrice, bulkPrice *float64, discount string) Product {
	return Product{
		Name:      name,
		Category:  category,
		Price:     price,
		OldPrice:  oldPrice,
		BulkPrice: bulkPrice,
		IsBulk:    bulkPrice != nil,
		Discount:  discount,
		IsOnSale:  oldPrice != nil && *oldPrice > price,
	}
}

func (p *Product) Validate() []string {
	var errors []string

	if p.Name == "" {
		errors = append(errors, "Name is required")
	}

	if p.Price < 0 {
		errors = append(errors, "Price must not be negative")
	}

	if p.OldPrice != nil && *p.OldPrice < 0 {
		errors = append(errors, "Old price must not be negative")
	}

	return errors
}

type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusAborted   RunStatus = "aborted"
	RunStatusFailed    RunStatus = "failed"
)

// ScrapeRun is the persistent record of one scrape call submitted through the
// API or CLI. URLs keep their submission order; products reference the run.
type ScrapeRun struct {
	ID           string     `json:"id"`
	Retailer     string     `json:"retailer"`
	Category     string     `json:"category"`
	URLs         []string   `json:"urls"`
	Status       RunStatus  `json:"status"`
	ProductCount int        `json:"product_count"`
	Error        string     `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

func (r *ScrapeRun) IsTerminal() bool {
	switch r.Status {
	case RunStatusCompleted, RunStatusAborted, RunStatusFailed:
		return true
	}
	return false
}
