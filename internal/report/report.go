// Package report formats scrape results for the CLI: a CSV product listing
// and a short plain-text run summary.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/pricelab/catalog-scraper/internal/models"
)

var csvHeader = []string{
	"name", "category", "price", "old_price", "bulk_price", "is_bulk", "discount", "is_on_sale",
}

// WriteCSV writes products in encounter order. Absent optional fields stay
// empty rather than zero, so spreadsheets don't show phantom prices.
func WriteCSV(w io.Writer, products []models.Product) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, p := range products {
		record := []string{
			p.Name,
			p.Category,
			formatMoney(p.Price),
			formatOptionalMoney(p.OldPrice),
			formatOptionalMoney(p.BulkPrice),
			strconv.FormatBool(p.IsBulk),
			p.Discount,
			strconv.FormatBool(p.IsOnSale),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv record: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}

	return nil
}

// WriteSummary prints the run outcome in a few human-readable lines.
func WriteSummary(w io.Writer, retailer, category string, urls int, products []models.Product) error {
	onSale := 0
	bulk := 0
	for _, p := range products {
		if p.IsOnSale {
			onSale++
		}
		if p.IsBulk {
			bulk++
		}
	}

	_, err := fmt.Fprintf(w,
		"Retailer:   %s\nCategory:   %s\nURLs:       %d\nProducts:   %d\nOn sale:    %d\nBulk offers: %d\n",
		retailer, category, urls, len(products), onSale, bulk)
	if err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}

	return nil
}

func formatMoney(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatOptionalMoney(v *float64) string {
	if v == nil {
		return ""
	}
	return formatMoney(*v)
}
