package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pricelab/catalog-scraper/internal/models"
)

// StructuredSelectors designates the child nodes a structured-markup retailer
// exposes for each product field, relative to the product node. An empty
// selector means the retailer has no such field.
type StructuredSelectors struct {
	Name      string
	Price     string
	OldPrice  string
	BulkPrice string
	Discount  string
}

// StructuredExtractor reads product fields from designated child nodes
// instead of scanning free text. Sale and bulk flags are derived exactly as
// in the free-text extractor.
type StructuredExtractor struct {
	sel        StructuredSelectors
	moneyToken *regexp.Regexp
}

func NewStructuredExtractor(sel StructuredSelectors) *StructuredExtractor {
	return &StructuredExtractor{
		sel:        sel,
		moneyToken: regexp.MustCompile(`\d+[.,]\d+`),
	}
}

// Extract parses one product node's markup. The record is retained only when
// the name comes out non-empty; everything else degrades to absent fields.
func (e *StructuredExtractor) Extract(nodeHTML, category string) (models.Product, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(nodeHTML))
	if err != nil {
		return models.Product{}, false
	}

	name := strings.TrimSpace(doc.Find(e.sel.Name).First().Text())
	if name == "" {
		return models.Product{}, false
	}

	var price float64
	if v := e.moneyAt(doc, e.sel.Price); v != nil {
		price = *v
	}
	oldPrice := e.moneyAt(doc, e.sel.OldPrice)
	bulkPrice := e.moneyAt(doc, e.sel.BulkPrice)

	var discount string
	if e.sel.Discount != "" {
		discount = strings.TrimSpace(doc.Find(e.sel.Discount).First().Text())
	}

	return models.NewProduct(name, category, price, oldPrice, bulkPrice, discount), true
}

func (e *StructuredExtractor) moneyAt(doc *goquery.Document, selector string) *float64 {
	if selector == "" {
		return nil
	}
	token := e.moneyToken.FindString(doc.Find(selector).First().Text())
	if token == "" {
		return nil
	}
	v, err := parseMoney(token)
	if err != nil {
		return nil
	}
	return &v
}
