// Package extract turns matched catalog page nodes into product records. It
// has no browser dependency beyond the node handles handed to it and performs
// no I/O.
package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pricelab/catalog-scraper/internal/models"
)

// weightUnits are the bare unit abbreviations a quantity line ends with
// ("900 г", "0.5 l"). Such lines are never picked as the product name.
var weightUnits = map[string]struct{}{
	"г":  {},
	"кг": {},
	"мл": {},
	"л":  {},
	"g":  {},
	"kg": {},
	"ml": {},
	"l":  {},
}

// Extractor recovers structured product fields from the loosely formatted
// text of one catalog node. Extract is pure and never fails: unparseable
// fields are simply left absent.
type Extractor struct {
	moneyToken  *regexp.Regexp
	moneyLine   *regexp.Regexp
	percentLine *regexp.Regexp
	discount    *regexp.Regexp
	lineBreaks  *strings.Replacer
}

func NewExtractor() *Extractor {
	return &Extractor{
		moneyToken:  regexp.MustCompile(`\d+[.,]\d+`),
		moneyLine:   regexp.MustCompile(`(?i)^[\d.,]+\s*(?:грн|uah|₴)?$`),
		percentLine: regexp.MustCompile(`^-?\d+%$`),
		discount:    regexp.MustCompile(`-?\d+%`),
		lineBreaks:  strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " "),
	}
}

// Extract parses rawText into a Product with the given caller-assigned
// category. It reports ok=false when the text is blank, in which case the
// node produces no record at all.
//
// The first money-like token becomes the price and the second, when present,
// the old price; the price is never inferred from the old price or vice
// versa. The first percent token is kept verbatim as the discount label.
func (e *Extractor) Extract(rawText, category string) (models.Product, bool) {
	normalized := e.lineBreaks.Replace(rawText)
	if strings.TrimSpace(normalized) == "" {
		return models.Product{}, false
	}

	var price float64
	var oldPrice *float64
	tokens := e.moneyToken.FindAllString(normalized, 2)
	if len(tokens) > 0 {
		if v, err := parseMoney(tokens[0]); err == nil {
			price = v
		}
	}
	if len(tokens) > 1 {
		if v, err := parseMoney(tokens[1]); err == nil {
			oldPrice = &v
		}
	}

	discount := e.discount.FindString(normalized)
	name := e.deriveName(splitLines(rawText), normalized)

	return models.NewProduct(name, category, price, oldPrice, nil, discount), true
}

// deriveName picks the longest line that is neither a bare money/percent
// token nor a quantity line, preferring earlier lines on ties. With no
// surviving candidate it falls back to the first line, then to the
// normalized text.
func (e *Extractor) deriveName(lines []string, normalized string) string {
	var name string
	for _, line := range lines {
		if e.moneyLine.MatchString(line) || e.percentLine.MatchString(line) || endsWithWeightUnit(line) {
			continue
		}
		if utf8.RuneCountInString(line) > utf8.RuneCountInString(name) {
			name = line
		}
	}
	if name != "" {
		return name
	}
	if len(lines) > 0 {
		return lines[0]
	}
	return strings.TrimSpace(normalized)
}

func splitLines(raw string) []string {
	var lines []string
	for _, line := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func endsWithWeightUnit(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	last := strings.ToLower(strings.TrimSuffix(fields[len(fields)-1], "."))
	_, ok := weightUnits[last]
	return ok
}

func parseMoney(token string) (float64, error) {
	token = strings.Replace(token, ",", ".", -1)
	token = strings.TrimSpace(token)
	return strconv.ParseFloat(token, 64)
}
