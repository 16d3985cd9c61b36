package report

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricelab/catalog-scraper/internal/models"
)

func TestWriteCSV(t *testing.T) {
	old := 2.50
	bulk := 15.90
	products := []models.Product{
		models.NewProduct("Milk 2L", "Dairy", 1.40, nil, nil, ""),
		models.NewProduct("Bread", "Dairy", 1.80, &old, nil, "-28%"),
		models.NewProduct("Вода Моршинська", "Drinks", 18.40, nil, &bulk, ""),
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, products))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)

	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, []string{"Milk 2L", "Dairy", "1.40", "", "", "false", "", "false"}, records[1])
	assert.Equal(t, []string{"Bread", "Dairy", "1.80", "2.50", "", "false", "-28%", "true"}, records[2])
	assert.Equal(t, []string{"Вода Моршинська", "Drinks", "18.40", "", "15.90", "true", "", "false"}, records[3])
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1, "an empty run still gets a header")
}

func TestWriteSummary(t *testing.T) {
	old := 5.00
	products := []models.Product{
		models.NewProduct("Milk 2L", "Dairy", 1.40, nil, nil, ""),
		models.NewProduct("Сир", "Dairy", 4.00, &old, nil, "-20%"),
	}

	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, "atb", "Dairy", 3, products))

	out := buf.String()
	assert.Contains(t, out, "Retailer:   atb")
	assert.Contains(t, out, "URLs:       3")
	assert.Contains(t, out, "Products:   2")
	assert.Contains(t, out, "On sale:    1")
}
