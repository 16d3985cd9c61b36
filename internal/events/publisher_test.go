package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricelab/catalog-scraper/internal/models"
)

func TestStampPayloadFillsDefaults(t *testing.T) {
	payload := &RunCompletedPayload{RunID: "run-1"}
	stampPayload(&payload.EventID, &payload.EventType, &payload.Timestamp, &payload.Source, EventTypeRunCompleted)

	assert.NotEmpty(t, payload.EventID)
	assert.Equal(t, "catalog.run.completed", payload.EventType)
	assert.False(t, payload.Timestamp.IsZero())
	assert.Equal(t, "catalog-scraper", payload.Source)
}

func TestStampPayloadKeepsExplicitValues(t *testing.T) {
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	payload := &ProductsScrapedPayload{
		EventID:   "fixed-id",
		EventType: "custom.type",
		Timestamp: ts,
		Source:    "replay",
	}
	stampPayload(&payload.EventID, &payload.EventType, &payload.Timestamp, &payload.Source, EventTypeProductsScraped)

	assert.Equal(t, "fixed-id", payload.EventID)
	assert.Equal(t, "custom.type", payload.EventType)
	assert.Equal(t, ts, payload.Timestamp)
	assert.Equal(t, "replay", payload.Source)
}

func TestProductsScrapedPayloadJSON(t *testing.T) {
	old := 2.50
	payload := &ProductsScrapedPayload{
		RunID:    "run-1",
		Retailer: "atb",
		Category: "dairy",
		Products: []models.Product{
			models.NewProduct("Milk 2L", "dairy", 1.40, &old, nil, "-20%"),
		},
	}
	stampPayload(&payload.EventID, &payload.EventType, &payload.Timestamp, &payload.Source, EventTypeProductsScraped)

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "catalog.products.scraped", decoded["event_type"])

	products := decoded["products"].([]interface{})
	require.Len(t, products, 1)
	first := products[0].(map[string]interface{})
	assert.Equal(t, "Milk 2L", first["name"])
	assert.Equal(t, true, first["is_on_sale"])
}
