package jobs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricelab/catalog-scraper/internal/models"
	"github.com/pricelab/catalog-scraper/internal/profile"
	"github.com/pricelab/catalog-scraper/internal/queue"
)

type fakeProductStore struct {
	products map[string][]models.Product
}

func (s *fakeProductStore) ListByRun(ctx context.Context, runID string) ([]models.Product, error) {
	return s.products[runID], nil
}

func TestManagerSubmit(t *testing.T) {
	store := newFakeRunStore()
	q := queue.NewInMemoryQueue()
	m := NewManager(store, &fakeProductStore{}, q, profile.Default(), testLogger())

	run, err := m.Submit(context.Background(), "atb", "Dairy", []string{"u1", "", "  ", "u2"})
	require.NoError(t, err)

	assert.Equal(t, "atb", run.Retailer)
	assert.Equal(t, []string{"u1", "u2"}, run.URLs, "blank URLs are dropped at submission")
	assert.Equal(t, models.RunStatusQueued, run.Status)
	assert.Equal(t, 1, q.Size())

	task, err := q.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, run.ID, task.RunID)
}

func TestManagerSubmitUnknownRetailer(t *testing.T) {
	m := NewManager(newFakeRunStore(), &fakeProductStore{}, queue.NewInMemoryQueue(), profile.Default(), testLogger())

	_, err := m.Submit(context.Background(), "nosuchshop", "Dairy", []string{"u1"})
	assert.ErrorIs(t, err, profile.ErrUnknownRetailer)
}

func TestManagerSubmitNoURLs(t *testing.T) {
	m := NewManager(newFakeRunStore(), &fakeProductStore{}, queue.NewInMemoryQueue(), profile.Default(), testLogger())

	_, err := m.Submit(context.Background(), "atb", "Dairy", []string{"", "   "})
	assert.Error(t, err)
}

func TestManagerRequeuePending(t *testing.T) {
	store := newFakeRunStore()
	store.queued = []string{"run-a", "run-b"}
	q := queue.NewInMemoryQueue()
	m := NewManager(store, &fakeProductStore{}, q, profile.Default(), testLogger())

	require.NoError(t, m.RequeuePending(context.Background()))
	assert.Equal(t, 2, q.Size())
}

func TestManagerGetRunProducts(t *testing.T) {
	store := newFakeRunStore()
	run := &models.ScrapeRun{Retailer: "atb", Category: "Dairy", URLs: []string{"u1"}}
	require.NoError(t, store.Create(context.Background(), run))

	products := &fakeProductStore{products: map[string][]models.Product{
		run.ID: {models.NewProduct("Milk 2L", "Dairy", 1.40, nil, nil, "")},
	}}
	m := NewManager(store, products, queue.NewInMemoryQueue(), profile.Default(), testLogger())

	got, err := m.GetRunProducts(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Milk 2L", got[0].Name)

	_, err = m.GetRunProducts(context.Background(), "missing")
	assert.Error(t, err)
}
