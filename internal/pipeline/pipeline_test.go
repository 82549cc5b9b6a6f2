package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/mfarias/fudo-analytics/internal/analytics"
	"github.com/mfarias/fudo-analytics/internal/domain"
	"github.com/mfarias/fudo-analytics/internal/fudo"
	"github.com/mfarias/fudo-analytics/internal/jobs"
	"github.com/mfarias/fudo-analytics/internal/metrics"
)

type mockFetcher struct {
	fetchFunc func(ctx context.Context, start, end time.Time, includeRelated bool) (*fudo.SalesBatch, error)
}

func (m *mockFetcher) FetchSales(ctx context.Context, start, end time.Time, includeRelated bool) (*fudo.SalesBatch, error) {
	return m.fetchFunc(ctx, start, end, includeRelated)
}

type mockArchiver struct {
	storeFunc func(ctx context.Context, bucket string, payload []byte, fetchedAt time.Time) (string, error)
}

func (m *mockArchiver) StorePayload(ctx context.Context, bucket string, payload []byte, fetchedAt time.Time) (string, error) {
	return m.storeFunc(ctx, bucket, payload, fetchedAt)
}

type mockLoader struct {
	insertFunc func(ctx context.Context, sales []domain.Sale) error
}

func (m *mockLoader) InsertSales(ctx context.Context, sales []domain.Sale) error {
	return m.insertFunc(ctx, sales)
}

func testNormalizer(t *testing.T) *analytics.Normalizer {
	t.Helper()
	n, err := analytics.NewNormalizer("UTC", zerolog.Nop())
	if err != nil {
		t.Fatalf("create normalizer: %v", err)
	}
	return n
}

func testBatch() *fudo.SalesBatch {
	return &fudo.SalesBatch{
		Records: []map[string]interface{}{
			{"id": "1", "attributes": map[string]interface{}{"createdAt": "2024-03-15T20:00:00Z", "total": 150.0}},
			{"id": "2", "attributes": map[string]interface{}{"createdAt": "2024-03-16T01:30:00Z", "total": 80.5}},
		},
		Included: map[string]map[string]interface{}{},
	}
}

func testJob() *jobs.RefreshSalesJob {
	return &jobs.RefreshSalesJob{
		JobID:             "job-1",
		StartDate:         civil.Date{Year: 2024, Month: 3, Day: 15},
		EndDate:           civil.Date{Year: 2024, Month: 3, Day: 15},
		IncludeCategories: true,
	}
}

func TestRun(t *testing.T) {
	var gotStart, gotEnd time.Time
	var gotInclude bool
	fetcher := &mockFetcher{
		fetchFunc: func(_ context.Context, start, end time.Time, includeRelated bool) (*fudo.SalesBatch, error) {
			gotStart, gotEnd, gotInclude = start, end, includeRelated
			return testBatch(), nil
		},
	}

	var archivedPayload []byte
	archiver := &mockArchiver{
		storeFunc: func(_ context.Context, bucket string, payload []byte, _ time.Time) (string, error) {
			if bucket != "raw-sales" {
				t.Errorf("expected bucket raw-sales, got %q", bucket)
			}
			archivedPayload = payload
			return "gs://raw-sales/raw/2024/03/15/abc.json", nil
		},
	}

	var loaded []domain.Sale
	loader := &mockLoader{
		insertFunc: func(_ context.Context, sales []domain.Sale) error {
			loaded = sales
			return nil
		},
	}

	p := New(fetcher, archiver, loader, testNormalizer(t), "raw-sales", time.UTC, zerolog.Nop())
	job := testJob()

	if err := p.Run(context.Background(), job); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	wantStart := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	if !gotStart.Equal(wantStart) {
		t.Errorf("expected fetch start %v, got %v", wantStart, gotStart)
	}
	wantEnd := time.Date(2024, 3, 16, 11, 59, 59, 0, time.UTC)
	if !gotEnd.Equal(wantEnd) {
		t.Errorf("expected fetch end %v, got %v", wantEnd, gotEnd)
	}
	if !gotInclude {
		t.Error("expected related entities to be requested")
	}

	if !strings.Contains(string(archivedPayload), `"2024-03-15T20:00:00Z"`) {
		t.Error("expected archived payload to carry the raw records")
	}
	if job.ArchiveURI != "gs://raw-sales/raw/2024/03/15/abc.json" {
		t.Errorf("unexpected archive uri %q", job.ArchiveURI)
	}

	if len(loaded) != 2 {
		t.Fatalf("expected 2 sales loaded, got %d", len(loaded))
	}
	if job.SalesLoaded != 2 {
		t.Errorf("expected SalesLoaded=2, got %d", job.SalesLoaded)
	}
}

func TestRunFetchError(t *testing.T) {
	fetcher := &mockFetcher{
		fetchFunc: func(context.Context, time.Time, time.Time, bool) (*fudo.SalesBatch, error) {
			return nil, errors.New("api unreachable")
		},
	}

	p := New(fetcher, nil, nil, testNormalizer(t), "", time.UTC, zerolog.Nop())
	job := testJob()

	err := p.Run(context.Background(), job)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "api unreachable") {
		t.Errorf("expected wrapped fetch error, got %v", err)
	}
	if job.SalesLoaded != 0 {
		t.Errorf("expected no sales loaded, got %d", job.SalesLoaded)
	}
}

func TestRunArchiveError(t *testing.T) {
	fetcher := &mockFetcher{
		fetchFunc: func(context.Context, time.Time, time.Time, bool) (*fudo.SalesBatch, error) {
			return testBatch(), nil
		},
	}
	archiver := &mockArchiver{
		storeFunc: func(context.Context, string, []byte, time.Time) (string, error) {
			return "", errors.New("bucket denied")
		},
	}
	loader := &mockLoader{
		insertFunc: func(context.Context, []domain.Sale) error {
			t.Fatal("loader should not run after archive failure")
			return nil
		},
	}

	p := New(fetcher, archiver, loader, testNormalizer(t), "raw-sales", time.UTC, zerolog.Nop())

	if err := p.Run(context.Background(), testJob()); err == nil {
		t.Fatal("expected error")
	}
}

func TestRunSkipsOptionalSteps(t *testing.T) {
	fetcher := &mockFetcher{
		fetchFunc: func(context.Context, time.Time, time.Time, bool) (*fudo.SalesBatch, error) {
			return testBatch(), nil
		},
	}

	p := New(fetcher, nil, nil, testNormalizer(t), "", time.UTC, zerolog.Nop())
	job := testJob()

	if err := p.Run(context.Background(), job); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if job.ArchiveURI != "" {
		t.Errorf("expected empty archive uri, got %q", job.ArchiveURI)
	}
	if job.SalesLoaded != 2 {
		t.Errorf("expected SalesLoaded=2, got %d", job.SalesLoaded)
	}
}

func TestLiveProvider(t *testing.T) {
	batch := testBatch()
	batch.Records[0]["relationships"] = map[string]interface{}{
		"items": map[string]interface{}{
			"data": []interface{}{
				map[string]interface{}{"type": "Item", "id": "i1"},
			},
		},
	}
	batch.Included = map[string]map[string]interface{}{
		"Item:i1": {
			"type": "Item", "id": "i1",
			"relationships": map[string]interface{}{
				"product": map[string]interface{}{
					"data": map[string]interface{}{"type": "Product", "id": "p1"},
				},
			},
		},
		"Product:p1": {
			"type": "Product", "id": "p1",
			"relationships": map[string]interface{}{
				"productCategory": map[string]interface{}{
					"data": map[string]interface{}{"type": "ProductCategory", "id": "c1"},
				},
			},
		},
		"ProductCategory:c1": {
			"type": "ProductCategory", "id": "c1",
			"attributes": map[string]interface{}{"name": "Drinks"},
		},
	}

	fetcher := &mockFetcher{
		fetchFunc: func(_ context.Context, _, _ time.Time, includeRelated bool) (*fudo.SalesBatch, error) {
			if !includeRelated {
				t.Error("expected related entities to be requested")
			}
			return batch, nil
		},
	}

	p := NewLiveProvider(fetcher, testNormalizer(t), time.UTC, zerolog.Nop())

	sales, graph, err := p.Sales(context.Background(),
		civil.Date{Year: 2024, Month: 3, Day: 15},
		civil.Date{Year: 2024, Month: 3, Day: 15})
	if err != nil {
		t.Fatalf("Sales failed: %v", err)
	}
	if len(sales) != 2 {
		t.Fatalf("expected 2 sales, got %d", len(sales))
	}
	if got := graph.CategoryOf("i1"); got != "Drinks" {
		t.Errorf("expected category Drinks, got %q", got)
	}
}

func TestLiveProviderFetchError(t *testing.T) {
	before := testutil.ToFloat64(metrics.FetchErrors)

	fetcher := &mockFetcher{
		fetchFunc: func(context.Context, time.Time, time.Time, bool) (*fudo.SalesBatch, error) {
			return nil, errors.New("api unreachable")
		},
	}
	p := NewLiveProvider(fetcher, testNormalizer(t), time.UTC, zerolog.Nop())

	_, _, err := p.Sales(context.Background(),
		civil.Date{Year: 2024, Month: 3, Day: 15},
		civil.Date{Year: 2024, Month: 3, Day: 15})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "api unreachable") {
		t.Errorf("expected wrapped fetch error, got %v", err)
	}
	if got := testutil.ToFloat64(metrics.FetchErrors); got != before+1 {
		t.Errorf("fetch error counter = %v, want %v", got, before+1)
	}
}
