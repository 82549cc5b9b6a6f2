package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mfarias/fudo-analytics/internal/analytics"
	"github.com/mfarias/fudo-analytics/internal/domain"
	"github.com/mfarias/fudo-analytics/internal/fudo"
	"github.com/mfarias/fudo-analytics/internal/jobs"
	"github.com/mfarias/fudo-analytics/internal/metrics"
)

// Fetcher pulls a raw sales batch from the Fudo API.
type Fetcher interface {
	FetchSales(ctx context.Context, start, end time.Time, includeRelated bool) (*fudo.SalesBatch, error)
}

// Archiver stores the raw payload before any transformation, so a batch can
// be replayed when the normalizer changes.
type Archiver interface {
	StorePayload(ctx context.Context, bucket string, payload []byte, fetchedAt time.Time) (string, error)
}

// Loader writes normalized sales to the warehouse.
type Loader interface {
	InsertSales(ctx context.Context, sales []domain.Sale) error
}

// Pipeline runs a sales refresh end to end: fetch from the Fudo API, archive
// the raw payload, normalize the records and load them into the warehouse.
type Pipeline struct {
	fetcher    Fetcher
	archiver   Archiver
	loader     Loader
	normalizer *analytics.Normalizer
	bucket     string
	loc        *time.Location
	now        func() time.Time
	log        zerolog.Logger
}

// New creates a refresh pipeline. Archiver and loader may be nil, which skips
// the corresponding step; the fetcher and normalizer are required.
func New(fetcher Fetcher, archiver Archiver, loader Loader, normalizer *analytics.Normalizer, bucket string, loc *time.Location, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		fetcher:    fetcher,
		archiver:   archiver,
		loader:     loader,
		normalizer: normalizer,
		bucket:     bucket,
		loc:        loc,
		now:        time.Now,
		log:        log,
	}
}

// Run executes a refresh job, recording progress on the job itself.
func (p *Pipeline) Run(ctx context.Context, job *jobs.RefreshSalesJob) error {
	// 1. Fetch the raw batch for the service-date window.
	from, to := analytics.ServiceWindow(job.StartDate, job.EndDate, p.loc)
	batch, err := p.fetcher.FetchSales(ctx, from, to, job.IncludeCategories)
	if err != nil {
		metrics.FetchErrors.Inc()
		return fmt.Errorf("Run: fetching sales: %w", err)
	}

	p.log.Info().
		Str("job_id", job.JobID).
		Int("records", len(batch.Records)).
		Int("included", len(batch.Included)).
		Msg("Fetched sales batch")

	// 2. Archive the raw payload before touching it.
	if p.archiver != nil && p.bucket != "" {
		payload, err := json.Marshal(batch)
		if err != nil {
			return fmt.Errorf("Run: encoding payload: %w", err)
		}
		uri, err := p.archiver.StorePayload(ctx, p.bucket, payload, p.now())
		if err != nil {
			return fmt.Errorf("Run: archiving payload: %w", err)
		}
		job.ArchiveURI = uri
	}

	// 3. Normalize into the canonical sale shape.
	sales, err := p.normalizer.Normalize(batch.Records)
	if err != nil {
		return fmt.Errorf("Run: normalizing records: %w", err)
	}

	// 4. Load into the warehouse.
	if p.loader != nil {
		if err := p.loader.InsertSales(ctx, sales); err != nil {
			return fmt.Errorf("Run: loading sales: %w", err)
		}
	}

	job.SalesLoaded = len(sales)
	metrics.SalesIngested.Add(float64(len(sales)))

	p.log.Info().
		Str("job_id", job.JobID).
		Int("sales_loaded", len(sales)).
		Str("archive_uri", job.ArchiveURI).
		Msg("Refresh completed")

	return nil
}
