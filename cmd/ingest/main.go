package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"github.com/mfarias/fudo-analytics/internal/analytics"
	"github.com/mfarias/fudo-analytics/internal/archive"
	"github.com/mfarias/fudo-analytics/internal/config"
	"github.com/mfarias/fudo-analytics/internal/fudo"
	"github.com/mfarias/fudo-analytics/internal/jobs"
	"github.com/mfarias/fudo-analytics/internal/logger"
	"github.com/mfarias/fudo-analytics/internal/pipeline"
	"github.com/mfarias/fudo-analytics/internal/warehouse"
)

// ingest runs one refresh synchronously: fetch a service-date window from the
// Fudo API, archive the raw payload and load the normalized sales into
// BigQuery. Meant for cron and backfills.
func main() {
	var (
		startFlag = flag.String("start", "", "First service date, YYYY-MM-DD (default: 7 days ago)")
		endFlag   = flag.String("end", "", "Last service date, YYYY-MM-DD (default: today)")
		sample    = flag.Bool("sample", false, "Use generated sample data instead of the API")
	)
	flag.Parse()

	cfg := config.Load()
	log := logger.New("ingest")

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatal().Err(err).Str("timezone", cfg.Timezone).Msg("Invalid timezone")
	}

	end := civil.DateOf(time.Now().In(loc))
	start := end.AddDays(-6)
	if *endFlag != "" {
		if end, err = civil.ParseDate(*endFlag); err != nil {
			log.Fatal().Err(err).Msg("Invalid -end date")
		}
	}
	if *startFlag != "" {
		if start, err = civil.ParseDate(*startFlag); err != nil {
			log.Fatal().Err(err).Msg("Invalid -start date")
		}
	}
	if end.Before(start) {
		log.Fatal().Msg("-end is before -start")
	}

	normalizer, err := analytics.NewNormalizer(cfg.Timezone, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create normalizer")
	}

	var fetcher pipeline.Fetcher = fudo.SampleClient{}
	if !*sample {
		client := fudo.NewClient(cfg.APIURL, cfg.AuthURL, cfg.APIKey, cfg.APISecret, log)
		if !client.Configured() {
			log.Fatal().Msg("No Fudo credentials configured (or pass -sample)")
		}
		fetcher = client
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	var loader pipeline.Loader
	if cfg.Project != "" {
		repo, err := warehouse.NewRepository(ctx, cfg.Project, cfg.Dataset)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create warehouse repository")
		}
		defer repo.Close()
		loader = repo
	} else {
		log.Warn().Msg("No BigQuery project configured - warehouse load disabled")
	}

	var archiver pipeline.Archiver
	if cfg.Bucket != "" {
		archiver = archive.GCS{}
	} else {
		log.Warn().Msg("No GCS bucket configured - raw payload archival disabled")
	}

	p := pipeline.New(fetcher, archiver, loader, normalizer, cfg.Bucket, loc, log)

	job := &jobs.RefreshSalesJob{
		JobID:             "ingest",
		StartDate:         start,
		EndDate:           end,
		IncludeCategories: true,
	}

	log.Info().
		Str("start", start.String()).
		Str("end", end.String()).
		Msg("Starting ingest")

	if err := p.Run(ctx, job); err != nil {
		log.Fatal().Err(err).Msg("Ingest failed")
	}

	fmt.Printf("Loaded %d sales", job.SalesLoaded)
	if job.ArchiveURI != "" {
		fmt.Printf(" (raw payload at %s)", job.ArchiveURI)
	}
	fmt.Println()
}
