package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mfarias/fudo-analytics/internal/analytics"
	"github.com/mfarias/fudo-analytics/internal/api/handlers"
	"github.com/mfarias/fudo-analytics/internal/api/middleware"
	"github.com/mfarias/fudo-analytics/internal/archive"
	"github.com/mfarias/fudo-analytics/internal/config"
	"github.com/mfarias/fudo-analytics/internal/domain"
	"github.com/mfarias/fudo-analytics/internal/fudo"
	"github.com/mfarias/fudo-analytics/internal/insights"
	"github.com/mfarias/fudo-analytics/internal/jobs"
	"github.com/mfarias/fudo-analytics/internal/jobs/inmemory"
	"github.com/mfarias/fudo-analytics/internal/logger"
	"github.com/mfarias/fudo-analytics/internal/metrics"
	"github.com/mfarias/fudo-analytics/internal/pipeline"
	"github.com/mfarias/fudo-analytics/internal/warehouse"
)

func main() {
	cfg := config.Load()
	log := logger.New("api")

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatal().Err(err).Str("timezone", cfg.Timezone).Msg("Invalid timezone")
	}

	normalizer, err := analytics.NewNormalizer(cfg.Timezone, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create normalizer")
	}

	// Fall back to generated sample data when no credentials are set, so the
	// dashboard works out of the box.
	var fetcher pipeline.Fetcher
	client := fudo.NewClient(cfg.APIURL, cfg.AuthURL, cfg.APIKey, cfg.APISecret, log)
	if client.Configured() {
		fetcher = client
	} else {
		log.Warn().Msg("No Fudo credentials configured - serving sample data")
		fetcher = fudo.SampleClient{}
	}

	ctx := context.Background()

	// The warehouse is optional; without a project the refresh jobs only
	// fetch and archive.
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

	refresh := pipeline.New(fetcher, archiver, loader, normalizer, cfg.Bucket, loc, log)

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	go func() {
		log.Info().Msg("Starting refresh worker")
		handler := func(ctx context.Context, job *jobs.RefreshSalesJob) error {
			return refresh.Run(ctx, job)
		}
		if err := jobQueue.Start(workerCtx, handler); err != nil {
			log.Error().Err(err).Msg("Refresh worker stopped with error")
		}
	}()

	provider := pipeline.NewLiveProvider(fetcher, normalizer, loc, log)

	narrative := func(ctx context.Context, summary domain.Summary, daily []domain.DailySales) (string, error) {
		return insights.Narrative(ctx, cfg.InsightsModel, summary, daily)
	}

	analyticsHandler := handlers.NewAnalyticsHandler(provider, loc, log)
	insightsHandler := handlers.NewInsightsHandler(provider, narrative, loc, log)
	jobsHandler := handlers.NewJobsHandler(jobQueue, jobStore, loc, log)

	mux := http.NewServeMux()
	route := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, middleware.Instrument(pattern, h))
	}

	route("GET /api/sales/daily", analyticsHandler.Daily)
	route("GET /api/sales/hourly", analyticsHandler.Hourly)
	route("GET /api/sales/weekday", analyticsHandler.Weekday)
	route("GET /api/sales/monthly", analyticsHandler.Monthly)
	route("GET /api/sales/categories", analyticsHandler.Categories)
	route("GET /api/summary", analyticsHandler.Summary)
	route("GET /api/insights", insightsHandler.Insights)
	route("POST /api/refresh", jobsHandler.Refresh)
	route("GET /api/jobs", jobsHandler.ListJobs)
	route("GET /api/jobs/{id}", jobsHandler.JobStatus)
	route("GET /healthz", handlers.Health)
	mux.Handle("GET /metrics", metrics.Handler())

	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.CORS(mux),
		),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}
