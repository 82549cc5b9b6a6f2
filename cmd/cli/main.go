package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/mfarias/fudo-analytics/internal/analytics"
	"github.com/mfarias/fudo-analytics/internal/archive"
	"github.com/mfarias/fudo-analytics/internal/config"
	"github.com/mfarias/fudo-analytics/internal/fudo"
	"github.com/mfarias/fudo-analytics/internal/logger"
	"github.com/mfarias/fudo-analytics/internal/pipeline"
)

func main() {
	log := logger.New("cli")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "summary":
		runSummary(log)
	case "daily":
		runDaily(log)
	case "hourly":
		runHourly(log)
	case "categories":
		runCategories(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Fudo Analytics CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  summary     Print the key metrics for a date window")
	fmt.Println("  daily       Print the per-day sales table")
	fmt.Println("  hourly      Print the per-hour sales table")
	fmt.Println("  categories  Print the per-category ranking")
	fmt.Println("  help        Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

const maxWindowDays = 366

// validWindowDays reports whether a lookback length is usable as a window.
func validWindowDays(days int) bool {
	return days >= 1 && days <= maxWindowDays
}

// loadWindow parses the shared flags, loads the window through the provider
// and returns a ready analysis.
func loadWindow(name string, log zerolog.Logger) *analytics.Analysis {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	days := fs.Int("days", 30, "Lookback window in service days")
	sample := fs.Bool("sample", false, "Use generated sample data instead of the API")
	replay := fs.String("replay", "", "Read an archived payload (gs://bucket/object) instead of fetching")
	fs.Parse(os.Args[2:])

	if !validWindowDays(*days) {
		log.Fatal().Int("days", *days).Msg("days must be between 1 and 366")
	}

	cfg := config.Load()

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatal().Err(err).Str("timezone", cfg.Timezone).Msg("Invalid timezone")
	}

	normalizer, err := analytics.NewNormalizer(cfg.Timezone, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create normalizer")
	}

	if *replay != "" {
		return replayArchive(*replay, normalizer, log)
	}

	var fetcher pipeline.Fetcher = fudo.SampleClient{}
	if !*sample {
		client := fudo.NewClient(cfg.APIURL, cfg.AuthURL, cfg.APIKey, cfg.APISecret, log)
		if client.Configured() {
			fetcher = client
		} else {
			log.Warn().Msg("No Fudo credentials configured - using sample data")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	end := civil.DateOf(time.Now().In(loc))
	start := end.AddDays(-(*days - 1))

	provider := pipeline.NewLiveProvider(fetcher, normalizer, loc, log)
	sales, graph, err := provider.Sales(ctx, start, end)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load sales")
	}

	fmt.Printf("Window: %s .. %s (%d sales)\n\n", start, end, len(sales))
	return analytics.NewWithGraph(sales, graph)
}

// replayArchive rebuilds an analysis from a raw payload previously stored by
// the ingestion pipeline.
func replayArchive(uri string, normalizer *analytics.Normalizer, log zerolog.Logger) *analytics.Analysis {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	payload, err := archive.FetchPayload(ctx, uri)
	if err != nil {
		log.Fatal().Err(err).Str("uri", uri).Msg("Failed to fetch archived payload")
	}

	var batch fudo.SalesBatch
	if err := json.Unmarshal(payload, &batch); err != nil {
		log.Fatal().Err(err).Str("uri", uri).Msg("Archived payload is not a sales batch")
	}

	sales, err := normalizer.Normalize(batch.Records)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to normalize archived records")
	}

	fmt.Printf("Replay: %s (%d sales)\n\n", uri, len(sales))
	return analytics.NewWithGraph(sales, analytics.BuildEntityGraph(batch.Included))
}

func runSummary(log zerolog.Logger) {
	a := loadWindow("summary", log)
	s := a.Summary()

	fmt.Println("=== Key Metrics ===")
	fmt.Printf("Total sales:        %s\n", s.TotalSales.StringFixed(2))
	fmt.Printf("Transactions:       %d\n", s.TotalTransactions)
	fmt.Printf("Avg transaction:    %s\n", s.AvgTransaction.StringFixed(2))
	fmt.Printf("Median transaction: %s\n", s.MedianTransaction.StringFixed(2))
	fmt.Printf("Guests:             %d (avg %s per table)\n", s.TotalGuests, s.AvgGuests.StringFixed(1))
	if s.BestDay != nil {
		fmt.Printf("Best day:           %s (%s)\n", s.BestDay.Date, s.BestDay.Total.StringFixed(2))
	}
	if s.WorstDay != nil {
		fmt.Printf("Worst day:          %s (%s)\n", s.WorstDay.Date, s.WorstDay.Total.StringFixed(2))
	}
	if s.BestHour != nil {
		fmt.Printf("Best hour:          %02d:00 (%s)\n", s.BestHour.Hour, s.BestHour.Total.StringFixed(2))
	}
}

func runDaily(log zerolog.Logger) {
	a := loadWindow("daily", log)

	fmt.Println("=== Sales by Day ===")
	for _, row := range a.SalesByDay(true) {
		fmt.Printf("%s  %10s  %4d tx  %4d guests\n",
			row.Date, row.Total.StringFixed(2), row.Transactions, row.Guests)
	}
}

func runHourly(log zerolog.Logger) {
	a := loadWindow("hourly", log)

	fmt.Println("=== Sales by Hour ===")
	for _, row := range a.SalesByHour() {
		fmt.Printf("%s  %10s  %4d tx\n", row.Label, row.Total.StringFixed(2), row.Transactions)
	}
}

func runCategories(log zerolog.Logger) {
	a := loadWindow("categories", log)

	fmt.Println("=== Sales by Category ===")
	for i, row := range a.SalesByCategory() {
		fmt.Printf("%2d. %-20s %10s  %4d tx\n",
			i+1, row.Category, row.Total.StringFixed(2), row.Transactions)
	}
}
