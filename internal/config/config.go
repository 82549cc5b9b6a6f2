package config

import (
	"os"

	"github.com/mfarias/fudo-analytics/internal/analytics"
)

// Config holds the application configuration, read from environment
// variables with sensible defaults. Secrets (API key/secret) have no
// defaults and stay empty when unset; the Fudo client then falls back to
// sample data for offline development.
type Config struct {
	// Fudo API endpoints and credentials.
	APIURL    string
	AuthURL   string
	APIKey    string
	APISecret string

	// Timezone is the IANA zone all timestamps are converted to before
	// bucketing.
	Timezone string

	// Bucket is the GCS bucket for raw payload archival. Empty disables
	// archival.
	Bucket string

	// BigQuery destination for normalized sales. Empty project disables the
	// warehouse.
	Project string
	Dataset string

	// Port for the dashboard API server.
	Port string

	// InsightsModel is the Gemini model used for narrative summaries.
	InsightsModel string
}

const (
	defaultAPIURL        = "https://api.fu.do/v1alpha1"
	defaultAuthURL       = "https://auth.fu.do/api"
	stagingAPIURL        = "https://api.staging.fu.do/v1alpha1"
	stagingAuthURL       = "https://auth.staging.fu.do/api"
	defaultDataset       = "sales"
	defaultPort          = "8080"
	defaultInsightsModel = "gemini-2.0-flash"
)

// Load reads the configuration from the environment. FUDO_ENV=staging
// switches both endpoints to the staging stack unless explicit URLs are set.
func Load() *Config {
	apiURL := os.Getenv("FUDO_API_URL")
	authURL := os.Getenv("FUDO_AUTH_URL")
	if os.Getenv("FUDO_ENV") == "staging" {
		if apiURL == "" {
			apiURL = stagingAPIURL
		}
		if authURL == "" {
			authURL = stagingAuthURL
		}
	}

	return &Config{
		APIURL:        getenv(apiURL, defaultAPIURL),
		AuthURL:       getenv(authURL, defaultAuthURL),
		APIKey:        os.Getenv("FUDO_API_KEY"),
		APISecret:     os.Getenv("FUDO_API_SECRET"),
		Timezone:      getenv(os.Getenv("TIMEZONE"), analytics.DefaultTimezone),
		Bucket:        os.Getenv("GCS_BUCKET"),
		Project:       os.Getenv("BQ_PROJECT"),
		Dataset:       getenv(os.Getenv("BQ_DATASET"), defaultDataset),
		Port:          getenv(os.Getenv("PORT"), defaultPort),
		InsightsModel: getenv(os.Getenv("INSIGHTS_MODEL"), defaultInsightsModel),
	}
}

func getenv(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
