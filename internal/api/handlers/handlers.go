package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/mfarias/fudo-analytics/internal/analytics"
	"github.com/mfarias/fudo-analytics/internal/api/middleware"
	"github.com/mfarias/fudo-analytics/internal/domain"
	"github.com/mfarias/fudo-analytics/internal/jobs"
)

const (
	defaultWindowDays = 30
	maxWindowDays     = 366
	defaultTopN       = 5
)

// SalesProvider loads normalized sales and the entity graph for a date window.
// Both dates are inclusive and interpreted as service dates.
type SalesProvider interface {
	Sales(ctx context.Context, start, end civil.Date) ([]domain.Sale, *analytics.EntityGraph, error)
}

// NarrativeFunc generates a plain-language reading of a sales summary.
type NarrativeFunc func(ctx context.Context, summary domain.Summary, daily []domain.DailySales) (string, error)

// AnalyticsHandler serves the aggregated sales views.
type AnalyticsHandler struct {
	provider SalesProvider
	loc      *time.Location
	now      func() time.Time
	log      zerolog.Logger
}

// NewAnalyticsHandler creates a handler for the sales endpoints.
func NewAnalyticsHandler(provider SalesProvider, loc *time.Location, log zerolog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		provider: provider,
		loc:      loc,
		now:      time.Now,
		log:      log,
	}
}

// Daily handles GET /api/sales/daily.
// Query params: days, fill, by=category, top_n.
func (h *AnalyticsHandler) Daily(w http.ResponseWriter, r *http.Request) {
	a, ok := h.analysis(w, r)
	if !ok {
		return
	}

	if crossedByCategory(r) {
		n, ok := topN(w, r)
		if !ok {
			return
		}
		middleware.WriteJSON(w, http.StatusOK, a.SalesByDayAndCategory(n))
		return
	}

	fill := queryBool(r, "fill", true)
	middleware.WriteJSON(w, http.StatusOK, a.SalesByDay(fill))
}

// Hourly handles GET /api/sales/hourly.
func (h *AnalyticsHandler) Hourly(w http.ResponseWriter, r *http.Request) {
	a, ok := h.analysis(w, r)
	if !ok {
		return
	}

	if crossedByCategory(r) {
		n, ok := topN(w, r)
		if !ok {
			return
		}
		middleware.WriteJSON(w, http.StatusOK, a.SalesByHourAndCategory(n))
		return
	}

	middleware.WriteJSON(w, http.StatusOK, a.SalesByHour())
}

// Weekday handles GET /api/sales/weekday.
func (h *AnalyticsHandler) Weekday(w http.ResponseWriter, r *http.Request) {
	a, ok := h.analysis(w, r)
	if !ok {
		return
	}

	middleware.WriteJSON(w, http.StatusOK, a.SalesByWeekday())
}

// Monthly handles GET /api/sales/monthly.
func (h *AnalyticsHandler) Monthly(w http.ResponseWriter, r *http.Request) {
	a, ok := h.analysis(w, r)
	if !ok {
		return
	}

	if crossedByCategory(r) {
		n, ok := topN(w, r)
		if !ok {
			return
		}
		middleware.WriteJSON(w, http.StatusOK, a.SalesByMonthAndCategory(n))
		return
	}

	middleware.WriteJSON(w, http.StatusOK, a.SalesByMonth())
}

// Categories handles GET /api/sales/categories.
func (h *AnalyticsHandler) Categories(w http.ResponseWriter, r *http.Request) {
	a, ok := h.analysis(w, r)
	if !ok {
		return
	}

	middleware.WriteJSON(w, http.StatusOK, a.SalesByCategory())
}

// Summary handles GET /api/summary.
func (h *AnalyticsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	a, ok := h.analysis(w, r)
	if !ok {
		return
	}

	middleware.WriteJSON(w, http.StatusOK, a.Summary())
}

// analysis loads the requested window and builds an analysis over it.
func (h *AnalyticsHandler) analysis(w http.ResponseWriter, r *http.Request) (*analytics.Analysis, bool) {
	start, end, err := h.window(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	sales, graph, err := h.provider.Sales(r.Context(), start, end)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load sales")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load sales")
		return nil, false
	}

	return analytics.NewWithGraph(sales, graph), true
}

// window resolves the [start, end] service-date window from query params.
// Explicit start_date/end_date take precedence over the days lookback.
func (h *AnalyticsHandler) window(r *http.Request) (civil.Date, civil.Date, error) {
	end := civil.DateOf(h.now().In(h.loc))
	if raw := r.URL.Query().Get("end_date"); raw != "" {
		parsed, err := civil.ParseDate(raw)
		if err != nil {
			return civil.Date{}, civil.Date{}, errors.New("invalid end_date, expected YYYY-MM-DD")
		}
		end = parsed
	}

	days := queryInt(r, "days", defaultWindowDays)
	if days < 1 || days > maxWindowDays {
		return civil.Date{}, civil.Date{}, errors.New("days must be between 1 and 366")
	}
	start := end.AddDays(-(days - 1))

	if raw := r.URL.Query().Get("start_date"); raw != "" {
		parsed, err := civil.ParseDate(raw)
		if err != nil {
			return civil.Date{}, civil.Date{}, errors.New("invalid start_date, expected YYYY-MM-DD")
		}
		start = parsed
	}

	if end.Before(start) {
		return civil.Date{}, civil.Date{}, errors.New("end_date is before start_date")
	}
	return start, end, nil
}

// InsightsHandler serves the AI narrative endpoint.
type InsightsHandler struct {
	provider  SalesProvider
	narrative NarrativeFunc
	loc       *time.Location
	now       func() time.Time
	log       zerolog.Logger
}

// NewInsightsHandler creates a handler for GET /api/insights.
func NewInsightsHandler(provider SalesProvider, narrative NarrativeFunc, loc *time.Location, log zerolog.Logger) *InsightsHandler {
	return &InsightsHandler{
		provider:  provider,
		narrative: narrative,
		loc:       loc,
		now:       time.Now,
		log:       log,
	}
}

// Insights handles GET /api/insights.
func (h *InsightsHandler) Insights(w http.ResponseWriter, r *http.Request) {
	if h.narrative == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Insights are not configured")
		return
	}

	end := civil.DateOf(h.now().In(h.loc))
	days := queryInt(r, "days", defaultWindowDays)
	if days < 1 || days > maxWindowDays {
		middleware.WriteError(w, http.StatusBadRequest, "days must be between 1 and 366")
		return
	}
	start := end.AddDays(-(days - 1))

	sales, graph, err := h.provider.Sales(r.Context(), start, end)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load sales")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load sales")
		return
	}

	a := analytics.NewWithGraph(sales, graph)
	text, err := h.narrative(r.Context(), a.Summary(), a.SalesByDay(true))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to generate insights")
		middleware.WriteError(w, http.StatusBadGateway, "Failed to generate insights")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"start_date": start.String(),
		"end_date":   end.String(),
		"narrative":  text,
	})
}

// JobsHandler serves the refresh job endpoints.
type JobsHandler struct {
	publisher jobs.Publisher
	store     jobs.JobStore
	loc       *time.Location
	now       func() time.Time
	log       zerolog.Logger
}

// NewJobsHandler creates a handler for job submission and status.
func NewJobsHandler(publisher jobs.Publisher, store jobs.JobStore, loc *time.Location, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		publisher: publisher,
		store:     store,
		loc:       loc,
		now:       time.Now,
		log:       log,
	}
}

type refreshRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// Refresh handles POST /api/refresh. The fetch runs asynchronously; the
// response carries the job id to poll.
func (h *JobsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if r.Body != nil {
		// An empty body means "refresh the default window".
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	end := civil.DateOf(h.now().In(h.loc))
	start := end.AddDays(-6)

	if req.EndDate != "" {
		parsed, err := civil.ParseDate(req.EndDate)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "invalid end_date, expected YYYY-MM-DD")
			return
		}
		end = parsed
	}
	if req.StartDate != "" {
		parsed, err := civil.ParseDate(req.StartDate)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "invalid start_date, expected YYYY-MM-DD")
			return
		}
		start = parsed
	}
	if end.Before(start) {
		middleware.WriteError(w, http.StatusBadRequest, "end_date is before start_date")
		return
	}

	job := &jobs.RefreshSalesJob{
		StartDate:         start,
		EndDate:           end,
		IncludeCategories: true,
		MaxRetries:        3,
	}

	if err := h.publisher.PublishRefresh(r.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue refresh job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue refresh job")
		return
	}

	h.log.Info().
		Str("job_id", job.JobID).
		Str("start_date", start.String()).
		Str("end_date", end.String()).
		Msg("Refresh job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, job)
}

// JobStatus handles GET /api/jobs/{id}.
func (h *JobsHandler) JobStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Missing job id")
		return
	}

	job, err := h.store.GetJob(r.Context(), id)
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs.
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	filter := jobs.JobFilter{
		Status: jobs.JobStatus(r.URL.Query().Get("status")),
		Limit:  queryInt(r, "limit", 20),
		Offset: queryInt(r, "offset", 0),
	}

	list, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, list)
}

// Health handles GET /healthz.
func Health(w http.ResponseWriter, _ *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func crossedByCategory(r *http.Request) bool {
	return r.URL.Query().Get("by") == "category"
}

// topN validates the top_n query param for the crossed category views.
// Writes a 400 and reports false when the value is below 1.
func topN(w http.ResponseWriter, r *http.Request) (int, bool) {
	n := queryInt(r, "top_n", defaultTopN)
	if n < 1 {
		middleware.WriteError(w, http.StatusBadRequest, "top_n must be at least 1")
		return 0, false
	}
	return n, true
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func queryBool(r *http.Request, name string, def bool) bool {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}
