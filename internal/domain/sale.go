package domain

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Sale represents one normalized point-of-sale transaction. It is produced by
// the analytics normalizer from a raw Fudo JSON:API record and is immutable
// after construction.
type Sale struct {
	// ID is unique within a loaded batch. When the upstream record carries no
	// usable identifier the normalizer assigns a 1-based sequence number.
	ID string

	// Timestamp is the zone-converted instant of the sale. A zero Timestamp
	// means the record's timestamp could not be parsed; such sales are kept
	// for ungrouped totals but excluded from time-bucketed views.
	Timestamp time.Time

	// Amount is the sale total. Unparseable amounts are coerced to zero
	// during normalization, never left missing.
	Amount decimal.Decimal

	// PartySize is the number of guests on the sale, zero when unknown.
	PartySize int

	// ItemRefs holds the ids of the sale's line items, in relationship order.
	// They are opaque references into the JSON:API "included" side-table.
	ItemRefs []string
}

// HasTimestamp reports whether the sale carries a parseable timestamp.
func (s Sale) HasTimestamp() bool {
	return !s.Timestamp.IsZero()
}

// DailySales is one row of the by-service-day view.
type DailySales struct {
	Date         civil.Date      `json:"date"`
	Total        decimal.Decimal `json:"total_sales"`
	Average      decimal.Decimal `json:"avg_sale"`
	Transactions int             `json:"num_transactions"`
	Guests       int             `json:"guests"`
}

// HourlySales is one row of the by-hour view. Rows are emitted in service
// order, starting at noon and wrapping through 11:00.
type HourlySales struct {
	Hour         int             `json:"hour"`
	Label        string          `json:"hour_label"`
	Total        decimal.Decimal `json:"total_sales"`
	Average      decimal.Decimal `json:"avg_sale"`
	Transactions int             `json:"num_transactions"`
	Guests       int             `json:"guests"`
}

// WeekdaySales is one row of the by-weekday view, keyed by the weekday of the
// service date rather than the raw calendar date.
type WeekdaySales struct {
	Weekday      time.Weekday    `json:"-"`
	Name         string          `json:"weekday"`
	Total        decimal.Decimal `json:"total_sales"`
	Average      decimal.Decimal `json:"avg_sale"`
	Transactions int             `json:"num_transactions"`
	Guests       int             `json:"guests"`
}

// MonthlySales is one row of the by-month view. Month is formatted YYYY-MM.
type MonthlySales struct {
	Month        string          `json:"month"`
	Total        decimal.Decimal `json:"total_sales"`
	Average      decimal.Decimal `json:"avg_sale"`
	Transactions int             `json:"num_transactions"`
	Guests       int             `json:"guests"`
}

// CategorySales is one row of the by-category view, ranked by total.
type CategorySales struct {
	Category     string          `json:"category"`
	Total        decimal.Decimal `json:"total_sales"`
	Average      decimal.Decimal `json:"avg_sale"`
	Transactions int             `json:"num_transactions"`
}

// BucketCategorySales is one row of a time-bucket × category crossed view.
// Bucket is a service date (YYYY-MM-DD), an hour label (HH:00) or a month
// (YYYY-MM) depending on the view that produced it.
type BucketCategorySales struct {
	Bucket       string          `json:"bucket"`
	Category     string          `json:"category"`
	Total        decimal.Decimal `json:"total_sales"`
	Transactions int             `json:"num_transactions"`
}

// DayTotal points at a single service day and its total, used for the
// best/worst day fields of the summary.
type DayTotal struct {
	Date  civil.Date      `json:"date"`
	Total decimal.Decimal `json:"sales"`
}

// HourTotal points at a single hour of day and its total.
type HourTotal struct {
	Hour  int             `json:"hour"`
	Total decimal.Decimal `json:"sales"`
}

// Summary holds the key business metrics for a batch of sales. A batch with
// no sales yields the zero Summary, not an error.
type Summary struct {
	TotalSales        decimal.Decimal `json:"total_sales"`
	TotalTransactions int             `json:"total_transactions"`
	AvgTransaction    decimal.Decimal `json:"avg_transaction"`
	MedianTransaction decimal.Decimal `json:"median_transaction"`
	TotalGuests       int             `json:"total_guests"`
	AvgGuests         decimal.Decimal `json:"avg_guests"`

	// BestDay and WorstDay are chosen only among days whose total is
	// positive, so a day that genuinely sold nothing is never reported as
	// the worst day. Nil when no day qualifies.
	BestDay  *DayTotal `json:"best_day,omitempty"`
	WorstDay *DayTotal `json:"worst_day,omitempty"`

	// BestHour is the hour of day with the highest aggregate total. Nil for
	// an empty batch.
	BestHour *HourTotal `json:"best_hour,omitempty"`
}
