package analytics

import (
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/mfarias/fudo-analytics/internal/domain"
)

// Analysis is a read-only view over one normalized batch of sales. Every
// method recomputes its result from the batch; nothing is cached or mutated,
// so a single Analysis can serve concurrent requests.
type Analysis struct {
	sales []domain.Sale
	graph *EntityGraph
}

// New creates an analysis without category data. Category views over it
// attribute every sale to the Uncategorized bucket.
func New(sales []domain.Sale) *Analysis {
	return &Analysis{sales: sales}
}

// NewWithGraph creates an analysis that resolves line items through the
// given entity graph for the category views.
func NewWithGraph(sales []domain.Sale, graph *EntityGraph) *Analysis {
	return &Analysis{sales: sales, graph: graph}
}

type bucketAgg struct {
	total  decimal.Decimal
	count  int
	guests int
}

func (b *bucketAgg) add(s domain.Sale) {
	b.total = b.total.Add(s.Amount)
	b.count++
	b.guests += s.PartySize
}

func (b *bucketAgg) average() decimal.Decimal {
	if b.count == 0 {
		return decimal.Zero
	}
	return b.total.Div(decimal.NewFromInt(int64(b.count)))
}

// SalesByDay groups sales by service date. Sales without a parseable
// timestamp have no service date and are excluded. With fillMissing set,
// every calendar day between the first and last service date gets a row,
// zeroed when no sales fell on it, so the series is contiguous.
func (a *Analysis) SalesByDay(fillMissing bool) []domain.DailySales {
	buckets := make(map[civil.Date]*bucketAgg)
	for _, s := range a.sales {
		if !s.HasTimestamp() {
			continue
		}
		day := ServiceDate(s.Timestamp)
		agg := buckets[day]
		if agg == nil {
			agg = &bucketAgg{}
			buckets[day] = agg
		}
		agg.add(s)
	}
	if len(buckets) == 0 {
		return nil
	}

	days := make([]civil.Date, 0, len(buckets))
	for day := range buckets {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	if fillMissing {
		filled := make([]civil.Date, 0, len(days))
		for day := days[0]; !days[len(days)-1].Before(day); day = day.AddDays(1) {
			filled = append(filled, day)
		}
		days = filled
	}

	rows := make([]domain.DailySales, 0, len(days))
	for _, day := range days {
		agg := buckets[day]
		if agg == nil {
			rows = append(rows, domain.DailySales{Date: day, Total: decimal.Zero, Average: decimal.Zero})
			continue
		}
		rows = append(rows, domain.DailySales{
			Date:         day,
			Total:        agg.total,
			Average:      agg.average(),
			Transactions: agg.count,
			Guests:       agg.guests,
		})
	}
	return rows
}

// SalesByHour groups sales by local hour of day. Rows come out in service
// order: noon first, wrapping through 11:00, so charts follow the nocturnal
// cycle instead of splitting a night across both ends of the axis.
func (a *Analysis) SalesByHour() []domain.HourlySales {
	buckets := make(map[int]*bucketAgg)
	for _, s := range a.sales {
		if !s.HasTimestamp() {
			continue
		}
		hour := s.Timestamp.Hour()
		agg := buckets[hour]
		if agg == nil {
			agg = &bucketAgg{}
			buckets[hour] = agg
		}
		agg.add(s)
	}
	if len(buckets) == 0 {
		return nil
	}

	hours := make([]int, 0, len(buckets))
	for hour := range buckets {
		hours = append(hours, hour)
	}
	sort.Slice(hours, func(i, j int) bool { return hourOrder(hours[i]) < hourOrder(hours[j]) })

	rows := make([]domain.HourlySales, 0, len(hours))
	for _, hour := range hours {
		agg := buckets[hour]
		rows = append(rows, domain.HourlySales{
			Hour:         hour,
			Label:        fmt.Sprintf("%02d:00", hour),
			Total:        agg.total,
			Average:      agg.average(),
			Transactions: agg.count,
			Guests:       agg.guests,
		})
	}
	return rows
}

// weekdayOrder lists weekdays Monday first, the order the dashboard shows.
var weekdayOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

// SalesByWeekday groups sales by the weekday of their service date, not the
// raw calendar date, so a Saturday 2 AM sale counts as Friday service.
func (a *Analysis) SalesByWeekday() []domain.WeekdaySales {
	buckets := make(map[time.Weekday]*bucketAgg)
	for _, s := range a.sales {
		if !s.HasTimestamp() {
			continue
		}
		wd := ServiceDate(s.Timestamp).In(time.UTC).Weekday()
		agg := buckets[wd]
		if agg == nil {
			agg = &bucketAgg{}
			buckets[wd] = agg
		}
		agg.add(s)
	}
	if len(buckets) == 0 {
		return nil
	}

	rows := make([]domain.WeekdaySales, 0, len(buckets))
	for _, wd := range weekdayOrder {
		agg := buckets[wd]
		if agg == nil {
			continue
		}
		rows = append(rows, domain.WeekdaySales{
			Weekday:      wd,
			Name:         wd.String(),
			Total:        agg.total,
			Average:      agg.average(),
			Transactions: agg.count,
			Guests:       agg.guests,
		})
	}
	return rows
}

// SalesByMonth groups sales by the calendar year-month of the raw timestamp.
// Months key off the real instant, not the service date, so a service day
// straddling midnight on the 1st splits across months.
func (a *Analysis) SalesByMonth() []domain.MonthlySales {
	buckets := make(map[string]*bucketAgg)
	for _, s := range a.sales {
		if !s.HasTimestamp() {
			continue
		}
		month := s.Timestamp.Format("2006-01")
		agg := buckets[month]
		if agg == nil {
			agg = &bucketAgg{}
			buckets[month] = agg
		}
		agg.add(s)
	}
	if len(buckets) == 0 {
		return nil
	}

	months := make([]string, 0, len(buckets))
	for month := range buckets {
		months = append(months, month)
	}
	sort.Strings(months)

	rows := make([]domain.MonthlySales, 0, len(months))
	for _, month := range months {
		agg := buckets[month]
		rows = append(rows, domain.MonthlySales{
			Month:        month,
			Total:        agg.total,
			Average:      agg.average(),
			Transactions: agg.count,
			Guests:       agg.guests,
		})
	}
	return rows
}

// categorySplit is one sale's share attributed to one category.
type categorySplit struct {
	category string
	amount   decimal.Decimal
}

// splitByCategory attributes a sale's amount evenly across the distinct
// categories its line items resolve to. Per-item prices are not modeled, so
// the even split is a deliberate approximation. A sale resolving to no
// category at all goes entirely to Uncategorized.
func (a *Analysis) splitByCategory(s domain.Sale) []categorySplit {
	var names []string
	if a.graph != nil {
		names = a.graph.CategoriesFor(s.ItemRefs)
	}
	if len(names) == 0 {
		return []categorySplit{{category: Uncategorized, amount: s.Amount}}
	}
	share := s.Amount.Div(decimal.NewFromInt(int64(len(names))))
	splits := make([]categorySplit, 0, len(names))
	for _, name := range names {
		splits = append(splits, categorySplit{category: name, amount: share})
	}
	return splits
}

// SalesByCategory attributes sale amounts to product categories and ranks
// them by total, descending. Ties rank by label so the order is stable.
func (a *Analysis) SalesByCategory() []domain.CategorySales {
	totals := make(map[string]*bucketAgg)
	for _, s := range a.sales {
		for _, split := range a.splitByCategory(s) {
			agg := totals[split.category]
			if agg == nil {
				agg = &bucketAgg{}
				totals[split.category] = agg
			}
			agg.total = agg.total.Add(split.amount)
			agg.count++
		}
	}
	if len(totals) == 0 {
		return nil
	}

	rows := make([]domain.CategorySales, 0, len(totals))
	for name, agg := range totals {
		rows = append(rows, domain.CategorySales{
			Category:     name,
			Total:        agg.total,
			Average:      agg.average(),
			Transactions: agg.count,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if c := rows[i].Total.Cmp(rows[j].Total); c != 0 {
			return c > 0
		}
		return rows[i].Category < rows[j].Category
	})
	return rows
}

// topCategoryLabels returns the labels kept verbatim by top-N collapsing:
// the n categories with the highest totals. Boundary ties break by label,
// ascending, so the cut is deterministic. Everything else, the Uncategorized
// sentinel included, relabels to Other.
func (a *Analysis) topCategoryLabels(n int) map[string]bool {
	ranked := a.SalesByCategory()
	if n < 0 {
		n = 0
	}
	if n > len(ranked) {
		n = len(ranked)
	}
	top := make(map[string]bool, n)
	for _, row := range ranked[:n] {
		top[row.Category] = true
	}
	return top
}

type crossKey struct {
	bucket   string
	category string
}

// crossed groups category splits by (bucket, category) after top-N
// collapsing. bucketOf returns the bucket label and its sort key; sales it
// rejects (no timestamp) are excluded, matching the plain time views.
func (a *Analysis) crossed(topN int, bucketOf func(domain.Sale) (string, int, bool)) []domain.BucketCategorySales {
	top := a.topCategoryLabels(topN)

	buckets := make(map[crossKey]*bucketAgg)
	order := make(map[string]int)
	for _, s := range a.sales {
		bucket, sortKey, ok := bucketOf(s)
		if !ok {
			continue
		}
		order[bucket] = sortKey
		for _, split := range a.splitByCategory(s) {
			category := split.category
			if !top[category] {
				category = Other
			}
			key := crossKey{bucket: bucket, category: category}
			agg := buckets[key]
			if agg == nil {
				agg = &bucketAgg{}
				buckets[key] = agg
			}
			agg.total = agg.total.Add(split.amount)
			agg.count++
		}
	}
	if len(buckets) == 0 {
		return nil
	}

	rows := make([]domain.BucketCategorySales, 0, len(buckets))
	for key, agg := range buckets {
		rows = append(rows, domain.BucketCategorySales{
			Bucket:       key.bucket,
			Category:     key.category,
			Total:        agg.total,
			Transactions: agg.count,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Bucket != rows[j].Bucket {
			if oi, oj := order[rows[i].Bucket], order[rows[j].Bucket]; oi != oj {
				return oi < oj
			}
			return rows[i].Bucket < rows[j].Bucket
		}
		if c := rows[i].Total.Cmp(rows[j].Total); c != 0 {
			return c > 0
		}
		return rows[i].Category < rows[j].Category
	})
	return rows
}

// SalesByDayAndCategory crosses service days with top-N collapsed
// categories, sorted by day ascending and amount descending within a day.
func (a *Analysis) SalesByDayAndCategory(topN int) []domain.BucketCategorySales {
	return a.crossed(topN, func(s domain.Sale) (string, int, bool) {
		if !s.HasTimestamp() {
			return "", 0, false
		}
		day := ServiceDate(s.Timestamp)
		return day.String(), day.DaysSince(civil.Date{Year: 2000, Month: time.January, Day: 1}), true
	})
}

// SalesByHourAndCategory crosses hours of day with top-N collapsed
// categories, hours in service order starting at noon.
func (a *Analysis) SalesByHourAndCategory(topN int) []domain.BucketCategorySales {
	return a.crossed(topN, func(s domain.Sale) (string, int, bool) {
		if !s.HasTimestamp() {
			return "", 0, false
		}
		hour := s.Timestamp.Hour()
		return fmt.Sprintf("%02d:00", hour), hourOrder(hour), true
	})
}

// SalesByMonthAndCategory crosses calendar months with top-N collapsed
// categories.
func (a *Analysis) SalesByMonthAndCategory(topN int) []domain.BucketCategorySales {
	return a.crossed(topN, func(s domain.Sale) (string, int, bool) {
		if !s.HasTimestamp() {
			return "", 0, false
		}
		ym := s.Timestamp.Year()*12 + int(s.Timestamp.Month())
		return s.Timestamp.Format("2006-01"), ym, true
	})
}
