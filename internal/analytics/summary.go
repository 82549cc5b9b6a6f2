package analytics

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mfarias/fudo-analytics/internal/domain"
)

// Summary computes the key business metrics over the whole batch. Unlike the
// bucketed views it counts every sale, including ones without a parseable
// timestamp. An empty batch yields the zero Summary.
//
// Best and worst day look only at days whose total is positive. Days the
// batch simply has no data for and days that genuinely sold nothing are
// indistinguishable here, so neither can ever be the worst day; this
// inherited imprecision is kept on purpose.
func (a *Analysis) Summary() domain.Summary {
	s := domain.Summary{
		TotalSales:        decimal.Zero,
		AvgTransaction:    decimal.Zero,
		MedianTransaction: decimal.Zero,
		AvgGuests:         decimal.Zero,
	}
	if len(a.sales) == 0 {
		return s
	}

	amounts := make([]decimal.Decimal, 0, len(a.sales))
	for _, sale := range a.sales {
		s.TotalSales = s.TotalSales.Add(sale.Amount)
		s.TotalGuests += sale.PartySize
		amounts = append(amounts, sale.Amount)
	}
	s.TotalTransactions = len(a.sales)

	count := decimal.NewFromInt(int64(s.TotalTransactions))
	s.AvgTransaction = s.TotalSales.Div(count)
	s.AvgGuests = decimal.NewFromInt(int64(s.TotalGuests)).Div(count)
	s.MedianTransaction = median(amounts)

	daily := a.SalesByDay(false)
	for i := range daily {
		row := daily[i]
		if !row.Total.IsPositive() {
			continue
		}
		if s.BestDay == nil || row.Total.GreaterThan(s.BestDay.Total) {
			s.BestDay = &domain.DayTotal{Date: row.Date, Total: row.Total}
		}
		if s.WorstDay == nil || row.Total.LessThan(s.WorstDay.Total) {
			s.WorstDay = &domain.DayTotal{Date: row.Date, Total: row.Total}
		}
	}

	for _, row := range a.SalesByHour() {
		if s.BestHour == nil || row.Total.GreaterThan(s.BestHour.Total) {
			s.BestHour = &domain.HourTotal{Hour: row.Hour, Total: row.Total}
		}
	}

	return s
}

func median(amounts []decimal.Decimal) decimal.Decimal {
	if len(amounts) == 0 {
		return decimal.Zero
	}
	sorted := make([]decimal.Decimal, len(amounts))
	copy(sorted, amounts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return sorted[mid-1].Add(sorted[mid]).Div(decimal.NewFromInt(2))
}
