// Package warehouse stores normalized sales in BigQuery. Only raw input
// rows land here; aggregates are always recomputed by the analytics layer.
package warehouse

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/mfarias/fudo-analytics/internal/analytics"
	"github.com/mfarias/fudo-analytics/internal/domain"
)

const salesTable = "sales"

// SaleRow is the BigQuery schema for one normalized sale.
type SaleRow struct {
	SaleID      string     `bigquery:"sale_id"`
	SoldAt      time.Time  `bigquery:"sold_at"`
	ServiceDate civil.Date `bigquery:"service_date"`
	Amount      float64    `bigquery:"amount"`
	PartySize   int64      `bigquery:"party_size"`
	ItemRefs    []string   `bigquery:"item_refs"`
	IngestedAt  time.Time  `bigquery:"ingested_at"`
}

// RowFromSale maps a domain sale to its warehouse row. Sales without a
// timestamp get the zero service date; they are stored but never bucketed.
func RowFromSale(s domain.Sale, ingestedAt time.Time) *SaleRow {
	row := &SaleRow{
		SaleID:     s.ID,
		SoldAt:     s.Timestamp,
		Amount:     s.Amount.InexactFloat64(),
		PartySize:  int64(s.PartySize),
		ItemRefs:   s.ItemRefs,
		IngestedAt: ingestedAt,
	}
	if s.HasTimestamp() {
		row.ServiceDate = analytics.ServiceDate(s.Timestamp)
	}
	return row
}

// Sale maps a warehouse row back to the domain.
func (r *SaleRow) Sale() domain.Sale {
	return domain.Sale{
		ID:        r.SaleID,
		Timestamp: r.SoldAt,
		Amount:    decimal.NewFromFloat(r.Amount),
		PartySize: int(r.PartySize),
		ItemRefs:  r.ItemRefs,
	}
}
