package warehouse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"

	"github.com/mfarias/fudo-analytics/internal/domain"
)

// Repository reads and writes the sales table of one dataset.
type Repository struct {
	client  *bigquery.Client
	project string
	dataset string
}

// NewRepository creates a repository using Application Default Credentials.
func NewRepository(ctx context.Context, project, dataset string) (*Repository, error) {
	if project == "" {
		return nil, errors.New("NewRepository: project is required")
	}
	client, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: bigquery client: %w", err)
	}
	return NewRepositoryWithClient(client, project, dataset), nil
}

// NewRepositoryWithClient wraps an existing client, mainly for tests.
func NewRepositoryWithClient(client *bigquery.Client, project, dataset string) *Repository {
	return &Repository{client: client, project: project, dataset: dataset}
}

// Close releases the underlying client.
func (r *Repository) Close() error {
	return r.client.Close()
}

// InsertSales streams a batch of normalized sales into the sales table.
func (r *Repository) InsertSales(ctx context.Context, sales []domain.Sale) error {
	if len(sales) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([]*SaleRow, 0, len(sales))
	for _, s := range sales {
		rows = append(rows, RowFromSale(s, now))
	}

	table := r.client.DatasetInProject(r.project, r.dataset).Table(salesTable)
	if err := table.Inserter().Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertSales: inserting %d rows: %w", len(rows), err)
	}
	return nil
}

// ListSalesByServiceDate returns the stored sales whose service date falls
// in [start, end], ordered by sale time.
func (r *Repository) ListSalesByServiceDate(ctx context.Context, start, end civil.Date) ([]domain.Sale, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT sale_id, sold_at, service_date, amount, party_size, item_refs, ingested_at
		FROM `+"`%s.%s.%s`"+`
		WHERE service_date BETWEEN @start AND @end
		ORDER BY sold_at`, r.project, r.dataset, salesTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "start", Value: start},
		{Name: "end", Value: end},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListSalesByServiceDate: query: %w", err)
	}

	var sales []domain.Sale
	for {
		var row SaleRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListSalesByServiceDate: iterate: %w", err)
		}
		sales = append(sales, row.Sale())
	}
	return sales, nil
}
