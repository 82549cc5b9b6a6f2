package fudo

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// SampleClient serves generated batches through the same FetchSales shape as
// Client, so the rest of the system runs without API credentials.
type SampleClient struct{}

func (SampleClient) FetchSales(_ context.Context, start, end time.Time, _ bool) (*SalesBatch, error) {
	return SampleSales(start, end), nil
}

// sampleMenu drives the offline sample generator: a handful of products
// spread over the categories a small restaurant would have.
var sampleMenu = []struct {
	product  string
	category string
	name     string
	price    float64
}{
	{"p1", "c1", "Drinks", 4.5},
	{"p2", "c1", "Drinks", 7.0},
	{"p3", "c2", "Food", 14.5},
	{"p4", "c2", "Food", 18.0},
	{"p5", "c3", "Desserts", 6.5},
}

var sampleCategoryNames = map[string]string{
	"c1": "Drinks",
	"c2": "Food",
	"c3": "Desserts",
}

// SampleSales generates a deterministic batch of JSON:API-shaped sales for
// offline development, one evening-heavy spread per day in [start, end].
// The records mimic the real payload, attributes envelope, relationships and
// included side-table included, so every downstream path is exercised.
func SampleSales(start, end time.Time) *SalesBatch {
	rng := rand.New(rand.NewSource(start.Unix() ^ end.Unix()))

	batch := &SalesBatch{Included: make(map[string]map[string]interface{})}
	for id, name := range sampleCategoryNames {
		batch.Included["product-categories:"+id] = map[string]interface{}{
			"type": "product-categories", "id": id,
			"attributes": map[string]interface{}{"name": name},
		}
	}
	for _, m := range sampleMenu {
		batch.Included["products:"+m.product] = map[string]interface{}{
			"type": "products", "id": m.product,
			"relationships": map[string]interface{}{
				"productCategory": map[string]interface{}{
					"data": map[string]interface{}{"type": "product-categories", "id": m.category},
				},
			},
		}
	}

	saleSeq := 0
	itemSeq := 0
	for day := start.Truncate(24 * time.Hour); !day.After(end); day = day.Add(24 * time.Hour) {
		for i := 0; i < 5+rng.Intn(16); i++ {
			saleSeq++

			// Evening bias: most sales land between 20:00 and 02:59 UTC-ish.
			hour := 12 + rng.Intn(17)
			ts := day.Add(time.Duration(hour)*time.Hour + time.Duration(rng.Intn(60))*time.Minute)
			if ts.After(end.Add(24 * time.Hour)) {
				continue
			}

			itemCount := 1 + rng.Intn(4)
			itemRefs := make([]interface{}, 0, itemCount)
			total := 0.0
			for j := 0; j < itemCount; j++ {
				itemSeq++
				m := sampleMenu[rng.Intn(len(sampleMenu))]
				itemID := fmt.Sprintf("i%d", itemSeq)
				itemRefs = append(itemRefs, map[string]interface{}{"type": "items", "id": itemID})
				batch.Included["items:"+itemID] = map[string]interface{}{
					"type": "items", "id": itemID,
					"relationships": map[string]interface{}{
						"product": map[string]interface{}{
							"data": map[string]interface{}{"type": "products", "id": m.product},
						},
					},
				}
				total += m.price
			}

			batch.Records = append(batch.Records, map[string]interface{}{
				"id":   fmt.Sprintf("sample-%d", saleSeq),
				"type": "sales",
				"attributes": map[string]interface{}{
					"createdAt": ts.UTC().Format(time.RFC3339),
					"total":     total,
					"people":    float64(1 + rng.Intn(6)),
				},
				"relationships": map[string]interface{}{
					"items": map[string]interface{}{"data": itemRefs},
				},
			})
		}
	}
	return batch
}
