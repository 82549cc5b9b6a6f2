package analytics

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func testNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	n, err := NewNormalizer("", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewNormalizer: %v", err)
	}
	return n
}

func TestNormalizeFieldResolution(t *testing.T) {
	n := testNormalizer(t)

	t.Run("attributes envelope is flattened", func(t *testing.T) {
		records := []map[string]interface{}{
			{
				"id":   "s1",
				"type": "sales",
				"attributes": map[string]interface{}{
					"createdAt": "2024-03-15T14:30:00Z",
					"total":     100.0,
					"people":    4.0,
				},
			},
		}
		sales, err := n.Normalize(records)
		if err != nil {
			t.Fatalf("Normalize: %v", err)
		}
		if len(sales) != 1 {
			t.Fatalf("got %d sales, want 1", len(sales))
		}
		s := sales[0]
		if s.ID != "s1" {
			t.Errorf("ID = %q, want s1", s.ID)
		}
		// 14:30 UTC is 11:30 in Buenos Aires (GMT-3).
		if got := s.Timestamp.Hour(); got != 11 {
			t.Errorf("local hour = %d, want 11", got)
		}
		if sd := ServiceDate(s.Timestamp); sd.String() != "2024-03-14" {
			t.Errorf("service date = %s, want 2024-03-14", sd)
		}
		if !s.Amount.Equal(decimal.NewFromInt(100)) {
			t.Errorf("Amount = %s, want 100", s.Amount)
		}
		if s.PartySize != 4 {
			t.Errorf("PartySize = %d, want 4", s.PartySize)
		}
	})

	t.Run("alias fallbacks resolve in priority order", func(t *testing.T) {
		records := []map[string]interface{}{
			{
				"saleId":       "legacy-7",
				"created_at":   "2024-03-15T03:00:00Z",
				"total_amount": "50",
				"pax":          "2",
			},
		}
		sales, err := n.Normalize(records)
		if err != nil {
			t.Fatalf("Normalize: %v", err)
		}
		s := sales[0]
		if s.ID != "legacy-7" {
			t.Errorf("ID = %q, want legacy-7", s.ID)
		}
		// 03:00 UTC is midnight local: the h<5 window of the prior day.
		if got := s.Timestamp.Hour(); got != 0 {
			t.Errorf("local hour = %d, want 0", got)
		}
		if sd := ServiceDate(s.Timestamp); sd.String() != "2024-03-14" {
			t.Errorf("service date = %s, want 2024-03-14", sd)
		}
		if !s.Amount.Equal(decimal.NewFromInt(50)) {
			t.Errorf("Amount = %s, want 50", s.Amount)
		}
		if s.PartySize != 2 {
			t.Errorf("PartySize = %d, want 2", s.PartySize)
		}
	})

	t.Run("primary alias wins over fallback", func(t *testing.T) {
		records := []map[string]interface{}{
			{"total": 30.0, "amount": 99.0, "createdAt": "2024-03-15T20:00:00Z"},
		}
		sales, err := n.Normalize(records)
		if err != nil {
			t.Fatalf("Normalize: %v", err)
		}
		if !sales[0].Amount.Equal(decimal.NewFromInt(30)) {
			t.Errorf("Amount = %s, want 30 (from total, not amount)", sales[0].Amount)
		}
	})

	t.Run("missing ids get a 1-based sequence", func(t *testing.T) {
		records := []map[string]interface{}{
			{"createdAt": "2024-03-15T20:00:00Z"},
			{"createdAt": "2024-03-15T21:00:00Z"},
			{"id": "real", "createdAt": "2024-03-15T22:00:00Z"},
		}
		sales, err := n.Normalize(records)
		if err != nil {
			t.Fatalf("Normalize: %v", err)
		}
		if sales[0].ID != "1" || sales[1].ID != "2" || sales[2].ID != "real" {
			t.Errorf("IDs = %q %q %q, want 1 2 real", sales[0].ID, sales[1].ID, sales[2].ID)
		}
	})
}

func TestNormalizeAmountCoercion(t *testing.T) {
	n := testNormalizer(t)

	tests := []struct {
		name string
		raw  interface{}
		want string
	}{
		{"float", 123.45, "123.45"},
		{"numeric string", "88.10", "88.1"},
		{"nested value object", map[string]interface{}{"currency": "ARS", "value": 250.0}, "250"},
		{"garbage string", "not a number", "0"},
		{"unsupported type", []interface{}{1, 2}, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := []map[string]interface{}{
				{"createdAt": "2024-03-15T20:00:00Z", "total": tt.raw},
			}
			sales, err := n.Normalize(records)
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			if got := sales[0].Amount.String(); got != tt.want {
				t.Errorf("Amount = %s, want %s", got, tt.want)
			}
		})
	}

	t.Run("missing amount field defaults to zero", func(t *testing.T) {
		sales, err := n.Normalize([]map[string]interface{}{{"createdAt": "2024-03-15T20:00:00Z"}})
		if err != nil {
			t.Fatalf("Normalize: %v", err)
		}
		if !sales[0].Amount.IsZero() {
			t.Errorf("Amount = %s, want 0", sales[0].Amount)
		}
	})
}

func TestNormalizeTimestampFallbacks(t *testing.T) {
	n := testNormalizer(t)
	fixed := time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return fixed }

	t.Run("batch without any timestamp field falls back to now", func(t *testing.T) {
		records := []map[string]interface{}{
			{"id": "a", "total": 10.0},
			{"id": "b", "total": 20.0},
		}
		sales, err := n.Normalize(records)
		if err != nil {
			t.Fatalf("Normalize: %v", err)
		}
		for _, s := range sales {
			if !s.HasTimestamp() {
				t.Errorf("sale %s has no timestamp, want now fallback", s.ID)
			}
			if !s.Timestamp.Equal(fixed) {
				t.Errorf("sale %s timestamp = %v, want %v", s.ID, s.Timestamp, fixed)
			}
		}
	})

	t.Run("unparseable timestamp leaves the sale without one", func(t *testing.T) {
		records := []map[string]interface{}{
			{"id": "good", "createdAt": "2024-03-15T20:00:00Z"},
			{"id": "bad", "createdAt": "yesterday-ish"},
		}
		sales, err := n.Normalize(records)
		if err != nil {
			t.Fatalf("Normalize: %v", err)
		}
		if !sales[0].HasTimestamp() {
			t.Error("good sale lost its timestamp")
		}
		if sales[1].HasTimestamp() {
			t.Error("bad sale should have no timestamp, not the now fallback")
		}
	})
}

func TestNormalizeBatchShape(t *testing.T) {
	n := testNormalizer(t)

	t.Run("nil input is an empty batch", func(t *testing.T) {
		sales, err := n.Normalize(nil)
		if err != nil {
			t.Fatalf("Normalize(nil): %v", err)
		}
		if len(sales) != 0 {
			t.Errorf("got %d sales, want 0", len(sales))
		}
	})

	t.Run("generic interface list of objects is accepted", func(t *testing.T) {
		input := []interface{}{
			map[string]interface{}{"id": "x", "createdAt": "2024-03-15T20:00:00Z"},
		}
		sales, err := n.Normalize(input)
		if err != nil {
			t.Fatalf("Normalize: %v", err)
		}
		if len(sales) != 1 || sales[0].ID != "x" {
			t.Errorf("unexpected sales: %+v", sales)
		}
	})

	t.Run("non-list input fails fast", func(t *testing.T) {
		if _, err := n.Normalize("not a batch"); err == nil {
			t.Error("expected error for string input")
		}
	})

	t.Run("list with a non-object element fails fast", func(t *testing.T) {
		if _, err := n.Normalize([]interface{}{"oops"}); err == nil {
			t.Error("expected error for non-object record")
		}
	})
}

func TestNormalizeItemRefs(t *testing.T) {
	n := testNormalizer(t)
	records := []map[string]interface{}{
		{
			"id":        "s1",
			"createdAt": "2024-03-15T20:00:00Z",
			"relationships": map[string]interface{}{
				"items": map[string]interface{}{
					"data": []interface{}{
						map[string]interface{}{"type": "items", "id": "i1"},
						map[string]interface{}{"type": "items", "id": "i2"},
					},
				},
			},
		},
		{"id": "s2", "createdAt": "2024-03-15T21:00:00Z"},
	}
	sales, err := n.Normalize(records)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got := sales[0].ItemRefs; len(got) != 2 || got[0] != "i1" || got[1] != "i2" {
		t.Errorf("ItemRefs = %v, want [i1 i2]", got)
	}
	if len(sales[1].ItemRefs) != 0 {
		t.Errorf("sale without relationships has refs: %v", sales[1].ItemRefs)
	}
}
