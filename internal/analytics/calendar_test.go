package analytics

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
)

func TestServiceDate(t *testing.T) {
	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		t.Fatalf("load timezone: %v", err)
	}

	tests := []struct {
		name string
		ts   time.Time
		want civil.Date
	}{
		{
			name: "noon opens the service day",
			ts:   time.Date(2024, 3, 15, 12, 0, 0, 0, loc),
			want: civil.Date{Year: 2024, Month: 3, Day: 15},
		},
		{
			name: "one second before noon belongs to the previous day",
			ts:   time.Date(2024, 3, 15, 11, 59, 59, 0, loc),
			want: civil.Date{Year: 2024, Month: 3, Day: 14},
		},
		{
			name: "late night before five belongs to the previous day",
			ts:   time.Date(2024, 3, 15, 4, 59, 59, 0, loc),
			want: civil.Date{Year: 2024, Month: 3, Day: 14},
		},
		{
			name: "early morning after five still belongs to the previous day",
			ts:   time.Date(2024, 3, 15, 5, 0, 0, 0, loc),
			want: civil.Date{Year: 2024, Month: 3, Day: 14},
		},
		{
			name: "evening belongs to the same day",
			ts:   time.Date(2024, 3, 15, 23, 30, 0, 0, loc),
			want: civil.Date{Year: 2024, Month: 3, Day: 15},
		},
		{
			name: "month boundary rolls back",
			ts:   time.Date(2024, 3, 1, 2, 0, 0, 0, loc),
			want: civil.Date{Year: 2024, Month: 2, Day: 29},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ServiceDate(tt.ts); got != tt.want {
				t.Errorf("ServiceDate(%v) = %v, want %v", tt.ts, got, tt.want)
			}
		})
	}
}

func TestServiceWindow(t *testing.T) {
	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		t.Fatalf("load timezone: %v", err)
	}

	start := civil.Date{Year: 2024, Month: 3, Day: 10}
	end := civil.Date{Year: 2024, Month: 3, Day: 12}
	from, to := ServiceWindow(start, end, loc)

	if ServiceDate(from) != start {
		t.Errorf("window start %v maps to service date %v, want %v", from, ServiceDate(from), start)
	}
	if ServiceDate(to) != end {
		t.Errorf("window end %v maps to service date %v, want %v", to, ServiceDate(to), end)
	}
	if ServiceDate(from.Add(-time.Second)) == start {
		t.Error("a second before the window start should belong to the previous service day")
	}
	if ServiceDate(to.Add(time.Second)) == end {
		t.Error("a second past the window end should belong to the next service day")
	}
}

func TestHourOrder(t *testing.T) {
	// The hour axis starts at noon and wraps through 11:00; the sort keys
	// must be strictly increasing along that cycle.
	cycle := []int{12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
	prev := -1
	for _, hour := range cycle {
		key := hourOrder(hour)
		if key <= prev {
			t.Fatalf("hourOrder(%d) = %d, not increasing after %d", hour, key, prev)
		}
		prev = key
	}
}
