package main

import "testing"

func TestValidWindowDays(t *testing.T) {
	tests := []struct {
		days int
		want bool
	}{
		{days: 1, want: true},
		{days: 30, want: true},
		{days: 366, want: true},
		{days: 0, want: false},
		{days: -1, want: false},
		{days: 367, want: false},
	}

	for _, tt := range tests {
		if got := validWindowDays(tt.days); got != tt.want {
			t.Errorf("validWindowDays(%d) = %v, want %v", tt.days, got, tt.want)
		}
	}
}
