package scheduler

import (
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		wantErr bool
	}{
		{"yearly", "@yearly", false},
		{"monthly", "@monthly", false},
		{"weekly", "@weekly", false},
		{"daily", "@daily", false},
		{"hourly", "@hourly", false},
		{"every 4m", "@every 4m", false},
		{"every 30s", "@every 30s", false},
		{"every 2d", "@every 2d", false},
		{"every zero", "@every 0s", true},
		{"every negative", "@every -1m", true},
		{"every garbage", "@every soon", true},
		{"five field cron", "*/5 * * * *", true},
		{"invalid", "@invalid", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.expr)
			if (err != nil) != tt.wantErr {
				t.Errorf("Parse(%q) error = %v, wantErr %v", tt.expr, err, tt.wantErr)
			}
		})
	}
}

func TestScheduleNext(t *testing.T) {
	baseTime := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		expr string
		want time.Time
	}{
		{"hourly", "@hourly", time.Date(2024, 1, 15, 11, 0, 0, 0, time.UTC)},
		{"daily", "@daily", time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)},
		{"weekly", "@weekly", time.Date(2024, 1, 21, 0, 0, 0, 0, time.UTC)},
		{"monthly", "@monthly", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)},
		{"yearly", "@yearly", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"every 4m", "@every 4m", baseTime.Add(4 * time.Minute)},
		{"every 1d", "@every 1d", baseTime.Add(24 * time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Parse(tt.expr)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.expr, err)
			}
			next := s.Next(baseTime)
			if !next.Equal(tt.want) {
				t.Errorf("next = %v, want %v", next, tt.want)
			}
		})
	}
}

func TestMonthlyWrapsYear(t *testing.T) {
	dec := time.Date(2024, 12, 20, 8, 0, 0, 0, time.UTC)
	next := nextMonth(dec)
	if want := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC); !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}
}

func TestParseEveryDuration(t *testing.T) {
	tests := []struct {
		duration string
		want     time.Duration
	}{
		{"1h", time.Hour},
		{"30m", 30 * time.Minute},
		{"1d", 24 * time.Hour},
		{"7d", 7 * 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.duration, func(t *testing.T) {
			got, err := parseEveryDuration(tt.duration)
			if err != nil {
				t.Fatalf("parseEveryDuration(%q) error = %v", tt.duration, err)
			}
			if got != tt.want {
				t.Errorf("Duration = %v, want %v", got, tt.want)
			}
		})
	}
}
