package scheduler

import (
	"testing"
	"time"
)

func at(day, hour, minute int) time.Time {
	return time.Date(2024, time.March, day, hour, minute, 0, 0, time.UTC)
}

func TestDailyAtMatches(t *testing.T) {
	s := DailyAt{Hour: 2, Minute: 0}

	tests := []struct {
		name string
		t    time.Time
		want bool
	}{
		{"exact time", at(15, 2, 0), true},
		{"same time next day", at(16, 2, 0), true},
		{"wrong minute", at(15, 2, 1), false},
		{"wrong hour", at(15, 3, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Matches(tt.t); got != tt.want {
				t.Errorf("Matches(%s) = %v, want %v", tt.t, got, tt.want)
			}
		})
	}
}

func TestEveryHoursMatches(t *testing.T) {
	s := EveryHours{N: 6}

	tests := []struct {
		name string
		t    time.Time
		want bool
	}{
		{"midnight", at(15, 0, 0), true},
		{"six", at(15, 6, 0), true},
		{"noon", at(15, 12, 0), true},
		{"eighteen", at(15, 18, 0), true},
		{"off-cycle hour", at(15, 7, 0), false},
		{"matching hour wrong minute", at(15, 6, 30), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Matches(tt.t); got != tt.want {
				t.Errorf("Matches(%s) = %v, want %v", tt.t, got, tt.want)
			}
		})
	}

	if (EveryHours{N: 0}).Matches(at(15, 0, 0)) {
		t.Error("EveryHours with N=0 must never match")
	}
}

func TestMonthlyOnMatches(t *testing.T) {
	s := MonthlyOn{Day: 1, Hour: 8, Minute: 0}

	tests := []struct {
		name string
		t    time.Time
		want bool
	}{
		{"first of month at time", at(1, 8, 0), true},
		{"wrong day", at(2, 8, 0), false},
		{"wrong hour", at(1, 9, 0), false},
		{"wrong minute", at(1, 8, 1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Matches(tt.t); got != tt.want {
				t.Errorf("Matches(%s) = %v, want %v", tt.t, got, tt.want)
			}
		})
	}
}

func TestParseScheduleTime(t *testing.T) {
	tests := []struct {
		input      string
		wantHour   int
		wantMinute int
		wantErr    bool
	}{
		{"02:00", 2, 0, false},
		{"23:59", 23, 59, false},
		{"0:5", 0, 5, false},
		{"24:00", 0, 0, true},
		{"12:60", 0, 0, true},
		{"noon", 0, 0, true},
		{"", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			hour, minute, err := ParseScheduleTime(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseScheduleTime(%q) expected error, got %d:%d", tt.input, hour, minute)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseScheduleTime(%q) error = %v", tt.input, err)
			}
			if hour != tt.wantHour || minute != tt.wantMinute {
				t.Errorf("ParseScheduleTime(%q) = %d:%d, want %d:%d",
					tt.input, hour, minute, tt.wantHour, tt.wantMinute)
			}
		})
	}
}
