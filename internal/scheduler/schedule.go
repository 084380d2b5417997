package scheduler

import (
	"fmt"
	"time"
)

// Schedule decides whether a trigger fires at a given minute. The
// scheduler ticks once per minute and asks every trigger's schedule.
type Schedule interface {
	// Matches reports whether the schedule fires at t, with minute
	// granularity.
	Matches(t time.Time) bool

	// String describes the schedule for logging.
	String() string
}

// DailyAt fires once per day at a fixed time.
type DailyAt struct {
	Hour   int
	Minute int
}

// Matches implements Schedule.
func (s DailyAt) Matches(t time.Time) bool {
	return t.Hour() == s.Hour && t.Minute() == s.Minute
}

func (s DailyAt) String() string {
	return fmt.Sprintf("daily at %02d:%02d", s.Hour, s.Minute)
}

// EveryHours fires at a fixed minute of every n-th hour of the day,
// starting at hour zero (n=6 fires at 00, 06, 12, 18).
type EveryHours struct {
	N      int
	Minute int
}

// Matches implements Schedule.
func (s EveryHours) Matches(t time.Time) bool {
	if s.N <= 0 {
		return false
	}
	return t.Hour()%s.N == 0 && t.Minute() == s.Minute
}

func (s EveryHours) String() string {
	return fmt.Sprintf("every %d hours at minute %02d", s.N, s.Minute)
}

// MonthlyOn fires once per month on a fixed day at a fixed time.
type MonthlyOn struct {
	Day    int
	Hour   int
	Minute int
}

// Matches implements Schedule.
func (s MonthlyOn) Matches(t time.Time) bool {
	return t.Day() == s.Day && t.Hour() == s.Hour && t.Minute() == s.Minute
}

func (s MonthlyOn) String() string {
	return fmt.Sprintf("monthly on day %d at %02d:%02d", s.Day, s.Hour, s.Minute)
}

// ParseScheduleTime parses a time string in HH:MM format.
func ParseScheduleTime(s string) (hour, minute int, err error) {
	_, err = fmt.Sscanf(s, "%d:%d", &hour, &minute)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time format (expected HH:MM): %w", err)
	}

	if hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour: %d (must be 0-23)", hour)
	}
	if minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute: %d (must be 0-59)", minute)
	}

	return hour, minute, nil
}
