package recurrence

import (
	"fmt"
	"time"

	"fluxo/internal/domain/ledger"
)

// NextDate computes the next occurrence date for the given interval. Month
// and year steps preserve the day of month where the target month has it,
// otherwise they clamp to the last day of the target month (Jan 31 +1 month
// is Feb 29 in a leap year, never Mar 2).
func NextDate(from time.Time, iv ledger.Interval) (time.Time, error) {
	switch iv {
	case ledger.IntervalDaily:
		return from.AddDate(0, 0, 1), nil
	case ledger.IntervalWeekly:
		return from.AddDate(0, 0, 7), nil
	case ledger.IntervalMonthly:
		return addMonthsClamped(from, 1), nil
	case ledger.IntervalYearly:
		return addMonthsClamped(from, 12), nil
	default:
		return time.Time{}, fmt.Errorf("unknown recurring interval %q", iv)
	}
}

func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	first := time.Date(year, month+time.Month(months), 1, hour, min, sec, t.Nanosecond(), t.Location())
	if last := lastDayOfMonth(first); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, hour, min, sec, t.Nanosecond(), t.Location())
}

func lastDayOfMonth(t time.Time) int {
	// Day zero of the following month.
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}
