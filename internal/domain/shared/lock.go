package shared

import (
	"context"
	"time"
)

// Locker serializes work on a named resource across processes.
// The returned release function must be called once the work is done.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

// NoopLocker grants every lock immediately. Row locks in the database still apply.
type NoopLocker struct{}

// Acquire always succeeds
func (NoopLocker) Acquire(_ context.Context, _ string, _ time.Duration) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}

// DateRange is a half-open [From, To) interval used by repository queries.
type DateRange struct {
	From time.Time
	To   time.Time
}

// DayRange returns the range covering the calendar day of t.
func DayRange(t time.Time) DateRange {
	start := StartOfDay(t)
	return DateRange{From: start, To: start.AddDate(0, 0, 1)}
}
