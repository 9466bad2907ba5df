package countstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	PeriodTotal = "total"
	PeriodDay   = "day"
	PeriodHour  = "hour"
)

var Periods = []string{PeriodTotal, PeriodDay, PeriodHour}

// CountStore keeps named counters, keyed by a value (usually a guild, channel or user id).
//
// Increments apply to every period. Decrements only apply to the total: the day and hour periods count activity, and are not reduced by later corrections. Reset clears every period.
type CountStore interface {
	GetCount(ctx context.Context, name, val, period string) (int, error)
	Increment(ctx context.Context, name, val string) error
	Decrement(ctx context.Context, name, val string) error
	Reset(ctx context.Context, name, val string) error
	// Claim atomically marks val as taken for the current day, reporting false when it already was. Claims are separate from counts.
	Claim(ctx context.Context, name, val string) (bool, error)
	// Release drops a claim, so val can be claimed again.
	Release(ctx context.Context, name, val string) error
}

func claimBucket(name, val string) string {
	return "claim/" + periodBucket(name, val, PeriodDay)
}

func periodBucket(name, val, period string) string {
	switch period {
	case PeriodTotal:
		return fmt.Sprintf("%s/%s", name, val)
	case PeriodDay:
		t := time.Now().UTC().Format(time.DateOnly)
		return fmt.Sprintf("%s/%s/%s", name, val, t)
	case PeriodHour:
		t := time.Now().UTC().Format(time.RFC3339)[0:13]
		return fmt.Sprintf("%s/%s/%s", name, val, t)
	default:
		slog.Warn("unhandled counter period", "period", period)
		return fmt.Sprintf("%s/%s", name, val)
	}
}
