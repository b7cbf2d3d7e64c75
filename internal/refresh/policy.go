package refresh

import "time"

// RefreshPolicy decides whether a loaded dataset should be rebuilt now.
// lastRefresh is zero when the dataset was never refreshed.
type RefreshPolicy interface {
	ShouldRefresh(now, lastRefresh time.Time) bool
}

// DailyHourPolicy refreshes once per calendar day, and only during Hour.
// Outside that hour a stale dataset keeps being served.
type DailyHourPolicy struct {
	Hour int
}

func (p DailyHourPolicy) ShouldRefresh(now, lastRefresh time.Time) bool {
	if SameDay(now, lastRefresh) {
		return false
	}
	return now.Hour() == p.Hour
}
