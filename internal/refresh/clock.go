package refresh

import "time"

// Clock supplies the current time; tests substitute a fixed one.
type Clock interface {
	Now() time.Time
}

// ZoneClock reports wall time in a fixed location so day boundaries follow
// local midnight rather than the host's zone.
type ZoneClock struct {
	Location *time.Location
}

func (c ZoneClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// SameDay reports whether a and b fall on the same calendar date in a's location.
func SameDay(a, b time.Time) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
