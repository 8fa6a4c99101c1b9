package engine

import (
	"time"

	"roomdesk/pkg/model"
)

// DayBounds returns the half-open local calendar day [00:00, next 00:00)
// containing now in loc.
func DayBounds(now time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// Aggregate derives the statistics snapshot from a grouping result and the
// resolutions recorded so far. It never modifies its inputs.
func Aggregate(grouping *model.GroupingResult, resolutions []*model.ConflictResolution, now time.Time, loc *time.Location) model.ConflictStats {
	var stats model.ConflictStats
	dayStart, dayEnd := DayBounds(now, loc)
	inDay := func(t time.Time) bool {
		return !t.Before(dayStart) && t.Before(dayEnd)
	}

	resolvedToday := map[string]struct{}{}
	for _, r := range resolutions {
		if r != nil && inDay(r.ResolvedAt) {
			resolvedToday[r.ConflictID] = struct{}{}
		}
	}

	if grouping != nil {
		for _, g := range grouping.Groups {
			switch {
			case g.IsActive():
				stats.PendingConflictGroups++
				stats.BookingsInConflict += len(g.Members)
			case g.Resolved && g.ResolvedAt != nil && inDay(*g.ResolvedAt):
				resolvedToday[g.ConflictID] = struct{}{}
			}
		}
		for _, b := range grouping.WithoutConflict {
			if b.IsPending() {
				stats.WithoutConflict++
			}
		}
	}

	stats.ResolvedToday = len(resolvedToday)
	return stats
}
