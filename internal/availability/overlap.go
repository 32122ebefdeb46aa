package availability

import (
	"sort"
	"time"

	"github.com/fitbook/trainer-crm-api/internal/models"
)

// StandardDurationsMinutes is the duration menu offered to booking UIs.
var StandardDurationsMinutes = []int{30, 45, 60, 90, 120}

// Interval is a booked half-open interval [Start, End) tagged with its
// appointment id so updates can exclude themselves.
type Interval struct {
	ID    string
	Start time.Time
	End   time.Time
}

// Index answers overlap and max-duration queries over one trainer's
// non-cancelled appointments for a day.
type Index struct {
	busy []Interval
}

// NewIndex builds an Index from appointments, dropping cancelled ones.
// Intervals are kept sorted by start.
func NewIndex(appointments []models.Appointment) *Index {
	busy := make([]Interval, 0, len(appointments))
	for i := range appointments {
		a := &appointments[i]
		if a.IsCancelled() {
			continue
		}
		busy = append(busy, Interval{ID: a.ID, Start: a.StartTime, End: a.EndTime()})
	}
	sort.Slice(busy, func(i, j int) bool { return busy[i].Start.Before(busy[j].Start) })
	return &Index{busy: busy}
}

// IsAvailable reports whether [start, start+duration) intersects no booked
// interval. The single symmetric test start < b.End && b.Start < end covers
// "starts inside", "ends inside" and full containment.
func (ix *Index) IsAvailable(start time.Time, duration time.Duration, excludeID string) bool {
	if duration <= 0 {
		return false
	}
	end := start.Add(duration)
	for _, b := range ix.busy {
		if b.ID == excludeID {
			continue
		}
		if start.Before(b.End) && b.Start.Before(end) {
			return false
		}
	}
	return true
}

// NextStartAfter returns the earliest booked start strictly after t.
func (ix *Index) NextStartAfter(t time.Time) (time.Time, bool) {
	for _, b := range ix.busy {
		if b.Start.After(t) {
			return b.Start, true
		}
	}
	return time.Time{}, false
}

// MaxDuration computes the largest legal duration from start: the policy
// ceiling, capped by the next appointment and by the end of the working day.
// Zero when start is at or past dayEnd.
func (ix *Index) MaxDuration(start, dayEnd time.Time, ceiling time.Duration) time.Duration {
	max := ceiling
	if next, ok := ix.NextStartAfter(start); ok {
		if until := next.Sub(start); until < max {
			max = until
		}
	}
	if untilClose := dayEnd.Sub(start); untilClose < max {
		max = untilClose
	}
	if max < 0 {
		return 0
	}
	return max
}

// StandardDurations filters the duration menu down to choices that both fit
// under MaxDuration and pass the full availability test, so every offered
// duration is bookable at selection time.
func (ix *Index) StandardDurations(start, dayEnd time.Time, ceiling time.Duration) []int {
	max := ix.MaxDuration(start, dayEnd, ceiling)
	var durations []int
	for _, minutes := range StandardDurationsMinutes {
		d := time.Duration(minutes) * time.Minute
		if d > max {
			continue
		}
		if !ix.IsAvailable(start, d, "") {
			continue
		}
		durations = append(durations, minutes)
	}
	return durations
}
