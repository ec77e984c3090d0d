package scheduling

import (
	"context"
	"time"

	"medlink-server/internal/models"
)

// MaxDuration is the longest appointment the service accepts. The conflict
// pre-filter looks this far back so intervals crossing midnight are seen.
const MaxDuration = 24 * time.Hour

// Overlaps reports whether the half-open intervals [aStart, aStart+aDur) and
// [bStart, bStart+bDur) intersect. Empty intervals never overlap anything.
func Overlaps(aStart time.Time, aDur time.Duration, bStart time.Time, bDur time.Duration) bool {
	if aDur <= 0 || bDur <= 0 {
		return false
	}
	return aStart.Before(bStart.Add(bDur)) && aStart.Add(aDur).After(bStart)
}

// ConflictChecker finds appointments of a doctor that overlap a candidate slot.
type ConflictChecker struct {
	store Store
}

// NewConflictChecker creates a checker reading from store. Pass the
// transactional store when the result guards a write.
func NewConflictChecker(store Store) *ConflictChecker {
	return &ConflictChecker{store: store}
}

// FindConflict returns the first live appointment of doctorID overlapping
// [start, start+durationMinutes), ignoring excludeID, or nil.
func (c *ConflictChecker) FindConflict(ctx context.Context, doctorID string, start time.Time, durationMinutes int, excludeID string) (*models.Appointment, error) {
	dur := time.Duration(durationMinutes) * time.Minute
	if dur <= 0 {
		return nil, nil
	}

	candidates, err := c.store.AppointmentsStartingBetween(ctx, doctorID, start.Add(-MaxDuration), start.Add(dur), excludeID)
	if err != nil {
		return nil, err
	}

	for i := range candidates {
		existing := &candidates[i]
		if existing.ID == excludeID {
			continue
		}
		if Overlaps(start, dur, existing.ScheduledTime, time.Duration(existing.DurationMinutes)*time.Minute) {
			return existing, nil
		}
	}
	return nil, nil
}

// HasConflict reports whether FindConflict would return an appointment.
func (c *ConflictChecker) HasConflict(ctx context.Context, doctorID string, start time.Time, durationMinutes int, excludeID string) (bool, error) {
	conflict, err := c.FindConflict(ctx, doctorID, start, durationMinutes, excludeID)
	if err != nil {
		return false, err
	}
	return conflict != nil, nil
}
