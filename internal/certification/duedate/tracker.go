// Package duedate records due-date renegotiations.
package duedate

import (
	"time"

	"github.com/gartstein/certify/internal/certification/models"
)

// Tracker produces history entries for due-date changes.
type Tracker struct {
	now func() time.Time
}

// NewTracker returns a Tracker stamping entries with now. A nil now uses time.Now.
func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{now: now}
}

// RecordIfChanged returns the history entry for moving the due date from
// previous to next, or nil when both fall on the same calendar day.
func (t *Tracker) RecordIfChanged(previous, next time.Time) *models.DueDateChange {
	previous, next = models.DateOf(previous), models.DateOf(next)
	if previous.Equal(next) {
		return nil
	}
	return &models.DueDateChange{
		PreviousDate: previous,
		NewDate:      next,
		ChangedAt:    t.now().UTC(),
	}
}
