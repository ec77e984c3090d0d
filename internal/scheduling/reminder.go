package scheduling

import (
	"time"

	"medlink-server/internal/models"
)

// DefaultReminderLead is how long before an appointment its reminder fires.
const DefaultReminderLead = 24 * time.Hour

// ReminderScheduler derives reminder records from appointments.
type ReminderScheduler struct {
	lead time.Duration
}

// NewReminderScheduler creates a scheduler. A non-positive lead falls back
// to DefaultReminderLead.
func NewReminderScheduler(lead time.Duration) *ReminderScheduler {
	if lead <= 0 {
		lead = DefaultReminderLead
	}
	return &ReminderScheduler{lead: lead}
}

// Lead returns the configured reminder lead time.
func (r *ReminderScheduler) Lead() time.Duration {
	return r.lead
}

// Schedule returns the reminder for apt, or nil when the reminder time is
// not strictly after now. The reminder is not persisted.
func (r *ReminderScheduler) Schedule(apt *models.Appointment, now time.Time) *models.AppointmentReminder {
	at := apt.ScheduledTime.Add(-r.lead)
	if !at.After(now) {
		return nil
	}
	return &models.AppointmentReminder{
		AppointmentID: apt.ID,
		ReminderTime:  at,
		IsSent:        false,
		ReminderType:  models.ReminderEmail,
	}
}
