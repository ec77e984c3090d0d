// Package scheduling implements the appointment request workflow: request
// persistence, slot conflict detection, the request lifecycle and reminder
// scheduling.
package scheduling

import (
	"context"
	"time"

	"medlink-server/internal/models"
)

// RequestFilter narrows ListRequests. Empty fields match everything.
type RequestFilter struct {
	PatientID string
	DoctorID  string
	Status    models.RequestStatus
}

// AppointmentFilter narrows ListAppointments. Zero times are open bounds.
type AppointmentFilter struct {
	PatientID        string
	DoctorID         string
	From             time.Time
	To               time.Time
	IncludeCancelled bool
}

// Store is the persistence boundary of the workflow. Missing rows are
// reported as apperr NotFound errors.
type Store interface {
	GetUser(ctx context.Context, id string) (*models.User, error)

	CreateRequest(ctx context.Context, req *models.AppointmentRequest) error
	GetRequest(ctx context.Context, id string) (*models.AppointmentRequest, error)
	ListRequestsByDoctor(ctx context.Context, doctorID string) ([]models.AppointmentRequest, error)
	ListRequestsByPatient(ctx context.Context, patientID string) ([]models.AppointmentRequest, error)
	ListRequests(ctx context.Context, filter RequestFilter) ([]models.AppointmentRequest, error)
	UpdateRequestStatus(ctx context.Context, id string, status models.RequestStatus) error
	HasPendingRequest(ctx context.Context, patientID, doctorID string, date time.Time, slot models.TimeSlot) (bool, error)

	CreateAppointment(ctx context.Context, apt *models.Appointment) error
	GetAppointment(ctx context.Context, id string) (*models.Appointment, error)
	GetAppointmentByRequest(ctx context.Context, requestID string) (*models.Appointment, error)
	ListAppointments(ctx context.Context, filter AppointmentFilter) ([]models.Appointment, error)
	// AppointmentsStartingBetween returns the doctor's live appointments with
	// from < scheduled_time < to, skipping excludeID.
	AppointmentsStartingBetween(ctx context.Context, doctorID string, from, to time.Time, excludeID string) ([]models.Appointment, error)
	RescheduleAppointment(ctx context.Context, id string, start time.Time) error
	ConfirmAppointment(ctx context.Context, id string) error
	CancelAppointment(ctx context.Context, id string, at time.Time) error

	CreateReminder(ctx context.Context, reminder *models.AppointmentReminder) error
	GetReminder(ctx context.Context, id string) (*models.AppointmentReminder, error)
	ListReminders(ctx context.Context, appointmentID string) ([]models.AppointmentReminder, error)
	DueReminders(ctx context.Context, at time.Time, limit int) ([]models.AppointmentReminder, error)
	DeleteUnsentReminders(ctx context.Context, appointmentID string) error
	MarkReminderSent(ctx context.Context, id string) error

	// WithDoctorLock runs fn in a transaction that holds the doctor's lock.
	// fn must use the Store it is given, never the receiver.
	WithDoctorLock(ctx context.Context, doctorID string, fn func(tx Store) error) error
}
