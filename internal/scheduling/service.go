package scheduling

import (
	"context"
	"fmt"
	"strings"
	"time"

	"medlink-server/internal/access"
	"medlink-server/internal/apperr"
	"medlink-server/internal/logger"
	"medlink-server/internal/models"
)

const (
	// DefaultDurationMinutes applies when accept omits a duration.
	DefaultDurationMinutes = 30
	maxDurationMinutes     = int(MaxDuration / time.Minute)
)

// Service is the appointment lifecycle controller.
type Service struct {
	store     Store
	reminders *ReminderScheduler
	metrics   *Metrics
	log       *logger.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates the workflow service. metrics may be nil.
func NewService(store Store, reminders *ReminderScheduler, metrics *Metrics, log *logger.Logger, opts ...Option) *Service {
	if reminders == nil {
		reminders = NewReminderScheduler(DefaultReminderLead)
	}
	if log == nil {
		log = logger.Discard()
	}
	s := &Service{
		store:     store,
		reminders: reminders,
		metrics:   metrics,
		log:       log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) clock() time.Time {
	return normalize(s.now())
}

// CreateRequestInput carries the fields a patient submits.
type CreateRequestInput struct {
	DoctorID          string
	PreferredDate     time.Time
	PreferredTimeSlot models.TimeSlot
	Reason            string
	UrgencyLevel      models.UrgencyLevel
	Notes             string
}

// AcceptInput carries the doctor's scheduling decision. ScheduledTime is
// parsed by the service so that authorization and state checks come first.
type AcceptInput struct {
	ScheduledTime   string
	DurationMinutes *int
	Notes           string
}

// CreateRequest files a pending request on behalf of a patient.
func (s *Service) CreateRequest(ctx context.Context, actor models.Actor, in CreateRequestInput) (*models.AppointmentRequest, error) {
	req, err := s.createRequest(ctx, actor, in)
	s.finish("create_request", actor, requestResource(req, "new"), err, nil)
	return req, err
}

func (s *Service) createRequest(ctx context.Context, actor models.Actor, in CreateRequestInput) (*models.AppointmentRequest, error) {
	if actor.Role != models.RolePatient {
		return nil, apperr.Authorization("patients_only", "only patients can request appointments")
	}

	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, apperr.Validation("reason_required", "reason is required")
	}
	if !in.PreferredTimeSlot.Valid() {
		return nil, apperr.Validation("invalid_time_slot", fmt.Sprintf("unknown time slot %q", in.PreferredTimeSlot))
	}
	urgency := in.UrgencyLevel
	if urgency == "" {
		urgency = models.UrgencyMedium
	}
	if !urgency.Valid() {
		return nil, apperr.Validation("invalid_urgency_level", fmt.Sprintf("unknown urgency level %q", urgency))
	}

	now := s.clock()
	date := StartOfDay(in.PreferredDate)
	if date.Before(StartOfDay(now)) {
		return nil, apperr.Validation("preferred_date_in_past", "preferred date cannot be in the past")
	}

	doctor, err := s.store.GetUser(ctx, in.DoctorID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.NotFound("doctor_not_found", fmt.Sprintf("doctor %s not found", in.DoctorID))
		}
		return nil, err
	}
	if doctor.Role != models.RoleDoctor {
		return nil, apperr.NotFound("doctor_not_found", fmt.Sprintf("doctor %s not found", in.DoctorID))
	}

	req := &models.AppointmentRequest{
		PatientID:         actor.ID,
		DoctorID:          doctor.ID,
		RequestedAt:       now,
		PreferredDate:     date,
		PreferredTimeSlot: in.PreferredTimeSlot,
		Status:            models.RequestPending,
		Reason:            reason,
		UrgencyLevel:      urgency,
		Notes:             in.Notes,
	}

	err = s.store.WithDoctorLock(ctx, doctor.ID, func(tx Store) error {
		dup, err := tx.HasPendingRequest(ctx, req.PatientID, req.DoctorID, req.PreferredDate, req.PreferredTimeSlot)
		if err != nil {
			return err
		}
		if dup {
			return apperr.Validation("duplicate_pending_request", "a pending request for this doctor, date and time slot already exists")
		}
		return tx.CreateRequest(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// GetRequest returns a request visible to the actor.
func (s *Service) GetRequest(ctx context.Context, actor models.Actor, id string) (*models.AppointmentRequest, error) {
	req, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.CanView(actor, req) {
		return nil, apperr.Authorization("forbidden", "you cannot view this appointment request")
	}
	return req, nil
}

// ListRequests returns the requests visible to the actor. Patients and
// doctors only ever see their own, whatever the filter says.
func (s *Service) ListRequests(ctx context.Context, actor models.Actor, filter RequestFilter) ([]models.AppointmentRequest, error) {
	switch {
	case actor.Role.IsStaff():
	case actor.Role == models.RoleDoctor:
		filter.DoctorID = actor.ID
	case actor.Role == models.RolePatient:
		filter.PatientID = actor.ID
	default:
		return nil, apperr.Authorization("forbidden", "you cannot list appointment requests")
	}
	return s.store.ListRequests(ctx, filter)
}

// Accept turns a pending request into an appointment at the given time.
func (s *Service) Accept(ctx context.Context, actor models.Actor, requestID string, in AcceptInput) (*models.Appointment, error) {
	apt, err := s.accept(ctx, actor, requestID, in)
	var details map[string]interface{}
	if apt != nil {
		details = map[string]interface{}{"appointment_id": apt.ID, "scheduled_time": apt.ScheduledTime}
	}
	s.finish("accept", actor, "appointment_request:"+requestID, err, details)
	return apt, err
}

func (s *Service) accept(ctx context.Context, actor models.Actor, requestID string, in AcceptInput) (*models.Appointment, error) {
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	var apt *models.Appointment
	err = s.store.WithDoctorLock(ctx, req.DoctorID, func(tx Store) error {
		req, err := tx.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if actor.ID != req.DoctorID {
			return apperr.Authorization("not_request_doctor", "only the requested doctor can accept this request")
		}
		if req.Status != models.RequestPending {
			return apperr.InvalidState("request_not_pending", fmt.Sprintf("request is %s, not pending", req.Status))
		}

		now := s.clock()
		start, err := ParseScheduledTime(in.ScheduledTime)
		if err != nil {
			return err
		}
		if !start.After(now) {
			return apperr.Validation("scheduled_time_not_future", "scheduled time must be in the future")
		}
		duration, err := resolveDuration(in.DurationMinutes)
		if err != nil {
			return err
		}

		if err := s.checkSlot(ctx, tx, req.DoctorID, start, duration, ""); err != nil {
			return err
		}

		if err := tx.UpdateRequestStatus(ctx, req.ID, models.RequestAccepted); err != nil {
			return err
		}
		apt = &models.Appointment{
			RequestID:       req.ID,
			DoctorID:        req.DoctorID,
			PatientID:       req.PatientID,
			ScheduledTime:   start,
			DurationMinutes: duration,
			AcceptedByID:    actor.ID,
			IsConfirmed:     false,
			Notes:           in.Notes,
		}
		if err := tx.CreateAppointment(ctx, apt); err != nil {
			return err
		}
		return s.scheduleReminder(ctx, tx, apt, now)
	})
	if err != nil {
		return nil, err
	}
	return apt, nil
}

// Reject declines a pending request.
func (s *Service) Reject(ctx context.Context, actor models.Actor, requestID string) (*models.AppointmentRequest, error) {
	req, err := s.transitionRequest(ctx, actor, requestID, func(req *models.AppointmentRequest) error {
		if actor.ID != req.DoctorID {
			return apperr.Authorization("not_request_doctor", "only the requested doctor can reject this request")
		}
		if req.Status != models.RequestPending {
			return apperr.InvalidState("request_not_pending", fmt.Sprintf("request is %s, not pending", req.Status))
		}
		return nil
	}, models.RequestRejected, nil)
	s.finish("reject", actor, "appointment_request:"+requestID, err, nil)
	return req, err
}

// Cancel withdraws a pending or accepted request. Cancelling an accepted
// request also cancels its appointment and drops its unsent reminders.
func (s *Service) Cancel(ctx context.Context, actor models.Actor, requestID string) (*models.AppointmentRequest, error) {
	req, err := s.transitionRequest(ctx, actor, requestID, func(req *models.AppointmentRequest) error {
		if !access.IsParticipant(actor, req) {
			return apperr.Authorization("not_request_participant", "only the patient or the doctor can cancel this request")
		}
		if req.Status != models.RequestPending && req.Status != models.RequestAccepted {
			return apperr.InvalidState("request_not_cancellable", fmt.Sprintf("request is %s and cannot be cancelled", req.Status))
		}
		return nil
	}, models.RequestCancelled, func(tx Store, prev *models.AppointmentRequest) error {
		if prev.Status != models.RequestAccepted {
			return nil
		}
		apt, err := tx.GetAppointmentByRequest(ctx, prev.ID)
		if apperr.Is(err, apperr.KindNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if apt.IsCancelled() {
			return nil
		}
		if err := tx.CancelAppointment(ctx, apt.ID, s.clock()); err != nil {
			return err
		}
		return tx.DeleteUnsentReminders(ctx, apt.ID)
	})
	s.finish("cancel", actor, "appointment_request:"+requestID, err, nil)
	return req, err
}

// transitionRequest moves a request to status under the doctor lock once
// check accepts the current row. after runs in the same transaction with
// the row as it was before the change.
func (s *Service) transitionRequest(ctx context.Context, actor models.Actor, requestID string,
	check func(*models.AppointmentRequest) error, status models.RequestStatus,
	after func(tx Store, prev *models.AppointmentRequest) error) (*models.AppointmentRequest, error) {

	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	var updated *models.AppointmentRequest
	err = s.store.WithDoctorLock(ctx, req.DoctorID, func(tx Store) error {
		current, err := tx.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if err := check(current); err != nil {
			return err
		}
		if err := tx.UpdateRequestStatus(ctx, current.ID, status); err != nil {
			return err
		}
		if after != nil {
			if err := after(tx, current); err != nil {
				return err
			}
		}
		next := *current
		next.Status = status
		updated = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Confirm records the patient's acknowledgement of an appointment.
func (s *Service) Confirm(ctx context.Context, actor models.Actor, appointmentID string) (*models.Appointment, error) {
	apt, err := s.mutateAppointment(ctx, appointmentID, func(tx Store, apt *models.Appointment) error {
		if actor.ID != apt.PatientID {
			return apperr.Authorization("not_appointment_patient", "only the patient can confirm this appointment")
		}
		if apt.IsCancelled() {
			return apperr.InvalidState("appointment_cancelled", "appointment has been cancelled")
		}
		if err := tx.ConfirmAppointment(ctx, apt.ID); err != nil {
			return err
		}
		apt.IsConfirmed = true
		return nil
	})
	s.finish("confirm", actor, "appointment:"+appointmentID, err, nil)
	return apt, err
}

// Reschedule moves an appointment to a new start time, keeping its duration.
// The patient has to confirm again afterwards.
func (s *Service) Reschedule(ctx context.Context, actor models.Actor, appointmentID, newTime string) (*models.Appointment, error) {
	apt, err := s.mutateAppointment(ctx, appointmentID, func(tx Store, apt *models.Appointment) error {
		if !access.IsParticipant(actor, apt) {
			return apperr.Authorization("not_appointment_participant", "only the patient or the doctor can reschedule this appointment")
		}
		if apt.IsCancelled() {
			return apperr.InvalidState("appointment_cancelled", "appointment has been cancelled")
		}

		now := s.clock()
		start, err := ParseScheduledTime(newTime)
		if err != nil {
			return err
		}
		if !start.After(now) {
			return apperr.Validation("scheduled_time_not_future", "new scheduled time must be in the future")
		}

		if err := s.checkSlot(ctx, tx, apt.DoctorID, start, apt.DurationMinutes, apt.ID); err != nil {
			return err
		}

		if err := tx.RescheduleAppointment(ctx, apt.ID, start); err != nil {
			return err
		}
		apt.ScheduledTime = start
		apt.IsConfirmed = false

		if err := tx.DeleteUnsentReminders(ctx, apt.ID); err != nil {
			return err
		}
		return s.scheduleReminder(ctx, tx, apt, now)
	})
	s.finish("reschedule", actor, "appointment:"+appointmentID, err, nil)
	return apt, err
}

func (s *Service) mutateAppointment(ctx context.Context, appointmentID string, fn func(tx Store, apt *models.Appointment) error) (*models.Appointment, error) {
	apt, err := s.store.GetAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	var result *models.Appointment
	err = s.store.WithDoctorLock(ctx, apt.DoctorID, func(tx Store) error {
		current, err := tx.GetAppointment(ctx, appointmentID)
		if err != nil {
			return err
		}
		if err := fn(tx, current); err != nil {
			return err
		}
		result = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetAppointment returns an appointment visible to the actor.
func (s *Service) GetAppointment(ctx context.Context, actor models.Actor, id string) (*models.Appointment, error) {
	apt, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.CanView(actor, apt) {
		return nil, apperr.Authorization("forbidden", "you cannot view this appointment")
	}
	return apt, nil
}

// ListAppointments returns the appointments visible to the actor.
func (s *Service) ListAppointments(ctx context.Context, actor models.Actor, filter AppointmentFilter) ([]models.Appointment, error) {
	switch {
	case actor.Role.IsStaff():
	case actor.Role == models.RoleDoctor:
		filter.DoctorID = actor.ID
	case actor.Role == models.RolePatient:
		filter.PatientID = actor.ID
	default:
		return nil, apperr.Authorization("forbidden", "you cannot list appointments")
	}
	return s.store.ListAppointments(ctx, filter)
}

// ListReminders returns the reminders of an appointment visible to the actor.
func (s *Service) ListReminders(ctx context.Context, actor models.Actor, appointmentID string) ([]models.AppointmentReminder, error) {
	if _, err := s.GetAppointment(ctx, actor, appointmentID); err != nil {
		return nil, err
	}
	return s.store.ListReminders(ctx, appointmentID)
}

// DueReminders returns unsent reminders whose time has come, for the
// external delivery process.
func (s *Service) DueReminders(ctx context.Context, actor models.Actor, limit int) ([]models.AppointmentReminder, error) {
	if !actor.Role.IsStaff() {
		return nil, apperr.Authorization("forbidden", "only staff can read the reminder queue")
	}
	return s.store.DueReminders(ctx, s.clock(), limit)
}

// MarkReminderSent flags a reminder as delivered.
func (s *Service) MarkReminderSent(ctx context.Context, actor models.Actor, reminderID string) (*models.AppointmentReminder, error) {
	reminder, err := s.markReminderSent(ctx, actor, reminderID)
	if err == nil {
		s.metrics.reminder("sent")
	}
	s.finish("mark_reminder_sent", actor, "reminder:"+reminderID, err, nil)
	return reminder, err
}

func (s *Service) markReminderSent(ctx context.Context, actor models.Actor, reminderID string) (*models.AppointmentReminder, error) {
	if !actor.Role.IsStaff() {
		return nil, apperr.Authorization("forbidden", "only staff can update reminders")
	}
	reminder, err := s.store.GetReminder(ctx, reminderID)
	if err != nil {
		return nil, err
	}
	if reminder.IsSent {
		return nil, apperr.InvalidState("reminder_already_sent", "reminder was already sent")
	}
	if err := s.store.MarkReminderSent(ctx, reminder.ID); err != nil {
		return nil, err
	}
	reminder.IsSent = true
	return reminder, nil
}

func (s *Service) checkSlot(ctx context.Context, tx Store, doctorID string, start time.Time, duration int, excludeID string) error {
	conflict, err := NewConflictChecker(tx).FindConflict(ctx, doctorID, start, duration, excludeID)
	if err != nil {
		return err
	}
	if conflict != nil {
		s.metrics.conflict()
		return apperr.Conflict("appointment_conflict", "the doctor already has an appointment in this time slot").
			WithDetail("conflicting_appointment_id", conflict.ID)
	}
	return nil
}

func (s *Service) scheduleReminder(ctx context.Context, tx Store, apt *models.Appointment, now time.Time) error {
	reminder := s.reminders.Schedule(apt, now)
	if reminder == nil {
		s.metrics.reminder("skipped")
		return nil
	}
	if err := tx.CreateReminder(ctx, reminder); err != nil {
		return err
	}
	apt.Reminders = []models.AppointmentReminder{*reminder}
	s.metrics.reminder("scheduled")
	return nil
}

// finish records the outcome of a state-changing operation.
func (s *Service) finish(operation string, actor models.Actor, resource string, err error, details map[string]interface{}) {
	s.metrics.observe(operation, err)

	if err != nil {
		if apperr.KindOf(err) == "" {
			s.log.WithComponent("scheduling").WithError(err).WithField("operation", operation).Error("Appointment operation failed")
			return
		}
		if details == nil {
			details = map[string]interface{}{}
		}
		details["error"] = err.Error()
	}
	s.log.Audit(actor.ID, operation, resource, err == nil, details)
}

func requestResource(req *models.AppointmentRequest, fallback string) string {
	if req == nil {
		return "appointment_request:" + fallback
	}
	return "appointment_request:" + req.ID
}

func resolveDuration(minutes *int) (int, error) {
	if minutes == nil {
		return DefaultDurationMinutes, nil
	}
	if *minutes < 0 || *minutes > maxDurationMinutes {
		return 0, apperr.Validation("invalid_duration",
			fmt.Sprintf("duration must be between 0 and %d minutes", maxDurationMinutes))
	}
	return *minutes, nil
}
