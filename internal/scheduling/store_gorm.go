package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"medlink-server/internal/apperr"
	"medlink-server/internal/models"
)

// GormStore implements Store on top of gorm.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a store backed by db.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

var _ Store = (*GormStore)(nil)

func (s *GormStore) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// first loads a single row into dest, turning a miss into a NotFound error.
func first(q *gorm.DB, dest interface{}, code, what, id string) error {
	if err := q.First(dest).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound(code, fmt.Sprintf("%s %s not found", what, id))
		}
		return fmt.Errorf("load %s %s: %w", what, id, err)
	}
	return nil
}

// requireRow turns a zero-row update into a NotFound error.
func requireRow(res *gorm.DB, code, what, id string) error {
	if res.Error != nil {
		return fmt.Errorf("update %s %s: %w", what, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound(code, fmt.Sprintf("%s %s not found", what, id))
	}
	return nil
}

func (s *GormStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := first(s.conn(ctx).Where("id = ?", id), &user, "user_not_found", "user", id); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *GormStore) CreateRequest(ctx context.Context, req *models.AppointmentRequest) error {
	if err := s.conn(ctx).Omit(clause.Associations).Create(req).Error; err != nil {
		return fmt.Errorf("create appointment request: %w", err)
	}
	return nil
}

func (s *GormStore) GetRequest(ctx context.Context, id string) (*models.AppointmentRequest, error) {
	var req models.AppointmentRequest
	if err := first(s.conn(ctx).Where("id = ?", id), &req, "request_not_found", "appointment request", id); err != nil {
		return nil, err
	}
	return &req, nil
}

func (s *GormStore) ListRequestsByDoctor(ctx context.Context, doctorID string) ([]models.AppointmentRequest, error) {
	return s.ListRequests(ctx, RequestFilter{DoctorID: doctorID})
}

func (s *GormStore) ListRequestsByPatient(ctx context.Context, patientID string) ([]models.AppointmentRequest, error) {
	return s.ListRequests(ctx, RequestFilter{PatientID: patientID})
}

func (s *GormStore) ListRequests(ctx context.Context, filter RequestFilter) ([]models.AppointmentRequest, error) {
	q := s.conn(ctx).Model(&models.AppointmentRequest{})
	if filter.PatientID != "" {
		q = q.Where("patient_id = ?", filter.PatientID)
	}
	if filter.DoctorID != "" {
		q = q.Where("doctor_id = ?", filter.DoctorID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	var requests []models.AppointmentRequest
	if err := q.Order("requested_at desc").Find(&requests).Error; err != nil {
		return nil, fmt.Errorf("list appointment requests: %w", err)
	}
	return requests, nil
}

func (s *GormStore) UpdateRequestStatus(ctx context.Context, id string, status models.RequestStatus) error {
	res := s.conn(ctx).Model(&models.AppointmentRequest{}).Where("id = ?", id).Update("status", status)
	return requireRow(res, "request_not_found", "appointment request", id)
}

func (s *GormStore) HasPendingRequest(ctx context.Context, patientID, doctorID string, date time.Time, slot models.TimeSlot) (bool, error) {
	var count int64
	err := s.conn(ctx).Model(&models.AppointmentRequest{}).
		Where("patient_id = ? AND doctor_id = ? AND preferred_date = ? AND preferred_time_slot = ? AND status = ?",
			patientID, doctorID, date, slot, models.RequestPending).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check pending requests: %w", err)
	}
	return count > 0, nil
}

func (s *GormStore) CreateAppointment(ctx context.Context, apt *models.Appointment) error {
	if err := s.conn(ctx).Omit(clause.Associations).Create(apt).Error; err != nil {
		return fmt.Errorf("create appointment: %w", err)
	}
	return nil
}

func (s *GormStore) GetAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	var apt models.Appointment
	if err := first(s.conn(ctx).Where("id = ?", id), &apt, "appointment_not_found", "appointment", id); err != nil {
		return nil, err
	}
	return &apt, nil
}

func (s *GormStore) GetAppointmentByRequest(ctx context.Context, requestID string) (*models.Appointment, error) {
	var apt models.Appointment
	if err := first(s.conn(ctx).Where("request_id = ?", requestID), &apt, "appointment_not_found", "appointment for request", requestID); err != nil {
		return nil, err
	}
	return &apt, nil
}

func (s *GormStore) ListAppointments(ctx context.Context, filter AppointmentFilter) ([]models.Appointment, error) {
	q := s.conn(ctx).Model(&models.Appointment{})
	if filter.PatientID != "" {
		q = q.Where("patient_id = ?", filter.PatientID)
	}
	if filter.DoctorID != "" {
		q = q.Where("doctor_id = ?", filter.DoctorID)
	}
	if !filter.From.IsZero() {
		q = q.Where("scheduled_time >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		q = q.Where("scheduled_time < ?", filter.To)
	}
	if !filter.IncludeCancelled {
		q = q.Where("cancelled_at IS NULL")
	}

	var appointments []models.Appointment
	if err := q.Order("scheduled_time asc").Find(&appointments).Error; err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appointments, nil
}

func (s *GormStore) AppointmentsStartingBetween(ctx context.Context, doctorID string, from, to time.Time, excludeID string) ([]models.Appointment, error) {
	q := s.conn(ctx).
		Where("doctor_id = ? AND cancelled_at IS NULL", doctorID).
		Where("scheduled_time > ? AND scheduled_time < ?", from, to)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}

	var appointments []models.Appointment
	if err := q.Order("scheduled_time asc").Find(&appointments).Error; err != nil {
		return nil, fmt.Errorf("load appointments of doctor %s: %w", doctorID, err)
	}
	return appointments, nil
}

func (s *GormStore) RescheduleAppointment(ctx context.Context, id string, start time.Time) error {
	res := s.conn(ctx).Model(&models.Appointment{}).Where("id = ?", id).
		Updates(map[string]interface{}{"scheduled_time": start, "is_confirmed": false})
	return requireRow(res, "appointment_not_found", "appointment", id)
}

func (s *GormStore) ConfirmAppointment(ctx context.Context, id string) error {
	res := s.conn(ctx).Model(&models.Appointment{}).Where("id = ?", id).Update("is_confirmed", true)
	return requireRow(res, "appointment_not_found", "appointment", id)
}

func (s *GormStore) CancelAppointment(ctx context.Context, id string, at time.Time) error {
	res := s.conn(ctx).Model(&models.Appointment{}).Where("id = ?", id).Update("cancelled_at", at)
	return requireRow(res, "appointment_not_found", "appointment", id)
}

func (s *GormStore) CreateReminder(ctx context.Context, reminder *models.AppointmentReminder) error {
	if err := s.conn(ctx).Create(reminder).Error; err != nil {
		return fmt.Errorf("create reminder: %w", err)
	}
	return nil
}

func (s *GormStore) GetReminder(ctx context.Context, id string) (*models.AppointmentReminder, error) {
	var reminder models.AppointmentReminder
	if err := first(s.conn(ctx).Where("id = ?", id), &reminder, "reminder_not_found", "reminder", id); err != nil {
		return nil, err
	}
	return &reminder, nil
}

func (s *GormStore) ListReminders(ctx context.Context, appointmentID string) ([]models.AppointmentReminder, error) {
	var reminders []models.AppointmentReminder
	err := s.conn(ctx).Where("appointment_id = ?", appointmentID).Order("reminder_time asc").Find(&reminders).Error
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	return reminders, nil
}

func (s *GormStore) DueReminders(ctx context.Context, at time.Time, limit int) ([]models.AppointmentReminder, error) {
	q := s.conn(ctx).Where("is_sent = ? AND reminder_time <= ?", false, at).Order("reminder_time asc")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var reminders []models.AppointmentReminder
	if err := q.Find(&reminders).Error; err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}
	return reminders, nil
}

func (s *GormStore) DeleteUnsentReminders(ctx context.Context, appointmentID string) error {
	err := s.conn(ctx).Where("appointment_id = ? AND is_sent = ?", appointmentID, false).
		Delete(&models.AppointmentReminder{}).Error
	if err != nil {
		return fmt.Errorf("delete reminders of appointment %s: %w", appointmentID, err)
	}
	return nil
}

func (s *GormStore) MarkReminderSent(ctx context.Context, id string) error {
	res := s.conn(ctx).Model(&models.AppointmentReminder{}).Where("id = ?", id).Update("is_sent", true)
	return requireRow(res, "reminder_not_found", "reminder", id)
}

// WithDoctorLock serializes writers per doctor by locking the doctor's user
// row for the lifetime of the transaction.
func (s *GormStore) WithDoctorLock(ctx context.Context, doctorID string, fn func(tx Store) error) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var doctor models.User
		q := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").Where("id = ?", doctorID)
		if err := first(q, &doctor, "doctor_not_found", "doctor", doctorID); err != nil {
			return err
		}
		return fn(&GormStore{db: tx})
	})
}
