package models

import (
	"time"
)

// RequestStatus represents the status of an appointment request
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestAccepted  RequestStatus = "accepted"
	RequestRejected  RequestStatus = "rejected"
	RequestCancelled RequestStatus = "cancelled"
)

// TimeSlot is the part of the day a patient would like to be seen.
type TimeSlot string

const (
	SlotMorning   TimeSlot = "morning"
	SlotAfternoon TimeSlot = "afternoon"
	SlotEvening   TimeSlot = "evening"
)

// Valid reports whether s is a known time slot.
func (s TimeSlot) Valid() bool {
	switch s {
	case SlotMorning, SlotAfternoon, SlotEvening:
		return true
	}
	return false
}

// UrgencyLevel of an appointment request.
type UrgencyLevel string

const (
	UrgencyLow       UrgencyLevel = "low"
	UrgencyMedium    UrgencyLevel = "medium"
	UrgencyHigh      UrgencyLevel = "high"
	UrgencyEmergency UrgencyLevel = "emergency"
)

// Valid reports whether u is a known urgency level.
func (u UrgencyLevel) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyEmergency:
		return true
	}
	return false
}

// ReminderType is the delivery channel of a reminder.
type ReminderType string

const (
	ReminderEmail ReminderType = "email"
	ReminderSMS   ReminderType = "sms"
	ReminderPush  ReminderType = "push"
)

// AppointmentRequest is a patient's ask for an appointment with a doctor
type AppointmentRequest struct {
	BaseModel
	PatientID         string        `gorm:"size:36;not null;index" json:"patient_id"`
	DoctorID          string        `gorm:"size:36;not null;index" json:"doctor_id"`
	RequestedAt       time.Time     `gorm:"<-:create;not null" json:"requested_at"`
	PreferredDate     time.Time     `gorm:"not null" json:"preferred_date"`
	PreferredTimeSlot TimeSlot      `gorm:"size:20;not null" json:"preferred_time_slot"`
	Status            RequestStatus `gorm:"size:20;not null;index" json:"status"`
	Reason            string        `gorm:"type:text;not null" json:"reason"`
	UrgencyLevel      UrgencyLevel  `gorm:"size:20;not null" json:"urgency_level"`
	Notes             string        `gorm:"type:text" json:"notes,omitempty"`

	// Relations
	Patient     *User        `gorm:"foreignKey:PatientID" json:"patient,omitempty"`
	Doctor      *User        `gorm:"foreignKey:DoctorID" json:"doctor,omitempty"`
	Appointment *Appointment `gorm:"foreignKey:RequestID" json:"appointment,omitempty"`
}

// ParticipantIDs implements Participated.
func (r *AppointmentRequest) ParticipantIDs() []string {
	return []string{r.PatientID, r.DoctorID}
}

// Appointment is a scheduled consultation created when a request is accepted
type Appointment struct {
	BaseModel
	RequestID       string     `gorm:"size:36;not null;uniqueIndex" json:"request_id"`
	DoctorID        string     `gorm:"size:36;not null;index:idx_appointments_doctor_time,priority:1" json:"doctor_id"`
	PatientID       string     `gorm:"size:36;not null;index" json:"patient_id"`
	ScheduledTime   time.Time  `gorm:"not null;index:idx_appointments_doctor_time,priority:2" json:"scheduled_time"`
	DurationMinutes int        `gorm:"not null" json:"duration"`
	AcceptedByID    string     `gorm:"size:36;not null" json:"accepted_by_id"`
	IsConfirmed     bool       `gorm:"not null" json:"is_confirmed"`
	Notes           string     `gorm:"type:text" json:"notes,omitempty"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`

	Reminders []AppointmentReminder `gorm:"foreignKey:AppointmentID" json:"reminders,omitempty"`
}

// ParticipantIDs implements Participated.
func (a *Appointment) ParticipantIDs() []string {
	return []string{a.PatientID, a.DoctorID}
}

// IsCancelled reports whether the appointment was retracted.
func (a *Appointment) IsCancelled() bool {
	return a.CancelledAt != nil
}

// AppointmentReminder is a notification to be delivered before an appointment
type AppointmentReminder struct {
	BaseModel
	AppointmentID string       `gorm:"size:36;not null;index" json:"appointment_id"`
	ReminderTime  time.Time    `gorm:"not null;index" json:"reminder_time"`
	IsSent        bool         `gorm:"not null" json:"is_sent"`
	ReminderType  ReminderType `gorm:"size:10;not null" json:"reminder_type"`
}
