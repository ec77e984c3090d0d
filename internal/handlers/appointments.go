package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"medlink-server/internal/middleware"
	"medlink-server/internal/models"
	"medlink-server/internal/scheduling"
	"medlink-server/internal/utils"
)

// AppointmentHandler exposes the appointment request workflow.
type AppointmentHandler struct {
	Service *scheduling.Service
}

// NewAppointmentHandler creates a new AppointmentHandler.
func NewAppointmentHandler(service *scheduling.Service) *AppointmentHandler {
	return &AppointmentHandler{Service: service}
}

// CreateRequestRequest is the body of a new appointment request.
type CreateRequestRequest struct {
	DoctorID          string `json:"doctor_id" binding:"required,uuid"`
	PreferredDate     string `json:"preferred_date" binding:"required"`
	PreferredTimeSlot string `json:"preferred_time_slot" binding:"required"`
	Reason            string `json:"reason" binding:"required"`
	UrgencyLevel      string `json:"urgency_level"`
	Notes             string `json:"notes"`
}

// CreateRequest handles a patient asking for an appointment.
func (h *AppointmentHandler) CreateRequest(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		return
	}

	var req CreateRequestRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	date, err := scheduling.ParseDate(req.PreferredDate)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	created, err := h.Service.CreateRequest(c.Request.Context(), actor, scheduling.CreateRequestInput{
		DoctorID:          req.DoctorID,
		PreferredDate:     date,
		PreferredTimeSlot: models.TimeSlot(req.PreferredTimeSlot),
		Reason:            req.Reason,
		UrgencyLevel:      models.UrgencyLevel(req.UrgencyLevel),
		Notes:             req.Notes,
	})
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.Created(c, "Appointment request created successfully", created)
}

// ListRequests returns the caller's appointment requests. Staff may filter by
// patient_id and doctor_id; everyone may filter by status.
func (h *AppointmentHandler) ListRequests(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		return
	}

	requests, err := h.Service.ListRequests(c.Request.Context(), actor, scheduling.RequestFilter{
		PatientID: c.Query("patient_id"),
		DoctorID:  c.Query("doctor_id"),
		Status:    models.RequestStatus(c.Query("status")),
	})
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.Success(c, "Appointment requests fetched successfully", requests)
}

// GetRequest returns a single appointment request.
func (h *AppointmentHandler) GetRequest(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		return
	}

	req, err := h.Service.GetRequest(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.Success(c, "Appointment request fetched successfully", req)
}

// AcceptRequest is the body of an accept call.
type AcceptRequest struct {
	ScheduledTime string `json:"scheduled_time" binding:"required"`
	Duration      *int   `json:"duration"`
	Notes         string `json:"notes"`
}

// Accept handles the doctor turning a pending request into an appointment.
func (h *AppointmentHandler) Accept(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		return
	}

	var req AcceptRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	apt, err := h.Service.Accept(c.Request.Context(), actor, c.Param("id"), scheduling.AcceptInput{
		ScheduledTime:   req.ScheduledTime,
		DurationMinutes: req.Duration,
		Notes:           req.Notes,
	})
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.Created(c, "Appointment request accepted", apt)
}

// Reject handles the doctor declining a pending request.
func (h *AppointmentHandler) Reject(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		return
	}

	if _, err := h.Service.Reject(c.Request.Context(), actor, c.Param("id")); err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.Success(c, "Appointment request rejected", gin.H{"status": models.RequestRejected})
}

// Cancel handles either participant withdrawing a request.
func (h *AppointmentHandler) Cancel(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		return
	}

	if _, err := h.Service.Cancel(c.Request.Context(), actor, c.Param("id")); err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.Success(c, "Appointment request cancelled", gin.H{"status": models.RequestCancelled})
}

// ListAppointments returns the caller's appointments, optionally bounded by
// the from and to query parameters.
func (h *AppointmentHandler) ListAppointments(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		return
	}

	filter := scheduling.AppointmentFilter{
		PatientID:        c.Query("patient_id"),
		DoctorID:         c.Query("doctor_id"),
		IncludeCancelled: c.Query("include_cancelled") == "true",
	}
	if from := c.Query("from"); from != "" {
		t, err := scheduling.ParseScheduledTime(from)
		if err != nil {
			utils.HandleError(c, err)
			return
		}
		filter.From = t
	}
	if to := c.Query("to"); to != "" {
		t, err := scheduling.ParseScheduledTime(to)
		if err != nil {
			utils.HandleError(c, err)
			return
		}
		filter.To = t
	}

	appointments, err := h.Service.ListAppointments(c.Request.Context(), actor, filter)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.Success(c, "Appointments fetched successfully", appointments)
}

// GetAppointment returns a single appointment.
func (h *AppointmentHandler) GetAppointment(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		return
	}

	apt, err := h.Service.GetAppointment(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.Success(c, "Appointment fetched successfully", apt)
}

// Confirm handles the patient acknowledging an appointment.
func (h *AppointmentHandler) Confirm(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		return
	}

	if _, err := h.Service.Confirm(c.Request.Context(), actor, c.Param("id")); err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.Success(c, "Appointment confirmed", gin.H{"status": "confirmed"})
}

// RescheduleRequest is the body of a reschedule call.
type RescheduleRequest struct {
	NewScheduledTime string `json:"new_scheduled_time" binding:"required"`
}

// Reschedule moves an appointment to a new start time.
func (h *AppointmentHandler) Reschedule(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		return
	}

	var req RescheduleRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	apt, err := h.Service.Reschedule(c.Request.Context(), actor, c.Param("id"), req.NewScheduledTime)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.Success(c, "Appointment rescheduled successfully", apt)
}

// ListReminders returns the reminders of an appointment.
func (h *AppointmentHandler) ListReminders(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		return
	}

	reminders, err := h.Service.ListReminders(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.Success(c, "Reminders fetched successfully", reminders)
}

// DueReminders returns unsent reminders whose time has come.
func (h *AppointmentHandler) DueReminders(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		return
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			utils.BadRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}

	reminders, err := h.Service.DueReminders(c.Request.Context(), actor, limit)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.Success(c, "Due reminders fetched successfully", reminders)
}

// MarkReminderSent records the delivery of a reminder.
func (h *AppointmentHandler) MarkReminderSent(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		return
	}

	reminder, err := h.Service.MarkReminderSent(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.Success(c, "Reminder marked as sent", reminder)
}
