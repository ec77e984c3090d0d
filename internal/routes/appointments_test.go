package routes

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medlink-server/internal/models"
)

// slot returns an RFC 3339 start time days from now at the given hour.
func slot(days, hour, minute int) string {
	d := time.Now().UTC().AddDate(0, 0, days)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, time.UTC).Format(time.RFC3339)
}

func (a *testApp) createRequest(patient *models.User, days int) models.AppointmentRequest {
	a.t.Helper()

	w, env := a.do(patient, http.MethodPost, "/api/v1/appointment-requests", gin.H{
		"doctor_id":           a.doctor.ID,
		"preferred_date":      time.Now().UTC().AddDate(0, 0, days).Format("2006-01-02"),
		"preferred_time_slot": "morning",
		"reason":              fmt.Sprintf("visit in %d days", days),
		"urgency_level":       "low",
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())

	var req models.AppointmentRequest
	decodeData(a.t, env, &req)
	return req
}

func TestAppointmentWorkflow(t *testing.T) {
	app := newTestApp(t)

	first := app.createRequest(app.patient, 5)
	assert.Equal(t, models.RequestPending, first.Status)
	assert.Equal(t, app.patient.ID, first.PatientID)

	// Accept at 10:00 for 60 minutes.
	w, env := app.do(app.doctor, http.MethodPost, "/api/v1/appointment-requests/"+first.ID+"/accept", gin.H{
		"scheduled_time": slot(5, 10, 0),
		"duration":       60,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var apt models.Appointment
	decodeData(t, env, &apt)
	assert.Equal(t, first.ID, apt.RequestID)
	assert.Equal(t, 60, apt.DurationMinutes)
	assert.False(t, apt.IsConfirmed)

	// A second request overlapping 10:30 is refused with the conflicting id.
	second := app.createRequest(app.otherPatient, 6)
	w, env = app.do(app.doctor, http.MethodPost, "/api/v1/appointment-requests/"+second.ID+"/accept", gin.H{
		"scheduled_time": slot(5, 10, 30),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "appointment_conflict", env.Code)
	assert.Equal(t, apt.ID, env.Details["conflicting_appointment_id"])

	// The adjacent slot at 11:00 is free.
	w, _ = app.do(app.doctor, http.MethodPost, "/api/v1/appointment-requests/"+second.ID+"/accept", gin.H{
		"scheduled_time": slot(5, 11, 0),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// Patient confirms, then the doctor moves the first appointment.
	w, env = app.do(app.patient, http.MethodPost, "/api/v1/appointments/"+apt.ID+"/confirm", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"status":"confirmed"}`, string(env.Data))

	w, env = app.do(app.doctor, http.MethodPost, "/api/v1/appointments/"+apt.ID+"/reschedule", gin.H{
		"new_scheduled_time": slot(5, 11, 15),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "appointment_conflict", env.Code)

	w, env = app.do(app.doctor, http.MethodPost, "/api/v1/appointments/"+apt.ID+"/reschedule", gin.H{
		"new_scheduled_time": slot(5, 8, 0),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var moved models.Appointment
	decodeData(t, env, &moved)
	assert.False(t, moved.IsConfirmed)
	assert.Equal(t, 8, moved.ScheduledTime.Hour())

	// Reminders follow the appointment.
	w, env = app.do(app.patient, http.MethodGet, "/api/v1/appointments/"+apt.ID+"/reminders", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var reminders []models.AppointmentReminder
	decodeData(t, env, &reminders)
	require.Len(t, reminders, 1)
	assert.True(t, reminders[0].ReminderTime.Equal(moved.ScheduledTime.Add(-24*time.Hour)))

	// Cancelling the accepted request retracts the appointment.
	w, env = app.do(app.patient, http.MethodPost, "/api/v1/appointment-requests/"+first.ID+"/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"status":"cancelled"}`, string(env.Data))

	w, env = app.do(app.patient, http.MethodGet, "/api/v1/appointments", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var mine []models.Appointment
	decodeData(t, env, &mine)
	assert.Empty(t, mine)

	w, env = app.do(app.doctor, http.MethodGet, "/api/v1/appointments?include_cancelled=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var all []models.Appointment
	decodeData(t, env, &all)
	assert.Len(t, all, 2)
}

func TestRejectAndErrorMapping(t *testing.T) {
	app := newTestApp(t)
	req := app.createRequest(app.patient, 3)

	tests := []struct {
		name     string
		user     *models.User
		method   string
		path     string
		body     interface{}
		wantCode int
		wantErr  string
	}{
		{"other doctor cannot accept", app.otherDoctor, http.MethodPost, "/accept", gin.H{"scheduled_time": slot(3, 9, 0)}, http.StatusForbidden, "not_request_doctor"},
		{"past time rejected", app.doctor, http.MethodPost, "/accept", gin.H{"scheduled_time": "2001-01-01T09:00:00Z"}, http.StatusBadRequest, "scheduled_time_not_future"},
		{"bad time rejected", app.doctor, http.MethodPost, "/accept", gin.H{"scheduled_time": "tomorrow"}, http.StatusBadRequest, "invalid_scheduled_time"},
		{"negative duration rejected", app.doctor, http.MethodPost, "/accept", gin.H{"scheduled_time": slot(3, 9, 0), "duration": -5}, http.StatusBadRequest, "invalid_duration"},
		{"outsider cannot read", app.otherPatient, http.MethodGet, "", nil, http.StatusForbidden, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := app.do(tt.user, tt.method, "/api/v1/appointment-requests/"+req.ID+tt.path, tt.body)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
			if tt.wantErr != "" {
				assert.Equal(t, tt.wantErr, env.Code)
			}
		})
	}

	w, env := app.do(app.doctor, http.MethodPost, "/api/v1/appointment-requests/"+req.ID+"/reject", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"status":"rejected"}`, string(env.Data))

	w, env = app.do(app.doctor, http.MethodPost, "/api/v1/appointment-requests/"+req.ID+"/accept", gin.H{"scheduled_time": slot(3, 9, 0)})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "request_not_pending", env.Code)

	w, _ = app.do(app.doctor, http.MethodGet, "/api/v1/appointment-requests/00000000-0000-0000-0000-000000000000", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateRequestValidation(t *testing.T) {
	app := newTestApp(t)

	w, env := app.do(app.doctor, http.MethodPost, "/api/v1/appointment-requests", gin.H{
		"doctor_id":           app.otherDoctor.ID,
		"preferred_date":      time.Now().UTC().AddDate(0, 0, 2).Format("2006-01-02"),
		"preferred_time_slot": "morning",
		"reason":              "doctors cannot book",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "patients_only", env.Code)

	w, _ = app.do(app.patient, http.MethodPost, "/api/v1/appointment-requests", gin.H{
		"doctor_id":           app.doctor.ID,
		"preferred_date":      "not-a-date",
		"preferred_time_slot": "morning",
		"reason":              "x",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = app.do(app.patient, http.MethodPost, "/api/v1/appointment-requests", gin.H{"doctor_id": "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env.Error, "Validation failed")

	first := app.createRequest(app.patient, 4)
	w, env = app.do(app.patient, http.MethodPost, "/api/v1/appointment-requests", gin.H{
		"doctor_id":           app.doctor.ID,
		"preferred_date":      first.PreferredDate.Format("2006-01-02"),
		"preferred_time_slot": "morning",
		"reason":              "again",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "duplicate_pending_request", env.Code)

	w, env = app.do(app.doctor, http.MethodGet, "/api/v1/appointment-requests?status=pending", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var pending []models.AppointmentRequest
	decodeData(t, env, &pending)
	assert.Len(t, pending, 1)
}

func TestDueRemindersOverHTTP(t *testing.T) {
	app := newTestApp(t)
	req := app.createRequest(app.patient, 1)

	w, _ := app.do(app.doctor, http.MethodPost, "/api/v1/appointment-requests/"+req.ID+"/accept", gin.H{
		"scheduled_time": time.Now().UTC().Add(48 * time.Hour).Truncate(time.Minute).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, env := app.do(app.admin, http.MethodGet, "/api/v1/reminders/due?limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var due []models.AppointmentReminder
	decodeData(t, env, &due)
	assert.Empty(t, due, "reminder 24h ahead of a 48h appointment is not due yet")

	w, _ = app.do(app.admin, http.MethodGet, "/api/v1/reminders/due?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = app.do(app.admin, http.MethodPost, "/api/v1/reminders/00000000-0000-0000-0000-000000000000/sent", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "reminder_not_found", env.Code)
}
