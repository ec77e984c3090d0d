package routes

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medlink-server/internal/handlers"
	"medlink-server/internal/models"
	"medlink-server/internal/testutil"
)

func TestRegisterCreatesProfile(t *testing.T) {
	app := newTestApp(t)

	w, env := app.do(nil, http.MethodPost, "/api/v1/auth/register", gin.H{
		"username":   "newdoc",
		"first_name": "New",
		"last_name":  "Doc",
		"email":      "newdoc@medlink.test",
		"password":   "supersecret",
		"role":       "doctor",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var user models.UserSanitized
	decodeData(t, env, &user)
	assert.Equal(t, models.RoleDoctor, user.Role)
	assert.NotContains(t, w.Body.String(), "password\"")

	var profiles int64
	require.NoError(t, app.srv.DB.Model(&models.DoctorProfile{}).Where("user_id = ?", user.ID).Count(&profiles).Error)
	assert.EqualValues(t, 1, profiles)

	tests := []struct {
		name string
		body gin.H
	}{
		{"duplicate username", gin.H{"username": "newdoc", "first_name": "A", "last_name": "B", "email": "other@medlink.test", "password": "supersecret"}},
		{"staff role not allowed", gin.H{"username": "boss", "first_name": "A", "last_name": "B", "email": "boss@medlink.test", "password": "supersecret", "role": "admin"}},
		{"short password", gin.H{"username": "shorty", "first_name": "A", "last_name": "B", "email": "shorty@medlink.test", "password": "short"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := app.do(nil, http.MethodPost, "/api/v1/auth/register", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestLoginRefreshLogout(t *testing.T) {
	app := newTestApp(t)

	w, _ := app.do(nil, http.MethodPost, "/api/v1/auth/login", gin.H{"username": "patient", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env := app.do(nil, http.MethodPost, "/api/v1/auth/login", gin.H{"username": "patient@medlink.test", "password": testutil.Password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var login handlers.LoginResponse
	decodeData(t, env, &login)
	assert.NotEmpty(t, login.AccessToken)
	assert.Equal(t, app.patient.ID, login.User.ID)

	w, env = app.do(nil, http.MethodPost, "/api/v1/auth/refresh-token", gin.H{"refresh_token": login.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var refreshed handlers.RefreshTokenResponse
	decodeData(t, env, &refreshed)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// The rotated token is single use.
	w, _ = app.do(nil, http.MethodPost, "/api/v1/auth/refresh-token", gin.H{"refresh_token": login.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = app.do(app.patient, http.MethodPost, "/api/v1/auth/logout", gin.H{"refresh_token": refreshed.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = app.do(nil, http.MethodPost, "/api/v1/auth/refresh-token", gin.H{"refresh_token": refreshed.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDisabledUserCannotLogin(t *testing.T) {
	app := newTestApp(t)

	w, _ := app.do(app.admin, http.MethodPut, "/api/v1/users/"+app.otherPatient.ID, gin.H{"is_active": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = app.do(nil, http.MethodPost, "/api/v1/auth/login", gin.H{"username": "patient2", "password": testutil.Password})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestOwnAccountProfile(t *testing.T) {
	app := newTestApp(t)

	w, env := app.do(app.patient, http.MethodPut, "/api/v1/auth/profile", gin.H{"first_name": "Renamed", "phone_number": "555-0100"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env = app.do(app.patient, http.MethodGet, "/api/v1/auth/profile", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var user models.UserSanitized
	decodeData(t, env, &user)
	assert.Equal(t, "Renamed", user.FirstName)
	assert.Equal(t, "555-0100", user.PhoneNumber)
}

func TestAdminUserManagement(t *testing.T) {
	app := newTestApp(t)

	w, env := app.do(app.admin, http.MethodPost, "/api/v1/users", gin.H{
		"username":   "desk2",
		"first_name": "Second",
		"last_name":  "Desk",
		"email":      "desk2@medlink.test",
		"password":   "supersecret",
		"role":       "receptionist",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created models.UserSanitized
	decodeData(t, env, &created)

	w, env = app.do(app.admin, http.MethodGet, "/api/v1/users?role=receptionist", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var staff []models.UserSanitized
	decodeData(t, env, &staff)
	assert.Len(t, staff, 2)

	w, _ = app.do(app.admin, http.MethodPut, "/api/v1/users/"+created.ID, gin.H{"email": "doctor@medlink.test"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "email belongs to another user")

	w, _ = app.do(app.admin, http.MethodDelete, "/api/v1/users/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = app.do(app.admin, http.MethodGet, "/api/v1/users/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Users with appointment history are only deactivated.
	app.createRequest(app.patient, 2)
	w, env = app.do(app.admin, http.MethodDelete, "/api/v1/users/"+app.patient.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, env.Message, "deactivated")

	var patient models.User
	require.NoError(t, app.srv.DB.First(&patient, "id = ?", app.patient.ID).Error)
	assert.False(t, patient.IsActive)
}
