package routes

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medlink-server/internal/config"
	"medlink-server/internal/logger"
	"medlink-server/internal/models"
	"medlink-server/internal/testutil"
	"medlink-server/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Status  int                    `json:"status"`
	Message string                 `json:"message"`
	Data    json.RawMessage        `json:"data"`
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details"`
}

type testApp struct {
	t      *testing.T
	srv    *Server
	router *gin.Engine

	admin        *models.User
	receptionist *models.User
	doctor       *models.User
	otherDoctor  *models.User
	patient      *models.User
	otherPatient *models.User
}

func testConfig() *config.Config {
	return &config.Config{
		Port:                      "0",
		Origin:                    "http://localhost:4200",
		Environment:               "test",
		JWTSecret:                 "test-secret",
		JWTRefreshSecret:          "test-refresh-secret",
		JWTExpirationMinutes:      15,
		JWTRefreshExpirationHours: 1,
		ReminderLeadHours:         24,
		MaxUploadMB:               1,
	}
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	db := testutil.NewDB(t)
	srv := NewServer(db, testConfig(), logger.Discard())
	return &testApp{
		t:            t,
		srv:          srv,
		router:       NewRouter(srv),
		admin:        testutil.CreateUser(t, db, models.RoleAdmin, "admin"),
		receptionist: testutil.CreateUser(t, db, models.RoleReceptionist, "reception"),
		doctor:       testutil.CreateUser(t, db, models.RoleDoctor, "doctor"),
		otherDoctor:  testutil.CreateUser(t, db, models.RoleDoctor, "doctor2"),
		patient:      testutil.CreateUser(t, db, models.RolePatient, "patient"),
		otherPatient: testutil.CreateUser(t, db, models.RolePatient, "patient2"),
	}
}

func (a *testApp) token(user *models.User) string {
	a.t.Helper()
	access, _, err := utils.GenerateTokens(user, a.srv.Cfg)
	require.NoError(a.t, err)
	return access
}

// do sends a JSON request as user (nil for anonymous) and decodes the envelope.
func (a *testApp) do(user *models.User, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	a.t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return a.serve(user, req)
}

// upload sends a multipart form with a single "file" field.
func (a *testApp) upload(user *models.User, path, fileName string, content []byte, fields map[string]string) (*httptest.ResponseRecorder, envelope) {
	a.t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(a.t, mw.WriteField(k, v))
	}
	part, err := mw.CreateFormFile("file", fileName)
	require.NoError(a.t, err)
	_, err = part.Write(content)
	require.NoError(a.t, err)
	require.NoError(a.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return a.serve(user, req)
}

func (a *testApp) serve(user *models.User, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	a.t.Helper()

	if user != nil {
		req.Header.Set("Authorization", "Bearer "+a.token(user))
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func decodeData(t *testing.T, env envelope, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, dest), string(env.Data))
}

func TestHealthAndMetrics(t *testing.T) {
	app := newTestApp(t)

	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"UP"}`, w.Body.String())

	w = httptest.NewRecorder()
	app.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestAuthRequired(t *testing.T) {
	app := newTestApp(t)

	w, env := app.do(nil, http.MethodGet, "/api/v1/appointments", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Authorization header required", env.Error)
}

func TestRoleGuards(t *testing.T) {
	app := newTestApp(t)

	tests := []struct {
		name   string
		user   *models.User
		method string
		path   string
		want   int
	}{
		{"patient cannot list users", app.patient, http.MethodGet, "/api/v1/users", http.StatusForbidden},
		{"admin lists users", app.admin, http.MethodGet, "/api/v1/users", http.StatusOK},
		{"patient cannot list patients", app.patient, http.MethodGet, "/api/v1/users/patients", http.StatusForbidden},
		{"doctor lists patients", app.doctor, http.MethodGet, "/api/v1/users/patients", http.StatusOK},
		{"patient cannot poll reminders", app.patient, http.MethodGet, "/api/v1/reminders/due", http.StatusForbidden},
		{"doctor cannot poll reminders", app.doctor, http.MethodGet, "/api/v1/reminders/due", http.StatusForbidden},
		{"receptionist polls reminders", app.receptionist, http.MethodGet, "/api/v1/reminders/due", http.StatusOK},
		{"doctor has no patient profile", app.doctor, http.MethodGet, "/api/v1/profiles/patient", http.StatusForbidden},
		{"patient has a patient profile", app.patient, http.MethodGet, "/api/v1/profiles/patient", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := app.do(tt.user, tt.method, tt.path, nil)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
