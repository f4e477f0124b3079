package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/renova-api/internal/access"
	authhandler "github.com/jwalitptl/renova-api/internal/handler/auth"
	clienthandler "github.com/jwalitptl/renova-api/internal/handler/client"
	"github.com/jwalitptl/renova-api/internal/handler/health"
	ownerhandler "github.com/jwalitptl/renova-api/internal/handler/owner"
	therapisthandler "github.com/jwalitptl/renova-api/internal/handler/therapist"
	"github.com/jwalitptl/renova-api/internal/middleware"
	"github.com/jwalitptl/renova-api/internal/model"
	"github.com/jwalitptl/renova-api/internal/repository/memory"
	"github.com/jwalitptl/renova-api/internal/service/auth"
	"github.com/jwalitptl/renova-api/internal/service/client"
	"github.com/jwalitptl/renova-api/internal/service/owner"
	"github.com/jwalitptl/renova-api/internal/service/therapist"
	"github.com/jwalitptl/renova-api/pkg/logger"
	"github.com/jwalitptl/renova-api/pkg/metrics"
	"github.com/jwalitptl/renova-api/pkg/security"
)

const password = "correct-horse"

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testAPI struct {
	t      *testing.T
	engine *gin.Engine
	store  *memory.Store
	hasher security.PasswordHasher
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	require.NoError(t, middleware.RegisterValidators())

	store := memory.NewStore()
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg, "renova", "test")
	log := logger.Nop()
	clock := func() time.Time { return time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC) }

	tokens := access.NewTokenIssuer("router-test-secret", time.Hour)
	resolver := access.NewResolver(store, tokens)
	hasher := security.NewBcryptHasher(bcrypt.MinCost)
	authSvc := auth.NewService(store, hasher, tokens, nil, clock, log)

	r := NewRouter(RouterConfig{
		Mode:          gin.TestMode,
		MetricsPrefix: "renova_http",
		Registerer:    reg,
		Gatherer:      reg,
		Security:      middleware.SecurityConfigFor(false),
	}, []Handler{
		health.NewHandler(store),
		authhandler.NewHandler(authSvc, tokens.TTL(), false),
	}, []Handler{
		clienthandler.NewHandler(client.NewService(clock, time.UTC, m, log), resolver, time.UTC),
		therapisthandler.NewHandler(therapist.NewService(clock, time.UTC, m, log), resolver, time.UTC),
		ownerhandler.NewHandler(owner.NewService(log), resolver),
	})
	r.Setup()

	return &testAPI{t: t, engine: r.Engine(), store: store, hasher: hasher}
}

func (a *testAPI) do(method, path string, body interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func (a *testAPI) login(path, email string) *http.Cookie {
	a.t.Helper()
	w := a.do(http.MethodPost, path, gin.H{"email": email, "password": password})
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
	for _, c := range w.Result().Cookies() {
		if c.Name == access.CookieName {
			return c
		}
	}
	a.t.Fatal("credential cookie not set")
	return nil
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func person(first, email string) gin.H {
	return gin.H{
		"first_name":    first,
		"last_name":     "Test",
		"date_of_birth": "1990-01-01T00:00:00Z",
		"email":         email,
		"password":      password,
	}
}

func TestBookingFlowOverHTTP(t *testing.T) {
	api := newTestAPI(t)

	th := person("Tom", "tom@example.com")
	th["license_number"] = "LIC-1"
	th["years_of_experience"] = 4
	w := api.do(http.MethodPost, "/signup/therapist", th)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created model.Therapist
	decode(t, w, &created)
	assert.Equal(t, model.EmploymentPending, created.Status)

	w = api.do(http.MethodPost, "/signup/client", person("Ada", "ada@example.com"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	therapistCookie := api.login("/dashboard/login", "tom@example.com")
	clientCookie := api.login("/login", "ada@example.com")

	w = api.do(http.MethodPost, "/schedule", gin.H{"weekday": 3, "hour": 14, "date": "2024-06-03T00:00:00Z"}, therapistCookie)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var block model.ScheduleBlock
	decode(t, w, &block)
	assert.Equal(t, time.Date(2024, 6, 5, 14, 0, 0, 0, time.UTC), block.StartAt.UTC())
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	w = api.do(http.MethodGet, "/open_blocks?therapist_id="+fmt.Sprint(created.ID), nil, clientCookie)
	require.Equal(t, http.StatusOK, w.Code)
	var open []model.ScheduleBlock
	decode(t, w, &open)
	require.Len(t, open, 1)

	apptPath := fmt.Sprintf("/appointments/%d", block.ID)
	w = api.do(http.MethodPut, apptPath, nil, clientCookie)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var appt model.Appointment
	decode(t, w, &appt)
	assert.Equal(t, model.AppointmentStatusPending, appt.Status)

	w = api.do(http.MethodPut, apptPath, nil, clientCookie)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = api.do(http.MethodPut, fmt.Sprintf("/schedule/%d/confirm", block.ID), nil, therapistCookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &appt)
	assert.Equal(t, model.AppointmentStatusConfirmed, appt.Status)

	w = api.do(http.MethodGet, "/dashboard?date=2024-06-05", nil, therapistCookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var dash struct {
		Week struct {
			Grid [7][24]*model.ScheduleBlock `json:"grid"`
		} `json:"week"`
	}
	decode(t, w, &dash)
	require.NotNil(t, dash.Week.Grid[3][14])
	assert.Equal(t, block.ID, dash.Week.Grid[3][14].ID)

	w = api.do(http.MethodPost, apptPath+"/cancel", nil, clientCookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &appt)
	assert.Equal(t, model.AppointmentStatusCancelled, appt.Status)

	w = api.do(http.MethodGet, "/home", nil, clientCookie)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestDashboardRequiresLogin(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodGet, "/dashboard", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	var hint map[string]string
	env := decode(t, w, &hint)
	assert.Equal(t, "error", env.Status)
	assert.Equal(t, therapisthandler.LoginPath, hint["login"])

	w = api.do(http.MethodGet, "/dashboard", nil, &http.Cookie{Name: access.CookieName, Value: "garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRoleGuards(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodPost, "/signup/client", person("Ada", "ada@example.com"))
	require.Equal(t, http.StatusCreated, w.Code)
	clientCookie := api.login("/login", "ada@example.com")

	w = api.do(http.MethodGet, "/home", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.do(http.MethodGet, "/home", nil, &http.Cookie{Name: access.CookieName, Value: "garbage"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(http.MethodPost, "/schedule", gin.H{"weekday": 1, "hour": 9}, clientCookie)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(http.MethodGet, "/dashboard", nil, clientCookie)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(http.MethodPut, "/clients/1/patient_file", gin.H{"admission_date": "2024-06-01T00:00:00Z"}, clientCookie)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(http.MethodGet, "/admin/therapists/pending", nil, clientCookie)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestOwnerConfirmsTherapist(t *testing.T) {
	api := newTestAPI(t)
	ctx := context.Background()

	hash, err := api.hasher.Hash(password)
	require.NoError(t, err)
	o := &model.Owner{Person: model.Person{FirstName: "Olga", LastName: "Owner", Email: "olga@example.com", PasswordHash: hash}}
	require.NoError(t, api.store.Owners().Create(ctx, o))

	th := person("Tom", "tom@example.com")
	th["license_number"] = "LIC-1"
	w := api.do(http.MethodPost, "/signup/therapist", th)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created model.Therapist
	decode(t, w, &created)

	ownerCookie := api.login("/admin/login", "olga@example.com")

	w = api.do(http.MethodGet, "/admin/therapists/pending", nil, ownerCookie)
	require.Equal(t, http.StatusOK, w.Code)
	var pending []model.Therapist
	decode(t, w, &pending)
	require.Len(t, pending, 1)

	path := fmt.Sprintf("/admin/therapists/%d/status", created.ID)
	w = api.do(http.MethodPut, path, gin.H{"status": "contractor"}, ownerCookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPut, path, gin.H{"status": "fulltime"}, ownerCookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &created)
	assert.Equal(t, model.EmploymentFullTime, created.Status)
}

func TestSignupValidationAndLoginFailure(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodPost, "/signup/client", gin.H{"email": "not-an-email"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "first_name")

	w = api.do(http.MethodPost, "/signup/client", person("Ada", "ada@example.com"))
	require.Equal(t, http.StatusCreated, w.Code)
	w = api.do(http.MethodPost, "/signup/client", person("Ada", "ada@example.com"))
	assert.Equal(t, http.StatusConflict, w.Code)

	w = api.do(http.MethodPost, "/login", gin.H{"email": "ada@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.do(http.MethodPost, "/logout", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, w.Result().Cookies())
	assert.True(t, w.Result().Cookies()[0].MaxAge < 0)
}

func TestHealthAndMetrics(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = api.do(http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, `renova_http_requests_total{method="GET",path="/health/ready",status="200"} 1`), body)
}

func TestBadPathParameter(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodPost, "/signup/client", person("Ada", "ada@example.com"))
	require.Equal(t, http.StatusCreated, w.Code)
	clientCookie := api.login("/login", "ada@example.com")

	w = api.do(http.MethodPut, "/appointments/abc", nil, clientCookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodGet, "/booking/1?date=June", nil, clientCookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
