package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authhandler "github.com/jwalitptl/consultorio/internal/handler/auth"
	casefilehandler "github.com/jwalitptl/consultorio/internal/handler/casefile"
	"github.com/jwalitptl/consultorio/internal/handler/health"
	"github.com/jwalitptl/consultorio/internal/handler/master"
	metricshandler "github.com/jwalitptl/consultorio/internal/handler/metrics"
	patienthandler "github.com/jwalitptl/consultorio/internal/handler/patient"
	"github.com/jwalitptl/consultorio/internal/handler/settings"
	"github.com/jwalitptl/consultorio/internal/demostore"
	"github.com/jwalitptl/consultorio/internal/guard"
	"github.com/jwalitptl/consultorio/internal/repository/demo"
	"github.com/jwalitptl/consultorio/internal/service/access"
	"github.com/jwalitptl/consultorio/internal/service/auth"
	"github.com/jwalitptl/consultorio/internal/service/casefile"
	"github.com/jwalitptl/consultorio/internal/service/drive"
	"github.com/jwalitptl/consultorio/internal/service/event"
	"github.com/jwalitptl/consultorio/internal/service/patient"
	"github.com/jwalitptl/consultorio/internal/service/radiograph"
	"github.com/jwalitptl/consultorio/internal/session"
	pkgauth "github.com/jwalitptl/consultorio/pkg/auth"
	"github.com/jwalitptl/consultorio/pkg/metrics"
)

const masterEmail = "jefe@clinica.com"

// newDemoServer wires the whole application in demo mode over a temporary demo store.
func newDemoServer(t *testing.T) http.Handler {
	t.Helper()
	logger := zerolog.Nop()
	reg := prometheus.NewRegistry()
	m := metrics.New("consultorio", reg)

	st := demostore.New(filepath.Join(t.TempDir(), "demo.json"), logger, m)
	repos := demo.New(st)
	events := event.Nop{}
	loc := time.UTC

	g := guard.New(guard.Config{MasterEmail: masterEmail})
	sessions := session.NewManager(session.Options{})
	issuer, err := pkgauth.NewTokenIssuer("demo-secret", time.Hour)
	require.NoError(t, err)

	accessSvc := access.NewService(repos.AllowedEmails, events, time.Minute)
	authSvc := auth.NewService(auth.Config{Demo: true, MasterEmail: masterEmail}, nil, accessSvc, g, issuer, nil, m, logger)

	r := NewRouter(Config{MaxBodyBytes: 1 << 20, MaxUploadBytes: 1 << 20}, Handlers{
		Health:   health.NewHandler(nil),
		Metrics:  metricshandler.New(reg, m),
		Auth:     authhandler.NewHandler(authSvc, sessions, g, true),
		Patients: patienthandler.NewHandler(patient.NewService(repos, events, loc), radiograph.NewService(repos, nil, events, m, logger), true),
		Cases:    casefilehandler.NewHandler(casefile.NewService(repos, events, loc), true),
		Master:   master.NewHandler(accessSvc),
		Settings: settings.NewHandler(drive.NewService(repos, true, events, logger), true),
	}, g, sessions, m)
	r.Setup()
	return r.Engine()
}

type client struct {
	t       *testing.T
	h       http.Handler
	cookies map[string]*http.Cookie
}

func (c *client) do(method, path string, form url.Values) *httptest.ResponseRecorder {
	c.t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	c.h.ServeHTTP(w, req)

	for _, ck := range w.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return w
}

func data(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	require.True(t, body.Success, w.Body.String())
	return body.Data
}

func loggedIn(t *testing.T, h http.Handler, email string) *client {
	c := &client{t: t, h: h, cookies: map[string]*http.Cookie{}}
	w := c.do(http.MethodPost, "/login", url.Values{"email": {email}, "password": {"demo"}})
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())
	require.Len(t, c.cookies, 3)
	return c
}

func TestAnonymousRedirects(t *testing.T) {
	h := newDemoServer(t)
	c := &client{t: t, h: h, cookies: map[string]*http.Cookie{}}

	w := c.do(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	for _, path := range []string{"/odonto/pacientes", "/odonto/maestro", "/administrativo/expedientes", "/odonto/pacientes/p1"} {
		w = c.do(http.MethodGet, path, nil)
		assert.Equal(t, http.StatusSeeOther, w.Code, path)
		assert.Equal(t, "/login", w.Header().Get("Location"), path)
	}

	w = c.do(http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = c.do(http.MethodGet, "/login", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, data(t, w)["demo"])
}

func TestDemoPatientFlow(t *testing.T) {
	h := newDemoServer(t)
	c := loggedIn(t, h, "demo@ejemplo.com")

	w := c.do(http.MethodGet, "/login", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/odonto/pacientes", w.Header().Get("Location"))

	w = c.do(http.MethodGet, "/odonto/pacientes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, data(t, w)["patients"], 2)

	w = c.do(http.MethodPost, "/odonto/pacientes", url.Values{"full_name": {"Ana López"}, "dni": {"40111222"}, "phone": {"(11) 4444-5555"}})
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())
	created := w.Header().Get("Location")
	assert.True(t, strings.HasPrefix(created, "/odonto/pacientes/p-"), created)

	w = c.do(http.MethodPost, "/odonto/pacientes", url.Values{"full_name": {"Otra Ana"}, "dni": {"40111222"}})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), strings.TrimPrefix(created, "/odonto/pacientes/"))

	w = c.do(http.MethodPost, "/odonto/pacientes", url.Values{"full_name": {"  "}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Nombre y apellido son obligatorios")

	w = c.do(http.MethodPost, "/odonto/pacientes/p1/entries", url.Values{"entry_type": {"Consulta"}, "description": {"Control semestral"}})
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())
	assert.Equal(t, "/odonto/pacientes/p1", w.Header().Get("Location"))

	w = c.do(http.MethodGet, "/odonto/pacientes/p1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Control semestral")

	w = c.do(http.MethodPost, "/odonto/pacientes/p1/update", url.Values{"email": {"no-es-un-email"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"email":"Ingresá un email válido."`)

	w = c.do(http.MethodPost, "/odonto/pacientes/p2/archive", url.Values{})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/odonto/pacientes?estado=archivados", w.Header().Get("Location"))

	w = c.do(http.MethodGet, "/odonto/pacientes", nil)
	assert.Len(t, data(t, w)["patients"], 2)
	w = c.do(http.MethodGet, "/odonto/pacientes?estado=archivados", nil)
	assert.Len(t, data(t, w)["patients"], 3)

	w = c.do(http.MethodGet, "/odonto/pacientes/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDemoUnavailableFeatures(t *testing.T) {
	h := newDemoServer(t)
	c := loggedIn(t, h, "demo@ejemplo.com")

	w := c.do(http.MethodPost, "/login/register", url.Values{"email": {"x@y.com"}, "password": {"secreto"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Registro no disponible en modo demo")

	w = c.do(http.MethodPost, "/reset", url.Values{"email": {"x@y.com"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "No disponible en modo demo")

	w = c.do(http.MethodGet, "/odonto/configuracion", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, data(t, w)["driveConnection"])

	w = c.do(http.MethodPost, "/odonto/configuracion/drive", url.Values{"connected_email": {"a@b.com"}, "root_folder_id": {"f1"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "No disponible en modo demo.")

	w = c.do(http.MethodPost, "/odonto/pacientes/p1/radiografias/upload", url.Values{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGuardOnModulesAndMaster(t *testing.T) {
	h := newDemoServer(t)
	c := loggedIn(t, h, "demo@ejemplo.com")

	w := c.do(http.MethodGet, "/odonto/maestro", nil)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/odonto/pacientes", w.Header().Get("Location"))

	w = c.do(http.MethodGet, "/administrativo/expedientes", nil)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/odonto/pacientes", w.Header().Get("Location"))

	boss := loggedIn(t, h, masterEmail)
	w = boss.do(http.MethodGet, "/odonto/maestro", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := data(t, w)
	assert.Equal(t, "No disponible en modo demo.", body["loadError"])
	assert.Equal(t, masterEmail, body["masterEmail"])
}

func TestLogout(t *testing.T) {
	h := newDemoServer(t)
	c := loggedIn(t, h, "demo@ejemplo.com")

	w := c.do(http.MethodGet, "/logout", nil)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
	assert.Empty(t, c.cookies)

	w = c.do(http.MethodGet, "/odonto/pacientes", nil)
	assert.Equal(t, http.StatusSeeOther, w.Code)
}

func TestSessionRefreshInDemo(t *testing.T) {
	h := newDemoServer(t)
	c := loggedIn(t, h, "demo@ejemplo.com")
	before := c.cookies[session.CookieAccessToken].Value

	w := c.do(http.MethodPost, "/session/refresh", url.Values{})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	email, ok := pkgauth.Email(c.cookies[session.CookieAccessToken].Value)
	assert.True(t, ok)
	assert.Equal(t, "demo@ejemplo.com", email)
	assert.NotEmpty(t, before)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newDemoServer(t)
	c := &client{t: t, h: h, cookies: map[string]*http.Cookie{}}
	c.do(http.MethodGet, "/odonto/pacientes", nil)

	w := c.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `consultorio_guard_redirects_total{rule="anonymous"} 1`)
}
