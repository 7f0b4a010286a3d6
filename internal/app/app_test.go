package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/consultorio/internal/config"
	"github.com/jwalitptl/consultorio/internal/model"
	"github.com/jwalitptl/consultorio/pkg/gotrue"
)

func demoConfig(t *testing.T) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			SessionMaxAge: time.Hour,
			MaxBodyBytes:  1 << 20,
		},
		Attachments: config.AttachmentsConfig{Backend: "none", MaxBytes: 1 << 20},
		Worker: config.WorkerConfig{
			StaleUploadsEnabled:  true,
			StaleUploadsInterval: time.Minute,
			StaleUploadAfter:     time.Hour,
		},
		Timezone: "America/Argentina/Buenos_Aires",
		Env: config.Env{
			DemoMode:        true,
			DemoDBPath:      filepath.Join(t.TempDir(), "demo.json"),
			DemoTokenSecret: "secret",
			MasterEmail:     "jefe@clinica.com",
		},
	}
}

func serve(a *App, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	a.Router.Engine().ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestNewDemo(t *testing.T) {
	a, err := New(context.Background(), demoConfig(t), zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	w := serve(a, http.MethodGet, "/health/ready")
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = serve(a, http.MethodGet, "/odonto/pacientes")
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	w = serve(a, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
	assert.Contains(t, w.Body.String(), "consultorio_requests_total")

	assert.NotNil(t, a.StaleUploadsWorker())
}

func TestNewUnknownTimezoneFallsBack(t *testing.T) {
	cfg := demoConfig(t)
	cfg.Timezone = "Nowhere/Special"
	a, err := New(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.NoError(t, a.Close())
}

func TestNewBadRedisURL(t *testing.T) {
	cfg := demoConfig(t)
	cfg.Redis.URL = "not a url"
	_, err := New(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestStaleUploadsWorkerDisabled(t *testing.T) {
	cfg := demoConfig(t)
	cfg.Worker.StaleUploadsEnabled = false
	a, err := New(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()
	assert.Nil(t, a.StaleUploadsWorker())
}

func TestAuthBackends(t *testing.T) {
	cfg := demoConfig(t)
	cfg.Env.DemoMode = false
	cfg.Env.Odonto = config.Backend{SupabaseURL: "https://odonto.example.com", SupabaseAnonKey: "anon"}

	providers, issuer, err := authBackends(cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, issuer)
	assert.Len(t, providers, 1)
	assert.Contains(t, providers, model.ModuleOdonto)

	cfg.Env.AdminModuleEnabled = true
	_, _, err = authBackends(cfg, zerolog.Nop())
	assert.ErrorIs(t, err, gotrue.ErrNotConfigured)

	cfg.Env.DemoMode = true
	providers, issuer, err = authBackends(cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.Empty(t, providers)
	assert.NotNil(t, issuer)
}
