package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsInDemoMode(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DEMO_MODE", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.True(t, cfg.Env.DemoMode)
	assert.Equal(t, ".demo-data.local.json", cfg.Env.DemoDBPath)
	assert.Equal(t, "maestro@example.com", cfg.Env.MasterEmail)
	assert.False(t, cfg.Env.AdminModuleEnabled)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 30*time.Minute, cfg.Worker.StaleUploadAfter)
	assert.Equal(t, "none", cfg.Attachments.Backend)
}

func TestLoadRequiresBackendOutsideDemo(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DEMO_MODE", "false")

	_, err := Load("")
	assert.Error(t, err)

	t.Setenv("ODONTO_SUPABASE_URL", "https://odonto.supabase.co")
	t.Setenv("ODONTO_SUPABASE_ANON_KEY", "anon")
	t.Setenv("ODONTO_DATABASE_URL", "postgres://localhost/odonto")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://odonto.supabase.co", cfg.Env.Odonto.SupabaseURL)
	assert.False(t, cfg.Env.Admin.Configured())

	t.Setenv("ADMIN_MODULE_ENABLED", "true")
	_, err = Load("")
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
server:
  port: 9090
  secure_cookies: false
log:
  level: debug
worker:
  stale_upload_after: 45m
attachments:
  backend: s3
  s3:
    bucket: radiografias
`), 0o600))

	t.Setenv("DEMO_MODE", "true")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("CONSULTORIO_LOG_FORMAT", "console")

	cfg, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.False(t, cfg.Server.SecureCookies)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 45*time.Minute, cfg.Worker.StaleUploadAfter)
	assert.Equal(t, "radiografias", cfg.Attachments.S3.Bucket)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
}

func TestLoadRejectsUnknownAttachmentsBackend(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte("attachments:\n  backend: ftp\n"), 0o600))
	t.Setenv("DEMO_MODE", "true")

	_, err := Load(file)
	assert.Error(t, err)
}

func TestResetRedirectURL(t *testing.T) {
	tests := []struct {
		name string
		env  Env
		want string
	}{
		{"nothing set", Env{}, "http://localhost:5173/reset/callback"},
		{"public site wins", Env{PublicSiteURL: "https://a.example.com/", SiteURL: "https://b.example.com"}, "https://a.example.com/reset/callback"},
		{"netlify url", Env{URL: "https://c.netlify.app"}, "https://c.netlify.app/reset/callback"},
		{"deploy prime before deploy", Env{DeployPrimeURL: "https://prime.example.com", DeployURL: "https://d.example.com"}, "https://prime.example.com/reset/callback"},
		{"vercel gets https", Env{VercelURL: "app.vercel.app"}, "https://app.vercel.app/reset/callback"},
		{"trailing slashes trimmed", Env{SiteURL: "https://e.example.com///"}, "https://e.example.com/reset/callback"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.env.ResetRedirectURL())
		})
	}
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
