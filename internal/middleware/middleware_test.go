package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/consultorio/internal/guard"
	"github.com/jwalitptl/consultorio/internal/session"
	"github.com/jwalitptl/consultorio/pkg/auth"
	"github.com/jwalitptl/consultorio/pkg/errors"
	"github.com/jwalitptl/consultorio/pkg/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func ok(c *gin.Context) { c.String(http.StatusOK, "ok") }

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(ContextRequestID)) })

	w := do(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, w.Header().Get(HeaderXRequestID))
	assert.Equal(t, w.Header().Get(HeaderXRequestID), w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderXRequestID, "abc-123")
	w = do(r, req)
	assert.Equal(t, "abc-123", w.Header().Get(HeaderXRequestID))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderXRequestID, strings.Repeat("x", 200))
	w = do(r, req)
	assert.Len(t, w.Header().Get(HeaderXRequestID), 36)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderXRequestID, "bad id\nforged=1")
	w = do(r, req)
	assert.Len(t, w.Header().Get(HeaderXRequestID), 36)
}

func TestRequestIDLoggerInContext(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) {
		var buf strings.Builder
		l := zerolog.Ctx(c.Request.Context()).Output(&buf)
		l.Info().Msg("hi")
		c.String(http.StatusOK, buf.String())
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderXRequestID, "req-42")
	w := do(r, req)
	assert.Contains(t, w.Body.String(), `"request_id":"req-42"`)
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery())
	r.GET("/boom", func(*gin.Context) { panic("nil map") })

	w := do(r, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "nil map")
	assert.Contains(t, w.Body.String(), `"success":false`)
}

func TestErrorHandler(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/missing", func(c *gin.Context) { _ = c.Error(errors.NotFound("Paciente no encontrado", nil)) })
	r.GET("/written", func(c *gin.Context) {
		_ = c.Error(errors.Internal("x", nil))
		c.String(http.StatusAccepted, "done")
	})

	w := do(r, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Paciente no encontrado")

	w = do(r, httptest.NewRequest(http.MethodGet, "/written", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "done", w.Body.String())
}

func TestRateLimitPerClient(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: rate.Every(time.Hour), Burst: 2})
	r := gin.New()
	r.POST("/login", rl.RateLimit(), ok)

	from := func(ip string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = ip + ":1234"
		return req
	}

	assert.Equal(t, http.StatusOK, do(r, from("10.0.0.1")).Code)
	assert.Equal(t, http.StatusOK, do(r, from("10.0.0.1")).Code)
	w := do(r, from("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), msgTooManyRequests)

	assert.Equal(t, http.StatusOK, do(r, from("10.0.0.2")).Code)
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS(DefaultCORSConfig([]string{"https://app.example.com/"})))
	r.GET("/", ok)
	r.OPTIONS("/", ok)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := do(r, req)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))

	req = httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	assert.Equal(t, http.StatusNoContent, do(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = do(r, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSizeLimit(t *testing.T) {
	r := gin.New()
	r.Use(SizeLimit(DefaultSizeLimitConfig(16, 1024)))
	r.POST("/odonto/pacientes", ok)
	r.POST("/odonto/pacientes/p1/radiografias/upload", ok)

	body := strings.Repeat("a", 100)
	w := do(r, httptest.NewRequest(http.MethodPost, "/odonto/pacientes", strings.NewReader(body)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = do(r, httptest.NewRequest(http.MethodPost, "/odonto/pacientes/p1/radiografias/upload", strings.NewReader(body)))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders(DefaultSecurityConfig()))
	r.GET("/", ok)

	w := do(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "max-age=31536000; includeSubDomains", w.Header().Get("Strict-Transport-Security"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "frame-ancestors 'none'")
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Empty(t, w.Header().Get("X-XSS-Protection"))
}

func sessionRequest(t *testing.T, path, module, email string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if module == "" {
		return req
	}
	issuer, err := auth.NewTokenIssuer("secret", time.Hour)
	require.NoError(t, err)
	token, err := issuer.Issue("user-1", email)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: session.CookieModule, Value: module})
	req.AddCookie(&http.Cookie{Name: session.CookieAccessToken, Value: token})
	req.AddCookie(&http.Cookie{Name: session.CookieRefreshToken, Value: "rt"})
	return req
}

func TestSessionGuard(t *testing.T) {
	m := metrics.NewNop()
	g := guard.New(guard.Config{MasterEmail: "jefe@clinica.com"})
	r := gin.New()
	r.Use(Session(g, session.NewManager(session.Options{}), m.GuardRedirects))
	r.GET("/odonto/pacientes", func(c *gin.Context) {
		c.String(http.StatusOK, session.FromContext(c).Email())
	})
	r.GET("/odonto/maestro", ok)
	r.GET("/login", ok)

	t.Run("anonymous on a protected path", func(t *testing.T) {
		w := do(r, sessionRequest(t, "/odonto/pacientes", "", ""))
		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/login", w.Header().Get("Location"))
	})

	t.Run("anonymous on a public path", func(t *testing.T) {
		w := do(r, sessionRequest(t, "/login", "", ""))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("identity reaches the handler", func(t *testing.T) {
		w := do(r, sessionRequest(t, "/odonto/pacientes", "odonto", "ana@clinica.com"))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ana@clinica.com", w.Body.String())
	})

	t.Run("non master on maestro", func(t *testing.T) {
		w := do(r, sessionRequest(t, "/odonto/maestro", "odonto", "ana@clinica.com"))
		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/odonto/pacientes", w.Header().Get("Location"))
	})

	t.Run("module cookie that cannot land anywhere", func(t *testing.T) {
		w := do(r, sessionRequest(t, "/odonto/pacientes", "administrativo", "ana@clinica.com"))
		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/login", w.Header().Get("Location"))
		for _, ck := range w.Result().Cookies() {
			assert.True(t, ck.MaxAge < 0, ck.Name)
		}
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.GuardRedirects.WithLabelValues("anonymous")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GuardRedirects.WithLabelValues("master_only")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GuardRedirects.WithLabelValues(ruleLoop)))
}
