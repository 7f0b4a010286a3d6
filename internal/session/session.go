// Package session maps the three session cookies to an Identity.
package session

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/consultorio/internal/model"
)

const (
	CookieModule       = "sb-module"
	CookieAccessToken  = "sb-access-token"
	CookieRefreshToken = "sb-refresh-token"

	DefaultMaxAge = 7 * 24 * time.Hour
)

// CookieReader is satisfied by *http.Request.
type CookieReader interface {
	Cookie(name string) (*http.Cookie, error)
}

// Resolve returns the identity carried by the cookies, or nil when any of the three is missing
// or empty. Tokens are not validated here.
func Resolve(r CookieReader) *model.Identity {
	module := cookieValue(r, CookieModule)
	access := cookieValue(r, CookieAccessToken)
	refresh := cookieValue(r, CookieRefreshToken)
	if module == "" || access == "" || refresh == "" {
		return nil
	}
	return &model.Identity{
		Module:       model.Module(module),
		AccessToken:  access,
		RefreshToken: refresh,
	}
}

func cookieValue(r CookieReader, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

type Options struct {
	Secure bool
	MaxAge time.Duration
}

// Manager writes and clears the session cookies.
type Manager struct {
	secure bool
	maxAge int
}

func NewManager(opts Options) *Manager {
	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Manager{secure: opts.Secure, maxAge: int(maxAge.Seconds())}
}

// Issue sets the three session cookies.
func (m *Manager) Issue(c *gin.Context, id model.Identity) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieModule, string(id.Module), m.maxAge, "/", "", m.secure, true)
	c.SetCookie(CookieAccessToken, id.AccessToken, m.maxAge, "/", "", m.secure, true)
	c.SetCookie(CookieRefreshToken, id.RefreshToken, m.maxAge, "/", "", m.secure, true)
}

// Clear expires the three session cookies.
func (m *Manager) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	for _, name := range []string{CookieModule, CookieAccessToken, CookieRefreshToken} {
		c.SetCookie(name, "", -1, "/", "", m.secure, true)
	}
}

// ContextKey is where the session middleware stores the resolved identity.
const ContextKey = "identity"

// FromContext returns the identity stored by the session middleware, or nil.
func FromContext(c *gin.Context) *model.Identity {
	v, ok := c.Get(ContextKey)
	if !ok {
		return nil
	}
	id, _ := v.(*model.Identity)
	return id
}
