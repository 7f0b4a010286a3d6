package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/consultorio/internal/guard"
	"github.com/jwalitptl/consultorio/internal/session"
)

const ruleLoop = "redirect_loop"

// Session resolves the identity from the cookies, stores it on the context and applies the
// route guard. A redirect back to the requested path would loop forever, which only happens with
// a module cookie no home can satisfy; that session is cleared and sent to login instead.
func Session(g *guard.Guard, sessions *session.Manager, redirects *prometheus.CounterVec) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := session.Resolve(c.Request)
		if id != nil {
			c.Set(session.ContextKey, id)
		}

		d := g.Evaluate(guard.Request{Path: c.Request.URL.Path, Identity: id})
		if d.Allow {
			c.Next()
			return
		}

		location := d.Location
		rule := d.Rule
		if location == c.Request.URL.Path {
			log.Warn().
				Str("request_id", c.GetString(ContextRequestID)).
				Str("path", c.Request.URL.Path).
				Str("rule", d.Rule).
				Msg("guard redirect would loop, clearing session")
			sessions.Clear(c)
			location, rule = guard.LoginPath, ruleLoop
		}

		if redirects != nil {
			redirects.WithLabelValues(rule).Inc()
		}
		c.Redirect(http.StatusSeeOther, location)
		c.Abort()
	}
}
