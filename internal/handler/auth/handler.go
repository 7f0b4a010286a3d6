package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/consultorio/internal/guard"
	"github.com/jwalitptl/consultorio/internal/handler"
	"github.com/jwalitptl/consultorio/internal/service/auth"
	"github.com/jwalitptl/consultorio/internal/session"
	"github.com/jwalitptl/consultorio/pkg/errors"
	"github.com/jwalitptl/consultorio/pkg/httputil"
)

type Handler struct {
	svc      *auth.Service
	sessions *session.Manager
	guard    *guard.Guard
	demo     bool
}

func NewHandler(svc *auth.Service, sessions *session.Manager, g *guard.Guard, demo bool) *Handler {
	return &Handler{svc: svc, sessions: sessions, guard: g, demo: demo}
}

type credentialsRequest struct {
	Email    string `form:"email" json:"email" binding:"max=254"`
	Password string `form:"password" json:"password" binding:"max=128"`
}

type resetRequest struct {
	Email string `form:"email" json:"email" binding:"max=254"`
}

// RegisterRoutes mounts the public pages. limited wraps the actions that reach the auth provider.
func (h *Handler) RegisterRoutes(r gin.IRouter, limited ...gin.HandlerFunc) {
	r.GET("/", h.Root)
	r.GET("/login", h.LoginPage)
	r.POST("/login", with(limited, h.Login)...)
	r.POST("/login/register", with(limited, h.Register)...)
	r.GET("/logout", h.Logout)
	r.GET("/reset", h.ResetPage)
	r.POST("/reset", with(limited, h.Reset)...)
	r.POST("/session/refresh", h.Refresh)
}

func with(pre []gin.HandlerFunc, last gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(pre)+1)
	return append(append(out, pre...), last)
}

func (h *Handler) Root(c *gin.Context) {
	if id := handler.Identity(c); id != nil {
		c.Redirect(http.StatusFound, h.guard.Home(id.Module))
		return
	}
	c.Redirect(http.StatusFound, guard.LoginPath)
}

func (h *Handler) LoginPage(c *gin.Context) {
	if id := handler.Identity(c); id != nil {
		c.Redirect(http.StatusFound, h.guard.Home(id.Module))
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"demo": h.demo})
}

func (h *Handler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := handler.Bind(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	res, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	h.sessions.Issue(c, res.Identity)
	httputil.SeeOther(c, res.Redirect)
}

func (h *Handler) Register(c *gin.Context) {
	var req credentialsRequest
	if err := handler.Bind(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	res, err := h.svc.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	h.sessions.Issue(c, res.Identity)
	httputil.SeeOther(c, res.Redirect)
}

func (h *Handler) Logout(c *gin.Context) {
	h.sessions.Clear(c)
	httputil.SeeOther(c, guard.LoginPath)
}

func (h *Handler) ResetPage(c *gin.Context) {
	httputil.RespondWithSuccess(c, gin.H{"demo": h.demo})
}

func (h *Handler) Reset(c *gin.Context) {
	var req resetRequest
	if err := handler.Bind(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	email, err := h.svc.RequestReset(c.Request.Context(), req.Email)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"success": true, "email": email})
}

// Refresh swaps the session tokens for fresh ones. An expired session is cleared.
func (h *Handler) Refresh(c *gin.Context) {
	id := handler.Identity(c)
	if id == nil {
		httputil.RespondWithError(c, errors.Unauthorized("Tu sesión expiró. Volvé a iniciar sesión."))
		return
	}

	next, err := h.svc.Refresh(c.Request.Context(), *id)
	if err != nil {
		if errors.IsKind(err, errors.KindUnauthorized) {
			h.sessions.Clear(c)
		}
		httputil.RespondWithError(c, err)
		return
	}
	h.sessions.Issue(c, *next)
	httputil.RespondWithSuccess(c, gin.H{"module": next.Module})
}
