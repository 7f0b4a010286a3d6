package master

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/consultorio/internal/handler"
	"github.com/jwalitptl/consultorio/internal/model"
	"github.com/jwalitptl/consultorio/internal/service/access"
	"github.com/jwalitptl/consultorio/pkg/errors"
	"github.com/jwalitptl/consultorio/pkg/httputil"
)

// Handler serves the allow-list page. The route guard keeps everyone but the master email out.
type Handler struct {
	svc *access.Service
}

func NewHandler(svc *access.Service) *Handler {
	return &Handler{svc: svc}
}

type addRequest struct {
	Email   string `form:"email" json:"email" binding:"max=254"`
	Enabled bool   `form:"enabled" json:"enabled"`
}

type toggleRequest struct {
	Enabled bool `form:"enabled" json:"enabled"`
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	m := r.Group("/odonto/maestro")
	{
		m.GET("", h.ListEmails)
		m.POST("/emails", h.AddEmail)
		m.POST("/emails/:id/toggle", h.ToggleEmail)
		m.POST("/emails/:id/delete", h.DeleteEmail)
	}
}

// ListEmails answers 200 even when the list cannot be loaded; the page shows loadError instead.
func (h *Handler) ListEmails(c *gin.Context) {
	emails, err := h.svc.List(c.Request.Context())
	if err != nil {
		msg := access.MsgListFailed
		if appErr, ok := errors.As(err); ok && appErr.Kind == errors.KindUnavailable {
			msg = appErr.Message
		}
		httputil.RespondWithSuccess(c, gin.H{
			"emails":      []*model.AllowedEmail{},
			"masterEmail": handler.ActorEmail(c),
			"loadError":   msg,
		})
		return
	}

	httputil.RespondWithSuccess(c, gin.H{
		"emails":      emails,
		"masterEmail": handler.ActorEmail(c),
		"loadError":   nil,
	})
}

func (h *Handler) AddEmail(c *gin.Context) {
	var req addRequest
	if err := handler.Bind(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if _, err := h.svc.Add(c.Request.Context(), handler.ActorID(c), req.Email, req.Enabled); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"success": true})
}

func (h *Handler) ToggleEmail(c *gin.Context) {
	var req toggleRequest
	if err := handler.Bind(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if err := h.svc.SetEnabled(c.Request.Context(), handler.ActorID(c), c.Param("id"), req.Enabled); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"success": true})
}

func (h *Handler) DeleteEmail(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), handler.ActorID(c), c.Param("id")); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"success": true})
}
