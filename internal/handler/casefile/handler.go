package casefile

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/consultorio/internal/handler"
	"github.com/jwalitptl/consultorio/internal/model"
	"github.com/jwalitptl/consultorio/internal/service/casefile"
	"github.com/jwalitptl/consultorio/pkg/httputil"
)

const (
	listPath   = "/administrativo/expedientes"
	closedPath = "/administrativo/expedientes?estado=" + string(model.CaseCerrado)
)

type Handler struct {
	svc  *casefile.Service
	demo bool
}

func NewHandler(svc *casefile.Service, demo bool) *Handler {
	return &Handler{svc: svc, demo: demo}
}

type createRequest struct {
	PersonName     string `form:"person_name" json:"person_name" binding:"max=200"`
	PersonDNI      string `form:"person_dni" json:"person_dni" binding:"max=20"`
	PersonPhone    string `form:"person_phone" json:"person_phone" binding:"max=40"`
	PersonEmail    string `form:"person_email" json:"person_email" binding:"omitempty,email,max=254"`
	Title          string `form:"title" json:"title" binding:"max=300"`
	Status         string `form:"status" json:"status"`
	NextAction     string `form:"next_action" json:"next_action" binding:"max=500"`
	NextActionDate string `form:"next_action_date" json:"next_action_date" binding:"omitempty,datetime=2006-01-02"`
}

type eventRequest struct {
	EventType string `form:"event_type" json:"event_type"`
	Detail    string `form:"detail" json:"detail" binding:"max=10000"`
	CreatedAt string `form:"created_at" json:"created_at"`
}

type updateRequest struct {
	Status         string `form:"status" json:"status"`
	Notes          string `form:"notes" json:"notes" binding:"max=10000"`
	NextAction     string `form:"next_action" json:"next_action" binding:"max=500"`
	NextActionDate string `form:"next_action_date" json:"next_action_date" binding:"omitempty,datetime=2006-01-02"`
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	cases := r.Group(listPath)
	{
		cases.GET("", h.ListCases)
		cases.POST("", h.CreateCase)
		cases.GET("/:id", h.GetCase)
		cases.POST("/:id/events", h.AddEvent)
		cases.POST("/:id/update", h.UpdateCase)
		cases.POST("/:id/archive", h.ArchiveCase)
	}
}

func detailPath(id string) string {
	return listPath + "/" + id
}

func (h *Handler) ListCases(c *gin.Context) {
	status := c.DefaultQuery("estado", casefile.AllStatuses)

	cases, err := h.svc.List(c.Request.Context(), status)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, gin.H{
		"cases":    cases,
		"status":   status,
		"statuses": model.CaseStatuses,
		"demo":     h.demo,
	})
}

func (h *Handler) CreateCase(c *gin.Context) {
	var req createRequest
	if err := handler.Bind(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	cf, err := h.svc.Create(c.Request.Context(), handler.ActorID(c), casefile.CreateInput{
		PersonName:     req.PersonName,
		PersonDNI:      req.PersonDNI,
		PersonPhone:    req.PersonPhone,
		PersonEmail:    req.PersonEmail,
		Title:          req.Title,
		Status:         req.Status,
		NextAction:     req.NextAction,
		NextActionDate: req.NextActionDate,
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.SeeOther(c, detailPath(cf.ID))
}

func (h *Handler) GetCase(c *gin.Context) {
	detail, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, gin.H{
		"caseFile":   detail.Case,
		"person":     detail.Person,
		"events":     detail.Events,
		"statuses":   model.CaseStatuses,
		"eventTypes": model.CaseEventTypes,
		"demo":       h.demo,
	})
}

func (h *Handler) AddEvent(c *gin.Context) {
	var req eventRequest
	if err := handler.Bind(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	id := c.Param("id")
	_, err := h.svc.AddEvent(c.Request.Context(), handler.ActorID(c), id, casefile.EventInput{
		EventType: req.EventType,
		Detail:    req.Detail,
		CreatedAt: req.CreatedAt,
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.SeeOther(c, detailPath(id))
}

func (h *Handler) UpdateCase(c *gin.Context) {
	var req updateRequest
	if err := handler.Bind(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	id := c.Param("id")
	err := h.svc.Update(c.Request.Context(), handler.ActorID(c), id, casefile.UpdateInput{
		Status:         req.Status,
		Notes:          req.Notes,
		NextAction:     req.NextAction,
		NextActionDate: req.NextActionDate,
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.SeeOther(c, detailPath(id))
}

func (h *Handler) ArchiveCase(c *gin.Context) {
	if err := h.svc.Archive(c.Request.Context(), handler.ActorID(c), c.Param("id")); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.SeeOther(c, closedPath)
}
