package settings

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/consultorio/internal/handler"
	"github.com/jwalitptl/consultorio/internal/service/drive"
	"github.com/jwalitptl/consultorio/pkg/httputil"
)

type Handler struct {
	drive *drive.Service
	demo  bool
}

func NewHandler(svc *drive.Service, demo bool) *Handler {
	return &Handler{drive: svc, demo: demo}
}

type driveRequest struct {
	ConnectedEmail string `form:"connected_email" json:"connected_email" binding:"max=254"`
	RootFolderID   string `form:"root_folder_id" json:"root_folder_id" binding:"max=200"`
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	s := r.Group("/odonto/configuracion")
	{
		s.GET("", h.GetSettings)
		s.POST("/drive", h.SaveDrive)
		s.POST("/drive/disconnect", h.DisconnectDrive)
	}
}

func (h *Handler) GetSettings(c *gin.Context) {
	httputil.RespondWithSuccess(c, gin.H{
		"demo":            h.demo,
		"driveConnection": h.drive.Get(c.Request.Context(), handler.ActorID(c)),
	})
}

func (h *Handler) SaveDrive(c *gin.Context) {
	var req driveRequest
	if err := handler.Bind(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if _, err := h.drive.Save(c.Request.Context(), handler.ActorID(c), req.ConnectedEmail, req.RootFolderID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"success": true})
}

func (h *Handler) DisconnectDrive(c *gin.Context) {
	if err := h.drive.Disconnect(c.Request.Context(), handler.ActorID(c)); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"success": true})
}
