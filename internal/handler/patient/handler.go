package patient

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/consultorio/internal/handler"
	"github.com/jwalitptl/consultorio/internal/model"
	"github.com/jwalitptl/consultorio/internal/service/patient"
	"github.com/jwalitptl/consultorio/internal/service/radiograph"
	"github.com/jwalitptl/consultorio/pkg/errors"
	"github.com/jwalitptl/consultorio/pkg/httputil"
)

const (
	listPath     = "/odonto/pacientes"
	archivedPath = "/odonto/pacientes?estado=archivados"
	archivedFlag = "archivados"
)

type Handler struct {
	patients    *patient.Service
	radiographs *radiograph.Service
	demo        bool
}

func NewHandler(patients *patient.Service, radiographs *radiograph.Service, demo bool) *Handler {
	return &Handler{patients: patients, radiographs: radiographs, demo: demo}
}

type createRequest struct {
	FullName string `form:"full_name" json:"full_name" binding:"max=200"`
	DNI      string `form:"dni" json:"dni" binding:"max=20"`
	Phone    string `form:"phone" json:"phone" binding:"max=40"`
}

type entryRequest struct {
	EntryType    string `form:"entry_type" json:"entry_type"`
	Description  string `form:"description" json:"description" binding:"max=10000"`
	CreatedAt    string `form:"created_at" json:"created_at"`
	Teeth        string `form:"teeth" json:"teeth" binding:"max=200"`
	Amount       string `form:"amount" json:"amount" binding:"max=32"`
	InternalNote string `form:"internal_note" json:"internal_note" binding:"max=10000"`
}

type updateRequest struct {
	Phone         string `form:"phone" json:"phone" binding:"max=40"`
	Email         string `form:"email" json:"email" binding:"omitempty,email,max=254"`
	BirthDate     string `form:"birth_date" json:"birth_date" binding:"omitempty,datetime=2006-01-02"`
	Address       string `form:"address" json:"address" binding:"max=500"`
	Allergies     string `form:"allergies" json:"allergies" binding:"max=5000"`
	Medication    string `form:"medication" json:"medication" binding:"max=5000"`
	Background    string `form:"background" json:"background" binding:"max=10000"`
	Insurance     string `form:"insurance" json:"insurance" binding:"max=200"`
	InsurancePlan string `form:"insurance_plan" json:"insurance_plan" binding:"max=200"`
}

type driveFolderRequest struct {
	DriveFolderID string `form:"drive_folder_id" json:"drive_folder_id" binding:"required,max=200"`
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	patients := r.Group("/odonto/pacientes")
	{
		patients.GET("", h.ListPatients)
		patients.POST("", h.CreatePatient)
		patients.GET("/:id", h.GetPatient)
		patients.POST("/:id/entries", h.AddEntry)
		patients.POST("/:id/update", h.UpdatePatient)
		patients.POST("/:id/archive", h.ArchivePatient)
		patients.POST("/:id/delete", h.DeletePatient)
		patients.POST("/:id/drive-folder", h.SetDriveFolder)

		rx := patients.Group("/:id/radiografias")
		rx.POST("", h.CreateRadiograph)
		rx.POST("/upload", h.UploadRadiograph)
		rx.POST("/:rid/finalize", h.FinalizeRadiograph)
		rx.POST("/:rid/fail", h.FailRadiograph)
		rx.POST("/:rid/reset", h.ResetRadiograph)
		rx.POST("/:rid/delete", h.DeleteRadiograph)
	}
}

func detailPath(id string) string {
	return fmt.Sprintf("%s/%s", listPath, id)
}

func (h *Handler) ListPatients(c *gin.Context) {
	showArchived := c.Query("estado") == archivedFlag

	patients, err := h.patients.List(c.Request.Context(), showArchived)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, gin.H{
		"patients":     patients,
		"showArchived": showArchived,
		"demo":         h.demo,
	})
}

func (h *Handler) CreatePatient(c *gin.Context) {
	var req createRequest
	if err := handler.Bind(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	p, err := h.patients.Create(c.Request.Context(), handler.ActorID(c), patient.CreateInput{
		FullName: req.FullName,
		DNI:      req.DNI,
		Phone:    req.Phone,
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.SeeOther(c, detailPath(p.ID))
}

func (h *Handler) GetPatient(c *gin.Context) {
	detail, err := h.patients.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, gin.H{
		"patient":     detail.Patient,
		"entries":     detail.Entries,
		"radiographs": detail.Radiographs,
		"entryTypes":  model.EntryTypes,
		"demo":        h.demo,
	})
}

func (h *Handler) AddEntry(c *gin.Context) {
	var req entryRequest
	if err := handler.Bind(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	id := c.Param("id")
	_, err := h.patients.AddEntry(c.Request.Context(), handler.ActorID(c), id, patient.EntryInput{
		EntryType:    req.EntryType,
		Description:  req.Description,
		Teeth:        req.Teeth,
		Amount:       req.Amount,
		InternalNote: req.InternalNote,
		CreatedAt:    req.CreatedAt,
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.SeeOther(c, detailPath(id))
}

func (h *Handler) UpdatePatient(c *gin.Context) {
	var req updateRequest
	if err := handler.Bind(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	id := c.Param("id")
	err := h.patients.Update(c.Request.Context(), handler.ActorID(c), id, model.PatientUpdate{
		Phone:         req.Phone,
		Email:         req.Email,
		BirthDate:     req.BirthDate,
		Address:       req.Address,
		Allergies:     req.Allergies,
		Medication:    req.Medication,
		Background:    req.Background,
		Insurance:     req.Insurance,
		InsurancePlan: req.InsurancePlan,
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.SeeOther(c, detailPath(id))
}

func (h *Handler) ArchivePatient(c *gin.Context) {
	if err := h.patients.Archive(c.Request.Context(), handler.ActorID(c), c.Param("id")); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.SeeOther(c, archivedPath)
}

func (h *Handler) DeletePatient(c *gin.Context) {
	if err := h.patients.Delete(c.Request.Context(), handler.ActorID(c), c.Param("id")); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.SeeOther(c, listPath)
}

func (h *Handler) SetDriveFolder(c *gin.Context) {
	var req driveFolderRequest
	if err := handler.Bind(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if err := h.patients.SetDriveFolder(c.Request.Context(), handler.ActorID(c), c.Param("id"), req.DriveFolderID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"success": true})
}

type radiographRequest struct {
	OriginalFilename string `form:"original_filename" json:"original_filename" binding:"max=255"`
	MimeType         string `form:"mime_type" json:"mime_type" binding:"max=100"`
	TakenAt          string `form:"taken_at" json:"taken_at" binding:"omitempty,datetime=2006-01-02"`
	Note             string `form:"note" json:"note" binding:"max=2000"`
}

type finalizeRequest struct {
	DriveFileID string `form:"drive_file_id" json:"drive_file_id"`
	Bytes       int64  `form:"bytes" json:"bytes" binding:"min=0"`
	SHA256      string `form:"sha256" json:"sha256" binding:"omitempty,hexadecimal,len=64"`
}

// CreateRadiograph records an upload the browser performs itself and returns the new record.
func (h *Handler) CreateRadiograph(c *gin.Context) {
	var req radiographRequest
	if err := handler.Bind(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	rg, err := h.radiographs.Create(c.Request.Context(), handler.ActorID(c), c.Param("id"), radiograph.CreateInput{
		OriginalFilename: req.OriginalFilename,
		MimeType:         req.MimeType,
		TakenAt:          req.TakenAt,
		Note:             req.Note,
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httputil.Response{Success: true, Data: rg})
}

// UploadRadiograph takes a multipart "file" and sends it to attachment storage.
func (h *Handler) UploadRadiograph(c *gin.Context) {
	var req radiographRequest
	if err := handler.Bind(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		httputil.RespondWithError(c, errors.Validation("Elegí un archivo para subir.").WithField("file", "required"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		httputil.RespondWithError(c, errors.Internal("No se pudo subir la radiografía", err))
		return
	}
	defer f.Close()

	id := c.Param("id")
	_, err = h.radiographs.Upload(c.Request.Context(), handler.ActorID(c), id, radiograph.UploadInput{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Body:        f,
		TakenAt:     req.TakenAt,
		Note:        req.Note,
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.SeeOther(c, detailPath(id))
}

func (h *Handler) FinalizeRadiograph(c *gin.Context) {
	var req finalizeRequest
	if err := handler.Bind(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	rg, err := h.radiographs.Finalize(c.Request.Context(), handler.ActorID(c), c.Param("id"), c.Param("rid"), model.StoredFile{
		FileID: req.DriveFileID,
		Bytes:  req.Bytes,
		SHA256: req.SHA256,
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, rg)
}

func (h *Handler) FailRadiograph(c *gin.Context) {
	if err := h.radiographs.Fail(c.Request.Context(), handler.ActorID(c), c.Param("id"), c.Param("rid")); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"success": true})
}

func (h *Handler) ResetRadiograph(c *gin.Context) {
	if err := h.radiographs.Reset(c.Request.Context(), handler.ActorID(c), c.Param("id"), c.Param("rid")); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"success": true})
}

func (h *Handler) DeleteRadiograph(c *gin.Context) {
	id := c.Param("id")
	if err := h.radiographs.Delete(c.Request.Context(), handler.ActorID(c), id, c.Param("rid")); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.SeeOther(c, detailPath(id))
}
