package model

import (
	"time"

	"github.com/jwalitptl/consultorio/pkg/errors"
)

type RadiographStatus string

const (
	RadiographUploading RadiographStatus = "uploading"
	RadiographReady     RadiographStatus = "ready"
	RadiographFailed    RadiographStatus = "failed"
)

type PatientRadiograph struct {
	ID               string           `db:"id" json:"id"`
	PatientID        string           `db:"patient_id" json:"patient_id"`
	Status           RadiographStatus `db:"status" json:"status"`
	DriveFileID      *string          `db:"drive_file_id" json:"drive_file_id"`
	OriginalFilename *string          `db:"original_filename" json:"original_filename"`
	MimeType         *string          `db:"mime_type" json:"mime_type"`
	Bytes            *int64           `db:"bytes" json:"bytes"`
	SHA256           *string          `db:"sha256" json:"sha256"`
	TakenAt          *string          `db:"taken_at" json:"taken_at"`
	Note             *string          `db:"note" json:"note"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	UploadStartedAt  time.Time        `db:"upload_started_at" json:"upload_started_at"`
	CreatedBy        *string          `db:"created_by" json:"created_by"`
	DeletedAt        *time.Time       `db:"deleted_at" json:"deleted_at"`
}

var (
	errRadiographDeleted  = errors.Validation("La radiografía fue eliminada.")
	errRadiographNotReady = errors.Validation("La radiografía no está en proceso de carga.")
)

// StoredFile describes what attachment storage returned for an upload.
type StoredFile struct {
	FileID string
	Bytes  int64
	SHA256 string
}

// Finalize moves an upload to ready. A file id is mandatory.
func (r *PatientRadiograph) Finalize(f StoredFile) error {
	if r.DeletedAt != nil {
		return errRadiographDeleted
	}
	if r.Status != RadiographUploading {
		return errRadiographNotReady
	}
	if f.FileID == "" {
		return errors.Validation("Falta el archivo de la radiografía.").WithField("drive_file_id", "required")
	}
	r.Status = RadiographReady
	r.DriveFileID = &f.FileID
	if f.Bytes > 0 {
		r.Bytes = &f.Bytes
	}
	if f.SHA256 != "" {
		r.SHA256 = &f.SHA256
	}
	return nil
}

// Fail marks an upload as failed.
func (r *PatientRadiograph) Fail() error {
	if r.DeletedAt != nil {
		return errRadiographDeleted
	}
	if r.Status != RadiographUploading {
		return errRadiographNotReady
	}
	r.Status = RadiographFailed
	return nil
}

// Reset puts a failed or stuck upload back to uploading and forgets any stored file. The upload
// clock restarts at at, so the stale sweep measures the retry and not the first attempt.
func (r *PatientRadiograph) Reset(at time.Time) error {
	if r.DeletedAt != nil {
		return errRadiographDeleted
	}
	if r.Status == RadiographReady {
		return errors.Validation("La radiografía ya está cargada.")
	}
	r.Status = RadiographUploading
	r.UploadStartedAt = at.UTC()
	r.DriveFileID = nil
	r.Bytes = nil
	r.SHA256 = nil
	return nil
}

// StartedAt is when the current upload attempt began. Records written before the upload clock
// existed fall back to their creation time.
func (r *PatientRadiograph) StartedAt() time.Time {
	if r.UploadStartedAt.IsZero() {
		return r.CreatedAt
	}
	return r.UploadStartedAt
}

// SoftDelete hides the radiograph. Deleting twice is a no-op.
func (r *PatientRadiograph) SoftDelete(at time.Time) {
	if r.DeletedAt == nil {
		at = at.UTC()
		r.DeletedAt = &at
	}
}
