package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/consultorio/internal/model"
	"github.com/jwalitptl/consultorio/pkg/errors"
)

const (
	radiographNotFound = "Radiografía no encontrada"
	radiographChanged  = "La radiografía cambió mientras se guardaba. Recargá la página."
)

const radiographColumns = `id, patient_id, status, drive_file_id, original_filename, mime_type, bytes,
	sha256, taken_at::text AS taken_at, note, created_at, upload_started_at, created_by, deleted_at`

func (r *radiographRepository) ListByPatient(ctx context.Context, patientID string) ([]*model.PatientRadiograph, error) {
	var out []*model.PatientRadiograph
	err := r.db.SelectContext(ctx, &out, `
		SELECT `+radiographColumns+` FROM patient_radiographs
		WHERE patient_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC`, patientID)
	if err != nil {
		return nil, r.fail("radiographs.list", radiographNotFound, err)
	}
	return out, nil
}

func (r *radiographRepository) Get(ctx context.Context, id string) (*model.PatientRadiograph, error) {
	var rg model.PatientRadiograph
	err := r.db.GetContext(ctx, &rg, `SELECT `+radiographColumns+` FROM patient_radiographs WHERE id = $1`, id)
	if err != nil {
		return nil, r.fail("radiographs.get", radiographNotFound, err)
	}
	return &rg, nil
}

func (r *radiographRepository) Create(ctx context.Context, rg *model.PatientRadiograph) error {
	if rg.ID == "" {
		rg.ID = uuid.NewString()
	}
	rg.CreatedAt = r.timestamp()
	if rg.UploadStartedAt.IsZero() {
		rg.UploadStartedAt = rg.CreatedAt
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO patient_radiographs (
			id, patient_id, status, drive_file_id, original_filename, mime_type, bytes,
			sha256, taken_at, note, created_at, upload_started_at, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		rg.ID,
		rg.PatientID,
		rg.Status,
		rg.DriveFileID,
		rg.OriginalFilename,
		rg.MimeType,
		rg.Bytes,
		rg.SHA256,
		rg.TakenAt,
		rg.Note,
		rg.CreatedAt,
		rg.UploadStartedAt.UTC(),
		rg.CreatedBy,
	)
	return r.fail("radiographs.create", radiographNotFound, err)
}

func (r *radiographRepository) Update(ctx context.Context, rg *model.PatientRadiograph, from model.RadiographStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE patient_radiographs SET
			status = $1, drive_file_id = $2, bytes = $3, sha256 = $4, deleted_at = $5,
			upload_started_at = $6
		WHERE id = $7 AND status = $8`,
		rg.Status,
		rg.DriveFileID,
		rg.Bytes,
		rg.SHA256,
		rg.DeletedAt,
		rg.StartedAt().UTC(),
		rg.ID,
		from,
	)
	if err != nil {
		return r.fail("radiographs.update", radiographNotFound, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return r.fail("radiographs.update", radiographNotFound, err)
	}
	if n == 0 {
		return errors.Conflict(radiographChanged, nil)
	}
	return nil
}

func (r *radiographRepository) ListStale(ctx context.Context, cutoff time.Time) ([]*model.PatientRadiograph, error) {
	var out []*model.PatientRadiograph
	err := r.db.SelectContext(ctx, &out, `
		SELECT `+radiographColumns+` FROM patient_radiographs
		WHERE status = $1 AND deleted_at IS NULL AND upload_started_at < $2`,
		model.RadiographUploading, cutoff.UTC())
	if err != nil {
		return nil, r.fail("radiographs.list_stale", radiographNotFound, err)
	}
	return out, nil
}
