package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/consultorio/internal/model"
)

const entryColumns = `id, patient_id, owner_id, created_at, entry_type, description, teeth, amount, internal_note`

func (r *entryRepository) ListByPatient(ctx context.Context, patientID string) ([]*model.ClinicalEntry, error) {
	var entries []*model.ClinicalEntry
	err := r.db.SelectContext(ctx, &entries,
		`SELECT `+entryColumns+` FROM clinical_entries WHERE patient_id = $1 ORDER BY created_at DESC`, patientID)
	if err != nil {
		return nil, r.fail("entries.list", patientNotFound, err)
	}
	return entries, nil
}

func (r *entryRepository) Create(ctx context.Context, entry *model.ClinicalEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.timestamp()
	}

	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO clinical_entries (
				id, patient_id, owner_id, created_at, entry_type, description, teeth, amount, internal_note
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			entry.ID,
			entry.PatientID,
			entry.OwnerID,
			entry.CreatedAt,
			entry.EntryType,
			entry.Description,
			entry.Teeth,
			entry.Amount,
			entry.InternalNote,
		)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE patients
			SET last_entry_at = GREATEST(COALESCE(last_entry_at, $2), $2), updated_at = $3
			WHERE id = $1`,
			entry.PatientID, entry.CreatedAt, r.timestamp())
		return err
	})
	return r.fail("entries.create", patientNotFound, err)
}
