package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/consultorio/internal/model"
	"github.com/jwalitptl/consultorio/internal/repository"
)

const patientNotFound = "Paciente no encontrado"

const patientColumns = `id, owner_id, full_name, dni, phone, email, birth_date::text AS birth_date,
	address, allergies, medication, background, insurance, insurance_plan, custom_fields,
	drive_folder_id, archived_at, last_entry_at, created_at, updated_at`

func (r *patientRepository) List(ctx context.Context, filter repository.PatientFilter) ([]*model.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients`
	if !filter.IncludeArchived {
		query += ` WHERE archived_at IS NULL`
	}
	query += ` ORDER BY updated_at DESC LIMIT $1`

	var patients []*model.Patient
	if err := r.db.SelectContext(ctx, &patients, query, repository.Limit(filter.Limit)); err != nil {
		return nil, r.fail("patients.list", patientNotFound, err)
	}
	return patients, nil
}

func (r *patientRepository) Get(ctx context.Context, id string) (*model.Patient, error) {
	var patient model.Patient
	err := r.db.GetContext(ctx, &patient, `SELECT `+patientColumns+` FROM patients WHERE id = $1`, id)
	if err != nil {
		return nil, r.fail("patients.get", patientNotFound, err)
	}
	return &patient, nil
}

func (r *patientRepository) FindByDNI(ctx context.Context, dni string) (*model.Patient, error) {
	var patient model.Patient
	err := r.db.GetContext(ctx, &patient, `SELECT `+patientColumns+` FROM patients WHERE dni = $1 LIMIT 1`, dni)
	if err != nil {
		return nil, r.fail("patients.find_by_dni", patientNotFound, err)
	}
	return &patient, nil
}

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	if patient.ID == "" {
		patient.ID = uuid.NewString()
	}
	now := r.timestamp()
	patient.CreatedAt = now
	patient.UpdatedAt = now
	if patient.CustomFields == nil {
		patient.CustomFields = model.CustomFields{}
	}

	query := `
		INSERT INTO patients (
			id, owner_id, full_name, dni, phone, email, birth_date, address, allergies,
			medication, background, insurance, insurance_plan, custom_fields, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := r.db.ExecContext(ctx, query,
		patient.ID,
		patient.OwnerID,
		patient.FullName,
		patient.DNI,
		patient.Phone,
		patient.Email,
		patient.BirthDate,
		patient.Address,
		patient.Allergies,
		patient.Medication,
		patient.Background,
		patient.Insurance,
		patient.InsurancePlan,
		patient.CustomFields,
		patient.CreatedAt,
		patient.UpdatedAt,
	)
	return r.fail("patients.create", patientNotFound, err)
}

func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) error {
	patient.UpdatedAt = r.timestamp()
	query := `
		UPDATE patients SET
			phone = $1, email = $2, birth_date = $3, address = $4, allergies = $5,
			medication = $6, background = $7, insurance = $8, insurance_plan = $9, updated_at = $10
		WHERE id = $11
	`
	res, err := r.db.ExecContext(ctx, query,
		patient.Phone,
		patient.Email,
		patient.BirthDate,
		patient.Address,
		patient.Allergies,
		patient.Medication,
		patient.Background,
		patient.Insurance,
		patient.InsurancePlan,
		patient.UpdatedAt,
		patient.ID,
	)
	if err != nil {
		return r.fail("patients.update", patientNotFound, err)
	}
	return r.fail("patients.update", patientNotFound, expectOne(res, patientNotFound))
}

func (r *patientRepository) Archive(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE patients SET archived_at = $1, updated_at = $1 WHERE id = $2`, at.UTC(), id)
	if err != nil {
		return r.fail("patients.archive", patientNotFound, err)
	}
	return r.fail("patients.archive", patientNotFound, expectOne(res, patientNotFound))
}

func (r *patientRepository) Delete(ctx context.Context, id string) error {
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM patient_radiographs WHERE patient_id = $1`, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM clinical_entries WHERE patient_id = $1`, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM patients WHERE id = $1`, id)
		if err != nil {
			return err
		}
		return expectOne(res, patientNotFound)
	})
	return r.fail("patients.delete", patientNotFound, err)
}

func (r *patientRepository) SetDriveFolder(ctx context.Context, id string, folderID *string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE patients SET drive_folder_id = $1, updated_at = $2 WHERE id = $3`, folderID, r.timestamp(), id)
	if err != nil {
		return r.fail("patients.set_drive_folder", patientNotFound, err)
	}
	return r.fail("patients.set_drive_folder", patientNotFound, expectOne(res, patientNotFound))
}

func (r *patientRepository) ClearDriveFolders(ctx context.Context, ownerID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE patients SET drive_folder_id = NULL WHERE owner_id = $1`, ownerID)
	return r.fail("patients.clear_drive_folders", patientNotFound, err)
}
