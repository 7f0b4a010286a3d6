package repository

import (
	"context"
	"time"

	"github.com/jwalitptl/consultorio/internal/model"
)

const DefaultListLimit = 200

type PatientFilter struct {
	IncludeArchived bool
	Limit           int
}

type CaseFilter struct {
	// Status filters on an exact status; empty means all.
	Status string
	Limit  int
}

// All repository interfaces in one file. Lookups that find nothing return a NotFound AppError.
type (
	PatientRepository interface {
		// List orders by updated_at, newest first.
		List(ctx context.Context, filter PatientFilter) ([]*model.Patient, error)
		Get(ctx context.Context, id string) (*model.Patient, error)
		FindByDNI(ctx context.Context, dni string) (*model.Patient, error)
		Create(ctx context.Context, patient *model.Patient) error
		Update(ctx context.Context, patient *model.Patient) error
		Archive(ctx context.Context, id string, at time.Time) error
		// Delete removes the patient with its entries and radiographs.
		Delete(ctx context.Context, id string) error
		SetDriveFolder(ctx context.Context, id string, folderID *string) error
		ClearDriveFolders(ctx context.Context, ownerID string) error
	}

	ClinicalEntryRepository interface {
		// ListByPatient orders by created_at, newest first.
		ListByPatient(ctx context.Context, patientID string) ([]*model.ClinicalEntry, error)
		// Create also moves the patient's last_entry_at forward.
		Create(ctx context.Context, entry *model.ClinicalEntry) error
	}

	RadiographRepository interface {
		// ListByPatient skips deleted radiographs and orders newest first.
		ListByPatient(ctx context.Context, patientID string) ([]*model.PatientRadiograph, error)
		Get(ctx context.Context, id string) (*model.PatientRadiograph, error)
		Create(ctx context.Context, radiograph *model.PatientRadiograph) error
		// Update writes radiograph only while the stored status is still from. A row that moved on
		// in the meantime answers Conflict and is left untouched.
		Update(ctx context.Context, radiograph *model.PatientRadiograph, from model.RadiographStatus) error
		// ListStale returns live radiographs whose current upload attempt started before cutoff.
		ListStale(ctx context.Context, cutoff time.Time) ([]*model.PatientRadiograph, error)
	}

	PersonRepository interface {
		Get(ctx context.Context, id string) (*model.Person, error)
		FindByDNI(ctx context.Context, dni string) (*model.Person, error)
		Create(ctx context.Context, person *model.Person) error
	}

	CaseRepository interface {
		List(ctx context.Context, filter CaseFilter) ([]*model.CaseFile, error)
		Get(ctx context.Context, id string) (*model.CaseFile, error)
		Create(ctx context.Context, c *model.CaseFile) error
		Update(ctx context.Context, c *model.CaseFile) error
		Archive(ctx context.Context, id string, at time.Time) error
	}

	CaseEventRepository interface {
		ListByCase(ctx context.Context, caseID string) ([]*model.CaseEvent, error)
		Create(ctx context.Context, event *model.CaseEvent) error
	}

	AllowedEmailRepository interface {
		// List orders by email.
		List(ctx context.Context) ([]*model.AllowedEmail, error)
		Create(ctx context.Context, email *model.AllowedEmail) error
		SetEnabled(ctx context.Context, id string, enabled bool) error
		Delete(ctx context.Context, id string) error
		IsEnabled(ctx context.Context, email string) (bool, error)
	}

	DriveConnectionRepository interface {
		Get(ctx context.Context, ownerID string) (*model.DriveConnection, error)
		Upsert(ctx context.Context, conn *model.DriveConnection) error
		Delete(ctx context.Context, ownerID string) error
	}
)

// Repositories is everything one module's backend offers.
type Repositories struct {
	Patients         PatientRepository
	Entries          ClinicalEntryRepository
	Radiographs      RadiographRepository
	People           PersonRepository
	Cases            CaseRepository
	CaseEvents       CaseEventRepository
	AllowedEmails    AllowedEmailRepository
	DriveConnections DriveConnectionRepository
}

func Limit(n int) int {
	if n <= 0 || n > DefaultListLimit {
		return DefaultListLimit
	}
	return n
}
