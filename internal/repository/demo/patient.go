package demo

import (
	"context"
	"time"

	"github.com/jwalitptl/consultorio/internal/demostore"
	"github.com/jwalitptl/consultorio/internal/model"
	"github.com/jwalitptl/consultorio/internal/repository"
	"github.com/jwalitptl/consultorio/pkg/errors"
)

const (
	patientNotFound = "Paciente no encontrado"
	patientDNITaken = "Ya existe un paciente con este DNI"
)

type patientRepository struct{ base }

func (r *patientRepository) List(_ context.Context, filter repository.PatientFilter) ([]*model.Patient, error) {
	db, err := r.store.Read()
	if err != nil {
		return nil, err
	}
	out := make([]*model.Patient, 0, len(db.Patients))
	for i := range db.Patients {
		p := &db.Patients[i]
		if !filter.IncludeArchived && p.Archived() {
			continue
		}
		out = append(out, p)
	}
	newestFirst(out, func(p *model.Patient) time.Time { return p.UpdatedAt })
	return truncate(out, filter.Limit), nil
}

func (r *patientRepository) Get(_ context.Context, id string) (*model.Patient, error) {
	db, err := r.store.Read()
	if err != nil {
		return nil, err
	}
	if i := indexPatient(db, id); i >= 0 {
		return &db.Patients[i], nil
	}
	return nil, notFound(patientNotFound)
}

func (r *patientRepository) FindByDNI(_ context.Context, dni string) (*model.Patient, error) {
	db, err := r.store.Read()
	if err != nil {
		return nil, err
	}
	for i := range db.Patients {
		if model.Deref(db.Patients[i].DNI) == dni {
			return &db.Patients[i], nil
		}
	}
	return nil, notFound(patientNotFound)
}

func (r *patientRepository) Create(_ context.Context, patient *model.Patient) error {
	return r.store.Mutate(func(db *demostore.Data) error {
		if dni := model.Deref(patient.DNI); dni != "" {
			for i := range db.Patients {
				if model.Deref(db.Patients[i].DNI) == dni {
					return errors.Conflict(patientDNITaken, nil)
				}
			}
		}
		if patient.ID == "" {
			patient.ID = r.store.NewID("p")
		}
		now := r.timestamp()
		patient.CreatedAt = now
		patient.UpdatedAt = now
		if patient.CustomFields == nil {
			patient.CustomFields = model.CustomFields{}
		}
		db.Patients = append(db.Patients, *patient)
		return nil
	})
}

func (r *patientRepository) Update(_ context.Context, patient *model.Patient) error {
	return r.store.Mutate(func(db *demostore.Data) error {
		i := indexPatient(db, patient.ID)
		if i < 0 {
			return notFound(patientNotFound)
		}
		patient.UpdatedAt = r.timestamp()
		cur := &db.Patients[i]
		cur.Phone = patient.Phone
		cur.Email = patient.Email
		cur.BirthDate = patient.BirthDate
		cur.Address = patient.Address
		cur.Allergies = patient.Allergies
		cur.Medication = patient.Medication
		cur.Background = patient.Background
		cur.Insurance = patient.Insurance
		cur.InsurancePlan = patient.InsurancePlan
		cur.UpdatedAt = patient.UpdatedAt
		return nil
	})
}

func (r *patientRepository) Archive(_ context.Context, id string, at time.Time) error {
	return r.store.Mutate(func(db *demostore.Data) error {
		i := indexPatient(db, id)
		if i < 0 {
			return notFound(patientNotFound)
		}
		at = at.UTC()
		db.Patients[i].ArchivedAt = &at
		db.Patients[i].UpdatedAt = at
		return nil
	})
}

func (r *patientRepository) Delete(_ context.Context, id string) error {
	return r.store.Mutate(func(db *demostore.Data) error {
		i := indexPatient(db, id)
		if i < 0 {
			return notFound(patientNotFound)
		}
		db.Patients = append(db.Patients[:i], db.Patients[i+1:]...)

		entries := db.ClinicalEntries[:0]
		for _, e := range db.ClinicalEntries {
			if e.PatientID != id {
				entries = append(entries, e)
			}
		}
		db.ClinicalEntries = entries

		radiographs := db.Radiographs[:0]
		for _, rg := range db.Radiographs {
			if rg.PatientID != id {
				radiographs = append(radiographs, rg)
			}
		}
		db.Radiographs = radiographs
		return nil
	})
}

func (r *patientRepository) SetDriveFolder(_ context.Context, id string, folderID *string) error {
	return r.store.Mutate(func(db *demostore.Data) error {
		i := indexPatient(db, id)
		if i < 0 {
			return notFound(patientNotFound)
		}
		db.Patients[i].DriveFolderID = folderID
		db.Patients[i].UpdatedAt = r.timestamp()
		return nil
	})
}

func (r *patientRepository) ClearDriveFolders(_ context.Context, ownerID string) error {
	return r.store.Mutate(func(db *demostore.Data) error {
		for i := range db.Patients {
			if model.Deref(db.Patients[i].OwnerID) == ownerID {
				db.Patients[i].DriveFolderID = nil
			}
		}
		return nil
	})
}

func indexPatient(db *demostore.Data, id string) int {
	for i := range db.Patients {
		if db.Patients[i].ID == id {
			return i
		}
	}
	return -1
}

type entryRepository struct{ base }

func (r *entryRepository) ListByPatient(_ context.Context, patientID string) ([]*model.ClinicalEntry, error) {
	db, err := r.store.Read()
	if err != nil {
		return nil, err
	}
	var out []*model.ClinicalEntry
	for i := range db.ClinicalEntries {
		if db.ClinicalEntries[i].PatientID == patientID {
			out = append(out, &db.ClinicalEntries[i])
		}
	}
	newestFirst(out, func(e *model.ClinicalEntry) time.Time { return e.CreatedAt })
	return out, nil
}

func (r *entryRepository) Create(_ context.Context, entry *model.ClinicalEntry) error {
	return r.store.Mutate(func(db *demostore.Data) error {
		i := indexPatient(db, entry.PatientID)
		if i < 0 {
			return notFound(patientNotFound)
		}
		if entry.ID == "" {
			entry.ID = r.store.NewID("e")
		}
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = r.timestamp()
		}
		db.ClinicalEntries = append(db.ClinicalEntries, *entry)

		p := &db.Patients[i]
		if p.LastEntryAt == nil || entry.CreatedAt.After(*p.LastEntryAt) {
			at := entry.CreatedAt
			p.LastEntryAt = &at
		}
		p.UpdatedAt = r.timestamp()
		return nil
	})
}
