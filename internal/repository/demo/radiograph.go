package demo

import (
	"context"
	"time"

	"github.com/jwalitptl/consultorio/internal/demostore"
	"github.com/jwalitptl/consultorio/internal/model"
	"github.com/jwalitptl/consultorio/pkg/errors"
)

const (
	radiographNotFound = "Radiografía no encontrada"
	radiographChanged  = "La radiografía cambió mientras se guardaba. Recargá la página."
)

type radiographRepository struct{ base }

func (r *radiographRepository) ListByPatient(_ context.Context, patientID string) ([]*model.PatientRadiograph, error) {
	db, err := r.store.Read()
	if err != nil {
		return nil, err
	}
	var out []*model.PatientRadiograph
	for i := range db.Radiographs {
		rg := &db.Radiographs[i]
		if rg.PatientID == patientID && rg.DeletedAt == nil {
			out = append(out, rg)
		}
	}
	newestFirst(out, func(rg *model.PatientRadiograph) time.Time { return rg.CreatedAt })
	return out, nil
}

func (r *radiographRepository) Get(_ context.Context, id string) (*model.PatientRadiograph, error) {
	db, err := r.store.Read()
	if err != nil {
		return nil, err
	}
	for i := range db.Radiographs {
		if db.Radiographs[i].ID == id {
			return &db.Radiographs[i], nil
		}
	}
	return nil, notFound(radiographNotFound)
}

func (r *radiographRepository) Create(_ context.Context, rg *model.PatientRadiograph) error {
	return r.store.Mutate(func(db *demostore.Data) error {
		if indexPatient(db, rg.PatientID) < 0 {
			return notFound(patientNotFound)
		}
		if rg.ID == "" {
			rg.ID = r.store.NewID("rx")
		}
		rg.CreatedAt = r.timestamp()
		if rg.UploadStartedAt.IsZero() {
			rg.UploadStartedAt = rg.CreatedAt
		}
		db.Radiographs = append(db.Radiographs, *rg)
		return nil
	})
}

func (r *radiographRepository) Update(_ context.Context, rg *model.PatientRadiograph, from model.RadiographStatus) error {
	return r.store.Mutate(func(db *demostore.Data) error {
		for i := range db.Radiographs {
			if db.Radiographs[i].ID != rg.ID {
				continue
			}
			cur := &db.Radiographs[i]
			if cur.Status != from {
				return errors.Conflict(radiographChanged, nil)
			}
			cur.Status = rg.Status
			cur.DriveFileID = rg.DriveFileID
			cur.Bytes = rg.Bytes
			cur.SHA256 = rg.SHA256
			cur.DeletedAt = rg.DeletedAt
			cur.UploadStartedAt = rg.StartedAt()
			return nil
		}
		return notFound(radiographNotFound)
	})
}

func (r *radiographRepository) ListStale(_ context.Context, cutoff time.Time) ([]*model.PatientRadiograph, error) {
	db, err := r.store.Read()
	if err != nil {
		return nil, err
	}
	var out []*model.PatientRadiograph
	for i := range db.Radiographs {
		rg := &db.Radiographs[i]
		if rg.Status == model.RadiographUploading && rg.DeletedAt == nil && rg.StartedAt().Before(cutoff) {
			out = append(out, rg)
		}
	}
	return out, nil
}
