// Package radiograph tracks radiograph uploads for a patient and pushes the files to attachment
// storage when the server does the upload itself.
package radiograph

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/consultorio/internal/model"
	"github.com/jwalitptl/consultorio/internal/repository"
	"github.com/jwalitptl/consultorio/internal/service/event"
	"github.com/jwalitptl/consultorio/pkg/errors"
	"github.com/jwalitptl/consultorio/pkg/messaging"
	"github.com/jwalitptl/consultorio/pkg/metrics"
	"github.com/jwalitptl/consultorio/pkg/storage"
)

const (
	msgNotFound     = "Radiografía no encontrada"
	msgSaveFailed   = "No se pudo guardar la radiografía"
	msgUploadFailed = "No se pudo subir la radiografía"
	msgNoStorage    = "No hay almacenamiento de adjuntos configurado."
	msgFileRequired = "Elegí un archivo para subir."
	msgTooLarge     = "El archivo supera el tamaño permitido."
	msgFolderFailed = "No se pudo preparar la carpeta del paciente"
	msgListFailed   = "No se pudieron cargar las radiografías"
	msgExpireFailed = "No se pudieron revisar las cargas pendientes"
)

// CreateInput describes a file the browser is about to upload on its own.
type CreateInput struct {
	OriginalFilename string
	MimeType         string
	TakenAt          string
	Note             string
}

// UploadInput is a file the server uploads on the user's behalf.
type UploadInput struct {
	Filename    string
	ContentType string
	Body        io.Reader
	TakenAt     string
	Note        string
}

type Service struct {
	radiographs repository.RadiographRepository
	patients    repository.PatientRepository
	drive       repository.DriveConnectionRepository
	store       storage.Store
	events      event.Emitter
	uploaded    prometheus.Counter
	expired     prometheus.Counter
	logger      zerolog.Logger
	now         func() time.Time
}

// NewService wires the service. store may be nil when no attachment backend is configured; the
// record operations still work, only Upload is refused.
func NewService(repos repository.Repositories, store storage.Store, events event.Emitter, m *metrics.Metrics, logger zerolog.Logger) *Service {
	if events == nil {
		events = event.Nop{}
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &Service{
		radiographs: repos.Radiographs,
		patients:    repos.Patients,
		drive:       repos.DriveConnections,
		store:       store,
		events:      events,
		uploaded:    m.UploadBytes,
		expired:     m.UploadsExpired,
		logger:      logger.With().Str("component", "radiographs").Logger(),
		now:         time.Now,
	}
}

func (s *Service) List(ctx context.Context, patientID string) ([]*model.PatientRadiograph, error) {
	out, err := s.radiographs.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, errors.Fallback(err, msgListFailed)
	}
	return out, nil
}

// Create records an upload in progress.
func (s *Service) Create(ctx context.Context, actorID, patientID string, in CreateInput) (*model.PatientRadiograph, error) {
	if _, err := s.patients.Get(ctx, patientID); err != nil {
		return nil, errors.Fallback(err, msgSaveFailed)
	}
	rg := &model.PatientRadiograph{
		PatientID:        patientID,
		Status:           model.RadiographUploading,
		OriginalFilename: model.NullString(in.OriginalFilename),
		MimeType:         model.NullString(in.MimeType),
		TakenAt:          model.NullString(in.TakenAt),
		Note:             model.NullString(in.Note),
		CreatedBy:        model.NullString(actorID),
		UploadStartedAt:  s.now().UTC(),
	}
	if err := s.radiographs.Create(ctx, rg); err != nil {
		return nil, errors.Fallback(err, msgSaveFailed)
	}
	s.events.Emit(ctx, messaging.RadiographCreated, rg.ID, actorID, map[string]string{"patient_id": patientID})
	return rg, nil
}

// Upload stores the file in the patient's folder and records it as ready. When storage fails the
// record is kept as failed so it can be retried.
func (s *Service) Upload(ctx context.Context, actorID, patientID string, in UploadInput) (*model.PatientRadiograph, error) {
	if s.store == nil {
		return nil, errors.Unavailable(msgNoStorage)
	}
	if in.Body == nil || strings.TrimSpace(in.Filename) == "" {
		return nil, errors.Validation(msgFileRequired).WithField("file", "required")
	}

	patient, err := s.patients.Get(ctx, patientID)
	if err != nil {
		return nil, errors.Fallback(err, msgUploadFailed)
	}
	folderID, err := s.patientFolder(ctx, actorID, patient)
	if err != nil {
		return nil, err
	}

	rg, err := s.Create(ctx, actorID, patientID, CreateInput{
		OriginalFilename: in.Filename,
		MimeType:         in.ContentType,
		TakenAt:          in.TakenAt,
		Note:             in.Note,
	})
	if err != nil {
		return nil, err
	}

	obj, err := s.store.Upload(ctx, storage.UploadInput{
		FolderID:    folderID,
		Filename:    in.Filename,
		ContentType: in.ContentType,
		Body:        in.Body,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("radiograph_id", rg.ID).Str("backend", s.store.Name()).Msg("upload failed")
		if ferr := s.transition(ctx, actorID, patientID, rg.ID, (*model.PatientRadiograph).Fail, messaging.RadiographFailed); ferr != nil {
			s.logger.Error().Err(ferr).Str("radiograph_id", rg.ID).Msg("could not mark upload as failed")
		}
		if stderrors.Is(err, storage.ErrTooLarge) {
			return nil, errors.Validation(msgTooLarge).WithField("file", "max")
		}
		return nil, errors.Internal(msgUploadFailed, err)
	}
	s.uploaded.Add(float64(obj.Bytes))

	return s.Finalize(ctx, actorID, patientID, rg.ID, model.StoredFile{
		FileID: obj.ID,
		Bytes:  obj.Bytes,
		SHA256: obj.SHA256,
	})
}

// patientFolder returns the patient's storage folder, creating and linking it on first use.
func (s *Service) patientFolder(ctx context.Context, actorID string, p *model.Patient) (string, error) {
	if p.DriveFolderID != nil && *p.DriveFolderID != "" {
		return *p.DriveFolderID, nil
	}

	root := ""
	if owner := model.Deref(p.OwnerID); owner != "" {
		conn, err := s.drive.Get(ctx, owner)
		switch {
		case err == nil:
			root = model.Deref(conn.RootFolderID)
		case errors.IsKind(err, errors.KindNotFound), errors.IsKind(err, errors.KindUnavailable):
		default:
			return "", errors.Fallback(err, msgFolderFailed)
		}
	}

	name := fmt.Sprintf("%s - %s", p.FullName, p.ID)
	folderID, err := s.store.EnsureFolder(ctx, name, root)
	if err != nil {
		return "", errors.Internal(msgFolderFailed, err)
	}
	if err := s.patients.SetDriveFolder(ctx, p.ID, &folderID); err != nil {
		return "", errors.Fallback(err, msgFolderFailed)
	}
	s.events.Emit(ctx, messaging.PatientUpdated, p.ID, actorID, map[string]string{"field": "drive_folder_id"})
	return folderID, nil
}

// Finalize marks an upload as ready with the file storage returned.
func (s *Service) Finalize(ctx context.Context, actorID, patientID, id string, f model.StoredFile) (*model.PatientRadiograph, error) {
	var out *model.PatientRadiograph
	err := s.transition(ctx, actorID, patientID, id, func(rg *model.PatientRadiograph) error {
		out = rg
		return rg.Finalize(f)
	}, messaging.RadiographReady)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) Fail(ctx context.Context, actorID, patientID, id string) error {
	return s.transition(ctx, actorID, patientID, id, (*model.PatientRadiograph).Fail, messaging.RadiographFailed)
}

func (s *Service) Reset(ctx context.Context, actorID, patientID, id string) error {
	return s.transition(ctx, actorID, patientID, id, func(rg *model.PatientRadiograph) error {
		return rg.Reset(s.now())
	}, messaging.RadiographReset)
}

// Delete hides the radiograph and, when storage is configured, removes the stored file. A file
// that cannot be removed is only logged.
func (s *Service) Delete(ctx context.Context, actorID, patientID, id string) error {
	var fileID string
	err := s.transition(ctx, actorID, patientID, id, func(rg *model.PatientRadiograph) error {
		fileID = model.Deref(rg.DriveFileID)
		rg.SoftDelete(s.now())
		return nil
	}, messaging.RadiographDeleted)
	if err != nil {
		return err
	}
	if fileID != "" && s.store != nil {
		if err := s.store.Delete(ctx, fileID); err != nil {
			s.logger.Warn().Err(err).Str("radiograph_id", id).Msg("stored file not removed")
		}
	}
	return nil
}

func (s *Service) transition(ctx context.Context, actorID, patientID, id string, apply func(*model.PatientRadiograph) error, eventType string) error {
	rg, err := s.radiographs.Get(ctx, id)
	if err != nil {
		return errors.Fallback(err, msgSaveFailed)
	}
	if rg.PatientID != patientID {
		return errors.NotFound(msgNotFound, nil)
	}
	from := rg.Status
	if err := apply(rg); err != nil {
		return err
	}
	if err := s.radiographs.Update(ctx, rg, from); err != nil {
		return errors.Fallback(err, msgSaveFailed)
	}
	s.events.Emit(ctx, eventType, id, actorID, map[string]string{
		"patient_id": patientID,
		"status":     string(rg.Status),
	})
	return nil
}

// ExpireStale marks uploads that have been in progress for longer than after as failed and
// returns how many it changed.
func (s *Service) ExpireStale(ctx context.Context, after time.Duration) (int, error) {
	stale, err := s.radiographs.ListStale(ctx, s.now().Add(-after))
	if err != nil {
		return 0, errors.Fallback(err, msgExpireFailed)
	}
	expired := 0
	for _, rg := range stale {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		if err := rg.Fail(); err != nil {
			continue
		}
		if err := s.radiographs.Update(ctx, rg, model.RadiographUploading); err != nil {
			if errors.IsKind(err, errors.KindConflict) {
				s.logger.Debug().Str("radiograph_id", rg.ID).Msg("upload settled before expiry")
				continue
			}
			s.logger.Error().Err(err).Str("radiograph_id", rg.ID).Msg("could not expire upload")
			continue
		}
		expired++
		s.expired.Inc()
		s.events.Emit(ctx, messaging.RadiographFailed, rg.ID, "", map[string]string{
			"patient_id": rg.PatientID,
			"reason":     "expired",
		})
	}
	return expired, nil
}
