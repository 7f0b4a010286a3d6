package patient

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/jwalitptl/consultorio/internal/model"
	"github.com/jwalitptl/consultorio/internal/repository"
	"github.com/jwalitptl/consultorio/internal/service/event"
	"github.com/jwalitptl/consultorio/pkg/errors"
	"github.com/jwalitptl/consultorio/pkg/messaging"
)

const (
	msgNameRequired  = "Nombre y apellido son obligatorios"
	msgDuplicateDNI  = "Ya existe un paciente con este DNI"
	msgCreateFailed  = "No se pudo crear el paciente"
	msgListFailed    = "No se pudieron cargar los pacientes"
	msgNotFound      = "Paciente no encontrado"
	msgEntryRequired = "Tipo y descripción son obligatorios"
	msgEntryFailed   = "No se pudo guardar la entrada"
	msgUpdateFailed  = "No se pudo actualizar la ficha"
	msgArchiveFailed = "No se pudo archivar el paciente"
	msgDeleteFailed  = "No se pudo eliminar el paciente"
	msgFolderFailed  = "No se pudo guardar la carpeta de Drive"
)

type CreateInput struct {
	FullName string
	DNI      string
	Phone    string
}

type EntryInput struct {
	EntryType    string
	Description  string
	Teeth        string
	Amount       string
	InternalNote string
	// CreatedAt is optional: RFC 3339, a datetime-local value or a bare date.
	CreatedAt string
}

// Detail is everything the patient file shows.
type Detail struct {
	Patient     *model.Patient             `json:"patient"`
	Entries     []*model.ClinicalEntry     `json:"entries"`
	Radiographs []*model.PatientRadiograph `json:"radiographs"`
}

type Service struct {
	patients    repository.PatientRepository
	entries     repository.ClinicalEntryRepository
	radiographs repository.RadiographRepository
	events      event.Emitter
	loc         *time.Location
	now         func() time.Time
}

func NewService(repos repository.Repositories, events event.Emitter, loc *time.Location) *Service {
	if events == nil {
		events = event.Nop{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		patients:    repos.Patients,
		entries:     repos.Entries,
		radiographs: repos.Radiographs,
		events:      events,
		loc:         loc,
		now:         time.Now,
	}
}

func (s *Service) List(ctx context.Context, includeArchived bool) ([]*model.Patient, error) {
	patients, err := s.patients.List(ctx, repository.PatientFilter{IncludeArchived: includeArchived})
	if err != nil {
		return nil, errors.Fallback(err, msgListFailed)
	}
	if patients == nil {
		patients = []*model.Patient{}
	}
	return patients, nil
}

// Create registers a patient. A DNI already on file is a conflict that carries the id of the
// existing patient in Meta["existingId"].
func (s *Service) Create(ctx context.Context, ownerID string, in CreateInput) (*model.Patient, error) {
	name := strings.TrimSpace(in.FullName)
	dni := strings.TrimSpace(in.DNI)
	if name == "" {
		return nil, errors.Validation(msgNameRequired).WithField("full_name", "required")
	}

	if dni != "" {
		existing, err := s.patients.FindByDNI(ctx, dni)
		switch {
		case err == nil:
			return nil, errors.Conflict(msgDuplicateDNI, nil).WithMeta("existingId", existing.ID)
		case !errors.IsKind(err, errors.KindNotFound):
			return nil, errors.Fallback(err, msgCreateFailed)
		}
	}

	p := &model.Patient{
		OwnerID:  model.NullString(ownerID),
		FullName: name,
		DNI:      model.NullString(dni),
		Phone:    model.NullString(model.NormalizePhone(in.Phone)),
	}
	if err := s.patients.Create(ctx, p); err != nil {
		if errors.IsKind(err, errors.KindConflict) && dni != "" {
			return nil, s.duplicateDNI(ctx, dni, err)
		}
		return nil, errors.Fallback(err, msgCreateFailed)
	}

	s.events.Emit(ctx, messaging.PatientCreated, p.ID, ownerID, nil)
	return p, nil
}

// duplicateDNI builds the conflict for a create that lost a race on the DNI constraint, pointing at
// the patient that won when it can be found.
func (s *Service) duplicateDNI(ctx context.Context, dni string, cause error) error {
	conflict := errors.Conflict(msgDuplicateDNI, cause)
	existing, err := s.patients.FindByDNI(ctx, dni)
	if err != nil {
		return conflict
	}
	return conflict.WithMeta("existingId", existing.ID)
}

func (s *Service) Get(ctx context.Context, id string) (*Detail, error) {
	p, err := s.patients.Get(ctx, id)
	if err != nil {
		return nil, errors.Fallback(err, msgNotFound)
	}
	entries, err := s.entries.ListByPatient(ctx, id)
	if err != nil {
		return nil, errors.Fallback(err, msgNotFound)
	}
	radiographs, err := s.radiographs.ListByPatient(ctx, id)
	if err != nil {
		return nil, errors.Fallback(err, msgNotFound)
	}
	if entries == nil {
		entries = []*model.ClinicalEntry{}
	}
	if radiographs == nil {
		radiographs = []*model.PatientRadiograph{}
	}
	return &Detail{Patient: p, Entries: entries, Radiographs: radiographs}, nil
}

func (s *Service) AddEntry(ctx context.Context, ownerID, patientID string, in EntryInput) (*model.ClinicalEntry, error) {
	entryType := model.EntryType(strings.TrimSpace(in.EntryType))
	description := strings.TrimSpace(in.Description)
	if entryType == "" || description == "" {
		return nil, errors.Validation(msgEntryRequired)
	}
	if !entryType.Valid() {
		return nil, errors.Validation("Tipo de entrada inválido.").WithField("entry_type", "oneof")
	}

	createdAt := s.now().UTC()
	if raw := strings.TrimSpace(in.CreatedAt); raw != "" {
		t, err := parseEntryTime(raw, s.loc)
		if err != nil {
			return nil, errors.Validation("Revisá la fecha de la entrada.").WithField("created_at", "format")
		}
		createdAt = t
	}

	var amount *float64
	if raw := strings.TrimSpace(in.Amount); raw != "" {
		v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
		if err != nil {
			return nil, errors.Validation("El monto debe ser un número.").WithField("amount", "numeric")
		}
		amount = &v
	}

	if _, err := s.patients.Get(ctx, patientID); err != nil {
		return nil, errors.Fallback(err, msgEntryFailed)
	}

	entry := &model.ClinicalEntry{
		PatientID:    patientID,
		OwnerID:      model.NullString(ownerID),
		CreatedAt:    createdAt,
		EntryType:    entryType,
		Description:  description,
		Teeth:        model.NullString(in.Teeth),
		Amount:       amount,
		InternalNote: model.NullString(in.InternalNote),
	}
	if err := s.entries.Create(ctx, entry); err != nil {
		return nil, errors.Fallback(err, msgEntryFailed)
	}

	s.events.Emit(ctx, messaging.EntryCreated, entry.ID, ownerID, map[string]string{
		"patient_id": patientID,
		"entry_type": string(entryType),
	})
	return entry, nil
}

// Update replaces the contact and clinical fields. Name and DNI are not editable.
func (s *Service) Update(ctx context.Context, actorID, id string, in model.PatientUpdate) error {
	p, err := s.patients.Get(ctx, id)
	if err != nil {
		return errors.Fallback(err, msgUpdateFailed)
	}
	in.Apply(p)
	if err := s.patients.Update(ctx, p); err != nil {
		return errors.Fallback(err, msgUpdateFailed)
	}
	s.events.Emit(ctx, messaging.PatientUpdated, id, actorID, nil)
	return nil
}

func (s *Service) Archive(ctx context.Context, actorID, id string) error {
	if err := s.patients.Archive(ctx, id, s.now()); err != nil {
		return errors.Fallback(err, msgArchiveFailed)
	}
	s.events.Emit(ctx, messaging.PatientArchived, id, actorID, nil)
	return nil
}

// Delete removes the patient together with entries and radiograph records.
func (s *Service) Delete(ctx context.Context, actorID, id string) error {
	if err := s.patients.Delete(ctx, id); err != nil {
		return errors.Fallback(err, msgDeleteFailed)
	}
	s.events.Emit(ctx, messaging.PatientDeleted, id, actorID, nil)
	return nil
}

// SetDriveFolder links the patient to a folder in the connected Drive. A blank id unlinks it.
func (s *Service) SetDriveFolder(ctx context.Context, actorID, id, folderID string) error {
	if err := s.patients.SetDriveFolder(ctx, id, model.NullString(folderID)); err != nil {
		return errors.Fallback(err, msgFolderFailed)
	}
	s.events.Emit(ctx, messaging.PatientUpdated, id, actorID, map[string]string{"field": "drive_folder_id"})
	return nil
}

var entryTimeLayouts = []string{"2006-01-02T15:04", "2006-01-02T15:04:05", "2006-01-02"}

func parseEntryTime(raw string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	var lastErr error
	for _, layout := range entryTimeLayouts {
		t, err := time.ParseInLocation(layout, raw, loc)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
