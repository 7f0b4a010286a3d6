// Package casefile runs the administrative module: people, their case files and the events
// logged against each case.
package casefile

import (
	"context"
	"strings"
	"time"

	"github.com/jwalitptl/consultorio/internal/model"
	"github.com/jwalitptl/consultorio/internal/repository"
	"github.com/jwalitptl/consultorio/internal/service/event"
	"github.com/jwalitptl/consultorio/pkg/errors"
	"github.com/jwalitptl/consultorio/pkg/messaging"
)

// AllStatuses is the list filter value that disables status filtering.
const AllStatuses = "todos"

const (
	msgSessionInvalid = "Sesión inválida. Volvé a iniciar sesión."
	msgCreateRequired = "Nombre y carátula son obligatorios"
	msgPersonFailed   = "No se pudo crear la persona"
	msgCaseFailed     = "No se pudo crear el expediente"
	msgNotFound       = "Expediente no encontrado"
	msgListFailed     = "No se pudieron cargar los expedientes"
	msgEventRequired  = "Tipo y detalle son obligatorios"
	msgEventFailed    = "No se pudo guardar el movimiento"
	msgUpdateFailed   = "No se pudo actualizar el expediente"
	msgArchiveFailed  = "No se pudo archivar"
	msgInvalidStatus  = "Estado inválido."
)

type CreateInput struct {
	PersonName     string
	PersonDNI      string
	PersonPhone    string
	PersonEmail    string
	Title          string
	Status         string
	NextAction     string
	NextActionDate string
}

type EventInput struct {
	EventType string
	Detail    string
	// CreatedAt is a datetime-local value, YYYY-MM-DDTHH:MM, in the office time zone.
	CreatedAt string
}

type UpdateInput struct {
	Status         string
	Notes          string
	NextAction     string
	NextActionDate string
}

// Detail is a case with its person and events, newest event first. Person is nil when the
// person record is gone.
type Detail struct {
	Case   *model.CaseFile    `json:"caseFile"`
	Person *model.Person      `json:"person"`
	Events []*model.CaseEvent `json:"events"`
}

type Service struct {
	people repository.PersonRepository
	cases  repository.CaseRepository
	events repository.CaseEventRepository
	emit   event.Emitter
	loc    *time.Location
	now    func() time.Time
}

func NewService(repos repository.Repositories, emit event.Emitter, loc *time.Location) *Service {
	if emit == nil {
		emit = event.Nop{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		people: repos.People,
		cases:  repos.Cases,
		events: repos.CaseEvents,
		emit:   emit,
		loc:    loc,
		now:    time.Now,
	}
}

// List filters by status unless status is empty or AllStatuses.
func (s *Service) List(ctx context.Context, status string) ([]*model.CaseFile, error) {
	filter := repository.CaseFilter{}
	if status = strings.TrimSpace(status); status != "" && status != AllStatuses {
		filter.Status = status
	}
	cases, err := s.cases.List(ctx, filter)
	if err != nil {
		return nil, errors.Fallback(err, msgListFailed)
	}
	if cases == nil {
		cases = []*model.CaseFile{}
	}
	return cases, nil
}

// Create opens a case. The person is reused when one with the same DNI exists.
func (s *Service) Create(ctx context.Context, ownerID string, in CreateInput) (*model.CaseFile, error) {
	if ownerID == "" {
		return nil, errors.Unauthorized(msgSessionInvalid)
	}
	name := strings.TrimSpace(in.PersonName)
	title := strings.TrimSpace(in.Title)
	dni := strings.TrimSpace(in.PersonDNI)
	if name == "" || title == "" {
		return nil, errors.Validation(msgCreateRequired)
	}
	status, err := parseStatus(in.Status)
	if err != nil {
		return nil, err
	}

	personID, err := s.findOrCreatePerson(ctx, ownerID, name, dni, in.PersonPhone, in.PersonEmail)
	if err != nil {
		return nil, err
	}

	c := &model.CaseFile{
		PersonID:       personID,
		PersonName:     &name,
		PersonDNI:      model.NullString(dni),
		Title:          title,
		Status:         status,
		NextAction:     model.NullString(in.NextAction),
		NextActionDate: model.NullString(in.NextActionDate),
		OwnerID:        &ownerID,
	}
	if err := s.cases.Create(ctx, c); err != nil {
		return nil, errors.Fallback(err, msgCaseFailed)
	}
	s.emit.Emit(ctx, messaging.CaseCreated, c.ID, ownerID, map[string]string{"status": string(c.Status)})
	return c, nil
}

func (s *Service) findOrCreatePerson(ctx context.Context, ownerID, name, dni, phone, email string) (string, error) {
	if dni != "" {
		existing, err := s.people.FindByDNI(ctx, dni)
		if err == nil {
			return existing.ID, nil
		}
		if !errors.IsKind(err, errors.KindNotFound) {
			return "", errors.Fallback(err, msgPersonFailed)
		}
	}
	p := &model.Person{
		OwnerID:  &ownerID,
		FullName: name,
		DNI:      model.NullString(dni),
		Phone:    model.NullString(model.NormalizePhone(phone)),
		Email:    model.NullString(email),
	}
	if err := s.people.Create(ctx, p); err != nil {
		return "", errors.Fallback(err, msgPersonFailed)
	}
	return p.ID, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Detail, error) {
	c, err := s.cases.Get(ctx, id)
	if err != nil {
		return nil, errors.Fallback(err, msgNotFound)
	}
	d := &Detail{Case: c}

	person, err := s.people.Get(ctx, c.PersonID)
	switch {
	case err == nil:
		d.Person = person
	case !errors.IsKind(err, errors.KindNotFound):
		return nil, errors.Fallback(err, msgNotFound)
	}

	d.Events, err = s.events.ListByCase(ctx, id)
	if err != nil {
		return nil, errors.Fallback(err, msgNotFound)
	}
	if d.Events == nil {
		d.Events = []*model.CaseEvent{}
	}
	return d, nil
}

// AddEvent logs an event. The datetime is checked before the other fields so the user sees the
// precise date problem first.
func (s *Service) AddEvent(ctx context.Context, ownerID, caseID string, in EventInput) (*model.CaseEvent, error) {
	if ownerID == "" {
		return nil, errors.Unauthorized(msgSessionInvalid)
	}
	createdAt, err := model.ParseEventTime(in.CreatedAt, s.loc)
	if err != nil {
		return nil, err
	}
	eventType := model.CaseEventType(strings.TrimSpace(in.EventType))
	detail := strings.TrimSpace(in.Detail)
	if eventType == "" || detail == "" {
		return nil, errors.Validation(msgEventRequired)
	}
	if !eventType.Valid() {
		return nil, errors.Validation("Tipo de movimiento inválido.").WithField("event_type", "oneof")
	}

	ev := &model.CaseEvent{
		CaseID:    caseID,
		OwnerID:   &ownerID,
		CreatedAt: createdAt,
		EventType: eventType,
		Detail:    detail,
	}
	if err := s.events.Create(ctx, ev); err != nil {
		return nil, errors.Fallback(err, msgEventFailed)
	}
	s.emit.Emit(ctx, messaging.CaseEventCreated, ev.ID, ownerID, map[string]string{
		"case_id":    caseID,
		"event_type": string(eventType),
	})
	return ev, nil
}

func (s *Service) Update(ctx context.Context, actorID, id string, in UpdateInput) error {
	status, err := parseStatus(in.Status)
	if err != nil {
		return err
	}
	c, err := s.cases.Get(ctx, id)
	if err != nil {
		return errors.Fallback(err, msgUpdateFailed)
	}
	c.Status = status
	c.Notes = model.NullString(in.Notes)
	c.NextAction = model.NullString(in.NextAction)
	c.NextActionDate = model.NullString(in.NextActionDate)
	if err := s.cases.Update(ctx, c); err != nil {
		return errors.Fallback(err, msgUpdateFailed)
	}
	s.emit.Emit(ctx, messaging.CaseUpdated, id, actorID, map[string]string{"status": string(status)})
	return nil
}

// Archive closes the case.
func (s *Service) Archive(ctx context.Context, actorID, id string) error {
	if err := s.cases.Archive(ctx, id, s.now()); err != nil {
		return errors.Fallback(err, msgArchiveFailed)
	}
	s.emit.Emit(ctx, messaging.CaseArchived, id, actorID, nil)
	return nil
}

// parseStatus defaults a blank status to Nuevo.
func parseStatus(raw string) (model.CaseStatus, error) {
	status := model.CaseStatus(strings.TrimSpace(raw))
	if status == "" {
		return model.CaseNuevo, nil
	}
	if !status.Valid() {
		return "", errors.Validation(msgInvalidStatus).WithField("status", "oneof")
	}
	return status, nil
}
