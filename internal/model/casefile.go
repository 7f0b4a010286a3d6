package model

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jwalitptl/consultorio/pkg/errors"
)

type Person struct {
	ID         string     `db:"id" json:"id"`
	OwnerID    *string    `db:"owner_id" json:"owner_id,omitempty"`
	FullName   string     `db:"full_name" json:"full_name"`
	DNI        *string    `db:"dni" json:"dni"`
	Phone      *string    `db:"phone" json:"phone"`
	Email      *string    `db:"email" json:"email"`
	ArchivedAt *time.Time `db:"archived_at" json:"archived_at"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

type CaseStatus string

const (
	CaseNuevo         CaseStatus = "Nuevo"
	CaseEnCurso       CaseStatus = "En curso"
	CasePendienteDocs CaseStatus = "Pendiente docs"
	CasePresentado    CaseStatus = "Presentado"
	CaseResuelto      CaseStatus = "Resuelto"
	CaseCerrado       CaseStatus = "Cerrado"
)

var CaseStatuses = []CaseStatus{
	CaseNuevo, CaseEnCurso, CasePendienteDocs, CasePresentado, CaseResuelto, CaseCerrado,
}

func (s CaseStatus) Valid() bool {
	for _, v := range CaseStatuses {
		if v == s {
			return true
		}
	}
	return false
}

type CaseFile struct {
	ID             string     `db:"id" json:"id"`
	PersonID       string     `db:"person_id" json:"person_id"`
	PersonName     *string    `db:"person_name" json:"person_name"`
	PersonDNI      *string    `db:"person_dni" json:"person_dni"`
	Title          string     `db:"title" json:"title"`
	Status         CaseStatus `db:"status" json:"status"`
	Notes          *string    `db:"notes" json:"notes"`
	NextAction     *string    `db:"next_action" json:"next_action"`
	NextActionDate *string    `db:"next_action_date" json:"next_action_date"`
	OwnerID        *string    `db:"owner_id" json:"owner_id,omitempty"`
	ArchivedAt     *time.Time `db:"archived_at" json:"archived_at"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

type CaseEventType string

const (
	EventLlamada       CaseEventType = "Llamada"
	EventPresentacion  CaseEventType = "Presentación"
	EventRechazo       CaseEventType = "Rechazo"
	EventRequerimiento CaseEventType = "Requerimiento"
	EventEnvioDocs     CaseEventType = "Envío docs"
	EventVisita        CaseEventType = "Visita"
	EventNota          CaseEventType = "Nota"
)

var CaseEventTypes = []CaseEventType{
	EventLlamada, EventPresentacion, EventRechazo, EventRequerimiento,
	EventEnvioDocs, EventVisita, EventNota,
}

func (t CaseEventType) Valid() bool {
	for _, v := range CaseEventTypes {
		if v == t {
			return true
		}
	}
	return false
}

type CaseEvent struct {
	ID        string        `db:"id" json:"id"`
	CaseID    string        `db:"case_id" json:"case_id"`
	OwnerID   *string       `db:"owner_id" json:"owner_id,omitempty"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	EventType CaseEventType `db:"event_type" json:"event_type"`
	Detail    string        `db:"detail" json:"detail"`
}

const (
	minEventYear = 2000
	maxEventYear = 2045
)

var eventTimeLayout = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})T(\d{2}):(\d{2})$`)

// ParseEventTime reads a datetime-local value (YYYY-MM-DDTHH:MM) in loc. Each way the value can
// be wrong has its own message so the form can say exactly what to fix.
func ParseEventTime(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.Validation("Completá la fecha y hora.").WithField("created_at", "required")
	}
	m := eventTimeLayout.FindStringSubmatch(raw)
	if m == nil {
		return time.Time{}, errors.Validation("Revisá la fecha y hora. Formato esperado: Año/Mes/Día y Hora.").
			WithField("created_at", "format")
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	hour, _ := strconv.Atoi(m[4])
	minute, _ := strconv.Atoi(m[5])

	if year < minEventYear || year > maxEventYear {
		return time.Time{}, errors.Validation(
			fmt.Sprintf("Revisá el año: debe estar entre %d y %d.", minEventYear, maxEventYear)).
			WithField("created_at", "year")
	}
	if month < 1 || month > 12 {
		return time.Time{}, errors.Validation("Revisá el mes: debe ir del 1 al 12.").WithField("created_at", "month")
	}
	if maxDay := DaysIn(year, time.Month(month)); day < 1 || day > maxDay {
		return time.Time{}, errors.Validation(
			fmt.Sprintf("Revisá el día: para ese mes debe ir del 1 al %d.", maxDay)).
			WithField("created_at", "day")
	}
	if hour > 23 || minute > 59 {
		return time.Time{}, errors.Validation("Revisá la hora: debe estar entre 00:00 y 23:59.").
			WithField("created_at", "time")
	}

	if loc == nil {
		loc = time.Local
	}
	return time.Date(year, time.Month(month), day, hour, minute, 0, 0, loc).UTC(), nil
}

// DaysIn returns the number of days in the month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
