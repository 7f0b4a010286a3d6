package model

import "time"

type Patient struct {
	ID            string       `db:"id" json:"id"`
	OwnerID       *string      `db:"owner_id" json:"owner_id,omitempty"`
	FullName      string       `db:"full_name" json:"full_name"`
	DNI           *string      `db:"dni" json:"dni"`
	Phone         *string      `db:"phone" json:"phone"`
	Email         *string      `db:"email" json:"email"`
	BirthDate     *string      `db:"birth_date" json:"birth_date"`
	Address       *string      `db:"address" json:"address"`
	Allergies     *string      `db:"allergies" json:"allergies"`
	Medication    *string      `db:"medication" json:"medication"`
	Background    *string      `db:"background" json:"background"`
	Insurance     *string      `db:"insurance" json:"insurance"`
	InsurancePlan *string      `db:"insurance_plan" json:"insurance_plan"`
	CustomFields  CustomFields `db:"custom_fields" json:"custom_fields"`
	DriveFolderID *string      `db:"drive_folder_id" json:"drive_folder_id"`
	ArchivedAt    *time.Time   `db:"archived_at" json:"archived_at"`
	LastEntryAt   *time.Time   `db:"last_entry_at" json:"last_entry_at"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at" json:"updated_at"`
}

func (p *Patient) Archived() bool { return p.ArchivedAt != nil }

// PatientUpdate carries the contact and clinical fields editable from the patient file. Name and
// DNI are fixed at creation.
type PatientUpdate struct {
	Phone         string
	Email         string
	BirthDate     string
	Address       string
	Allergies     string
	Medication    string
	Background    string
	Insurance     string
	InsurancePlan string
}

// Apply copies u onto p. Blank values clear the field and the phone is stored digits-only.
func (u PatientUpdate) Apply(p *Patient) {
	p.Phone = NullString(NormalizePhone(u.Phone))
	p.Email = NullString(u.Email)
	p.BirthDate = NullString(u.BirthDate)
	p.Address = NullString(u.Address)
	p.Allergies = NullString(u.Allergies)
	p.Medication = NullString(u.Medication)
	p.Background = NullString(u.Background)
	p.Insurance = NullString(u.Insurance)
	p.InsurancePlan = NullString(u.InsurancePlan)
}

type EntryType string

const (
	EntryConsulta      EntryType = "Consulta"
	EntryDiagnostico   EntryType = "Diagnóstico"
	EntryTratamiento   EntryType = "Tratamiento"
	EntryProcedimiento EntryType = "Procedimiento"
	EntryEvolucion     EntryType = "Evolución"
	EntryIndicaciones  EntryType = "Indicaciones"
	EntryNotaInterna   EntryType = "Nota interna"
)

// EntryTypes lists the entry types in display order.
var EntryTypes = []EntryType{
	EntryConsulta, EntryDiagnostico, EntryTratamiento, EntryProcedimiento,
	EntryEvolucion, EntryIndicaciones, EntryNotaInterna,
}

func (t EntryType) Valid() bool {
	for _, v := range EntryTypes {
		if v == t {
			return true
		}
	}
	return false
}

type ClinicalEntry struct {
	ID           string    `db:"id" json:"id"`
	PatientID    string    `db:"patient_id" json:"patient_id"`
	OwnerID      *string   `db:"owner_id" json:"owner_id,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	EntryType    EntryType `db:"entry_type" json:"entry_type"`
	Description  string    `db:"description" json:"description"`
	Teeth        *string   `db:"teeth" json:"teeth"`
	Amount       *float64  `db:"amount" json:"amount"`
	InternalNote *string   `db:"internal_note" json:"internal_note"`
}
