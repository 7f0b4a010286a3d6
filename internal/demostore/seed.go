package demostore

import (
	"time"

	"github.com/jwalitptl/consultorio/internal/model"
)

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func tsp(s string) *time.Time {
	t := ts(s)
	return &t
}

func str(s string) *string { return &s }

func num(f float64) *float64 { return &f }

// Seed returns a fresh copy of the fixtures a new demo store starts with.
func Seed() *Data {
	return &Data{
		Patients: []model.Patient{
			{
				ID:          "p1",
				FullName:    "Juan Pérez",
				DNI:         str("30123456"),
				Phone:       str("1122334455"),
				Email:       str("juan@example.com"),
				BirthDate:   str("1985-03-12"),
				Address:     str("Av. Siempre Viva 123"),
				Allergies:   str("Penicilina"),
				Medication:  str("Ibuprofeno ocasional"),
				Background:  str("Hipertensión controlada"),
				Insurance:   str("OSDE 310"),
				LastEntryAt: tsp("2025-02-12T09:00:00Z"),
				CreatedAt:   ts("2024-12-01T12:00:00Z"),
				UpdatedAt:   ts("2025-02-10T10:00:00Z"),
			},
			{
				ID:          "p2",
				FullName:    "María Gómez",
				DNI:         str("28999111"),
				Phone:       str("1133445566"),
				Email:       str("maria@example.com"),
				Address:     str("Calle Falsa 456"),
				Insurance:   str("Galeno"),
				LastEntryAt: tsp("2025-01-20T14:00:00Z"),
				CreatedAt:   ts("2024-11-15T10:00:00Z"),
				UpdatedAt:   ts("2025-01-20T14:00:00Z"),
			},
		},
		ClinicalEntries: []model.ClinicalEntry{
			{
				ID:           "e1",
				PatientID:    "p1",
				EntryType:    model.EntryConsulta,
				Description:  "Dolor en molar inferior derecho. Se indica Rx.",
				Teeth:        str("46"),
				Amount:       num(0),
				InternalNote: str("Paciente ansioso, explicar pasos"),
				CreatedAt:    ts("2025-02-10T10:00:00Z"),
			},
			{
				ID:          "e2",
				PatientID:   "p1",
				EntryType:   model.EntryTratamiento,
				Description: "Endodoncia en 46. Evoluciona bien.",
				Teeth:       str("46"),
				Amount:      num(15000),
				CreatedAt:   ts("2025-02-12T09:00:00Z"),
			},
			{
				ID:          "e3",
				PatientID:   "p2",
				EntryType:   model.EntryDiagnostico,
				Description: "Caries superficial en 14. Se programa resina.",
				Teeth:       str("14"),
				Amount:      num(0),
				CreatedAt:   ts("2025-01-20T14:00:00Z"),
			},
		},
		Radiographs: []model.PatientRadiograph{},
		People: []model.Person{
			{
				ID:        "per1",
				FullName:  "Carlos López",
				DNI:       str("27111222"),
				Phone:     str("1144556677"),
				Email:     str("carlos@example.com"),
				CreatedAt: ts("2024-12-10T12:00:00Z"),
				UpdatedAt: ts("2025-02-15T11:00:00Z"),
			},
			{
				ID:        "per2",
				FullName:  "Ana Ruiz",
				DNI:       str("30555111"),
				Phone:     str("1144778899"),
				Email:     str("ana@example.com"),
				CreatedAt: ts("2025-01-05T10:00:00Z"),
				UpdatedAt: ts("2025-02-01T09:00:00Z"),
			},
		},
		Cases: []model.CaseFile{
			{
				ID:             "c1",
				PersonID:       "per1",
				PersonName:     str("Carlos López"),
				PersonDNI:      str("27111222"),
				Title:          "Jubilación Ordinaria",
				Status:         model.CaseEnCurso,
				Notes:          str("Falta partida de nacimiento"),
				NextAction:     str("Pedir partida online"),
				NextActionDate: str("2025-03-01"),
				CreatedAt:      ts("2024-12-10T12:00:00Z"),
				UpdatedAt:      ts("2025-02-15T11:00:00Z"),
			},
			{
				ID:             "c2",
				PersonID:       "per2",
				PersonName:     str("Ana Ruiz"),
				PersonDNI:      str("30555111"),
				Title:          "Asignación Universal",
				Status:         model.CasePendienteDocs,
				NextAction:     str("Adjuntar DNI hijo"),
				NextActionDate: str("2025-02-28"),
				CreatedAt:      ts("2025-01-05T10:00:00Z"),
				UpdatedAt:      ts("2025-02-01T09:00:00Z"),
			},
		},
		CaseEvents: []model.CaseEvent{
			{
				ID:        "ce1",
				CaseID:    "c1",
				EventType: model.EventLlamada,
				Detail:    "Se llamó al cliente para pedir documentación.",
				CreatedAt: ts("2025-02-10T15:00:00Z"),
			},
			{
				ID:        "ce2",
				CaseID:    "c1",
				EventType: model.EventPresentacion,
				Detail:    "Se presentó formulario en ANSES.",
				CreatedAt: ts("2025-02-15T10:00:00Z"),
			},
			{
				ID:        "ce3",
				CaseID:    "c2",
				EventType: model.EventRequerimiento,
				Detail:    "ANSES solicita DNI actualizado del hijo.",
				CreatedAt: ts("2025-02-01T09:00:00Z"),
			},
		},
	}
}
