package postgres

import (
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/consultorio/internal/repository"
	"github.com/jwalitptl/consultorio/pkg/metrics"
)

type patientRepository struct{ BaseRepository }

type entryRepository struct{ BaseRepository }

type radiographRepository struct{ BaseRepository }

type personRepository struct{ BaseRepository }

type caseRepository struct{ BaseRepository }

type caseEventRepository struct{ BaseRepository }

type allowedEmailRepository struct{ BaseRepository }

type driveConnectionRepository struct{ BaseRepository }

// New returns the repositories of one module backed by db.
func New(db *sqlx.DB, module string, m *metrics.Metrics, logger zerolog.Logger) repository.Repositories {
	if m == nil {
		m = metrics.NewNop()
	}
	base := BaseRepository{
		db:     db,
		module: module,
		logger: logger.With().Str("component", "postgres").Logger(),
		errs:   m.BackendErrors,
		now:    time.Now,
	}
	return repository.Repositories{
		Patients:         &patientRepository{base},
		Entries:          &entryRepository{base},
		Radiographs:      &radiographRepository{base},
		People:           &personRepository{base},
		Cases:            &caseRepository{base},
		CaseEvents:       &caseEventRepository{base},
		AllowedEmails:    &allowedEmailRepository{base},
		DriveConnections: &driveConnectionRepository{base},
	}
}
