// Package demo implements the repository interfaces on top of the demo store.
package demo

import (
	"sort"
	"time"

	"github.com/jwalitptl/consultorio/internal/demostore"
	"github.com/jwalitptl/consultorio/internal/repository"
	"github.com/jwalitptl/consultorio/pkg/errors"
)

// MsgUnavailable is returned by operations that need the hosted backend.
const MsgUnavailable = "No disponible en modo demo."

type base struct {
	store *demostore.Store
	now   func() time.Time
}

func (b base) timestamp() time.Time {
	return b.now().UTC()
}

// New returns repositories reading and writing st. The allow list and the drive connection exist
// only on the hosted backend, so those repositories answer Unavailable.
func New(st *demostore.Store) repository.Repositories {
	b := base{store: st, now: time.Now}
	return repository.Repositories{
		Patients:         &patientRepository{b},
		Entries:          &entryRepository{b},
		Radiographs:      &radiographRepository{b},
		People:           &personRepository{b},
		Cases:            &caseRepository{b},
		CaseEvents:       &caseEventRepository{b},
		AllowedEmails:    unavailableAllowList{},
		DriveConnections: unavailableDrive{},
	}
}

func notFound(msg string) error {
	return errors.NotFound(msg, nil)
}

// newestFirst sorts items by at, latest first. Ties keep their stored order.
func newestFirst[T any](items []T, at func(T) time.Time) {
	sort.SliceStable(items, func(i, j int) bool {
		return at(items[i]).After(at(items[j]))
	})
}

func truncate[T any](items []T, limit int) []T {
	limit = repository.Limit(limit)
	if len(items) > limit {
		return items[:limit]
	}
	return items
}
