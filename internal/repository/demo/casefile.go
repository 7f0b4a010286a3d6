package demo

import (
	"context"
	"time"

	"github.com/jwalitptl/consultorio/internal/demostore"
	"github.com/jwalitptl/consultorio/internal/model"
	"github.com/jwalitptl/consultorio/internal/repository"
)

const (
	personNotFound = "Persona no encontrada"
	caseNotFound   = "Expediente no encontrado"
)

type personRepository struct{ base }

func (r *personRepository) Get(_ context.Context, id string) (*model.Person, error) {
	db, err := r.store.Read()
	if err != nil {
		return nil, err
	}
	for i := range db.People {
		if db.People[i].ID == id {
			return &db.People[i], nil
		}
	}
	return nil, notFound(personNotFound)
}

func (r *personRepository) FindByDNI(_ context.Context, dni string) (*model.Person, error) {
	db, err := r.store.Read()
	if err != nil {
		return nil, err
	}
	for i := range db.People {
		if model.Deref(db.People[i].DNI) == dni {
			return &db.People[i], nil
		}
	}
	return nil, notFound(personNotFound)
}

func (r *personRepository) Create(_ context.Context, p *model.Person) error {
	return r.store.Mutate(func(db *demostore.Data) error {
		if p.ID == "" {
			p.ID = r.store.NewID("per")
		}
		now := r.timestamp()
		p.CreatedAt = now
		p.UpdatedAt = now
		db.People = append(db.People, *p)
		return nil
	})
}

type caseRepository struct{ base }

func (r *caseRepository) List(_ context.Context, filter repository.CaseFilter) ([]*model.CaseFile, error) {
	db, err := r.store.Read()
	if err != nil {
		return nil, err
	}
	out := make([]*model.CaseFile, 0, len(db.Cases))
	for i := range db.Cases {
		c := &db.Cases[i]
		if filter.Status != "" && string(c.Status) != filter.Status {
			continue
		}
		out = append(out, c)
	}
	newestFirst(out, func(c *model.CaseFile) time.Time { return c.UpdatedAt })
	return truncate(out, filter.Limit), nil
}

func (r *caseRepository) Get(_ context.Context, id string) (*model.CaseFile, error) {
	db, err := r.store.Read()
	if err != nil {
		return nil, err
	}
	if i := indexCase(db, id); i >= 0 {
		return &db.Cases[i], nil
	}
	return nil, notFound(caseNotFound)
}

func (r *caseRepository) Create(_ context.Context, c *model.CaseFile) error {
	return r.store.Mutate(func(db *demostore.Data) error {
		if c.ID == "" {
			c.ID = r.store.NewID("c")
		}
		if c.Status == "" {
			c.Status = model.CaseNuevo
		}
		now := r.timestamp()
		c.CreatedAt = now
		c.UpdatedAt = now
		db.Cases = append(db.Cases, *c)
		return nil
	})
}

func (r *caseRepository) Update(_ context.Context, c *model.CaseFile) error {
	return r.store.Mutate(func(db *demostore.Data) error {
		i := indexCase(db, c.ID)
		if i < 0 {
			return notFound(caseNotFound)
		}
		c.UpdatedAt = r.timestamp()
		cur := &db.Cases[i]
		cur.Status = c.Status
		cur.Notes = c.Notes
		cur.NextAction = c.NextAction
		cur.NextActionDate = c.NextActionDate
		cur.UpdatedAt = c.UpdatedAt
		return nil
	})
}

func (r *caseRepository) Archive(_ context.Context, id string, at time.Time) error {
	return r.store.Mutate(func(db *demostore.Data) error {
		i := indexCase(db, id)
		if i < 0 {
			return notFound(caseNotFound)
		}
		at = at.UTC()
		db.Cases[i].Status = model.CaseCerrado
		db.Cases[i].ArchivedAt = &at
		db.Cases[i].UpdatedAt = at
		return nil
	})
}

func indexCase(db *demostore.Data, id string) int {
	for i := range db.Cases {
		if db.Cases[i].ID == id {
			return i
		}
	}
	return -1
}

type caseEventRepository struct{ base }

func (r *caseEventRepository) ListByCase(_ context.Context, caseID string) ([]*model.CaseEvent, error) {
	db, err := r.store.Read()
	if err != nil {
		return nil, err
	}
	var out []*model.CaseEvent
	for i := range db.CaseEvents {
		if db.CaseEvents[i].CaseID == caseID {
			out = append(out, &db.CaseEvents[i])
		}
	}
	newestFirst(out, func(e *model.CaseEvent) time.Time { return e.CreatedAt })
	return out, nil
}

func (r *caseEventRepository) Create(_ context.Context, ev *model.CaseEvent) error {
	return r.store.Mutate(func(db *demostore.Data) error {
		i := indexCase(db, ev.CaseID)
		if i < 0 {
			return notFound(caseNotFound)
		}
		if ev.ID == "" {
			ev.ID = r.store.NewID("ce")
		}
		if ev.CreatedAt.IsZero() {
			ev.CreatedAt = r.timestamp()
		}
		db.CaseEvents = append(db.CaseEvents, *ev)
		db.Cases[i].UpdatedAt = r.timestamp()
		return nil
	})
}
