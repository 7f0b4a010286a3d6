package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/consultorio/internal/model"
)

const personNotFound = "Persona no encontrada"

const personColumns = `id, owner_id, full_name, dni, phone, email, archived_at, created_at, updated_at`

func (r *personRepository) Get(ctx context.Context, id string) (*model.Person, error) {
	var p model.Person
	if err := r.db.GetContext(ctx, &p, `SELECT `+personColumns+` FROM people WHERE id = $1`, id); err != nil {
		return nil, r.fail("people.get", personNotFound, err)
	}
	return &p, nil
}

func (r *personRepository) FindByDNI(ctx context.Context, dni string) (*model.Person, error) {
	var p model.Person
	err := r.db.GetContext(ctx, &p, `SELECT `+personColumns+` FROM people WHERE dni = $1 LIMIT 1`, dni)
	if err != nil {
		return nil, r.fail("people.find_by_dni", personNotFound, err)
	}
	return &p, nil
}

func (r *personRepository) Create(ctx context.Context, p *model.Person) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := r.timestamp()
	p.CreatedAt = now
	p.UpdatedAt = now
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO people (id, owner_id, full_name, dni, phone, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.OwnerID, p.FullName, p.DNI, p.Phone, p.Email, p.CreatedAt, p.UpdatedAt)
	return r.fail("people.create", personNotFound, err)
}
