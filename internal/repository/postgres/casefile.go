package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/consultorio/internal/model"
	"github.com/jwalitptl/consultorio/internal/repository"
)

const caseNotFound = "Expediente no encontrado"

const caseSelect = `
	SELECT c.id, c.person_id, p.full_name AS person_name, p.dni AS person_dni, c.title, c.status,
		c.notes, c.next_action, c.next_action_date::text AS next_action_date, c.owner_id,
		c.archived_at, c.created_at, c.updated_at
	FROM cases c
	LEFT JOIN people p ON p.id = c.person_id`

func (r *caseRepository) List(ctx context.Context, filter repository.CaseFilter) ([]*model.CaseFile, error) {
	var (
		cases []*model.CaseFile
		err   error
	)
	if filter.Status != "" {
		err = r.db.SelectContext(ctx, &cases,
			caseSelect+` WHERE c.status = $1 ORDER BY c.updated_at DESC LIMIT $2`,
			filter.Status, repository.Limit(filter.Limit))
	} else {
		err = r.db.SelectContext(ctx, &cases,
			caseSelect+` ORDER BY c.updated_at DESC LIMIT $1`, repository.Limit(filter.Limit))
	}
	if err != nil {
		return nil, r.fail("cases.list", caseNotFound, err)
	}
	return cases, nil
}

func (r *caseRepository) Get(ctx context.Context, id string) (*model.CaseFile, error) {
	var c model.CaseFile
	if err := r.db.GetContext(ctx, &c, caseSelect+` WHERE c.id = $1`, id); err != nil {
		return nil, r.fail("cases.get", caseNotFound, err)
	}
	return &c, nil
}

func (r *caseRepository) Create(ctx context.Context, c *model.CaseFile) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = model.CaseNuevo
	}
	now := r.timestamp()
	c.CreatedAt = now
	c.UpdatedAt = now
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cases (
			id, person_id, title, status, notes, next_action, next_action_date, owner_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.ID,
		c.PersonID,
		c.Title,
		c.Status,
		c.Notes,
		c.NextAction,
		c.NextActionDate,
		c.OwnerID,
		c.CreatedAt,
		c.UpdatedAt,
	)
	return r.fail("cases.create", caseNotFound, err)
}

func (r *caseRepository) Update(ctx context.Context, c *model.CaseFile) error {
	c.UpdatedAt = r.timestamp()
	res, err := r.db.ExecContext(ctx, `
		UPDATE cases SET
			status = $1, notes = $2, next_action = $3, next_action_date = $4, updated_at = $5
		WHERE id = $6`,
		c.Status, c.Notes, c.NextAction, c.NextActionDate, c.UpdatedAt, c.ID)
	if err != nil {
		return r.fail("cases.update", caseNotFound, err)
	}
	return r.fail("cases.update", caseNotFound, expectOne(res, caseNotFound))
}

// Archive closes the case.
func (r *caseRepository) Archive(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE cases SET status = $1, archived_at = $2, updated_at = $2 WHERE id = $3`,
		model.CaseCerrado, at.UTC(), id)
	if err != nil {
		return r.fail("cases.archive", caseNotFound, err)
	}
	return r.fail("cases.archive", caseNotFound, expectOne(res, caseNotFound))
}
