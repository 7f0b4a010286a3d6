package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/consultorio/internal/model"
)

const allowedEmailNotFound = "Email inválido."

func (r *allowedEmailRepository) List(ctx context.Context) ([]*model.AllowedEmail, error) {
	var out []*model.AllowedEmail
	err := r.db.SelectContext(ctx, &out,
		`SELECT id, email, enabled, created_at FROM allowed_emails ORDER BY email ASC`)
	if err != nil {
		return nil, r.fail("allowed_emails.list", allowedEmailNotFound, err)
	}
	return out, nil
}

func (r *allowedEmailRepository) Create(ctx context.Context, e *model.AllowedEmail) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = r.timestamp()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO allowed_emails (id, email, enabled, created_at) VALUES ($1, $2, $3, $4)`,
		e.ID, e.Email, e.Enabled, e.CreatedAt)
	return r.fail("allowed_emails.create", allowedEmailNotFound, err)
}

func (r *allowedEmailRepository) SetEnabled(ctx context.Context, id string, enabled bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE allowed_emails SET enabled = $1 WHERE id = $2`, enabled, id)
	if err != nil {
		return r.fail("allowed_emails.set_enabled", allowedEmailNotFound, err)
	}
	return r.fail("allowed_emails.set_enabled", allowedEmailNotFound, expectOne(res, allowedEmailNotFound))
}

func (r *allowedEmailRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM allowed_emails WHERE id = $1`, id)
	if err != nil {
		return r.fail("allowed_emails.delete", allowedEmailNotFound, err)
	}
	return r.fail("allowed_emails.delete", allowedEmailNotFound, expectOne(res, allowedEmailNotFound))
}

// IsEnabled asks the database function that backs the allow list. It is callable before sign in.
func (r *allowedEmailRepository) IsEnabled(ctx context.Context, email string) (bool, error) {
	var enabled bool
	if err := r.db.GetContext(ctx, &enabled, `SELECT is_email_enabled($1)`, email); err != nil {
		return false, r.fail("allowed_emails.is_enabled", allowedEmailNotFound, err)
	}
	return enabled, nil
}
