package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/consultorio/internal/model"
)

func (r *caseEventRepository) ListByCase(ctx context.Context, caseID string) ([]*model.CaseEvent, error) {
	var events []*model.CaseEvent
	err := r.db.SelectContext(ctx, &events, `
		SELECT id, case_id, owner_id, created_at, event_type, detail
		FROM case_events WHERE case_id = $1 ORDER BY created_at DESC`, caseID)
	if err != nil {
		return nil, r.fail("case_events.list", caseNotFound, err)
	}
	return events, nil
}

// Create inserts the event and touches the case so it sorts first.
func (r *caseEventRepository) Create(ctx context.Context, ev *model.CaseEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = r.timestamp()
	}
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO case_events (id, case_id, owner_id, created_at, event_type, detail)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			ev.ID, ev.CaseID, ev.OwnerID, ev.CreatedAt, ev.EventType, ev.Detail)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE cases SET updated_at = $1 WHERE id = $2`, r.timestamp(), ev.CaseID)
		return err
	})
	return r.fail("case_events.create", caseNotFound, err)
}
