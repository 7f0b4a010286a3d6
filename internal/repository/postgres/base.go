package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/consultorio/pkg/errors"
)

const (
	msgDuplicate     = "Ya existe un registro con esos datos."
	msgNotNull       = "Falta completar un campo obligatorio."
	msgMalformed     = "Alguno de los datos tiene un formato inválido."
	msgForbidden     = "No tenés permisos para realizar esta acción."
	msgBackendFailed = "No se pudo completar la operación."
)

// BaseRepository provides common functionality for all repositories
type BaseRepository struct {
	db     *sqlx.DB
	module string
	logger zerolog.Logger
	errs   *prometheus.CounterVec
	now    func() time.Time
}

// WithTx executes a function within a transaction
func (r *BaseRepository) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

func (r *BaseRepository) timestamp() time.Time {
	return r.now().UTC()
}

// fail turns a driver error into an AppError, logging and counting it. notFound is the message
// used when the query matched no row.
func (r *BaseRepository) fail(op, notFound string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.As(err); ok {
		return err
	}
	if stderrors.Is(err, sql.ErrNoRows) {
		return errors.NotFound(notFound, err)
	}

	code := "unknown"
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		code = string(pqErr.Code)
	}
	r.errs.WithLabelValues(r.module, code).Inc()
	r.logger.Error().
		Err(err).
		Str("module", r.module).
		Str("op", op).
		Str("sqlstate", code).
		Msg("backend error")

	return translate(err)
}

// translate maps SQLSTATE codes to the error kinds the handlers understand.
func translate(err error) *errors.AppError {
	var pqErr *pq.Error
	if !stderrors.As(err, &pqErr) {
		return errors.Internal(msgBackendFailed, err)
	}
	switch pqErr.Code {
	case "23505":
		return errors.Conflict(msgDuplicate, err)
	case "23502":
		appErr := errors.Validation(msgNotNull)
		appErr.Err = err
		if pqErr.Column != "" {
			appErr.WithField(pqErr.Column, "required")
		}
		return appErr
	case "22P02", "22007", "22008", "22003":
		appErr := errors.Validation(msgMalformed)
		appErr.Err = err
		return appErr
	case "42501":
		return errors.Forbidden(msgForbidden, err)
	default:
		return errors.Internal(msgBackendFailed, err)
	}
}

// expectOne reports NotFound when an UPDATE or DELETE touched nothing.
func expectOne(res sql.Result, notFound string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.NotFound(notFound, nil)
	}
	return nil
}
