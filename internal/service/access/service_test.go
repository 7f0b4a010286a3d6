package access

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/consultorio/internal/model"
	apperrors "github.com/jwalitptl/consultorio/pkg/errors"
)

type memoryRepo struct {
	emails  []*model.AllowedEmail
	lookups int
	err     error
}

func (r *memoryRepo) List(context.Context) ([]*model.AllowedEmail, error) {
	return r.emails, r.err
}

func (r *memoryRepo) Create(_ context.Context, e *model.AllowedEmail) error {
	for _, existing := range r.emails {
		if existing.Email == e.Email {
			return apperrors.Conflict("Ya existe un registro con esos datos.", &pq.Error{Code: "23505"})
		}
	}
	e.ID = "id-" + e.Email
	r.emails = append(r.emails, e)
	return nil
}

func (r *memoryRepo) SetEnabled(_ context.Context, id string, enabled bool) error {
	for _, e := range r.emails {
		if e.ID == id {
			e.Enabled = enabled
			return nil
		}
	}
	return apperrors.NotFound("Email inválido.", nil)
}

func (r *memoryRepo) Delete(_ context.Context, id string) error {
	for i, e := range r.emails {
		if e.ID == id {
			r.emails = append(r.emails[:i], r.emails[i+1:]...)
			return nil
		}
	}
	return apperrors.NotFound("Email inválido.", nil)
}

func (r *memoryRepo) IsEnabled(_ context.Context, email string) (bool, error) {
	r.lookups++
	if r.err != nil {
		return false, r.err
	}
	for _, e := range r.emails {
		if e.Email == email {
			return e.Enabled, nil
		}
	}
	return false, nil
}

func TestAddValidatesAndNormalizes(t *testing.T) {
	svc := NewService(&memoryRepo{}, nil, time.Minute)
	ctx := context.Background()

	_, err := svc.Add(ctx, "m", "sin-arroba", true)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	e, err := svc.Add(ctx, "m", "  Ana@Example.COM ", true)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", e.Email)

	_, err = svc.Add(ctx, "m", "ana@example.com", false)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindConflict, appErr.Kind)
	assert.Equal(t, "Ese email ya existe en la lista.", appErr.Message)
}

func TestIsEnabledIsCachedUntilListChanges(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(repo, nil, time.Minute)
	ctx := context.Background()

	e, err := svc.Add(ctx, "m", "ana@example.com", false)
	require.NoError(t, err)

	ok, err := svc.IsEnabled(ctx, "ANA@example.com")
	require.NoError(t, err)
	assert.False(t, ok)
	_, _ = svc.IsEnabled(ctx, "ana@example.com")
	assert.Equal(t, 1, repo.lookups)

	require.NoError(t, svc.SetEnabled(ctx, "m", e.ID, true))
	ok, err = svc.IsEnabled(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, repo.lookups)

	require.NoError(t, svc.Delete(ctx, "m", e.ID))
	ok, err = svc.IsEnabled(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 3, repo.lookups)
}

func TestIsEnabledErrorsAreNotCached(t *testing.T) {
	repo := &memoryRepo{err: errors.New("function missing")}
	svc := NewService(repo, nil, time.Minute)

	_, err := svc.IsEnabled(context.Background(), "x@y.com")
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, "Falta configurar el control de emails habilitados en Supabase.", appErr.Message)

	repo.err = nil
	_, err = svc.IsEnabled(context.Background(), "x@y.com")
	require.NoError(t, err)
	assert.Equal(t, 2, repo.lookups)
}

func TestToggleAndDeleteNeedID(t *testing.T) {
	svc := NewService(&memoryRepo{}, nil, time.Minute)

	err := svc.SetEnabled(context.Background(), "m", " ", true)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
	assert.True(t, apperrors.IsKind(svc.Delete(context.Background(), "m", ""), apperrors.KindValidation))
	assert.True(t, apperrors.IsKind(svc.Delete(context.Background(), "m", "nope"), apperrors.KindNotFound))
}

func TestListFailure(t *testing.T) {
	svc := NewService(&memoryRepo{err: errors.New("boom")}, nil, time.Minute)

	_, err := svc.List(context.Background())
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, MsgListFailed, appErr.Message)
}
