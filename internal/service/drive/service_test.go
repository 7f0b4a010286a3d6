package drive

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/consultorio/internal/demostore"
	"github.com/jwalitptl/consultorio/internal/model"
	"github.com/jwalitptl/consultorio/internal/repository"
	"github.com/jwalitptl/consultorio/internal/repository/demo"
	apperrors "github.com/jwalitptl/consultorio/pkg/errors"
	"github.com/jwalitptl/consultorio/pkg/metrics"
)

type memoryConns struct {
	byOwner   map[string]*model.DriveConnection
	deleteErr error
}

func (m *memoryConns) Get(_ context.Context, ownerID string) (*model.DriveConnection, error) {
	if c, ok := m.byOwner[ownerID]; ok {
		return c, nil
	}
	return nil, apperrors.NotFound("Drive no está conectado.", nil)
}

func (m *memoryConns) Upsert(_ context.Context, c *model.DriveConnection) error {
	m.byOwner[c.OwnerID] = c
	return nil
}

func (m *memoryConns) Delete(_ context.Context, ownerID string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.byOwner, ownerID)
	return nil
}

type failingPatients struct {
	repository.PatientRepository
}

func (failingPatients) ClearDriveFolders(context.Context, string) error {
	return errors.New("timeout")
}

func newRepos(t *testing.T) (repository.Repositories, *memoryConns) {
	t.Helper()
	st := demostore.New(filepath.Join(t.TempDir(), "demo.json"), zerolog.Nop(), metrics.NewNop())
	repos := demo.New(st)
	conns := &memoryConns{byOwner: map[string]*model.DriveConnection{}}
	repos.DriveConnections = conns
	return repos, conns
}

func TestSaveOrderOfChecks(t *testing.T) {
	repos, _ := newRepos(t)
	ctx := context.Background()

	_, err := NewService(repos, true, nil, zerolog.Nop()).Save(ctx, "", "", "")
	assert.True(t, apperrors.IsKind(err, apperrors.KindUnavailable))

	svc := NewService(repos, false, nil, zerolog.Nop())
	_, err = svc.Save(ctx, "", "a@b.com", "")
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	_, err = svc.Save(ctx, "", "a@b.com", "root")
	assert.True(t, apperrors.IsKind(err, apperrors.KindUnauthorized))
}

func TestSaveGetDisconnect(t *testing.T) {
	repos, _ := newRepos(t)
	svc := NewService(repos, false, nil, zerolog.Nop())
	ctx := context.Background()

	assert.Nil(t, svc.Get(ctx, "u1"))

	_, err := svc.Save(ctx, "u1", " a@b.com ", "root-1")
	require.NoError(t, err)
	conn := svc.Get(ctx, "u1")
	require.NotNil(t, conn)
	assert.Equal(t, "a@b.com", model.Deref(conn.ConnectedEmail))

	p := &model.Patient{FullName: "X", OwnerID: model.NullString("u1")}
	require.NoError(t, repos.Patients.Create(ctx, p))
	require.NoError(t, repos.Patients.SetDriveFolder(ctx, p.ID, model.NullString("f1")))

	require.NoError(t, svc.Disconnect(ctx, "u1"))
	assert.Nil(t, svc.Get(ctx, "u1"))
	got, err := repos.Patients.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, got.DriveFolderID)
}

func TestDisconnectFolderCleanupFailureIsLogged(t *testing.T) {
	repos, _ := newRepos(t)
	repos.Patients = failingPatients{repos.Patients}
	var buf bytes.Buffer
	svc := NewService(repos, false, nil, zerolog.New(&buf))

	require.NoError(t, svc.Disconnect(context.Background(), "u1"))
	assert.Contains(t, buf.String(), "could not clear patient drive folders")
}

func TestDisconnectFailure(t *testing.T) {
	repos, conns := newRepos(t)
	conns.deleteErr = errors.New("down")
	svc := NewService(repos, false, nil, zerolog.Nop())

	err := svc.Disconnect(context.Background(), "u1")
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, "No se pudo desconectar Drive.", appErr.Message)
}
