package demostore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/consultorio/internal/model"
	"github.com/jwalitptl/consultorio/pkg/errors"
	"github.com/jwalitptl/consultorio/pkg/metrics"
)

func newTestStore(t *testing.T) (*Store, *metrics.Metrics) {
	t.Helper()
	m := metrics.NewNop()
	return New(filepath.Join(t.TempDir(), "demo.json"), zerolog.Nop(), m), m
}

func TestFirstReadSeedsAndPersists(t *testing.T) {
	s, _ := newTestStore(t)

	db, err := s.Read()
	require.NoError(t, err)
	assert.Len(t, db.Patients, 2)
	assert.Len(t, db.ClinicalEntries, 3)
	assert.Len(t, db.People, 2)
	assert.Len(t, db.Cases, 2)
	assert.Len(t, db.CaseEvents, 3)

	raw, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	var onDisk Data
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Equal(t, "Juan Pérez", onDisk.Patients[0].FullName)
	assert.True(t, strings.Contains(string(raw), `"clinicalEntries"`))
}

func TestReadReturnsIsolatedCopy(t *testing.T) {
	s, _ := newTestStore(t)

	db, err := s.Read()
	require.NoError(t, err)
	second, err := s.Read()
	require.NoError(t, err)
	assert.Equal(t, db, second)
	assert.NotSame(t, db, second)

	db.Patients[0].FullName = "changed"
	*db.Patients[0].DNI = "0"
	db.Patients = nil

	again, err := s.Read()
	require.NoError(t, err)
	assert.Equal(t, "Juan Pérez", again.Patients[0].FullName)
	assert.Equal(t, "30123456", model.Deref(again.Patients[0].DNI))
}

func TestMutatePersistsAcrossInstances(t *testing.T) {
	s, _ := newTestStore(t)

	var id string
	require.NoError(t, s.Mutate(func(db *Data) error {
		id = s.NewID("p")
		db.Patients = append(db.Patients, model.Patient{ID: id, FullName: "Nueva Paciente"})
		return nil
	}))
	assert.True(t, strings.HasPrefix(id, "p-"))

	cold := New(s.Path(), zerolog.Nop(), metrics.NewNop())
	db, err := cold.Read()
	require.NoError(t, err)
	require.Len(t, db.Patients, 3)
	assert.Equal(t, id, db.Patients[2].ID)
}

func TestMutateErrorLeavesStateUntouched(t *testing.T) {
	s, m := newTestStore(t)

	err := s.Mutate(func(db *Data) error {
		db.Patients = nil
		return errors.Validation("no")
	})
	assert.True(t, errors.IsKind(err, errors.KindValidation))

	db, err := s.Read()
	require.NoError(t, err)
	assert.Len(t, db.Patients, 2)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.DemoStoreMutations))
}

func TestPersistFailureIsSwallowed(t *testing.T) {
	m := metrics.NewNop()
	s := New(filepath.Join(t.TempDir(), "missing-dir", "demo.json"), zerolog.Nop(), m)

	require.NoError(t, s.Mutate(func(db *Data) error {
		db.Patients[0].FullName = "Solo en memoria"
		return nil
	}))

	db, err := s.Read()
	require.NoError(t, err)
	assert.Equal(t, "Solo en memoria", db.Patients[0].FullName)
	// one failure for the initial seed write, one for the mutation
	assert.Equal(t, float64(2), testutil.ToFloat64(m.DemoStorePersistFailed))
}

func TestCorruptFileIsReseeded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	s := New(path, zerolog.Nop(), metrics.NewNop())
	db, err := s.Read()
	require.NoError(t, err)
	assert.Len(t, db.Patients, 2)
}

func TestResetRestoresSeed(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Mutate(func(db *Data) error {
		db.Patients = db.Patients[:0]
		return nil
	}))

	require.NoError(t, s.Reset())

	cold := New(s.Path(), zerolog.Nop(), metrics.NewNop())
	db, err := cold.Read()
	require.NoError(t, err)
	assert.Len(t, db.Patients, 2)
}

func TestInstancesAreIndependent(t *testing.T) {
	a, _ := newTestStore(t)
	b, _ := newTestStore(t)

	require.NoError(t, a.Mutate(func(db *Data) error {
		db.Cases = nil
		return nil
	}))

	db, err := b.Read()
	require.NoError(t, err)
	assert.Len(t, db.Cases, 2)
}

func TestConcurrentMutations(t *testing.T) {
	s, _ := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Mutate(func(db *Data) error {
				db.People = append(db.People, model.Person{ID: s.NewID("per"), FullName: "x"})
				return nil
			})
		}()
	}
	wg.Wait()

	db, err := s.Read()
	require.NoError(t, err)
	assert.Len(t, db.People, 22)
}
