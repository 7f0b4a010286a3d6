// Package demostore is the disk-backed store used when the service runs without a real backend.
//
// A Store is an ordinary value: build one per process (or per test) with New and hand it to the
// demo repositories. Reads return deep copies. Mutations run against a working copy that replaces
// the cached state only when the mutation succeeds, and every successful mutation is written to
// disk before Mutate returns. A failed write is logged and counted, never returned: the in-memory
// state stays authoritative for the life of the process.
package demostore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/consultorio/internal/model"
	"github.com/jwalitptl/consultorio/pkg/metrics"
)

// DefaultPath is used when DEMO_DB_PATH is unset.
const DefaultPath = ".demo-data.local.json"

// Data is the whole demo database. The JSON keys are the on-disk format.
type Data struct {
	Patients        []model.Patient           `json:"patients"`
	ClinicalEntries []model.ClinicalEntry     `json:"clinicalEntries"`
	Radiographs     []model.PatientRadiograph `json:"radiographs"`
	People          []model.Person            `json:"people"`
	Cases           []model.CaseFile          `json:"cases"`
	CaseEvents      []model.CaseEvent         `json:"caseEvents"`
}

type Store struct {
	mu    sync.Mutex
	path  string
	cache *Data

	logger          zerolog.Logger
	persistFailures prometheus.Counter
	mutations       prometheus.Counter

	seed  func() *Data
	newID func() string
}

func New(path string, logger zerolog.Logger, m *metrics.Metrics) *Store {
	if path == "" {
		path = DefaultPath
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &Store{
		path:            path,
		logger:          logger.With().Str("component", "demostore").Str("path", path).Logger(),
		persistFailures: m.DemoStorePersistFailed,
		mutations:       m.DemoStoreMutations,
		seed:            Seed,
		newID:           uuid.NewString,
	}
}

func (s *Store) Path() string { return s.path }

// Read returns a deep copy of the current state.
func (s *Store) Read() (*Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.ensure()
	if err != nil {
		return nil, err
	}
	return db.clone()
}

// Mutate applies fn to a copy of the state. If fn returns nil the copy becomes the new state
// and is persisted; otherwise nothing changes and fn's error is returned.
func (s *Store) Mutate(fn func(*Data) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.ensure()
	if err != nil {
		return err
	}
	work, err := db.clone()
	if err != nil {
		return err
	}
	if err := fn(work); err != nil {
		return err
	}

	s.cache = work
	s.mutations.Inc()
	s.persist(work)
	return nil
}

// Reset replaces the state with the seed fixtures. Unlike Mutate it reports a failed write,
// since its only caller is the admin CLI.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache = s.seed()
	return s.write(s.cache)
}

// NewID returns prefix-<random uuid>.
func (s *Store) NewID(prefix string) string {
	return prefix + "-" + s.newID()
}

// ensure loads the state from disk on first use, seeding it when the file is absent or unreadable.
func (s *Store) ensure() (*Data, error) {
	if s.cache != nil {
		return s.cache, nil
	}
	if db := s.load(); db != nil {
		s.cache = db
		return db, nil
	}
	s.cache = s.seed()
	s.persist(s.cache)
	return s.cache, nil
}

func (s *Store) load() *Data {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn().Err(err).Msg("could not read demo data, seeding")
		}
		return nil
	}
	var db Data
	if err := json.Unmarshal(raw, &db); err != nil {
		s.logger.Warn().Err(err).Msg("demo data file is not valid json, seeding")
		return nil
	}
	return &db
}

func (s *Store) persist(db *Data) {
	if err := s.write(db); err != nil {
		s.persistFailures.Inc()
		s.logger.Warn().Err(err).Msg("could not persist demo data")
	}
}

// write replaces the file atomically so a crash never leaves half a document behind.
func (s *Store) write(db *Data) error {
	raw, err := json.MarshalIndent(db, "", "  ")
	if err != nil {
		return fmt.Errorf("encode demo data: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace demo data: %w", err)
	}
	return nil
}

func (d *Data) clone() (*Data, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("copy demo data: %w", err)
	}
	var out Data
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("copy demo data: %w", err)
	}
	return &out, nil
}
