package worker

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/consultorio/internal/demostore"
	"github.com/jwalitptl/consultorio/internal/model"
	"github.com/jwalitptl/consultorio/internal/repository/demo"
	"github.com/jwalitptl/consultorio/internal/service/event"
	"github.com/jwalitptl/consultorio/internal/service/radiograph"
	"github.com/jwalitptl/consultorio/pkg/metrics"
)

type countingExpirer struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (e *countingExpirer) ExpireStale(context.Context, time.Duration) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	return 1, e.err
}

func (e *countingExpirer) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func TestStaleUploadsWorkerRunsUntilCancelled(t *testing.T) {
	exp := &countingExpirer{err: errors.New("backend down")}
	w := NewStaleUploadsWorker(exp, time.Minute, 5*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return exp.count() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestStaleUploadsWorkerFailsOldUploads(t *testing.T) {
	m := metrics.NewNop()
	st := demostore.New(filepath.Join(t.TempDir(), "demo.json"), zerolog.Nop(), m)
	repos := demo.New(st)
	svc := radiograph.NewService(repos, nil, event.Nop{}, m, zerolog.Nop())

	rg, err := svc.Create(context.Background(), "u1", "p1", radiograph.CreateInput{OriginalFilename: "pano.jpg"})
	require.NoError(t, err)

	// Everything older than "now" counts as stale.
	w := NewStaleUploadsWorker(svc, -time.Second, time.Hour, zerolog.Nop())
	w.sweep(context.Background())

	list, err := svc.List(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, rg.ID, list[0].ID)
	assert.Equal(t, model.RadiographFailed, list[0].Status)
}
