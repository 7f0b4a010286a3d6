package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/consultorio/internal/demostore"
	"github.com/jwalitptl/consultorio/pkg/messaging"
)

func run(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestResetAndStats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.json")

	out, err := run(t, context.Background(), "reset", "--path", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	seed := demostore.Seed()
	out, err = run(t, context.Background(), "stats", "--path", path)
	require.NoError(t, err)
	assert.Contains(t, out, fmt.Sprintf("patients\t%d\n", len(seed.Patients)))
	assert.Contains(t, out, fmt.Sprintf("cases\t%d\n", len(seed.Cases)))
}

func TestDump(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.json")

	out, err := run(t, context.Background(), "dump", "--path", path)
	require.NoError(t, err)

	var d demostore.Data
	require.NoError(t, json.Unmarshal([]byte(out), &d))
	assert.Len(t, d.Patients, len(demostore.Seed().Patients))
}

func TestHashPassword(t *testing.T) {
	out, err := run(t, context.Background(), "hash-password", "--cost", "4", "secreto1")
	require.NoError(t, err)
	hash := strings.TrimSpace(out)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("secreto1")))

	_, err = run(t, context.Background(), "hash-password", "abc")
	assert.Error(t, err)

	_, err = run(t, context.Background(), "hash-password")
	assert.Error(t, err)
}

func TestEventsRequiresURL(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	_, err := run(t, context.Background(), "events", "--redis-url", "")
	assert.ErrorContains(t, err, "--redis-url")
}

func TestEventsPrintsPublishedEvents(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		out  string
		err  error
		done = make(chan struct{})
	)
	go func() {
		defer close(done)
		out, err = run(t, ctx, "events", "--redis-url", "redis://"+mr.Addr())
	}()

	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(messaging.EventsChannel)[messaging.EventsChannel] == 1
	}, 2*time.Second, 10*time.Millisecond)

	payload, _ := json.Marshal(messaging.Event{
		Type:       messaging.PatientCreated,
		Module:     "odonto",
		EntityID:   "p-1",
		ActorID:    "u-1",
		OccurredAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	})
	mr.Publish(messaging.EventsChannel, string(payload))
	mr.Publish(messaging.EventsChannel, "garbage")

	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	require.NoError(t, err)
	assert.Contains(t, out, "2024-05-01T12:00:00Z\todonto\tpatient.created\tp-1\tactor=u-1")
	assert.Contains(t, out, "unreadable event: garbage")
}
