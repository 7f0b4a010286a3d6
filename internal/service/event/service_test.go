package event

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/consultorio/pkg/messaging"
)

type recordingPublisher struct {
	events []messaging.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e messaging.Event) error {
	p.events = append(p.events, e)
	return p.err
}

func TestEmitStampsModule(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewService(pub, "odonto", zerolog.Nop())

	svc.Emit(context.Background(), messaging.PatientCreated, "p1", "u1", map[string]string{"source": "form"})

	require.Len(t, pub.events, 1)
	ev := pub.events[0]
	assert.Equal(t, messaging.PatientCreated, ev.Type)
	assert.Equal(t, "odonto", ev.Module)
	assert.Equal(t, "p1", ev.EntityID)
	assert.Equal(t, "u1", ev.ActorID)
	assert.Equal(t, "form", ev.Attributes["source"])
}

func TestEmitLogsBrokerFailure(t *testing.T) {
	var buf bytes.Buffer
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := NewService(pub, "odonto", zerolog.New(&buf))

	svc.Emit(context.Background(), messaging.PatientDeleted, "p1", "", nil)

	assert.Contains(t, buf.String(), "failed to publish event")
	assert.Contains(t, buf.String(), "broker down")
}

func TestNilServiceIsSafe(t *testing.T) {
	var svc *Service
	assert.NotPanics(t, func() {
		svc.Emit(context.Background(), messaging.PatientCreated, "p1", "", nil)
	})
}
