package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jwalitptl/consultorio/pkg/messaging"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBroker(t *testing.T) *RedisBroker {
	t.Helper()
	mr := miniredis.RunT(t)
	b, err := NewRedisBroker(context.Background(), Config{URL: "redis://" + mr.Addr()}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

func TestRedisBrokerPublishSubscribe(t *testing.T) {
	b := newTestBroker(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := b.Subscribe(ctx, messaging.EventsChannel)
	require.NoError(t, err)

	pub := messaging.NewEventPublisher(b, "")
	require.NoError(t, pub.Publish(ctx, messaging.Event{
		Type:     messaging.PatientCreated,
		Module:   "odonto",
		EntityID: "p-1",
	}))

	select {
	case raw := <-msgs:
		var got messaging.Event
		require.NoError(t, json.Unmarshal(raw, &got))
		assert.Equal(t, messaging.PatientCreated, got.Type)
		assert.Equal(t, "p-1", got.EntityID)
		assert.False(t, got.OccurredAt.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestRedisBrokerSubscriptionClosesWithContext(t *testing.T) {
	b := newTestBroker(t)
	ctx, cancel := context.WithCancel(context.Background())

	msgs, err := b.Subscribe(ctx, "other")
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-msgs:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed")
	}
}

func TestNewRedisBrokerBadURL(t *testing.T) {
	_, err := NewRedisBroker(context.Background(), Config{URL: "not a url"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestRedisBrokerPing(t *testing.T) {
	mr := miniredis.RunT(t)
	b, err := NewRedisBroker(context.Background(), Config{URL: "redis://" + mr.Addr()}, zerolog.Nop())
	require.NoError(t, err)
	defer b.Close()

	assert.NoError(t, b.Ping(context.Background()))
	mr.Close()
	assert.Error(t, b.Ping(context.Background()))
}
