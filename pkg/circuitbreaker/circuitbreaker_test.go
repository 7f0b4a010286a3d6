package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestCircuitBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	cb := New(Settings{Name: "test", Timeout: time.Minute, ConsecutiveFailures: 2}, zerolog.Nop())
	boom := errors.New("boom")

	assert.ErrorIs(t, cb.Execute(func() error { return boom }), boom)
	assert.ErrorIs(t, cb.Execute(func() error { return boom }), boom)

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.True(t, IsOpen(err))
	assert.False(t, called)
	assert.Equal(t, "open", cb.State())
}

func TestCircuitBreakerPassesSuccess(t *testing.T) {
	cb := New(Settings{Name: "test"}, zerolog.Nop())
	assert.NoError(t, cb.Execute(func() error { return nil }))
	assert.False(t, IsOpen(errors.New("other")))
	assert.Equal(t, "closed", cb.State())
}
