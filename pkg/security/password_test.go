package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("demo123")
	require.NoError(t, err)
	assert.NotEqual(t, "demo123", hash)

	assert.NoError(t, h.Compare(hash, "demo123"))
	assert.ErrorIs(t, h.Compare(hash, "demo124"), ErrMismatch)
}

func TestBcryptHasherRejectsShortPassword(t *testing.T) {
	_, err := NewBcryptHasher(bcrypt.MinCost).Hash("12345")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestBcryptHasherMalformedHash(t *testing.T) {
	err := NewBcryptHasher(0).Compare("not-a-hash", "whatever")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrMismatch)
}
