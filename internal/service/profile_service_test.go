package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todozen/internal/model"
	"todozen/internal/service"
)

func TestProfileService_RegisterAndAuthenticate(t *testing.T) {
	profiles := newProfiles(newStore(t))
	ctx := context.Background()

	p, err := profiles.Register(ctx, " alice ", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Username)
	assert.NotEqual(t, []byte("s3cret"), p.Credential)

	_, err = profiles.Register(ctx, "alice", "other")
	assert.ErrorIs(t, err, service.ErrConflict)

	got, err := profiles.Authenticate(ctx, "alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	_, err = profiles.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, service.ErrUnauthorized)
	_, err = profiles.Authenticate(ctx, "bob", "s3cret")
	assert.ErrorIs(t, err, service.ErrUnauthorized)
}

func TestProfileService_RegisterValidation(t *testing.T) {
	profiles := newProfiles(newStore(t))
	ctx := context.Background()

	for _, tc := range []struct{ user, secret string }{
		{"", "s3cret"},
		{"guest", "s3cret"},
		{"two words", "s3cret"},
		{"alice", "abc"},
	} {
		_, err := profiles.Register(ctx, tc.user, tc.secret)
		assert.ErrorIs(t, err, service.ErrInvalidInput, tc.user)
	}
}

func TestProfileService_Get(t *testing.T) {
	profiles := newProfiles(newStore(t))
	ctx := context.Background()

	guest, err := profiles.Get(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, model.GuestOwner, guest.Username)

	_, err = profiles.Get(ctx, "nobody")
	assert.ErrorIs(t, err, service.ErrNotFound)
}
