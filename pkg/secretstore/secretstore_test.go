package secretstore

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(OpenOptions{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCredentialsRoundTrip(t *testing.T) {
	s := openTestStore(t)

	_, found, err := s.CredentialsFor("alice")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.SetCredentials("alice", Credentials{Username: "alice", Password: "hunter2"}))

	c, found, err := s.CredentialsFor("alice")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "alice", c.Username)
	assert.Equal(t, "hunter2", c.Password)
}

func TestSessionTokenRoundTrip(t *testing.T) {
	s := openTestStore(t)

	_, found, err := s.SessionTokenFor("alice")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.SetSessionToken("alice", "tok-123"))
	tok, found, err := s.SessionTokenFor("alice")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "tok-123", tok)
}

func TestParseKey(t *testing.T) {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = byte(i)
	}

	t.Run("empty", func(t *testing.T) {
		b, err := ParseKey("")
		require.NoError(t, err)
		assert.Nil(t, b)
	})

	t.Run("hex", func(t *testing.T) {
		b, err := ParseKey("000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
		require.NoError(t, err)
		assert.Equal(t, raw, b)
	})

	t.Run("base64", func(t *testing.T) {
		b, err := ParseKey(base64.StdEncoding.EncodeToString(raw))
		require.NoError(t, err)
		assert.Equal(t, raw, b)
	})

	t.Run("wrong length", func(t *testing.T) {
		_, err := ParseKey("0011")
		assert.Error(t, err)
	})
}
