package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	ti, err := NewTokenIssuer("s3cret", time.Hour)
	require.NoError(t, err)

	id := uuid.New()
	token, exp, err := ti.Issue(id, "admin", "admin")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := ti.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, "admin", claims.Role)
	got, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestParse_WrongSecret(t *testing.T) {
	a, _ := NewTokenIssuer("one", time.Hour)
	b, _ := NewTokenIssuer("two", time.Hour)

	token, _, err := a.Issue(uuid.New(), "admin", "admin")
	require.NoError(t, err)

	_, err = b.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParse_Expired(t *testing.T) {
	ti, _ := NewTokenIssuer("s3cret", time.Minute)
	ti.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, _, err := ti.Issue(uuid.New(), "admin", "admin")
	require.NoError(t, err)

	ti.now = time.Now
	_, err = ti.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokenIssuer_NoSecret(t *testing.T) {
	_, err := NewTokenIssuer("", time.Hour)
	assert.ErrorIs(t, err, ErrNoSecret)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "hunter2"))
	assert.False(t, CheckPassword(hash, "hunter3"))
	assert.False(t, CheckPassword("not-a-hash", "hunter2"))
}

func TestLoginThrottle(t *testing.T) {
	th := NewLoginThrottle(3, time.Minute)
	key := "admin|10.0.0.1"

	assert.False(t, th.Locked(key))
	th.Fail(key)
	th.Fail(key)
	assert.False(t, th.Locked(key))
	th.Fail(key)
	assert.True(t, th.Locked(key))

	assert.False(t, th.Locked("admin|10.0.0.2"))

	th.Reset(key)
	assert.False(t, th.Locked(key))
}
