package cryptox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/ordvault/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedClock struct {
	now time.Time
	err error
}

func (f fixedClock) Name() string { return "fixed" }

func (f fixedClock) Now(context.Context) (time.Time, error) { return f.now, f.err }

func TestTimeSeed(t *testing.T) {
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "1735689600000", TimeSeed(at))
}

func TestTimeLocker_LockUnlock(t *testing.T) {
	unlockAt := time.Date(2025, 6, 1, 12, 0, 0, 123_456_789, time.UTC)
	plaintext := []byte("release after june")

	env, err := NewTimeLocker(nil).Lock(plaintext, unlockAt)
	require.NoError(t, err)

	assert.True(t, env.TimeLocked)
	assert.Len(t, env.Salt, SaltSize)
	assert.Nil(t, env.Key)
	assert.Equal(t, unlockAt.Truncate(time.Millisecond), env.UnlockAt)

	t.Run("before unlock time", func(t *testing.T) {
		l := NewTimeLocker(fixedClock{now: unlockAt.Add(-time.Minute)})
		_, err := l.Unlock(context.Background(), env)
		assert.ErrorIs(t, err, common.ErrTimeLockNotExpired)
	})

	t.Run("at unlock time", func(t *testing.T) {
		l := NewTimeLocker(fixedClock{now: env.UnlockAt})
		got, err := l.Unlock(context.Background(), env)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	})

	t.Run("after unlock time", func(t *testing.T) {
		l := NewTimeLocker(fixedClock{now: unlockAt.Add(time.Hour)})
		got, err := l.Unlock(context.Background(), env)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	})
}

func TestTimeLocker_KeyRecomputable(t *testing.T) {
	unlockAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	env, err := NewTimeLocker(nil).Lock([]byte("x"), unlockAt)
	require.NoError(t, err)

	got, err := Decrypt(&env.Envelope, DeriveKey(TimeSeed(unlockAt), env.Salt))
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), got)
}

func TestTimeLocker_Errors(t *testing.T) {
	l := NewTimeLocker(fixedClock{now: time.Now().Add(24 * time.Hour)})

	_, err := l.Lock([]byte("x"), time.Time{})
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = l.Unlock(context.Background(), &TimeLockEnvelope{})
	assert.ErrorIs(t, err, common.ErrValidation)

	env, err := l.Lock([]byte("x"), time.Now())
	require.NoError(t, err)

	env.Salt = nil
	_, err = l.Unlock(context.Background(), env)
	assert.ErrorIs(t, err, common.ErrCorruptData)

	broken := NewTimeLocker(fixedClock{err: errors.New("offline")})
	_, err = broken.Unlock(context.Background(), env)
	assert.ErrorContains(t, err, "offline")
}

func TestTimeLocker_WrongSalt(t *testing.T) {
	unlockAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	env, err := NewTimeLocker(nil).Lock([]byte("x"), unlockAt)
	require.NoError(t, err)

	env.Salt[0] ^= 0x01
	_, err = NewTimeLocker(nil).Unlock(context.Background(), env)
	assert.ErrorIs(t, err, common.ErrAuthentication)
}
