package cryptox

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/ordvault/internal/common"
)

// TimeLockEnvelope is an envelope whose key is derived from UnlockAt and Salt.
//
// No random key is retained: whoever holds UnlockAt and the salt can derive the
// key, so the lock is a policy gate enforced by Unlock, not secrecy.
type TimeLockEnvelope struct {
	Envelope
	UnlockAt   time.Time `json:"unlockAt"`
	Salt       []byte    `json:"salt"`
	TimeLocked bool      `json:"timeLocked"`
}

// TimeAuthority tells Unlock what time it is.
type TimeAuthority interface {
	Name() string
	Now(ctx context.Context) (time.Time, error)
}

// roundLocator is implemented by beacon authorities that can name the round
// publishing at a given time.
type roundLocator interface {
	RoundAt(ctx context.Context, t time.Time) (uint64, error)
}

// SystemClock is the local wall clock.
type SystemClock struct{}

func (SystemClock) Name() string { return "clock" }

func (SystemClock) Now(context.Context) (time.Time, error) { return time.Now(), nil }

// TimeLocker creates and opens time-locked envelopes.
type TimeLocker struct {
	authority TimeAuthority
}

// NewTimeLocker returns a TimeLocker gated by authority, or by the local
// clock when authority is nil.
func NewTimeLocker(authority TimeAuthority) *TimeLocker {
	if authority == nil {
		authority = SystemClock{}
	}
	return &TimeLocker{authority: authority}
}

// Authority returns the name of the time source gating Unlock.
func (l *TimeLocker) Authority() string {
	return l.authority.Name()
}

// TimeSeed is the derivation seed for unlockAt: its millisecond Unix timestamp.
func TimeSeed(unlockAt time.Time) string {
	return strconv.FormatInt(unlockAt.UnixMilli(), 10)
}

// Lock encrypts plaintext under a key derived from unlockAt and a fresh
// 64-byte salt.
func (l *TimeLocker) Lock(plaintext []byte, unlockAt time.Time) (*TimeLockEnvelope, error) {
	if unlockAt.IsZero() {
		return nil, fmt.Errorf("%w: unlock time is required", common.ErrValidation)
	}
	unlockAt = unlockAt.UTC().Truncate(time.Millisecond)

	salt := common.GenerateRandByteArray(SaltSize)
	key := DeriveKey(TimeSeed(unlockAt), salt)
	defer common.WipeByteArray(key)

	env, err := Encrypt(plaintext, key)
	if err != nil {
		return nil, err
	}
	env.ForgetKey()

	return &TimeLockEnvelope{
		Envelope:   *env,
		UnlockAt:   unlockAt,
		Salt:       salt,
		TimeLocked: true,
	}, nil
}

// Unlock opens env once the authority reports a time at or after UnlockAt.
// The gate is checked before any derivation.
func (l *TimeLocker) Unlock(ctx context.Context, env *TimeLockEnvelope) ([]byte, error) {
	if env == nil || !env.TimeLocked {
		return nil, fmt.Errorf("%w: envelope is not time-locked", common.ErrValidation)
	}

	now, err := l.authority.Now(ctx)
	if err != nil {
		return nil, fmt.Errorf("query %s time authority: %w", l.authority.Name(), err)
	}

	plain, err := UnlockWithSalt(&env.Envelope, env.UnlockAt, env.Salt, now)
	if errors.Is(err, common.ErrTimeLockNotExpired) {
		if rl, ok := l.authority.(roundLocator); ok {
			if round, rerr := rl.RoundAt(ctx, env.UnlockAt); rerr == nil {
				err = fmt.Errorf("%w, beacon round %d", err, round)
			}
		}
	}
	return plain, err
}

// UnlockWithSalt derives the key from (unlockAt, salt) and decrypts env,
// refusing to do so while now is before unlockAt.
func UnlockWithSalt(env *Envelope, unlockAt time.Time, salt []byte, now time.Time) ([]byte, error) {
	if now.Before(unlockAt) {
		return nil, fmt.Errorf("%w: unlocks at %s (in %s)", common.ErrTimeLockNotExpired,
			unlockAt.UTC().Format(time.RFC3339), unlockAt.Sub(now).Round(time.Second))
	}
	if len(salt) == 0 {
		return nil, fmt.Errorf("%w: time-lock salt is missing", common.ErrCorruptData)
	}

	key := DeriveKey(TimeSeed(unlockAt), salt)
	defer common.WipeByteArray(key)

	return Decrypt(env, key)
}
