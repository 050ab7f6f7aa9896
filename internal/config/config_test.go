package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/ordvault/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points ENV_FILE at a missing file so a developer's .env cannot leak
// into the test.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "signet", c.Network)
	assert.True(t, c.Mock)
	assert.Equal(t, BackendOrders, c.Backend)
	assert.Equal(t, 200000, c.MaxSize)
	assert.Equal(t, 30, c.MaxAttempts)
	assert.Equal(t, 10*time.Second, c.PollInterval)
	assert.Equal(t, "medium", c.FeeRate)
	assert.Equal(t, 75, c.EncoderThreshold)
	assert.Equal(t, ":50051", c.EndpointAddrGRPC)
	require.NoError(t, c.Validate())
}

func TestLoad_Env(t *testing.T) {
	isolate(t)
	t.Setenv("BITCOIN_NETWORK", "MAINNET")
	t.Setenv("MOCK_INSCRIPTIONS", "false")
	t.Setenv("INSCRIPTION_BACKEND", "rpc")
	t.Setenv("INSCRIPTION_POLL_MS", "2500")
	t.Setenv("INSCRIPTION_MAX_ATTEMPTS", "5")
	t.Setenv("RECEIVE_ADDRESS", "bc1qfallback")
	t.Setenv("RECEIVE_ADDRESS_MAINNET", "bc1qmain")
	t.Setenv("TIMELOCK_DRAND", "true")
	t.Setenv("PENDING_RETRY_INTERVAL", "90s")

	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "mainnet", c.Network)
	assert.False(t, c.Mock)
	assert.Equal(t, BackendRPC, c.Backend)
	assert.Equal(t, 2500*time.Millisecond, c.PollInterval)
	assert.Equal(t, 5, c.MaxAttempts)
	assert.Equal(t, "bc1qmain", c.ReceiveAddress())
	assert.True(t, c.TimelockDrand)
	assert.Equal(t, 90*time.Second, c.PendingRetryInterval)

	opts := c.InscriptionOptions()
	assert.Equal(t, "bc1qmain", opts.ReceiveAddress)
	assert.Equal(t, 5, opts.MaxAttempts)
}

func TestLoad_EnvErrors(t *testing.T) {
	tests := map[string]string{
		"INSCRIPTION_MAX_SIZE":    "big",
		"MOCK_INSCRIPTIONS":       "perhaps",
		"INSCRIPTION_POLL_MS":     "soon",
		"BITCOIN_NETWORK":         "regtest",
		"INSCRIPTION_BACKEND":     "carrier-pigeon",
		"ENCODER_THRESHOLD_BYTES": "100",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			isolate(t)
			t.Setenv(key, value)

			_, err := Load("")
			assert.ErrorIs(t, err, common.ErrValidation)
		})
	}
}

func TestLoad_DotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("DEFAULT_FEE_RATE=high\nLOG_LEVEL=DEBUG\n"), 0o600))
	t.Setenv("ENV_FILE", path)
	t.Setenv("LOG_LEVEL", "WARN")
	t.Cleanup(func() { os.Unsetenv("DEFAULT_FEE_RATE") })

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "high", c.FeeRate)
	assert.Equal(t, "WARN", c.LogLevel, "process environment wins over .env")
}

func TestReceiveAddress_Fallback(t *testing.T) {
	c := &Config{Network: "signet", ReceiveAddresses: map[string]string{"": "tb1qany", "mainnet": "bc1q"}}
	assert.Equal(t, "tb1qany", c.ReceiveAddress())

	c.ReceiveAddresses = nil
	assert.Empty(t, c.ReceiveAddress())
}

func TestPaths(t *testing.T) {
	c := &Config{DataDir: "/var/lib/ordvault"}
	assert.Equal(t, "/var/lib/ordvault/inscriptions", c.InscriptionsPath())
	assert.Equal(t, "/var/lib/ordvault/inscriptions.json", c.InscriptionStorePath())
	assert.Equal(t, "/var/lib/ordvault/articles.json", c.ArticlesPath())

	c.InscriptionsDir = "/tmp/ins"
	assert.Equal(t, "/tmp/ins", c.InscriptionsPath())
}

func TestValidate(t *testing.T) {
	var c Config
	c.LoadDefaults()

	c.PollInterval = 0
	assert.ErrorIs(t, c.Validate(), common.ErrValidation)

	c.LoadDefaults()
	c.MaxAttempts = -1
	assert.ErrorIs(t, c.Validate(), common.ErrValidation)
}

func TestValidate_EncoderThreshold(t *testing.T) {
	tests := []struct {
		threshold int
		wantErr   bool
	}{
		{0, false},
		{40, false},
		{77, false},
		{78, true},
		{100, true},
		{-1, true},
	}

	for _, tt := range tests {
		var c Config
		c.LoadDefaults()
		c.EncoderThreshold = tt.threshold

		err := c.Validate()
		if tt.wantErr {
			assert.ErrorIs(t, err, common.ErrValidation, "threshold %d", tt.threshold)
		} else {
			assert.NoError(t, err, "threshold %d", tt.threshold)
		}
	}
}
