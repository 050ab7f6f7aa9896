package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/ordvault/internal/common"
	"github.com/joho/godotenv"
)

// applyEnv overlays the process environment. A .env file (or ENV_FILE) is
// loaded first; variables already set in the environment win over it.
func (c *Config) applyEnv() error {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var err error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok && err == nil {
			n, perr := strconv.Atoi(strings.TrimSpace(v))
			if perr != nil {
				err = fmt.Errorf("%w: %s must be an integer", common.ErrValidation, key)
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok && err == nil {
			b, perr := strconv.ParseBool(strings.TrimSpace(v))
			if perr != nil {
				err = fmt.Errorf("%w: %s must be a boolean", common.ErrValidation, key)
				return
			}
			*dst = b
		}
	}
	millis := func(key string, dst *time.Duration) {
		var ms int
		if _, ok := os.LookupEnv(key); ok {
			num(key, &ms)
			if err == nil {
				*dst = time.Duration(ms) * time.Millisecond
			}
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok && err == nil {
			d, perr := time.ParseDuration(strings.TrimSpace(v))
			if perr != nil {
				err = fmt.Errorf("%w: %s must be a duration", common.ErrValidation, key)
				return
			}
			*dst = d
		}
	}

	str("BITCOIN_NETWORK", &c.Network)
	c.Network = strings.ToLower(c.Network)
	boolean("MOCK_INSCRIPTIONS", &c.Mock)
	str("INSCRIPTION_BACKEND", &c.Backend)
	num("INSCRIPTION_MAX_SIZE", &c.MaxSize)
	num("INSCRIPTION_MAX_ATTEMPTS", &c.MaxAttempts)
	millis("INSCRIPTION_POLL_MS", &c.PollInterval)
	str("DEFAULT_FEE_RATE", &c.FeeRate)
	num("ENCODER_THRESHOLD_BYTES", &c.EncoderThreshold)

	if c.ReceiveAddresses == nil {
		c.ReceiveAddresses = map[string]string{}
	}
	for _, network := range []string{"mainnet", "signet", "testnet4"} {
		if v, ok := os.LookupEnv("RECEIVE_ADDRESS_" + strings.ToUpper(network)); ok {
			c.ReceiveAddresses[network] = strings.TrimSpace(v)
		}
	}
	if v, ok := os.LookupEnv("RECEIVE_ADDRESS"); ok {
		c.ReceiveAddresses[""] = strings.TrimSpace(v)
	}

	str("ORDINALS_API_KEY", &c.OrdersAPIKey)
	str("ORDINALS_API_URL", &c.OrdersAPIURL)

	str("BITCOIN_RPC_URL", &c.RPCURL)
	str("BITCOIN_RPC_USER", &c.RPCUser)
	str("BITCOIN_RPC_PASSWORD", &c.RPCPassword)
	str("BITCOIN_RPC_WALLET", &c.RPCWallet)
	num("MIN_CONFIRMATIONS", &c.MinConfirmations)

	str("DATA_DIR", &c.DataDir)
	str("INSCRIPTIONS_DIR", &c.InscriptionsDir)
	str("DATABASE_DSN", &c.DatabaseDSN)

	str("S3_BUCKET", &c.S3Bucket)
	str("S3_REGION", &c.S3Region)
	str("S3_ACCESS_KEY", &c.S3AccessKey)
	str("S3_SECRET_KEY", &c.S3SecretKey)
	str("S3_ENDPOINT", &c.S3Endpoint)
	str("S3_PREFIX", &c.S3Prefix)

	str("ATTESTATION_KEY", &c.AttestationKey)

	boolean("TIMELOCK_DRAND", &c.TimelockDrand)
	str("DRAND_URL", &c.DrandURL)
	str("DRAND_CHAIN_HASH", &c.DrandChain)

	str("GRPC_ADDR", &c.EndpointAddrGRPC)
	duration("PENDING_RETRY_INTERVAL", &c.PendingRetryInterval)
	str("LOG_LEVEL", &c.LogLevel)

	return err
}
