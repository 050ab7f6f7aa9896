// Package config builds the runtime configuration of the daemon and the CLI:
// defaults, then an optional JSON file, then a .env file and the process
// environment, then command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/ordvault/internal/common"
	"github.com/dmitrijs2005/ordvault/internal/encoder"
	"github.com/dmitrijs2005/ordvault/internal/flagx"
	"github.com/dmitrijs2005/ordvault/internal/inscription"
)

const (
	BackendOrders = "orders"
	BackendRPC    = "rpc"
)

// Config holds runtime settings.
//
// Secrets (OrdersAPIKey, RPCPassword, S3SecretKey, AttestationKey) must never
// be logged.
type Config struct {
	Network     string
	Mock        bool
	Backend     string
	MaxSize     int
	MaxAttempts int

	PollInterval     time.Duration
	FeeRate          string
	EncoderThreshold int

	// ReceiveAddresses maps a network name to its receive address; the ""
	// key holds the network-independent fallback.
	ReceiveAddresses map[string]string

	OrdersAPIKey string
	OrdersAPIURL string

	RPCURL           string
	RPCUser          string
	RPCPassword      string
	RPCWallet        string
	MinConfirmations int

	DataDir         string
	InscriptionsDir string
	DatabaseDSN     string

	S3Bucket    string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
	S3Endpoint  string
	S3Prefix    string

	AttestationKey string

	TimelockDrand bool
	DrandURL      string
	DrandChain    string

	EndpointAddrGRPC     string
	PendingRetryInterval time.Duration
	LogLevel             string
}

// LoadDefaults populates Config with development defaults: signet, mock
// inscriptions and file storage under ./data.
func (c *Config) LoadDefaults() {
	c.Network = inscription.NetworkSignet
	c.Mock = true
	c.Backend = BackendOrders
	c.MaxSize = inscription.DefaultMaxSize
	c.MaxAttempts = inscription.DefaultMaxAttempts
	c.PollInterval = inscription.DefaultPollInterval
	c.FeeRate = inscription.DefaultFeeRate
	c.EncoderThreshold = 75
	c.ReceiveAddresses = map[string]string{}
	c.MinConfirmations = 1
	c.DataDir = "data"
	c.S3Region = "us-east-1"
	c.EndpointAddrGRPC = ":50051"
	c.PendingRetryInterval = 5 * time.Minute
	c.LogLevel = "INFO"
}

// Load applies defaults, the JSON file at jsonPath (if any) and the
// environment, and validates the result.
func Load(jsonPath string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if jsonPath != "" {
		if err := cfg.applyJSONFile(jsonPath); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig is Load driven by the process arguments (-c/-config for the
// JSON file, then the daemon flags). It panics on invalid configuration.
func LoadConfig() *Config {
	cfg, err := Load(flagx.ConfigPath(os.Args[1:]))
	if err != nil {
		panic(err)
	}
	parseFlags(cfg)
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	return cfg
}

func (c *Config) Validate() error {
	if !inscription.ValidNetwork(c.Network) {
		return fmt.Errorf("%w: unknown network %q", common.ErrValidation, c.Network)
	}
	if c.Backend != BackendOrders && c.Backend != BackendRPC {
		return fmt.Errorf("%w: unknown inscription backend %q", common.ErrValidation, c.Backend)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("%w: max attempts must be positive", common.ErrValidation)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive", common.ErrValidation)
	}
	if c.MaxSize <= 0 {
		return fmt.Errorf("%w: max inscription size must be positive", common.ErrValidation)
	}
	if c.EncoderThreshold < 0 || c.EncoderThreshold > encoder.MaxThreshold {
		return fmt.Errorf("%w: encoder threshold must be at most %d bytes", common.ErrValidation, encoder.MaxThreshold)
	}
	if c.PendingRetryInterval <= 0 {
		return fmt.Errorf("%w: pending retry interval must be positive", common.ErrValidation)
	}
	return nil
}

// ReceiveAddress returns the address for the configured network, falling
// back to the network-independent one.
func (c *Config) ReceiveAddress() string {
	if addr := c.ReceiveAddresses[strings.ToLower(c.Network)]; addr != "" {
		return addr
	}
	return c.ReceiveAddresses[""]
}

// InscriptionOptions maps the configuration onto orchestrator options.
func (c *Config) InscriptionOptions() inscription.Options {
	return inscription.Options{
		Network:        c.Network,
		Mock:           c.Mock,
		MaxSize:        c.MaxSize,
		MaxAttempts:    c.MaxAttempts,
		PollInterval:   c.PollInterval,
		FeeRate:        c.FeeRate,
		ReceiveAddress: c.ReceiveAddress(),
		Threshold:      c.EncoderThreshold,
	}
}

// InscriptionsPath is the directory of the per-inscription file cache.
func (c *Config) InscriptionsPath() string {
	if c.InscriptionsDir != "" {
		return c.InscriptionsDir
	}
	return filepath.Join(c.DataDir, "inscriptions")
}

func (c *Config) InscriptionStorePath() string {
	return filepath.Join(c.DataDir, "inscriptions.json")
}

func (c *Config) ArticlesPath() string {
	return filepath.Join(c.DataDir, "articles.json")
}
