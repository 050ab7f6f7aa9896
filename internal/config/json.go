package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/ordvault/internal/timex"
)

// JsonConfig mirrors Config for JSON files. Duration fields accept "10s"
// style strings or integer nanoseconds. Absent fields leave Config as is.
type JsonConfig struct {
	Network              *string           `json:"network"`
	Mock                 *bool             `json:"mock_inscriptions"`
	Backend              *string           `json:"inscription_backend"`
	MaxSize              *int              `json:"inscription_max_size"`
	MaxAttempts          *int              `json:"inscription_max_attempts"`
	PollInterval         *timex.Duration   `json:"poll_interval"`
	FeeRate              *string           `json:"fee_rate"`
	EncoderThreshold     *int              `json:"encoder_threshold_bytes"`
	ReceiveAddresses     map[string]string `json:"receive_addresses"`
	OrdersAPIURL         *string           `json:"ordinals_api_url"`
	RPCURL               *string           `json:"bitcoin_rpc_url"`
	RPCUser              *string           `json:"bitcoin_rpc_user"`
	RPCWallet            *string           `json:"bitcoin_rpc_wallet"`
	MinConfirmations     *int              `json:"min_confirmations"`
	DataDir              *string           `json:"data_dir"`
	InscriptionsDir      *string           `json:"inscriptions_dir"`
	DatabaseDSN          *string           `json:"database_dsn"`
	S3Bucket             *string           `json:"s3_bucket"`
	S3Region             *string           `json:"s3_region"`
	S3Endpoint           *string           `json:"s3_endpoint"`
	S3Prefix             *string           `json:"s3_prefix"`
	TimelockDrand        *bool             `json:"timelock_drand"`
	DrandURL             *string           `json:"drand_url"`
	DrandChain           *string           `json:"drand_chain_hash"`
	EndpointAddrGRPC     *string           `json:"endpoint_addr_grpc"`
	PendingRetryInterval *timex.Duration   `json:"pending_retry_interval"`
	LogLevel             *string           `json:"log_level"`
}

// applyJSONFile overlays the JSON file at path. Secrets are only read from
// the environment.
func (c *Config) applyJSONFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	j := &JsonConfig{}
	if err := json.Unmarshal(data, j); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&c.Network, j.Network)
	setBool(&c.Mock, j.Mock)
	setString(&c.Backend, j.Backend)
	setInt(&c.MaxSize, j.MaxSize)
	setInt(&c.MaxAttempts, j.MaxAttempts)
	setDuration(&c.PollInterval, j.PollInterval)
	setString(&c.FeeRate, j.FeeRate)
	setInt(&c.EncoderThreshold, j.EncoderThreshold)
	for network, addr := range j.ReceiveAddresses {
		if c.ReceiveAddresses == nil {
			c.ReceiveAddresses = map[string]string{}
		}
		c.ReceiveAddresses[network] = addr
	}
	setString(&c.OrdersAPIURL, j.OrdersAPIURL)
	setString(&c.RPCURL, j.RPCURL)
	setString(&c.RPCUser, j.RPCUser)
	setString(&c.RPCWallet, j.RPCWallet)
	setInt(&c.MinConfirmations, j.MinConfirmations)
	setString(&c.DataDir, j.DataDir)
	setString(&c.InscriptionsDir, j.InscriptionsDir)
	setString(&c.DatabaseDSN, j.DatabaseDSN)
	setString(&c.S3Bucket, j.S3Bucket)
	setString(&c.S3Region, j.S3Region)
	setString(&c.S3Endpoint, j.S3Endpoint)
	setString(&c.S3Prefix, j.S3Prefix)
	setBool(&c.TimelockDrand, j.TimelockDrand)
	setString(&c.DrandURL, j.DrandURL)
	setString(&c.DrandChain, j.DrandChain)
	setString(&c.EndpointAddrGRPC, j.EndpointAddrGRPC)
	setDuration(&c.PendingRetryInterval, j.PendingRetryInterval)
	setString(&c.LogLevel, j.LogLevel)
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
