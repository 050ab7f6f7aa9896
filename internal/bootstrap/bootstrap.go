// Package bootstrap wires the pipeline from a config.Config. The daemon and
// the CLI share it so both see the same stores and backends.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/ordvault/internal/articles"
	"github.com/dmitrijs2005/ordvault/internal/attest"
	"github.com/dmitrijs2005/ordvault/internal/blobstore"
	"github.com/dmitrijs2005/ordvault/internal/common"
	"github.com/dmitrijs2005/ordvault/internal/config"
	"github.com/dmitrijs2005/ordvault/internal/cryptox"
	"github.com/dmitrijs2005/ordvault/internal/filex"
	"github.com/dmitrijs2005/ordvault/internal/inscription"
	"github.com/dmitrijs2005/ordvault/internal/ledgerrpc"
	"github.com/dmitrijs2005/ordvault/internal/logging"
	"github.com/dmitrijs2005/ordvault/internal/ordersapi"
	"github.com/dmitrijs2005/ordvault/internal/publish"
	"github.com/dmitrijs2005/ordvault/internal/storage"
)

type Components struct {
	Inscriptions *inscription.Service
	Publisher    *publish.Service
	Articles     *articles.FileStore
	Store        storage.Repository
	Blobs        *blobstore.S3Store
	Signer       *attest.Signer
	Locker       *cryptox.TimeLocker

	db *sql.DB
}

// seams for tests
var (
	openSQL    = storage.OpenSQL
	newS3Store = blobstore.NewS3Store
)

// New builds every component named by cfg. The caller must Close the result.
func New(ctx context.Context, cfg *config.Config, log logging.Logger) (*Components, error) {
	dataDir, err := filex.EnsureDir(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	cfg.DataDir = dataDir
	if _, err := filex.EnsureDir(cfg.InscriptionsPath()); err != nil {
		return nil, err
	}

	c := &Components{}

	if cfg.DatabaseDSN != "" {
		db, repo, err := openSQL(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		c.db, c.Store = db, repo
	} else {
		c.Store = storage.NewFileRepository(cfg.InscriptionStorePath())
	}

	opts := []inscription.Option{inscription.WithCache(storage.NewFileCache(cfg.InscriptionsPath()))}

	if cfg.S3Bucket != "" {
		blobs, err := newS3Store(ctx, blobstore.Config{
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
		})
		if err != nil {
			c.Close()
			return nil, err
		}
		c.Blobs = blobs
		opts = append(opts, inscription.WithBlobStore(blobs))
	}

	if cfg.AttestationKey != "" {
		signer, err := attest.NewSigner(cfg.AttestationKey)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.Signer = signer
		opts = append(opts, inscription.WithSigner(signer))
	}

	submitter, err := newSubmitter(ctx, cfg, log)
	if err != nil {
		c.Close()
		return nil, err
	}

	iopts := cfg.InscriptionOptions()
	if submitter == nil {
		iopts.Mock = true
	}
	c.Inscriptions, err = inscription.NewService(iopts, c.Store, submitter, log, opts...)
	if err != nil {
		c.Close()
		return nil, err
	}

	var authority cryptox.TimeAuthority
	if cfg.TimelockDrand {
		authority = cryptox.NewDrandClock(cfg.DrandURL, cfg.DrandChain, nil)
	}
	c.Locker = cryptox.NewTimeLocker(authority)

	c.Articles = articles.NewFileStore(cfg.ArticlesPath())
	c.Publisher = publish.NewService(c.Inscriptions, c.Articles, c.Locker, log)

	log.Info(ctx, "pipeline ready",
		"network", cfg.Network, "mock", c.Inscriptions.MockMode(), "backend", cfg.Backend,
		"sql_store", c.db != nil, "blob_store", c.Blobs != nil, "attested", c.Signer != nil,
		"time_authority", c.Locker.Authority())
	return c, nil
}

// newSubmitter returns the real-mode ledger backend, or nil for mock mode.
func newSubmitter(ctx context.Context, cfg *config.Config, log logging.Logger) (inscription.Submitter, error) {
	if cfg.Mock {
		return nil, nil
	}

	switch cfg.Backend {
	case config.BackendRPC:
		rpc, err := ledgerrpc.NewClient(ledgerrpc.Config{
			URL:      cfg.RPCURL,
			User:     cfg.RPCUser,
			Password: cfg.RPCPassword,
			Wallet:   cfg.RPCWallet,
		})
		if err != nil {
			return nil, err
		}
		return ledgerrpc.NewSubmitter(rpc, cfg.MinConfirmations), nil

	default:
		if cfg.OrdersAPIKey == "" {
			return nil, fmt.Errorf("%w: ORDINALS_API_KEY not set; set it or enable MOCK_INSCRIPTIONS=true", common.ErrValidation)
		}
		// The public order service only inscribes on mainnet.
		if cfg.Network != inscription.NetworkMainnet && cfg.OrdersAPIURL == "" {
			log.Warn(ctx, "order service only supports mainnet, falling back to mock inscriptions", "network", cfg.Network)
			return nil, nil
		}
		return ordersapi.NewClient(ordersapi.Config{
			APIKey:  cfg.OrdersAPIKey,
			Network: cfg.Network,
			BaseURL: cfg.OrdersAPIURL,
		})
	}
}

func (c *Components) Close() error {
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	if err != nil && !errors.Is(err, sql.ErrConnDone) {
		return err
	}
	return nil
}

// DB returns the SQL handle when the inscription store is SQL backed.
func (c *Components) DB() *sql.DB { return c.db }
