// Package server runs the publication daemon: it wires the pipeline, serves
// gRPC health checks and periodically re-inscribes pending articles until it
// receives SIGINT or SIGTERM.
package server

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/ordvault/internal/bootstrap"
	"github.com/dmitrijs2005/ordvault/internal/config"
	"github.com/dmitrijs2005/ordvault/internal/logging"

	gs "github.com/dmitrijs2005/ordvault/internal/server/grpc"
)

// PendingRetrier re-inscribes pending articles.
type PendingRetrier interface {
	RetryPending(ctx context.Context) (int, error)
}

type App struct {
	config     *config.Config
	logger     logging.Logger
	components *bootstrap.Components
	retrier    PendingRetrier
	grpc       *gs.GRPCServer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(c.LogLevel, os.Stdout)

	components, err := bootstrap.New(ctx, c, logger)
	if err != nil {
		return nil, err
	}

	return &App{
		config:     c,
		logger:     logger,
		components: components,
		retrier:    components.Publisher,
		grpc:       gs.NewGRPCServer(c.EndpointAddrGRPC, logger),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.grpc.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// runPendingWorker retries pending articles every interval until ctx ends.
// A run that is still in progress when ctx ends is cancelled with it.
func (app *App) runPendingWorker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := app.retrier.RetryPending(ctx)
			if err != nil {
				app.logger.Warn(ctx, "pending retry finished with errors", "published", n, "error", err)
				continue
			}
			if n > 0 {
				app.logger.Info(ctx, "pending articles published", "count", n)
			}
		}
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "network", app.config.Network)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.runPendingWorker(ctx, app.config.PendingRetryInterval)
	}()

	app.grpc.SetServing(true)

	wg.Wait()

	if err := app.components.Close(); err != nil {
		app.logger.Error(context.Background(), "close stores", "error", err)
	}
	app.logger.Info(context.Background(), "App stopped")
}
