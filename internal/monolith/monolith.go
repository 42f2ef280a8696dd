// Package monolith hosts the bounded-context modules in one process and
// owns the resources they share.
package monolith

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/fd1az/swap-quoter/internal/asset"
	"github.com/fd1az/swap-quoter/internal/config"
	"github.com/fd1az/swap-quoter/internal/di"
	"github.com/fd1az/swap-quoter/internal/logger"
)

// Keys of the shared services every module can resolve.
const (
	ConfigKey        = "config"
	LoggerKey        = "logger"
	AssetRegistryKey = "assetRegistry"
)

// Monolith is what a module sees while starting up.
type Monolith interface {
	Config() *config.Config
	Logger() logger.LoggerInterface
	Services() di.ServiceRegistry
	// OnClose hands c to the host; closers run in reverse order on Close.
	OnClose(c io.Closer)
}

// Module is one bounded context. RegisterServices only declares
// factories; Startup may resolve them and start background work.
type Module interface {
	RegisterServices(di.Container) error
	Startup(context.Context, Monolith) error
}

// App is the process-wide Monolith.
type App struct {
	cfg       *config.Config
	log       logger.LoggerInterface
	container di.Container
	closers   []io.Closer
}

// New seeds the container with config, logger and the well-known token
// registry. Nothing here dials a node.
func New(cfg *config.Config, log logger.LoggerInterface) *App {
	c := di.NewContainer()
	c.Register(ConfigKey, cfg)
	c.Register(LoggerKey, log)
	c.Register(AssetRegistryKey, asset.DefaultRegistry())
	return &App{cfg: cfg, log: log, container: c}
}

func (a *App) Config() *config.Config         { return a.cfg }
func (a *App) Logger() logger.LoggerInterface { return a.log }
func (a *App) Services() di.ServiceRegistry   { return a.container }
func (a *App) OnClose(c io.Closer)            { a.closers = append(a.closers, c) }

// Start registers every module before starting any of them, in order.
// On failure whatever was already opened is closed.
func (a *App) Start(ctx context.Context, modules ...Module) error {
	for _, m := range modules {
		if err := m.RegisterServices(a.container); err != nil {
			return errors.Join(fmt.Errorf("register %T: %w", m, err), a.Close())
		}
	}
	for _, m := range modules {
		if err := m.Startup(ctx, a); err != nil {
			return errors.Join(fmt.Errorf("start %T: %w", m, err), a.Close())
		}
	}
	return nil
}

// Close releases registered resources, last opened first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
