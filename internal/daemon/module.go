// Package daemon wires the tgsiftd process: it opens the cache and the remote
// source for one profile, builds the sync session on them and serves it over
// the profile's Unix socket.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/matheus3301/tgsift/internal/api"
	"github.com/matheus3301/tgsift/internal/bus"
	"github.com/matheus3301/tgsift/internal/config"
	"github.com/matheus3301/tgsift/internal/lock"
	"github.com/matheus3301/tgsift/internal/logging"
	"github.com/matheus3301/tgsift/internal/profile"
	"github.com/matheus3301/tgsift/internal/remote"
	"github.com/matheus3301/tgsift/internal/remote/export"
	"github.com/matheus3301/tgsift/internal/status"
	"github.com/matheus3301/tgsift/internal/store"
	intsync "github.com/matheus3301/tgsift/internal/sync"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// connectTimeout bounds the account lookup that decides READY or DEGRADED.
const connectTimeout = 30 * time.Second

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	ProfileName string
	Config      *config.Config
	SocketPath  string // optional override for testing; empty = use default
	// Remote replaces the configured remote source when set.
	Remote remote.Source
}

// Cache is the opened cache backend. Cache is nil when the profile runs
// without one, either by configuration or because opening it failed.
type Cache struct {
	Cache   store.Cache
	Driver  string
	OpenErr error
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	if p.Config == nil {
		p.Config = config.Default()
	}
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideCache,
			provideRemote,
			provideSession,
			provideService,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.ProfileName), p.ProfileName, p.Config.LogLevel)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.ProfileName); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.ProfileName))
	l, err := lock.Acquire(profile.Dir(p.ProfileName))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

// provideCache opens the configured backend. It depends on the lock so that
// two daemons never migrate the same database.
func provideCache(p Params, _ *lock.Lock, logger *zap.Logger) *Cache {
	driver := p.Config.Cache.Driver
	c, err := openCache(p, logger)
	if err != nil {
		logger.Warn("cache unavailable, serving remote only", zap.String("driver", driver), zap.Error(err))
		return &Cache{Driver: driver, OpenErr: err}
	}
	if c == nil {
		logger.Info("cache disabled")
	}
	return &Cache{Cache: c, Driver: driver}
}

func openCache(p Params, logger *zap.Logger) (store.Cache, error) {
	var (
		c      store.Cache
		result *store.MigrateResult
		err    error
	)
	switch p.Config.Cache.Driver {
	case config.DriverNone:
		return nil, nil
	case config.DriverPostgres:
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		pg, openErr := store.OpenPG(ctx, p.Config.Cache.PostgresURL)
		if openErr != nil {
			return nil, openErr
		}
		c = pg
		result, err = pg.Migrate()
	default:
		path := profile.CachePath(p.ProfileName)
		db, openErr := store.Open(path)
		if openErr != nil {
			return nil, openErr
		}
		c = db
		result, err = db.Migrate()
		logger.Info("store initialized", zap.String("path", path))
	}
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("migrate cache: %w", err)
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	return c, nil
}

// provideRemote opens the remote source behind a rate-limit governor. A
// source that cannot be opened is replaced by remote.Offline.
func provideRemote(p Params, logger *zap.Logger) *remote.Governor {
	src := p.Remote
	if src == nil {
		src = openRemote(p.Config.Remote, logger)
	}
	return remote.NewGovernor(src, p.Config.Remote.MaxRetries, logger.Named("remote"))
}

func openRemote(cfg config.RemoteConfig, logger *zap.Logger) remote.Source {
	if cfg.ExportPath == "" {
		logger.Warn("no remote source configured")
		return remote.Offline(errors.New("remote.export_path is not set"))
	}
	src, err := export.Open(cfg.ExportPath)
	if err != nil {
		logger.Warn("remote source unavailable", zap.String("path", cfg.ExportPath), zap.Error(err))
		return remote.Offline(err)
	}
	logger.Info("remote source opened", zap.String("export", cfg.ExportPath))
	return src
}

func provideSession(p Params, c *Cache, gov *remote.Governor, b *bus.Bus, logger *zap.Logger) *intsync.Session {
	sc := p.Config.Sync
	return intsync.NewSession(c.Cache, gov, b, logger.Named("sync"), intsync.Options{
		DialogTTL:      sc.DialogTTL,
		DefaultLimit:   sc.DefaultLimit,
		Oversample:     sc.Oversample,
		TopicScanDepth: sc.TopicScanDepth,
	})
}

func provideService(p Params, c *Cache, machine *status.Machine, s *intsync.Session, gov *remote.Governor) *api.Service {
	driver := c.Driver
	if c.Cache == nil {
		driver = config.DriverNone
	}
	return api.NewService(p.ProfileName, driver, machine, s, gov)
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, lk *lock.Lock, c *Cache, svc *api.Service, machine *status.Machine, logger *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
					_ = machine.Transition(status.Error, err.Error())
				}
			}()

			_ = machine.Transition(status.Connecting, "")
			go connect(ctx, svc, c, machine, logger)
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			srv.Stop(stopCtx)
			if c.Cache != nil {
				if err := c.Cache.Close(); err != nil {
					logger.Warn("error closing cache", zap.Error(err))
				}
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			_ = logger.Sync()
			return nil
		},
	})
}

// connect looks up the remote account and settles the status: READY when
// both the remote source and the cache work, DEGRADED otherwise.
func connect(ctx context.Context, svc *api.Service, c *Cache, machine *status.Machine, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	account, err := svc.Account(ctx)
	switch {
	case err != nil:
		logger.Warn("remote account lookup failed", zap.Error(err))
		_ = machine.Transition(status.Degraded, err.Error())
	case c.OpenErr != nil:
		logger.Info("connected", zap.String("account", account))
		_ = machine.Transition(status.Degraded, "cache unavailable: "+c.OpenErr.Error())
	default:
		logger.Info("connected", zap.String("account", account))
		_ = machine.Transition(status.Ready, "")
	}
}
