package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/tmachado/splitsync/internal/aggregate"
	"github.com/tmachado/splitsync/internal/bus"
	"github.com/tmachado/splitsync/internal/config"
	"github.com/tmachado/splitsync/internal/lock"
	"github.com/tmachado/splitsync/internal/logging"
	"github.com/tmachado/splitsync/internal/mutate"
	"github.com/tmachado/splitsync/internal/profile"
	"github.com/tmachado/splitsync/internal/remote"
	"github.com/tmachado/splitsync/internal/status"
	"github.com/tmachado/splitsync/internal/store"
	intsync "github.com/tmachado/splitsync/internal/sync"
	"github.com/tmachado/splitsync/internal/uploader"
	"github.com/tmachado/splitsync/internal/watch"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	ProfileName string
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideRemote,
			provideMutator,
			provideReconciler,
			provideBalancer,
			provideCoordinator,
			provideWatcher,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig() *config.Config {
	return config.LoadOrDefault(profile.ConfigPath())
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.ProfileName), p.ProfileName)
}

func provideBus(logger *zap.Logger) *bus.Bus {
	return bus.New(logger)
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

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := profile.DBPath(p.ProfileName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideRemote(cfg *config.Config, logger *zap.Logger) (remote.Client, error) {
	switch cfg.Remote.Backend {
	case "memory":
		logger.Warn("using in-memory remote backend; uploads do not leave this process")
		return remote.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown remote backend %q", cfg.Remote.Backend)
	}
}

func provideMutator(db *store.DB, b *bus.Bus, logger *zap.Logger) *mutate.Mutator {
	return mutate.New(db, b, logger)
}

func provideReconciler(db *store.DB, client remote.Client, b *bus.Bus, logger *zap.Logger) *intsync.Reconciler {
	return intsync.NewReconciler(db, client, b, logger)
}

func provideBalancer(db *store.DB, m *mutate.Mutator, b *bus.Bus, logger *zap.Logger) *aggregate.Balancer {
	return aggregate.NewBalancer(db, m, b, logger)
}

func provideCoordinator(cfg *config.Config, db *store.DB, client remote.Client, b *bus.Bus, machine *status.Machine, logger *zap.Logger) *uploader.Coordinator {
	return uploader.New(db, client, b, machine, logger, uploader.Options{
		OwnerID:                cfg.OwnerID,
		Interval:               time.Duration(cfg.Daemon.DrainIntervalMS) * time.Millisecond,
		Timeout:                time.Duration(cfg.Daemon.UploadTimeoutMS) * time.Millisecond,
		BatchSize:              cfg.Daemon.BatchSize,
		MaxConsecutiveFailures: cfg.Daemon.MaxConsecutiveFailures,
	})
}

func provideWatcher(db *store.DB, b *bus.Bus, logger *zap.Logger) *watch.Watcher {
	return watch.New(db, b, logger)
}

func registerLifecycle(lc fx.Lifecycle, cfg *config.Config, lk *lock.Lock, db *store.DB, b *bus.Bus, machine *status.Machine, reconciler *intsync.Reconciler, balancer *aggregate.Balancer, coordinator *uploader.Coordinator, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Balancer first, so it sees events from the initial pull.
			balancer.Start(context.Background())
			coordinator.Start(context.Background())

			if cfg.OwnerID == "" {
				logger.Info("no owner configured, skipping initial pull")
				_ = machine.Transition(status.Idle)
				return nil
			}

			_ = machine.Transition(status.Reconciling)
			go func() {
				if err := reconciler.Pull(context.Background(), cfg.OwnerID); err != nil {
					logger.Error("initial pull failed", zap.Error(err))
					_ = machine.Transition(status.Offline)
					return
				}
				_ = machine.Transition(status.Idle)
			}()
			return nil
		},
		OnStop: func(_ context.Context) error {
			coordinator.Stop()
			balancer.Stop()
			_ = machine.Transition(status.Stopped)
			b.Close()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
