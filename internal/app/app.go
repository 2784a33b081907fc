// Package app wires Progress Hub together: stores, day locker, event bus,
// command and query handlers. Both the HTTP service and the operator CLI
// build their dependency graph here.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/alem-hub/progress-hub/config"
	"github.com/alem-hub/progress-hub/internal/application/command"
	"github.com/alem-hub/progress-hub/internal/application/eventhandler"
	"github.com/alem-hub/progress-hub/internal/application/query"
	"github.com/alem-hub/progress-hub/internal/domain/progress"
	"github.com/alem-hub/progress-hub/internal/domain/shared"
	"github.com/alem-hub/progress-hub/internal/infrastructure/messaging"
	"github.com/alem-hub/progress-hub/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/progress-hub/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/progress-hub/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/progress-hub/internal/interface/http/handlers"
	"github.com/alem-hub/progress-hub/pkg/logger"
	"github.com/alem-hub/progress-hub/pkg/timeutil"
)

// Stores groups the persistence ports.
type Stores struct {
	Events    progress.EventStore
	Summaries progress.SummaryStore
	Rewards   progress.RewardStore
	Students  progress.StudentStore
	Locker    progress.DayLocker
}

// App holds the fully wired application.
type App struct {
	Config *config.Config
	Logger *logger.Logger
	Clock  timeutil.Clock

	Stores     Stores
	DB         *postgres.Connection // nil with the memory store
	Redis      *redis.Client        // nil when Redis is disabled
	Bus        *messaging.InMemoryEventBus
	Dispatcher *messaging.Dispatcher
	Health     *handlers.CompositeHealthChecker
	Validator  *progress.Validator

	// Commands
	Ingest    *command.IngestEventHandler
	Recompute *command.RecomputeDayHandler

	// Queries
	Student    *query.GetStudentHandler
	Streak     *query.GetStreakHandler
	Confidence *query.GetConfidenceHandler
	Rewards    *query.SettleRewardsHandler
	Dashboard  *query.GetDashboardHandler
	Analysis   *query.GetTopicAnalysisHandler

	closers []func()
}

// Options tweaks wiring for callers other than the HTTP service.
type Options struct {
	// Clock overrides the system clock.
	Clock timeutil.Clock

	// SkipMigrations leaves the schema untouched even if AutoMigrate is set.
	SkipMigrations bool
}

// NewLogger builds the process logger from configuration.
func NewLogger(cfg config.ObservabilityConfig, service string) *logger.Logger {
	return logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		AddCaller: true,
	}).With(logger.String("service", service))
}

// New wires the application. The caller must call Close.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, opts Options) (*App, error) {
	if log == nil {
		log = logger.Nop()
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.SystemClock()
	}

	a := &App{
		Config: cfg,
		Logger: log,
		Clock:  opts.Clock,
		Health: handlers.NewCompositeHealthChecker(cfg.App.Version),
	}

	if err := a.initStores(ctx, opts); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initLocker(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initHandlers(); err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// 1. STORES
// ─────────────────────────────────────────────────────────────────────────────

func (a *App) initStores(ctx context.Context, opts Options) error {
	if a.Config.App.Store == config.StoreMemory {
		a.Logger.Warn("using in-memory store, data is lost on restart")
		store := memory.NewStore()
		a.Stores = Stores{
			Events:    store.Events(),
			Summaries: store.Summaries(),
			Rewards:   store.Rewards(),
			Students:  store.Students(),
		}
		return nil
	}

	conn, err := Connect(ctx, a.Config.Database, a.Logger)
	if err != nil {
		return err
	}
	a.DB = conn
	a.closers = append(a.closers, conn.Close)
	a.Health.AddCheck("postgres", handlers.NewPingCheck(conn))

	if a.Config.Database.AutoMigrate && !opts.SkipMigrations {
		applied, err := postgres.NewMigrator(conn).Migrate(ctx)
		if err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		a.Logger.Info("database schema is up to date", logger.Int("applied", applied))
	}

	a.Stores = Stores{
		Events:    postgres.NewEventRepository(conn),
		Summaries: postgres.NewSummaryRepository(conn),
		Rewards:   postgres.NewRewardRepository(conn),
		Students:  postgres.NewStudentRepository(conn),
	}
	return nil
}

// Connect opens the Postgres pool described by cfg.
func Connect(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*postgres.Connection, error) {
	pgCfg := postgres.DefaultConfig()
	pgCfg.URL = cfg.URL
	pgCfg.Host = cfg.Host
	pgCfg.Port = cfg.Port
	pgCfg.Database = cfg.Name
	pgCfg.User = cfg.User
	pgCfg.Password = cfg.Password
	pgCfg.SSLMode = cfg.SSLMode
	pgCfg.MaxConns = int32(cfg.MaxConns)
	pgCfg.MinConns = int32(cfg.MinConns)
	pgCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	pgCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime
	pgCfg.ConnectAttempts = uint(cfg.ConnectAttempts)
	pgCfg.ConnectRetryDelay = cfg.ConnectRetryDelay

	conn, err := postgres.NewConnection(ctx, pgCfg, log)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return conn, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// 2. DAY LOCKER
// ─────────────────────────────────────────────────────────────────────────────

func (a *App) initLocker(ctx context.Context) error {
	rc := a.Config.Redis
	if rc.Disabled {
		a.Stores.Locker = memory.NewDayLocker()
		return nil
	}

	redisCfg := redis.DefaultConfig()
	redisCfg.Host = rc.Host
	redisCfg.Port = rc.Port
	redisCfg.Password = rc.Password
	redisCfg.DB = rc.DB
	redisCfg.PoolSize = rc.PoolSize
	redisCfg.MinIdleConns = rc.MinIdleConns
	redisCfg.DialTimeout = rc.DialTimeout
	redisCfg.ReadTimeout = rc.ReadTimeout
	redisCfg.WriteTimeout = rc.WriteTimeout
	redisCfg.KeyPrefix = rc.KeyPrefix
	if rc.ConnectAttempts > 0 {
		redisCfg.ConnectAttempts = uint(rc.ConnectAttempts)
	}

	client, err := redis.NewClient(ctx, redisCfg, a.Logger)
	if err != nil {
		if a.Config.IsProduction() {
			return fmt.Errorf("connect to redis: %w", err)
		}
		a.Logger.Warn("redis unavailable, falling back to in-process day locks", logger.Err(err))
		a.Stores.Locker = memory.NewDayLocker()
		return nil
	}

	a.Redis = client
	a.closers = append(a.closers, func() { _ = client.Close() })
	a.Health.AddCheck("redis", handlers.NewPingCheck(client))
	a.Stores.Locker = redis.NewDayLocker(client, redis.DayLockerConfig{
		TTL:           rc.LockTTL,
		RetryInterval: rc.LockRetryInterval,
		MaxWait:       rc.LockMaxWait,
	}, a.Logger)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// 3. EVENT BUS, COMMANDS, QUERIES, EVENT HANDLERS
// ─────────────────────────────────────────────────────────────────────────────

func (a *App) initHandlers() error {
	ec := a.Config.Events

	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.AsyncMode = ec.AsyncMode
	busCfg.WorkerPoolSize = ec.Workers
	busCfg.Logger = a.Logger
	a.Bus = messaging.NewInMemoryEventBus(busCfg)
	a.closers = append(a.closers, func() { _ = a.Bus.Close() })

	a.Dispatcher = messaging.NewDispatcher(messaging.DispatcherConfig{
		Bus: a.Bus,
		RetryConfig: messaging.RetryConfig{
			Attempts:       uint(ec.RetryAttempts),
			InitialBackoff: ec.RetryBackoff,
			MaxBackoff:     5 * time.Second,
		},
		DeadLetterQueueSize: ec.DeadLetterSize,
		Logger:              a.Logger,
	})
	// Stop runs after the bus has drained so pending retries can finish.
	a.closers = append([]func(){a.Dispatcher.Stop}, a.closers...)

	validator, err := progress.NewValidator()
	if err != nil {
		return fmt.Errorf("build validator: %w", err)
	}
	a.Validator = validator

	s := a.Stores
	a.Recompute = command.NewRecomputeDayHandler(s.Events, s.Summaries, s.Locker, a.Bus, a.Logger)
	a.Ingest = command.NewIngestEventHandler(validator, s.Students, s.Events, a.Recompute, a.Bus, a.Logger,
		command.IngestEventHandlerConfig{Clock: a.Clock})

	a.Student = query.NewGetStudentHandler(s.Students)
	a.Streak = query.NewGetStreakHandler(s.Summaries, a.Clock)
	a.Confidence = query.NewGetConfidenceHandler(s.Events, s.Summaries, nil)
	a.Rewards = query.NewSettleRewardsHandler(s.Students, s.Summaries, s.Rewards, a.Streak, a.Bus, a.Logger)
	a.Dashboard = query.NewGetDashboardHandler(s.Students, s.Events, s.Summaries, a.Rewards, nil, a.Clock, a.Logger)
	a.Analysis = query.NewGetTopicAnalysisHandler(s.Events)

	settle := eventhandler.NewOnSummaryRecomputedHandler(a.Rewards, a.Logger)
	if err := a.Dispatcher.Register(shared.EventSummaryRecomputed, "settle_rewards", settle.Handle); err != nil {
		return fmt.Errorf("register settle_rewards: %w", err)
	}
	if err := a.Dispatcher.Start(); err != nil {
		return fmt.Errorf("start dispatcher: %w", err)
	}
	if err := a.Bus.SubscribeAll(eventhandler.NewEventLogger(a.Logger).Handle); err != nil {
		return fmt.Errorf("subscribe event logger: %w", err)
	}

	return nil
}

// Metrics reports event bus and dead letter counters.
func (a *App) Metrics() map[string]interface{} {
	return map[string]interface{}{
		"event_bus":    a.Bus.Metrics().Snapshot(),
		"dead_letters": a.Dispatcher.DeadLetterQueue().Size(),
	}
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// IsMemoryStore reports whether data lives only in this process.
func (a *App) IsMemoryStore() bool {
	return a.DB == nil
}

// ErrNoDatabase is returned by operations that need Postgres.
var ErrNoDatabase = errors.New("postgres store is not configured")
