package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/prohmpiriya/multicore-crm/backend-auth/internal/di"
	"github.com/prohmpiriya/multicore-crm/backend-auth/internal/repository"
	"github.com/prohmpiriya/multicore-crm/backend-auth/internal/router"
	"github.com/prohmpiriya/multicore-crm/backend-auth/internal/service"
	"github.com/prohmpiriya/multicore-crm/pkg/config"
	"github.com/prohmpiriya/multicore-crm/pkg/database"
	"github.com/prohmpiriya/multicore-crm/pkg/kafka"
	"github.com/prohmpiriya/multicore-crm/pkg/logger"
	"github.com/prohmpiriya/multicore-crm/pkg/middleware"
	"github.com/prohmpiriya/multicore-crm/pkg/password"
	pkgredis "github.com/prohmpiriya/multicore-crm/pkg/redis"
	"github.com/prohmpiriya/multicore-crm/pkg/saga"
	"github.com/prohmpiriya/multicore-crm/pkg/telemetry"
	"github.com/prohmpiriya/multicore-crm/pkg/token"
)

// flowHistorySize caps how many provisioning flows the in-process store keeps
const flowHistorySize = 10000

var configPath string

var rootCmd = &cobra.Command{
	Use:          "crm-auth",
	Short:        "Multi-tenant CRM authentication and provisioning service",
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the PostgreSQL schema",
	RunE:  runMigrate,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a .env file (environment only when empty)")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadWithPath(configPath)
	}
	return config.Load()
}

func initLogger(cfg *config.Config) (*logger.Logger, error) {
	logCfg := &logger.Config{
		Level:       cfg.App.LogLevel,
		ServiceName: cfg.App.Name,
		Development: cfg.IsDevelopment(),
		OutputPath:  "stdout",
	}
	if cfg.OTel.Enabled {
		logCfg.OTLPEndpoint = cfg.OTel.LogEndpoint
	}
	if err := logger.Init(logCfg); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger.Get(), nil
}

func postgresConfig(cfg *config.Config) *database.PostgresConfig {
	pg := database.DefaultPostgresConfig()
	pg.Host = cfg.Database.Host
	pg.Port = cfg.Database.Port
	pg.User = cfg.Database.User
	pg.Password = cfg.Database.Password
	pg.Database = cfg.Database.DBName
	pg.SSLMode = cfg.Database.SSLMode
	pg.MaxConns = int32(cfg.Database.MaxConns)
	pg.MinConns = int32(cfg.Database.MinConns)
	pg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	pg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime
	pg.TxTimeout = cfg.Database.TxTimeout
	return pg
}

// openStore returns the configured storage backend and its release func
func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (*repository.Store, func(), error) {
	if cfg.Storage.Driver == "memory" {
		log.Warn("Using in-memory storage, data is lost on restart")
		return repository.NewMemoryStore().Store(), func() {}, nil
	}

	db, err := database.NewPostgres(ctx, postgresConfig(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	log.Info("Connected to PostgreSQL",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.DBName),
	)
	return repository.NewPostgresStore(db), db.Close, nil
}

func openPublisher(ctx context.Context, cfg *config.Config, log *logger.Logger) (kafka.Publisher, error) {
	if !cfg.Kafka.Enabled {
		return kafka.NewLogPublisher(log), nil
	}
	producer, err := kafka.NewProducer(ctx, kafka.ProducerConfig{
		Brokers:  cfg.Kafka.Brokers,
		ClientID: cfg.Kafka.ClientID,
	})
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}
	log.Info("Connected to Kafka", zap.Strings("brokers", cfg.Kafka.Brokers))
	return producer, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := initLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
		SampleRatio:    cfg.OTel.SampleRatio,
	})
	if err != nil {
		log.Warn("Telemetry disabled", zap.Error(err))
		tel = &telemetry.Telemetry{}
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		_ = tel.Shutdown(shutdownCtx)
	}()

	metrics, err := telemetry.NewMetrics(telemetry.Meter())
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	publisher, err := openPublisher(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer publisher.Close()

	loginRate := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.Auth.LoginRateLimit,
		BurstSize:         cfg.Auth.LoginRateBurst,
		KeyPrefix:         "crm:login:",
	}
	if cfg.Redis.Enabled {
		rdb, err := pkgredis.NewClient(ctx, pkgredis.Config{
			Addr:         cfg.Redis.Addr(),
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			log.Warn("Redis unavailable, login rate limit is per instance", zap.Error(err))
		} else {
			defer rdb.Close()
			loginRate.RedisClient = rdb
		}
	}

	tokens := token.NewService(token.Config{
		Secret: cfg.JWT.Secret,
		TTL:    cfg.JWT.AccessTokenTTL,
		Issuer: cfg.JWT.Issuer,
	})

	container := di.NewContainer(&di.ContainerConfig{
		ServiceName: cfg.App.Name,
		Store:       store,
		Tokens:      tokens,
		Hasher:      password.NewBcryptHasher(0),
		Publisher:   publisher,
		Flows:       saga.NewStateMachine(saga.NewMemoryStateStore(flowHistorySize)),
		Metrics:     metrics,
		Log:         log,
		ServiceConfig: service.Config{
			LoginTimeout:      cfg.Auth.LoginTimeout,
			MinPasswordLength: cfg.Auth.MinPasswordSize,
			IdentityTopic:     cfg.Kafka.IdentityTopic,
			TenantTopic:       cfg.Kafka.TenantTopic,
		},
	})

	var audit *middleware.AuditLogger
	if cfg.Audit.Enabled {
		auditCfg := middleware.DefaultAuditConfig(store.Audit)
		auditCfg.BufferSize = cfg.Audit.BufferSize
		auditCfg.BatchSize = cfg.Audit.BatchSize
		auditCfg.FlushInterval = cfg.Audit.FlushInterval
		auditCfg.Log = log
		audit = middleware.NewAuditLogger(auditCfg)
		defer audit.Close()
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.CORS.AllowOrigins
	cors.AllowMethods = cfg.CORS.AllowMethods
	cors.MaxAge = cfg.CORS.MaxAge

	engine := router.New(router.Config{
		Handlers:       container.Handlers(),
		Verifier:       tokens,
		Resolver:       container.AuthService,
		Audit:          audit,
		CORS:           cors,
		LoginRate:      loginRate,
		TrustedProxies: cfg.Server.TrustedProxies,
		Metrics:        metrics,
		Log:            log,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Starting auth service",
			zap.String("addr", srv.Addr),
			zap.String("environment", cfg.App.Environment),
			zap.String("storage", cfg.Storage.Driver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
		return err
	}
	log.Info("Server exited")
	return nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := initLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Close()

	if cfg.Storage.Driver != "postgres" {
		return fmt.Errorf("migrate requires the postgres storage driver, got %q", cfg.Storage.Driver)
	}

	db, err := database.NewPostgres(cmd.Context(), postgresConfig(cfg))
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	for i, stmt := range repository.Schema {
		if err := db.Exec(cmd.Context(), stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	log.Info("Schema applied", zap.Int("statements", len(repository.Schema)))
	return nil
}
