// Package app builds the process-wide dependencies shared by the API server and the admin CLI.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/vcscsvcscs/rarecare-backend/internal/azure"
	"github.com/vcscsvcscs/rarecare-backend/internal/cache"
	"github.com/vcscsvcscs/rarecare-backend/internal/config"
	"github.com/vcscsvcscs/rarecare-backend/internal/repository"
	"github.com/vcscsvcscs/rarecare-backend/internal/service"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the zap logger described by cfg
func NewLogger(cfg config.LoggingConfig, environment string) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	zapCfg := zap.NewProductionConfig()
	if environment != "production" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = level
	zapCfg.Encoding = cfg.Format
	zapCfg.EncoderConfig.TimeKey = "timestamp"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return zapCfg.Build()
}

// OpenDatabase creates the pgx pool and checks that the database answers
func OpenDatabase(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Successfully connected to database",
		zap.Int32("max_conns", cfg.MaxConns),
		zap.Int32("min_conns", cfg.MinConns),
	)
	return pool, nil
}

// Migrate applies pending embedded migrations and returns their versions
func Migrate(ctx context.Context, databaseURL string, logger *zap.Logger) ([]string, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	migrator, err := repository.NewMigrator(db, logger)
	if err != nil {
		return nil, err
	}
	return migrator.Up(ctx)
}

// NewModel returns the chat model used for insights, or nil when none is configured
func NewModel(cfg config.OpenAIConfig, logger *zap.Logger) (service.ChatCompleter, error) {
	if !cfg.Enabled() {
		logger.Info("Azure OpenAI not configured, insights use the built-in rules")
		return nil, nil
	}

	client, err := azure.NewOpenAIClient(cfg.Endpoint, cfg.APIKey, cfg.Deployment, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Azure OpenAI client: %w", err)
	}
	return client, nil
}

// NewArchive returns the blob archive for raw imports, or nil when storage is not configured
func NewArchive(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (azure.ImportArchive, error) {
	if !cfg.Enabled() {
		logger.Info("Azure Blob Storage not configured, raw imports are not archived")
		return nil, nil
	}

	var (
		client *azure.BlobStorageClient
		err    error
	)
	if cfg.ConnectionString != "" {
		client, err = azure.NewBlobStorageClientFromConnectionString(cfg.ConnectionString, cfg.ImportContainer, logger)
	} else {
		client, err = azure.NewBlobStorageClient(cfg.AccountName, cfg.AccountKey, cfg.BlobEndpoint, cfg.ImportContainer, logger)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Azure Blob Storage client: %w", err)
	}

	if err := client.EnsureContainer(ctx); err != nil {
		return nil, fmt.Errorf("failed to prepare import container: %w", err)
	}
	return client, nil
}

// NewStatsCache returns the redis statistics cache and its client, or a no-op cache when redis is not configured
func NewStatsCache(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (cache.StatsCache, *redis.Client) {
	if !cfg.Enabled() {
		return cache.NopStatsCache{}, nil
	}

	client := cache.NewRedisClient(cfg.Addr, cfg.Password, cfg.DB)
	if err := client.Ping(ctx).Err(); err != nil {
		// reads fall through to the database until redis answers
		logger.Warn("redis unreachable at startup", zap.Error(err), zap.String("addr", cfg.Addr))
	}
	return cache.NewRedisStatsCache(client, cfg.StatsTTL, logger), client
}

// Repositories groups the postgres repositories
type Repositories struct {
	Tracking    *repository.TrackingRepository
	Notes       *repository.NoteRepository
	Messages    *repository.MessageRepository
	Rarescope   *repository.RarescopeRepository
	PatientData *repository.PatientDataRepository
}

// NewRepositories creates every repository on pool
func NewRepositories(pool *pgxpool.Pool, logger *zap.Logger) Repositories {
	return Repositories{
		Tracking:    repository.NewTrackingRepository(pool, logger),
		Notes:       repository.NewNoteRepository(pool, logger),
		Messages:    repository.NewMessageRepository(pool, logger),
		Rarescope:   repository.NewRarescopeRepository(pool, logger),
		PatientData: repository.NewPatientDataRepository(pool, logger),
	}
}
