package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/llmify/llmstxt-service/common/config"
	"github.com/llmify/llmstxt-service/common/redis"
	"github.com/llmify/llmstxt-service/repository"

	zerolog "github.com/jackc/pgx-zerolog"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog/log"
)

// DB provides access to the database
type DB struct {
	Pool    *pgxpool.Pool
	Queries *repository.Queries
	Redis   *redis.RedisClient
}

// New creates a new DB instance
func New(pool *pgxpool.Pool, queries *repository.Queries, redis *redis.RedisClient) (*DB, error) {
	if pool == nil {
		return nil, errors.New("cannot use nil database pool")
	}
	if queries == nil {
		return nil, errors.New("cannot use nil queries")
	}
	return &DB{
		Pool:    pool,
		Queries: queries,
		Redis:   redis,
	}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// Ping checks if the database connection is alive
func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// SetupDatabase initializes the connection pool, queries and Redis client
func SetupDatabase(ctx context.Context, cfg config.Config) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.PgSql.ConnStr())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	poolConfig.MaxConns = 20
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	logger := zerolog.NewLogger(log.Logger)
	poolConfig.ConnConfig.Tracer = &tracelog.TraceLog{
		Logger:   logger,
		LogLevel: tracelog.LogLevelWarn,
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	queries := repository.New(pool)

	redisClient, err := redis.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating Redis client: %w", err)
	}

	dbConn, err := New(pool, queries, redisClient)
	if err != nil {
		return nil, fmt.Errorf("creating DB handler: %w", err)
	}

	return dbConn, nil
}
