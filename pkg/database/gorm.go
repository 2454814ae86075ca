package database

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Pool sizes the connection pool. Knowledge search is read-heavy and short,
// so the defaults favour many idle connections over long lifetimes.
type Pool struct {
	MaxIdle     int
	MaxOpen     int
	MaxLifetime time.Duration
}

var DefaultPool = Pool{MaxIdle: 10, MaxOpen: 50, MaxLifetime: 30 * time.Minute}

type Option func(*settings)

type settings struct {
	pool   Pool
	logger logger.Interface
}

func WithPool(p Pool) Option {
	return func(s *settings) { s.pool = p }
}

// WithLogger replaces the stdout SQL logger, e.g. logger.Discard in tools
func WithLogger(l logger.Interface) Option {
	return func(s *settings) { s.logger = l }
}

func sqlLogger(isProd bool) logger.Interface {
	level := logger.Info
	if isProd {
		level = logger.Warn
	}
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             500 * time.Millisecond, // retrieval sits on the request path
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true, // embeddings make parameter dumps unreadable
			Colorful:                  !isProd,
		},
	)
}

func NewGormDBFromDSN(dsn string, isProd bool, opts ...Option) (*gorm.DB, error) {
	s := settings{pool: DefaultPool, logger: sqlLogger(isProd)}
	for _, opt := range opts {
		opt(&s)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: s.logger})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("access connection pool: %w", err)
	}
	sqlDB.SetMaxIdleConns(s.pool.MaxIdle)
	sqlDB.SetMaxOpenConns(s.pool.MaxOpen)
	sqlDB.SetConnMaxLifetime(s.pool.MaxLifetime)

	return db, nil
}

// EnableVector installs the pgvector extension
func EnableVector(db *gorm.DB) error {
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return fmt.Errorf("enable pgvector: %w", err)
	}
	return nil
}

// Ping checks the pool can reach the server
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
