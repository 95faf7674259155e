package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/emilythestrangee/lokniti/backend/internal/config"
	"github.com/emilythestrangee/lokniti/backend/internal/logging"
	"github.com/emilythestrangee/lokniti/backend/internal/models"
)

// Service represents a service that interacts with a database.
type Service interface {
	// Health returns a map of health status information.
	// The keys and values in the map are service-specific.
	Health() map[string]string

	// Migrate creates or updates the schema for every model.
	Migrate() error

	// Close terminates the database connection.
	// It returns an error if the connection cannot be closed.
	Close() error
	GetDB() *gorm.DB
}

type service struct {
	db   *gorm.DB
	name string
}

// GormConfig is the gorm configuration shared by every dialect. Foreign key
// constraints are not emitted because posts and their sub-entities reference
// each other.
func GormConfig(logLevel string) *gorm.Config {
	return &gorm.Config{
		Logger: logging.NewGormLogger(logLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	}
}

// New opens a PostgreSQL connection pool. The caller owns the returned
// service and must Close it on shutdown.
func New(cfg config.DatabaseConfig) (Service, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), GormConfig(cfg.LogLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	logging.Info().Str("host", cfg.Host).Str("database", cfg.Name).Msg("database connected")

	return &service{db: db, name: cfg.Name}, nil
}

// Wrap adapts an already opened gorm handle, as used by tests.
func Wrap(db *gorm.DB, name string) Service {
	return &service{db: db, name: name}
}

func (s *service) Migrate() error {
	if err := s.db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	logging.Info().Msg("database migrations completed")
	return nil
}

func (s *service) GetDB() *gorm.DB {
	return s.db
}

// Health checks the health of the database connection by pinging the database.
func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stats := make(map[string]string)

	sqlDB, err := s.db.DB()
	if err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db error: %v", err)
		return stats
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	dbStats := sqlDB.Stats()
	stats["status"] = "up"
	stats["message"] = "It's healthy"
	stats["database"] = s.name
	stats["open_connections"] = strconv.Itoa(dbStats.OpenConnections)
	stats["in_use"] = strconv.Itoa(dbStats.InUse)
	stats["idle"] = strconv.Itoa(dbStats.Idle)
	stats["wait_count"] = strconv.FormatInt(dbStats.WaitCount, 10)
	stats["wait_duration"] = dbStats.WaitDuration.String()

	// Requests queue for connections once the pool is exhausted.
	if limit := dbStats.MaxOpenConnections; limit > 0 && dbStats.InUse >= limit {
		stats["message"] = "The connection pool is exhausted"
		logging.Warn().Int("in_use", dbStats.InUse).Int("max_open", limit).Msg("database pool exhausted")
	}

	return stats
}

// Close closes the database connection.
func (s *service) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	logging.Info().Str("database", s.name).Msg("disconnected from database")
	return sqlDB.Close()
}

// IsUniqueViolation reports whether err came from a unique or primary key
// constraint, whichever dialect produced it.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
