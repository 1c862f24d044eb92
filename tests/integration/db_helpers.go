package integration

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tmcfarland/authgate/internal/database"
	"github.com/tmcfarland/authgate/internal/repositories"
)

// TestDB manages PostgreSQL testcontainer and database operations
type TestDB struct {
	Container  testcontainers.Container
	ConnString string
	Pool       *pgxpool.Pool
	DB         *database.DB
}

// SetupTestDatabase creates a PostgreSQL testcontainer, runs migrations, returns TestDB
func SetupTestDatabase(ctx context.Context) (*TestDB, error) {
	// Create PostgreSQL container
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("authgate"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	// Get connection string
	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	// Create connection pool
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Run migrations
	if err := runMigrations(ctx, pool); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Create database.DB wrapper
	dbWrapper := &database.DB{
		Pool: pool,
	}

	return &TestDB{
		Container:  container,
		ConnString: connStr,
		Pool:       pool,
		DB:         dbWrapper,
	}, nil
}

// runMigrations executes all goose migrations
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	// Get absolute path to migrations directory
	migrationsDir, err := filepath.Abs("../../migrations")
	if err != nil {
		return fmt.Errorf("failed to get migrations path: %w", err)
	}

	// Suppress goose logs
	goose.SetLogger(log.New(io.Discard, "", 0))

	// Goose needs stdlib DB connection
	// Use stdlib adapter from pgx
	sqlDB := stdlib.OpenDB(*pool.Config().ConnConfig)
	defer sqlDB.Close()

	// Run migrations on the stdlib DB
	if err := goose.UpContext(ctx, sqlDB, migrationsDir); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}

// Teardown stops the container and closes the connection pool
func (db *TestDB) Teardown(ctx context.Context) error {
	if db.Pool != nil {
		db.Pool.Close()
	}
	if db.Container != nil {
		return db.Container.Terminate(ctx)
	}
	return nil
}

// CleanupTables truncates all tables for test isolation
func (db *TestDB) CleanupTables(ctx context.Context) error {
	tables := []string{
		"gate_states",
		"auth_attempts",
	}

	for _, table := range tables {
		if _, err := db.Pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return nil
}

// InitializeRepositories creates repository instances from the database wrapper
func InitializeRepositories(db *database.DB, retention time.Duration) (
	*repositories.StateRepository,
	*repositories.AttemptLogRepository,
) {
	return repositories.NewStateRepository(db, retention),
		repositories.NewAttemptLogRepository(db)
}

// SeedLockedState inserts a state row with an active lockout
func SeedLockedState(ctx context.Context, pool *pgxpool.Pool, email string, attempts int, lockedFor time.Duration) error {
	query := `
		INSERT INTO gate_states (email, attempts, window_start, lockout_until, updated_at)
		VALUES ($1, $2, NOW(), NOW() + $3::interval, NOW())
	`

	interval := fmt.Sprintf("%d seconds", int(lockedFor.Seconds()))
	if _, err := pool.Exec(ctx, query, email, attempts, interval); err != nil {
		return fmt.Errorf("failed to seed locked state: %w", err)
	}
	return nil
}

// SeedStaleState inserts an unlocked state row last touched age ago
func SeedStaleState(ctx context.Context, pool *pgxpool.Pool, email string, attempts int, age time.Duration) error {
	query := `
		INSERT INTO gate_states (email, attempts, window_start, lockout_until, updated_at)
		VALUES ($1, $2, NOW() - $3::interval, NULL, NOW() - $3::interval)
	`

	interval := fmt.Sprintf("%d seconds", int(age.Seconds()))
	if _, err := pool.Exec(ctx, query, email, attempts, interval); err != nil {
		return fmt.Errorf("failed to seed stale state: %w", err)
	}
	return nil
}

// CountAttemptRows returns the number of auth_attempts rows for an email
func CountAttemptRows(ctx context.Context, pool *pgxpool.Pool, email string) (int, error) {
	var count int
	err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM auth_attempts WHERE email = $1`, email).Scan(&count)
	return count, err
}
