package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// DSN renders the lib/pq connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	return Open(cfg.DSN())
}

// Open connects the global pool to dsn.
func Open(dsn string) error {
	var err error
	DB, err = sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	if err = DB.Ping(); err != nil {
		DB.Close()
		DB = nil
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Connected to PostgreSQL")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// EnsureSchema applies the DDL for every table the keeper writes.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS farm_parameters (
			params_id SERIAL PRIMARY KEY,
			token_per_sec NUMERIC(78, 0) NOT NULL,
			diluting_repartition INTEGER NOT NULL,
			max_boost INTEGER NOT NULL,
			total_alloc_point BIGINT NOT NULL,
			reason VARCHAR(64) NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			activated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_farm_parameters_active ON farm_parameters(is_active, activated_at DESC);

		CREATE TABLE IF NOT EXISTS operation_journal (
			journal_id SERIAL PRIMARY KEY,
			operation_id UUID NOT NULL UNIQUE,
			operation_type VARCHAR(50) NOT NULL,
			pool_id BIGINT,
			account CHAR(42) NOT NULL,
			amount NUMERIC(78, 0),
			reward NUMERIC(78, 0),
			success BOOLEAN NOT NULL,
			message TEXT,
			operation_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_operation_journal_timestamp ON operation_journal(operation_timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_operation_journal_pool_id ON operation_journal(pool_id);
		CREATE INDEX IF NOT EXISTS idx_operation_journal_account ON operation_journal(account);

		CREATE TABLE IF NOT EXISTS ledger_snapshots (
			snapshot_id SERIAL PRIMARY KEY,
			cycle_number INTEGER NOT NULL,
			epoch BIGINT NOT NULL,
			ledger_time BIGINT NOT NULL,
			snapshot_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			farm JSONB NOT NULL,
			voter JSONB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_ledger_snapshots_timestamp ON ledger_snapshots(snapshot_timestamp DESC);

		-- Cycle counter table for persistent keeper cycle tracking
		CREATE TABLE IF NOT EXISTS cycle_counter (
			id INTEGER PRIMARY KEY DEFAULT 1,
			current_cycle INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT single_row_check CHECK (id = 1)
		);

		INSERT INTO cycle_counter (id, current_cycle)
		VALUES (1, 0)
		ON CONFLICT (id) DO NOTHING;
	`
	if _, err := DB.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured.")
	return nil
}

// DropSchema removes every table created by EnsureSchema.
func DropSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	_, err := DB.Exec(`
		DROP TABLE IF EXISTS ledger_snapshots CASCADE;
		DROP TABLE IF EXISTS operation_journal CASCADE;
		DROP TABLE IF EXISTS farm_parameters CASCADE;
		DROP TABLE IF EXISTS cycle_counter CASCADE;
	`)
	if err != nil {
		return fmt.Errorf("failed to drop schema: %w", err)
	}
	log.Warn().Msg("Database schema dropped")
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database connection is nil")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
