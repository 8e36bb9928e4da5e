package database

import (
	"context"
	"fmt"
	"sort"

	"github.com/apex/log"
	"github.com/jmoiron/sqlx"
)

// Migration represents a database migration
type Migration struct {
	Version    int
	Name       string
	Statements []string
}

// migrations is the ordered schema history of the local store
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_positions",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS positions (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				latitude REAL NOT NULL CHECK (latitude BETWEEN -90 AND 90),
				longitude REAL NOT NULL CHECK (longitude BETWEEN -180 AND 180),
				timestamp INTEGER NOT NULL,
				accuracy REAL NOT NULL CHECK (accuracy >= 0),
				uploaded INTEGER
			)`,
			`CREATE INDEX IF NOT EXISTS idx_positions_uploaded ON positions (uploaded)`,
			`CREATE INDEX IF NOT EXISTS idx_positions_timestamp ON positions (timestamp)`,
			`CREATE TRIGGER IF NOT EXISTS positions_immutable
				BEFORE UPDATE OF latitude, longitude, timestamp, accuracy ON positions
				BEGIN
					SELECT RAISE(ABORT, 'position fields are immutable');
				END`,
		},
	},
	{
		Version: 2,
		Name:    "create_catches",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS catches (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				string_id TEXT NOT NULL CHECK (length(trim(string_id)) > 0),
				lat REAL NOT NULL CHECK (lat BETWEEN -90 AND 90),
				lon REAL NOT NULL CHECK (lon BETWEEN -180 AND 180),
				timestamp INTEGER NOT NULL,
				uploaded INTEGER
			)`,
			`CREATE INDEX IF NOT EXISTS idx_catches_uploaded ON catches (uploaded)`,
			`CREATE INDEX IF NOT EXISTS idx_catches_timestamp ON catches (timestamp)`,
			`CREATE TABLE IF NOT EXISTS nephrops_catches (
				catch_id INTEGER PRIMARY KEY REFERENCES catches (id),
				num_small_cases REAL NOT NULL CHECK (num_small_cases >= 0),
				num_medium_cases REAL NOT NULL CHECK (num_medium_cases >= 0),
				num_large_cases REAL NOT NULL CHECK (num_large_cases >= 0),
				wt_returned REAL NOT NULL CHECK (wt_returned >= 0)
			)`,
			`CREATE TABLE IF NOT EXISTS lobster_crab_catches (
				catch_id INTEGER PRIMARY KEY REFERENCES catches (id),
				num_lobsters_retained INTEGER NOT NULL CHECK (num_lobsters_retained >= 0),
				num_lobsters_returned INTEGER NOT NULL CHECK (num_lobsters_returned >= 0),
				num_brown_retained INTEGER NOT NULL CHECK (num_brown_retained >= 0),
				num_brown_returned INTEGER NOT NULL CHECK (num_brown_returned >= 0),
				num_velvet_retained INTEGER NOT NULL CHECK (num_velvet_retained >= 0),
				num_velvet_returned INTEGER NOT NULL CHECK (num_velvet_returned >= 0)
			)`,
			`CREATE TABLE IF NOT EXISTS wrasse_catches (
				catch_id INTEGER PRIMARY KEY REFERENCES catches (id),
				num_retained INTEGER NOT NULL CHECK (num_retained >= 0),
				num_returned INTEGER NOT NULL CHECK (num_returned >= 0)
			)`,
		},
	},
	{
		Version: 3,
		Name:    "catch_detail_guards",
		Statements: []string{
			`CREATE TRIGGER IF NOT EXISTS catches_immutable_with_detail
				BEFORE UPDATE OF string_id, lat, lon, timestamp ON catches
				WHEN EXISTS (SELECT 1 FROM nephrops_catches WHERE catch_id = OLD.id)
				  OR EXISTS (SELECT 1 FROM lobster_crab_catches WHERE catch_id = OLD.id)
				  OR EXISTS (SELECT 1 FROM wrasse_catches WHERE catch_id = OLD.id)
				BEGIN
					SELECT RAISE(ABORT, 'catch with detail is immutable');
				END`,
			`CREATE TRIGGER IF NOT EXISTS nephrops_single_variant
				BEFORE INSERT ON nephrops_catches
				WHEN EXISTS (SELECT 1 FROM lobster_crab_catches WHERE catch_id = NEW.catch_id)
				  OR EXISTS (SELECT 1 FROM wrasse_catches WHERE catch_id = NEW.catch_id)
				BEGIN
					SELECT RAISE(ABORT, 'catch already has a detail');
				END`,
			`CREATE TRIGGER IF NOT EXISTS lobster_crab_single_variant
				BEFORE INSERT ON lobster_crab_catches
				WHEN EXISTS (SELECT 1 FROM nephrops_catches WHERE catch_id = NEW.catch_id)
				  OR EXISTS (SELECT 1 FROM wrasse_catches WHERE catch_id = NEW.catch_id)
				BEGIN
					SELECT RAISE(ABORT, 'catch already has a detail');
				END`,
			`CREATE TRIGGER IF NOT EXISTS wrasse_single_variant
				BEFORE INSERT ON wrasse_catches
				WHEN EXISTS (SELECT 1 FROM nephrops_catches WHERE catch_id = NEW.catch_id)
				  OR EXISTS (SELECT 1 FROM lobster_crab_catches WHERE catch_id = NEW.catch_id)
				BEGIN
					SELECT RAISE(ABORT, 'catch already has a detail');
				END`,
		},
	},
	{
		Version: 4,
		Name:    "create_settings",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS settings (
				key TEXT PRIMARY KEY,
				value TEXT NOT NULL,
				updated_at INTEGER NOT NULL
			)`,
		},
	},
}

// MigrationManager manages database migrations
type MigrationManager struct {
	db         *DB
	migrations []Migration
}

// NewMigrationManager creates a migration manager for the built-in schema
func NewMigrationManager(db *DB) *MigrationManager {
	sorted := append([]Migration(nil), migrations...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Version < sorted[j].Version
	})
	return &MigrationManager{db: db, migrations: sorted}
}

// InitMigrationsTable creates the migrations tracking table
func (m *MigrationManager) InitMigrationsTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	if _, err := m.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// GetAppliedMigrations returns the set of applied migration versions
func (m *MigrationManager) GetAppliedMigrations(ctx context.Context) (map[int]bool, error) {
	var versions []int
	if err := m.db.SelectContext(ctx, &versions, "SELECT version FROM migrations ORDER BY version"); err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}

	applied := make(map[int]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}
	return applied, nil
}

// ApplyMigration applies a single migration in its own transaction
func (m *MigrationManager) ApplyMigration(ctx context.Context, migration Migration) error {
	err := m.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		for _, stmt := range migration.Statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
			}
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO migrations (version, name) VALUES (?, ?)", migration.Version, migration.Name); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{"version": migration.Version, "name": migration.Name}).Info("applied migration")
	return nil
}

// RunMigrations runs all pending migrations
func (m *MigrationManager) RunMigrations(ctx context.Context) error {
	if err := m.InitMigrationsTable(ctx); err != nil {
		return err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	for _, migration := range m.migrations {
		if applied[migration.Version] {
			continue
		}
		if err := m.ApplyMigration(ctx, migration); err != nil {
			return err
		}
	}

	return nil
}
