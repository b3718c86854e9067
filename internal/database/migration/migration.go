package migration

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

type migrationStep struct {
	Name string
	SQL  string
}

// Dialect bundles the schema statements of one SQL backend.
type Dialect struct {
	Name string
	// SentinelQuery returns a single boolean: whether the points table already exists.
	SentinelQuery string
	Steps         []migrationStep
}

// Postgres is the schema for the postgres backend.
var Postgres = Dialect{
	Name:          "postgres",
	SentinelQuery: "SELECT to_regclass('public.points') IS NOT NULL",
	Steps: []migrationStep{
		{
			Name: "create_table_points",
			SQL: `CREATE TABLE IF NOT EXISTS points (
  id        BYTEA  PRIMARY KEY,
  ts        BIGINT NOT NULL CHECK (ts >= 0),
  owner_id  TEXT   NOT NULL,
  qualifier TEXT   NOT NULL DEFAULT '',
  data      BYTEA  NOT NULL
);`,
		},
		{
			Name: "create_index_points_ts",
			SQL:  `CREATE INDEX IF NOT EXISTS idx_points_ts ON points (ts);`,
		},
		{
			Name: "create_index_points_owner_qualifier",
			SQL:  `CREATE INDEX IF NOT EXISTS idx_points_owner_qualifier ON points (owner_id, qualifier, ts);`,
		},
	},
}

// SQLite is the schema for the embedded backend.
var SQLite = Dialect{
	Name:          "sqlite",
	SentinelQuery: "SELECT COUNT(*) > 0 FROM sqlite_master WHERE type = 'table' AND name = 'points'",
	Steps: []migrationStep{
		{
			Name: "create_table_points",
			SQL: `CREATE TABLE IF NOT EXISTS points (
  id        BLOB    PRIMARY KEY,
  ts        INTEGER NOT NULL CHECK (ts >= 0),
  owner_id  TEXT    NOT NULL,
  qualifier TEXT    NOT NULL DEFAULT '',
  data      BLOB    NOT NULL
) WITHOUT ROWID;`,
		},
		{
			Name: "create_index_points_ts",
			SQL:  `CREATE INDEX IF NOT EXISTS idx_points_ts ON points (ts);`,
		},
		{
			Name: "create_index_points_owner_qualifier",
			SQL:  `CREATE INDEX IF NOT EXISTS idx_points_owner_qualifier ON points (owner_id, qualifier, ts);`,
		},
	},
}

// EnsureMigrated checks if the 'points' table exists and runs the dialect's migrations if it doesn't.
func EnsureMigrated(ctx context.Context, db *sql.DB, d Dialect, logger *slog.Logger) error {
	start := time.Now()
	log := logger.With("component", "database", "dialect", d.Name)

	log.Info("db_migration_check", "status", "starting")

	var exists bool
	if err := db.QueryRowContext(ctx, d.SentinelQuery).Scan(&exists); err != nil {
		log.Error("db_migration_failed",
			"status", "error",
			"error_message", fmt.Sprintf("failed to check sentinel table: %v", err),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		log.Info("db_migration_skip",
			"status", "success",
			"detail", "schema already exists, skipping migration",
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil
	}

	log.Info("db_migration_start", "status", "in_progress")

	for _, step := range d.Steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.Error("db_migration_failed",
				"status", "error",
				"migration_step", step.Name,
				"error_message", err.Error(),
				"duration_ms", time.Since(start).Milliseconds(),
				"step_duration_ms", time.Since(stepStart).Milliseconds(),
			)
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		log.Info("db_migration_step",
			"status", "success",
			"migration_step", step.Name,
			"step_duration_ms", time.Since(stepStart).Milliseconds(),
		)
	}

	log.Info("db_migration_success",
		"status", "success",
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
