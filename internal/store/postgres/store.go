// Package postgres provides a database-backed batch.StateStore, for
// deployments where the output artifacts should live in Postgres
// instead of a local directory tree. One row per (file, stage) holds
// the CSV-encoded artifact; the single-statement upsert gives the same
// all-or-nothing write guarantee the filesystem store gets from
// rename.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/bulkrun/bulkrun/internal/batch"
	"github.com/bulkrun/bulkrun/internal/tabular"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store is the Postgres implementation of batch.StateStore.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// compile-time interface check
var _ batch.StateStore = (*Store)(nil)

// Open connects to the database, applies pending migrations, and
// returns a ready store.
func Open(ctx context.Context, databaseURL string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	logger.Info("connected to postgres state store")
	return &Store{db: db, logger: logger}, nil
}

// Close releases the database connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// IsStageComplete implements batch.StateStore with a single EXISTS
// query and no side effects.
func (s *Store) IsStageComplete(ctx context.Context, fileID string, stage batch.Stage) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM stage_artifacts WHERE file_id = $1 AND stage = $2)`,
		fileID, string(stage)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check artifact for %s/%s: %w", stage, fileID, err)
	}
	return exists, nil
}

// WriteStageArtifact implements batch.StateStore. The upsert is a
// single statement, so a concurrent reader sees either the previous
// artifact or the complete new one.
func (s *Store) WriteStageArtifact(ctx context.Context, fileID string, stage batch.Stage, t *tabular.Table) error {
	payload, err := t.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode artifact for %s/%s: %w", stage, fileID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO stage_artifacts (file_id, stage, payload)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (file_id, stage) DO UPDATE
		 SET payload = EXCLUDED.payload, created_at = now()`,
		fileID, string(stage), string(payload))
	if err != nil {
		return fmt.Errorf("failed to write artifact for %s/%s: %w", stage, fileID, err)
	}
	return nil
}

// ReadStageArtifact implements batch.StateStore.
func (s *Store) ReadStageArtifact(ctx context.Context, fileID string, stage batch.Stage) (*tabular.Table, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM stage_artifacts WHERE file_id = $1 AND stage = $2`,
		fileID, string(stage)).Scan(&payload)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact for %s/%s: %w", stage, fileID, err)
	}
	return tabular.Parse([]byte(payload))
}

// ListStageArtifacts implements batch.StateStore, ordered by file id so
// polling passes walk files in a stable order.
func (s *Store) ListStageArtifacts(ctx context.Context, stage batch.Stage) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT file_id FROM stage_artifacts WHERE stage = $1 ORDER BY file_id`,
		string(stage))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s artifacts: %w", stage, err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan artifact row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list %s artifacts: %w", stage, err)
	}
	return ids, nil
}
