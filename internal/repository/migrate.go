package repository

import (
	"context"
	"fmt"
	"log/slog"
)

// createJobTable is valid for both sqlite and postgres.
const createJobTable = `CREATE TABLE IF NOT EXISTS ` + jobTable + ` (
	id              varchar(36)  NOT NULL PRIMARY KEY,
	request_id      varchar(64)  NOT NULL,
	document_name   text         NOT NULL,
	format          varchar(16)  NOT NULL,
	size_bytes      bigint       NOT NULL,
	pages           integer      NOT NULL,
	pages_consulted integer      NOT NULL,
	excerpt_chars   integer      NOT NULL,
	provider        varchar(32)  NOT NULL,
	model           varchar(128) NOT NULL,
	status          varchar(16)  NOT NULL,
	error_kind      varchar(64)  NOT NULL,
	reject_origin   varchar(16)  NOT NULL,
	hypotheses      integer      NOT NULL,
	started_at      bigint       NOT NULL,
	finished_at     bigint       NOT NULL,
	elapsed_ms      bigint       NOT NULL
)`

const createJobIndex = `CREATE INDEX IF NOT EXISTS analysis_job_status_started_at ON ` + jobTable + ` (status, started_at)`

// Migrate creates the analysis_job table and its index when missing.
func Migrate(ctx context.Context, db *DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := db.SQL.ExecContext(ctx, createJobTable); err != nil {
		return fmt.Errorf("create %s: %w", jobTable, err)
	}
	if _, err := db.SQL.ExecContext(ctx, createJobIndex); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	logger.Info("repository.migrate.ok", "table", jobTable)
	return nil
}
