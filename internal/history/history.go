// Package history keeps a DuckDB ledger of finished cleaning runs.
package history

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/Crazyka51/AudioCleaner/internal/models"
)

const schema = `
CREATE SEQUENCE IF NOT EXISTS history_seq;
CREATE TABLE IF NOT EXISTS history (
	id               BIGINT DEFAULT nextval('history_seq') PRIMARY KEY,
	session_id       VARCHAR NOT NULL,
	file_name        VARCHAR NOT NULL,
	kind             VARCHAR NOT NULL,
	enhancer         VARCHAR NOT NULL,
	status           VARCHAR NOT NULL,
	duration_seconds DOUBLE NOT NULL,
	input_size       BIGINT NOT NULL,
	result_size      BIGINT NOT NULL,
	convert_ms       BIGINT NOT NULL,
	clean_ms         BIGINT NOT NULL,
	error            VARCHAR,
	finished_at      TIMESTAMP NOT NULL
)`

// Store is the history ledger. An empty path opens an in-memory database.
type Store struct {
	db   *sql.DB
	path string
	log  *zap.Logger
	mu   sync.Mutex
}

// Open opens or creates the ledger at path.
func Open(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	connector, err := duckdb.NewConnector(path, func(execer driver.ExecerContext) error {
		pragmas := []string{
			"PRAGMA threads=2",
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				log.Warn("history pragma failed", zap.String("pragma", pragma), zap.Error(err))
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history table: %w", err)
	}

	log.Info("history ledger opened", zap.String("path", path))
	return &Store{db: db, path: path, log: log}, nil
}

// Record appends one finished run.
func (s *Store) Record(ctx context.Context, e models.HistoryEntry) error {
	if e.FinishedAt.IsZero() {
		e.FinishedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO history (session_id, file_name, kind, enhancer, status, duration_seconds,
			input_size, result_size, convert_ms, clean_ms, error, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.FileName, string(e.Kind), e.Enhancer, string(e.Status), e.DurationSeconds,
		e.InputSize, e.ResultSize, e.ConvertTimeMs, e.CleanTimeMs, nullString(e.Error), e.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record history: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. limit <= 0 returns all.
func (s *Store) Recent(ctx context.Context, limit int) ([]models.HistoryEntry, error) {
	query := `
		SELECT session_id, file_name, kind, enhancer, status, duration_seconds,
			input_size, result_size, convert_ms, clean_ms, error, finished_at
		FROM history
		ORDER BY finished_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	entries := make([]models.HistoryEntry, 0)
	for rows.Next() {
		var (
			e          models.HistoryEntry
			kind       string
			status     string
			errMessage sql.NullString
		)
		if err := rows.Scan(&e.SessionID, &e.FileName, &kind, &e.Enhancer, &status, &e.DurationSeconds,
			&e.InputSize, &e.ResultSize, &e.ConvertTimeMs, &e.CleanTimeMs, &errMessage, &e.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		e.Kind = models.MediaKind(kind)
		e.Status = models.SessionStatus(status)
		e.Error = errMessage.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats aggregates the whole ledger.
func (s *Store) Stats(ctx context.Context) (models.HistoryStats, error) {
	var st models.HistoryStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			CAST(COALESCE(SUM(CASE WHEN status = 'complete' THEN 1 ELSE 0 END), 0) AS BIGINT),
			CAST(COALESCE(SUM(CASE WHEN status = 'error' THEN 1 ELSE 0 END), 0) AS BIGINT),
			CAST(COALESCE(SUM(CASE WHEN kind = 'video' THEN 1 ELSE 0 END), 0) AS BIGINT),
			COALESCE(SUM(CASE WHEN status = 'complete' THEN duration_seconds ELSE 0 END), 0),
			COALESCE(AVG(CASE WHEN status = 'complete' THEN clean_ms END), 0)
		FROM history`).Scan(&st.Total, &st.Completed, &st.Failed, &st.Videos, &st.AudioSeconds, &st.AvgCleanTimeMs)
	if err != nil {
		return st, fmt.Errorf("failed to compute history stats: %w", err)
	}
	return st, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
