package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"findash/internal/narrative"

	_ "modernc.org/sqlite"
)

// Fixed-width UTC timestamps keep lexical order equal to time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteRepository persists generated narratives and the refresh log.
// Transaction data is never stored.
type SQLiteRepository struct {
	db      *sql.DB
	version uint
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.Info("SQLite store ready", "path", dbPath, "schema_version", version)
	return &SQLiteRepository{db: db, version: version}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SchemaVersion is the migration version applied at open.
func (r *SQLiteRepository) SchemaVersion() uint { return r.version }

// Ping implements a readiness check.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// LoadNarrative implements narrative.Store.
func (r *SQLiteRepository) LoadNarrative(ctx context.Context, key string) (narrative.Entry, bool, error) {
	var (
		e           narrative.Entry
		generatedAt string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT selection_key, body, provider, generated_at FROM narratives WHERE selection_key = ?`, key,
	).Scan(&e.Key, &e.Text, &e.Provider, &generatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return narrative.Entry{}, false, nil
	}
	if err != nil {
		return narrative.Entry{}, false, fmt.Errorf("load narrative %q: %w", key, err)
	}
	e.GeneratedAt, err = time.Parse(timeLayout, generatedAt)
	if err != nil {
		return narrative.Entry{}, false, fmt.Errorf("parse narrative timestamp %q: %w", generatedAt, err)
	}
	return e, true, nil
}

// SaveNarrative implements narrative.Store. The latest entry per key wins.
func (r *SQLiteRepository) SaveNarrative(ctx context.Context, e narrative.Entry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO narratives (selection_key, body, provider, generated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(selection_key) DO UPDATE SET
			body = excluded.body,
			provider = excluded.provider,
			generated_at = excluded.generated_at`,
		e.Key, e.Text, e.Provider, e.GeneratedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("save narrative %q: %w", e.Key, err)
	}
	slog.DebugContext(ctx, "Narrative saved to SQLite", "key", e.Key, "provider", e.Provider)
	return nil
}

// PurgeNarratives deletes narratives generated before cutoff.
func (r *SQLiteRepository) PurgeNarratives(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM narratives WHERE generated_at < ?`, cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("purge narratives: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge narratives: %w", err)
	}
	return n, nil
}

// RefreshRecord is one processed refresh request.
type RefreshRecord struct {
	RequestID   string    `json:"request_id"`
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requested_at"`
	ProcessedAt time.Time `json:"processed_at"`
	DatasetID   string    `json:"dataset_id,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// RecordRefresh stores rec. A request ID that was already recorded is
// ignored and reported as false.
func (r *SQLiteRepository) RecordRefresh(ctx context.Context, rec RefreshRecord) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_log (request_id, reason, requested_at, processed_at, dataset_id, error)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(request_id) DO NOTHING`,
		rec.RequestID, rec.Reason,
		rec.RequestedAt.UTC().Format(timeLayout), rec.ProcessedAt.UTC().Format(timeLayout),
		rec.DatasetID, rec.Error)
	if err != nil {
		return false, fmt.Errorf("record refresh %s: %w", rec.RequestID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record refresh %s: %w", rec.RequestID, err)
	}
	return n > 0, nil
}

// SeenRefresh reports whether id has been recorded.
func (r *SQLiteRepository) SeenRefresh(ctx context.Context, id string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM refresh_log WHERE request_id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup refresh %s: %w", id, err)
	}
	return true, nil
}

// RecentRefreshes returns up to limit records, newest first.
func (r *SQLiteRepository) RecentRefreshes(ctx context.Context, limit int) ([]RefreshRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT request_id, reason, requested_at, processed_at, dataset_id, error
		FROM refresh_log ORDER BY processed_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list refreshes: %w", err)
	}
	defer rows.Close()

	out := []RefreshRecord{}
	for rows.Next() {
		var (
			rec                    RefreshRecord
			requestedAt, processed string
		)
		if err := rows.Scan(&rec.RequestID, &rec.Reason, &requestedAt, &processed, &rec.DatasetID, &rec.Error); err != nil {
			return nil, fmt.Errorf("scan refresh: %w", err)
		}
		if rec.RequestedAt, err = time.Parse(timeLayout, requestedAt); err != nil {
			return nil, fmt.Errorf("parse requested_at %q: %w", requestedAt, err)
		}
		if rec.ProcessedAt, err = time.Parse(timeLayout, processed); err != nil {
			return nil, fmt.Errorf("parse processed_at %q: %w", processed, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
