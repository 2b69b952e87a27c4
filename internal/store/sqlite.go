package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/tcsync/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS records (
	id           TEXT PRIMARY KEY,
	doc          TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'draft',
	source       TEXT NOT NULL DEFAULT '',
	external_key TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS import_runs (
	id           TEXT PRIMARY KEY,
	record_id    TEXT NOT NULL,
	tracking     TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	external_key TEXT NOT NULL DEFAULT '',
	progress     TEXT,
	error        TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_records_status ON records(status);
CREATE INDEX IF NOT EXISTS idx_records_external_key ON records(external_key);
CREATE INDEX IF NOT EXISTS idx_import_runs_record_id ON import_runs(record_id);
CREATE INDEX IF NOT EXISTS idx_import_runs_status ON import_runs(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRecord(ctx context.Context, tc *model.TestCase) error {
	prepareNew(tc, time.Now().UTC())
	doc, err := encodeRecord(tc)
	if err != nil {
		return eris.Wrap(err, "sqlite: create record")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (id, doc, status, source, external_key, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tc.ID, string(doc), string(tc.Status), tc.Source, tc.ExternalKey, tc.CreatedAt, tc.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert record %s", tc.ID)
}

func (s *SQLiteStore) UpsertRecord(ctx context.Context, tc *model.TestCase) error {
	existing, err := s.GetRecord(ctx, tc.ID)
	switch {
	case IsNotFound(err):
		return s.CreateRecord(ctx, tc)
	case err != nil:
		return err
	}

	mergeExisting(existing, tc)
	return s.writeRecord(ctx, tc)
}

func (s *SQLiteStore) GetRecord(ctx context.Context, id string) (*model.TestCase, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM records WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("record", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get record %s", id)
	}
	return decodeRecord([]byte(doc))
}

func (s *SQLiteStore) UpdateRecord(ctx context.Context, id string, patch model.RecordPatch) (*model.TestCase, error) {
	tc, err := s.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(tc)
	if err := s.writeRecord(ctx, tc); err != nil {
		return nil, err
	}
	return tc, nil
}

func (s *SQLiteStore) writeRecord(ctx context.Context, tc *model.TestCase) error {
	tc.UpdatedAt = time.Now().UTC()
	doc, err := encodeRecord(tc)
	if err != nil {
		return eris.Wrap(err, "sqlite: write record")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE records SET doc = ?, status = ?, source = ?, external_key = ?, updated_at = ? WHERE id = ?`,
		string(doc), string(tc.Status), tc.Source, tc.ExternalKey, tc.UpdatedAt, tc.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update record %s", tc.ID)
	}
	return checkRowsAffected(res, "record", tc.ID)
}

func (s *SQLiteStore) ListRecords(ctx context.Context, filter RecordFilter) ([]model.TestCase, error) {
	query := `SELECT doc FROM records WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Source != "" {
		query += ` AND source = ?`
		args = append(args, filter.Source)
	}
	query += ` ORDER BY created_at ASC, id ASC LIMIT ?`
	args = append(args, limitOrDefault(filter.Limit))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list records")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.TestCase
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		tc, err := decodeRecord([]byte(doc))
		if err != nil {
			return nil, err
		}
		out = append(out, *tc)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list records iterate")
}

func (s *SQLiteStore) DeleteRecord(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete record %s", id)
	}
	return checkRowsAffected(res, "record", id)
}

func (s *SQLiteStore) CreateRun(ctx context.Context, recordID, tracking string) (*model.ImportRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO import_runs (id, record_id, tracking, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, recordID, tracking, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert run for record %s", recordID)
	}

	return &model.ImportRun{
		ID:        id,
		RecordID:  recordID,
		Tracking:  tracking,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, c RunCompletion) error {
	progress, err := encodeProgress(c.Progress)
	if err != nil {
		return eris.Wrap(err, "sqlite: complete run")
	}
	var progressText sql.NullString
	if progress != nil {
		progressText = sql.NullString{String: string(progress), Valid: true}
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE import_runs SET status = ?, external_key = ?, progress = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(c.Status), c.ExternalKey, progressText, c.Error, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

const sqliteRunColumns = `id, record_id, tracking, status, external_key, progress, error, created_at, updated_at`

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.ImportRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteRunColumns+` FROM import_runs WHERE id = ?`,
		runID,
	)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("run", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	return r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.ImportRun, error) {
	query := `SELECT ` + sqliteRunColumns + ` FROM import_runs WHERE 1=1`
	var args []any

	if filter.RecordID != "" {
		query += ` AND record_id = ?`
		args = append(args, filter.RecordID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if !filter.CreatedAfter.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.CreatedAfter.UTC())
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limitOrDefault(filter.Limit))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.ImportRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return notFound(entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.ImportRun, error) {
	var r model.ImportRun
	var progress sql.NullString

	err := row.Scan(&r.ID, &r.RecordID, &r.Tracking, &r.Status, &r.ExternalKey, &progress, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if progress.Valid {
		p, err := decodeProgress([]byte(progress.String))
		if err != nil {
			return nil, err
		}
		r.Progress = p
	}
	return &r, nil
}
