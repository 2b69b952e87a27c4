package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/tcsync/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS records (
	id           TEXT PRIMARY KEY,
	doc          JSONB NOT NULL,
	status       TEXT NOT NULL DEFAULT 'draft',
	source       TEXT NOT NULL DEFAULT '',
	external_key TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS import_runs (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	record_id    TEXT NOT NULL,
	tracking     TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	external_key TEXT NOT NULL DEFAULT '',
	progress     JSONB,
	error        TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_records_status ON records(status);
CREATE INDEX IF NOT EXISTS idx_records_external_key ON records(external_key);
CREATE INDEX IF NOT EXISTS idx_import_runs_record_id ON import_runs(record_id);
CREATE INDEX IF NOT EXISTS idx_import_runs_status ON import_runs(status);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRecord(ctx context.Context, tc *model.TestCase) error {
	prepareNew(tc, time.Now().UTC())
	doc, err := encodeRecord(tc)
	if err != nil {
		return eris.Wrap(err, "postgres: create record")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO records (id, doc, status, source, external_key, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		tc.ID, doc, string(tc.Status), tc.Source, tc.ExternalKey, tc.CreatedAt, tc.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: insert record %s", tc.ID)
}

func (s *PostgresStore) UpsertRecord(ctx context.Context, tc *model.TestCase) error {
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

func (s *PostgresStore) GetRecord(ctx context.Context, id string) (*model.TestCase, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM records WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("record", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get record %s", id)
	}
	return decodeRecord(doc)
}

func (s *PostgresStore) UpdateRecord(ctx context.Context, id string, patch model.RecordPatch) (*model.TestCase, error) {
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

func (s *PostgresStore) writeRecord(ctx context.Context, tc *model.TestCase) error {
	tc.UpdatedAt = time.Now().UTC()
	doc, err := encodeRecord(tc)
	if err != nil {
		return eris.Wrap(err, "postgres: write record")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE records SET doc = $1, status = $2, source = $3, external_key = $4, updated_at = $5 WHERE id = $6`,
		doc, string(tc.Status), tc.Source, tc.ExternalKey, tc.UpdatedAt, tc.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update record %s", tc.ID)
	}
	if tag.RowsAffected() == 0 {
		return notFound("record", tc.ID)
	}
	return nil
}

func (s *PostgresStore) ListRecords(ctx context.Context, filter RecordFilter) ([]model.TestCase, error) {
	query := `SELECT doc FROM records WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Source != "" {
		query += fmt.Sprintf(` AND source = $%d`, argIdx)
		args = append(args, filter.Source)
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at ASC, id ASC LIMIT $%d`, argIdx)
	args = append(args, limitOrDefault(filter.Limit))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list records")
	}
	defer rows.Close()

	var out []model.TestCase
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		tc, err := decodeRecord(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, *tc)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list records iterate")
}

func (s *PostgresStore) DeleteRecord(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM records WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete record %s", id)
	}
	if tag.RowsAffected() == 0 {
		return notFound("record", id)
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, recordID, tracking string) (*model.ImportRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO import_runs (id, record_id, tracking, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, recordID, tracking, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert run for record %s", recordID)
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

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, c RunCompletion) error {
	progress, err := encodeProgress(c.Progress)
	if err != nil {
		return eris.Wrap(err, "postgres: complete run")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE import_runs SET status = $1, external_key = $2, progress = $3, error = $4, updated_at = $5 WHERE id = $6`,
		string(c.Status), c.ExternalKey, progress, c.Error, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return notFound("run", runID)
	}
	return nil
}

const postgresRunColumns = `id, record_id, tracking, status, external_key, progress, error, created_at, updated_at`

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.ImportRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+postgresRunColumns+` FROM import_runs WHERE id = $1`,
		runID,
	)
	r, err := scanPgRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("run", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.ImportRun, error) {
	query := `SELECT ` + postgresRunColumns + ` FROM import_runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.RecordID != "" {
		query += fmt.Sprintf(` AND record_id = $%d`, argIdx)
		args = append(args, filter.RecordID)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if !filter.CreatedAfter.IsZero() {
		query += fmt.Sprintf(` AND created_at >= $%d`, argIdx)
		args = append(args, filter.CreatedAfter)
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, limitOrDefault(filter.Limit))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.ImportRun
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func scanPgRun(row pgx.Row) (*model.ImportRun, error) {
	var r model.ImportRun
	var status string
	var progress []byte

	err := row.Scan(&r.ID, &r.RecordID, &r.Tracking, &status, &r.ExternalKey, &progress, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.Status = model.RunStatus(status)
	p, err := decodeProgress(progress)
	if err != nil {
		return nil, err
	}
	r.Progress = p
	return &r, nil
}
