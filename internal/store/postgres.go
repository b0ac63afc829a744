package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/auction-cli/internal/db"
	"github.com/sells-group/auction-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	sqlInsertRun   = `INSERT INTO runs (id, status, params, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`
	sqlCompleteRun = `UPDATE runs SET summary = $1, status = $2, updated_at = $3 WHERE id = $4`
	sqlFailRun     = `UPDATE runs SET error = $1, status = $2, updated_at = $3 WHERE id = $4`
	sqlGetRun      = `SELECT id, status, params, summary, error, created_at, updated_at FROM runs WHERE id = $1`
	sqlRunExists   = `SELECT EXISTS (SELECT 1 FROM runs WHERE id = $1)`
	sqlProperties  = `SELECT data FROM properties WHERE run_id = $1 ORDER BY seq`
)

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"insert_run":      sqlInsertRun,
	"complete_run":    sqlCompleteRun,
	"fail_run":        sqlFailRun,
	"get_run":         sqlGetRun,
	"run_exists":      sqlRunExists,
	"list_properties": sqlProperties,
}

var propertyUpsert = db.UpsertConfig{
	Table:        "properties",
	Columns:      []string{"run_id", "id", "seq", "state", "region", "deal_score", "recommended", "data"},
	ConflictKeys: []string{"run_id", "id"},
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
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

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

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
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	status     TEXT NOT NULL DEFAULT 'running',
	params     JSONB NOT NULL,
	summary    JSONB,
	error      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS properties (
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	id          TEXT NOT NULL,
	seq         INTEGER NOT NULL,
	state       TEXT NOT NULL DEFAULT '',
	region      TEXT NOT NULL DEFAULT '',
	deal_score  DOUBLE PRECISION NOT NULL DEFAULT 0,
	recommended BOOLEAN NOT NULL DEFAULT false,
	data        JSONB NOT NULL,
	PRIMARY KEY (run_id, id)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_properties_run_seq ON properties(run_id, seq);
CREATE INDEX IF NOT EXISTS idx_properties_score ON properties(run_id, deal_score DESC);
`

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// CreateRun inserts a running run with a fresh uuid.
func (s *PostgresStore) CreateRun(ctx context.Context, params model.RunParams) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal params")
	}

	if _, err := s.pool.Exec(ctx, sqlInsertRun, id, string(model.RunStatusRunning), paramsJSON, now, now); err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Status:    model.RunStatusRunning,
		Params:    params,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// CompleteRun records the summary and marks the run complete.
func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, summary *model.RunSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal summary")
	}

	tag, err := s.pool.Exec(ctx, sqlCompleteRun, summaryJSON, string(model.RunStatusComplete), time.Now().UTC(), runID)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return notFound(runID)
	}
	return nil
}

// FailRun records errMsg and marks the run failed.
func (s *PostgresStore) FailRun(ctx context.Context, runID string, errMsg string) error {
	tag, err := s.pool.Exec(ctx, sqlFailRun, errMsg, string(model.RunStatusFailed), time.Now().UTC(), runID)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return notFound(runID)
	}
	return nil
}

// GetRun returns one run or ErrNotFound.
func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	r, err := scanPgRun(s.pool.QueryRow(ctx, sqlGetRun, runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

// ListRuns returns runs newest first.
func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, status, params, summary, error, created_at, updated_at FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter.Limit))
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

	var runs []model.Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// SaveProperties upserts props keyed by (run, property id) through a COPY
// into a staging table. Position in props becomes the listing order.
func (s *PostgresStore) SaveProperties(ctx context.Context, runID string, props []*model.Property) error {
	if err := s.runExists(ctx, runID); err != nil {
		return err
	}

	rows := make([][]any, 0, len(props))
	for i, p := range props {
		data, err := json.Marshal(p)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal property %s", p.ID)
		}
		rows = append(rows, []any{runID, p.ID, int32(i), p.State, p.Region, p.DealScore, p.Recommended, data})
	}

	_, err := db.BulkUpsert(ctx, s.pool, propertyUpsert, rows)
	return eris.Wrapf(err, "postgres: save properties for run %s", runID)
}

// ListProperties returns a run's properties in the order they were saved.
func (s *PostgresStore) ListProperties(ctx context.Context, runID string) ([]*model.Property, error) {
	if err := s.runExists(ctx, runID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, sqlProperties, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list properties %s", runID)
	}
	defer rows.Close()

	props := []*model.Property{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan property")
		}
		p, err := decodeProperty(data)
		if err != nil {
			return nil, err
		}
		props = append(props, p)
	}
	return props, eris.Wrap(rows.Err(), "postgres: list properties iterate")
}

func (s *PostgresStore) runExists(ctx context.Context, runID string) error {
	var ok bool
	if err := s.pool.QueryRow(ctx, sqlRunExists, runID).Scan(&ok); err != nil {
		return eris.Wrapf(err, "postgres: lookup run %s", runID)
	}
	if !ok {
		return notFound(runID)
	}
	return nil
}

func scanPgRun(row scannable) (*model.Run, error) {
	var r model.Run
	var paramsJSON []byte
	var summaryJSON *[]byte

	if err := row.Scan(&r.ID, &r.Status, &paramsJSON, &summaryJSON, &r.Error, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	var summary []byte
	if summaryJSON != nil {
		summary = *summaryJSON
	}
	if err := decodeRunJSON(&r, paramsJSON, summary); err != nil {
		return nil, err
	}
	return &r, nil
}
