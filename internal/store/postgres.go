package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const schema = `
CREATE TABLE IF NOT EXISTS solver_config (
    tenant_id  text PRIMARY KEY,
    config     jsonb NOT NULL,
    updated_at timestamptz NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS mtsp_runs (
    id         uuid PRIMARY KEY,
    tenant_id  text NOT NULL,
    created_at timestamptz NOT NULL DEFAULT now(),
    status     text NOT NULL,
    error      text,
    report     jsonb NOT NULL
);
CREATE INDEX IF NOT EXISTS mtsp_runs_tenant_id_idx ON mtsp_runs (tenant_id, id DESC);
`

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

// Migrate creates the tables if they do not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) GetSolverConfig(ctx context.Context, tenantID string) (map[string]any, error) {
	row := p.db.QueryRowContext(ctx, `SELECT config FROM solver_config WHERE tenant_id=$1`, tenantID)
	var js []byte
	if err := row.Scan(&js); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var cfg map[string]any
	if err := json.Unmarshal(js, &cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (p *Postgres) SaveSolverConfig(ctx context.Context, tenantID string, cfg map[string]any) error {
	js, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO solver_config (tenant_id, config, updated_at) VALUES ($1, $2, now())
        ON CONFLICT (tenant_id) DO UPDATE SET config=$2, updated_at=now()`, tenantID, js)
	return err
}

func (p *Postgres) SaveRun(ctx context.Context, run Run) (Run, error) {
	if run.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return Run{}, err
		}
		run.ID = id.String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	report, err := json.Marshal(run.Report)
	if err != nil {
		return Run{}, err
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO mtsp_runs (id, tenant_id, created_at, status, error, report) VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (id) DO UPDATE SET status=$4, error=$5, report=$6`,
		run.ID, run.TenantID, run.CreatedAt, run.Status, nullIfEmpty(run.Error), report)
	if err != nil {
		return Run{}, err
	}
	return run, nil
}

func (p *Postgres) GetRun(ctx context.Context, tenantID, id string) (Run, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Run{}, ErrNotFound
	}
	row := p.db.QueryRowContext(ctx, `SELECT id::text, tenant_id, created_at, status, error, report FROM mtsp_runs WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	return r, err
}

func (p *Postgres) ListRuns(ctx context.Context, tenantID, cursor string, limit int) ([]Run, string, error) {
	limit = pageLimit(limit)
	var rows *sql.Rows
	var err error
	if cursor != "" {
		if _, perr := uuid.Parse(cursor); perr != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrInvalidCursor, perr)
		}
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, tenant_id, created_at, status, error, report FROM mtsp_runs WHERE tenant_id=$1 AND id < $2 ORDER BY id DESC LIMIT $3`, tenantID, cursor, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, tenant_id, created_at, status, error, report FROM mtsp_runs WHERE tenant_id=$1 ORDER BY id DESC LIMIT $2`, tenantID, limit)
	}
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	var next string
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var r Run
	var msg sql.NullString
	var report []byte
	if err := row.Scan(&r.ID, &r.TenantID, &r.CreatedAt, &r.Status, &msg, &report); err != nil {
		return Run{}, err
	}
	r.Error = msg.String
	if err := json.Unmarshal(report, &r.Report); err != nil {
		return Run{}, fmt.Errorf("decode report %s: %w", r.ID, err)
	}
	return r, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
