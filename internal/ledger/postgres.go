package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"headstart/pkg/db"
)

type pgStore struct {
	dbPool *pgxpool.Pool
	log    *zap.SugaredLogger
}

func NewPostgresStore(dbPool *pgxpool.Pool, log *zap.SugaredLogger) Store {
	return &pgStore{dbPool: dbPool, log: log}
}

// EnsureSchema creates the run tables. Safe to call repeatedly.
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS seed_runs (
  id uuid PRIMARY KEY,
  org_id text NOT NULL,
  kind text NOT NULL,
  status text NOT NULL,
  last_step text,
  error text,
  started_at timestamptz NOT NULL DEFAULT NOW(),
  finished_at timestamptz
);
CREATE INDEX IF NOT EXISTS seed_runs_org_started ON seed_runs (org_id, started_at DESC);
CREATE TABLE IF NOT EXISTS seed_run_steps (
  run_id uuid NOT NULL REFERENCES seed_runs(id) ON DELETE CASCADE,
  step text NOT NULL,
  started_at timestamptz NOT NULL DEFAULT NOW(),
  PRIMARY KEY (run_id, step)
);`)
	return err
}

func (s *pgStore) Start(ctx context.Context, orgID string, kind Kind) (Run, error) {
	r := Run{ID: uuid.NewString(), OrgID: orgID, Kind: kind, Status: StatusRunning}
	err := s.dbPool.QueryRow(ctx,
		`INSERT INTO seed_runs (id, org_id, kind, status) VALUES ($1, $2, $3, $4) RETURNING started_at`,
		r.ID, orgID, string(kind), string(StatusRunning)).Scan(&r.StartedAt)
	if err != nil {
		return Run{}, err
	}
	return r, nil
}

func (s *pgStore) Step(ctx context.Context, runID, step string) error {
	return db.InTx(ctx, s.dbPool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE seed_runs SET last_step=$2 WHERE id=$1`, runID, step)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrRunNotFound
		}
		_, err = tx.Exec(ctx, `INSERT INTO seed_run_steps (run_id, step) VALUES ($1, $2) ON CONFLICT DO NOTHING`, runID, step)
		return err
	})
}

func (s *pgStore) Finish(ctx context.Context, runID string, runErr error) error {
	status, msg := StatusSucceeded, ""
	if runErr != nil {
		status, msg = StatusFailed, runErr.Error()
	}
	tag, err := s.dbPool.Exec(ctx,
		`UPDATE seed_runs SET status=$2, error=NULLIF($3,''), finished_at=NOW() WHERE id=$1`,
		runID, string(status), msg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRunNotFound
	}
	return nil
}

func (s *pgStore) List(ctx context.Context, orgID string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.dbPool.Query(ctx, `
SELECT id::text, org_id, kind, status, COALESCE(last_step,''), COALESCE(error,''), started_at, finished_at
FROM seed_runs
WHERE $1 = '' OR org_id = $1
ORDER BY started_at DESC
LIMIT $2`, orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		var (
			r        Run
			kind     string
			status   string
			finished *time.Time
		)
		if err := rows.Scan(&r.ID, &r.OrgID, &kind, &status, &r.LastStep, &r.Error, &r.StartedAt, &finished); err != nil {
			s.log.Warnw("scan seed run", "err", err)
			continue
		}
		r.Kind, r.Status, r.FinishedAt = Kind(kind), Status(status), finished
		out = append(out, r)
	}
	return out, rows.Err()
}
