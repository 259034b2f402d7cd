package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
)

// PostgresRecorder persists CycleRecords to a single append-only table. It
// follows the teacher's pkg/repo convention of wrapping a raw *sql.DB rather
// than a generated model, since this table has no update/delete path.
type PostgresRecorder struct {
	db *sql.DB
}

// ErrNilDB mirrors pkg/repo's sentinel for a recorder built without a handle.
var ErrNilDB = fmt.Errorf("journal: nil db")

// NewPostgresRecorder wraps db. Callers own the connection's lifecycle.
func NewPostgresRecorder(db *sql.DB) *PostgresRecorder {
	return &PostgresRecorder{db: db}
}

// EnsureSchema creates the decision_cycles table if it does not already
// exist. Safe to call on every process start.
func (r *PostgresRecorder) EnsureSchema(ctx context.Context) error {
	if r.db == nil {
		return ErrNilDB
	}
	const ddl = `
CREATE TABLE IF NOT EXISTS decision_cycles (
	id           BIGSERIAL PRIMARY KEY,
	round_id     TEXT NOT NULL,
	wallet       TEXT NOT NULL,
	symbol       TEXT NOT NULL,
	occurred_at  TIMESTAMPTZ NOT NULL,
	snapshot     JSONB NOT NULL,
	strategy     JSONB NOT NULL,
	signal       JSONB NOT NULL,
	executed     BOOLEAN NOT NULL,
	model        TEXT,
	prompt_hash  TEXT,
	tokens_used  INTEGER,
	success      BOOLEAN NOT NULL,
	error        TEXT
);
CREATE INDEX IF NOT EXISTS decision_cycles_round_wallet_idx ON decision_cycles (round_id, wallet, occurred_at);
CREATE UNIQUE INDEX IF NOT EXISTS decision_cycles_dedup_idx ON decision_cycles (round_id, wallet, symbol, occurred_at);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Record inserts rec. A duplicate (round_id, wallet, symbol, occurred_at) is
// tolerated as a no-op rather than surfaced as an error, since the scheduler
// may retry a tick after a transient failure.
func (r *PostgresRecorder) Record(ctx context.Context, rec CycleRecord) error {
	if r.db == nil {
		return ErrNilDB
	}

	snapshotJSON, err := json.Marshal(rec.Snapshot)
	if err != nil {
		return fmt.Errorf("journal: marshal snapshot: %w", err)
	}
	strategyJSON, err := json.Marshal(rec.Strategy)
	if err != nil {
		return fmt.Errorf("journal: marshal strategy: %w", err)
	}
	signalJSON, err := json.Marshal(rec.Signal)
	if err != nil {
		return fmt.Errorf("journal: marshal signal: %w", err)
	}

	const insert = `
INSERT INTO decision_cycles
	(round_id, wallet, symbol, occurred_at, snapshot, strategy, signal, executed, model, prompt_hash, tokens_used, success, error)
VALUES
	($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
`
	_, err = r.db.ExecContext(ctx, insert,
		rec.RoundID, rec.Wallet, rec.Symbol, rec.Timestamp,
		snapshotJSON, strategyJSON, signalJSON,
		rec.Executed, rec.Model, rec.PromptHash, rec.TokensUsed, rec.Success, rec.Error,
	)
	if isUniqueViolation(err) {
		return nil
	}
	return err
}

// ListByRound returns every recorded cycle for roundID, ascending by time —
// the feed pkg/replay consumes to reproduce a round's decision history.
func (r *PostgresRecorder) ListByRound(ctx context.Context, roundID string) ([]CycleRecord, error) {
	if r.db == nil {
		return nil, ErrNilDB
	}
	const query = `
SELECT round_id, wallet, symbol, occurred_at, snapshot, strategy, signal, executed, model, prompt_hash, tokens_used, success, error
FROM decision_cycles
WHERE round_id = $1
ORDER BY occurred_at ASC
`
	rows, err := r.db.QueryContext(ctx, query, roundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CycleRecord
	for rows.Next() {
		var (
			rec                               CycleRecord
			snapshotJSON, strategyJSON, sigJSON []byte
			model, promptHash, errText        sql.NullString
			tokensUsed                        sql.NullInt64
		)
		if err := rows.Scan(&rec.RoundID, &rec.Wallet, &rec.Symbol, &rec.Timestamp,
			&snapshotJSON, &strategyJSON, &sigJSON, &rec.Executed,
			&model, &promptHash, &tokensUsed, &rec.Success, &errText); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(snapshotJSON, &rec.Snapshot); err != nil {
			return nil, fmt.Errorf("journal: decode snapshot: %w", err)
		}
		if err := json.Unmarshal(strategyJSON, &rec.Strategy); err != nil {
			return nil, fmt.Errorf("journal: decode strategy: %w", err)
		}
		if err := json.Unmarshal(sigJSON, &rec.Signal); err != nil {
			return nil, fmt.Errorf("journal: decode signal: %w", err)
		}
		rec.Model = model.String
		rec.PromptHash = promptHash.String
		rec.TokensUsed = int(tokensUsed.Int64)
		rec.Error = errText.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

// isUniqueViolation mirrors internal/persistence/engine/persistence.go's
// Postgres error-code check.
func isUniqueViolation(err error) bool {
	pgErr, ok := err.(*pq.Error)
	return ok && pgErr.Code == "23505"
}

var _ Recorder = (*PostgresRecorder)(nil)
