package model

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlc"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var (
	roundsFieldNames         = []string{"round_id", "number", "title", "description", "duration_ms", "starting_balance", "min_participants", "max_participants", "settings", "status", "created_at", "start_at", "end_at", "stats", "auto_start_armed"}
	roundsRows               = strings.Join(roundsFieldNames, ",")
	roundsInsertPlaceholders = numberedPlaceholders(1, len(roundsFieldNames))
	roundsSetClause          = numberedSetClause(roundsFieldNames[1:], 2)

	cacheRoundsRoundIdPrefix = "cache:rounds:roundId:"
)

// numberedPlaceholders builds a Postgres-style "$n,$n+1,..." value list, the
// placeholder style the teacher's lib/pq-backed positionsmodel.go custom
// queries use (e.g. "trader_id = ANY($1)").
func numberedPlaceholders(from, count int) string {
	parts := make([]string, count)
	for i := 0; i < count; i++ {
		parts[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(parts, ",")
}

// numberedSetClause builds "col1 = $from, col2 = $from+1, ..." for an UPDATE.
func numberedSetClause(cols []string, from int) string {
	parts := make([]string, len(cols))
	for i, col := range cols {
		parts[i] = fmt.Sprintf("%s = $%d", col, from+i)
	}
	return strings.Join(parts, ", ")
}

var _ RoundsModel = (*customRoundsModel)(nil)

type (
	// RoundsModel is an interface to be customized, add more methods here, and
	// implement the added methods in customRoundsModel.
	RoundsModel interface {
		roundsModel
		InsertTx(ctx context.Context, tx *sql.Tx, data *Rounds) error
		UpdateTx(ctx context.Context, tx *sql.Tx, data *Rounds) error
	}

	roundsModel interface {
		Insert(ctx context.Context, data *Rounds) (sql.Result, error)
		FindOneByRoundId(ctx context.Context, roundId string) (*Rounds, error)
		Update(ctx context.Context, data *Rounds) error
	}

	defaultRoundsModel struct {
		sqlc.CachedConn
		table string
	}

	customRoundsModel struct {
		*defaultRoundsModel
	}

	// Rounds is one durable snapshot row of a round.Round (spec SPEC_FULL.md's
	// persistence ambient stack: Postgres via sqlx+sqlc+pq, mirroring the teacher's
	// internal/model layer). Settings and Stats carry their JSON encodings the same
	// way positions.detail does in the teacher's positionsmodel.go.
	Rounds struct {
		RoundId         string
		Number          int64
		Title           string
		Description     string
		DurationMs      int64
		StartingBalance float64
		MinParticipants int64
		MaxParticipants int64
		Settings        string
		Status          string
		CreatedAt       time.Time
		StartAt         time.Time
		EndAt           time.Time
		Stats           string
		AutoStartArmed  bool
	}
)

// NewRoundsModel returns a model for the rounds table.
func NewRoundsModel(conn sqlx.SqlConn, c cache.CacheConf, opts ...cache.Option) RoundsModel {
	return &customRoundsModel{
		defaultRoundsModel: &defaultRoundsModel{
			CachedConn: sqlc.NewConn(conn, c, opts...),
			table:      "rounds",
		},
	}
}

func (m *defaultRoundsModel) FindOneByRoundId(ctx context.Context, roundId string) (*Rounds, error) {
	key := fmt.Sprintf("%s%v", cacheRoundsRoundIdPrefix, roundId)
	var resp Rounds
	err := m.QueryRowCtx(ctx, &resp, key, func(ctx context.Context, conn sqlx.SqlConn, v any) error {
		query := fmt.Sprintf("select %s from %s where round_id = $1 limit 1", roundsRows, m.table)
		return conn.QueryRowCtx(ctx, v, query, roundId)
	})
	switch err {
	case nil:
		return &resp, nil
	case sqlc.ErrNotFound:
		return nil, ErrNotFound
	default:
		return nil, err
	}
}

func (m *defaultRoundsModel) Insert(ctx context.Context, data *Rounds) (sql.Result, error) {
	key := fmt.Sprintf("%s%v", cacheRoundsRoundIdPrefix, data.RoundId)
	return m.ExecCtx(ctx, func(ctx context.Context, conn sqlx.SqlConn) (sql.Result, error) {
		query := fmt.Sprintf("insert into %s (%s) values (%s)", m.table, roundsRows, roundsInsertPlaceholders)
		return conn.ExecCtx(ctx, query, data.RoundId, data.Number, data.Title, data.Description, data.DurationMs,
			data.StartingBalance, data.MinParticipants, data.MaxParticipants, data.Settings, data.Status,
			data.CreatedAt, data.StartAt, data.EndAt, data.Stats, data.AutoStartArmed)
	}, key)
}

func (m *defaultRoundsModel) Update(ctx context.Context, data *Rounds) error {
	key := fmt.Sprintf("%s%v", cacheRoundsRoundIdPrefix, data.RoundId)
	_, err := m.ExecCtx(ctx, func(ctx context.Context, conn sqlx.SqlConn) (sql.Result, error) {
		query := fmt.Sprintf("update %s set %s where round_id = $1", m.table, roundsSetClause)
		return conn.ExecCtx(ctx, query, data.RoundId, data.Number, data.Title, data.Description, data.DurationMs,
			data.StartingBalance, data.MinParticipants, data.MaxParticipants, data.Settings, data.Status,
			data.CreatedAt, data.StartAt, data.EndAt, data.Stats, data.AutoStartArmed)
	}, key)
	return err
}

// InsertTx inserts within an already-open transaction, bypassing the cache
// layer, for callers that need the round row and its participant rows to land
// atomically. It fails if the round row already exists; SaveSnapshot uses
// UpdateTx instead.
func (m *customRoundsModel) InsertTx(ctx context.Context, tx *sql.Tx, data *Rounds) error {
	query := fmt.Sprintf("insert into %s (%s) values (%s)", m.table, roundsRows, roundsInsertPlaceholders)
	_, err := tx.ExecContext(ctx, query, data.RoundId, data.Number, data.Title, data.Description, data.DurationMs,
		data.StartingBalance, data.MinParticipants, data.MaxParticipants, data.Settings, data.Status,
		data.CreatedAt, data.StartAt, data.EndAt, data.Stats, data.AutoStartArmed)
	if err != nil {
		return fmt.Errorf("rounds.InsertTx: %w", err)
	}
	_ = m.DelCacheCtx(ctx, fmt.Sprintf("%s%v", cacheRoundsRoundIdPrefix, data.RoundId))
	return nil
}

// UpdateTx upserts within an already-open transaction.
func (m *customRoundsModel) UpdateTx(ctx context.Context, tx *sql.Tx, data *Rounds) error {
	query := fmt.Sprintf(`insert into %s (%s) values (%s)
on conflict (round_id) do update set number = excluded.number, title = excluded.title,
description = excluded.description, duration_ms = excluded.duration_ms,
starting_balance = excluded.starting_balance, min_participants = excluded.min_participants,
max_participants = excluded.max_participants, settings = excluded.settings, status = excluded.status,
created_at = excluded.created_at, start_at = excluded.start_at, end_at = excluded.end_at,
stats = excluded.stats, auto_start_armed = excluded.auto_start_armed`, m.table, roundsRows, roundsInsertPlaceholders)
	_, err := tx.ExecContext(ctx, query, data.RoundId, data.Number, data.Title, data.Description, data.DurationMs,
		data.StartingBalance, data.MinParticipants, data.MaxParticipants, data.Settings, data.Status,
		data.CreatedAt, data.StartAt, data.EndAt, data.Stats, data.AutoStartArmed)
	if err != nil {
		return fmt.Errorf("rounds.UpdateTx: %w", err)
	}
	_ = m.DelCacheCtx(ctx, fmt.Sprintf("%s%v", cacheRoundsRoundIdPrefix, data.RoundId))
	return nil
}
