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
	participantsFieldNames         = []string{"round_id", "wallet", "username", "binding", "portfolio", "joined_at", "active"}
	participantsRows               = strings.Join(participantsFieldNames, ",")
	participantsInsertPlaceholders = numberedPlaceholders(1, len(participantsFieldNames))

	cacheParticipantsRoundWalletPrefix = "cache:participants:roundWallet:"
)

var _ ParticipantsModel = (*customParticipantsModel)(nil)

type (
	// ParticipantsModel is an interface to be customized, add more methods
	// here, and implement the added methods in customParticipantsModel.
	ParticipantsModel interface {
		participantsModel
		InsertTx(ctx context.Context, tx *sql.Tx, data *Participants) error
	}

	participantsModel interface {
		Insert(ctx context.Context, data *Participants) (sql.Result, error)
		FindOneByRoundIdWallet(ctx context.Context, roundId, wallet string) (*Participants, error)
		FindByRoundId(ctx context.Context, roundId string) ([]Participants, error)
	}

	defaultParticipantsModel struct {
		sqlc.CachedConn
		table string
	}

	customParticipantsModel struct {
		*defaultParticipantsModel
	}

	// Participants is one durable snapshot row of a round.Participant.
	Participants struct {
		RoundId   string
		Wallet    string
		Username  string
		Binding   string
		Portfolio string
		JoinedAt  time.Time
		Active    bool
	}
)

// NewParticipantsModel returns a model for the participants table.
func NewParticipantsModel(conn sqlx.SqlConn, c cache.CacheConf, opts ...cache.Option) ParticipantsModel {
	return &customParticipantsModel{
		defaultParticipantsModel: &defaultParticipantsModel{
			CachedConn: sqlc.NewConn(conn, c, opts...),
			table:      "participants",
		},
	}
}

func (m *defaultParticipantsModel) FindOneByRoundIdWallet(ctx context.Context, roundId, wallet string) (*Participants, error) {
	key := fmt.Sprintf("%s%v:%v", cacheParticipantsRoundWalletPrefix, roundId, wallet)
	var resp Participants
	err := m.QueryRowCtx(ctx, &resp, key, func(ctx context.Context, conn sqlx.SqlConn, v any) error {
		query := fmt.Sprintf("select %s from %s where round_id = $1 and wallet = $2 limit 1", participantsRows, m.table)
		return conn.QueryRowCtx(ctx, v, query, roundId, wallet)
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

// FindByRoundId lists every participant snapshot for a round, used by
// pkg/repo.RoundRepository.LoadSnapshot when the kvstore.Store holding live
// round state has since been torn down.
func (m *defaultParticipantsModel) FindByRoundId(ctx context.Context, roundId string) ([]Participants, error) {
	var rows []Participants
	query := fmt.Sprintf("select %s from %s where round_id = $1 order by wallet", participantsRows, m.table)
	if err := m.QueryRowsNoCacheCtx(ctx, &rows, query, roundId); err != nil {
		return nil, fmt.Errorf("participants.FindByRoundId: %w", err)
	}
	return rows, nil
}

func (m *defaultParticipantsModel) Insert(ctx context.Context, data *Participants) (sql.Result, error) {
	key := fmt.Sprintf("%s%v:%v", cacheParticipantsRoundWalletPrefix, data.RoundId, data.Wallet)
	return m.ExecCtx(ctx, func(ctx context.Context, conn sqlx.SqlConn) (sql.Result, error) {
		query := fmt.Sprintf("insert into %s (%s) values (%s)", m.table, participantsRows, participantsInsertPlaceholders)
		return conn.ExecCtx(ctx, query, data.RoundId, data.Wallet, data.Username, data.Binding, data.Portfolio, data.JoinedAt, data.Active)
	}, key)
}

// InsertTx inserts within an already-open transaction, used by
// pkg/repo.RoundRepository.SaveSnapshot to land a round's participant rows
// atomically with its round row.
func (m *customParticipantsModel) InsertTx(ctx context.Context, tx *sql.Tx, data *Participants) error {
	query := fmt.Sprintf(`insert into %s (%s) values (%s)
on conflict (round_id, wallet) do update set username = excluded.username, binding = excluded.binding,
portfolio = excluded.portfolio, joined_at = excluded.joined_at, active = excluded.active`, m.table, participantsRows, participantsInsertPlaceholders)
	_, err := tx.ExecContext(ctx, query, data.RoundId, data.Wallet, data.Username, data.Binding, data.Portfolio, data.JoinedAt, data.Active)
	if err != nil {
		return fmt.Errorf("participants.InsertTx: %w", err)
	}
	_ = m.DelCacheCtx(ctx, fmt.Sprintf("%s%v:%v", cacheParticipantsRoundWalletPrefix, data.RoundId, data.Wallet))
	return nil
}
