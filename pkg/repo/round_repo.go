package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"roundforge-api/internal/model"
	"roundforge-api/pkg/portfolio"
	"roundforge-api/pkg/round"
)

// RoundRepository durably snapshots round and participant state to Postgres,
// the same role the teacher's TraderConfigRepository.Sync plays for trader
// configs: the kvstore.Store remains the hot path (spec §4.1), this is the
// durable side-write a round survives a restart through.
type RoundRepository struct {
	db           *sql.DB
	rounds       model.RoundsModel
	participants model.ParticipantsModel
}

// NewRoundRepository wraps db together with the go-zero sqlx/cache models for
// the rounds and participants tables; db is used to open SaveSnapshot's
// transaction.
func NewRoundRepository(db *sql.DB, rounds model.RoundsModel, participants model.ParticipantsModel) *RoundRepository {
	return &RoundRepository{db: db, rounds: rounds, participants: participants}
}

// SaveSnapshot upserts r and every entry of participants inside a single
// transaction, via withTx, so a crash mid-write never leaves a round snapshot
// referencing participants that were never persisted.
func (r *RoundRepository) SaveSnapshot(ctx context.Context, rnd *round.Round, participants []*round.Participant) error {
	if r == nil || r.db == nil {
		return ErrNilDB
	}

	row, err := toRoundsRow(rnd)
	if err != nil {
		return err
	}

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := r.rounds.UpdateTx(ctx, tx, row); err != nil {
			return err
		}
		for _, p := range participants {
			prow, err := toParticipantsRow(p)
			if err != nil {
				return err
			}
			if err := r.participants.InsertTx(ctx, tx, prow); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadSnapshot is the read side of SaveSnapshot, used to rehydrate a round
// whose kvstore.Store entries have since expired or been evicted, e.g. for
// pkg/replay to source a round that outlived an in-memory-only deployment.
func (r *RoundRepository) LoadSnapshot(ctx context.Context, roundID string) (*round.Round, []*round.Participant, error) {
	if r == nil || r.db == nil {
		return nil, nil, ErrNilDB
	}
	row, err := r.rounds.FindOneByRoundId(ctx, roundID)
	if err != nil {
		return nil, nil, err
	}
	rnd, err := fromRoundsRow(row)
	if err != nil {
		return nil, nil, err
	}

	prows, err := r.participants.FindByRoundId(ctx, roundID)
	if err != nil {
		return nil, nil, err
	}
	participants := make([]*round.Participant, 0, len(prows))
	for i := range prows {
		p, err := fromParticipantsRow(&prows[i])
		if err != nil {
			return nil, nil, err
		}
		participants = append(participants, p)
	}
	return rnd, participants, nil
}

func toRoundsRow(r *round.Round) (*model.Rounds, error) {
	settings, err := json.Marshal(r.Settings)
	if err != nil {
		return nil, fmt.Errorf("repo: encode round settings: %w", err)
	}
	stats, err := json.Marshal(r.Stats)
	if err != nil {
		return nil, fmt.Errorf("repo: encode round stats: %w", err)
	}
	return &model.Rounds{
		RoundId:         r.ID,
		Number:          r.Number,
		Title:           r.Title,
		Description:     r.Description,
		DurationMs:      r.DurationMs,
		StartingBalance: r.StartingBalance,
		MinParticipants: int64(r.MinParticipants),
		MaxParticipants: int64(r.MaxParticipants),
		Settings:        string(settings),
		Status:          string(r.Status),
		CreatedAt:       r.CreatedAt,
		StartAt:         r.StartAt,
		EndAt:           r.EndAt,
		Stats:           string(stats),
		AutoStartArmed:  r.AutoStartArmed,
	}, nil
}

func fromRoundsRow(row *model.Rounds) (*round.Round, error) {
	var settings round.Settings
	if err := json.Unmarshal([]byte(row.Settings), &settings); err != nil {
		return nil, fmt.Errorf("repo: decode round settings: %w", err)
	}
	var stats round.Stats
	if err := json.Unmarshal([]byte(row.Stats), &stats); err != nil {
		return nil, fmt.Errorf("repo: decode round stats: %w", err)
	}
	return &round.Round{
		ID:              row.RoundId,
		Number:          row.Number,
		Title:           row.Title,
		Description:     row.Description,
		DurationMs:      row.DurationMs,
		StartingBalance: row.StartingBalance,
		MinParticipants: int(row.MinParticipants),
		MaxParticipants: int(row.MaxParticipants),
		Settings:        settings,
		Status:          round.Status(row.Status),
		CreatedAt:       row.CreatedAt,
		StartAt:         row.StartAt,
		EndAt:           row.EndAt,
		Stats:           stats,
		AutoStartArmed:  row.AutoStartArmed,
	}, nil
}

func toParticipantsRow(p *round.Participant) (*model.Participants, error) {
	binding, err := json.Marshal(p.Binding)
	if err != nil {
		return nil, fmt.Errorf("repo: encode participant binding: %w", err)
	}
	pf, err := json.Marshal(p.Portfolio)
	if err != nil {
		return nil, fmt.Errorf("repo: encode participant portfolio: %w", err)
	}
	return &model.Participants{
		RoundId:   p.RoundID,
		Wallet:    p.Wallet,
		Username:  p.Username,
		Binding:   string(binding),
		Portfolio: string(pf),
		JoinedAt:  p.JoinedAt,
		Active:    p.Active,
	}, nil
}

func fromParticipantsRow(row *model.Participants) (*round.Participant, error) {
	var binding round.StrategyBinding
	if err := json.Unmarshal([]byte(row.Binding), &binding); err != nil {
		return nil, fmt.Errorf("repo: decode participant binding: %w", err)
	}
	var pf portfolio.Portfolio
	if err := json.Unmarshal([]byte(row.Portfolio), &pf); err != nil {
		return nil, fmt.Errorf("repo: decode participant portfolio: %w", err)
	}
	return &round.Participant{
		RoundID:   row.RoundId,
		Wallet:    row.Wallet,
		Username:  row.Username,
		Binding:   binding,
		Portfolio: &pf,
		JoinedAt:  row.JoinedAt,
		Active:    row.Active,
	}, nil
}
