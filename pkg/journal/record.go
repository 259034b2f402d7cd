// Package journal records and replays the LLM round-trips behind every
// trading decision: ParseStrategy and GenerateSignal calls made while a round
// is running. It is grounded in the teacher's executorpkg.ConversationRecorder
// and pkg/journal reader, adapted from a perpetual-futures decision cycle to a
// round/wallet/symbol signal cycle.
package journal

import (
	"context"
	"time"

	"roundforge-api/pkg/llm"
	"roundforge-api/pkg/market"
)

// CycleRecord is one recorded LLM round-trip for a single participant/symbol
// tick. Unlike the teacher's CycleRecord (keyed by TraderID against a
// perpetual-futures account snapshot), this is keyed by RoundID/Wallet/Symbol
// against a market.Snapshot and the llm.Signal it produced.
type CycleRecord struct {
	RoundID    string             `json:"round_id"`
	Wallet     string             `json:"wallet"`
	Symbol     string             `json:"symbol"`
	Timestamp  time.Time          `json:"timestamp"`
	Snapshot   market.Snapshot    `json:"snapshot"`
	Strategy   llm.ParsedStrategy `json:"strategy"`
	Signal     llm.Signal         `json:"signal"`
	Executed   bool               `json:"executed"`
	Model      string             `json:"model,omitempty"`
	PromptHash string             `json:"prompt_hash,omitempty"`
	TokensUsed int                `json:"tokens_used,omitempty"`
	Success    bool               `json:"success"`
	Error      string             `json:"error,omitempty"`
}

// Recorder persists CycleRecords. Implementations must tolerate being called
// from the scheduler's concurrent per-participant fan-out.
type Recorder interface {
	Record(ctx context.Context, rec CycleRecord) error
}

// NoopRecorder discards every record; it is the default when no journal
// backend is configured, matching the teacher's convention of making
// recording an injectable no-op rather than a required dependency.
type NoopRecorder struct{}

func (NoopRecorder) Record(context.Context, CycleRecord) error { return nil }

var _ Recorder = NoopRecorder{}
