package session

import (
	"context"
	"errors"

	"github.com/kapu/reel-spar-go/internal/domain"
	"github.com/kapu/reel-spar-go/internal/position"
)

// Status is the session lifecycle state. Transitions are monotonic:
// Idle → Active → Ended, with an explicit Reset as the only path back.
type Status string

const (
	StatusIdle   Status = "IDLE"
	StatusActive Status = "ACTIVE"
	StatusEnded  Status = "ENDED"
)

// Tier is the position-quality band derived from the player-perspective
// score. TierNone holds until the first evaluation lands.
type Tier string

const (
	TierNone    Tier = ""
	TierSafe    Tier = "safe"
	TierWarning Tier = "warning"
	TierFail    Tier = "fail"
)

var (
	ErrInvalidTransition = errors.New("command not allowed in current session state")
	ErrNotPlayersTurn    = errors.New("not the player's turn")
)

// EvalRequest asks the engine bridge for an assessment of one snapshot.
type EvalRequest struct {
	Snapshot string
	Depth    int
}

// EvalResult is one engine assessment. ScoreCP is in centipawns, relative
// to the side to move of the evaluated snapshot.
type EvalResult struct {
	ScoreCP  int
	BestMove string
	Depth    int
}

// Evaluator is the evaluation capability consumed by the orchestrator.
type Evaluator interface {
	Evaluate(ctx context.Context, req EvalRequest) (EvalResult, error)
}

// Sink receives finished session records for persistence.
type Sink interface {
	SessionEnded(ctx context.Context, rec *domain.SparSession) error
}

// MoveRef is a from/to square pair for highlighting.
type MoveRef struct {
	From string
	To   string
}

// Projection is the read-only view handed to the presentation layer.
type Projection struct {
	SessionUUID        string
	Status             Status
	PlayerSide         position.Side
	SideToMove         position.Side
	Snapshot           string
	ScoreForPlayer     float64
	Tier               Tier
	IsEvaluating       bool
	IsOpponentThinking bool
	PendingSuggestion  string
	MovesUCI           []string
	MovesSAN           []string
	MoveCount          int
	LastMove           *MoveRef
	Outcome            string
}
