// Package session implements the sparring session orchestrator: a
// mutex-owned state machine that sequences user moves, asynchronous
// position evaluations and timed opponent replies. Asynchronous callbacks
// never trust their inputs; each revalidates session epoch, Active status
// and position snapshot before mutating, so staleness checks substitute
// for timer/request cancellation.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kapu/reel-spar-go/internal/domain"
	"github.com/kapu/reel-spar-go/internal/position"
)

const persistTimeout = 5 * time.Second

// Config carries the tunables of one orchestrator. Zero values select the
// defaults noted per field.
type Config struct {
	EvalDepth       int           // engine search depth, default 12
	EvalTimeout     time.Duration // ceiling on one evaluation, default 8s
	OpponentDelay   time.Duration // pause before the automated reply, default 500ms
	FailSettleDelay time.Duration // pause before teardown on failure, default 1200ms

	WarningThreshold float64 // pawns, default -0.8
	FailThreshold    float64 // pawns, default -1.5
}

func (c Config) withDefaults() Config {
	if c.EvalDepth <= 0 {
		c.EvalDepth = 12
	}
	if c.EvalTimeout <= 0 {
		c.EvalTimeout = 8 * time.Second
	}
	if c.OpponentDelay <= 0 {
		c.OpponentDelay = 500 * time.Millisecond
	}
	if c.FailSettleDelay <= 0 {
		c.FailSettleDelay = 1200 * time.Millisecond
	}
	return c
}

// Orchestrator owns exactly one session at a time. All mutation is
// serialized through its mutex; evaluation results and delayed opponent
// moves re-enter through tagged callbacks.
type Orchestrator struct {
	cfg        Config
	evaluator  Evaluator
	classifier Classifier
	logger     *zap.Logger
	sinks      []Sink
	onUpdate   func(Projection)

	mu               sync.Mutex
	status           Status
	epoch            uint64
	sessionUUID      string
	pos              *position.State
	playerSide       position.Side
	startedAt        time.Time
	score            float64
	tier             Tier
	pending          string
	lastMove         *MoveRef
	outcome          string
	evaluating       bool
	opponentThinking bool
}

func New(evaluator Evaluator, cfg Config, logger *zap.Logger, sinks ...Sink) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		cfg:       cfg.withDefaults(),
		evaluator: evaluator,
		logger:    logger,
		sinks:     sinks,
		status:    StatusIdle,
	}
	o.classifier = NewClassifier(o.cfg.WarningThreshold, o.cfg.FailThreshold)
	return o
}

// OnUpdate registers the projection subscriber. Must be called before the
// orchestrator starts receiving commands.
func (o *Orchestrator) OnUpdate(fn func(Projection)) {
	o.onUpdate = fn
}

// Start transitions Idle → Active and dispatches an initial evaluation of
// the starting position, which covers cue positions that are already lost.
func (o *Orchestrator) Start(startFEN string, playerSide position.Side) error {
	if !playerSide.Valid() {
		return ErrInvalidTransition
	}
	o.mu.Lock()
	if o.status != StatusIdle {
		o.mu.Unlock()
		o.logger.Debug("spar_start_rejected", zap.String("status", string(o.status)))
		return ErrInvalidTransition
	}
	pos, err := position.New(startFEN)
	if err != nil {
		o.mu.Unlock()
		return err
	}

	o.epoch++
	o.status = StatusActive
	o.sessionUUID = uuid.NewString()
	o.pos = pos
	o.playerSide = playerSide
	o.startedAt = time.Now()
	o.score = 0
	o.tier = TierNone
	o.pending = ""
	o.lastMove = nil
	o.outcome = ""
	o.opponentThinking = false
	o.evaluating = true
	o.dispatchEvaluationLocked()

	o.logger.Info("spar_session_start",
		zap.String("session_uuid", o.sessionUUID),
		zap.String("player_side", string(playerSide)),
		zap.String("start_fen", pos.StartFEN()),
	)
	proj := o.projectionLocked()
	o.mu.Unlock()
	o.publish(proj)
	return nil
}

// SubmitMove applies a user move. Outside the player's legal window
// (session not Active, or not the player's turn) it mutates nothing and
// returns a nil record with a sentinel error.
func (o *Orchestrator) SubmitMove(from, to, promotion string) (*position.MoveRecord, error) {
	o.mu.Lock()
	if o.status != StatusActive {
		o.mu.Unlock()
		return nil, ErrInvalidTransition
	}
	if o.pos.SideToMove() != o.playerSide {
		o.mu.Unlock()
		return nil, ErrNotPlayersTurn
	}
	rec, err := o.pos.ApplyMove(from, to, promotion)
	if err != nil {
		o.mu.Unlock()
		return nil, err
	}

	o.lastMove = &MoveRef{From: rec.From, To: rec.To}
	o.pending = ""
	if method, winner, done := o.pos.Decisive(); done {
		o.evaluating = false
		o.scheduleFinalizeLocked(outcomeForPlayer(winner, o.playerSide), method)
	} else {
		o.evaluating = true
		o.dispatchEvaluationLocked()
	}

	o.logger.Info("spar_user_move",
		zap.String("session_uuid", o.sessionUUID),
		zap.String("uci", rec.UCI),
		zap.String("san", rec.SAN),
		zap.Int("move_count", o.pos.MoveCount()),
	)
	proj := o.projectionLocked()
	o.mu.Unlock()
	o.publish(proj)
	return &rec, nil
}

// End transitions Active → Ended immediately on explicit request.
func (o *Orchestrator) End() error {
	o.mu.Lock()
	if o.status != StatusActive {
		o.mu.Unlock()
		return ErrInvalidTransition
	}
	proj, rec := o.endLocked("ended", "user")
	o.mu.Unlock()
	o.publish(proj)
	o.persist(rec)
	return nil
}

// Reset transitions Ended → Idle; the only path back to Idle.
func (o *Orchestrator) Reset() error {
	o.mu.Lock()
	if o.status != StatusEnded {
		o.mu.Unlock()
		return ErrInvalidTransition
	}
	o.epoch++
	o.status = StatusIdle
	o.sessionUUID = ""
	o.pos = nil
	o.playerSide = ""
	o.score = 0
	o.tier = TierNone
	o.pending = ""
	o.lastMove = nil
	o.outcome = ""
	o.evaluating = false
	o.opponentThinking = false
	proj := o.projectionLocked()
	o.mu.Unlock()
	o.logger.Info("spar_session_reset")
	o.publish(proj)
	return nil
}

// Projection returns a copy of the current read-only view.
func (o *Orchestrator) Projection() Projection {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.projectionLocked()
}

func (o *Orchestrator) dispatchEvaluationLocked() {
	epoch := o.epoch
	snap := o.pos.Snapshot()
	sideAtEval := o.pos.SideToMove()
	req := EvalRequest{Snapshot: snap, Depth: o.cfg.EvalDepth}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), o.cfg.EvalTimeout)
		defer cancel()
		res, err := o.evaluator.Evaluate(ctx, req)
		o.applyEvaluation(epoch, snap, sideAtEval, res, err)
	}()
}

// applyEvaluation is the re-entry point for engine responses. A result is
// applied iff the session epoch matches and the snapshot it was computed
// for is still current; anything else is discarded without a state change.
func (o *Orchestrator) applyEvaluation(epoch uint64, snap string, sideAtEval position.Side, res EvalResult, evalErr error) {
	o.mu.Lock()
	if o.status != StatusActive || epoch != o.epoch {
		o.mu.Unlock()
		o.logger.Debug("spar_eval_dropped", zap.Uint64("epoch", epoch))
		return
	}
	if snap != o.pos.Snapshot() {
		o.mu.Unlock()
		o.logger.Debug("spar_eval_stale", zap.String("snapshot", snap))
		return
	}
	if evalErr != nil {
		// engine unavailable: evaluation is skipped, the session continues
		// and the next state-changing move re-requests naturally
		o.evaluating = false
		proj := o.projectionLocked()
		o.mu.Unlock()
		o.logger.Warn("spar_eval_unavailable", zap.Error(evalErr))
		o.publish(proj)
		return
	}

	scoreForPlayer := NormalizeForPlayer(float64(res.ScoreCP)/100, sideAtEval, o.playerSide)
	o.score = scoreForPlayer
	o.tier = o.classifier.Classify(scoreForPlayer)
	o.evaluating = false
	bestMove := strings.ToLower(strings.TrimSpace(res.BestMove))
	o.pending = ""
	if sideAtEval == o.playerSide && bestMove != "" {
		o.pending = bestMove
	}

	o.logger.Info("spar_eval_applied",
		zap.String("session_uuid", o.sessionUUID),
		zap.Float64("score_for_player", scoreForPlayer),
		zap.String("tier", string(o.tier)),
		zap.Int("depth", res.Depth),
	)

	if o.tier == TierFail {
		o.scheduleFinalizeLocked("failed", "collapse")
	} else if sideAtEval != o.playerSide && bestMove != "" {
		o.opponentThinking = true
		o.scheduleOpponentLocked(bestMove)
	}
	proj := o.projectionLocked()
	o.mu.Unlock()
	o.publish(proj)
}

func (o *Orchestrator) scheduleOpponentLocked(moveUCI string) {
	epoch := o.epoch
	snap := o.pos.Snapshot()
	time.AfterFunc(o.cfg.OpponentDelay, func() {
		o.playOpponentMove(epoch, snap, moveUCI)
	})
}

// playOpponentMove fires after the human-perceptible delay. The opponent's
// sole policy is the engine's top suggestion for the position it is in.
func (o *Orchestrator) playOpponentMove(epoch uint64, snap, moveUCI string) {
	o.mu.Lock()
	if o.status != StatusActive || epoch != o.epoch || snap != o.pos.Snapshot() {
		o.mu.Unlock()
		o.logger.Debug("spar_opponent_move_dropped", zap.String("uci", moveUCI))
		return
	}
	rec, err := o.pos.ApplyUCI(moveUCI)
	o.opponentThinking = false
	if err != nil {
		proj := o.projectionLocked()
		o.mu.Unlock()
		o.logger.Warn("spar_opponent_move_rejected", zap.String("uci", moveUCI), zap.Error(err))
		o.publish(proj)
		return
	}
	o.lastMove = &MoveRef{From: rec.From, To: rec.To}
	if method, winner, done := o.pos.Decisive(); done {
		o.scheduleFinalizeLocked(outcomeForPlayer(winner, o.playerSide), method)
	} else {
		o.evaluating = true
		o.dispatchEvaluationLocked()
	}
	o.logger.Info("spar_opponent_move",
		zap.String("session_uuid", o.sessionUUID),
		zap.String("uci", rec.UCI),
		zap.String("san", rec.SAN),
	)
	proj := o.projectionLocked()
	o.mu.Unlock()
	o.publish(proj)
}

func (o *Orchestrator) scheduleFinalizeLocked(outcome, method string) {
	epoch := o.epoch
	time.AfterFunc(o.cfg.FailSettleDelay, func() {
		o.finalize(epoch, outcome, method)
	})
}

func (o *Orchestrator) finalize(epoch uint64, outcome, method string) {
	o.mu.Lock()
	if o.status != StatusActive || epoch != o.epoch {
		o.mu.Unlock()
		return
	}
	proj, rec := o.endLocked(outcome, method)
	o.mu.Unlock()
	o.publish(proj)
	o.persist(rec)
}

// endLocked transitions to Ended and builds the persistence record. The
// epoch bump invalidates every outstanding timer and in-flight evaluation.
func (o *Orchestrator) endLocked(outcome, method string) (Projection, *domain.SparSession) {
	o.epoch++
	o.status = StatusEnded
	o.evaluating = false
	o.opponentThinking = false
	o.outcome = outcome
	endedAt := time.Now()

	rec := &domain.SparSession{
		SessionUUID: o.sessionUUID,
		StartFEN:    o.pos.StartFEN(),
		PlayerSide:  string(o.playerSide),
		MovesUCI:    o.pos.MovesUCI(),
		MovesSAN:    o.pos.MovesSAN(),
		Outcome:     outcome,
		Method:      method,
		FinalScore:  o.score,
		Tier:        string(o.tier),
		StartedAt:   o.startedAt,
		EndedAt:     endedAt,
		Duration:    endedAt.Sub(o.startedAt),
	}
	o.logger.Info("spar_session_end",
		zap.String("session_uuid", o.sessionUUID),
		zap.String("outcome", outcome),
		zap.String("method", method),
		zap.Float64("final_score", o.score),
		zap.Int("move_count", o.pos.MoveCount()),
	)
	return o.projectionLocked(), rec
}

func (o *Orchestrator) persist(rec *domain.SparSession) {
	if rec == nil {
		return
	}
	for _, sink := range o.sinks {
		s := sink
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
			defer cancel()
			if err := s.SessionEnded(ctx, rec); err != nil {
				o.logger.Warn("spar_session_persist_failed",
					zap.Error(err),
					zap.String("session_uuid", rec.SessionUUID),
				)
			}
		}()
	}
}

func (o *Orchestrator) projectionLocked() Projection {
	proj := Projection{
		SessionUUID:        o.sessionUUID,
		Status:             o.status,
		PlayerSide:         o.playerSide,
		ScoreForPlayer:     o.score,
		Tier:               o.tier,
		IsEvaluating:       o.evaluating,
		IsOpponentThinking: o.opponentThinking,
		PendingSuggestion:  o.pending,
		Outcome:            o.outcome,
	}
	if o.lastMove != nil {
		ref := *o.lastMove
		proj.LastMove = &ref
	}
	if o.pos != nil {
		proj.SideToMove = o.pos.SideToMove()
		proj.Snapshot = o.pos.Snapshot()
		proj.MovesUCI = o.pos.MovesUCI()
		proj.MovesSAN = o.pos.MovesSAN()
		proj.MoveCount = o.pos.MoveCount()
	}
	return proj
}

func (o *Orchestrator) publish(proj Projection) {
	if o.onUpdate != nil {
		o.onUpdate(proj)
	}
}

func outcomeForPlayer(winner, playerSide position.Side) string {
	switch winner {
	case "":
		return "drawn"
	case playerSide:
		return "won"
	default:
		return "lost"
	}
}
