package session

import "github.com/kapu/reel-spar-go/internal/position"

// Score thresholds in pawn-equivalent units; positive is good for the
// human player.
const (
	DefaultWarningThreshold = -0.8
	DefaultFailThreshold    = -1.5
)

// Classifier maps a player-perspective score to a status tier.
type Classifier struct {
	warning float64
	fail    float64
}

// NewClassifier builds a classifier; zero thresholds select the defaults.
func NewClassifier(warning, fail float64) Classifier {
	if warning == 0 {
		warning = DefaultWarningThreshold
	}
	if fail == 0 {
		fail = DefaultFailThreshold
	}
	return Classifier{warning: warning, fail: fail}
}

// Classify is total: every score lands in exactly one tier.
func (c Classifier) Classify(scoreForPlayer float64) Tier {
	switch {
	case scoreForPlayer <= c.fail:
		return TierFail
	case scoreForPlayer <= c.warning:
		return TierWarning
	default:
		return TierSafe
	}
}

// NormalizeForPlayer converts a raw engine score, reported relative to the
// side to move of the evaluated snapshot, into the player's perspective.
// Kept as an explicit pure function: the sign flip is the most bug-prone
// seam in the pipeline.
func NormalizeForPlayer(raw float64, sideToMoveAtEval, playerSide position.Side) float64 {
	if sideToMoveAtEval != playerSide {
		return -raw
	}
	return raw
}
