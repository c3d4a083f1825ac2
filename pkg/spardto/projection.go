// Package spardto defines the JSON shapes exchanged with the presentation
// layer.
package spardto

// MoveRef highlights the squares of the most recent move.
type MoveRef struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Projection is the read-only session view pushed to the overlay.
type Projection struct {
	SessionUUID        string   `json:"session_uuid,omitempty"`
	Status             string   `json:"status"`
	PlayerSide         string   `json:"player_side,omitempty"`
	SideToMove         string   `json:"side_to_move,omitempty"`
	Snapshot           string   `json:"snapshot,omitempty"`
	ScoreForPlayer     float64  `json:"score_for_player"`
	StatusTier         string   `json:"status_tier,omitempty"`
	IsEvaluating       bool     `json:"is_evaluating"`
	IsOpponentThinking bool     `json:"is_opponent_thinking"`
	PendingSuggestion  string   `json:"pending_suggestion,omitempty"`
	MovesUCI           []string `json:"moves_uci,omitempty"`
	MovesSAN           []string `json:"moves_san,omitempty"`
	MoveCount          int      `json:"move_count"`
	LastMove           *MoveRef `json:"last_move,omitempty"`
	Outcome            string   `json:"outcome,omitempty"`
}

// Push is one server-to-overlay message.
type Push struct {
	Type   string      `json:"type"` // "state" or "error"
	State  *Projection `json:"state,omitempty"`
	Notice string      `json:"notice,omitempty"`
	Code   string      `json:"code,omitempty"`
	Error  string      `json:"error,omitempty"`
}
