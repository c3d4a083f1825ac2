package domain

import "time"

// SparSession is the persisted record of one finished sparring encounter.
type SparSession struct {
	ID          int64
	SessionUUID string
	StartFEN    string
	PlayerSide  string
	MovesUCI    []string
	MovesSAN    []string
	Outcome     string
	Method      string
	FinalScore  float64
	Tier        string
	StartedAt   time.Time
	EndedAt     time.Time
	Duration    time.Duration
}
