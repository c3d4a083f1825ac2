// Package position owns the canonical board state of a sparring session.
// Legality and turn order are delegated to the chess library; the only
// mutation path is a single apply-move operation.
package position

import (
	"errors"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

var ErrIllegalMove = errors.New("illegal move")

// Side identifies one color of the board.
type Side string

const (
	SideWhite Side = "white"
	SideBlack Side = "black"
)

func (s Side) Valid() bool { return s == SideWhite || s == SideBlack }

// Other returns the opposing side.
func (s Side) Other() Side {
	if s == SideWhite {
		return SideBlack
	}
	return SideWhite
}

// ParseSide normalizes user input ("w", "white", ...) into a Side.
func ParseSide(raw string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "w", "white":
		return SideWhite, nil
	case "b", "black":
		return SideBlack, nil
	default:
		return "", fmt.Errorf("invalid side %q", raw)
	}
}

func sideFrom(c nchess.Color) Side {
	if c == nchess.White {
		return SideWhite
	}
	return SideBlack
}

// MoveRecord is a committed move.
type MoveRecord struct {
	From      string
	To        string
	Promotion string
	UCI       string
	SAN       string
	Side      Side
}

// State wraps a game and its move history. Not safe for concurrent use;
// the orchestrator serializes all access.
type State struct {
	game     *nchess.Game
	startFEN string
	records  []MoveRecord
}

// New builds a state from a starting FEN. An empty string or "startpos"
// selects the standard initial position.
func New(startFEN string) (*State, error) {
	fen := strings.TrimSpace(startFEN)
	if fen == "" || fen == "startpos" {
		return &State{game: nchess.NewGame(), startFEN: "startpos"}, nil
	}
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("parse starting fen: %w", err)
	}
	return &State{game: nchess.NewGame(opt), startFEN: fen}, nil
}

// ApplyMove validates and commits a move given as from/to squares plus an
// optional promotion piece letter. Illegal input is reported, not corrected.
func (s *State) ApplyMove(from, to, promotion string) (MoveRecord, error) {
	uci := strings.ToLower(strings.TrimSpace(from) + strings.TrimSpace(to) + strings.TrimSpace(promotion))
	return s.ApplyUCI(uci)
}

// ApplyUCI validates and commits a move in UCI notation.
func (s *State) ApplyUCI(uci string) (MoveRecord, error) {
	uci = strings.ToLower(strings.TrimSpace(uci))
	if len(uci) < 4 {
		return MoveRecord{}, fmt.Errorf("%w: %q", ErrIllegalMove, uci)
	}

	pos := s.game.Position()
	notationUCI := nchess.UCINotation{}
	mv, err := notationUCI.Decode(pos, uci)
	if err != nil {
		return MoveRecord{}, fmt.Errorf("%w: %q", ErrIllegalMove, uci)
	}
	mover := pos.Turn()
	if err := s.game.Move(mv, nil); err != nil {
		return MoveRecord{}, fmt.Errorf("%w: %q", ErrIllegalMove, uci)
	}

	rec := MoveRecord{
		From: mv.S1().String(),
		To:   mv.S2().String(),
		UCI:  strings.ToLower(notationUCI.Encode(pos, mv)),
		SAN:  nchess.AlgebraicNotation{}.Encode(pos, mv),
		Side: sideFrom(mover),
	}
	if len(rec.UCI) > 4 {
		rec.Promotion = rec.UCI[4:]
	}
	s.records = append(s.records, rec)
	return rec, nil
}

// SideToMove reports whose turn it is.
func (s *State) SideToMove() Side {
	return sideFrom(s.game.Position().Turn())
}

// Snapshot serializes the current position; used as the identity key for
// matching evaluation responses to the position they were computed for.
func (s *State) Snapshot() string {
	return s.game.FEN()
}

func (s *State) StartFEN() string { return s.startFEN }

func (s *State) MoveCount() int { return len(s.records) }

func (s *State) MovesUCI() []string {
	out := make([]string, len(s.records))
	for i, r := range s.records {
		out[i] = r.UCI
	}
	return out
}

func (s *State) MovesSAN() []string {
	out := make([]string, len(s.records))
	for i, r := range s.records {
		out[i] = r.SAN
	}
	return out
}

// LastMove returns the most recent committed move, if any.
func (s *State) LastMove() (MoveRecord, bool) {
	if len(s.records) == 0 {
		return MoveRecord{}, false
	}
	return s.records[len(s.records)-1], true
}

// Decisive reports whether the game has a final outcome on the board, and
// names it ("checkmate", "stalemate", ...) together with the winning side.
func (s *State) Decisive() (method string, winner Side, decisive bool) {
	outcome := s.game.Outcome()
	if outcome == nchess.NoOutcome {
		return "", "", false
	}
	method = strings.ToLower(s.game.Method().String())
	switch outcome {
	case nchess.WhiteWon:
		winner = SideWhite
	case nchess.BlackWon:
		winner = SideBlack
	}
	return method, winner, true
}
