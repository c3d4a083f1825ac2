package position

import (
	"errors"
	"testing"
)

func TestParseSide(t *testing.T) {
	cases := []struct {
		in      string
		want    Side
		wantErr bool
	}{
		{"white", SideWhite, false},
		{"W", SideWhite, false},
		{" b ", SideBlack, false},
		{"Black", SideBlack, false},
		{"", "", true},
		{"green", "", true},
	}
	for _, tc := range cases {
		got, err := ParseSide(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseSide(%q) expected error", tc.in)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("ParseSide(%q) = %v, %v; want %v", tc.in, got, err, tc.want)
		}
	}
}

func TestNewDefaultsToStartPosition(t *testing.T) {
	for _, in := range []string{"", "startpos", "  "} {
		s, err := New(in)
		if err != nil {
			t.Fatalf("New(%q): %v", in, err)
		}
		if s.SideToMove() != SideWhite {
			t.Errorf("New(%q) side to move = %v", in, s.SideToMove())
		}
		if s.StartFEN() != "startpos" {
			t.Errorf("New(%q) start fen = %q", in, s.StartFEN())
		}
	}
}

func TestNewRejectsGarbageFEN(t *testing.T) {
	if _, err := New("not a fen"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestApplyMoveRecordsHistory(t *testing.T) {
	s, err := New("")
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	rec, err := s.ApplyMove("e2", "e4", "")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if rec.UCI != "e2e4" || rec.SAN != "e4" || rec.Side != SideWhite {
		t.Errorf("record = %+v", rec)
	}
	if s.SideToMove() != SideBlack {
		t.Errorf("side to move = %v, want black", s.SideToMove())
	}

	if _, err := s.ApplyUCI("e7e5"); err != nil {
		t.Fatalf("apply uci: %v", err)
	}
	if got := s.MoveCount(); got != 2 {
		t.Errorf("move count = %d", got)
	}
	if got := s.MovesUCI(); got[0] != "e2e4" || got[1] != "e7e5" {
		t.Errorf("moves uci = %v", got)
	}
	last, ok := s.LastMove()
	if !ok || last.UCI != "e7e5" || last.Side != SideBlack {
		t.Errorf("last move = %+v, %v", last, ok)
	}
}

func TestApplyMoveIllegal(t *testing.T) {
	s, err := New("")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	before := s.Snapshot()

	for _, uci := range []string{"e2e5", "e7e5", "a1a8", "zz", ""} {
		if _, err := s.ApplyUCI(uci); !errors.Is(err, ErrIllegalMove) {
			t.Errorf("ApplyUCI(%q) = %v, want ErrIllegalMove", uci, err)
		}
	}
	if s.Snapshot() != before {
		t.Fatal("rejected moves mutated the position")
	}
	if s.MoveCount() != 0 {
		t.Fatal("rejected moves were recorded")
	}
}

func TestApplyMovePromotion(t *testing.T) {
	s, err := New("8/P6k/8/8/8/8/7K/8 w - - 0 1")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	rec, err := s.ApplyMove("a7", "a8", "q")
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if rec.Promotion != "q" || rec.UCI != "a7a8q" {
		t.Errorf("record = %+v", rec)
	}
}

func TestSnapshotTracksPosition(t *testing.T) {
	s, err := New("")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	first := s.Snapshot()
	if _, err := s.ApplyUCI("g1f3"); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if s.Snapshot() == first {
		t.Fatal("snapshot did not change after a move")
	}
}

func TestDecisiveCheckmate(t *testing.T) {
	s, err := New("")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	// fool's mate
	for _, uci := range []string{"f2f3", "e7e5", "g2g4", "d8h4"} {
		if _, err := s.ApplyUCI(uci); err != nil {
			t.Fatalf("apply %s: %v", uci, err)
		}
	}
	method, winner, done := s.Decisive()
	if !done {
		t.Fatal("checkmate not detected")
	}
	if winner != SideBlack {
		t.Errorf("winner = %v, want black", winner)
	}
	if method != "checkmate" {
		t.Errorf("method = %q, want checkmate", method)
	}
}

func TestDecisiveOngoing(t *testing.T) {
	s, err := New("")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, _, done := s.Decisive(); done {
		t.Fatal("fresh game reported as decisive")
	}
}

func TestSideOther(t *testing.T) {
	if SideWhite.Other() != SideBlack || SideBlack.Other() != SideWhite {
		t.Fatal("Other is not an involution")
	}
}
