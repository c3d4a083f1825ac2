package session

import (
	"testing"

	"github.com/kapu/reel-spar-go/internal/position"
)

func TestClassifyBands(t *testing.T) {
	c := NewClassifier(0, 0) // defaults

	cases := []struct {
		score float64
		want  Tier
	}{
		{0.5, TierSafe},
		{0.0, TierSafe},
		{-0.79, TierSafe},
		{-0.8, TierWarning},
		{-1.0, TierWarning},
		{-1.49, TierWarning},
		{-1.5, TierFail},
		{-3.2, TierFail},
	}
	for _, tc := range cases {
		if got := c.Classify(tc.score); got != tc.want {
			t.Errorf("Classify(%v) = %v, want %v", tc.score, got, tc.want)
		}
	}
}

func TestClassifyCustomThresholds(t *testing.T) {
	c := NewClassifier(-0.5, -2.0)

	if got := c.Classify(-0.6); got != TierWarning {
		t.Errorf("Classify(-0.6) = %v, want warning", got)
	}
	if got := c.Classify(-1.9); got != TierWarning {
		t.Errorf("Classify(-1.9) = %v, want warning", got)
	}
	if got := c.Classify(-2.0); got != TierFail {
		t.Errorf("Classify(-2.0) = %v, want fail", got)
	}
}

func TestNormalizeForPlayer(t *testing.T) {
	// engine score is from the side to move; a +1.2 with black to move
	// is -1.2 for a white player
	if got := NormalizeForPlayer(1.2, position.SideBlack, position.SideWhite); got != -1.2 {
		t.Errorf("got %v, want -1.2", got)
	}
	if got := NormalizeForPlayer(1.2, position.SideWhite, position.SideWhite); got != 1.2 {
		t.Errorf("got %v, want 1.2", got)
	}
	if got := NormalizeForPlayer(-0.4, position.SideBlack, position.SideBlack); got != -0.4 {
		t.Errorf("got %v, want -0.4", got)
	}
}
