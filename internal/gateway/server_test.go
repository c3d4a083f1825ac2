package gateway

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kapu/reel-spar-go/internal/msgcat"
	"github.com/kapu/reel-spar-go/internal/position"
	"github.com/kapu/reel-spar-go/internal/session"
)

func TestCodeFor(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("wrapped: %w", position.ErrIllegalMove), "illegal_move"},
		{session.ErrNotPlayersTurn, "not_your_turn"},
		{session.ErrInvalidTransition, "invalid_transition"},
		{errors.New("boom"), "command_failed"},
	}
	for _, tc := range cases {
		if got := codeFor(tc.err); got != tc.want {
			t.Errorf("codeFor(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestToDTO(t *testing.T) {
	proj := session.Projection{
		SessionUUID:       "uuid-1",
		Status:            session.StatusActive,
		PlayerSide:        position.SideWhite,
		SideToMove:        position.SideBlack,
		Snapshot:          "fen",
		ScoreForPlayer:    -0.9,
		Tier:              session.TierWarning,
		IsEvaluating:      true,
		PendingSuggestion: "e2e4",
		MovesUCI:          []string{"e2e4"},
		MovesSAN:          []string{"e4"},
		MoveCount:         1,
		LastMove:          &session.MoveRef{From: "e2", To: "e4"},
	}
	dto := toDTO(proj)
	if dto.Status != "ACTIVE" || dto.PlayerSide != "white" || dto.SideToMove != "black" {
		t.Errorf("dto = %+v", dto)
	}
	if dto.StatusTier != "warning" || dto.ScoreForPlayer != -0.9 {
		t.Errorf("tier/score = %q/%v", dto.StatusTier, dto.ScoreForPlayer)
	}
	if dto.LastMove == nil || dto.LastMove.From != "e2" || dto.LastMove.To != "e4" {
		t.Errorf("last move = %+v", dto.LastMove)
	}
	if !dto.IsEvaluating || dto.PendingSuggestion != "e2e4" {
		t.Errorf("flags = %+v", dto)
	}
}

func TestToDTOEmptyProjection(t *testing.T) {
	dto := toDTO(session.Projection{Status: session.StatusIdle})
	if dto.Status != "IDLE" || dto.LastMove != nil || dto.MoveCount != 0 {
		t.Errorf("dto = %+v", dto)
	}
}

func newTestCatalogServer(t *testing.T) *Server {
	t.Helper()
	catalog, err := msgcat.New("")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return &Server{catalog: catalog, logger: zap.NewNop()}
}

func TestNoticeForTiers(t *testing.T) {
	s := newTestCatalogServer(t)

	warn := s.noticeFor(session.Projection{
		Status:         session.StatusActive,
		Tier:           session.TierWarning,
		ScoreForPlayer: -1.1,
	})
	if !strings.Contains(warn, "-1.10") {
		t.Errorf("warning notice = %q", warn)
	}

	fail := s.noticeFor(session.Projection{
		Status:         session.StatusActive,
		Tier:           session.TierFail,
		ScoreForPlayer: -2.3,
	})
	if fail == "" || fail == warn {
		t.Errorf("fail notice = %q", fail)
	}
}

func TestNoticeForEndedWinsOverTier(t *testing.T) {
	s := newTestCatalogServer(t)

	got := s.noticeFor(session.Projection{
		Status:  session.StatusEnded,
		Tier:    session.TierFail,
		Outcome: "failed",
	})
	if !strings.Contains(got, "failed") {
		t.Errorf("ended notice = %q", got)
	}
}

func TestNoticeForOpponentThinking(t *testing.T) {
	s := newTestCatalogServer(t)
	got := s.noticeFor(session.Projection{
		Status:             session.StatusActive,
		Tier:               session.TierSafe,
		IsOpponentThinking: true,
	})
	if got == "" {
		t.Error("opponent notice missing")
	}
}

func TestNoticeForIdle(t *testing.T) {
	s := newTestCatalogServer(t)
	got := s.noticeFor(session.Projection{Status: session.StatusIdle})
	if got == "" {
		t.Error("idle notice missing")
	}
}

func TestNoticeForFreshSession(t *testing.T) {
	s := newTestCatalogServer(t)
	got := s.noticeFor(session.Projection{
		Status:       session.StatusActive,
		PlayerSide:   position.SideWhite,
		Tier:         session.TierNone,
		IsEvaluating: true,
	})
	if !strings.Contains(got, "white") {
		t.Errorf("started notice = %q", got)
	}
}

func TestNoticeForEngineOutage(t *testing.T) {
	s := newTestCatalogServer(t)
	// active with no verdict and nothing in flight means the last
	// evaluation failed
	got := s.noticeFor(session.Projection{
		Status: session.StatusActive,
		Tier:   session.TierNone,
	})
	if !strings.Contains(got, "engine unavailable") {
		t.Errorf("outage notice = %q", got)
	}
}
