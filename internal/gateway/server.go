// Package gateway is the presentation boundary: a websocket endpoint that
// pushes read-only session projections and accepts overlay commands, plus
// a small HTTP API for snapshot polling and health probes. The overlay
// never mutates session state directly; every gesture goes through an
// orchestrator command.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/kapu/reel-spar-go/internal/msgcat"
	"github.com/kapu/reel-spar-go/internal/position"
	"github.com/kapu/reel-spar-go/internal/session"
	"github.com/kapu/reel-spar-go/pkg/spardto"
)

const (
	subscriberBuffer = 16
	writeTimeout     = 5 * time.Second
)

type subscriber struct {
	ch chan []byte
}

type Server struct {
	orch    *session.Orchestrator
	catalog *msgcat.Catalog
	logger  *zap.Logger

	httpAddr string
	wsAddr   string

	httpSrv *fasthttp.Server
	wsSrv   *http.Server

	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

func NewServer(orch *session.Orchestrator, catalog *msgcat.Catalog, httpAddr, wsAddr string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		orch:     orch,
		catalog:  catalog,
		logger:   logger,
		httpAddr: httpAddr,
		wsAddr:   wsAddr,
		subs:     make(map[*subscriber]struct{}),
	}
	orch.OnUpdate(s.broadcast)
	return s
}

// Run serves both listeners until ctx is canceled or one of them fails.
func (s *Server) Run(ctx context.Context) error {
	s.httpSrv = &fasthttp.Server{
		Handler: s.handleHTTP,
		Name:    "reel-spar",
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	s.wsSrv = &http.Server{Addr: s.wsAddr, Handler: mux}

	errCh := make(chan error, 2)
	go func() {
		s.logger.Info("gateway_http_listen", zap.String("addr", s.httpAddr))
		errCh <- s.httpSrv.ListenAndServe(s.httpAddr)
	}()
	go func() {
		s.logger.Info("gateway_ws_listen", zap.String("addr", s.wsAddr))
		if err := s.wsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		} else {
			errCh <- nil
		}
	}()

	select {
	case <-ctx.Done():
		s.shutdown()
		return nil
	case err := <-errCh:
		s.shutdown()
		return err
	}
}

func (s *Server) shutdown() {
	if s.httpSrv != nil {
		_ = s.httpSrv.Shutdown()
	}
	if s.wsSrv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = s.wsSrv.Shutdown(sctx)
	}
	s.mu.Lock()
	for sub := range s.subs {
		close(sub.ch)
		delete(s.subs, sub)
	}
	s.mu.Unlock()
}

func (s *Server) handleHTTP(ctx *fasthttp.RequestCtx) {
	switch string(ctx.Path()) {
	case "/healthz":
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
	case "/api/state":
		push := s.pushFor(s.orch.Projection())
		body, err := json.Marshal(push)
		if err != nil {
			ctx.SetStatusCode(fasthttp.StatusInternalServerError)
			return
		}
		ctx.SetContentType("application/json")
		ctx.SetBody(body)
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Warn("ws_accept_failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	sub := &subscriber{ch: make(chan []byte, subscriberBuffer)}
	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		if _, ok := s.subs[sub]; ok {
			delete(s.subs, sub)
			close(sub.ch)
		}
		s.mu.Unlock()
	}()

	ctx := r.Context()

	// current state first, so late joiners render immediately
	s.sendTo(sub, s.pushFor(s.orch.Projection()))

	go func() {
		for body := range sub.ch {
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, body)
			cancel()
			if err != nil {
				return
			}
		}
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var cmd spardto.Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			s.sendTo(sub, spardto.Push{Type: "error", Code: "bad_command", Error: "malformed command"})
			continue
		}
		if err := s.dispatch(cmd); err != nil {
			s.sendTo(sub, spardto.Push{Type: "error", Code: codeFor(err), Error: err.Error()})
		}
	}
}

func (s *Server) dispatch(cmd spardto.Command) error {
	switch cmd.Type {
	case spardto.CommandStart:
		side, err := position.ParseSide(cmd.Side)
		if err != nil {
			return err
		}
		return s.orch.Start(cmd.FEN, side)
	case spardto.CommandMove:
		_, err := s.orch.SubmitMove(cmd.From, cmd.To, cmd.Promotion)
		return err
	case spardto.CommandEnd:
		return s.orch.End()
	case spardto.CommandReset:
		return s.orch.Reset()
	default:
		return fmt.Errorf("unknown command %q", cmd.Type)
	}
}

func codeFor(err error) string {
	switch {
	case errors.Is(err, position.ErrIllegalMove):
		return "illegal_move"
	case errors.Is(err, session.ErrNotPlayersTurn):
		return "not_your_turn"
	case errors.Is(err, session.ErrInvalidTransition):
		return "invalid_transition"
	default:
		return "command_failed"
	}
}

func (s *Server) broadcast(proj session.Projection) {
	push := s.pushFor(proj)
	body, err := json.Marshal(push)
	if err != nil {
		s.logger.Warn("projection_marshal_failed", zap.Error(err))
		return
	}
	s.mu.Lock()
	for sub := range s.subs {
		select {
		case sub.ch <- body:
		default:
			s.logger.Warn("projection_dropped_slow_subscriber")
		}
	}
	s.mu.Unlock()
}

func (s *Server) sendTo(sub *subscriber, push spardto.Push) {
	body, err := json.Marshal(push)
	if err != nil {
		return
	}
	select {
	case sub.ch <- body:
	default:
	}
}

func (s *Server) pushFor(proj session.Projection) spardto.Push {
	dto := toDTO(proj)
	return spardto.Push{
		Type:   "state",
		State:  &dto,
		Notice: s.noticeFor(proj),
	}
}

func toDTO(proj session.Projection) spardto.Projection {
	dto := spardto.Projection{
		SessionUUID:        proj.SessionUUID,
		Status:             string(proj.Status),
		PlayerSide:         string(proj.PlayerSide),
		SideToMove:         string(proj.SideToMove),
		Snapshot:           proj.Snapshot,
		ScoreForPlayer:     proj.ScoreForPlayer,
		StatusTier:         string(proj.Tier),
		IsEvaluating:       proj.IsEvaluating,
		IsOpponentThinking: proj.IsOpponentThinking,
		PendingSuggestion:  proj.PendingSuggestion,
		MovesUCI:           proj.MovesUCI,
		MovesSAN:           proj.MovesSAN,
		MoveCount:          proj.MoveCount,
		Outcome:            proj.Outcome,
	}
	if proj.LastMove != nil {
		dto.LastMove = &spardto.MoveRef{From: proj.LastMove.From, To: proj.LastMove.To}
	}
	return dto
}

func (s *Server) noticeFor(proj session.Projection) string {
	if s.catalog == nil {
		return ""
	}
	var (
		key  string
		data any
	)
	score := strconv.FormatFloat(proj.ScoreForPlayer, 'f', 2, 64)
	switch {
	case proj.Status == session.StatusIdle:
		key = "session.reset"
	case proj.Status == session.StatusEnded:
		key = "session.ended"
		data = map[string]string{"Outcome": proj.Outcome}
	case proj.IsOpponentThinking:
		key = "opponent.thinking"
	case proj.Tier == session.TierFail:
		key = "tier.fail"
		data = map[string]string{"Score": score}
	case proj.Tier == session.TierWarning:
		key = "tier.warning"
		data = map[string]string{"Score": score}
	case proj.Tier == session.TierSafe:
		key = "tier.safe"
		data = map[string]string{"Score": score}
	case proj.IsEvaluating:
		// active session awaiting its first verdict
		key = "session.started"
		data = map[string]string{"Side": string(proj.PlayerSide)}
	default:
		// active, no tier, nothing in flight: the last evaluation failed
		key = "engine.down"
	}
	text, err := s.catalog.Render(key, data)
	if err != nil {
		s.logger.Debug("notice_render_failed", zap.String("key", key), zap.Error(err))
		return ""
	}
	return text
}
