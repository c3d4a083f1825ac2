package evalengine

import (
	"context"
	"errors"
	"testing"
	"time"
)

// scriptTransport feeds a canned message sequence to the client.
type scriptTransport struct {
	sent    []Message
	queue   []Message
	sendErr error
	recvErr error
	closed  bool
}

func (s *scriptTransport) Send(_ context.Context, msg Message) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *scriptTransport) Receive(ctx context.Context) (Message, error) {
	if len(s.queue) == 0 {
		if s.recvErr != nil {
			return Message{}, s.recvErr
		}
		<-ctx.Done()
		return Message{}, ctx.Err()
	}
	msg := s.queue[0]
	s.queue = s.queue[1:]
	return msg, nil
}

func (s *scriptTransport) Close() error {
	s.closed = true
	return nil
}

func TestEvaluateConsumesReadyNotice(t *testing.T) {
	tr := &scriptTransport{queue: []Message{
		{Type: MessageReady},
		{Type: MessageEval, Snapshot: "fen-a", ScoreCP: 42, BestMove: "e2e4", Depth: 9},
	}}
	c, err := NewClient(tr, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	res, err := c.Evaluate(context.Background(), "fen-a", 9)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.ScoreCP != 42 || res.BestMove != "e2e4" || res.Depth != 9 {
		t.Errorf("result = %+v", res)
	}
	if len(tr.sent) != 1 || tr.sent[0].Type != MessageEvaluate || tr.sent[0].Snapshot != "fen-a" {
		t.Errorf("sent = %+v", tr.sent)
	}
}

// lazyTransport produces no messages until Send arrives, like a transport
// that spawns its engine on first use. Ready is part of the first exchange.
type lazyTransport struct {
	scriptTransport
}

func (l *lazyTransport) Send(ctx context.Context, msg Message) error {
	l.queue = append(l.queue,
		Message{Type: MessageReady},
		Message{Type: MessageEval, Snapshot: msg.Snapshot, ScoreCP: 7, BestMove: "g1f3", Depth: msg.Depth},
	)
	return l.scriptTransport.Send(ctx, msg)
}

func TestEvaluateSendsBeforeWaiting(t *testing.T) {
	tr := &lazyTransport{}
	c, err := NewClient(tr, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	// a client that waits for readiness before sending deadlocks here
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := c.Evaluate(ctx, "fen-lazy", 10)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.ScoreCP != 7 || res.BestMove != "g1f3" {
		t.Errorf("result = %+v", res)
	}
	if len(tr.sent) != 1 {
		t.Errorf("sent = %+v", tr.sent)
	}
}

func TestEvaluateSkipsSupersededResponses(t *testing.T) {
	tr := &scriptTransport{queue: []Message{
		{Type: MessageReady},
		{Type: MessageEval, Snapshot: "fen-old", ScoreCP: -900},
		{Type: MessageEval, Snapshot: "fen-new", ScoreCP: 15, BestMove: "d2d4"},
	}}
	c, err := NewClient(tr, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	res, err := c.Evaluate(context.Background(), "fen-new", 12)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.ScoreCP != 15 || res.BestMove != "d2d4" {
		t.Errorf("superseded response leaked: %+v", res)
	}
}

func TestEvaluateMapsEngineError(t *testing.T) {
	tr := &scriptTransport{queue: []Message{
		{Type: MessageReady},
		{Type: MessageError, Text: "engine crashed"},
	}}
	c, err := NewClient(tr, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if _, err := c.Evaluate(context.Background(), "fen-a", 12); !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("error = %v, want ErrEngineUnavailable", err)
	}
}

func TestEvaluateMapsTransportFaults(t *testing.T) {
	tr := &scriptTransport{recvErr: errors.New("pipe broken")}
	c, err := NewClient(tr, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := c.Evaluate(context.Background(), "fen-a", 12); !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("receive fault = %v, want ErrEngineUnavailable", err)
	}

	tr2 := &scriptTransport{
		queue:   []Message{{Type: MessageReady}},
		sendErr: errors.New("stdin closed"),
	}
	c2, err := NewClient(tr2, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := c2.Evaluate(context.Background(), "fen-a", 12); !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("send fault = %v, want ErrEngineUnavailable", err)
	}
}

func TestEvaluateHonorsContext(t *testing.T) {
	tr := &scriptTransport{queue: []Message{{Type: MessageReady}}}
	c, err := NewClient(tr, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.Evaluate(ctx, "fen-a", 12); !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("timeout = %v, want ErrEngineUnavailable", err)
	}
}

func TestReadinessSurvivesRestartNotice(t *testing.T) {
	tr := &scriptTransport{queue: []Message{
		{Type: MessageReady},
		{Type: MessageReady}, // engine restarted between requests
		{Type: MessageEval, Snapshot: "fen-a", ScoreCP: 5, BestMove: "c2c4"},
	}}
	c, err := NewClient(tr, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	res, err := c.Evaluate(context.Background(), "fen-a", 12)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.BestMove != "c2c4" {
		t.Errorf("result = %+v", res)
	}
}

func TestNewClientRequiresTransport(t *testing.T) {
	if _, err := NewClient(nil, nil); err == nil {
		t.Fatal("expected error for nil transport")
	}
}

func TestCloseDelegates(t *testing.T) {
	tr := &scriptTransport{}
	c, err := NewClient(tr, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !tr.closed {
		t.Fatal("transport not closed")
	}
}
