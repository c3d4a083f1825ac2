// Package evalengine bridges the session orchestrator to an external
// position-evaluation engine over an asynchronous message transport.
package evalengine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrEngineUnavailable covers transport faults, failed engine handshakes
// and malformed responses. The caller treats it as "evaluation skipped".
var ErrEngineUnavailable = errors.New("evaluation engine unavailable")

// Result is one engine assessment. ScoreCP is in centipawns relative to
// the side to move of the evaluated snapshot.
type Result struct {
	ScoreCP  int
	BestMove string
	Depth    int
}

// Client issues at most one logical evaluation at a time. A new request
// supersedes the previous one's relevance; responses carrying a different
// snapshot are skipped rather than surfaced.
type Client struct {
	transport Transport
	logger    *zap.Logger

	mu sync.Mutex
}

func NewClient(transport Transport, logger *zap.Logger) (*Client, error) {
	if transport == nil {
		return nil, fmt.Errorf("evaluation transport is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{transport: transport, logger: logger}, nil
}

// Evaluate requests an assessment of one snapshot and blocks until the
// matching response, an engine error, or ctx expiry. The transport brings
// the engine up on first use, so the request is sent first and the ready
// notice from the handshake is consumed from the response stream. No
// automatic retry; the next state-changing move re-requests naturally.
func (c *Client) Evaluate(ctx context.Context, snapshot string, depth int) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	req := Message{Type: MessageEvaluate, Snapshot: snapshot, Depth: depth}
	if err := c.transport.Send(ctx, req); err != nil {
		return Result{}, fmt.Errorf("%w: send evaluate: %v", ErrEngineUnavailable, err)
	}

	for {
		msg, err := c.transport.Receive(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("%w: receive: %v", ErrEngineUnavailable, err)
		}
		switch msg.Type {
		case MessageReady:
			// handshake of a freshly started or restarted engine
			continue
		case MessageError:
			return Result{}, fmt.Errorf("%w: %s", ErrEngineUnavailable, msg.Text)
		case MessageEval:
			if msg.Snapshot != "" && msg.Snapshot != snapshot {
				c.logger.Debug("eval_response_superseded", zap.String("snapshot", msg.Snapshot))
				continue
			}
			return Result{ScoreCP: msg.ScoreCP, BestMove: msg.BestMove, Depth: msg.Depth}, nil
		default:
			c.logger.Debug("eval_response_unknown", zap.String("type", string(msg.Type)))
		}
	}
}

func (c *Client) Close() error {
	return c.transport.Close()
}
