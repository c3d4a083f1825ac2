package evalengine

import "context"

// MessageType discriminates the transport protocol messages.
type MessageType string

const (
	MessageEvaluate MessageType = "evaluate"
	MessageEval     MessageType = "eval"
	MessageError    MessageType = "error"
	MessageReady    MessageType = "ready"
)

// Message is the wire unit exchanged with the evaluation engine transport.
// Eval responses echo the snapshot they were computed for so late replies
// to superseded requests stay detectable.
type Message struct {
	Type     MessageType `json:"type"`
	Snapshot string      `json:"snapshot,omitempty"`
	Depth    int         `json:"depth,omitempty"`
	ScoreCP  int         `json:"score,omitempty"`
	BestMove string      `json:"best_move,omitempty"`
	Text     string      `json:"message,omitempty"`
}

// Transport carries messages to and from an evaluation engine. Delivery is
// neither ordered nor cancelable; relevance is re-checked by the consumer.
type Transport interface {
	Send(ctx context.Context, msg Message) error
	Receive(ctx context.Context) (Message, error)
	Close() error
}
