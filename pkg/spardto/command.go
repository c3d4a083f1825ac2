package spardto

// Command types accepted from the presentation layer.
const (
	CommandStart = "start"
	CommandMove  = "move"
	CommandEnd   = "end"
	CommandReset = "reset"
)

// Command is one overlay-to-server message.
type Command struct {
	Type string `json:"type"`

	// start
	FEN  string `json:"fen,omitempty"`
	Side string `json:"side,omitempty"`

	// move
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Promotion string `json:"promotion,omitempty"`
}
