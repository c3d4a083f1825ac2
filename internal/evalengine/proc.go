package evalengine

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	procHandshakeTimeout = 4 * time.Second
	procOutBuffer        = 8
	defaultSearchDepth   = 12
	mateScoreCP          = 30000
)

// ProcConfig configures the engine subprocess transport.
type ProcConfig struct {
	BinaryPath string
	Threads    int
	HashMB     int
}

// ProcTransport runs a UCI engine as a child process and maps the line
// protocol onto the message protocol: the uci/isready handshake becomes
// the ready message, evaluate becomes position+go, and the final
// info/bestmove pair becomes the eval message. A crashed or abandoned
// process is discarded and restarted lazily on the next request.
type ProcTransport struct {
	cfg    ProcConfig
	logger *zap.Logger
	out    chan Message

	mu        sync.Mutex
	gen       uint64
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	searching bool
}

func NewProcTransport(cfg ProcConfig, logger *zap.Logger) (*ProcTransport, error) {
	if cfg.BinaryPath == "" {
		return nil, fmt.Errorf("engine binary path required")
	}
	if _, err := os.Stat(cfg.BinaryPath); err != nil {
		return nil, fmt.Errorf("engine binary check: %w", err)
	}
	if cfg.Threads <= 0 {
		cfg.Threads = 1
	}
	if cfg.HashMB <= 0 {
		cfg.HashMB = 128
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProcTransport{
		cfg:    cfg,
		logger: logger,
		out:    make(chan Message, procOutBuffer),
	}, nil
}

func (t *ProcTransport) Send(ctx context.Context, msg Message) error {
	if msg.Type != MessageEvaluate {
		return fmt.Errorf("unsupported message type %q", msg.Type)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.searching {
		// the previous search was abandoned by a timeout; a fresh
		// process is cheaper than untangling its remaining output
		t.teardownLocked()
	}
	if err := t.ensureStartedLocked(ctx); err != nil {
		return err
	}

	depth := msg.Depth
	if depth <= 0 {
		depth = defaultSearchDepth
	}
	if err := t.writeLocked(buildPositionCommand(msg.Snapshot)); err != nil {
		t.teardownLocked()
		return fmt.Errorf("send position: %w", err)
	}
	if err := t.writeLocked(fmt.Sprintf("go depth %d\n", depth)); err != nil {
		t.teardownLocked()
		return fmt.Errorf("send go: %w", err)
	}

	t.searching = true
	go t.collect(t.gen, t.stdout, msg.Snapshot)
	return nil
}

func (t *ProcTransport) Receive(ctx context.Context) (Message, error) {
	select {
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case msg := <-t.out:
		return msg, nil
	}
}

func (t *ProcTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.teardownLocked()
	return nil
}

// collect drains engine output for one search until bestmove, then emits
// the eval message tagged with the snapshot it was computed for.
func (t *ProcTransport) collect(gen uint64, stdout *bufio.Reader, snapshot string) {
	var (
		scoreCP    int
		scoreDepth int
		scoreSeen  bool
	)
	for {
		raw, err := stdout.ReadString('\n')
		if err != nil {
			t.fail(gen, fmt.Sprintf("engine read: %v", err))
			return
		}
		line := strings.TrimSpace(raw)
		switch {
		case strings.HasPrefix(line, "info "):
			if cp, depth, ok := parseInfoScore(line); ok {
				scoreCP = cp
				scoreDepth = depth
				scoreSeen = true
			}
		case strings.HasPrefix(line, "bestmove"):
			best := parseBestMove(line)
			if best == "" || !scoreSeen {
				t.fail(gen, "engine returned no usable evaluation")
				return
			}
			t.mu.Lock()
			if gen == t.gen {
				t.searching = false
			}
			t.mu.Unlock()
			t.emit(Message{
				Type:     MessageEval,
				Snapshot: snapshot,
				ScoreCP:  scoreCP,
				BestMove: best,
				Depth:    scoreDepth,
			})
			return
		}
	}
}

// fail tears the process down and surfaces an error message, unless the
// process was already replaced (then the failure belongs to a dead search).
func (t *ProcTransport) fail(gen uint64, text string) {
	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		return
	}
	t.searching = false
	t.teardownLocked()
	t.mu.Unlock()
	t.logger.Warn("engine_search_failed", zap.String("reason", text))
	t.emit(Message{Type: MessageError, Text: text})
}

func (t *ProcTransport) emit(msg Message) {
	select {
	case t.out <- msg:
	default:
		t.logger.Warn("engine_message_dropped", zap.String("type", string(msg.Type)))
	}
}

func (t *ProcTransport) ensureStartedLocked(ctx context.Context) error {
	if t.cmd != nil {
		return nil
	}

	cmd := exec.Command(t.cfg.BinaryPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdoutPipe.Close()
		return fmt.Errorf("start engine: %w", err)
	}

	t.cmd = cmd
	t.stdin = stdin
	t.stdout = bufio.NewReader(stdoutPipe)
	t.gen++

	if err := t.handshakeLocked(ctx); err != nil {
		t.teardownLocked()
		return err
	}
	t.emit(Message{Type: MessageReady})
	t.logger.Info("engine_ready", zap.String("binary", t.cfg.BinaryPath))
	return nil
}

func (t *ProcTransport) handshakeLocked(ctx context.Context) error {
	hsCtx, cancel := context.WithTimeout(ctx, procHandshakeTimeout)
	defer cancel()

	if err := t.writeLocked("uci\n"); err != nil {
		return fmt.Errorf("send uci: %w", err)
	}
	if err := t.awaitTokenLocked(hsCtx, "uciok"); err != nil {
		return fmt.Errorf("wait uciok: %w", err)
	}

	opts := []string{
		fmt.Sprintf("setoption name Threads value %d\n", t.cfg.Threads),
		fmt.Sprintf("setoption name Hash value %d\n", t.cfg.HashMB),
	}
	for _, opt := range opts {
		if err := t.writeLocked(opt); err != nil {
			return fmt.Errorf("apply options: %w", err)
		}
	}

	if err := t.writeLocked("isready\n"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	if err := t.awaitTokenLocked(hsCtx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

func (t *ProcTransport) awaitTokenLocked(ctx context.Context, token string) error {
	for {
		line, err := readLineCtx(ctx, t.stdout)
		if err != nil {
			return err
		}
		if strings.Contains(line, token) {
			return nil
		}
	}
}

func (t *ProcTransport) writeLocked(msg string) error {
	_, err := io.WriteString(t.stdin, msg)
	return err
}

func (t *ProcTransport) teardownLocked() {
	if t.stdin != nil {
		t.stdin.Close()
		t.stdin = nil
	}
	if t.cmd != nil {
		if t.cmd.Process != nil {
			_ = t.cmd.Process.Kill()
		}
		go t.cmd.Wait()
		t.cmd = nil
	}
	t.stdout = nil
	t.searching = false
	t.gen++
}

func readLineCtx(ctx context.Context, r *bufio.Reader) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := r.ReadString('\n')
		ch <- result{line: strings.TrimSpace(line), err: err}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		return res.line, res.err
	}
}

func buildPositionCommand(snapshot string) string {
	fen := strings.TrimSpace(snapshot)
	if fen == "" || fen == "startpos" {
		return "position startpos\n"
	}
	return "position fen " + fen + "\n"
}

// parseInfoScore extracts the score and depth from a UCI info line. Mate
// scores collapse to a saturated centipawn value.
func parseInfoScore(line string) (scoreCP, depth int, ok bool) {
	parts := strings.Fields(line)
	var scoreSet bool
	for i := 0; i < len(parts); i++ {
		switch parts[i] {
		case "depth":
			if i+1 < len(parts) {
				if v, err := strconv.Atoi(parts[i+1]); err == nil {
					depth = v
				}
				i++
			}
		case "score":
			if i+2 < len(parts) {
				val := parts[i+2]
				switch parts[i+1] {
				case "cp":
					if v, err := strconv.Atoi(val); err == nil {
						scoreCP = v
						scoreSet = true
					}
				case "mate":
					if v, err := strconv.Atoi(val); err == nil {
						if v >= 0 {
							scoreCP = mateScoreCP
						} else {
							scoreCP = -mateScoreCP
						}
						scoreSet = true
					}
				}
				i += 2
			}
		}
	}
	return scoreCP, depth, scoreSet
}

func parseBestMove(line string) string {
	parts := strings.Fields(line)
	if len(parts) < 2 {
		return ""
	}
	move := strings.ToLower(parts[1])
	if move == "(none)" {
		return ""
	}
	return move
}
