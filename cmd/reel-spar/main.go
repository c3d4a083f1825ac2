package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/reel-spar-go/internal/archive"
	"github.com/kapu/reel-spar-go/internal/config"
	"github.com/kapu/reel-spar-go/internal/domain"
	"github.com/kapu/reel-spar-go/internal/evalengine"
	"github.com/kapu/reel-spar-go/internal/gateway"
	"github.com/kapu/reel-spar-go/internal/history"
	"github.com/kapu/reel-spar-go/internal/msgcat"
	"github.com/kapu/reel-spar-go/internal/obslog"
	"github.com/kapu/reel-spar-go/internal/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	if err := obslog.InitFromEnv(); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	logger := obslog.L()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	transport, err := evalengine.NewProcTransport(evalengine.ProcConfig{
		BinaryPath: cfg.StockfishPath,
	}, logger)
	if err != nil {
		return fmt.Errorf("engine transport: %w", err)
	}
	client, err := evalengine.NewClient(transport, logger)
	if err != nil {
		return fmt.Errorf("engine client: %w", err)
	}
	defer client.Close()

	var sinks []session.Sink

	if cfg.RedisURL != "" {
		store, err := archive.NewStore(cfg.RedisURL, cfg.ArchiveTTL, logger)
		if err != nil {
			return fmt.Errorf("archive store: %w", err)
		}
		defer store.Close()
		sinks = append(sinks, archiveSink{store})
	} else {
		logger.Info("archive_disabled_no_redis")
	}

	if cfg.DatabaseURL != "" {
		repo, db, err := history.Open(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("history repository: %w", err)
		}
		defer db.Close()
		sinks = append(sinks, historySink{repo})
	} else {
		logger.Info("history_in_memory")
		sinks = append(sinks, historySink{history.NewMemoryRepository()})
	}

	catalog, err := msgcat.New(cfg.NoticeOverrideDir)
	if err != nil {
		return fmt.Errorf("notice catalog: %w", err)
	}

	orch := session.New(engineEvaluator{client}, session.Config{
		EvalDepth:        cfg.EvalDepth,
		EvalTimeout:      cfg.EvalTimeout,
		OpponentDelay:    cfg.OpponentDelay,
		FailSettleDelay:  cfg.FailSettle,
		WarningThreshold: cfg.WarningThreshold,
		FailThreshold:    cfg.FailThreshold,
	}, logger, sinks...)

	srv := gateway.NewServer(orch, catalog, cfg.HTTPListenAddr, cfg.WSListenAddr, logger)

	logger.Info("reel_spar_up",
		zap.String("http", cfg.HTTPListenAddr),
		zap.String("ws", cfg.WSListenAddr),
		zap.Int("eval_depth", cfg.EvalDepth))

	return srv.Run(ctx)
}

// engineEvaluator bridges the engine client to the orchestrator's
// evaluator contract.
type engineEvaluator struct {
	client *evalengine.Client
}

func (e engineEvaluator) Evaluate(ctx context.Context, req session.EvalRequest) (session.EvalResult, error) {
	res, err := e.client.Evaluate(ctx, req.Snapshot, req.Depth)
	if err != nil {
		return session.EvalResult{}, err
	}
	return session.EvalResult{
		ScoreCP:  res.ScoreCP,
		BestMove: res.BestMove,
		Depth:    res.Depth,
	}, nil
}

type archiveSink struct {
	store *archive.Store
}

func (a archiveSink) SessionEnded(ctx context.Context, rec *domain.SparSession) error {
	return a.store.SaveEnded(ctx, rec)
}

type historySink struct {
	repo history.Repository
}

func (h historySink) SessionEnded(ctx context.Context, rec *domain.SparSession) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := h.repo.InsertSession(ctx, rec)
	if errors.Is(err, history.ErrDuplicateSession) {
		return nil
	}
	return err
}
