package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	HTTPListenAddr string
	WSListenAddr   string

	RedisURL    string
	DatabaseURL string

	StockfishPath string

	EvalDepth     int
	EvalTimeout   time.Duration
	OpponentDelay time.Duration
	FailSettle    time.Duration

	WarningThreshold float64
	FailThreshold    float64

	ArchiveTTL time.Duration

	NoticeOverrideDir string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		HTTPListenAddr:   ":8090",
		WSListenAddr:     ":8091",
		EvalDepth:        12,
		EvalTimeout:      8 * time.Second,
		OpponentDelay:    500 * time.Millisecond,
		FailSettle:       1200 * time.Millisecond,
		WarningThreshold: -0.8,
		FailThreshold:    -1.5,
		ArchiveTTL:       24 * time.Hour,
	}

	if v := strings.TrimSpace(os.Getenv("HTTP_LISTEN_ADDR")); v != "" {
		cfg.HTTPListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("WS_LISTEN_ADDR")); v != "" {
		cfg.WSListenAddr = v
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.StockfishPath = strings.TrimSpace(os.Getenv("STOCKFISH_PATH"))

	if v := strings.TrimSpace(os.Getenv("SPAR_EVAL_DEPTH")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EvalDepth = n
		}
	}
	if d, ok := millisEnv("SPAR_EVAL_TIMEOUT_MS"); ok {
		cfg.EvalTimeout = d
	}
	if d, ok := millisEnv("SPAR_OPPONENT_DELAY_MS"); ok {
		cfg.OpponentDelay = d
	}
	if d, ok := millisEnv("SPAR_FAIL_SETTLE_MS"); ok {
		cfg.FailSettle = d
	}

	if v := strings.TrimSpace(os.Getenv("SPAR_WARNING_THRESHOLD")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.WarningThreshold = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("SPAR_FAIL_THRESHOLD")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.FailThreshold = f
		}
	}

	if v := strings.TrimSpace(os.Getenv("SPAR_ARCHIVE_TTL")); v != "" { // seconds
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ArchiveTTL = time.Duration(n) * time.Second
		}
	}

	cfg.NoticeOverrideDir = strings.TrimSpace(os.Getenv("SPAR_NOTICE_DIR"))

	if cfg.StockfishPath == "" {
		return nil, errors.New("STOCKFISH_PATH is required")
	}
	if cfg.FailThreshold > cfg.WarningThreshold {
		return nil, errors.New("SPAR_FAIL_THRESHOLD must not exceed SPAR_WARNING_THRESHOLD")
	}

	return cfg, nil
}

func millisEnv(key string) (time.Duration, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return time.Duration(n) * time.Millisecond, true
}
