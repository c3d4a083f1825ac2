// Package archive keeps finished sparring sessions in Redis for a bounded
// retention window, so the surrounding stream service can fetch recent
// results without touching the database.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kapu/reel-spar-go/internal/domain"
)

const (
	recentIndexKey = "spar:recent"
	recentIndexMax = 100
)

type Store struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewStore(redisURL string, ttl time.Duration, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for session archive")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{rdb: rdb, ttl: ttl, logger: logger}, nil
}

func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

type record struct {
	SessionUUID string    `json:"session_uuid"`
	StartFEN    string    `json:"start_fen"`
	PlayerSide  string    `json:"player_side"`
	MovesUCI    []string  `json:"moves_uci"`
	MovesSAN    []string  `json:"moves_san"`
	Outcome     string    `json:"outcome"`
	Method      string    `json:"method,omitempty"`
	FinalScore  float64   `json:"final_score"`
	Tier        string    `json:"tier,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at"`
	DurationMS  int64     `json:"duration_ms"`
}

// SaveEnded stores one finished session and pushes it onto the recency
// index. Both entries share the archive TTL.
func (s *Store) SaveEnded(ctx context.Context, rec *domain.SparSession) error {
	if rec == nil || strings.TrimSpace(rec.SessionUUID) == "" {
		return fmt.Errorf("cannot archive session without uuid")
	}
	raw, err := json.Marshal(toRecord(rec))
	if err != nil {
		return fmt.Errorf("marshal session record: %w", err)
	}
	key := sessionKey(rec.SessionUUID)
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, key, raw, s.ttl)
	pipe.LPush(ctx, recentIndexKey, rec.SessionUUID)
	pipe.LTrim(ctx, recentIndexKey, 0, recentIndexMax-1)
	pipe.Expire(ctx, recentIndexKey, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("archive session %s: %w", rec.SessionUUID, err)
	}
	return nil
}

// Get returns an archived session, or nil when it expired or never existed.
func (s *Store) Get(ctx context.Context, sessionUUID string) (*domain.SparSession, error) {
	raw, err := s.rdb.Get(ctx, sessionKey(sessionUUID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode session record: %w", err)
	}
	return fromRecord(&rec), nil
}

// Recent lists the latest archived sessions, newest first. Entries whose
// payload already expired are skipped.
func (s *Store) Recent(ctx context.Context, limit int) ([]*domain.SparSession, error) {
	if limit <= 0 || limit > recentIndexMax {
		limit = 10
	}
	ids, err := s.rdb.LRange(ctx, recentIndexKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*domain.SparSession, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Get(ctx, id)
		if err != nil {
			s.logger.Warn("archive_entry_unreadable", zap.String("session_uuid", id), zap.Error(err))
			continue
		}
		if rec != nil {
			out = append(out, rec)
		}
	}
	return out, nil
}

func toRecord(rec *domain.SparSession) *record {
	return &record{
		SessionUUID: rec.SessionUUID,
		StartFEN:    rec.StartFEN,
		PlayerSide:  rec.PlayerSide,
		MovesUCI:    append([]string(nil), rec.MovesUCI...),
		MovesSAN:    append([]string(nil), rec.MovesSAN...),
		Outcome:     rec.Outcome,
		Method:      rec.Method,
		FinalScore:  rec.FinalScore,
		Tier:        rec.Tier,
		StartedAt:   rec.StartedAt,
		EndedAt:     rec.EndedAt,
		DurationMS:  rec.Duration.Milliseconds(),
	}
}

func fromRecord(rec *record) *domain.SparSession {
	return &domain.SparSession{
		SessionUUID: rec.SessionUUID,
		StartFEN:    rec.StartFEN,
		PlayerSide:  rec.PlayerSide,
		MovesUCI:    rec.MovesUCI,
		MovesSAN:    rec.MovesSAN,
		Outcome:     rec.Outcome,
		Method:      rec.Method,
		FinalScore:  rec.FinalScore,
		Tier:        rec.Tier,
		StartedAt:   rec.StartedAt,
		EndedAt:     rec.EndedAt,
		Duration:    time.Duration(rec.DurationMS) * time.Millisecond,
	}
}

func sessionKey(sessionUUID string) string {
	return "spar:session:" + strings.TrimSpace(sessionUUID)
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
