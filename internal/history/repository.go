// Package history persists finished sparring sessions to Postgres.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"github.com/kapu/reel-spar-go/internal/domain"
)

var ErrDuplicateSession = errors.New("spar session already recorded")

type Repository interface {
	InsertSession(ctx context.Context, rec *domain.SparSession) (int64, error)
	GetSession(ctx context.Context, id int64) (*domain.SparSession, error)
	GetRecentSessions(ctx context.Context, limit int) ([]*domain.SparSession, error)
}

type repository struct {
	db *sql.DB
}

// Open connects to Postgres and returns the repository together with the
// handle so the caller controls its lifecycle.
func Open(databaseURL string) (Repository, *sql.DB, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL required for history repository")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("database ping: %w", err)
	}
	return &repository{db: db}, db, nil
}

func (r *repository) InsertSession(ctx context.Context, rec *domain.SparSession) (int64, error) {
	if rec == nil {
		return 0, fmt.Errorf("nil spar session payload")
	}

	movesUCI, err := json.Marshal(rec.MovesUCI)
	if err != nil {
		return 0, fmt.Errorf("marshal moves_uci: %w", err)
	}
	movesSAN, err := json.Marshal(rec.MovesSAN)
	if err != nil {
		return 0, fmt.Errorf("marshal moves_san: %w", err)
	}

	const query = `
		INSERT INTO spar_sessions (
			session_uuid,
			start_fen,
			player_side,
			moves_uci,
			moves_san,
			outcome,
			method,
			final_score,
			tier,
			started_at,
			ended_at,
			duration_ms
		)
		VALUES ($1, $2, $3, $4::jsonb, $5::jsonb, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (session_uuid) DO NOTHING
		RETURNING id`

	var id sql.NullInt64
	err = r.db.QueryRowContext(
		ctx,
		query,
		rec.SessionUUID,
		rec.StartFEN,
		rec.PlayerSide,
		movesUCI,
		movesSAN,
		rec.Outcome,
		rec.Method,
		rec.FinalScore,
		rec.Tier,
		rec.StartedAt,
		rec.EndedAt,
		rec.Duration.Milliseconds(),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrDuplicateSession
	}
	if err != nil {
		return 0, fmt.Errorf("insert spar session: %w", err)
	}
	return id.Int64, nil
}

func (r *repository) GetSession(ctx context.Context, id int64) (*domain.SparSession, error) {
	const query = selectColumns + ` WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)
	rec, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func (r *repository) GetRecentSessions(ctx context.Context, limit int) ([]*domain.SparSession, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	const query = selectColumns + ` ORDER BY ended_at DESC LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent sessions: %w", err)
	}
	defer rows.Close()

	var out []*domain.SparSession
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

const selectColumns = `
	SELECT id, session_uuid, start_fen, player_side, moves_uci, moves_san,
	       outcome, method, final_score, tier, started_at, ended_at, duration_ms
	FROM spar_sessions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.SparSession, error) {
	var (
		rec        domain.SparSession
		movesUCI   []byte
		movesSAN   []byte
		durationMS int64
	)
	err := row.Scan(
		&rec.ID,
		&rec.SessionUUID,
		&rec.StartFEN,
		&rec.PlayerSide,
		&movesUCI,
		&movesSAN,
		&rec.Outcome,
		&rec.Method,
		&rec.FinalScore,
		&rec.Tier,
		&rec.StartedAt,
		&rec.EndedAt,
		&durationMS,
	)
	if err != nil {
		return nil, err
	}
	if len(movesUCI) > 0 {
		if err := json.Unmarshal(movesUCI, &rec.MovesUCI); err != nil {
			return nil, fmt.Errorf("decode moves_uci: %w", err)
		}
	}
	if len(movesSAN) > 0 {
		if err := json.Unmarshal(movesSAN, &rec.MovesSAN); err != nil {
			return nil, fmt.Errorf("decode moves_san: %w", err)
		}
	}
	rec.Duration = durationFromMS(durationMS)
	return &rec, nil
}
