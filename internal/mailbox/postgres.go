package mailbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS signaling_rooms (
	id         TEXT PRIMARY KEY,
	offer      BYTEA,
	answer     BYTEA,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS signaling_candidates (
	seq     BIGSERIAL PRIMARY KEY,
	room_id TEXT NOT NULL REFERENCES signaling_rooms (id) ON DELETE CASCADE,
	payload BYTEA NOT NULL
);
CREATE INDEX IF NOT EXISTS signaling_candidates_room_seq ON signaling_candidates (room_id, seq);`

// PostgresStore keeps rooms in Postgres so several signaling servers can sit
// behind one load balancer.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore connects to dsn and runs the schema migration.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}
	return &PostgresStore{db: pool}, nil
}

func (s *PostgresStore) Get(ctx context.Context, roomID string) (*Room, error) {
	if err := checkRoom(roomID); err != nil {
		return nil, err
	}

	room := &Room{Candidates: []json.RawMessage{}}
	var offer, answer []byte
	err := s.db.QueryRow(ctx, `SELECT offer, answer FROM signaling_rooms WHERE id = $1`, roomID).
		Scan(&offer, &answer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return room, nil
		}
		return nil, unavailable("get", roomID, err)
	}
	room.Offer = rawOrNil(offer)
	room.Answer = rawOrNil(answer)

	rows, err := s.db.Query(ctx, `SELECT payload FROM signaling_candidates WHERE room_id = $1 ORDER BY seq`, roomID)
	if err != nil {
		return nil, unavailable("get", roomID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, unavailable("get", roomID, err)
		}
		room.Candidates = append(room.Candidates, json.RawMessage(payload))
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("get", roomID, err)
	}
	return room, nil
}

func (s *PostgresStore) SetOffer(ctx context.Context, roomID string, offer json.RawMessage) error {
	return s.setColumn(ctx, "offer", roomID, offer)
}

func (s *PostgresStore) SetAnswer(ctx context.Context, roomID string, answer json.RawMessage) error {
	return s.setColumn(ctx, "answer", roomID, answer)
}

func (s *PostgresStore) setColumn(ctx context.Context, column, roomID string, payload json.RawMessage) error {
	if err := checkPayload(roomID, payload); err != nil {
		return err
	}
	query := fmt.Sprintf(`
		INSERT INTO signaling_rooms (id, %[1]s, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE SET %[1]s = EXCLUDED.%[1]s, updated_at = now()`, column)
	if _, err := s.db.Exec(ctx, query, roomID, []byte(payload)); err != nil {
		return unavailable("set "+column, roomID, err)
	}
	return nil
}

func (s *PostgresStore) AppendCandidate(ctx context.Context, roomID string, candidate json.RawMessage) error {
	if err := checkPayload(roomID, candidate); err != nil {
		return err
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return unavailable("append candidate", roomID, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO signaling_rooms (id) VALUES ($1)
		ON CONFLICT (id) DO UPDATE SET updated_at = now()`, roomID); err != nil {
		return unavailable("append candidate", roomID, err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO signaling_candidates (room_id, payload) VALUES ($1, $2)`, roomID, []byte(candidate)); err != nil {
		return unavailable("append candidate", roomID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return unavailable("append candidate", roomID, err)
	}
	return nil
}

func (s *PostgresStore) Clear(ctx context.Context, roomID string) error {
	if err := checkRoom(roomID); err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM signaling_rooms WHERE id = $1`, roomID); err != nil {
		return unavailable("clear", roomID, err)
	}
	return nil
}

func (s *PostgresStore) Sweep(ctx context.Context, olderThan time.Time) (int, error) {
	cmd, err := s.db.Exec(ctx, `DELETE FROM signaling_rooms WHERE updated_at < $1`, olderThan)
	if err != nil {
		return 0, unavailable("sweep", "", err)
	}
	return int(cmd.RowsAffected()), nil
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}
