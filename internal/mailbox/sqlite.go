package mailbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS rooms (
	id         TEXT PRIMARY KEY,
	offer      BLOB,
	answer     BLOB,
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS candidates (
	seq     INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id TEXT NOT NULL,
	payload BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS candidates_room_seq ON candidates (room_id, seq);`

// SQLiteStore persists rooms in a single SQLite file, so a restarted server
// still hands out pending offers.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (and migrates) the database at path.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite has a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, roomID string) (*Room, error) {
	if err := checkRoom(roomID); err != nil {
		return nil, err
	}

	room := &Room{Candidates: []json.RawMessage{}}
	var offer, answer []byte
	err := s.db.QueryRowContext(ctx, `SELECT offer, answer FROM rooms WHERE id = ?`, roomID).Scan(&offer, &answer)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return room, nil
	case err != nil:
		return nil, unavailable("get", roomID, err)
	}
	room.Offer = rawOrNil(offer)
	room.Answer = rawOrNil(answer)

	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM candidates WHERE room_id = ? ORDER BY seq`, roomID)
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

func (s *SQLiteStore) SetOffer(ctx context.Context, roomID string, offer json.RawMessage) error {
	return s.setColumn(ctx, "offer", roomID, offer)
}

func (s *SQLiteStore) SetAnswer(ctx context.Context, roomID string, answer json.RawMessage) error {
	return s.setColumn(ctx, "answer", roomID, answer)
}

func (s *SQLiteStore) setColumn(ctx context.Context, column, roomID string, payload json.RawMessage) error {
	if err := checkPayload(roomID, payload); err != nil {
		return err
	}
	query := fmt.Sprintf(`
		INSERT INTO rooms (id, %[1]s, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET %[1]s = excluded.%[1]s, updated_at = excluded.updated_at`, column)
	if _, err := s.db.ExecContext(ctx, query, roomID, []byte(payload), s.now().UnixMilli()); err != nil {
		return unavailable("set "+column, roomID, err)
	}
	return nil
}

func (s *SQLiteStore) AppendCandidate(ctx context.Context, roomID string, candidate json.RawMessage) error {
	if err := checkPayload(roomID, candidate); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("append candidate", roomID, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO rooms (id, updated_at) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET updated_at = excluded.updated_at`,
		roomID, s.now().UnixMilli()); err != nil {
		return unavailable("append candidate", roomID, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO candidates (room_id, payload) VALUES (?, ?)`, roomID, []byte(candidate)); err != nil {
		return unavailable("append candidate", roomID, err)
	}
	if err := tx.Commit(); err != nil {
		return unavailable("append candidate", roomID, err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context, roomID string) error {
	if err := checkRoom(roomID); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("clear", roomID, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM candidates WHERE room_id = ?`, roomID); err != nil {
		return unavailable("clear", roomID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, roomID); err != nil {
		return unavailable("clear", roomID, err)
	}
	if err := tx.Commit(); err != nil {
		return unavailable("clear", roomID, err)
	}
	return nil
}

func (s *SQLiteStore) Sweep(ctx context.Context, olderThan time.Time) (int, error) {
	cutoff := olderThan.UnixMilli()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, unavailable("sweep", "", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM candidates WHERE room_id IN (SELECT id FROM rooms WHERE updated_at < ?)`, cutoff); err != nil {
		return 0, unavailable("sweep", "", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM rooms WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, unavailable("sweep", "", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, unavailable("sweep", "", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func rawOrNil(b []byte) json.RawMessage {
	if len(b) == 0 {
		return nil
	}
	return json.RawMessage(b)
}
