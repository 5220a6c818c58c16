// Package store persists ingested room messages in SQLite and serves them
// back a page at a time for the timeline's windowed list.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	_ "modernc.org/sqlite"
)

// Message is one room message row.
type Message struct {
	RowID     int64
	RoomID    string
	EventID   string
	Sender    string
	Type      string // m.text, m.emote, m.notice, ...
	Body      string
	Timestamp time.Time
}

// Fingerprint hashes the mutable parts of a message. The timeline differ
// uses it as the content-equality policy: same event id, different
// fingerprint means the message was edited.
func (m *Message) Fingerprint() uint64 {
	h := xxhash.New()
	h.WriteString(m.Sender)
	h.Write([]byte{0})
	h.WriteString(m.Type)
	h.Write([]byte{0})
	h.WriteString(m.Body)
	return h.Sum64()
}

// Room is a summary row for the sidebar.
type Room struct {
	ID       string
	Name     string
	Messages int
}

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS messages (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id  TEXT NOT NULL,
	event_id TEXT NOT NULL,
	sender   TEXT NOT NULL,
	type     TEXT NOT NULL,
	body     TEXT NOT NULL,
	ts       INTEGER NOT NULL,
	UNIQUE (room_id, event_id)
);
CREATE INDEX IF NOT EXISTS idx_messages_room_ts ON messages (room_id, ts, id);
`

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// modernc's driver is not safe for concurrent writes on one connection
	// pool entry per statement; a single connection sidesteps SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertRoom records a room, updating its display name if already known.
func (s *Store) UpsertRoom(id, name string) error {
	_, err := s.db.Exec(`
		INSERT INTO rooms (id, name) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name`,
		id, name)
	if err != nil {
		return fmt.Errorf("upsert room %s: %w", id, err)
	}
	return nil
}

// InsertMessages stores a batch, skipping events already present. Returns
// the number of newly inserted rows.
func (s *Store) InsertMessages(msgs []*Message) (int, error) {
	if len(msgs) == 0 {
		return 0, nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO messages (room_id, event_id, sender, type, body, ts)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	added := 0
	for _, m := range msgs {
		res, err := stmt.Exec(m.RoomID, m.EventID, m.Sender, m.Type, m.Body, m.Timestamp.UnixMilli())
		if err != nil {
			return added, fmt.Errorf("insert message %s: %w", m.EventID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			added++
		}
	}
	if err := tx.Commit(); err != nil {
		return added, fmt.Errorf("commit insert: %w", err)
	}
	return added, nil
}

// CountMessages returns the number of messages stored for a room.
func (s *Store) CountMessages(roomID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE room_id = ?`, roomID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count messages for %s: %w", roomID, err)
	}
	return n, nil
}

// MessagePage returns one page of a room's messages in timeline order
// (ascending timestamp, row id as tiebreak).
func (s *Store) MessagePage(roomID string, offset, limit int) ([]*Message, error) {
	rows, err := s.db.Query(`
		SELECT id, room_id, event_id, sender, type, body, ts
		FROM messages WHERE room_id = ?
		ORDER BY ts, id
		LIMIT ? OFFSET ?`,
		roomID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("page messages for %s: %w", roomID, err)
	}
	defer rows.Close()

	var out []*Message
	for rows.Next() {
		m := &Message{}
		var ts int64
		if err := rows.Scan(&m.RowID, &m.RoomID, &m.EventID, &m.Sender, &m.Type, &m.Body, &ts); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Timestamp = time.UnixMilli(ts)
		out = append(out, m)
	}
	return out, rows.Err()
}

// Rooms lists known rooms with message counts, busiest first.
func (s *Store) Rooms() ([]Room, error) {
	rows, err := s.db.Query(`
		SELECT r.id, r.name, COUNT(m.id)
		FROM rooms r LEFT JOIN messages m ON m.room_id = r.id
		GROUP BY r.id ORDER BY COUNT(m.id) DESC, r.id`)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var out []Room
	for rows.Next() {
		var r Room
		if err := rows.Scan(&r.ID, &r.Name, &r.Messages); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RoomLoader adapts one room's messages to the paging Loader contract.
type RoomLoader struct {
	Store  *Store
	RoomID string
}

// Count implements paging.Loader.
func (l *RoomLoader) Count() (int, error) {
	return l.Store.CountMessages(l.RoomID)
}

// Page implements paging.Loader.
func (l *RoomLoader) Page(offset, limit int) ([]*Message, error) {
	return l.Store.MessagePage(l.RoomID, offset, limit)
}
