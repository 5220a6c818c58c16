package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// exportEvent mirrors one line of a room-log export: a Matrix-style event
// object, one per line.
type exportEvent struct {
	Type           string        `json:"type"`
	EventID        string        `json:"event_id"`
	Sender         string        `json:"sender"`
	RoomID         string        `json:"room_id"`
	OriginServerTS int64         `json:"origin_server_ts"`
	Content        exportContent `json:"content"`
}

type exportContent struct {
	MsgType string `json:"msgtype"`
	Body    string `json:"body"`
}

// maxLineBytes caps a single export line; anything larger is skipped.
const maxLineBytes = 4 * 1024 * 1024

// IngestFile reads one .jsonl room log into the store. The room id defaults
// to the file's base name when events carry none. Malformed lines are
// skipped with a debug log, not fatal: exports written while a client is
// running routinely end in a truncated line.
func (s *Store) IngestFile(path string, logger *slog.Logger) (roomID string, added int, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open export: %w", err)
	}
	defer f.Close()

	fallbackRoom := RoomIDForPath(path)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var msgs []*Message
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var ev exportEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			logger.Debug("skipping malformed export line", "path", path, "line", lineNo, "err", err)
			continue
		}
		if ev.Type != "m.room.message" {
			continue
		}
		m := messageFromEvent(ev, fallbackRoom)
		if roomID == "" {
			roomID = m.RoomID
		}
		msgs = append(msgs, m)
	}
	if err := scanner.Err(); err != nil {
		return roomID, 0, fmt.Errorf("read export %s: %w", path, err)
	}
	if roomID == "" {
		roomID = fallbackRoom
	}

	if err := s.UpsertRoom(roomID, roomDisplayName(roomID)); err != nil {
		return roomID, 0, err
	}
	added, err = s.InsertMessages(msgs)
	if err != nil {
		return roomID, added, err
	}
	return roomID, added, nil
}

// IngestDir ingests every .jsonl file directly under dir. Returns the total
// number of newly stored messages.
func (s *Store) IngestDir(dir string, logger *slog.Logger) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read export dir: %w", err)
	}
	total := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		_, added, err := s.IngestFile(filepath.Join(dir, e.Name()), logger)
		if err != nil {
			return total, err
		}
		total += added
	}
	return total, nil
}

// RoomIDForPath derives the room id an export file maps to.
func RoomIDForPath(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ".jsonl")
}

func messageFromEvent(ev exportEvent, fallbackRoom string) *Message {
	m := &Message{
		RoomID:    ev.RoomID,
		EventID:   ev.EventID,
		Sender:    ev.Sender,
		Type:      ev.Content.MsgType,
		Body:      ev.Content.Body,
		Timestamp: time.UnixMilli(ev.OriginServerTS),
	}
	if m.RoomID == "" {
		m.RoomID = fallbackRoom
	}
	if m.Type == "" {
		m.Type = "m.text"
	}
	if m.EventID == "" {
		// Hand-rolled exports sometimes drop event ids; synthesize a
		// stable one so re-ingest stays idempotent.
		h := xxhash.New()
		h.WriteString(m.Sender)
		h.Write([]byte{0})
		h.WriteString(m.Body)
		h.Write([]byte{0})
		fmt.Fprintf(h, "%d", ev.OriginServerTS)
		m.EventID = fmt.Sprintf("$synth-%016x", h.Sum64())
	}
	return m
}

// roomDisplayName trims export-file noise from a room id for the sidebar.
func roomDisplayName(roomID string) string {
	name := strings.TrimPrefix(roomID, "!")
	if i := strings.IndexByte(name, ':'); i > 0 {
		name = name[:i]
	}
	return name
}
