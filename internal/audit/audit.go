// Package audit records who viewed and controlled the desktop in a
// tamper-evident JSONL access log linked by a SHA-256 hash chain.
package audit

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/breeze-rmm/deskcast/internal/logging"
)

var log = logging.L("audit")

// Event types.
const (
	EventServerStarted = "server_started"
	EventServerStopped = "server_stopped"
	EventAuthFailed    = "auth_failed"
	EventStreamStarted = "stream_started"
	EventStreamEnded   = "stream_ended"
	EventControl       = "control"
	EventLogRotated    = "log_rotated"
)

const genesis = "genesis"

// syncedEvents are fsynced after writing.
var syncedEvents = map[string]bool{
	EventServerStarted: true,
	EventServerStopped: true,
	EventAuthFailed:    true,
}

// Entry is a single access log record.
type Entry struct {
	Timestamp string         `json:"timestamp"`
	Event     string         `json:"event"`
	Remote    string         `json:"remote,omitempty"`
	ConnID    string         `json:"connId,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	PrevHash  string         `json:"prevHash"`
	EntryHash string         `json:"entryHash"`
}

// Logger appends entries to the access log. On rotation the new file starts
// with an EventLogRotated entry linked to the last entry of the old file.
// A nil *Logger discards everything.
type Logger struct {
	mu         sync.Mutex
	file       *os.File
	filePath   string
	maxSize    int64
	maxBackups int
	written    int64
	prevHash   string
	dropped    atomic.Int64
	now        func() time.Time
}

// NewLogger opens (or creates) the access log at path and resumes its hash
// chain.
func NewLogger(path string, maxSizeMB, maxBackups int) (*Logger, error) {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	if maxBackups <= 0 {
		maxBackups = 3
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("create access log dir: %w", err)
		}
	}

	prev, err := lastHash(path)
	if err != nil {
		return nil, err
	}

	l := &Logger{
		filePath:   path,
		maxSize:    int64(maxSizeMB) * 1024 * 1024,
		maxBackups: maxBackups,
		prevHash:   prev,
		now:        time.Now,
	}
	if err := l.openFile(); err != nil {
		return nil, err
	}

	log.Info("access log opened", "path", path)
	return l, nil
}

// lastHash returns the entry hash of the final record in path, or genesis
// for a missing or empty file.
func lastHash(path string) (string, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return genesis, nil
	}
	if err != nil {
		return "", fmt.Errorf("open access log: %w", err)
	}
	defer f.Close()

	var last []byte
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := bytes.TrimSpace(sc.Bytes()); len(line) > 0 {
			last = append(last[:0], line...)
		}
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("read access log: %w", err)
	}
	if last == nil {
		return genesis, nil
	}

	var e Entry
	if err := json.Unmarshal(last, &e); err != nil || e.EntryHash == "" {
		log.Warn("access log tail unreadable, starting a new chain", "path", path)
		return genesis, nil
	}
	return e.EntryHash, nil
}

// Log writes one entry. The chain only advances after a successful write so
// a failed write leaves no gap.
func (l *Logger) Log(event, remote, connID string, details map[string]any) {
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry := Entry{
		Timestamp: l.now().UTC().Format(time.RFC3339Nano),
		Event:     event,
		Remote:    remote,
		ConnID:    connID,
		Details:   details,
		PrevHash:  l.prevHash,
	}
	data, err := seal(&entry)
	if err != nil {
		log.Error("failed to encode access log entry", logging.KeyError, err.Error(), "event", event)
		l.dropped.Add(1)
		return
	}

	if l.written+int64(len(data)) > l.maxSize {
		if err := l.rotate(); err != nil {
			log.Error("access log rotation failed", logging.KeyError, err.Error())
			l.dropped.Add(1)
			return
		}
		entry.PrevHash = l.prevHash
		if data, err = seal(&entry); err != nil {
			l.dropped.Add(1)
			return
		}
	}

	n, err := l.file.Write(data)
	if err != nil {
		log.Error("failed to write access log entry", logging.KeyError, err.Error(), "event", event)
		l.dropped.Add(1)
		return
	}
	l.written += int64(n)
	l.prevHash = entry.EntryHash

	if syncedEvents[event] {
		if err := l.file.Sync(); err != nil {
			log.Warn("access log fsync failed", logging.KeyError, err.Error(), "event", event)
		}
	}
}

// seal computes the entry hash and returns the JSONL line.
func seal(e *Entry) ([]byte, error) {
	h, err := computeHash(*e)
	if err != nil {
		return nil, err
	}
	e.EntryHash = h
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Close closes the log file.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// DroppedCount returns how many entries failed to write, or -1 for a nil
// logger.
func (l *Logger) DroppedCount() int64 {
	if l == nil {
		return -1
	}
	return l.dropped.Load()
}

// computeHash hashes length-prefixed fields so no two field combinations
// produce the same input.
func computeHash(e Entry) (string, error) {
	h := sha256.New()
	for _, field := range []string{e.Timestamp, e.Event, e.Remote, e.ConnID, e.PrevHash} {
		fmt.Fprintf(h, "%d:%s", len(field), field)
	}
	if e.Details != nil {
		detail, err := json.Marshal(e.Details)
		if err != nil {
			return "", fmt.Errorf("marshal details for hash: %w", err)
		}
		fmt.Fprintf(h, "%d:", len(detail))
		h.Write(detail)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify checks the hash chain of one access log file. It returns the number
// of valid entries and an error naming the first broken line.
func Verify(r io.Reader) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	prev := ""
	n := 0
	for line := 1; sc.Scan(); line++ {
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			return n, fmt.Errorf("line %d: %w", line, err)
		}
		want, err := computeHash(e)
		if err != nil {
			return n, fmt.Errorf("line %d: %w", line, err)
		}
		if want != e.EntryHash {
			return n, fmt.Errorf("line %d: entry hash mismatch", line)
		}
		if prev != "" && e.PrevHash != prev {
			return n, fmt.Errorf("line %d: chain broken", line)
		}
		prev = e.EntryHash
		n++
	}
	return n, sc.Err()
}

func (l *Logger) openFile() error {
	f, err := os.OpenFile(l.filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("open access log: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat access log: %w", err)
	}
	l.file = f
	l.written = info.Size()
	return nil
}

func (l *Logger) rotate() error {
	prev := l.prevHash

	if l.file != nil {
		l.file.Close()
	}

	if err := logging.ShiftBackups(l.filePath, l.maxBackups); err != nil {
		log.Warn("access log rotation incomplete", logging.KeyError, err.Error())
	}

	if err := l.openFile(); err != nil {
		return err
	}

	sentinel := Entry{
		Timestamp: l.now().UTC().Format(time.RFC3339Nano),
		Event:     EventLogRotated,
		PrevHash:  prev,
		Details:   map[string]any{"previousFile": filepath.Base(logging.BackupName(l.filePath, 1))},
	}
	data, err := seal(&sentinel)
	if err == nil {
		var n int
		n, err = l.file.Write(data)
		l.written += int64(n)
	}
	if err != nil {
		log.Error("rotation sentinel not written, hash chain broken", logging.KeyError, err.Error())
		l.dropped.Add(1)
		l.prevHash = "chain-broken"
		return nil
	}
	l.prevHash = sentinel.EntryHash
	return nil
}
