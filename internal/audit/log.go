// Package audit keeps a tamper-evident record of channel activity.
// Each JSONL line carries the hash of the line before it.
package audit

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/corbin-r/net-pipe/internal/logging"
	"github.com/corbin-r/net-pipe/internal/model"
)

// GenesisHash is the prev_hash for the first entry in a new audit log.
const GenesisHash = "sha256:0000000000000000000000000000000000000000000000000000000000000000"

// TimestampFormat is the layout used in entry timestamps.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// Log is an append-only JSONL audit log with SHA-256 hash chaining.
type Log struct {
	path       string
	file       *os.File
	prevHash   string
	configHash string
	logger     zerolog.Logger
	mu         sync.Mutex
}

// Open opens (or creates) an audit log file for appending.
// If the file already exists, it reads the last line to recover the chain tail.
func Open(path string) (*Log, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("audit: create directory: %w", err)
	}

	prevHash := GenesisHash

	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("audit: read existing log: %w", err)
		}
		scanner := bufio.NewScanner(f)
		var lastLine []byte
		for scanner.Scan() {
			lastLine = make([]byte, len(scanner.Bytes()))
			copy(lastLine, scanner.Bytes())
		}
		f.Close()
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("audit: scan existing log: %w", err)
		}
		if len(lastLine) > 0 {
			prevHash = HashLine(lastLine)
		}
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("audit: open file: %w", err)
	}

	return &Log{
		path:     path,
		file:     file,
		prevHash: prevHash,
		logger:   logging.For("audit"),
	}, nil
}

// SetConfigHash stamps subsequent entries with the active config hash.
func (l *Log) SetConfigHash(hash string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.configHash = hash
}

// Record appends an Entry to the log with hash chaining.
func (l *Log) Record(entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format(TimestampFormat)
	}
	if entry.ConfigHash == "" {
		entry.ConfigHash = l.configHash
	}
	entry.PrevHash = l.prevHash

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("audit: marshal entry: %w", err)
	}

	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("audit: write entry: %w", err)
	}

	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("audit: sync: %w", err)
	}

	l.prevHash = HashLine(line)
	return nil
}

// Observe records a channel event. Write failures are logged, not returned,
// since observers cannot fail the operation they observe.
func (l *Log) Observe(ev model.Event) {
	if err := l.Record(EntryFromEvent(ev)); err != nil {
		l.logger.Error().Err(err).Str("channel", ev.Channel).Msg("audit write failed")
	}
}

// EntryFromEvent flattens a channel event into an audit entry.
func EntryFromEvent(ev model.Event) Entry {
	e := Entry{
		Channel:    ev.Channel,
		Event:      string(ev.Kind),
		Op:         ev.Op,
		Width:      ev.Width,
		Packet:     EntryPacket{ID: ev.PacketID, Bytes: ev.Bytes},
		Outflow:    ev.Outflow,
		MaxOutflow: ev.MaxOutflow,
		Driver:     ev.Driver,
		State:      ev.State,
		ErrorKind:  ev.ErrorKind,
		Reason:     ev.Error,
	}
	if !ev.At.IsZero() {
		e.Timestamp = ev.At.UTC().Format(TimestampFormat)
	}
	return e
}

// Path returns the log file location.
func (l *Log) Path() string {
	return l.path
}

// Close flushes and closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// HashLine returns "sha256:<hex>" of the given bytes.
func HashLine(line []byte) string {
	h := sha256.Sum256(line)
	return "sha256:" + hex.EncodeToString(h[:])
}
