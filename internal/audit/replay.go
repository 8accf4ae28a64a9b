package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// ReplayFilter holds filtering criteria for a channel replay.
type ReplayFilter struct {
	Channel string    // empty = every channel
	From    time.Time // zero value = no lower bound
	To      time.Time // zero value = no upper bound
}

// ReplaySummary holds event counts for the replayed entries.
type ReplaySummary struct {
	Total          int            `json:"total"`
	Sends          int            `json:"sends"`
	Rejects        int            `json:"rejects"`
	Attaches       int            `json:"attaches"`
	Detaches       int            `json:"detaches"`
	BytesMoved     int64          `json:"bytes_moved"`
	RejectsByKind  map[string]int `json:"rejects_by_kind,omitempty"`
	FirstTimestamp string         `json:"first_timestamp"`
	LastTimestamp  string         `json:"last_timestamp"`
}

// ReplayResult holds filtered entries and summary.
type ReplayResult struct {
	Channel string        `json:"channel"`
	Entries []Entry       `json:"entries"`
	Summary ReplaySummary `json:"summary"`
}

// Replay reads the audit log and returns entries matching the filter.
func Replay(path string, filter ReplayFilter) (*ReplayResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	result := &ReplayResult{Channel: filter.Channel}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue // skip malformed lines
		}

		if filter.Channel != "" && entry.Channel != filter.Channel {
			continue
		}

		if !filter.From.IsZero() || !filter.To.IsZero() {
			ts, err := time.Parse(TimestampFormat, entry.Timestamp)
			if err != nil {
				continue
			}
			if !filter.From.IsZero() && ts.Before(filter.From) {
				continue
			}
			if !filter.To.IsZero() && ts.After(filter.To) {
				continue
			}
		}

		result.Entries = append(result.Entries, entry)
		updateSummary(&result.Summary, entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}

	return result, nil
}

func updateSummary(s *ReplaySummary, entry Entry) {
	s.Total++

	switch entry.Event {
	case "send":
		s.Sends++
		s.BytesMoved += int64(entry.Packet.Bytes)
	case "reject":
		s.Rejects++
		if s.RejectsByKind == nil {
			s.RejectsByKind = make(map[string]int)
		}
		s.RejectsByKind[entry.ErrorKind]++
	case "attach":
		s.Attaches++
	case "detach":
		s.Detaches++
	}

	if s.FirstTimestamp == "" {
		s.FirstTimestamp = entry.Timestamp
	}
	s.LastTimestamp = entry.Timestamp
}
