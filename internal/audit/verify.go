package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/corbin-r/net-pipe/internal/model"
)

// VerifyResult holds the outcome of verifying an audit log. On failure it
// names the first offending line and, when the line parsed, its channel
// and event.
type VerifyResult struct {
	Valid     bool   `json:"valid"`
	Lines     int    `json:"lines"`
	Channels  int    `json:"channels"`
	Error     string `json:"error,omitempty"`
	ErrorLine int    `json:"error_line,omitempty"`
	Channel   string `json:"channel,omitempty"`
	Event     string `json:"event,omitempty"`
}

// cycle tracks one channel between its open and close events.
type cycle struct {
	outflow int64
	closed  bool
}

type verifier struct {
	prevHash string
	channels map[string]*cycle
}

// Verify checks the hash chain and, per channel, that outflow stays within
// the ceiling, never decreases inside an open/close cycle, matches the
// bytes the close event reports, and that nothing follows a close except
// a new open.
func Verify(path string) VerifyResult {
	f, err := os.Open(path)
	if err != nil {
		return VerifyResult{Error: fmt.Sprintf("open: %v", err)}
	}
	defer f.Close()

	v := &verifier{prevHash: GenesisHash, channels: make(map[string]*cycle)}
	scanner := bufio.NewScanner(f)
	n := 0
	for scanner.Scan() {
		n++
		line := append([]byte(nil), scanner.Bytes()...)

		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			return VerifyResult{Lines: n, Error: fmt.Sprintf("parse error: %v", err), ErrorLine: n}
		}
		if err := v.link(entry, line, n); err != nil {
			return v.fail(n, entry, err)
		}
		if err := v.account(entry); err != nil {
			return v.fail(n, entry, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return VerifyResult{Lines: n, Error: fmt.Sprintf("scan: %v", err)}
	}
	return VerifyResult{Valid: true, Lines: n, Channels: len(v.channels)}
}

func (v *verifier) fail(n int, e Entry, err error) VerifyResult {
	return VerifyResult{
		Lines:     n,
		Channels:  len(v.channels),
		Error:     err.Error(),
		ErrorLine: n,
		Channel:   e.Channel,
		Event:     e.Event,
	}
}

func (v *verifier) link(e Entry, line []byte, n int) error {
	if e.PrevHash != v.prevHash {
		if n == 1 {
			return fmt.Errorf("first entry prev_hash is %q, expected genesis hash", e.PrevHash)
		}
		return fmt.Errorf("hash mismatch: expected %s, got %s", v.prevHash, e.PrevHash)
	}
	v.prevHash = HashLine(line)
	return nil
}

func (v *verifier) account(e Entry) error {
	if e.MaxOutflow > 0 && e.Outflow > e.MaxOutflow {
		return fmt.Errorf("outflow %d exceeds ceiling %d", e.Outflow, e.MaxOutflow)
	}

	c, seen := v.channels[e.Channel]
	switch {
	case e.Event == string(model.EventOpen):
		v.channels[e.Channel] = &cycle{outflow: e.Outflow}
		return nil
	case !seen:
		// The log may start in the middle of a cycle.
		c = &cycle{outflow: e.Outflow}
		v.channels[e.Channel] = c
	case c.closed:
		return fmt.Errorf("%s event on closed channel", e.Event)
	}

	if e.Event == string(model.EventClose) {
		if int64(e.Packet.Bytes) != c.outflow {
			return fmt.Errorf("close reports %d bytes moved, cycle moved %d", e.Packet.Bytes, c.outflow)
		}
		c.closed = true
		return nil
	}
	if e.Outflow < c.outflow {
		return fmt.Errorf("outflow decreased from %d to %d", c.outflow, e.Outflow)
	}
	c.outflow = e.Outflow
	return nil
}
