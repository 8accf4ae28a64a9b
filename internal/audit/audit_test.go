package audit

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/corbin-r/net-pipe/internal/driver"
	"github.com/corbin-r/net-pipe/internal/logging"
	"github.com/corbin-r/net-pipe/internal/model"
	"github.com/corbin-r/net-pipe/internal/pipe"
)

func newTestLog(t *testing.T) (*Log, string) {
	t.Helper()
	logging.ConfigureTests()
	path := filepath.Join(t.TempDir(), "test-audit.jsonl")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open audit log: %v", err)
	}
	return l, path
}

func testEntry(event string) Entry {
	return Entry{
		Timestamp:  time.Now().UTC().Format(TimestampFormat),
		Channel:    "pipe-test",
		Event:      event,
		Width:      16,
		Packet:     EntryPacket{ID: 1, Bytes: 4},
		Outflow:    4,
		MaxOutflow: 1024,
		Driver:     "nic0",
		State:      "forced",
	}
}

func TestSequentialWritesProduceValidChain(t *testing.T) {
	l, path := newTestLog(t)

	for i := 0; i < 5; i++ {
		if err := l.Record(testEntry("send")); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}
	l.Close()

	result := Verify(path)
	if !result.Valid {
		t.Fatalf("expected valid chain, got error at line %d: %s", result.ErrorLine, result.Error)
	}
	if result.Lines != 5 {
		t.Fatalf("expected 5 lines, got %d", result.Lines)
	}
}

func TestVerifyDetectsTamperedEntry(t *testing.T) {
	l, path := newTestLog(t)

	for i := 0; i < 3; i++ {
		if err := l.Record(testEntry("send")); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}
	l.Close()

	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	lines[1] = strings.Replace(lines[1], `"send"`, `"reject"`, 1)
	os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644)

	result := Verify(path)
	if result.Valid {
		t.Fatal("expected tampered chain to be invalid")
	}
	if result.ErrorLine != 3 {
		t.Fatalf("expected error at line 3, got line %d", result.ErrorLine)
	}
}

func TestVerifyDetectsDeletedEntry(t *testing.T) {
	l, path := newTestLog(t)

	for i := 0; i < 3; i++ {
		if err := l.Record(testEntry("send")); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}
	l.Close()

	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	remaining := []string{lines[0], lines[2]}
	os.WriteFile(path, []byte(strings.Join(remaining, "\n")+"\n"), 0644)

	result := Verify(path)
	if result.Valid {
		t.Fatal("expected chain with deleted entry to be invalid")
	}
	if result.ErrorLine != 2 {
		t.Fatalf("expected error at line 2, got line %d", result.ErrorLine)
	}
}

func TestVerifyDetectsInsertedEntry(t *testing.T) {
	l, path := newTestLog(t)

	for i := 0; i < 3; i++ {
		if err := l.Record(testEntry("send")); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}
	l.Close()

	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	fake := testEntry("send")
	fake.PrevHash = "sha256:fake"
	fakeJSON, _ := json.Marshal(fake)
	inserted := []string{lines[0], string(fakeJSON), lines[1], lines[2]}
	os.WriteFile(path, []byte(strings.Join(inserted, "\n")+"\n"), 0644)

	if result := Verify(path); result.Valid {
		t.Fatal("expected chain with inserted entry to be invalid")
	}
}

func TestEmptyLogPassesVerification(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.jsonl")
	os.WriteFile(path, []byte{}, 0644)

	result := Verify(path)
	if !result.Valid {
		t.Fatalf("expected empty log to be valid, got: %s", result.Error)
	}
	if result.Lines != 0 {
		t.Fatalf("expected 0 lines, got %d", result.Lines)
	}
}

func TestConcurrentWritesSerializeCorrectly(t *testing.T) {
	l, path := newTestLog(t)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Record(testEntry("send"))
		}()
	}
	wg.Wait()
	l.Close()

	result := Verify(path)
	if !result.Valid {
		t.Fatalf("expected valid chain after concurrent writes, got error at line %d: %s", result.ErrorLine, result.Error)
	}
	if result.Lines != 100 {
		t.Fatalf("expected 100 lines, got %d", result.Lines)
	}
}

func TestGenesisHashIsCorrect(t *testing.T) {
	l, path := newTestLog(t)
	l.Record(testEntry("open"))
	l.Close()

	data, _ := os.ReadFile(path)
	var entry Entry
	json.Unmarshal([]byte(strings.TrimSpace(string(data))), &entry)

	if entry.PrevHash != GenesisHash {
		t.Fatalf("expected genesis hash %s, got %s", GenesisHash, entry.PrevHash)
	}
}

func TestOpenExistingLogContinuesChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.jsonl")

	l1, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		l1.Record(testEntry("send"))
	}
	l1.Close()

	l2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		l2.Record(testEntry("reject"))
	}
	l2.Close()

	result := Verify(path)
	if !result.Valid {
		t.Fatalf("expected valid chain after reopen, got error at line %d: %s", result.ErrorLine, result.Error)
	}
	if result.Lines != 5 {
		t.Fatalf("expected 5 lines, got %d", result.Lines)
	}
}

func TestConfigHashStamped(t *testing.T) {
	l, path := newTestLog(t)
	l.SetConfigHash("sha256:abc")
	l.Record(testEntry("open"))
	l.Close()

	data, _ := os.ReadFile(path)
	var entry Entry
	json.Unmarshal([]byte(strings.TrimSpace(string(data))), &entry)
	if entry.ConfigHash != "sha256:abc" {
		t.Errorf("expected config hash to be stamped, got %q", entry.ConfigHash)
	}
}

func TestEntryFromEvent(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	e := EntryFromEvent(model.Event{
		Kind:      model.EventReject,
		Channel:   "p1",
		Op:        "send",
		PacketID:  9,
		Bytes:     5,
		ErrorKind: "packet_too_wide",
		Error:     "pipe: packet exceeds pipe width",
		At:        at,
	})
	if e.Event != "reject" || e.Packet.ID != 9 || e.ErrorKind != "packet_too_wide" {
		t.Errorf("unexpected entry: %+v", e)
	}
	if e.Timestamp != "2026-01-02T03:04:05.000Z" {
		t.Errorf("unexpected timestamp %q", e.Timestamp)
	}
}

func TestChannelActivityIsAudited(t *testing.T) {
	l, path := newTestLog(t)

	ch, err := pipe.Open(pipe.Width16, pipe.WithMaxOutflow(8), pipe.WithObserver(l), pipe.WithName("audited"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := ch.Attach(context.Background(), driver.Ref{Name: "nic0"}, driver.ModeForced); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if _, err := ch.Guard().Precheck(1, 7); err != nil {
		t.Fatalf("precheck: %v", err)
	}
	for i := 0; i < 3; i++ {
		ch.Send([]byte{0, 0, 0, 7}, 1)
	}
	ch.Close()
	l.Close()

	if v := Verify(path); !v.Valid || v.Lines != 7 || v.Channels != 1 {
		t.Fatalf("expected 7 valid lines, got %+v", v)
	}

	res, err := Replay(path, ReplayFilter{Channel: "audited"})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	s := res.Summary
	if s.Sends != 2 || s.Rejects != 1 || s.BytesMoved != 8 || s.RejectsByKind["outflow_exceeded"] != 1 {
		t.Errorf("unexpected summary: %+v", s)
	}

	text := FormatTimeline(res)
	if !strings.Contains(text, "Channel: audited") || !strings.Contains(text, "outflow_exceeded") {
		t.Errorf("unexpected timeline:\n%s", text)
	}

	other, err := Replay(path, ReplayFilter{Channel: "elsewhere"})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(other.Entries) != 0 {
		t.Errorf("expected no entries for other channel, got %d", len(other.Entries))
	}
}

func cycleEntry(event string, bytes int, outflow int64) Entry {
	e := testEntry(event)
	e.Channel = "cycled"
	e.Packet = EntryPacket{ID: 1, Bytes: bytes}
	e.Outflow = outflow
	e.MaxOutflow = 8
	return e
}

func TestVerifyChannelInvariants(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
		line    int
		event   string
		err     string
	}{
		{
			name: "outflow decreases",
			entries: []Entry{
				cycleEntry("open", 0, 0),
				cycleEntry("send", 4, 4),
				cycleEntry("send", 4, 2),
			},
			line: 3, event: "send", err: "outflow decreased from 4 to 2",
		},
		{
			name: "over ceiling",
			entries: []Entry{
				cycleEntry("open", 0, 0),
				cycleEntry("send", 12, 12),
			},
			line: 2, event: "send", err: "exceeds ceiling",
		},
		{
			name: "close disagrees with cycle",
			entries: []Entry{
				cycleEntry("open", 0, 0),
				cycleEntry("send", 4, 4),
				cycleEntry("close", 8, 0),
			},
			line: 3, event: "close", err: "close reports 8 bytes moved, cycle moved 4",
		},
		{
			name: "event after close",
			entries: []Entry{
				cycleEntry("open", 0, 0),
				cycleEntry("close", 0, 0),
				cycleEntry("send", 4, 4),
			},
			line: 3, event: "send", err: "send event on closed channel",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, path := newTestLog(t)
			for _, e := range tt.entries {
				if err := l.Record(e); err != nil {
					t.Fatalf("record: %v", err)
				}
			}
			l.Close()

			res := Verify(path)
			if res.Valid {
				t.Fatal("expected verification to fail")
			}
			if res.ErrorLine != tt.line || res.Channel != "cycled" || res.Event != tt.event {
				t.Errorf("expected line %d on cycled/%s, got %+v", tt.line, tt.event, res)
			}
			if !strings.Contains(res.Error, tt.err) {
				t.Errorf("expected error containing %q, got %q", tt.err, res.Error)
			}
		})
	}
}

func TestVerifyReopenStartsNewCycle(t *testing.T) {
	l, path := newTestLog(t)
	for _, e := range []Entry{
		cycleEntry("open", 0, 0),
		cycleEntry("send", 8, 8),
		cycleEntry("close", 8, 0),
		cycleEntry("open", 0, 0),
		cycleEntry("send", 4, 4),
	} {
		l.Record(e)
	}
	l.Close()

	res := Verify(path)
	if !res.Valid || res.Lines != 5 || res.Channels != 1 {
		t.Fatalf("expected valid log with one channel, got %+v", res)
	}
}
