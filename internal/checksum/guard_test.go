package checksum

import (
	"bytes"
	"errors"
	"hash/crc32"
	"os"
	"sync"
	"testing"

	"github.com/corbin-r/net-pipe/internal/logging"
)

func newTestGuard(t *testing.T, opts ...Option) *Guard {
	t.Helper()
	logging.ConfigureTests()
	return NewGuard(opts...)
}

func TestPrecheckThenValidateRoundTrip(t *testing.T) {
	g := newTestGuard(t)

	sig, err := g.Precheck(1, 7)
	if err != nil {
		t.Fatalf("precheck: %v", err)
	}
	want, err := g.Sign(7)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if sig != want {
		t.Fatalf("precheck signature %d != sign %d", sig, want)
	}
	if !g.Validate(1, want) {
		t.Error("expected validate to accept matching signature")
	}
	if g.Validate(1, want+1) {
		t.Error("expected validate to reject wrong signature")
	}
}

func TestValidateUnknownIDIsFalse(t *testing.T) {
	g := newTestGuard(t)
	if g.Validate(42, 12345) {
		t.Error("expected false for unknown packet id")
	}
}

func TestPrecheckTwiceFails(t *testing.T) {
	g := newTestGuard(t)
	if _, err := g.Precheck(5, 9); err != nil {
		t.Fatalf("first precheck: %v", err)
	}
	_, err := g.Precheck(5, 9)
	if !errors.Is(err, ErrDuplicatePrecheck) {
		t.Fatalf("expected ErrDuplicatePrecheck, got %v", err)
	}

	// A different check value for the same id is still a duplicate.
	_, err = g.Precheck(5, 10)
	if !errors.Is(err, ErrDuplicatePrecheck) {
		t.Fatalf("expected ErrDuplicatePrecheck, got %v", err)
	}
}

func TestPrecheckAfterInvalidateSucceeds(t *testing.T) {
	g := newTestGuard(t)
	if _, err := g.Precheck(5, 9); err != nil {
		t.Fatalf("precheck: %v", err)
	}
	if err := g.Invalidate(5); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := g.Precheck(5, 11); err != nil {
		t.Fatalf("re-precheck after invalidate: %v", err)
	}
}

func TestInvalidateTwiceFails(t *testing.T) {
	g := newTestGuard(t)
	if _, err := g.Precheck(3, 1); err != nil {
		t.Fatalf("precheck: %v", err)
	}
	if err := g.Invalidate(3); err != nil {
		t.Fatalf("first invalidate: %v", err)
	}
	if err := g.Invalidate(3); !errors.Is(err, ErrNoCRCAvailable) {
		t.Fatalf("expected ErrNoCRCAvailable, got %v", err)
	}
}

func TestPrecheckZeroCheckHasNoCRC(t *testing.T) {
	g := newTestGuard(t)
	_, err := g.Precheck(1, 0)
	if !errors.Is(err, ErrNoCRCAvailable) {
		t.Fatalf("expected ErrNoCRCAvailable, got %v", err)
	}
	if g.Len() != 0 {
		t.Errorf("failed precheck must not store a record, have %d", g.Len())
	}
}

func TestPacketValidatesAgainstCheckValue(t *testing.T) {
	g := newTestGuard(t)
	if _, err := g.Precheck(1, 7); err != nil {
		t.Fatalf("precheck: %v", err)
	}
	if _, ok := g.ValidatePacket(1, []byte{0, 0, 0, 7}); !ok {
		t.Error("expected zero-padded packet to match check value 7")
	}
	if _, ok := g.ValidatePacket(1, []byte{0, 0, 0, 8}); ok {
		t.Error("expected packet 8 to fail against check 7")
	}
}

func TestPrecheckPacketWide(t *testing.T) {
	g := newTestGuard(t)
	packet := bytes.Repeat([]byte{0xAB}, 16)
	sig, err := g.PrecheckPacket(9, packet)
	if err != nil {
		t.Fatalf("precheck packet: %v", err)
	}
	got, ok := g.ValidatePacket(9, packet)
	if !ok || got != sig {
		t.Errorf("expected wide packet to validate, got sig=%d ok=%v", got, ok)
	}
}

func TestAlgorithmsDiffer(t *testing.T) {
	ieee := newTestGuard(t, WithAlgorithm(CRC32))
	castagnoli := newTestGuard(t, WithAlgorithm(Castagnoli))
	murmur := newTestGuard(t, WithAlgorithm(Murmur3))

	a, _ := ieee.Sign(7)
	b, _ := castagnoli.Sign(7)
	c, _ := murmur.Sign(7)
	if a != crc32.ChecksumIEEE([]byte{7}) {
		t.Errorf("crc32 signature mismatch: %d", a)
	}
	if a == b || a == c || b == c {
		t.Errorf("expected distinct signatures, got %d %d %d", a, b, c)
	}
}

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		raw  string
		want Algorithm
		err  bool
	}{
		{"", CRC32, false},
		{"CRC32", CRC32, false},
		{"crc32c", Castagnoli, false},
		{"murmur3", Murmur3, false},
		{"md5", "", true},
	}
	for _, tt := range tests {
		got, err := ParseAlgorithm(tt.raw)
		if (err != nil) != tt.err || got != tt.want {
			t.Errorf("ParseAlgorithm(%q) = (%q, %v)", tt.raw, got, err)
		}
	}
}

func TestCanonical(t *testing.T) {
	if got := Canonical(7); !bytes.Equal(got, []byte{7}) {
		t.Errorf("Canonical(7) = %v", got)
	}
	if got := Canonical(0); !bytes.Equal(got, []byte{0}) {
		t.Errorf("Canonical(0) = %v", got)
	}
	if got := Canonical(0x0100); !bytes.Equal(got, []byte{1, 0}) {
		t.Errorf("Canonical(256) = %v", got)
	}
}

func TestHasCheckByProcess(t *testing.T) {
	g := newTestGuard(t)
	if g.HasCheck(os.Getpid()) {
		t.Fatal("empty guard should have no check")
	}
	if _, err := g.Precheck(1, 7); err != nil {
		t.Fatalf("precheck: %v", err)
	}
	if _, err := g.PrecheckAs(4242, 2, 8); err != nil {
		t.Fatalf("precheck as: %v", err)
	}
	if !g.HasCheck(os.Getpid()) {
		t.Error("expected current process to have a check")
	}
	if !g.HasCheck(4242) {
		t.Error("expected proc 4242 to have a check")
	}
	if err := g.Invalidate(2); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if g.HasCheck(4242) {
		t.Error("expected proc 4242 check to be gone after invalidate")
	}
}

func TestRecordsSnapshotSorted(t *testing.T) {
	g := newTestGuard(t)
	for _, id := range []int64{3, 1, 2} {
		if _, err := g.Precheck(id, id+10); err != nil {
			t.Fatalf("precheck %d: %v", id, err)
		}
	}
	recs := g.Records()
	if len(recs) != 3 || recs[0].PacketID != 1 || recs[2].PacketID != 3 {
		t.Errorf("unexpected records: %+v", recs)
	}
}

func TestConcurrentPrecheckOneWinner(t *testing.T) {
	g := newTestGuard(t)
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := g.Precheck(77, 5); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Errorf("expected exactly one successful precheck, got %d", wins)
	}
}
