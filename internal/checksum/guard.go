// Package checksum registers and validates per-packet integrity signatures.
//
// A packet id is prechecked before its packet is sent: the Guard stores the
// expected signature, and the pipe validates the packet against it when it
// crosses. Records are consumed only by Invalidate.
package checksum

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/corbin-r/net-pipe/internal/logging"
)

var (
	// ErrDuplicatePrecheck is returned when a packet id already has an active record.
	ErrDuplicatePrecheck = errors.New("checksum: duplicate precheck")
	// ErrNoCRCAvailable is returned when no signature can be produced or no
	// record exists to invalidate.
	ErrNoCRCAvailable = errors.New("checksum: no crc available")
)

// Record associates a packet id with its expected signature.
type Record struct {
	PacketID  int64     `json:"packet_id"`
	Signature uint32    `json:"signature"`
	Proc      int       `json:"proc"`
	CreatedAt time.Time `json:"created_at"`
}

// Guard holds active checksum records. It is safe for concurrent use so
// that several channels can share one Guard.
type Guard struct {
	alg     Algorithm
	logger  zerolog.Logger
	mu      sync.Mutex
	records map[int64]Record
	now     func() time.Time
}

// Option configures a Guard.
type Option func(*Guard)

// WithAlgorithm selects the signature function.
func WithAlgorithm(a Algorithm) Option {
	return func(g *Guard) { g.alg = a }
}

// WithLogger overrides the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(g *Guard) { g.logger = l }
}

// NewGuard creates an empty Guard using DefaultAlgorithm unless overridden.
func NewGuard(opts ...Option) *Guard {
	g := &Guard{
		alg:     DefaultAlgorithm,
		logger:  logging.For("checksum"),
		records: make(map[int64]Record),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Algorithm reports the signature function in use.
func (g *Guard) Algorithm() Algorithm {
	return g.alg
}

// Sign computes the signature of check without recording it.
func (g *Guard) Sign(check int64) (uint32, error) {
	if check == 0 {
		return 0, fmt.Errorf("%w: zero check value", ErrNoCRCAvailable)
	}
	return g.signBytes(Canonical(uint64(check)))
}

// SignPacket computes the signature a packet validates against.
func (g *Guard) SignPacket(packet []byte) (uint32, error) {
	if isZero(packet) {
		return 0, fmt.Errorf("%w: degenerate packet", ErrNoCRCAvailable)
	}
	return g.signBytes(CanonicalPacket(packet))
}

func (g *Guard) signBytes(b []byte) (uint32, error) {
	sig := g.alg.sum(b)
	if sig == 0 {
		return 0, fmt.Errorf("%w: zero signature", ErrNoCRCAvailable)
	}
	return sig, nil
}

// Precheck registers the signature of check for packetID, owned by the
// current process.
func (g *Guard) Precheck(packetID, check int64) (uint32, error) {
	return g.PrecheckAs(os.Getpid(), packetID, check)
}

// PrecheckAs registers the signature of check for packetID on behalf of proc.
func (g *Guard) PrecheckAs(proc int, packetID, check int64) (uint32, error) {
	sig, err := g.Sign(check)
	if err != nil {
		return 0, fmt.Errorf("precheck packet %d: %w", packetID, err)
	}
	if err := g.store(proc, packetID, sig); err != nil {
		return 0, err
	}
	return sig, nil
}

// PrecheckPacket registers the signature of a raw packet. Packets wider
// than 64 bits can only be prechecked this way.
func (g *Guard) PrecheckPacket(packetID int64, packet []byte) (uint32, error) {
	sig, err := g.SignPacket(packet)
	if err != nil {
		return 0, fmt.Errorf("precheck packet %d: %w", packetID, err)
	}
	if err := g.store(os.Getpid(), packetID, sig); err != nil {
		return 0, err
	}
	return sig, nil
}

func (g *Guard) store(proc int, packetID int64, sig uint32) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.records[packetID]; ok {
		g.logger.Warn().Int64("packet_id", packetID).Msg("duplicate precheck rejected")
		return fmt.Errorf("%w: packet %d", ErrDuplicatePrecheck, packetID)
	}
	g.records[packetID] = Record{
		PacketID:  packetID,
		Signature: sig,
		Proc:      proc,
		CreatedAt: g.now(),
	}
	g.logger.Debug().Int64("packet_id", packetID).Uint32("signature", sig).Int("proc", proc).Msg("precheck recorded")
	return nil
}

// Invalidate removes the record for packetID.
func (g *Guard) Invalidate(packetID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.records[packetID]; !ok {
		return fmt.Errorf("%w: packet %d has no record", ErrNoCRCAvailable, packetID)
	}
	delete(g.records, packetID)
	g.logger.Debug().Int64("packet_id", packetID).Msg("precheck invalidated")
	return nil
}

// Validate reports whether packetID has a record whose signature equals
// candidate. A missing record is a failed validation, not an error.
func (g *Guard) Validate(packetID int64, candidate uint32) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.records[packetID]
	return ok && rec.Signature == candidate
}

// ValidatePacket validates packetID against the signature of packet.
func (g *Guard) ValidatePacket(packetID int64, packet []byte) (uint32, bool) {
	sig, err := g.SignPacket(packet)
	if err != nil {
		return 0, false
	}
	return sig, g.Validate(packetID, sig)
}

// HasCheck reports whether proc owns at least one active record.
func (g *Guard) HasCheck(proc int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, rec := range g.records {
		if rec.Proc == proc {
			return true
		}
	}
	return false
}

// Records returns a snapshot of active records ordered by packet id.
func (g *Guard) Records() []Record {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]Record, 0, len(g.records))
	for _, rec := range g.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PacketID < out[j].PacketID
	})
	return out
}

// Len returns the number of active records.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.records)
}
