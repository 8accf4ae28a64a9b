package checksum

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"strings"

	"github.com/spaolacci/murmur3"
)

// Algorithm names the signature function a Guard uses.
type Algorithm string

const (
	CRC32      Algorithm = "crc32"
	Castagnoli Algorithm = "castagnoli"
	Murmur3    Algorithm = "murmur3"
)

// DefaultAlgorithm is used when no algorithm is configured.
const DefaultAlgorithm = CRC32

var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

// ParseAlgorithm accepts an algorithm name, case-insensitively.
// Empty input selects DefaultAlgorithm.
func ParseAlgorithm(raw string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(raw))) {
	case "", CRC32, "ieee":
		return CRC32, nil
	case Castagnoli, "crc32c":
		return Castagnoli, nil
	case Murmur3:
		return Murmur3, nil
	default:
		return "", fmt.Errorf("checksum: unknown algorithm %q", raw)
	}
}

func (a Algorithm) sum(data []byte) uint32 {
	switch a {
	case Castagnoli:
		return crc32.Checksum(data, castagnoliTable)
	case Murmur3:
		return murmur3.Sum32(data)
	default:
		return crc32.ChecksumIEEE(data)
	}
}

// Canonical returns the big-endian bytes of v with leading zero bytes
// stripped. Zero encodes as a single zero byte.
func Canonical(v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return trimLeadingZeros(buf[:])
}

// CanonicalPacket strips leading zero bytes so that a packet and the
// integer check value it carries share one signature.
func CanonicalPacket(packet []byte) []byte {
	return trimLeadingZeros(packet)
}

func trimLeadingZeros(b []byte) []byte {
	i := 0
	for i < len(b)-1 && b[i] == 0 {
		i++
	}
	out := make([]byte, len(b)-i)
	copy(out, b[i:])
	return out
}

func isZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
