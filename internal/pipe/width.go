package pipe

import (
	"fmt"
	"strings"
)

// Width is the pipe variant. A pipe carries packets up to twice its
// nominal width: a 16-bit pipe takes packets of at most 32 bits.
type Width int

const (
	Width16 Width = 16
	Width32 Width = 32
	Width64 Width = 64
)

// Valid reports whether w is one of the defined variants.
func (w Width) Valid() bool {
	switch w {
	case Width16, Width32, Width64:
		return true
	}
	return false
}

// MaxPacketBits is the widest packet the pipe admits.
func (w Width) MaxPacketBits() int {
	if !w.Valid() {
		return 0
	}
	return int(w) * 2
}

// MaxPacketBytes is MaxPacketBits in bytes.
func (w Width) MaxPacketBytes() int {
	return w.MaxPacketBits() / 8
}

// Admits reports whether a packet of n bytes fits the pipe.
func (w Width) Admits(n int) bool {
	return n*8 <= w.MaxPacketBits()
}

func (w Width) String() string {
	if !w.Valid() {
		return fmt.Sprintf("pipe(%d)", int(w))
	}
	return fmt.Sprintf("pipe%d", int(w))
}

// ParseWidth accepts "16", "32", "64" or the "pipe16" style names.
func ParseWidth(raw string) (Width, error) {
	s := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(raw)), "pipe")
	s = strings.TrimSuffix(s, "_t")
	switch s {
	case "16":
		return Width16, nil
	case "32":
		return Width32, nil
	case "64":
		return Width64, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidWidth, raw)
	}
}
