package bitcoord

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Coord is the constraint every bit coordinate satisfies. The engine only
// compares, hashes and prints coordinates; it never looks inside them.
type Coord[T any] interface {
	comparable
	Compare(other T) int
	String() string
}

// FrameBit addresses one bit of a frame-organised bitstream.
type FrameBit struct {
	Rect  uint32 // bit rectangle (block) index
	Frame uint32
	Bit   uint32
}

// Compare orders FrameBits by rectangle, then frame, then bit.
func (b FrameBit) Compare(o FrameBit) int {
	return CompareTriple(b.Rect, b.Frame, b.Bit, o.Rect, o.Frame, o.Bit)
}

func (b FrameBit) String() string {
	return formatTriple(b.Rect, b.Frame, b.Bit)
}

// FuseBit addresses one fuse of a CPLD fuse array.
type FuseBit struct {
	Row    uint32
	Column uint32
	Bit    uint32
}

// Compare orders FuseBits by row, then column, then bit.
func (b FuseBit) Compare(o FuseBit) int {
	return CompareTriple(b.Row, b.Column, b.Bit, o.Row, o.Column, o.Bit)
}

func (b FuseBit) String() string {
	return formatTriple(b.Row, b.Column, b.Bit)
}

// CompareTriple compares two integer triples lexicographically.
func CompareTriple(a0, a1, a2, b0, b1, b2 uint32) int {
	if c := cmp.Compare(a0, b0); c != 0 {
		return c
	}
	if c := cmp.Compare(a1, b1); c != 0 {
		return c
	}
	return cmp.Compare(a2, b2)
}

// SortCoords sorts coordinates in place by their natural order.
func SortCoords[C Coord[C]](cs []C) {
	slices.SortFunc(cs, func(a, b C) int { return a.Compare(b) })
}

// Sorted returns a sorted copy of cs.
func Sorted[C Coord[C]](cs []C) []C {
	out := slices.Clone(cs)
	SortCoords(out)
	return out
}

func formatTriple(a, b, c uint32) string {
	return strconv.FormatUint(uint64(a), 10) + "." +
		strconv.FormatUint(uint64(b), 10) + "." +
		strconv.FormatUint(uint64(c), 10)
}

// ParseTriple parses the dotted "a.b.c" form shared by all coordinate kinds.
func ParseTriple(s string) (a, b, c uint32, err error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("bitcoord: %q: expected three dot-separated fields", s)
	}
	var vals [3]uint32
	for i, p := range parts {
		v, perr := strconv.ParseUint(p, 10, 32)
		if perr != nil {
			return 0, 0, 0, fmt.Errorf("bitcoord: %q: field %d: %w", s, i, perr)
		}
		vals[i] = uint32(v)
	}
	return vals[0], vals[1], vals[2], nil
}
