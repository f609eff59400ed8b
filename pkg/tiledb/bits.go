package tiledb

import (
	"fmt"
	"slices"
	"strings"
)

// Bits is an ordered bit pattern. Index 0 is printed first.
type Bits []bool

// NewBits returns an all-false pattern of the given width.
func NewBits(width int) Bits {
	return make(Bits, width)
}

// FilledBits returns a pattern of the given width with every bit set to v.
func FilledBits(width int, v bool) Bits {
	b := make(Bits, width)
	for i := range b {
		b[i] = v
	}
	return b
}

// BitsFromUint returns the low width bits of n, least significant first.
func BitsFromUint(n uint64, width int) Bits {
	b := make(Bits, width)
	for i := 0; i < width && i < 64; i++ {
		b[i] = n&(1<<uint(i)) != 0
	}
	return b
}

// ParseBits reads a pattern written as a string of '0' and '1'.
func ParseBits(s string) (Bits, error) {
	b := make(Bits, len(s))
	for i, ch := range s {
		switch ch {
		case '0':
		case '1':
			b[i] = true
		default:
			return nil, fmt.Errorf("tiledb: bad bit %q in pattern %q", ch, s)
		}
	}
	return b, nil
}

// Uint packs the first 64 bits into an integer, bit 0 least significant.
func (b Bits) Uint() uint64 {
	var n uint64
	for i, v := range b {
		if i >= 64 {
			break
		}
		if v {
			n |= 1 << uint(i)
		}
	}
	return n
}

func (b Bits) Equal(o Bits) bool {
	return slices.Equal(b, o)
}

func (b Bits) Clone() Bits {
	return slices.Clone(b)
}

// Not returns the complement of b.
func (b Bits) Not() Bits {
	out := make(Bits, len(b))
	for i, v := range b {
		out[i] = !v
	}
	return out
}

// All reports whether every bit equals v. An empty pattern satisfies both.
func (b Bits) All(v bool) bool {
	for _, x := range b {
		if x != v {
			return false
		}
	}
	return true
}

func (b Bits) String() string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, v := range b {
		if v {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}
