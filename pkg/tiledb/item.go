package tiledb

import (
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"

	"github.com/OpenTraceLab/OpenTraceBits/pkg/bitcoord"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/violation"
)

// Kind is the attribute kind of an Item.
type Kind int

const (
	// KindFlag is one logical boolean over one or more ganged bits that
	// share a polarity.
	KindFlag Kind = iota
	// KindBitVec is an unsigned integer or raw payload with per-bit
	// polarity, bit 0 first.
	KindBitVec
	// KindEnum is a set of named values, each a distinct bit pattern.
	KindEnum
)

func (k Kind) String() string {
	switch k {
	case KindFlag:
		return "flag"
	case KindBitVec:
		return "bitvec"
	case KindEnum:
		return "enum"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "flag":
		return KindFlag, nil
	case "bitvec":
		return KindBitVec, nil
	case "enum":
		return KindEnum, nil
	}
	return 0, fmt.Errorf("tiledb: unknown item kind %q", s)
}

// PolBit is one bit together with its polarity: the logical value v is
// stored as v XOR Inv.
type PolBit[C bitcoord.Coord[C]] struct {
	Bit C
	Inv bool
}

// Item is a classified attribute: the bits that encode it and how.
type Item[C bitcoord.Coord[C]] struct {
	Kind Kind
	Bits []C

	// Invert holds the per-bit polarity of flags and bit vectors.
	Invert Bits

	// Values and Default are used by enums only.
	Values  map[string]Bits
	Default string
}

// NewFlag returns a flag over bits, all sharing polarity inv.
func NewFlag[C bitcoord.Coord[C]](bits []C, inv bool) Item[C] {
	return Item[C]{Kind: KindFlag, Bits: slices.Clone(bits), Invert: FilledBits(len(bits), inv)}
}

// NewBitVec returns a bit vector with per-bit polarity.
func NewBitVec[C bitcoord.Coord[C]](bits []C, invert Bits) Item[C] {
	return Item[C]{Kind: KindBitVec, Bits: slices.Clone(bits), Invert: invert.Clone()}
}

// NewEnum returns an enum item. The item is validated.
func NewEnum[C bitcoord.Coord[C]](bits []C, values map[string]Bits, def string) (Item[C], error) {
	it := Item[C]{Kind: KindEnum, Bits: slices.Clone(bits), Values: make(map[string]Bits, len(values)), Default: def}
	for k, v := range values {
		it.Values[k] = v.Clone()
	}
	if err := it.Validate(); err != nil {
		return Item[C]{}, err
	}
	return it, nil
}

// Width is the number of bits of the item.
func (it Item[C]) Width() int { return len(it.Bits) }

// IsVector reports whether the item is a flag or a bit vector.
func (it Item[C]) IsVector() bool { return it.Kind == KindFlag || it.Kind == KindBitVec }

// PolBits returns the item's bits with their polarity. Enums have none.
func (it Item[C]) PolBits() ([]PolBit[C], error) {
	if !it.IsVector() {
		return nil, violation.Newf(violation.Shape, "%s item has no bit polarity", it.Kind)
	}
	out := make([]PolBit[C], len(it.Bits))
	for i, b := range it.Bits {
		out[i] = PolBit[C]{Bit: b, Inv: it.Invert[i]}
	}
	return out, nil
}

// Value returns the pattern of an enum value.
func (it Item[C]) Value(name string) (Bits, error) {
	if it.Kind != KindEnum {
		return nil, violation.Newf(violation.Shape, "%s item has no value %q", it.Kind, name)
	}
	v, ok := it.Values[name]
	if !ok {
		return nil, violation.Newf(violation.Shape, "enum has no value %q (have %s)",
			name, strings.Join(it.ValueNames(), ", "))
	}
	return v, nil
}

// ValueNames returns the enum value names, sorted.
func (it Item[C]) ValueNames() []string {
	names := slices.Collect(maps.Keys(it.Values))
	sort.Strings(names)
	return names
}

// Validate checks the structural invariants of the item.
func (it Item[C]) Validate() error {
	seen := make(map[C]struct{}, len(it.Bits))
	for _, b := range it.Bits {
		if _, dup := seen[b]; dup {
			return violation.Newf(violation.Shape, "bit %s appears twice", b)
		}
		seen[b] = struct{}{}
	}
	switch it.Kind {
	case KindFlag, KindBitVec:
		if len(it.Invert) != len(it.Bits) {
			return violation.Newf(violation.Shape, "%d bits but %d polarities", len(it.Bits), len(it.Invert))
		}
		if it.Kind == KindFlag {
			if len(it.Bits) == 0 {
				return violation.Newf(violation.Shape, "flag without bits")
			}
			if !it.Invert.All(it.Invert[0]) {
				return violation.Newf(violation.Shape, "flag bits disagree on polarity: %s", it.Invert)
			}
		}
	case KindEnum:
		byPattern := make(map[string]string, len(it.Values))
		for _, name := range it.ValueNames() {
			v := it.Values[name]
			if len(v) != len(it.Bits) {
				return violation.Newf(violation.Shape, "value %q has %d bits, want %d", name, len(v), len(it.Bits))
			}
			if other, dup := byPattern[v.String()]; dup {
				return violation.Newf(violation.Shape, "values %q and %q share pattern %s", other, name, v)
			}
			byPattern[v.String()] = name
		}
		if it.Default != "" {
			if _, ok := it.Values[it.Default]; !ok {
				return violation.Newf(violation.Shape, "default %q is not a value", it.Default)
			}
		}
	default:
		return violation.Newf(violation.Shape, "unknown item kind %d", int(it.Kind))
	}
	return nil
}

// Equal reports whether two items describe the same encoding.
func (it Item[C]) Equal(o Item[C]) bool {
	if it.Kind != o.Kind || it.Default != o.Default ||
		!slices.Equal(it.Bits, o.Bits) || !it.Invert.Equal(o.Invert) ||
		len(it.Values) != len(o.Values) {
		return false
	}
	for k, v := range it.Values {
		ov, ok := o.Values[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (it Item[C]) Clone() Item[C] {
	out := Item[C]{Kind: it.Kind, Bits: slices.Clone(it.Bits), Invert: it.Invert.Clone(), Default: it.Default}
	if it.Values != nil {
		out.Values = make(map[string]Bits, len(it.Values))
		for k, v := range it.Values {
			out.Values[k] = v.Clone()
		}
	}
	return out
}

func (it Item[C]) String() string {
	var sb strings.Builder
	sb.WriteString(it.Kind.String())
	sb.WriteString(" [")
	for i, b := range it.Bits {
		if i > 0 {
			sb.WriteString(" ")
		}
		if it.IsVector() && i < len(it.Invert) && it.Invert[i] {
			sb.WriteString("!")
		}
		sb.WriteString(b.String())
	}
	sb.WriteString("]")
	if it.Kind == KindEnum {
		for _, name := range it.ValueNames() {
			fmt.Fprintf(&sb, " %s=%s", name, it.Values[name])
		}
		if it.Default != "" {
			fmt.Fprintf(&sb, " default=%s", it.Default)
		}
	}
	return sb.String()
}
