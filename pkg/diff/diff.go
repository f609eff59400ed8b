package diff

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/OpenTraceLab/OpenTraceBits/pkg/bitcoord"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/tiledb"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/violation"
)

// Diff is a sparse set of bits that differ from the baseline, each with
// the value it holds in the sampled image. The zero value is empty.
type Diff[C bitcoord.Coord[C]] struct {
	bits map[C]bool
}

// New returns an empty Diff.
func New[C bitcoord.Coord[C]]() Diff[C] {
	return Diff[C]{bits: make(map[C]bool)}
}

// Of returns a Diff holding a copy of m.
func Of[C bitcoord.Coord[C]](m map[C]bool) Diff[C] {
	return Diff[C]{bits: maps.Clone(m)}
}

// Set records bit c with value v.
func (d *Diff[C]) Set(c C, v bool) {
	if d.bits == nil {
		d.bits = make(map[C]bool)
	}
	d.bits[c] = v
}

// Get returns the value of c and whether c differs from the baseline.
func (d Diff[C]) Get(c C) (v, ok bool) {
	v, ok = d.bits[c]
	return
}

// Len is the number of differing bits.
func (d Diff[C]) Len() int { return len(d.bits) }

// IsEmpty reports whether no bit differs.
func (d Diff[C]) IsEmpty() bool { return len(d.bits) == 0 }

// Coords returns the differing bits in coordinate order.
func (d Diff[C]) Coords() []C {
	cs := slices.Collect(maps.Keys(d.bits))
	bitcoord.SortCoords(cs)
	return cs
}

// Map returns a copy of the underlying map.
func (d Diff[C]) Map() map[C]bool {
	return maps.Clone(d.bits)
}

// Clone returns an independent copy.
func (d Diff[C]) Clone() Diff[C] {
	return Diff[C]{bits: maps.Clone(d.bits)}
}

// Equal reports whether both Diffs hold the same bits with the same values.
func (d Diff[C]) Equal(o Diff[C]) bool {
	return maps.Equal(d.bits, o.bits)
}

// String renders the Diff as [coord:value ...] in coordinate order.
func (d Diff[C]) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, c := range d.Coords() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(c.String())
		if d.bits[c] {
			sb.WriteString(":1")
		} else {
			sb.WriteString(":0")
		}
	}
	sb.WriteByte(']')
	return sb.String()
}

// Not flips the value of every bit. The set of bits is unchanged.
func (d Diff[C]) Not() Diff[C] {
	out := Diff[C]{bits: make(map[C]bool, len(d.bits))}
	for c, v := range d.bits {
		out.bits[c] = !v
	}
	return out
}

// Combine merges two Diffs taken against the same baseline. A bit present
// in both must hold complementary values, and cancels out.
func (d Diff[C]) Combine(o Diff[C]) (Diff[C], error) {
	out := d.Clone()
	if out.bits == nil {
		out.bits = make(map[C]bool, len(o.bits))
	}
	for _, c := range o.Coords() {
		v := o.bits[c]
		if cur, ok := out.bits[c]; ok {
			if cur == v {
				return Diff[C]{}, violation.Newf(violation.Shape,
					"combine: bit %s is %v on both sides", c, boolBit(v))
			}
			delete(out.bits, c)
			continue
		}
		out.bits[c] = v
	}
	return out, nil
}

// UnionDisjoint joins two Diffs of independent attributes. Any shared bit
// is a violation.
func UnionDisjoint[C bitcoord.Coord[C]](a, b Diff[C]) (Diff[C], error) {
	out := a.Clone()
	if out.bits == nil {
		out.bits = make(map[C]bool, len(b.bits))
	}
	for _, c := range b.Coords() {
		if _, ok := out.bits[c]; ok {
			return Diff[C]{}, violation.Newf(violation.Shape, "union: bit %s present on both sides", c)
		}
		out.bits[c] = b.bits[c]
	}
	return out, nil
}

// RelativeTo re-expresses d, taken against the common baseline, as the
// difference between the image of base and the image of d. Bits changed
// the same way in both cancel; bits only base changed are reverted.
func (d Diff[C]) RelativeTo(base Diff[C]) (Diff[C], error) {
	out, err := d.Combine(base.Not())
	if err != nil {
		return Diff[C]{}, fmt.Errorf("relative to %s: %w", base, err)
	}
	return out, nil
}

// Split separates the bits only a has, only b has, and both have. Shared
// bits must agree.
func Split[C bitcoord.Coord[C]](a, b Diff[C]) (onlyA, onlyB, common Diff[C], err error) {
	onlyA, onlyB, common = a.Clone(), b.Clone(), New[C]()
	for _, c := range a.Coords() {
		bv, ok := onlyB.bits[c]
		if !ok {
			continue
		}
		if av := a.bits[c]; av != bv {
			return Diff[C]{}, Diff[C]{}, Diff[C]{}, violation.Newf(violation.Shape,
				"split: bit %s is %v in one diff and %v in the other", c, boolBit(av), boolBit(bv))
		}
		common.bits[c] = bv
		delete(onlyA.bits, c)
		delete(onlyB.bits, c)
	}
	return onlyA, onlyB, common, nil
}

// SplitBitsBy moves the bits matching pred out of d and returns them.
func (d *Diff[C]) SplitBitsBy(pred func(C) bool) Diff[C] {
	out := New[C]()
	for c, v := range d.bits {
		if pred(c) {
			out.bits[c] = v
			delete(d.bits, c)
		}
	}
	return out
}

// SplitBits moves the listed bits out of d and returns them.
func (d *Diff[C]) SplitBits(bits ...C) Diff[C] {
	set := make(map[C]struct{}, len(bits))
	for _, b := range bits {
		set[b] = struct{}{}
	}
	return d.SplitBitsBy(func(c C) bool {
		_, ok := set[c]
		return ok
	})
}

// Remove deletes c and returns the value it held.
func (d *Diff[C]) Remove(c C) (v, ok bool) {
	v, ok = d.bits[c]
	delete(d.bits, c)
	return
}

// DiscardBits drops the listed bits without checking their values.
func (d *Diff[C]) DiscardBits(bits ...C) {
	for _, b := range bits {
		delete(d.bits, b)
	}
}

// DiscardItem drops every bit of item without checking values.
func (d *Diff[C]) DiscardItem(item tiledb.Item[C]) {
	d.DiscardBits(item.Bits...)
}

// AssertEmpty fails with a residual-bits violation listing every bit left.
func (d Diff[C]) AssertEmpty(subject string) error {
	if d.IsEmpty() {
		return nil
	}
	return violation.New(violation.Residual, subject, "%d unexplained bits %s", d.Len(), d)
}

// FromFlag returns the Diff a flag produces when switched on.
func FromFlag[C bitcoord.Coord[C]](item tiledb.Item[C]) (Diff[C], error) {
	pbits, err := item.PolBits()
	if err != nil {
		return Diff[C]{}, err
	}
	if item.Kind != tiledb.KindFlag {
		return Diff[C]{}, violation.Newf(violation.Shape, "want a flag, got %s", item.Kind)
	}
	out := New[C]()
	for _, pb := range pbits {
		out.bits[pb.Bit] = !pb.Inv
	}
	return out, nil
}

// ExtractCommon removes the bits every diff shares and returns them. Each
// diff must hold a shared bit with the same value.
func ExtractCommon[C bitcoord.Coord[C]](diffs []*Diff[C]) (Diff[C], error) {
	if len(diffs) == 0 {
		return New[C](), nil
	}
	common := diffs[0].Clone()
	for _, d := range diffs[1:] {
		for c := range common.bits {
			if _, ok := d.bits[c]; !ok {
				delete(common.bits, c)
			}
		}
	}
	for _, d := range diffs {
		for c, v := range common.bits {
			if d.bits[c] != v {
				return Diff[C]{}, violation.Newf(violation.Shape,
					"common bit %s is %v in one diff and %v in another", c, boolBit(v), boolBit(d.bits[c]))
			}
		}
	}
	for _, d := range diffs {
		d.DiscardBits(common.Coords()...)
	}
	return common, nil
}

func boolBit(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
