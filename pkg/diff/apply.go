package diff

import (
	"github.com/OpenTraceLab/OpenTraceBits/pkg/tiledb"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/violation"
)

// ApplyBitvecDiffRaw subtracts what bits contribute when their logical
// value goes from from to to. For every position that changes: a bit the
// Diff holds must carry the from contribution and is removed, a bit the
// Diff lacks gets the to contribution. On error d is left untouched.
func (d *Diff[C]) ApplyBitvecDiffRaw(bits []tiledb.PolBit[C], from, to tiledb.Bits) error {
	if len(from) != len(bits) || len(to) != len(bits) {
		return violation.Newf(violation.Shape, "apply: %d bits, from has %d, to has %d", len(bits), len(from), len(to))
	}
	next := d.Clone()
	if next.bits == nil {
		next.bits = make(map[C]bool)
	}
	for i, pb := range bits {
		if from[i] == to[i] {
			continue
		}
		want := from[i] != pb.Inv
		if cur, ok := next.bits[pb.Bit]; ok {
			if cur != want {
				return violation.Newf(violation.Shape, "apply: bit %s is %s, expected %s",
					pb.Bit, boolBit(cur), boolBit(want))
			}
			delete(next.bits, pb.Bit)
			continue
		}
		next.bits[pb.Bit] = to[i] != pb.Inv
	}
	d.bits = next.bits
	return nil
}

// ApplyEnumBitsRaw is ApplyBitvecDiffRaw for bits without polarity.
func (d *Diff[C]) ApplyEnumBitsRaw(bits []C, from, to tiledb.Bits) error {
	pbits := make([]tiledb.PolBit[C], len(bits))
	for i, b := range bits {
		pbits[i] = tiledb.PolBit[C]{Bit: b}
	}
	return d.ApplyBitvecDiffRaw(pbits, from, to)
}

// ApplyBitvecDiff subtracts the change of a flag or bit vector item from
// value from to value to.
func (d *Diff[C]) ApplyBitvecDiff(item tiledb.Item[C], from, to tiledb.Bits) error {
	pbits, err := item.PolBits()
	if err != nil {
		return err
	}
	return d.ApplyBitvecDiffRaw(pbits, from, to)
}

// ApplyBitvecDiffInt is ApplyBitvecDiff with integer values.
func (d *Diff[C]) ApplyBitvecDiffInt(item tiledb.Item[C], from, to uint64) error {
	w := item.Width()
	if w < 64 && (from>>w != 0 || to>>w != 0) {
		return violation.Newf(violation.Shape, "apply: value %d -> %d does not fit %d bits", from, to, w)
	}
	return d.ApplyBitvecDiff(item, tiledb.BitsFromUint(from, w), tiledb.BitsFromUint(to, w))
}

// ApplyBitDiff subtracts the change of a flag. Every bit of a wide flag
// moves together.
func (d *Diff[C]) ApplyBitDiff(item tiledb.Item[C], from, to bool) error {
	w := item.Width()
	return d.ApplyBitvecDiff(item, tiledb.FilledBits(w, from), tiledb.FilledBits(w, to))
}

// ApplyEnumDiff subtracts the change of an enum from value from to value to.
func (d *Diff[C]) ApplyEnumDiff(item tiledb.Item[C], from, to string) error {
	fv, err := item.Value(from)
	if err != nil {
		return err
	}
	tv, err := item.Value(to)
	if err != nil {
		return err
	}
	return d.ApplyEnumBitsRaw(item.Bits, fv, tv)
}

