package classify

import (
	"strconv"

	"github.com/OpenTraceLab/OpenTraceBits/pkg/bitcoord"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/diff"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/tiledb"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/violation"
)

// XlatBit classifies a single-bit flag. The Diff is the image with the flag
// on, relative to the baseline with it off.
func XlatBit[C bitcoord.Coord[C]](d diff.Diff[C]) (tiledb.Item[C], error) {
	pb, err := xlatBitRaw(d)
	if err != nil {
		return tiledb.Item[C]{}, err
	}
	return tiledb.NewFlag([]C{pb.Bit}, pb.Inv), nil
}

// XlatBitInv classifies a flag sampled in its off state against a baseline
// where it is on.
func XlatBitInv[C bitcoord.Coord[C]](d diff.Diff[C]) (tiledb.Item[C], error) {
	return XlatBit(d.Not())
}

func xlatBitRaw[C bitcoord.Coord[C]](d diff.Diff[C]) (tiledb.PolBit[C], error) {
	if d.Len() != 1 {
		return tiledb.PolBit[C]{}, violation.Newf(violation.Shape, "want exactly 1 bit, got %d %s", d.Len(), d)
	}
	c := d.Coords()[0]
	v, _ := d.Get(c)
	return tiledb.PolBit[C]{Bit: c, Inv: !v}, nil
}

// XlatBitWide classifies a flag driving several ganged bits that all share
// one polarity. Bits are ordered by coordinate.
func XlatBitWide[C bitcoord.Coord[C]](d diff.Diff[C]) (tiledb.Item[C], error) {
	if d.IsEmpty() {
		return tiledb.Item[C]{}, violation.Newf(violation.Shape, "wide flag without bits")
	}
	coords := d.Coords()
	first, _ := d.Get(coords[0])
	for _, c := range coords[1:] {
		if v, _ := d.Get(c); v != first {
			return tiledb.Item[C]{}, violation.Newf(violation.Shape, "wide flag bits disagree on polarity: %s", d)
		}
	}
	return tiledb.NewFlag(coords, !first), nil
}

// XlatBitWideBi classifies ganged bits where both states of the flag differ
// from the baseline: d0 is the off state, d1 the on state. It returns a
// vector with per-bit polarity and the pattern of the baseline.
func XlatBitWideBi[C bitcoord.Coord[C]](d0, d1 diff.Diff[C]) (tiledb.Item[C], tiledb.Bits, error) {
	rel, err := d1.RelativeTo(d0)
	if err != nil {
		return tiledb.Item[C]{}, nil, err
	}
	if rel.Len() != d0.Len()+d1.Len() {
		return tiledb.Item[C]{}, nil, violation.Newf(violation.Shape,
			"states share bits: off %s, on %s", d0, d1)
	}
	coords := rel.Coords()
	invert := make(tiledb.Bits, len(coords))
	def := make(tiledb.Bits, len(coords))
	for i, c := range coords {
		v, _ := rel.Get(c)
		invert[i] = !v
		_, def[i] = d0.Get(c)
	}
	return tiledb.NewBitVec(coords, invert), def, nil
}

// XlatBitvec classifies a bit vector from one single-bit Diff per position,
// index 0 first.
func XlatBitvec[C bitcoord.Coord[C]](diffs []diff.Diff[C]) (tiledb.Item[C], error) {
	bits := make([]C, len(diffs))
	invert := make(tiledb.Bits, len(diffs))
	for i, d := range diffs {
		pb, err := xlatBitRaw(d)
		if err != nil {
			return tiledb.Item[C]{}, violation.Attach(err, "bit "+strconv.Itoa(i))
		}
		bits[i], invert[i] = pb.Bit, pb.Inv
	}
	it := tiledb.NewBitVec(bits, invert)
	if err := it.Validate(); err != nil {
		return tiledb.Item[C]{}, err
	}
	return it, nil
}

// XlatBoolDefault classifies a boolean sampled in both states where exactly
// one state equals the baseline. It also returns the baseline value.
func XlatBoolDefault[C bitcoord.Coord[C]](d0, d1 diff.Diff[C]) (tiledb.Item[C], bool, error) {
	switch {
	case d0.IsEmpty():
		it, err := XlatBit(d1)
		return it, false, err
	case d1.IsEmpty():
		it, err := XlatBit(d0.Not())
		return it, true, err
	}
	return tiledb.Item[C]{}, false, violation.Newf(violation.Shape,
		"neither state matches the baseline: false %s, true %s", d0, d1)
}

// XlatBool is XlatBoolDefault without the baseline value.
func XlatBool[C bitcoord.Coord[C]](d0, d1 diff.Diff[C]) (tiledb.Item[C], error) {
	it, _, err := XlatBoolDefault(d0, d1)
	return it, err
}

// ConcatBitvec joins flags and bit vectors into one vector, in order.
func ConcatBitvec[C bitcoord.Coord[C]](items ...tiledb.Item[C]) (tiledb.Item[C], error) {
	var bits []C
	var invert tiledb.Bits
	for _, it := range items {
		if !it.IsVector() {
			return tiledb.Item[C]{}, violation.Newf(violation.Shape, "cannot concatenate %s", it.Kind)
		}
		bits = append(bits, it.Bits...)
		invert = append(invert, it.Invert...)
	}
	out := tiledb.NewBitVec(bits, invert)
	if err := out.Validate(); err != nil {
		return tiledb.Item[C]{}, err
	}
	return out, nil
}

// BoolToEnum expresses a polarised bit as a two-valued enum.
func BoolToEnum[C bitcoord.Coord[C]](bit C, pol bool, valTrue, valFalse string) (tiledb.Item[C], error) {
	return tiledb.NewEnum([]C{bit}, map[string]tiledb.Bits{
		valTrue:  {pol},
		valFalse: {!pol},
	}, "")
}

func uitoa(n uint32) string { return strconv.FormatUint(uint64(n), 10) }
