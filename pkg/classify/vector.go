package classify

import (
	mathbits "math/bits"

	"github.com/OpenTraceLab/OpenTraceBits/pkg/bitcoord"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/diff"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/tiledb"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/violation"
)

// IntValue is one sample of an integer-valued attribute.
type IntValue[C bitcoord.Coord[C]] struct {
	Value uint32
	Diff  diff.Diff[C]
}

// BitsValue is one sample of a vector attribute with an arbitrary value.
type BitsValue[C bitcoord.Coord[C]] struct {
	Value tiledb.Bits
	Diff  diff.Diff[C]
}

// XlatEnumInt classifies a bit vector from integer-labelled samples. The
// sample whose Diff is empty gives the baseline value. Bits are resolved
// one at a time from samples that differ from the baseline in a single
// known-so-far position.
func XlatEnumInt[C bitcoord.Coord[C]](values []IntValue[C]) (tiledb.Item[C], error) {
	var xor uint32
	for _, v := range values {
		if v.Diff.IsEmpty() {
			xor = v.Value
		}
	}
	var found []C
	var known []bool
	for {
		progress, done := false, true
		for _, v := range values {
			m := v.Diff.Clone()
			val := v.Value ^ xor
			for i := range found {
				if !known[i] || val&(1<<uint(i)) == 0 {
					continue
				}
				val &^= 1 << uint(i)
				want := xor>>uint(i)&1 == 0
				if got, ok := m.Remove(found[i]); !ok || got != want {
					return tiledb.Item[C]{}, violation.Newf(violation.Shape,
						"value %d: bit %d (%s) missing or wrong in %s", v.Value, i, found[i], v.Diff)
				}
			}
			switch {
			case val == 0:
				if err := m.AssertEmpty(""); err != nil {
					return tiledb.Item[C]{}, violation.Attach(err, "value "+uitoa(v.Value))
				}
			case val&(val-1) == 0:
				idx := mathbits.TrailingZeros32(val)
				for len(found) <= idx {
					var zero C
					found = append(found, zero)
					known = append(known, false)
				}
				pb, err := xlatBitRaw(m)
				if err != nil {
					return tiledb.Item[C]{}, violation.Attach(err, "value "+uitoa(v.Value))
				}
				if pb.Inv != (xor>>uint(idx)&1 == 1) {
					return tiledb.Item[C]{}, violation.Newf(violation.Shape,
						"value %d: bit %d (%s) has the wrong polarity", v.Value, idx, pb.Bit)
				}
				found[idx], known[idx] = pb.Bit, true
				progress = true
			default:
				done = false
			}
		}
		if done {
			for i, k := range known {
				if !k {
					return tiledb.Item[C]{}, violation.Newf(violation.Shape, "bit %d never isolated", i)
				}
			}
			it := tiledb.NewBitVec(found, tiledb.NewBits(len(found)))
			if err := it.Validate(); err != nil {
				return tiledb.Item[C]{}, err
			}
			return it, nil
		}
		if !progress {
			return tiledb.Item[C]{}, violation.Newf(violation.Shape,
				"no progress after isolating %d bits from %d samples", countTrue(known), len(values))
		}
	}
}

// XlatBitvecSparse classifies a bit vector from samples labelled with
// arbitrary values. Where no sample isolates a bit against the baseline,
// two samples differing in exactly that bit are compared instead.
func XlatBitvecSparse[C bitcoord.Coord[C]](values []BitsValue[C]) (tiledb.Item[C], error) {
	if len(values) == 0 {
		return tiledb.Item[C]{}, violation.Newf(violation.Shape, "no samples")
	}
	width := len(values[0].Value)
	xor := tiledb.NewBits(width)
	for _, v := range values {
		if len(v.Value) != width {
			return tiledb.Item[C]{}, violation.Newf(violation.Shape,
				"sample %s has %d bits, want %d", v.Value, len(v.Value), width)
		}
		if v.Diff.IsEmpty() {
			xor = v.Value.Clone()
		}
	}
	found := make([]tiledb.PolBit[C], width)
	known := make([]bool, width)

	// strip applies every known bit, moving the sample to the baseline
	// value at that position.
	strip := func(v BitsValue[C]) (tiledb.Bits, diff.Diff[C], error) {
		val, d := v.Value.Clone(), v.Diff.Clone()
		for i := range found {
			if !known[i] || val[i] == xor[i] {
				continue
			}
			if err := d.ApplyBitvecDiffRaw(found[i:i+1], val[i:i+1], xor[i:i+1]); err != nil {
				return nil, diff.Diff[C]{}, violation.Attach(err, "value "+v.Value.String())
			}
			val[i] = xor[i]
		}
		return val, d, nil
	}

	for {
		progress, done := false, true
		for _, v := range values {
			val, d, err := strip(v)
			if err != nil {
				return tiledb.Item[C]{}, err
			}
			idx, n := oneHot(xorBits(val, xor))
			switch {
			case n == 0:
				if err := d.AssertEmpty("value " + v.Value.String()); err != nil {
					return tiledb.Item[C]{}, err
				}
			case n == 1:
				pb, err := xlatBitRaw(d)
				if err != nil {
					return tiledb.Item[C]{}, violation.Attach(err, "value "+v.Value.String())
				}
				pb.Inv = pb.Inv != xor[idx]
				found[idx], known[idx] = pb, true
				progress = true
			default:
				done = false
			}
		}
		if done {
			break
		}
		if !progress {
			var err error
			if progress, err = sparsePair(values, strip, found, known); err != nil {
				return tiledb.Item[C]{}, err
			}
		}
		if !progress {
			return tiledb.Item[C]{}, violation.Newf(violation.Shape,
				"no progress after isolating %d of %d bits", countTrue(known), width)
		}
	}

	out := make([]C, width)
	invert := make(tiledb.Bits, width)
	for i, pb := range found {
		if !known[i] {
			return tiledb.Item[C]{}, violation.Newf(violation.Shape, "bit %d never isolated", i)
		}
		out[i], invert[i] = pb.Bit, pb.Inv
	}
	it := tiledb.NewBitVec(out, invert)
	if err := it.Validate(); err != nil {
		return tiledb.Item[C]{}, err
	}
	return it, nil
}

func sparsePair[C bitcoord.Coord[C]](
	values []BitsValue[C],
	strip func(BitsValue[C]) (tiledb.Bits, diff.Diff[C], error),
	found []tiledb.PolBit[C],
	known []bool,
) (bool, error) {
	for _, a := range values {
		va, da, err := strip(a)
		if err != nil {
			return false, err
		}
		for _, b := range values {
			vb, db, err := strip(b)
			if err != nil {
				return false, err
			}
			idx, n := oneHot(xorBits(va, vb))
			if n != 1 {
				continue
			}
			if known[idx] {
				return false, violation.Newf(violation.Shape, "bit %d isolated twice", idx)
			}
			var rel diff.Diff[C]
			if vb[idx] {
				rel, err = db.RelativeTo(da)
			} else {
				rel, err = da.RelativeTo(db)
			}
			if err != nil {
				return false, err
			}
			pb, err := xlatBitRaw(rel)
			if err != nil {
				return false, violation.Attach(err, "values "+a.Value.String()+"/"+b.Value.String())
			}
			found[idx], known[idx] = pb, true
			return true, nil
		}
	}
	return false, nil
}

func xorBits(a, b tiledb.Bits) tiledb.Bits {
	out := make(tiledb.Bits, len(a))
	for i := range a {
		out[i] = a[i] != b[i]
	}
	return out
}

// oneHot returns the index of the last set bit and how many bits are set.
func oneHot(b tiledb.Bits) (idx, n int) {
	for i, v := range b {
		if v {
			idx = i
			n++
		}
	}
	return idx, n
}

func countTrue(b []bool) int {
	n := 0
	for _, v := range b {
		if v {
			n++
		}
	}
	return n
}
