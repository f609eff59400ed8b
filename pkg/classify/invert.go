package classify

import (
	"github.com/OpenTraceLab/OpenTraceBits/pkg/bitcoord"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/tiledb"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/violation"
)

// Observation is one read-back of a vector field: the raw bits as stored
// and the logical value that was programmed.
type Observation struct {
	Raw   tiledb.Bits
	Value tiledb.Bits
}

// InferInvert derives per-bit polarity from the raw read-back of the
// default state, whose logical value is all zeros, and checks every
// observation against it.
func InferInvert(defaultRaw tiledb.Bits, obs []Observation) (tiledb.Bits, error) {
	invert := defaultRaw.Clone()
	for n, o := range obs {
		if len(o.Raw) != len(invert) || len(o.Value) != len(invert) {
			return nil, violation.Newf(violation.Shape,
				"observation %d: raw %d bits, value %d bits, want %d", n, len(o.Raw), len(o.Value), len(invert))
		}
		for i := range invert {
			if o.Raw[i] != invert[i] != o.Value[i] {
				return nil, violation.Newf(violation.Shape,
					"observation %d: bit %d reads %s for value %s but default polarity is %s",
					n, i, o.Raw, o.Value, invert)
			}
		}
	}
	return invert, nil
}

// InferBitVec builds a bit vector item from read-back observations.
func InferBitVec[C bitcoord.Coord[C]](bits []C, defaultRaw tiledb.Bits, obs []Observation) (tiledb.Item[C], error) {
	if len(bits) != len(defaultRaw) {
		return tiledb.Item[C]{}, violation.Newf(violation.Shape, "%d bits but default has %d", len(bits), len(defaultRaw))
	}
	invert, err := InferInvert(defaultRaw, obs)
	if err != nil {
		return tiledb.Item[C]{}, err
	}
	it := tiledb.NewBitVec(bits, invert)
	if err := it.Validate(); err != nil {
		return tiledb.Item[C]{}, err
	}
	return it, nil
}

// InferEnum builds an enum directly from the raw read-back of each value.
func InferEnum[C bitcoord.Coord[C]](bits []C, raws map[string]tiledb.Bits, def string) (tiledb.Item[C], error) {
	return tiledb.NewEnum(bits, raws, def)
}

// Unify checks that the same attribute extracted from several instances
// came out identical, and returns it.
func Unify[C bitcoord.Coord[C]](items ...tiledb.Item[C]) (tiledb.Item[C], error) {
	if len(items) == 0 {
		return tiledb.Item[C]{}, violation.Newf(violation.Shape, "nothing to unify")
	}
	for i, it := range items[1:] {
		if !it.Equal(items[0]) {
			return tiledb.Item[C]{}, violation.Newf(violation.Consistency,
				"instance %d is %s, instance 0 is %s", i+1, it, items[0])
		}
	}
	return items[0].Clone(), nil
}
