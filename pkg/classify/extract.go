package classify

import (
	"github.com/OpenTraceLab/OpenTraceBits/pkg/bitcoord"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/diff"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/tiledb"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/violation"
)

// ExtractBitvecVal reads the value a Diff encodes for a known vector item,
// starting from base, the item's value in the baseline image. Every bit of
// the Diff must belong to the item and must flip its position.
func ExtractBitvecVal[C bitcoord.Coord[C]](item tiledb.Item[C], base tiledb.Bits, d diff.Diff[C]) (tiledb.Bits, error) {
	res, index, err := extractSetup(item, base)
	if err != nil {
		return nil, err
	}
	for _, c := range d.Coords() {
		idx, ok := index[c]
		if !ok {
			return nil, violation.Newf(violation.Shape, "bit %s is not part of the item", c)
		}
		v, _ := d.Get(c)
		if err := flip(res, idx, v != item.Invert[idx], c); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// ExtractBitvecValPart is ExtractBitvecVal for a Diff that also holds bits
// of other attributes: only the item's bits are read and removed.
func ExtractBitvecValPart[C bitcoord.Coord[C]](item tiledb.Item[C], base tiledb.Bits, d *diff.Diff[C]) (tiledb.Bits, error) {
	res, index, err := extractSetup(item, base)
	if err != nil {
		return nil, err
	}
	for _, c := range d.Coords() {
		idx, ok := index[c]
		if !ok {
			continue
		}
		v, _ := d.Get(c)
		if err := flip(res, idx, v != item.Invert[idx], c); err != nil {
			return nil, err
		}
	}
	d.DiscardItem(item)
	return res, nil
}

func extractSetup[C bitcoord.Coord[C]](item tiledb.Item[C], base tiledb.Bits) (tiledb.Bits, map[C]int, error) {
	if !item.IsVector() {
		return nil, nil, violation.Newf(violation.Shape, "cannot extract a value from a %s", item.Kind)
	}
	if len(base) != item.Width() {
		return nil, nil, violation.Newf(violation.Shape, "base has %d bits, item has %d", len(base), item.Width())
	}
	index := make(map[C]int, item.Width())
	for i, c := range item.Bits {
		index[c] = i
	}
	return base.Clone(), index, nil
}

func flip[C bitcoord.Coord[C]](res tiledb.Bits, idx int, v bool, c C) error {
	if res[idx] == v {
		return violation.Newf(violation.Shape, "bit %s does not change position %d from %s", c, idx, boolBit(res[idx]))
	}
	res[idx] = v
	return nil
}

func boolBit(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
