package tiledb

import (
	"fmt"
	"slices"

	"github.com/OpenTraceLab/OpenTraceBits/pkg/bitcoord"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/violation"
)

// MergeEnum folds enum b into enum a. The merged bit sequence is a's bits
// followed by b's bits that a lacks. Every pattern is re-expressed over the
// merged sequence, with neutral at positions its variant does not cover.
// A value present in both must then be identical.
func MergeEnum[C bitcoord.Coord[C]](a *Item[C], b Item[C], neutral bool) error {
	if a.Kind != KindEnum || b.Kind != KindEnum {
		return violation.Newf(violation.Consistency, "cannot merge %s into %s as enums", b.Kind, a.Kind)
	}
	if a.Equal(b) {
		return nil
	}
	bits := slices.Clone(a.Bits)
	for _, bit := range b.Bits {
		if !slices.Contains(bits, bit) {
			bits = append(bits, bit)
		}
	}
	mapA := positions(bits, a.Bits)
	mapB := positions(bits, b.Bits)

	values := make(map[string]Bits, len(a.Values)+len(b.Values))
	for name, v := range a.Values {
		values[name] = remap(v, mapA, neutral)
	}
	for _, name := range b.ValueNames() {
		v := remap(b.Values[name], mapB, neutral)
		if cur, ok := values[name]; ok {
			if !cur.Equal(v) {
				return violation.Newf(violation.Consistency,
					"value %q is %s in one variant and %s in the other", name, cur, v)
			}
			continue
		}
		values[name] = v
	}

	def := a.Default
	if def == "" {
		def = b.Default
	} else if b.Default != "" && b.Default != def {
		return violation.Newf(violation.Consistency, "defaults %q and %q differ", a.Default, b.Default)
	}

	merged := Item[C]{Kind: KindEnum, Bits: bits, Values: values, Default: def}
	if err := merged.Validate(); err != nil {
		return err
	}
	*a = merged
	return nil
}

// positions maps every merged position to its index in part, or -1.
func positions[C comparable](merged, part []C) []int {
	out := make([]int, len(merged))
	for i, bit := range merged {
		out[i] = slices.Index(part, bit)
	}
	return out
}

func remap(v Bits, pos []int, neutral bool) Bits {
	out := make(Bits, len(pos))
	for i, idx := range pos {
		if idx < 0 {
			out[i] = neutral
		} else {
			out[i] = v[idx]
		}
	}
	return out
}

// MergeTile folds tile b into tile a. Enums are merged with MergeEnum,
// flags and bit vectors must be identical, and items only b has are copied.
func MergeTile[C bitcoord.Coord[C]](a, b *Tile[C], neutral bool) error {
	if a.Equal(b) {
		return nil
	}
	for _, k := range b.Keys() {
		bit := b.Items[k]
		cur, ok := a.Items[k]
		if !ok {
			a.Items[k] = bit.Clone()
			continue
		}
		switch {
		case cur.Kind == KindEnum && bit.Kind == KindEnum:
			if err := MergeEnum(&cur, bit, neutral); err != nil {
				return violation.Attach(err, k.String())
			}
			a.Items[k] = cur
		case cur.Kind != bit.Kind:
			return violation.New(violation.Consistency, k.String(),
				"kind %s in one variant and %s in the other", cur.Kind, bit.Kind)
		case !cur.Equal(bit):
			return violation.New(violation.Consistency, k.String(), "%s differs from %s", cur, bit)
		}
	}
	return nil
}

// Merge folds another database into db: tiles with MergeTile, misc and
// device data with the insert contract.
func (db *Db[C]) Merge(other *Db[C], neutral bool) error {
	for _, name := range other.Tiles() {
		t, ok := db.tiles[name]
		if !ok {
			db.tiles[name] = other.tiles[name].Clone()
			continue
		}
		if err := MergeTile(t, other.tiles[name], neutral); err != nil {
			return fmt.Errorf("tiledb: tile %s: %w", name, err)
		}
	}
	for _, k := range other.MiscKeys() {
		if err := db.InsertMisc(k, other.misc[k]); err != nil {
			return err
		}
	}
	for _, dev := range other.Devices() {
		for _, k := range other.DeviceKeys(dev) {
			if err := db.InsertDevice(dev, k, other.device[dev][k]); err != nil {
				return err
			}
		}
	}
	return nil
}
