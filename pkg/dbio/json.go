// Package dbio persists tile databases.
//
// Two encodings are provided: a JSON document for tools and a readable
// S-expression dump. Files whose name ends in .zst or .lz4 are compressed
// with zstd or lz4.
package dbio

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/OpenTraceLab/OpenTraceBits/pkg/bitcoord"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/tiledb"
)

// document is the JSON form of a database. Coordinates are strings and
// patterns are bit strings, index 0 first.
type document struct {
	Family  string                       `json:"family"`
	Tiles   map[string][]itemDoc         `json:"tiles"`
	Misc    map[string]string            `json:"misc,omitempty"`
	Devices map[string]map[string]string `json:"devices,omitempty"`
}

type itemDoc struct {
	Bel     string            `json:"bel"`
	Attr    string            `json:"attr"`
	Kind    string            `json:"kind"`
	Bits    []string          `json:"bits"`
	Invert  string            `json:"invert,omitempty"`
	Values  map[string]string `json:"values,omitempty"`
	Default string            `json:"default,omitempty"`
}

// Encode writes db as an indented JSON document.
func Encode[C bitcoord.Coord[C]](w io.Writer, db *tiledb.Db[C], family bitcoord.Family[C]) error {
	doc := document{Family: family.Name, Tiles: make(map[string][]itemDoc)}
	for _, name := range db.Tiles() {
		tile := db.Tile(name)
		items := make([]itemDoc, 0, len(tile.Items))
		for _, k := range tile.Keys() {
			items = append(items, toItemDoc(k, tile.Items[k]))
		}
		doc.Tiles[name] = items
	}
	if keys := db.MiscKeys(); len(keys) > 0 {
		doc.Misc = make(map[string]string, len(keys))
		for _, k := range keys {
			v, _ := db.Misc(k)
			doc.Misc[k] = v.String()
		}
	}
	if devs := db.Devices(); len(devs) > 0 {
		doc.Devices = make(map[string]map[string]string, len(devs))
		for _, dev := range devs {
			m := make(map[string]string)
			for _, k := range db.DeviceKeys(dev) {
				v, _ := db.Device(dev, k)
				m[k] = v.String()
			}
			doc.Devices[dev] = m
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("dbio: encode: %w", err)
	}
	return nil
}

func toItemDoc[C bitcoord.Coord[C]](k tiledb.ItemKey, it tiledb.Item[C]) itemDoc {
	d := itemDoc{Bel: k.Bel, Attr: k.Attr, Kind: it.Kind.String(), Default: it.Default}
	d.Bits = make([]string, len(it.Bits))
	for i, c := range it.Bits {
		d.Bits[i] = c.String()
	}
	if it.Kind != tiledb.KindEnum {
		d.Invert = it.Invert.String()
	}
	if len(it.Values) > 0 {
		d.Values = make(map[string]string, len(it.Values))
		for name, v := range it.Values {
			d.Values[name] = v.String()
		}
	}
	return d
}

// Decode reads a JSON document written by Encode. Every item is validated
// on insertion.
func Decode[C bitcoord.Coord[C]](r io.Reader, family bitcoord.Family[C]) (*tiledb.Db[C], error) {
	var doc document
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("dbio: decode: %w", err)
	}
	if doc.Family != family.Name {
		return nil, fmt.Errorf("dbio: database family %q, expected %q", doc.Family, family.Name)
	}

	db := tiledb.New[C]()
	for tile, items := range doc.Tiles {
		for _, d := range items {
			it, err := fromItemDoc(d, family)
			if err != nil {
				return nil, fmt.Errorf("dbio: %s:%s:%s: %w", tile, d.Bel, d.Attr, err)
			}
			if err := db.Insert(tile, d.Bel, d.Attr, it); err != nil {
				return nil, fmt.Errorf("dbio: %w", err)
			}
		}
	}
	for k, v := range doc.Misc {
		bits, err := tiledb.ParseBits(v)
		if err != nil {
			return nil, fmt.Errorf("dbio: misc %s: %w", k, err)
		}
		if err := db.InsertMisc(k, bits); err != nil {
			return nil, fmt.Errorf("dbio: %w", err)
		}
	}
	for dev, m := range doc.Devices {
		for k, v := range m {
			bits, err := tiledb.ParseBits(v)
			if err != nil {
				return nil, fmt.Errorf("dbio: device %s %s: %w", dev, k, err)
			}
			if err := db.InsertDevice(dev, k, bits); err != nil {
				return nil, fmt.Errorf("dbio: %w", err)
			}
		}
	}
	return db, nil
}

func fromItemDoc[C bitcoord.Coord[C]](d itemDoc, family bitcoord.Family[C]) (tiledb.Item[C], error) {
	kind, err := tiledb.ParseKind(d.Kind)
	if err != nil {
		return tiledb.Item[C]{}, err
	}
	return buildItem(rawItem{kind: kind, bits: d.Bits, invert: d.Invert, values: d.Values, def: d.Default}, family)
}

// rawItem is an item in string form, shared by both decoders.
type rawItem struct {
	kind   tiledb.Kind
	bits   []string
	invert string
	values map[string]string
	def    string
}

func buildItem[C bitcoord.Coord[C]](r rawItem, family bitcoord.Family[C]) (tiledb.Item[C], error) {
	it := tiledb.Item[C]{Kind: r.kind, Default: r.def}
	it.Bits = make([]C, len(r.bits))
	for i, s := range r.bits {
		c, err := family.Parse(s)
		if err != nil {
			return tiledb.Item[C]{}, err
		}
		it.Bits[i] = c
	}
	if r.kind == tiledb.KindEnum {
		it.Values = make(map[string]tiledb.Bits, len(r.values))
		for name, s := range r.values {
			v, err := tiledb.ParseBits(s)
			if err != nil {
				return tiledb.Item[C]{}, fmt.Errorf("value %q: %w", name, err)
			}
			it.Values[name] = v
		}
	} else {
		inv, err := tiledb.ParseBits(r.invert)
		if err != nil {
			return tiledb.Item[C]{}, fmt.Errorf("invert: %w", err)
		}
		it.Invert = inv
	}
	return it, nil
}
