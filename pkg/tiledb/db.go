package tiledb

import (
	"maps"
	"slices"
	"sort"
	"strings"

	"github.com/OpenTraceLab/OpenTraceBits/pkg/bitcoord"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/violation"
)

// Key names one attribute of one element instance of one tile kind.
type Key struct {
	Tile string
	Bel  string
	Attr string
}

func (k Key) String() string {
	return k.Tile + ":" + k.Bel + ":" + k.Attr
}

// ItemKey returns the within-tile part of the key.
func (k Key) ItemKey() ItemKey {
	return ItemKey{Bel: k.Bel, Attr: k.Attr}
}

// ParseKey reads the TILE:BEL:ATTR form.
func ParseKey(s string) (Key, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return Key{}, violation.Newf(violation.Shape, "item key %q is not TILE:BEL:ATTR", s)
	}
	return Key{Tile: parts[0], Bel: parts[1], Attr: parts[2]}, nil
}

// ItemKey names an item within a tile.
type ItemKey struct {
	Bel  string
	Attr string
}

func (k ItemKey) String() string { return k.Bel + ":" + k.Attr }

func compareItemKeys(a, b ItemKey) int {
	if c := strings.Compare(a.Bel, b.Bel); c != 0 {
		return c
	}
	return strings.Compare(a.Attr, b.Attr)
}

// Tile holds the classified items of one tile kind.
type Tile[C bitcoord.Coord[C]] struct {
	Items map[ItemKey]Item[C]
}

// NewTile returns an empty tile.
func NewTile[C bitcoord.Coord[C]]() *Tile[C] {
	return &Tile[C]{Items: make(map[ItemKey]Item[C])}
}

// Keys returns the item keys sorted by element, then attribute.
func (t *Tile[C]) Keys() []ItemKey {
	keys := slices.Collect(maps.Keys(t.Items))
	slices.SortFunc(keys, compareItemKeys)
	return keys
}

// Equal reports whether both tiles hold the same items.
func (t *Tile[C]) Equal(o *Tile[C]) bool {
	if len(t.Items) != len(o.Items) {
		return false
	}
	for k, it := range t.Items {
		oit, ok := o.Items[k]
		if !ok || !it.Equal(oit) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (t *Tile[C]) Clone() *Tile[C] {
	out := NewTile[C]()
	for k, it := range t.Items {
		out.Items[k] = it.Clone()
	}
	return out
}

// Db is the tile database produced by a collection pass. It only grows:
// inserting a key twice is accepted when both values are equal.
type Db[C bitcoord.Coord[C]] struct {
	tiles  map[string]*Tile[C]
	misc   map[string]Bits
	device map[string]map[string]Bits
}

// New returns an empty database.
func New[C bitcoord.Coord[C]]() *Db[C] {
	return &Db[C]{
		tiles:  make(map[string]*Tile[C]),
		misc:   make(map[string]Bits),
		device: make(map[string]map[string]Bits),
	}
}

// Insert records an item under (tile, bel, attr). Re-inserting an equal
// item is a no-op; a different item is a consistency violation.
func (db *Db[C]) Insert(tile, bel, attr string, item Item[C]) error {
	key := Key{Tile: tile, Bel: bel, Attr: attr}
	if err := item.Validate(); err != nil {
		return violation.Attach(err, key.String())
	}
	t, ok := db.tiles[tile]
	if !ok {
		t = NewTile[C]()
		db.tiles[tile] = t
	}
	ik := key.ItemKey()
	if cur, ok := t.Items[ik]; ok {
		if cur.Equal(item) {
			return nil
		}
		return violation.New(violation.Consistency, key.String(),
			"already holds %s, refusing %s", cur, item)
	}
	t.Items[ik] = item.Clone()
	return nil
}

// Item returns a previously inserted item. A missing item means a
// dependency was read before the step that writes it ran.
func (db *Db[C]) Item(tile, bel, attr string) (Item[C], error) {
	if t, ok := db.tiles[tile]; ok {
		if it, ok := t.Items[ItemKey{Bel: bel, Attr: attr}]; ok {
			return it.Clone(), nil
		}
	}
	return Item[C]{}, violation.New(violation.Missing, Key{tile, bel, attr}.String(), "item not in database")
}

// Has reports whether an item exists.
func (db *Db[C]) Has(k Key) bool {
	t, ok := db.tiles[k.Tile]
	if !ok {
		return false
	}
	_, ok = t.Items[k.ItemKey()]
	return ok
}

// InsertMisc records a raw bit pattern in the global namespace, with the
// same idempotence contract as Insert.
func (db *Db[C]) InsertMisc(key string, bits Bits) error {
	if cur, ok := db.misc[key]; ok {
		if cur.Equal(bits) {
			return nil
		}
		return violation.New(violation.Consistency, key, "misc data %s, refusing %s", cur, bits)
	}
	db.misc[key] = bits.Clone()
	return nil
}

// Misc returns a misc entry.
func (db *Db[C]) Misc(key string) (Bits, bool) {
	b, ok := db.misc[key]
	return b.Clone(), ok
}

// MiscKeys returns the misc keys, sorted.
func (db *Db[C]) MiscKeys() []string {
	keys := slices.Collect(maps.Keys(db.misc))
	sort.Strings(keys)
	return keys
}

// InsertDevice records a per-device raw pattern.
func (db *Db[C]) InsertDevice(device, key string, bits Bits) error {
	m, ok := db.device[device]
	if !ok {
		m = make(map[string]Bits)
		db.device[device] = m
	}
	if cur, ok := m[key]; ok {
		if cur.Equal(bits) {
			return nil
		}
		return violation.New(violation.Consistency, device+":"+key, "device data %s, refusing %s", cur, bits)
	}
	m[key] = bits.Clone()
	return nil
}

// Device returns a per-device entry.
func (db *Db[C]) Device(device, key string) (Bits, bool) {
	b, ok := db.device[device][key]
	return b.Clone(), ok
}

// Devices returns the device names, sorted.
func (db *Db[C]) Devices() []string {
	names := slices.Collect(maps.Keys(db.device))
	sort.Strings(names)
	return names
}

// DeviceKeys returns the keys recorded for a device, sorted.
func (db *Db[C]) DeviceKeys(device string) []string {
	keys := slices.Collect(maps.Keys(db.device[device]))
	sort.Strings(keys)
	return keys
}

// Tiles returns the tile names, sorted.
func (db *Db[C]) Tiles() []string {
	names := slices.Collect(maps.Keys(db.tiles))
	sort.Strings(names)
	return names
}

// Tile returns a tile, or nil when nothing was inserted for it.
func (db *Db[C]) Tile(name string) *Tile[C] {
	return db.tiles[name]
}

// Len returns the total number of items.
func (db *Db[C]) Len() int {
	n := 0
	for _, t := range db.tiles {
		n += len(t.Items)
	}
	return n
}
