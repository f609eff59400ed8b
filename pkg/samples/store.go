// Package samples holds the claim-based store of recorded Diffs.
//
// Every Diff the population boundary records is keyed by the attribute
// value it isolates. A collection pass consumes each Diff exactly once with
// GetDiff; PeekDiff reads without consuming, for Diffs that serve several
// extraction steps. Whatever is left unconsumed at the end is reported by
// Finish, which points at attributes no step classified.
package samples

import (
	"maps"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/OpenTraceLab/OpenTraceBits/pkg/bitcoord"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/diff"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/tiledb"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/violation"
)

// Key identifies one sample: the value Val of attribute Attr of element
// Bel in tile kind Tile.
type Key struct {
	Tile string
	Bel  string
	Attr string
	Val  string
}

func (k Key) String() string {
	return k.Tile + ":" + k.Bel + ":" + k.Attr + ":" + k.Val
}

// Item returns the key of the attribute the sample belongs to.
func (k Key) Item() tiledb.Key {
	return tiledb.Key{Tile: k.Tile, Bel: k.Bel, Attr: k.Attr}
}

// ParseKey reads the TILE:BEL:ATTR:VAL form. The value may contain colons.
func ParseKey(s string) (Key, error) {
	parts := strings.SplitN(s, ":", 4)
	if len(parts) != 4 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return Key{}, violation.Newf(violation.Shape, "sample key %q is not TILE:BEL:ATTR:VAL", s)
	}
	return Key{Tile: parts[0], Bel: parts[1], Attr: parts[2], Val: parts[3]}, nil
}

func compareKeys(a, b Key) int {
	return strings.Compare(a.String(), b.String())
}

type entry[C bitcoord.Coord[C]] struct {
	diff     diff.Diff[C]
	consumed bool
}

// Store maps sample keys to Diffs and tracks which were consumed.
// Insert may be called concurrently while the store is being populated.
type Store[C bitcoord.Coord[C]] struct {
	mu       sync.Mutex
	entries  map[Key]*entry[C]
	consumed int
}

// NewStore creates an empty store.
func NewStore[C bitcoord.Coord[C]]() *Store[C] {
	return &Store[C]{entries: make(map[Key]*entry[C])}
}

// Insert records the Diff of a sample. Recording the same key again is
// accepted only with an identical Diff.
func (s *Store[C]) Insert(k Key, d diff.Diff[C]) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.entries[k]; ok {
		if cur.diff.Equal(d) {
			return nil
		}
		return violation.New(violation.Consistency, k.String(), "recorded as %s, refusing %s", cur.diff, d)
	}
	s.entries[k] = &entry[C]{diff: d.Clone()}
	return nil
}

// GetDiff consumes the Diff of k. It fails when k was never recorded or
// was already consumed.
func (s *Store[C]) GetDiff(k Key) (diff.Diff[C], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lookup(k)
	if err != nil {
		return diff.Diff[C]{}, err
	}
	e.consumed = true
	s.consumed++
	d := e.diff
	e.diff = diff.Diff[C]{}
	return d, nil
}

// PeekDiff returns a copy of the Diff of k without consuming it.
func (s *Store[C]) PeekDiff(k Key) (diff.Diff[C], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lookup(k)
	if err != nil {
		return diff.Diff[C]{}, err
	}
	return e.diff.Clone(), nil
}

func (s *Store[C]) lookup(k Key) (*entry[C], error) {
	e, ok := s.entries[k]
	switch {
	case !ok:
		return nil, violation.New(violation.Exhausted, k.String(), "never recorded")
	case e.consumed:
		return nil, violation.New(violation.Exhausted, k.String(), "already consumed")
	}
	return e, nil
}

// Has reports whether k is recorded and not yet consumed.
func (s *Store[C]) Has(k Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[k]
	return ok && !e.consumed
}

// Len returns the number of recorded samples, consumed or not.
func (s *Store[C]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Consumed returns the number of consumed samples.
func (s *Store[C]) Consumed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consumed
}

// Keys returns every recorded key, sorted.
func (s *Store[C]) Keys() []Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := slices.Collect(maps.Keys(s.entries))
	slices.SortFunc(keys, compareKeys)
	return keys
}

// Remaining returns the unconsumed keys, sorted.
func (s *Store[C]) Remaining() []Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []Key
	for k, e := range s.entries {
		if !e.consumed {
			keys = append(keys, k)
		}
	}
	slices.SortFunc(keys, compareKeys)
	return keys
}

// Values returns the unconsumed values recorded for one attribute, sorted.
func (s *Store[C]) Values(item tiledb.Key) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var vals []string
	for k, e := range s.entries {
		if !e.consumed && k.Item() == item {
			vals = append(vals, k.Val)
		}
	}
	slices.Sort(vals)
	return vals
}

// Finish logs a warning for every unconsumed sample and returns their keys.
// Leftovers are not an error: they name attributes no step classified.
func (s *Store[C]) Finish(log *zap.Logger) []Key {
	if log == nil {
		log = zap.NewNop()
	}
	left := s.Remaining()
	for _, k := range left {
		d, _ := s.PeekDiff(k)
		log.Warn("unconsumed sample", zap.Stringer("key", k), zap.Int("bits", d.Len()), zap.Stringer("diff", d))
	}
	return left
}
