package classify

import (
	"fmt"
	"slices"
	"sort"

	"github.com/OpenTraceLab/OpenTraceBits/pkg/bitcoord"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/diff"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/tiledb"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/violation"
)

// Value is one sampled enum value.
type Value[C bitcoord.Coord[C]] struct {
	Name string
	Diff diff.Diff[C]
}

// Order selects how XlatEnum orders the bits of an enum.
type Order int

const (
	// OrderFirstSeen keeps bits in the order the values first show them,
	// each Diff contributing its new bits in coordinate order.
	OrderFirstSeen Order = iota
	// OrderCoord sorts bits by coordinate.
	OrderCoord
	// OrderValue sorts bits so that the first values to set a bit put it
	// first. Encodings then read naturally when printed.
	OrderValue
	// OrderMux is OrderValue, then enable bits first, then one-hot groups
	// from largest to smallest, then everything else.
	OrderMux
)

var orderNames = map[Order]string{
	OrderFirstSeen: "first-seen",
	OrderCoord:     "coord",
	OrderValue:     "value",
	OrderMux:       "mux",
}

func (o Order) String() string {
	if s, ok := orderNames[o]; ok {
		return s
	}
	return fmt.Sprintf("Order(%d)", int(o))
}

// ParseOrder is the inverse of Order.String. The empty string selects
// OrderFirstSeen.
func ParseOrder(s string) (Order, error) {
	if s == "" {
		return OrderFirstSeen, nil
	}
	for o, name := range orderNames {
		if name == s {
			return o, nil
		}
	}
	return 0, fmt.Errorf("classify: unknown enum order %q", s)
}

type options struct {
	order      Order
	def        string
	hasDefault bool
}

// Option configures XlatEnum.
type Option func(*options)

// WithOrder selects the bit ordering.
func WithOrder(o Order) Option {
	return func(opts *options) { opts.order = o }
}

// WithDefault names the value the baseline image holds. It is added with
// an empty Diff unless sampled explicitly, and recorded as the default.
func WithDefault(name string) Option {
	return func(opts *options) {
		opts.def = name
		opts.hasDefault = true
	}
}

// XlatEnum classifies an enumeration from one Diff per value.
//
// The enum's bits are the union of all bits the Diffs touch. A bit must
// hold the same value in every Diff that contains it. The pattern of a
// value at a bit is 1 when the value sets the bit and 0 when it leaves
// the bit at the baseline, with the sense flipped for bits that switch off.
// A name may be sampled twice only with the same pattern, and no two
// names may share a pattern.
func XlatEnum[C bitcoord.Coord[C]](values []Value[C], opts ...Option) (tiledb.Item[C], error) {
	return xlatEnum(values, nil, opts)
}

// XlatEnumFixed is XlatEnum with a caller-supplied bit order, which must
// list exactly the bits the Diffs touch.
func XlatEnumFixed[C bitcoord.Coord[C]](values []Value[C], bits []C, opts ...Option) (tiledb.Item[C], error) {
	if bits == nil {
		bits = []C{}
	}
	return xlatEnum(values, bits, opts)
}

func xlatEnum[C bitcoord.Coord[C]](values []Value[C], fixed []C, optList []Option) (tiledb.Item[C], error) {
	var opts options
	for _, o := range optList {
		o(&opts)
	}
	if opts.hasDefault {
		values = append([]Value[C]{{Name: opts.def, Diff: diff.New[C]()}}, values...)
	}

	pol := make(map[C]bool)
	var bits []C
	for _, v := range values {
		for _, c := range v.Diff.Coords() {
			val, _ := v.Diff.Get(c)
			if cur, ok := pol[c]; ok {
				if cur != val {
					return tiledb.Item[C]{}, violation.Newf(violation.Shape,
						"bit %s is %v in one value and %v in %q", c, cur, val, v.Name)
				}
				continue
			}
			pol[c] = val
			bits = append(bits, c)
		}
	}

	pattern := func(d diff.Diff[C], c C) bool {
		_, present := d.Get(c)
		return pol[c] != !present
	}

	if fixed != nil {
		if len(fixed) != len(bits) {
			return tiledb.Item[C]{}, violation.Newf(violation.Shape,
				"fixed order lists %d bits, values touch %d", len(fixed), len(bits))
		}
		for _, c := range fixed {
			if _, ok := pol[c]; !ok {
				return tiledb.Item[C]{}, violation.Newf(violation.Shape, "fixed order bit %s not touched by any value", c)
			}
		}
		bits = slices.Clone(fixed)
	} else {
		switch opts.order {
		case OrderFirstSeen:
		case OrderCoord:
			bitcoord.SortCoords(bits)
		case OrderValue, OrderMux:
			bitcoord.SortCoords(bits)
			sort.SliceStable(bits, func(i, j int) bool {
				a, b := bits[i], bits[j]
				for _, v := range values {
					va, vb := pattern(v.Diff, a), pattern(v.Diff, b)
					if va != vb {
						return va
					}
				}
				return false
			})
			if opts.order == OrderMux {
				var err error
				if bits, err = muxOrder(bits, values, pattern); err != nil {
					return tiledb.Item[C]{}, err
				}
			}
		default:
			return tiledb.Item[C]{}, fmt.Errorf("classify: unknown enum order %d", int(opts.order))
		}
	}

	item := tiledb.Item[C]{Kind: tiledb.KindEnum, Bits: bits, Values: make(map[string]tiledb.Bits)}
	for _, v := range values {
		p := make(tiledb.Bits, len(bits))
		for i, c := range bits {
			p[i] = pattern(v.Diff, c)
		}
		if cur, ok := item.Values[v.Name]; ok {
			if !cur.Equal(p) {
				return tiledb.Item[C]{}, violation.Newf(violation.Consistency,
					"value %q sampled as both %s and %s", v.Name, cur, p)
			}
			continue
		}
		item.Values[v.Name] = p
	}
	if opts.hasDefault {
		item.Default = opts.def
	}
	if err := item.Validate(); err != nil {
		return tiledb.Item[C]{}, err
	}
	return item, nil
}

// muxOrder groups bits that are never set together across the values
// into one-hot groups. A group of one is an enable bit.
func muxOrder[C bitcoord.Coord[C]](bits []C, values []Value[C], pattern func(diff.Diff[C], C) bool) ([]C, error) {
	rows := make([]tiledb.Bits, len(values))
	for i, v := range values {
		rows[i] = make(tiledb.Bits, len(bits))
		for j, c := range bits {
			rows[i][j] = pattern(v.Diff, c)
		}
	}

	taken := make([]bool, len(bits))
	var enables []int
	var groups [][]int
	for s := range bits {
		if taken[s] {
			continue
		}
		group := []int{s}
		for n := s + 1; n < len(bits); n++ {
			if taken[n] {
				continue
			}
			disjoint := true
			for _, g := range group {
				for _, row := range rows {
					if row[n] && row[g] {
						disjoint = false
					}
				}
			}
			if disjoint {
				group = append(group, n)
			}
		}
		full := true
		for _, row := range rows {
			cnt := 0
			for _, g := range group {
				if row[g] {
					cnt++
				}
			}
			if cnt > 1 {
				return nil, violation.Newf(violation.Shape, "mux group %v has %d bits set in one value", group, cnt)
			}
			if cnt == 0 && !row.All(false) {
				full = false
				break
			}
		}
		if !full {
			continue
		}
		for _, g := range group {
			taken[g] = true
		}
		if len(group) == 1 {
			enables = append(enables, group[0])
		} else {
			groups = append(groups, group)
		}
	}
	sort.SliceStable(groups, func(i, j int) bool { return len(groups[i]) > len(groups[j]) })

	out := make([]C, 0, len(bits))
	for _, e := range enables {
		out = append(out, bits[e])
	}
	for _, g := range groups {
		for _, idx := range g {
			out = append(out, bits[idx])
		}
	}
	for i, c := range bits {
		if !taken[i] {
			out = append(out, c)
		}
	}
	return out, nil
}

// SwapEnumBits exchanges two bit positions of an enum, patterns included.
func SwapEnumBits[C bitcoord.Coord[C]](item *tiledb.Item[C], a, b int) error {
	if item.Kind != tiledb.KindEnum {
		return violation.Newf(violation.Shape, "cannot swap bits of a %s", item.Kind)
	}
	if a < 0 || b < 0 || a >= item.Width() || b >= item.Width() {
		return violation.Newf(violation.Shape, "swap %d/%d out of range for %d bits", a, b, item.Width())
	}
	item.Bits[a], item.Bits[b] = item.Bits[b], item.Bits[a]
	for _, v := range item.Values {
		v[a], v[b] = v[b], v[a]
	}
	return nil
}
