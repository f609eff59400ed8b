package recipe

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/OpenTraceLab/OpenTraceBits/pkg/bitcoord"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/classify"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/collect"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/diff"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/samples"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/tiledb"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/violation"
)

// ValueSource lists the recorded values of an attribute. *samples.Store
// implements it.
type ValueSource interface {
	Values(item tiledb.Key) []string
}

// Build turns a validated recipe into a plan. Steps that list no values
// take them from src, which may be nil when every step is explicit.
func Build[C bitcoord.Coord[C]](r *Recipe, family bitcoord.Family[C], src ValueSource) (*collect.Plan[C], error) {
	if r.Family != family.Name {
		return nil, fmt.Errorf("recipe: family %q does not match coordinates %q", r.Family, family.Name)
	}
	plan := collect.NewPlan[C]()
	for _, s := range r.Steps {
		tiles := s.TileNames()
		for _, tile := range tiles {
			name := s.Name
			if len(tiles) > 1 {
				name = s.Name + "/" + tile
			}
			step, err := buildStep[C](name, tile, s, src)
			if err != nil {
				return nil, fmt.Errorf("recipe: step %q: %w", name, err)
			}
			plan.Add(step)
		}
	}
	return plan, nil
}

func buildStep[C bitcoord.Coord[C]](name, tile string, s StepSpec, src ValueSource) (collect.Step[C], error) {
	key := tiledb.Key{Tile: tile, Bel: s.Bel, Attr: s.Attr}
	vals, err := resolveValues(key, s, src)
	if err != nil {
		return collect.Step[C]{}, err
	}
	order, err := classify.ParseOrder(s.Order)
	if err != nil {
		return collect.Step[C]{}, err
	}

	step := collect.Step[C]{Name: name, Writes: []tiledb.Key{key}}
	for _, v := range vals {
		step.Reads = append(step.Reads, collect.Read{
			Key:  samples.Key{Tile: tile, Bel: s.Bel, Attr: s.Attr, Val: v},
			Peek: s.Peek,
		})
	}
	subs := make([]Subtraction, len(s.Subtract))
	for i, sub := range s.Subtract {
		if sub.Tile == "" {
			sub.Tile = tile
		}
		subs[i] = sub
		dep := tiledb.Key{Tile: sub.Tile, Bel: sub.Bel, Attr: sub.Attr}
		if !slices.Contains(step.Needs, dep) {
			step.Needs = append(step.Needs, dep)
		}
	}

	step.Run = func(c *collect.Collector[C]) error {
		diffs := make([]diff.Diff[C], len(vals))
		for i, v := range vals {
			var d diff.Diff[C]
			var err error
			if s.Peek {
				d, err = c.PeekDiff(tile, s.Bel, s.Attr, v)
			} else {
				d, err = c.GetDiff(tile, s.Bel, s.Attr, v)
			}
			if err != nil {
				return err
			}
			for _, sub := range subs {
				if len(sub.Only) > 0 && !slices.Contains(sub.Only, v) {
					continue
				}
				if err := subtract(c, &d, sub); err != nil {
					return fmt.Errorf("value %q: %w", v, err)
				}
			}
			diffs[i] = d
		}
		item, err := classifyDiffs(s, vals, diffs, order)
		if err != nil {
			return violation.Attach(err, key.String())
		}
		return c.Insert(tile, s.Bel, s.Attr, item)
	}
	return step, nil
}

func resolveValues(key tiledb.Key, s StepSpec, src ValueSource) ([]string, error) {
	switch s.Kind {
	case KindBitvec:
		vals := make([]string, s.Width)
		for i := range vals {
			vals[i] = strconv.Itoa(i)
		}
		return vals, nil
	case KindBit, KindBitInv, KindBitWide:
		if len(s.Values) == 0 {
			return []string{"1"}, nil
		}
		return s.Values, nil
	}
	if len(s.Values) > 0 {
		return s.Values, nil
	}
	if src == nil {
		return nil, fmt.Errorf("no values listed for %s and no sample source", key)
	}
	var vals []string
	for _, v := range src.Values(key) {
		if s.Kind == KindEnumDefault && v == s.Default {
			continue
		}
		vals = append(vals, v)
	}
	if len(vals) == 0 {
		return nil, violation.New(violation.Missing, key.String(), "no recorded values")
	}
	return vals, nil
}

func subtract[C bitcoord.Coord[C]](c *collect.Collector[C], d *diff.Diff[C], sub Subtraction) error {
	item, err := c.Item(sub.Tile, sub.Bel, sub.Attr)
	if err != nil {
		return err
	}
	switch item.Kind {
	case tiledb.KindEnum:
		return d.ApplyEnumDiff(item, sub.From, sub.To)
	case tiledb.KindFlag:
		from, err := parseFlag(sub.From)
		if err != nil {
			return err
		}
		to, err := parseFlag(sub.To)
		if err != nil {
			return err
		}
		return d.ApplyBitDiff(item, from, to)
	default:
		from, err := strconv.ParseUint(sub.From, 10, 64)
		if err != nil {
			return fmt.Errorf("subtract %s:%s: %w", sub.Bel, sub.Attr, err)
		}
		to, err := strconv.ParseUint(sub.To, 10, 64)
		if err != nil {
			return fmt.Errorf("subtract %s:%s: %w", sub.Bel, sub.Attr, err)
		}
		return d.ApplyBitvecDiffInt(item, from, to)
	}
}

func parseFlag(s string) (bool, error) {
	switch s {
	case "0":
		return false, nil
	case "1":
		return true, nil
	}
	return false, fmt.Errorf("flag value %q is not 0 or 1", s)
}

func classifyDiffs[C bitcoord.Coord[C]](s StepSpec, vals []string, diffs []diff.Diff[C], order classify.Order) (tiledb.Item[C], error) {
	switch s.Kind {
	case KindBit:
		return classify.XlatBit(diffs[0])
	case KindBitInv:
		return classify.XlatBitInv(diffs[0])
	case KindBitWide:
		return classify.XlatBitWide(diffs[0])
	case KindBitvec:
		return classify.XlatBitvec(diffs)
	case KindEnumBool:
		return classify.XlatBool(diffs[0], diffs[1])
	case KindEnumInt:
		values := make([]classify.IntValue[C], len(vals))
		for i, v := range vals {
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return tiledb.Item[C]{}, err
			}
			values[i] = classify.IntValue[C]{Value: uint32(n), Diff: diffs[i]}
		}
		return classify.XlatEnumInt(values)
	}

	values := make([]classify.Value[C], len(vals))
	for i, v := range vals {
		values[i] = classify.Value[C]{Name: v, Diff: diffs[i]}
	}
	opts := []classify.Option{classify.WithOrder(order)}
	if s.Kind == KindEnumDefault {
		opts = append(opts, classify.WithDefault(s.Default))
	}
	return classify.XlatEnum(values, opts...)
}
