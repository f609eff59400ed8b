package collect

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/OpenTraceLab/OpenTraceBits/pkg/bitcoord"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/classify"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/diff"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/samples"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/tiledb"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/violation"
)

// Collector couples the sample store a pass reads from with the database
// it writes to. The Extract* helpers consume samples and classify them;
// the Collect* helpers also insert the result.
type Collector[C bitcoord.Coord[C]] struct {
	Store *samples.Store[C]
	Db    *tiledb.Db[C]
	log   *zap.Logger
}

// NewCollector creates a collector. A nil logger discards output.
func NewCollector[C bitcoord.Coord[C]](store *samples.Store[C], db *tiledb.Db[C], log *zap.Logger) *Collector[C] {
	if log == nil {
		log = zap.NewNop()
	}
	return &Collector[C]{Store: store, Db: db, log: log}
}

// Logger returns the collector's logger.
func (c *Collector[C]) Logger() *zap.Logger { return c.log }

// GetDiff consumes one sample.
func (c *Collector[C]) GetDiff(tile, bel, attr, val string) (diff.Diff[C], error) {
	return c.Store.GetDiff(samples.Key{Tile: tile, Bel: bel, Attr: attr, Val: val})
}

// PeekDiff reads one sample without consuming it.
func (c *Collector[C]) PeekDiff(tile, bel, attr, val string) (diff.Diff[C], error) {
	return c.Store.PeekDiff(samples.Key{Tile: tile, Bel: bel, Attr: attr, Val: val})
}

// GetValues consumes one sample per enum value.
func (c *Collector[C]) GetValues(tile, bel, attr string, vals []string) ([]classify.Value[C], error) {
	out := make([]classify.Value[C], 0, len(vals))
	for _, v := range vals {
		d, err := c.GetDiff(tile, bel, attr, v)
		if err != nil {
			return nil, err
		}
		out = append(out, classify.Value[C]{Name: v, Diff: d})
	}
	return out, nil
}

// Item returns an already classified item.
func (c *Collector[C]) Item(tile, bel, attr string) (tiledb.Item[C], error) {
	return c.Db.Item(tile, bel, attr)
}

// Insert records an item in the database.
func (c *Collector[C]) Insert(tile, bel, attr string, item tiledb.Item[C]) error {
	if err := c.Db.Insert(tile, bel, attr, item); err != nil {
		return err
	}
	c.log.Debug("classified",
		zap.String("tile", tile), zap.String("bel", bel), zap.String("attr", attr),
		zap.Stringer("item", item))
	return nil
}

// InsertMisc records a raw pattern in the misc namespace.
func (c *Collector[C]) InsertMisc(key string, bits tiledb.Bits) error {
	return c.Db.InsertMisc(key, bits)
}

func subject(tile, bel, attr string) string {
	return tiledb.Key{Tile: tile, Bel: bel, Attr: attr}.String()
}

// ExtractBit classifies a flag from the sample of its on value.
func (c *Collector[C]) ExtractBit(tile, bel, attr, val string) (tiledb.Item[C], error) {
	d, err := c.GetDiff(tile, bel, attr, val)
	if err != nil {
		return tiledb.Item[C]{}, err
	}
	it, err := classify.XlatBit(d)
	return it, violation.Attach(err, subject(tile, bel, attr))
}

// CollectBit is ExtractBit followed by Insert.
func (c *Collector[C]) CollectBit(tile, bel, attr, val string) error {
	it, err := c.ExtractBit(tile, bel, attr, val)
	if err != nil {
		return err
	}
	return c.Insert(tile, bel, attr, it)
}

// ExtractBitInv classifies a flag from the sample of its off value.
func (c *Collector[C]) ExtractBitInv(tile, bel, attr, val string) (tiledb.Item[C], error) {
	d, err := c.GetDiff(tile, bel, attr, val)
	if err != nil {
		return tiledb.Item[C]{}, err
	}
	it, err := classify.XlatBitInv(d)
	return it, violation.Attach(err, subject(tile, bel, attr))
}

// CollectBitInv is ExtractBitInv followed by Insert.
func (c *Collector[C]) CollectBitInv(tile, bel, attr, val string) error {
	it, err := c.ExtractBitInv(tile, bel, attr, val)
	if err != nil {
		return err
	}
	return c.Insert(tile, bel, attr, it)
}

// ExtractBitWide classifies a flag driving several ganged bits.
func (c *Collector[C]) ExtractBitWide(tile, bel, attr, val string) (tiledb.Item[C], error) {
	d, err := c.GetDiff(tile, bel, attr, val)
	if err != nil {
		return tiledb.Item[C]{}, err
	}
	it, err := classify.XlatBitWide(d)
	return it, violation.Attach(err, subject(tile, bel, attr))
}

// CollectBitWide is ExtractBitWide followed by Insert.
func (c *Collector[C]) CollectBitWide(tile, bel, attr, val string) error {
	it, err := c.ExtractBitWide(tile, bel, attr, val)
	if err != nil {
		return err
	}
	return c.Insert(tile, bel, attr, it)
}

// ExtractEnum classifies an enum from the samples of vals.
func (c *Collector[C]) ExtractEnum(tile, bel, attr string, vals []string, opts ...classify.Option) (tiledb.Item[C], error) {
	values, err := c.GetValues(tile, bel, attr, vals)
	if err != nil {
		return tiledb.Item[C]{}, err
	}
	it, err := classify.XlatEnum(values, opts...)
	return it, violation.Attach(err, subject(tile, bel, attr))
}

// CollectEnum is ExtractEnum followed by Insert.
func (c *Collector[C]) CollectEnum(tile, bel, attr string, vals []string, opts ...classify.Option) error {
	it, err := c.ExtractEnum(tile, bel, attr, vals, opts...)
	if err != nil {
		return err
	}
	return c.Insert(tile, bel, attr, it)
}

// ExtractEnumDefault is ExtractEnum where def is the baseline value and
// has no sample of its own.
func (c *Collector[C]) ExtractEnumDefault(tile, bel, attr string, vals []string, def string, opts ...classify.Option) (tiledb.Item[C], error) {
	return c.ExtractEnum(tile, bel, attr, vals, append(opts, classify.WithDefault(def))...)
}

// CollectEnumDefault is ExtractEnumDefault followed by Insert.
func (c *Collector[C]) CollectEnumDefault(tile, bel, attr string, vals []string, def string, opts ...classify.Option) error {
	it, err := c.ExtractEnumDefault(tile, bel, attr, vals, def, opts...)
	if err != nil {
		return err
	}
	return c.Insert(tile, bel, attr, it)
}

// ExtractEnumBool classifies a two-valued attribute, one of whose values
// is the baseline, as a flag that is on for val1.
func (c *Collector[C]) ExtractEnumBool(tile, bel, attr, val0, val1 string) (tiledb.Item[C], error) {
	d0, err := c.GetDiff(tile, bel, attr, val0)
	if err != nil {
		return tiledb.Item[C]{}, err
	}
	d1, err := c.GetDiff(tile, bel, attr, val1)
	if err != nil {
		return tiledb.Item[C]{}, err
	}
	it, err := classify.XlatBool(d0, d1)
	return it, violation.Attach(err, subject(tile, bel, attr))
}

// CollectEnumBool is ExtractEnumBool followed by Insert.
func (c *Collector[C]) CollectEnumBool(tile, bel, attr, val0, val1 string) error {
	it, err := c.ExtractEnumBool(tile, bel, attr, val0, val1)
	if err != nil {
		return err
	}
	return c.Insert(tile, bel, attr, it)
}

// ExtractBitvec classifies a bit vector of the given width whose bit i is
// sampled under value "i".
func (c *Collector[C]) ExtractBitvec(tile, bel, attr string, width int) (tiledb.Item[C], error) {
	diffs := make([]diff.Diff[C], width)
	for i := range diffs {
		d, err := c.GetDiff(tile, bel, attr, strconv.Itoa(i))
		if err != nil {
			return tiledb.Item[C]{}, err
		}
		diffs[i] = d
	}
	it, err := classify.XlatBitvec(diffs)
	return it, violation.Attach(err, subject(tile, bel, attr))
}

// CollectBitvec is ExtractBitvec followed by Insert.
func (c *Collector[C]) CollectBitvec(tile, bel, attr string, width int) error {
	it, err := c.ExtractBitvec(tile, bel, attr, width)
	if err != nil {
		return err
	}
	return c.Insert(tile, bel, attr, it)
}

// ExtractEnumInt classifies a bit vector from samples of integer values,
// each recorded under its decimal value.
func (c *Collector[C]) ExtractEnumInt(tile, bel, attr string, vals []uint32) (tiledb.Item[C], error) {
	values := make([]classify.IntValue[C], 0, len(vals))
	for _, v := range vals {
		d, err := c.GetDiff(tile, bel, attr, strconv.FormatUint(uint64(v), 10))
		if err != nil {
			return tiledb.Item[C]{}, err
		}
		values = append(values, classify.IntValue[C]{Value: v, Diff: d})
	}
	it, err := classify.XlatEnumInt(values)
	return it, violation.Attach(err, subject(tile, bel, attr))
}

// CollectEnumInt is ExtractEnumInt followed by Insert.
func (c *Collector[C]) CollectEnumInt(tile, bel, attr string, vals []uint32) error {
	it, err := c.ExtractEnumInt(tile, bel, attr, vals)
	if err != nil {
		return err
	}
	return c.Insert(tile, bel, attr, it)
}

// Verify checks that a Diff was fully explained.
func (c *Collector[C]) Verify(d diff.Diff[C], tile, bel, attr, val string) error {
	if err := d.AssertEmpty(samples.Key{Tile: tile, Bel: bel, Attr: attr, Val: val}.String()); err != nil {
		return fmt.Errorf("collect: verify: %w", err)
	}
	return nil
}
