package collect

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/OpenTraceLab/OpenTraceBits/pkg/bitcoord"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/classify"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/diff"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/samples"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/tiledb"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/violation"
)

type fr = bitcoord.FrameBit

func bit(n uint32) fr { return fr{Rect: 2, Frame: 17, Bit: n} }

func skey(attr, val string) samples.Key {
	return samples.Key{Tile: "IOB", Bel: "IOB0", Attr: attr, Val: val}
}

func ikey(attr string) tiledb.Key {
	return tiledb.Key{Tile: "IOB", Bel: "IOB0", Attr: attr}
}

var driveValues = []string{"4", "8", "12"}

func driveStore(t *testing.T) *samples.Store[fr] {
	t.Helper()
	s := samples.NewStore[fr]()
	for i, v := range driveValues {
		require.NoError(t, s.Insert(skey("DRIVE", v), diff.Of(map[fr]bool{bit(uint32(i)): true})))
	}
	return s
}

func drivePlan() *Plan[fr] {
	var peeks, gets []Read
	for _, v := range driveValues {
		peeks = append(peeks, Read{Key: skey("DRIVE", v), Peek: true})
		gets = append(gets, Read{Key: skey("DRIVE", v)})
	}
	return NewPlan[fr]().Add(
		Step[fr]{
			Name:   "drive",
			Reads:  peeks,
			Writes: []tiledb.Key{ikey("DRIVE")},
			Run: func(c *Collector[fr]) error {
				var vals []classify.Value[fr]
				for _, v := range driveValues {
					d, err := c.PeekDiff("IOB", "IOB0", "DRIVE", v)
					if err != nil {
						return err
					}
					vals = append(vals, classify.Value[fr]{Name: v, Diff: d})
				}
				it, err := classify.XlatEnum(vals, classify.WithDefault("NONE"))
				if err != nil {
					return err
				}
				return c.Insert("IOB", "IOB0", "DRIVE", it)
			},
		},
		Step[fr]{
			Name:  "drive-verify",
			Reads: gets,
			Needs: []tiledb.Key{ikey("DRIVE")},
			Run: func(c *Collector[fr]) error {
				drive, err := c.Item("IOB", "IOB0", "DRIVE")
				if err != nil {
					return err
				}
				for _, v := range driveValues {
					d, err := c.GetDiff("IOB", "IOB0", "DRIVE", v)
					if err != nil {
						return err
					}
					if err := d.ApplyEnumDiff(drive, v, "NONE"); err != nil {
						return err
					}
					if err := c.Verify(d, "IOB", "IOB0", "DRIVE", v); err != nil {
						return err
					}
				}
				return nil
			},
		},
	)
}

func TestDriveScenario(t *testing.T) {
	store := driveStore(t)
	db, report, err := drivePlan().Run(store, zaptest.NewLogger(t))
	require.NoError(t, err)

	drive, err := db.Item("IOB", "IOB0", "DRIVE")
	require.NoError(t, err)
	assert.Equal(t, tiledb.KindEnum, drive.Kind)
	assert.Equal(t, 3, drive.Width())
	assert.Equal(t, "000", drive.Values["NONE"].String())
	assert.Equal(t, "NONE", drive.Default)

	assert.Equal(t, 2, report.Steps)
	assert.Equal(t, 1, report.Items)
	assert.Equal(t, 3, report.Consumed)
	assert.Empty(t, report.Leftover)
}

func TestLeftoversAreReported(t *testing.T) {
	store := driveStore(t)
	require.NoError(t, store.Insert(skey("SLEW", "FAST"), diff.Of(map[fr]bool{bit(9): true})))

	_, report, err := drivePlan().Run(store, nil)
	require.NoError(t, err)
	assert.Equal(t, []samples.Key{skey("SLEW", "FAST")}, report.Leftover)
}

func TestDependencyChain(t *testing.T) {
	// MODE is an enum; the FFEN sample was taken in mode FF against a
	// baseline in mode LATCH, so its Diff also holds the MODE bits.
	store := samples.NewStore[fr]()
	require.NoError(t, store.Insert(skey("MODE", "FF"), diff.Of(map[fr]bool{bit(0): true})))
	require.NoError(t, store.Insert(skey("FFEN", "1"), diff.Of(map[fr]bool{bit(0): true, bit(5): true})))

	plan := NewPlan[fr]().Add(
		Step[fr]{
			Name:   "mode",
			Reads:  []Read{{Key: skey("MODE", "FF")}},
			Writes: []tiledb.Key{ikey("MODE")},
			Run: func(c *Collector[fr]) error {
				return c.CollectEnumDefault("IOB", "IOB0", "MODE", []string{"FF"}, "LATCH")
			},
		},
		Step[fr]{
			Name:   "ffen",
			Reads:  []Read{{Key: skey("FFEN", "1")}},
			Needs:  []tiledb.Key{ikey("MODE")},
			Writes: []tiledb.Key{ikey("FFEN")},
			Run: func(c *Collector[fr]) error {
				mode, err := c.Item("IOB", "IOB0", "MODE")
				if err != nil {
					return err
				}
				d, err := c.GetDiff("IOB", "IOB0", "FFEN", "1")
				if err != nil {
					return err
				}
				if err := d.ApplyEnumDiff(mode, "FF", "LATCH"); err != nil {
					return err
				}
				it, err := classify.XlatBit(d)
				if err != nil {
					return err
				}
				return c.Insert("IOB", "IOB0", "FFEN", it)
			},
		},
	)
	db, _, err := plan.Run(store, nil)
	require.NoError(t, err)
	ffen, err := db.Item("IOB", "IOB0", "FFEN")
	require.NoError(t, err)
	assert.Equal(t, []fr{bit(5)}, ffen.Bits)
}

func TestFailureReturnsNoDb(t *testing.T) {
	store := samples.NewStore[fr]()
	require.NoError(t, store.Insert(skey("INV", "1"), diff.Of(map[fr]bool{bit(0): true, bit(1): true})))

	plan := NewPlan[fr]().Add(Step[fr]{
		Name:   "inv",
		Reads:  []Read{{Key: skey("INV", "1")}},
		Writes: []tiledb.Key{ikey("INV")},
		Run:    func(c *Collector[fr]) error { return c.CollectBit("IOB", "IOB0", "INV", "1") },
	})
	db, report, err := plan.Run(store, nil)
	require.Error(t, err)
	assert.Nil(t, db)
	assert.Nil(t, report)
	assert.True(t, errors.Is(err, violation.ErrShape))
	assert.Contains(t, err.Error(), `step "inv"`)
	assert.Contains(t, err.Error(), "IOB:IOB0:INV")
}

func TestDeclaredWriteMissing(t *testing.T) {
	plan := NewPlan[fr]().Add(Step[fr]{
		Name:   "lazy",
		Writes: []tiledb.Key{ikey("X")},
		Run:    func(*Collector[fr]) error { return nil },
	})
	_, _, err := plan.Run(samples.NewStore[fr](), nil)
	assert.True(t, errors.Is(err, violation.ErrMissing))
}

func TestValidate(t *testing.T) {
	noop := func(*Collector[fr]) error { return nil }
	tests := []struct {
		name  string
		steps []Step[fr]
		want  error
	}{
		{
			name:  "need before write",
			steps: []Step[fr]{{Name: "a", Needs: []tiledb.Key{ikey("M")}, Run: noop}, {Name: "b", Writes: []tiledb.Key{ikey("M")}, Run: noop}},
			want:  violation.ErrMissing,
		},
		{
			name:  "double write",
			steps: []Step[fr]{{Name: "a", Writes: []tiledb.Key{ikey("M")}, Run: noop}, {Name: "b", Writes: []tiledb.Key{ikey("M")}, Run: noop}},
			want:  violation.ErrConsistency,
		},
		{
			name:  "double consume",
			steps: []Step[fr]{{Name: "a", Reads: []Read{{Key: skey("M", "1")}}, Run: noop}, {Name: "b", Reads: []Read{{Key: skey("M", "1")}}, Run: noop}},
			want:  violation.ErrExhausted,
		},
		{
			name:  "peek after consume",
			steps: []Step[fr]{{Name: "a", Reads: []Read{{Key: skey("M", "1")}}, Run: noop}, {Name: "b", Reads: []Read{{Key: skey("M", "1"), Peek: true}}, Run: noop}},
			want:  violation.ErrExhausted,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewPlan[fr]().Add(tt.steps...).Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), err.Error())
		})
	}

	require.NoError(t, NewPlan[fr]().Add(
		Step[fr]{Name: "a", Reads: []Read{{Key: skey("M", "1"), Peek: true}}, Run: noop},
		Step[fr]{Name: "b", Reads: []Read{{Key: skey("M", "1")}}, Run: noop},
	).Validate(), "peek then consume is fine")

	assert.Error(t, NewPlan[fr]().Add(Step[fr]{Name: "a"}).Validate(), "no Run")
	assert.Error(t, NewPlan[fr]().Add(Step[fr]{Name: "a", Run: noop}, Step[fr]{Name: "a", Run: noop}).Validate(), "duplicate name")
}

func TestCollectorHelpers(t *testing.T) {
	store := samples.NewStore[fr]()
	require.NoError(t, store.Insert(skey("BUS", "0"), diff.Of(map[fr]bool{bit(10): true})))
	require.NoError(t, store.Insert(skey("BUS", "1"), diff.Of(map[fr]bool{bit(11): false})))
	require.NoError(t, store.Insert(skey("PULL", "KEEPER"), diff.New[fr]()))
	require.NoError(t, store.Insert(skey("PULL", "UP"), diff.Of(map[fr]bool{bit(12): true})))
	require.NoError(t, store.Insert(skey("WIDE", "1"), diff.Of(map[fr]bool{bit(13): true, bit(14): true})))
	require.NoError(t, store.Insert(skey("DLY", "0"), diff.New[fr]()))
	require.NoError(t, store.Insert(skey("DLY", "1"), diff.Of(map[fr]bool{bit(20): true})))
	require.NoError(t, store.Insert(skey("DLY", "2"), diff.Of(map[fr]bool{bit(21): true})))

	c := NewCollector(store, tiledb.New[fr](), nil)
	require.NoError(t, c.CollectBitvec("IOB", "IOB0", "BUS", 2))
	require.NoError(t, c.CollectEnumBool("IOB", "IOB0", "PULL", "KEEPER", "UP"))
	require.NoError(t, c.CollectBitWide("IOB", "IOB0", "WIDE", "1"))
	require.NoError(t, c.CollectEnumInt("IOB", "IOB0", "DLY", []uint32{0, 1, 2}))

	bus, err := c.Item("IOB", "IOB0", "BUS")
	require.NoError(t, err)
	assert.Equal(t, "01", bus.Invert.String())
	dly, err := c.Item("IOB", "IOB0", "DLY")
	require.NoError(t, err)
	assert.Equal(t, []fr{bit(20), bit(21)}, dly.Bits)
	assert.Empty(t, store.Remaining())
	assert.Equal(t, 4, c.Db.Len())
}
