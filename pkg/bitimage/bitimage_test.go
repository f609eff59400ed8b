package bitimage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenTraceLab/OpenTraceBits/pkg/bitcoord"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/diff"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/samples"
)

type fb = bitcoord.FrameBit

var frames = FrameLayout{Rects: 2, FramesPerRect: 4, BitsPerFrame: 8}

func TestFromBytes(t *testing.T) {
	im := FromBytes([]byte{0x01, 0x80})
	assert.Equal(t, uint32(16), im.Size())
	assert.Equal(t, []uint32{0, 15}, im.Indices())
	assert.True(t, im.Get(0))
	assert.False(t, im.Get(1))
	assert.Equal(t, []byte{0x01, 0x80}, im.Bytes())
}

func TestFromIndices(t *testing.T) {
	im, err := FromIndices(10, []uint32{3, 9})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), im.Count())
	assert.Equal(t, []byte{0x08, 0x02}, im.Bytes())

	_, err = FromIndices(10, []uint32{10})
	assert.Error(t, err)
}

func TestFrameLayout(t *testing.T) {
	assert.Equal(t, uint32(64), frames.Size())

	c, err := frames.Coord(45)
	require.NoError(t, err)
	assert.Equal(t, fb{Rect: 1, Frame: 1, Bit: 5}, c)

	idx, err := frames.Index(c)
	require.NoError(t, err)
	assert.Equal(t, uint32(45), idx)

	_, err = frames.Coord(64)
	assert.Error(t, err)
	_, err = frames.Index(fb{Rect: 0, Frame: 4, Bit: 0})
	assert.Error(t, err)
}

func TestFuseLayout(t *testing.T) {
	l := FuseLayout{Rows: 3, Columns: 5, BitsPerCell: 2}
	for idx := uint32(0); idx < l.Size(); idx++ {
		c, err := l.Coord(idx)
		require.NoError(t, err)
		back, err := l.Index(c)
		require.NoError(t, err)
		require.Equal(t, idx, back, "coord %s", c)
	}
	c, err := l.Coord(13)
	require.NoError(t, err)
	assert.Equal(t, bitcoord.FuseBit{Row: 1, Column: 1, Bit: 1}, c)
}

func TestCompare(t *testing.T) {
	base, err := FromIndices(64, []uint32{0, 9})
	require.NoError(t, err)
	changed, err := FromIndices(64, []uint32{0, 45})
	require.NoError(t, err)

	d, err := Compare[fb](base, changed, frames)
	require.NoError(t, err)

	want := diff.Of(map[fb]bool{
		{Rect: 0, Frame: 1, Bit: 1}: false,
		{Rect: 1, Frame: 1, Bit: 5}: true,
	})
	assert.True(t, d.Equal(want), "got %s", d)

	same, err := Compare[fb](base, base, frames)
	require.NoError(t, err)
	assert.True(t, same.IsEmpty())
}

func TestCompareErrors(t *testing.T) {
	_, err := Compare[fb](New(64), New(72), frames)
	assert.Error(t, err)

	// Bit 70 lies past the layout.
	big, err := FromIndices(72, []uint32{70})
	require.NoError(t, err)
	_, err = Compare[fb](New(72), big, frames)
	assert.Error(t, err)
}

func TestPatch(t *testing.T) {
	base, err := FromIndices(64, []uint32{9})
	require.NoError(t, err)
	d := diff.Of(map[fb]bool{{Rect: 0, Frame: 1, Bit: 1}: false, {Rect: 1, Frame: 0, Bit: 0}: true})

	out, err := Patch[fb](base, d, frames)
	require.NoError(t, err)
	assert.Equal(t, []uint32{32}, out.Indices())
	assert.Equal(t, []uint32{9}, base.Indices(), "base must not change")

	back, err := Compare[fb](base, out, frames)
	require.NoError(t, err)
	assert.True(t, back.Equal(d))
}

func TestSession(t *testing.T) {
	store := samples.NewStore[fb]()
	base := New(64)
	s, err := NewSession[fb](frames, base, store)
	require.NoError(t, err)

	img, err := FromIndices(64, []uint32{3})
	require.NoError(t, err)
	key := samples.Key{Tile: "CLB", Bel: "SLICE0", Attr: "FFEN", Val: "1"}
	d, err := s.Record(key, img)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Len())

	got, err := store.GetDiff(key)
	require.NoError(t, err)
	assert.True(t, got.Equal(d))

	// A different image under the same key conflicts.
	other, err := FromIndices(64, []uint32{4})
	require.NoError(t, err)
	_, err = s.Record(key, other)
	assert.Error(t, err)

	_, err = NewSession[fb](frames, New(8), store)
	assert.Error(t, err)
}
