package bitcoord

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameBitOrder(t *testing.T) {
	bits := []FrameBit{
		{Rect: 1, Frame: 0, Bit: 0},
		{Rect: 0, Frame: 2, Bit: 1},
		{Rect: 0, Frame: 2, Bit: 0},
		{Rect: 0, Frame: 1, Bit: 9},
	}
	SortCoords(bits)
	assert.Equal(t, []FrameBit{
		{Rect: 0, Frame: 1, Bit: 9},
		{Rect: 0, Frame: 2, Bit: 0},
		{Rect: 0, Frame: 2, Bit: 1},
		{Rect: 1, Frame: 0, Bit: 0},
	}, bits)
}

func TestFuseBitCompare(t *testing.T) {
	a := FuseBit{Row: 3, Column: 4, Bit: 5}
	assert.Equal(t, 0, a.Compare(a))
	assert.Equal(t, -1, a.Compare(FuseBit{Row: 3, Column: 5, Bit: 0}))
	assert.Equal(t, 1, a.Compare(FuseBit{Row: 2, Column: 9, Bit: 9}))
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		in   string
		want FrameBit
	}{
		{"0.12.3", FrameBit{0, 12, 3}},
		{" 7.0.63 ", FrameBit{7, 0, 63}},
	}
	for _, tt := range tests {
		got, err := Frames.Parse(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
		back, err := Frames.Parse(got.String())
		require.NoError(t, err)
		assert.Equal(t, got, back)
	}
}

func TestParseRejects(t *testing.T) {
	for _, in := range []string{"", "1.2", "1.2.3.4", "a.b.c", "1.-2.3", "1..3"} {
		_, err := Fuses.Parse(in)
		assert.Error(t, err, in)
	}
}

func TestSortedLeavesInputAlone(t *testing.T) {
	in := []FuseBit{{Row: 2}, {Row: 1}}
	out := Sorted(in)
	assert.Equal(t, FuseBit{Row: 2}, in[0])
	assert.Equal(t, FuseBit{Row: 1}, out[0])
}
