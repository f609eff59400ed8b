package bitimage

import (
	"fmt"

	"github.com/OpenTraceLab/OpenTraceBits/pkg/bitcoord"
)

// Layout maps linear image indices to device coordinates.
type Layout[C bitcoord.Coord[C]] interface {
	Size() uint32
	Coord(idx uint32) (C, error)
	Index(c C) (uint32, error)
}

// FrameLayout is a frame-addressed bitstream: Rects blocks of
// FramesPerRect frames of BitsPerFrame bits, stored frame after frame.
type FrameLayout struct {
	Rects         uint32
	FramesPerRect uint32
	BitsPerFrame  uint32
}

func (l FrameLayout) Size() uint32 { return l.Rects * l.FramesPerRect * l.BitsPerFrame }

func (l FrameLayout) Coord(idx uint32) (bitcoord.FrameBit, error) {
	if idx >= l.Size() {
		return bitcoord.FrameBit{}, fmt.Errorf("bitimage: index %d outside frame layout of %d bits", idx, l.Size())
	}
	perRect := l.FramesPerRect * l.BitsPerFrame
	return bitcoord.FrameBit{
		Rect:  idx / perRect,
		Frame: idx % perRect / l.BitsPerFrame,
		Bit:   idx % l.BitsPerFrame,
	}, nil
}

func (l FrameLayout) Index(c bitcoord.FrameBit) (uint32, error) {
	if c.Rect >= l.Rects || c.Frame >= l.FramesPerRect || c.Bit >= l.BitsPerFrame {
		return 0, fmt.Errorf("bitimage: %s outside frame layout", c)
	}
	return (c.Rect*l.FramesPerRect+c.Frame)*l.BitsPerFrame + c.Bit, nil
}

// FuseLayout is a CPLD fuse array of Rows rows of Columns cells, each
// BitsPerCell fuses wide, stored row-major.
type FuseLayout struct {
	Rows        uint32
	Columns     uint32
	BitsPerCell uint32
}

func (l FuseLayout) Size() uint32 { return l.Rows * l.Columns * l.BitsPerCell }

func (l FuseLayout) Coord(idx uint32) (bitcoord.FuseBit, error) {
	if idx >= l.Size() {
		return bitcoord.FuseBit{}, fmt.Errorf("bitimage: index %d outside fuse layout of %d bits", idx, l.Size())
	}
	perRow := l.Columns * l.BitsPerCell
	return bitcoord.FuseBit{
		Row:    idx / perRow,
		Column: idx % perRow / l.BitsPerCell,
		Bit:    idx % l.BitsPerCell,
	}, nil
}

func (l FuseLayout) Index(c bitcoord.FuseBit) (uint32, error) {
	if c.Row >= l.Rows || c.Column >= l.Columns || c.Bit >= l.BitsPerCell {
		return 0, fmt.Errorf("bitimage: %s outside fuse layout", c)
	}
	return (c.Row*l.Columns+c.Column)*l.BitsPerCell + c.Bit, nil
}
