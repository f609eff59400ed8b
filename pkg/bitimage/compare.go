package bitimage

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/OpenTraceLab/OpenTraceBits/pkg/bitcoord"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/diff"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/samples"
)

// Compare returns the bits where changed differs from base, each with its
// value in changed.
func Compare[C bitcoord.Coord[C]](base, changed *Image, layout Layout[C]) (diff.Diff[C], error) {
	if base.size != changed.size {
		return diff.Diff[C]{}, fmt.Errorf("bitimage: image sizes differ: %d and %d bits", base.size, changed.size)
	}
	d := diff.New[C]()
	it := roaring.Xor(base.bm, changed.bm).Iterator()
	for it.HasNext() {
		idx := it.Next()
		c, err := layout.Coord(idx)
		if err != nil {
			return diff.Diff[C]{}, err
		}
		d.Set(c, changed.bm.Contains(idx))
	}
	return d, nil
}

// Patch applies a Diff to base and returns the resulting image.
func Patch[C bitcoord.Coord[C]](base *Image, d diff.Diff[C], layout Layout[C]) (*Image, error) {
	out := base.Clone()
	for _, c := range d.Coords() {
		idx, err := layout.Index(c)
		if err != nil {
			return nil, err
		}
		v, _ := d.Get(c)
		if err := out.Set(idx, v); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Session compares sampled images against one baseline and records the
// differences in a store.
type Session[C bitcoord.Coord[C]] struct {
	layout Layout[C]
	base   *Image
	store  *samples.Store[C]
}

// NewSession starts a session. The baseline must cover the layout.
func NewSession[C bitcoord.Coord[C]](layout Layout[C], base *Image, store *samples.Store[C]) (*Session[C], error) {
	if base.size < layout.Size() {
		return nil, fmt.Errorf("bitimage: baseline of %d bits is shorter than layout of %d", base.size, layout.Size())
	}
	return &Session[C]{layout: layout, base: base, store: store}, nil
}

// Record compares img with the baseline and stores the Diff under key.
func (s *Session[C]) Record(key samples.Key, img *Image) (diff.Diff[C], error) {
	d, err := Compare(s.base, img, s.layout)
	if err != nil {
		return diff.Diff[C]{}, fmt.Errorf("bitimage: %s: %w", key, err)
	}
	if err := s.store.Insert(key, d); err != nil {
		return diff.Diff[C]{}, err
	}
	return d, nil
}
