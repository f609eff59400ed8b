// Package bitimage compares raw configuration images and records the
// differences as samples.
//
// An Image is the set of asserted bit indices of one bitstream or fuse
// map, held in a roaring bitmap. A Layout maps the linear index space of
// a device onto its coordinates.
package bitimage

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

// Image is a configuration image of a fixed number of bits.
type Image struct {
	bm   *roaring.Bitmap
	size uint32
}

// New returns an all-zero image of size bits.
func New(size uint32) *Image {
	return &Image{bm: roaring.New(), size: size}
}

// FromBytes unpacks a byte image, least significant bit of each byte first.
func FromBytes(data []byte) *Image {
	im := New(uint32(len(data)) * 8)
	for i, b := range data {
		for j := 0; j < 8; j++ {
			if b&(1<<j) != 0 {
				im.bm.Add(uint32(i)*8 + uint32(j))
			}
		}
	}
	return im
}

// FromIndices builds an image with the listed bits set.
func FromIndices(size uint32, idx []uint32) (*Image, error) {
	for _, i := range idx {
		if i >= size {
			return nil, fmt.Errorf("bitimage: index %d outside image of %d bits", i, size)
		}
	}
	im := New(size)
	im.bm.AddMany(idx)
	return im, nil
}

// Size returns the image length in bits.
func (im *Image) Size() uint32 { return im.size }

// Count returns the number of set bits.
func (im *Image) Count() uint64 { return im.bm.GetCardinality() }

// Get reports whether bit i is set.
func (im *Image) Get(i uint32) bool { return im.bm.Contains(i) }

// Set changes bit i.
func (im *Image) Set(i uint32, v bool) error {
	if i >= im.size {
		return fmt.Errorf("bitimage: index %d outside image of %d bits", i, im.size)
	}
	if v {
		im.bm.Add(i)
	} else {
		im.bm.Remove(i)
	}
	return nil
}

// Indices returns the set bits in ascending order.
func (im *Image) Indices() []uint32 { return im.bm.ToArray() }

// Bytes packs the image, least significant bit first.
func (im *Image) Bytes() []byte {
	out := make([]byte, (im.size+7)/8)
	it := im.bm.Iterator()
	for it.HasNext() {
		i := it.Next()
		out[i/8] |= 1 << (i % 8)
	}
	return out
}

// Clone returns an independent copy.
func (im *Image) Clone() *Image {
	return &Image{bm: im.bm.Clone(), size: im.size}
}

// Equal reports whether both images have the same size and bits.
func (im *Image) Equal(o *Image) bool {
	return im.size == o.size && im.bm.Equals(o.bm)
}
