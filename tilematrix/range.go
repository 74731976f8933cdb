package tilematrix

import (
	"github.com/RoaringBitmap/roaring/roaring64"

	"github.com/protomaps/pmtiles-go/pmtiles"
)

// TileRange describes a contiguous rectangular set of tiles at a single
// zoom level: [MinX,MaxX] x [MinY,MaxY].
type TileRange struct {
	Z    uint8
	MinX uint32
	MinY uint32
	MaxX uint32
	MaxY uint32
}

// Contains reports whether z falls inside the rectangle.
func (r TileRange) Contains(z Zxy) bool {
	return z.Z == r.Z && z.X >= r.MinX && z.X <= r.MaxX && z.Y >= r.MinY && z.Y <= r.MaxY
}

// Count returns the number of tiles the rectangle covers.
func (r TileRange) Count() uint64 {
	return uint64(r.MaxX-r.MinX+1) * uint64(r.MaxY-r.MinY+1)
}

// TileIDs returns the Hilbert tile ID of every tile in the rectangle, in
// no particular order. Large ranges should prefer SparseSet to avoid
// materializing every ID at once.
func (r TileRange) TileIDs() []uint64 {
	ids := make([]uint64, 0, r.Count())
	for x := r.MinX; x <= r.MaxX; x++ {
		for y := r.MinY; y <= r.MaxY; y++ {
			ids = append(ids, pmtiles.ZxyToID(r.Z, x, y))
		}
	}
	return ids
}

// SparseSet is an arbitrary, possibly non-contiguous and multi-zoom set
// of tiles addressed by Hilbert ID, backed by a roaring64 bitmap for
// compact storage and fast membership/range queries over large
// collections (e.g. every tile touched by a bulk delete or extract).
type SparseSet struct {
	bitmap *roaring64.Bitmap
}

// NewSparseSet returns an empty SparseSet.
func NewSparseSet() *SparseSet {
	return &SparseSet{bitmap: roaring64.New()}
}

// Add inserts a tile into the set.
func (s *SparseSet) Add(z Zxy) {
	s.bitmap.Add(pmtiles.ZxyToID(z.Z, z.X, z.Y))
}

// AddRange inserts every tile of a TileRange into the set.
func (s *SparseSet) AddRange(r TileRange) {
	for x := r.MinX; x <= r.MaxX; x++ {
		for y := r.MinY; y <= r.MaxY; y++ {
			s.bitmap.Add(pmtiles.ZxyToID(r.Z, x, y))
		}
	}
}

// Contains reports whether a tile is a member of the set.
func (s *SparseSet) Contains(z Zxy) bool {
	return s.bitmap.Contains(pmtiles.ZxyToID(z.Z, z.X, z.Y))
}

// Len returns the number of tiles in the set.
func (s *SparseSet) Len() uint64 {
	return s.bitmap.GetCardinality()
}

// Each calls fn once per tile in the set, in Hilbert ID order.
func (s *SparseSet) Each(fn func(z Zxy)) {
	it := s.bitmap.Iterator()
	for it.HasNext() {
		z, x, y := pmtiles.IDToZxy(it.Next())
		fn(Zxy{Z: z, X: x, Y: y})
	}
}

// WithAncestors returns a new set containing every tile in s plus every
// ancestor of each tile down to minZoom, grounded on the teacher's
// bitmap.go generalization passes that roll a leaf tile set up the
// pyramid for overview generation.
func (s *SparseSet) WithAncestors(minZoom uint8) *SparseSet {
	out := roaring64.New()
	out.Or(s.bitmap)
	toIterate := s.bitmap
	for {
		next := roaring64.New()
		it := toIterate.Iterator()
		any := false
		for it.HasNext() {
			id := it.Next()
			z, _, _ := pmtiles.IDToZxy(id)
			if z <= minZoom {
				continue
			}
			parent := pmtiles.ParentID(id)
			if !out.Contains(parent) {
				next.Add(parent)
				any = true
			}
		}
		if !any {
			break
		}
		out.Or(next)
		toIterate = next
	}
	return &SparseSet{bitmap: out}
}
