package tilematrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlipYIsItsOwnInverse(t *testing.T) {
	z := Zxy{Z: 4, X: 3, Y: 2}
	flipped := FlipY(z)
	assert.NotEqual(t, z.Y, flipped.Y)
	assert.Equal(t, z, FlipY(flipped))
}

func TestToFromMaptileRoundTrip(t *testing.T) {
	z := Zxy{Z: 6, X: 10, Y: 20}
	assert.Equal(t, z, FromMaptile(ToMaptile(z)))
}

func TestMatchesSameZoom(t *testing.T) {
	assert.True(t, Matches(4, 1, 1, 3, 3, Zxy{Z: 4, X: 2, Y: 2}))
	assert.False(t, Matches(4, 1, 1, 3, 3, Zxy{Z: 4, X: 5, Y: 5}))
}

func TestMatchesCoarserCandidate(t *testing.T) {
	// candidate at z=3 (2,2) covers z=4 tiles [4-5]x[4-5], inside the box [4-7]x[4-7]
	assert.True(t, Matches(4, 4, 4, 7, 7, Zxy{Z: 3, X: 2, Y: 2}))
	assert.False(t, Matches(4, 4, 4, 7, 7, Zxy{Z: 3, X: 0, Y: 0}))
}

func TestMatchesFinerCandidate(t *testing.T) {
	// candidate at z=5, a child of z=4 tile (2,2), box is [2,2]-[2,2] at z4
	assert.True(t, Matches(4, 2, 2, 2, 2, Zxy{Z: 5, X: 4, Y: 5}))
	assert.False(t, Matches(4, 2, 2, 2, 2, Zxy{Z: 5, X: 10, Y: 10}))
}

func TestTileRangeContainsAndCount(t *testing.T) {
	r := TileRange{Z: 4, MinX: 1, MinY: 1, MaxX: 3, MaxY: 2}
	assert.True(t, r.Contains(Zxy{Z: 4, X: 2, Y: 1}))
	assert.False(t, r.Contains(Zxy{Z: 4, X: 4, Y: 1}))
	assert.EqualValues(t, 6, r.Count())
	assert.Len(t, r.TileIDs(), 6)
}

func TestSparseSetAddContainsEach(t *testing.T) {
	s := NewSparseSet()
	s.Add(Zxy{Z: 2, X: 1, Y: 1})
	s.Add(Zxy{Z: 2, X: 2, Y: 2})
	assert.True(t, s.Contains(Zxy{Z: 2, X: 1, Y: 1}))
	assert.False(t, s.Contains(Zxy{Z: 2, X: 3, Y: 3}))
	assert.EqualValues(t, 2, s.Len())

	var visited []Zxy
	s.Each(func(z Zxy) { visited = append(visited, z) })
	assert.Len(t, visited, 2)
}

func TestSparseSetWithAncestors(t *testing.T) {
	s := NewSparseSet()
	s.Add(Zxy{Z: 3, X: 4, Y: 4})

	withAncestors := s.WithAncestors(0)
	assert.True(t, withAncestors.Contains(Zxy{Z: 3, X: 4, Y: 4}))
	assert.True(t, withAncestors.Contains(Zxy{Z: 2, X: 2, Y: 2}))
	assert.True(t, withAncestors.Contains(Zxy{Z: 0, X: 0, Y: 0}))
}
