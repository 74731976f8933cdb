package pmtiles

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlanCopyOpsCoalescesContiguousRuns(t *testing.T) {
	entries := []joinEntry{
		{entry: EntryV3{TileID: 0, Offset: 0, Length: 100, RunLength: 1}, inputIdx: 0, inputOffset: 0},
		{entry: EntryV3{TileID: 1, Offset: 100, Length: 100, RunLength: 1}, inputIdx: 0, inputOffset: 100},
	}
	ops := planCopyOps(entries, 1)
	assert.Len(t, ops, 1)
	assert.EqualValues(t, 200, ops[0].length)
}

func TestPlanCopyOpsSplitsAcrossInputs(t *testing.T) {
	entries := []joinEntry{
		{entry: EntryV3{TileID: 0, Offset: 0, Length: 100, RunLength: 1}, inputIdx: 0, inputOffset: 100},
		{entry: EntryV3{TileID: 1, Offset: 0, Length: 100, RunLength: 1}, inputIdx: 1, inputOffset: 200},
	}
	ops := planCopyOps(entries, 2)
	assert.Len(t, ops, 2)
}

func TestPlanCopyOpsSkipsBackReferences(t *testing.T) {
	entries := []joinEntry{
		{entry: EntryV3{TileID: 0, Offset: 0, Length: 100, RunLength: 1}, inputIdx: 0, inputOffset: 0},
		{entry: EntryV3{TileID: 1, Offset: 100, Length: 100, RunLength: 1}, inputIdx: 0, inputOffset: 100},
		{entry: EntryV3{TileID: 2, Offset: 0, Length: 100, RunLength: 1}, inputIdx: 0, inputOffset: 0},
	}
	ops := planCopyOps(entries, 1)
	assert.Len(t, ops, 1)
}

func TestJoinZoomBoundsSpansFirstAndLastEntry(t *testing.T) {
	entries := []joinEntry{
		{entry: EntryV3{TileID: ZxyToID(0, 0, 0), Offset: 0, Length: 100, RunLength: 1}},
		{entry: EntryV3{TileID: ZxyToID(3, 2, 2), Offset: 100, Length: 100, RunLength: 1}},
	}
	minZ, maxZ := joinZoomBounds(entries)
	assert.EqualValues(t, 0, minZ)
	assert.EqualValues(t, 3, maxZ)
}

func TestRemapJoinEntriesDedupsRepeatedOffset(t *testing.T) {
	entries := []joinEntry{
		{entry: EntryV3{TileID: 0, Length: 100, RunLength: 1}, inputIdx: 0, inputOffset: 0},
		{entry: EntryV3{TileID: 1, Length: 100, RunLength: 1}, inputIdx: 0, inputOffset: 0},
	}
	addressed, contents, length, err := remapJoinEntries(entries, 1)
	assert.NoError(t, err)
	assert.EqualValues(t, 2, addressed)
	assert.EqualValues(t, 1, contents)
	assert.EqualValues(t, 100, length)
	assert.Equal(t, entries[0].entry.Offset, entries[1].entry.Offset)
}

func TestJoinBoundsTakesUnionAcrossHeaders(t *testing.T) {
	headers := []HeaderV3{
		{MinLonE7: -100, MinLatE7: -50, MaxLonE7: 0, MaxLatE7: 0},
		{MinLonE7: -10, MinLatE7: -10, MaxLonE7: 100, MaxLatE7: 50},
	}
	minLon, minLat, maxLon, maxLat := joinBounds(headers)
	assert.EqualValues(t, -100, minLon)
	assert.EqualValues(t, -50, minLat)
	assert.EqualValues(t, 100, maxLon)
	assert.EqualValues(t, 50, maxLat)
}
