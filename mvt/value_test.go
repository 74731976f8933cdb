package mvt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyValueTablesDedupesRepeatedEntries(t *testing.T) {
	tables := newKeyValueTables()

	tags1 := tables.tags(map[string]interface{}{"name": "a", "kind": "city"}, []string{"kind", "name"})
	tags2 := tables.tags(map[string]interface{}{"name": "b", "kind": "city"}, []string{"kind", "name"})

	require.Len(t, tags1, 4)
	require.Len(t, tags2, 4)

	// "kind" key and "city" value should be shared across both features.
	assert.Equal(t, tags1[0], tags2[0]) // kind key index
	assert.Equal(t, tags1[1], tags2[1]) // "city" value index

	assert.Len(t, tables.keys, 2)
	assert.Len(t, tables.values, 3) // "city", "a", "b"
}

func TestValueKeyDistinguishesTypes(t *testing.T) {
	assert.NotEqual(t, valueKey(int64(1)), valueKey(uint64(1)))
	assert.NotEqual(t, valueKey(float32(1)), valueKey(float64(1)))
	assert.NotEqual(t, valueKey("1"), valueKey(int64(1)))
	assert.Equal(t, valueKey(int64(5)), valueKey(int64(5)))
}

func TestEncodeDecodeValueRoundTrip(t *testing.T) {
	cases := []interface{}{
		"hello",
		true,
		false,
		float32(1.5),
		float64(2.25),
		int64(-42),
		uint64(42),
	}
	for _, v := range cases {
		data := encodeValue(v)
		decoded, err := decodeValue(data)
		require.NoError(t, err)
		assert.Equal(t, v, decoded)
	}
}
