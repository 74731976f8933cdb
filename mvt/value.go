package mvt

import "fmt"

// valueKey makes a Value comparable so it can key a map for dedup-table
// lookups; two properties with equal type and content must produce an
// identical key regardless of Go's own interface equality rules for
// floats/ints of different widths.
func valueKey(v interface{}) string {
	switch t := v.(type) {
	case string:
		return "s:" + t
	case bool:
		if t {
			return "b:1"
		}
		return "b:0"
	case float32:
		return fmt.Sprintf("f:%v", t)
	case float64:
		return fmt.Sprintf("d:%v", t)
	case int:
		return fmt.Sprintf("i:%v", t)
	case int64:
		return fmt.Sprintf("i:%v", t)
	case uint64:
		return fmt.Sprintf("u:%v", t)
	default:
		return fmt.Sprintf("?:%v", t)
	}
}

// keyValueTables builds the ordered key and value dedup tables a layer's
// tags reference by index. Its tags method turns one feature's properties
// into tag index pairs in [keyIdx0, valIdx0, keyIdx1, valIdx1, ...] form,
// matching the MVT tags wire encoding.
type keyValueTables struct {
	keys       []string
	keyIndex   map[string]uint32
	values     []interface{}
	valueIndex map[string]uint32
}

func newKeyValueTables() *keyValueTables {
	return &keyValueTables{
		keyIndex:   make(map[string]uint32),
		valueIndex: make(map[string]uint32),
	}
}

func (t *keyValueTables) keyIdx(key string) uint32 {
	if idx, ok := t.keyIndex[key]; ok {
		return idx
	}
	idx := uint32(len(t.keys))
	t.keys = append(t.keys, key)
	t.keyIndex[key] = idx
	return idx
}

func (t *keyValueTables) valueIdx(value interface{}) uint32 {
	vk := valueKey(value)
	if idx, ok := t.valueIndex[vk]; ok {
		return idx
	}
	idx := uint32(len(t.values))
	t.values = append(t.values, value)
	t.valueIndex[vk] = idx
	return idx
}

// tags encodes a feature's properties against the tables, inserting any
// key/value not yet seen, in the order the properties are visited. Map
// iteration order is not stable, so callers that need a deterministic
// wire encoding should sort property keys before calling this - the
// EncodeLayer function does so to keep output byte-stable across runs.
func (t *keyValueTables) tags(properties map[string]interface{}, orderedKeys []string) []uint32 {
	tags := make([]uint32, 0, len(orderedKeys)*2)
	for _, k := range orderedKeys {
		v, ok := properties[k]
		if !ok {
			continue
		}
		tags = append(tags, t.keyIdx(k), t.valueIdx(v))
	}
	return tags
}
