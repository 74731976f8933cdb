package mvt

import "fmt"

const (
	valueFieldString = 1
	valueFieldFloat  = 2
	valueFieldDouble = 3
	valueFieldInt    = 4
	valueFieldUint   = 5
	valueFieldSint   = 6
	valueFieldBool   = 7
)

func encodeValue(v interface{}) []byte {
	var w pbWriter
	switch t := v.(type) {
	case string:
		w.stringField(valueFieldString, t)
	case bool:
		b := uint64(0)
		if t {
			b = 1
		}
		w.varintField(valueFieldBool, b)
	case float32:
		w.floatField(valueFieldFloat, t)
	case float64:
		w.doubleField(valueFieldDouble, t)
	case int:
		w.zigzagSintField(valueFieldSint, int64(t))
	case int64:
		w.zigzagSintField(valueFieldSint, t)
	case uint64:
		w.varintField(valueFieldUint, t)
	default:
		// best-effort stringification for anything the dedup table
		// wasn't expecting; keeps a malformed property from aborting
		// an entire tile's encode.
		w.stringField(valueFieldString, fmt.Sprintf("%v", t))
	}
	return w.buf
}

func (w *pbWriter) zigzagSintField(field int, v int64) {
	w.tag(field, wireVarint)
	w.zigzagVarint(v)
}

func decodeValue(data []byte) (interface{}, error) {
	var result interface{}
	err := parseFields(data, func(f pbField) error {
		switch f.number {
		case valueFieldString:
			result = string(f.payload)
		case valueFieldFloat:
			result = float32FromBits(f.fixed32)
		case valueFieldDouble:
			result = float64FromBits(f.fixed64)
		case valueFieldInt:
			result = int64(f.varint)
		case valueFieldUint:
			result = f.varint
		case valueFieldSint:
			result = zigzagDecode64(f.varint)
		case valueFieldBool:
			result = f.varint != 0
		}
		return nil
	})
	return result, err
}
