package wire

import "fmt"

// Field conversion helpers. Decoding goes through msgpack's DecodeInterface,
// which yields sized integers (int8..int64, uint8..uint64), float32/float64,
// bool, string, []byte, []interface{} or nil depending on what was on the
// wire; these helpers normalize that into the
// Go types messages.go expects, returning an error rather than silently
// coercing when the shape is wrong (spec §4.1).

func asString(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asOptString(v interface{}) (*string, bool) {
	if v == nil {
		return nil, true
	}
	s, ok := v.(string)
	if !ok {
		return nil, false
	}
	return &s, true
}

func optStringField(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func asBytes(v interface{}) ([]byte, bool) {
	switch b := v.(type) {
	case []byte:
		return b, true
	case nil:
		return nil, true
	default:
		return nil, false
	}
}

func asBool(v interface{}) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

func asOptInt64(v interface{}) (*int64, bool) {
	if v == nil {
		return nil, true
	}
	n, ok := asInt64(v)
	if !ok {
		return nil, false
	}
	return &n, true
}

func optInt64Field(n *int64) interface{} {
	if n == nil {
		return nil
	}
	return *n
}

func asUint32(v interface{}) (uint32, bool) {
	n, ok := asInt64(v)
	if !ok || n < 0 {
		return 0, false
	}
	return uint32(n), true
}

func asUint64(v interface{}) (uint64, bool) {
	switch n := v.(type) {
	case uint64:
		return n, true
	case int64:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case int:
		return uint64(n), true
	default:
		return 0, false
	}
}

func asTupleSlice(v interface{}) ([]interface{}, bool) {
	s, ok := v.([]interface{})
	return s, ok
}

func asKVPairs(v interface{}) ([][2]string, error) {
	raw, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("env: expected array")
	}
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([][2]string, 0, len(raw))
	for _, item := range raw {
		pair, ok := item.([]interface{})
		if !ok || len(pair) != 2 {
			return nil, fmt.Errorf("env: expected 2-tuple")
		}
		k, ok1 := asString(pair[0])
		val, ok2 := asString(pair[1])
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("env: expected string pair")
		}
		out = append(out, [2]string{k, val})
	}
	return out, nil
}

func kvPairsField(pairs [][2]string) interface{} {
	out := make([]interface{}, len(pairs))
	for i, p := range pairs {
		out[i] = []interface{}{p[0], p[1]}
	}
	return out
}

type fieldCountError struct{ want int }

func (e *fieldCountError) Error() string {
	return fmt.Sprintf("wire: expected %d fields", e.want)
}

func fieldCountErr(n int) error {
	return &fieldCountError{want: n}
}
