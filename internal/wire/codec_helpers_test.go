package wire

import (
	"errors"

	"github.com/vmihailenco/msgpack/v5"
)

func asDecodeError(err error, target **DecodeError) bool {
	return errors.As(err, target)
}

// encodeRawTagged builds a well-formed envelope around a payload with an
// arbitrary tag/fields pair, bypassing the Message interface — used to
// construct malformed-on-purpose inputs for decode error tests.
func encodeRawTagged(tag string, fields []interface{}) []byte {
	tree := []interface{}{uint64(1), uint64(1), []interface{}{tag, fields}}
	data, err := msgpack.Marshal(tree)
	if err != nil {
		panic(err)
	}
	return data
}
