package wire

import (
	"bytes"
	"errors"

	"github.com/vmihailenco/msgpack/v5"
)

// Envelope is the versioned outer record enclosing every protocol message
// (spec §3.5). Sequence is assigned by the caller at send time; the codec
// never mutates it.
type Envelope struct {
	Version  uint32
	Sequence uint64
	Payload  Message
}

// EncodeEnvelope serializes env as a 3-element msgpack array
// [version, sequence, [type_tag, fields]] — array encoding, not a map, so
// field order rather than field name is the wire contract (spec §4.1).
func EncodeEnvelope(env Envelope) ([]byte, error) {
	tree := []interface{}{
		uint64(env.Version),
		env.Sequence,
		[]interface{}{env.Payload.Tag(), env.Payload.fields()},
	}
	return msgpack.Marshal(tree)
}

// countingReader tracks how many bytes have been consumed so DecodeError
// can report the byte offset of the element that failed to decode.
type countingReader struct {
	r   *bytes.Reader
	pos int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.pos += n
	return n, err
}

// ReadByte and UnreadByte make countingReader an io.ByteScanner, so the
// msgpack decoder reads from it directly instead of through a read-ahead
// buffer that would advance pos past the element being decoded.
func (c *countingReader) ReadByte() (byte, error) {
	b, err := c.r.ReadByte()
	if err == nil {
		c.pos++
	}
	return b, err
}

func (c *countingReader) UnreadByte() error {
	if err := c.r.UnreadByte(); err != nil {
		return err
	}
	c.pos--
	return nil
}

// DecodeEnvelope parses data produced by EncodeEnvelope. It never panics;
// every malformed input maps to a *DecodeError with a Kind and Position.
func DecodeEnvelope(data []byte) (Envelope, error) {
	cr := &countingReader{r: bytes.NewReader(data)}
	dec := msgpack.NewDecoder(cr)

	envLen, err := dec.DecodeArrayLen()
	if err != nil {
		return Envelope{}, decodeErr(KindTruncatedInput, cr.pos)
	}
	if envLen != 3 {
		return Envelope{}, decodeErr(KindFieldCountMismatch, cr.pos)
	}

	versionPos := cr.pos
	version, err := dec.DecodeUint64()
	if err != nil {
		return Envelope{}, decodeErr(KindTypeMismatch, versionPos)
	}

	seqPos := cr.pos
	sequence, err := dec.DecodeUint64()
	if err != nil {
		return Envelope{}, decodeErr(KindTypeMismatch, seqPos)
	}

	payloadPos := cr.pos
	payloadLen, err := dec.DecodeArrayLen()
	if err != nil {
		return Envelope{}, decodeErr(KindTruncatedInput, payloadPos)
	}
	if payloadLen != 2 {
		return Envelope{}, decodeErr(KindFieldCountMismatch, payloadPos)
	}

	tagPos := cr.pos
	tag, err := dec.DecodeString()
	if err != nil {
		return Envelope{}, decodeErr(KindTypeMismatch, tagPos)
	}

	fieldsPos := cr.pos
	fieldsLen, err := dec.DecodeArrayLen()
	if err != nil {
		return Envelope{}, decodeErr(KindTruncatedInput, fieldsPos)
	}
	if fieldsLen < 0 {
		return Envelope{}, decodeErr(KindTypeMismatch, fieldsPos)
	}
	if fieldsLen > len(data)-cr.pos {
		return Envelope{}, decodeErr(KindTruncatedInput, fieldsPos)
	}
	fields := make([]interface{}, fieldsLen)
	for i := 0; i < fieldsLen; i++ {
		elemPos := cr.pos
		v, err := dec.DecodeInterface()
		if err != nil {
			return Envelope{}, decodeErr(KindTruncatedInput, elemPos)
		}
		fields[i] = v
	}

	ctor, ok := registry[tag]
	if !ok {
		return Envelope{}, decodeErr(KindUnknownMessage, tagPos)
	}

	msg, err := ctor(fields)
	if err != nil {
		var fcErr *fieldCountError
		if errors.As(err, &fcErr) {
			return Envelope{}, decodeErr(KindFieldCountMismatch, fieldsPos)
		}
		return Envelope{}, decodeErr(KindTypeMismatch, fieldsPos)
	}

	return Envelope{Version: uint32(version), Sequence: sequence, Payload: msg}, nil
}
