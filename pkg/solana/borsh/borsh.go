// Package borsh encodes instruction payloads and account records in the
// Borsh layout: enum variants as a one byte tag followed by their fields,
// integers little endian, fixed arrays inline, and byte vectors with a u32
// length prefix.
package borsh

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
	"github.com/pkg/errors"
)

var (
	ErrTrailingBytes = errors.New("borsh: not all bytes were consumed")
	ErrUnknownTag    = errors.New("borsh: unknown enum tag")
)

// Marshaler is implemented by values with a hand written layout.
type Marshaler = bin.BinaryMarshaler

// Unmarshaler is implemented by values with a hand written layout.
type Unmarshaler = bin.BinaryUnmarshaler

// Marshal encodes v.
func Marshal(v interface{}) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := bin.NewBorshEncoder(buf).Encode(v); err != nil {
		return nil, errors.Wrapf(err, "borsh: failed to encode %T", v)
	}
	return buf.Bytes(), nil
}

// MustMarshal is like Marshal, but panics on failure. It is intended for
// building fixed instruction payloads.
func MustMarshal(v interface{}) []byte {
	b, err := Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// Unmarshal decodes b into v, and requires every byte of b to be consumed.
func Unmarshal(b []byte, v interface{}) error {
	n, err := UnmarshalPrefix(b, v)
	if err != nil {
		return err
	}
	if n != len(b) {
		return errors.Wrapf(ErrTrailingBytes, "%d of %d bytes consumed", n, len(b))
	}
	return nil
}

// UnmarshalPrefix decodes v from the start of b and returns the number of
// bytes consumed. Trailing bytes are ignored.
func UnmarshalPrefix(b []byte, v interface{}) (int, error) {
	dec := bin.NewBorshDecoder(b)
	if err := dec.Decode(v); err != nil {
		return 0, errors.Wrapf(err, "borsh: failed to decode %T", v)
	}
	return len(b) - dec.Remaining(), nil
}

// EncodeEnum writes the variant tag followed by the fields of payload. A nil
// payload encodes a unit variant.
func EncodeEnum(tag uint8, payload interface{}) ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	if err := enc.WriteUint8(tag); err != nil {
		return nil, err
	}
	if payload != nil {
		if err := enc.Encode(payload); err != nil {
			return nil, errors.Wrapf(err, "borsh: failed to encode variant %d", tag)
		}
	}
	return buf.Bytes(), nil
}

// MustEncodeEnum is like EncodeEnum, but panics on failure.
func MustEncodeEnum(tag uint8, payload interface{}) []byte {
	b, err := EncodeEnum(tag, payload)
	if err != nil {
		panic(err)
	}
	return b
}

// DecodeEnumTag splits instruction data into its variant tag and the
// encoded fields.
func DecodeEnumTag(b []byte) (uint8, []byte, error) {
	if len(b) == 0 {
		return 0, nil, errors.Wrap(ErrUnknownTag, "empty payload")
	}
	return b[0], b[1:], nil
}
