package borsh

import (
	"encoding/binary"
	"math"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Key    [32]byte
	Amount uint64
	Delta  int64
	Fee    float64
	Seed   uint8
}

type amountVariant struct {
	Amount uint64
}

// counter has a hand written layout of a single little endian u16.
type counter struct {
	Value uint16
}

func (c counter) MarshalWithEncoder(enc *bin.Encoder) error {
	return enc.WriteUint16(c.Value, bin.LE)
}

func (c *counter) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	c.Value, err = dec.ReadUint16(bin.LE)
	return err
}

func TestMarshal_Layout(t *testing.T) {
	r := record{
		Key:    [32]byte{1, 2, 3},
		Amount: 10000,
		Delta:  -1,
		Fee:    1000,
		Seed:   7,
	}

	b, err := Marshal(r)
	require.NoError(t, err)
	require.Len(t, b, 32+8+8+8+1)

	assert.Equal(t, r.Key[:], b[:32])
	assert.EqualValues(t, 10000, binary.LittleEndian.Uint64(b[32:]))
	assert.Equal(t, uint64(math.MaxUint64), binary.LittleEndian.Uint64(b[40:]))
	assert.Equal(t, math.Float64bits(1000), binary.LittleEndian.Uint64(b[48:]))
	assert.EqualValues(t, 7, b[56])

	var decoded record
	require.NoError(t, Unmarshal(b, &decoded))
	assert.Equal(t, r, decoded)
}

func TestUnmarshal_Strict(t *testing.T) {
	b := MustMarshal(record{Amount: 1})

	var decoded record
	err := Unmarshal(append(b, 0), &decoded)
	assert.True(t, errors.Is(err, ErrTrailingBytes))

	assert.Error(t, Unmarshal(b[:len(b)-1], &decoded))
}

func TestUnmarshalPrefix(t *testing.T) {
	b := MustMarshal(record{Key: [32]byte{9}, Amount: 5})

	var prefix struct {
		Key    [32]byte
		Amount uint64
	}
	n, err := UnmarshalPrefix(b, &prefix)
	require.NoError(t, err)
	assert.Equal(t, 40, n)
	assert.EqualValues(t, 9, prefix.Key[0])
	assert.EqualValues(t, 5, prefix.Amount)
}

func TestEnum(t *testing.T) {
	b := MustEncodeEnum(2, amountVariant{Amount: 10000})
	require.Len(t, b, 9)
	assert.EqualValues(t, 2, b[0])

	tag, rest, err := DecodeEnumTag(b)
	require.NoError(t, err)
	assert.EqualValues(t, 2, tag)

	var v amountVariant
	require.NoError(t, Unmarshal(rest, &v))
	assert.EqualValues(t, 10000, v.Amount)

	assert.Equal(t, []byte{0}, MustEncodeEnum(0, nil))

	_, _, err = DecodeEnumTag(nil)
	assert.True(t, errors.Is(err, ErrUnknownTag))
}

func TestCustomLayout(t *testing.T) {
	b, err := Marshal(counter{Value: 0x0102})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0x01}, b)

	var c counter
	require.NoError(t, Unmarshal(b, &c))
	assert.EqualValues(t, 0x0102, c.Value)
}
