package telemetry

import (
	"errors"
	"io"
)

// Wire-format varints: seven data bits per byte, high bit set on every
// byte except the last, at most five bytes for a 32-bit value.

var ErrVarIntTooBig = errors.New("telemetry: VarInt is too big")

// AppendVarInt appends the varint encoding of v to dst.
func AppendVarInt(dst []byte, v int32) []byte {
	u := uint32(v)
	for {
		b := byte(u & 0x7F)
		u >>= 7
		if u != 0 {
			b |= 0x80
		}
		dst = append(dst, b)
		if u == 0 {
			return dst
		}
	}
}

// ReadVarInt decodes one varint from r. Encodings longer than five
// bytes are rejected.
func ReadVarInt(r io.Reader) (int32, error) {
	var result uint32
	var buf [1]byte
	for i := 0; ; i++ {
		if i >= 5 {
			return 0, ErrVarIntTooBig
		}
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		b := buf[0]
		result |= uint32(b&0x7F) << (7 * i)
		if b&0x80 == 0 {
			return int32(result), nil
		}
	}
}
