package ais

import "strings"

// bitField is the unpacked binary body of one AIS message: the 6-bit
// armored payload expanded into packed bits, MSB first.
//
// Reads past the end yield zero bits; per-type decoders gate on Len before
// touching any field, so this only matters for malformed input. Fill bits
// declared by the sentence are not masked off; no decoded field extends
// into the padding region.
type bitField struct {
	data []byte
	n    int
}

// sixBit maps one armor character to its 6-bit value. Characters outside
// both armor ranges decode as zero.
func sixBit(c byte) byte {
	switch {
	case c >= 48 && c <= 87:
		return c - 48
	case c >= 96 && c <= 119:
		return c - 56
	default:
		return 0
	}
}

func newBitField(payload string) bitField {
	f := bitField{
		data: make([]byte, (len(payload)*6+7)/8),
		n:    len(payload) * 6,
	}
	for i := 0; i < len(payload); i++ {
		v := sixBit(payload[i])
		for b := 0; b < 6; b++ {
			if v&(1<<(5-b)) != 0 {
				pos := i*6 + b
				f.data[pos/8] |= 1 << (7 - pos%8)
			}
		}
	}
	return f
}

// Uint reads length bits at offset as an unsigned integer.
func (f bitField) Uint(offset, length int) uint32 {
	var out uint32
	for i := 0; i < length; i++ {
		pos := offset + i
		out <<= 1
		if pos < f.n && f.data[pos/8]&(1<<(7-pos%8)) != 0 {
			out |= 1
		}
	}
	return out
}

// Int reads length bits at offset as a two's-complement signed integer.
func (f bitField) Int(offset, length int) int32 {
	v := f.Uint(offset, length)
	if length > 0 && length < 32 && v&(1<<(length-1)) != 0 {
		return int32(v) - int32(1)<<length
	}
	return int32(v)
}

// Text reads length bits at offset as 6-bit ASCII, stopping at the first
// zero code and stripping trailing '@' padding and whitespace.
func (f bitField) Text(offset, length int) string {
	var b strings.Builder
	for i := 0; i+6 <= length; i += 6 {
		code := f.Uint(offset+i, 6)
		if code == 0 {
			break
		}
		if code < 32 {
			b.WriteByte(byte(code + 64))
		} else {
			b.WriteByte(byte(code))
		}
	}
	return strings.TrimSpace(strings.TrimRight(b.String(), "@ "))
}
