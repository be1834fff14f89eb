// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package b64 implements the standard base64 alphabet with padding.
// The encode alphabet is a constant; the decode table is not a
// compile-time constant but is built once during package
// initialization, rather than lazily on first use as in the reference
// implementation this package is modeled on.
package b64

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// invalid marks a byte that is not part of the alphabet and is not '='.
const invalid = 0xff

// padSentinel marks '=' in the decode table.
const padSentinel = 64

var decodeTable = func() [256]byte {
	var t [256]byte
	for i := range t {
		t[i] = invalid
	}
	for i := 0; i < len(alphabet); i++ {
		t[alphabet[i]] = byte(i)
	}
	t['='] = padSentinel
	return t
}()

// EncodedLen returns the number of bytes ibase64_encode would need to
// hold the base64 encoding of n source bytes, padding included.
func EncodedLen(n int) int {
	return ((n + 2) / 3) * 4
}

// DecodedLen returns an upper bound on the number of bytes a base64
// string of n characters decodes to.
func DecodedLen(n int) int {
	return ((n + 3) / 4) * 3
}

// Encode writes the base64 encoding of src into dst, which must be at
// least EncodedLen(len(src)) bytes, and returns the number of bytes
// written.
func Encode(dst, src []byte) int {
	d := 0
	for i := 0; i < len(src); {
		c := uint32(src[i]) << 16
		i++
		if i < len(src) {
			c |= uint32(src[i]) << 8
		}
		i++
		if i < len(src) {
			c |= uint32(src[i])
		}
		i++

		dst[d] = alphabet[(c>>18)&0x3f]
		dst[d+1] = alphabet[(c>>12)&0x3f]
		if i > len(src)+1 {
			dst[d+2] = '='
		} else {
			dst[d+2] = alphabet[(c>>6)&0x3f]
		}
		if i > len(src) {
			dst[d+3] = '='
		} else {
			dst[d+3] = alphabet[c&0x3f]
		}
		d += 4
	}
	return d
}

// EncodeToString is a convenience wrapper over Encode.
func EncodeToString(src []byte) string {
	dst := make([]byte, EncodedLen(len(src)))
	n := Encode(dst, src)
	return string(dst[:n])
}

// Decode writes the decoded bytes of src into dst, which must be at
// least DecodedLen(len(src)) bytes, and returns the number of bytes
// written, or an error if src contains a character outside the
// alphabet (other than padding).
func Decode(dst, src []byte) (int, error) {
	d := 0
	for i := 0; i+4 <= len(src); i += 4 {
		var quad [4]byte
		pad := 0
		for k := 0; k < 4; k++ {
			v := decodeTable[src[i+k]]
			if v == invalid {
				return d, ErrInvalidCharacter
			}
			if v == padSentinel {
				pad++
				v = 0
			} else if pad > 0 {
				// '=' may only trail a quad, never precede data.
				return d, ErrInvalidCharacter
			}
			quad[k] = v
		}

		c := uint32(quad[0])<<18 | uint32(quad[1])<<12 | uint32(quad[2])<<6 | uint32(quad[3])
		out := [3]byte{byte(c >> 16), byte(c >> 8), byte(c)}
		take := 3 - pad
		copy(dst[d:], out[:take])
		d += take
	}
	return d, nil
}

// DecodeString is a convenience wrapper over Decode.
func DecodeString(src string) ([]byte, error) {
	dst := make([]byte, DecodedLen(len(src)))
	n, err := Decode(dst, []byte(src))
	if err != nil {
		return nil, err
	}
	return dst[:n], nil
}
