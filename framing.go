// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package netcore

// FramingMode selects one of the thirteen header encodings a Client or
// Host frames its stream with. Both ends of a connection must agree on
// the mode out of band; there is no negotiation.
type FramingMode int

const (
	Mode0  FramingMode = iota // 2-byte LSB, header included in length
	Mode1                     // 2-byte MSB, header included in length
	Mode2                     // 4-byte LSB, header included in length
	Mode3                     // 4-byte MSB, header included in length
	Mode4                     // 1-byte LSB, header included in length
	Mode5                     // 1-byte MSB, header included in length
	Mode6                     // 2-byte LSB, header excluded from length
	Mode7                     // 2-byte MSB, header excluded from length
	Mode8                     // 4-byte LSB, header excluded from length
	Mode9                     // 4-byte MSB, header excluded from length
	Mode10                    // 1-byte LSB, header excluded from length
	Mode11                    // 1-byte MSB, header excluded from length
	Mode12                    // 4-byte LSB, low 24 bits length + high 8 bits mask
)

type framingDesc struct {
	headerLen int
	bigEndian bool
	masked    bool
	encodeAdd int // added to payload length to form the encoded field
	decodeAdd int // added to the decoded field to recover total frame length
}

var framingTable = [13]framingDesc{
	Mode0:  {headerLen: 2, bigEndian: false, encodeAdd: 2, decodeAdd: 0},
	Mode1:  {headerLen: 2, bigEndian: true, encodeAdd: 2, decodeAdd: 0},
	Mode2:  {headerLen: 4, bigEndian: false, encodeAdd: 4, decodeAdd: 0},
	Mode3:  {headerLen: 4, bigEndian: true, encodeAdd: 4, decodeAdd: 0},
	Mode4:  {headerLen: 1, bigEndian: false, encodeAdd: 1, decodeAdd: 0},
	Mode5:  {headerLen: 1, bigEndian: true, encodeAdd: 1, decodeAdd: 0},
	Mode6:  {headerLen: 2, bigEndian: false, encodeAdd: 0, decodeAdd: 2},
	Mode7:  {headerLen: 2, bigEndian: true, encodeAdd: 0, decodeAdd: 2},
	Mode8:  {headerLen: 4, bigEndian: false, encodeAdd: 0, decodeAdd: 4},
	Mode9:  {headerLen: 4, bigEndian: true, encodeAdd: 0, decodeAdd: 4},
	Mode10: {headerLen: 1, bigEndian: false, encodeAdd: 0, decodeAdd: 1},
	Mode11: {headerLen: 1, bigEndian: true, encodeAdd: 0, decodeAdd: 1},
	Mode12: {headerLen: 4, bigEndian: false, masked: true, encodeAdd: 3, decodeAdd: 1},
}

// HeaderLen returns the on-wire header width for m.
func (m FramingMode) HeaderLen() int { return framingTable[m].headerLen }

// MaxPayload returns the largest payload m's header width can express.
func (m FramingMode) MaxPayload() int {
	d := framingTable[m]
	width := d.headerLen
	if d.masked {
		width = 3 // 24-bit length field; the 4th byte is the mask
	}
	fieldMax := (1 << (uint(width) * 8)) - 1
	return fieldMax - d.encodeAdd
}

// EncodeHeader writes m's header for a payload of the given length
// (and, for Mode12, the given application mask) into dst, which must
// be at least m.HeaderLen() bytes. It returns ErrTooLong if the
// payload exceeds MaxPayload().
func (m FramingMode) EncodeHeader(dst []byte, payloadLen int, mask byte) error {
	d := framingTable[m]
	if payloadLen < 0 || payloadLen > m.MaxPayload() {
		return ErrTooLong
	}
	field := uint32(payloadLen + d.encodeAdd)
	switch d.headerLen {
	case 1:
		dst[0] = byte(field)
	case 2:
		if d.bigEndian {
			dst[0] = byte(field >> 8)
			dst[1] = byte(field)
		} else {
			dst[0] = byte(field)
			dst[1] = byte(field >> 8)
		}
	case 4:
		if d.masked {
			field = (field & 0xffffff) | (uint32(mask) << 24)
			dst[0] = byte(field)
			dst[1] = byte(field >> 8)
			dst[2] = byte(field >> 16)
			dst[3] = byte(field >> 24)
		} else if d.bigEndian {
			dst[0] = byte(field >> 24)
			dst[1] = byte(field >> 16)
			dst[2] = byte(field >> 8)
			dst[3] = byte(field)
		} else {
			dst[0] = byte(field)
			dst[1] = byte(field >> 8)
			dst[2] = byte(field >> 16)
			dst[3] = byte(field >> 24)
		}
	}
	return nil
}

// DecodeHeader reads m's header from src (at least m.HeaderLen()
// bytes) and returns the total frame length (header plus payload) and
// the application mask (Mode12 only; zero otherwise).
func (m FramingMode) DecodeHeader(src []byte) (frameLen int, mask byte) {
	d := framingTable[m]
	var field uint32
	switch d.headerLen {
	case 1:
		field = uint32(src[0])
	case 2:
		if d.bigEndian {
			field = uint32(src[0])<<8 | uint32(src[1])
		} else {
			field = uint32(src[0]) | uint32(src[1])<<8
		}
	case 4:
		if d.masked {
			raw := uint32(src[0]) | uint32(src[1])<<8 | uint32(src[2])<<16 | uint32(src[3])<<24
			mask = byte(raw >> 24)
			field = raw & 0xffffff
		} else if d.bigEndian {
			field = uint32(src[0])<<24 | uint32(src[1])<<16 | uint32(src[2])<<8 | uint32(src[3])
		} else {
			field = uint32(src[0]) | uint32(src[1])<<8 | uint32(src[2])<<16 | uint32(src[3])<<24
		}
	}
	return int(field) + d.decodeAdd, mask
}
