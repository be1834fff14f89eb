// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package netcore

// RC4 is a streaming keyed permutation cipher used to obscure a
// Client's framed byte stream. Its state is the classic 256-byte
// permutation box plus the (x,y) stream position pair; x=y=-1 marks
// the cipher disabled, letting Crypt double as a passthrough so the
// same send/recv pipeline serves encrypted and plaintext connections.
type RC4 struct {
	box [256]byte
	x   int
	y   int
}

// NewRC4 returns a disabled cipher (Crypt is a no-op copy) until Init
// is called with a non-empty key.
func NewRC4() *RC4 {
	return &RC4{x: -1, y: -1}
}

// Init schedules box from key and resets the stream position. An
// empty key leaves (or puts) the cipher in the disabled state.
func (c *RC4) Init(key []byte) {
	if len(key) == 0 {
		c.x, c.y = -1, -1
		return
	}
	for i := 0; i < 256; i++ {
		c.box[i] = byte(i)
	}
	var j byte
	for i := 0; i < 256; i++ {
		j += c.box[i] + key[i%len(key)]
		c.box[i], c.box[j] = c.box[j], c.box[i]
	}
	c.x, c.y = 0, 0
}

// Enabled reports whether Init was called with a non-empty key.
func (c *RC4) Enabled() bool { return c.x >= 0 && c.y >= 0 }

// Crypt XORs n bytes of src with the keystream into dst; src and dst
// may alias. When the cipher is disabled this is a plain copy.
func (c *RC4) Crypt(dst, src []byte) {
	if !c.Enabled() {
		copy(dst, src)
		return
	}
	x, y := c.x, c.y
	for i := range src {
		x = (x + 1) & 0xff
		a := c.box[x]
		y = (y + int(a)) & 0xff
		b := c.box[y]
		c.box[x], c.box[y] = b, a
		dst[i] = src[i] ^ c.box[(int(a)+int(b))&0xff]
	}
	c.x, c.y = x, y
}
