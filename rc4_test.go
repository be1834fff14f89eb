// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package netcore

import "testing"

func TestRC4DisabledIsPassthrough(t *testing.T) {
	c := NewRC4()
	if c.Enabled() {
		t.Fatal("new cipher should be disabled")
	}
	src := []byte("hello, world")
	dst := make([]byte, len(src))
	c.Crypt(dst, src)
	if string(dst) != string(src) {
		t.Fatalf("disabled Crypt should copy verbatim, got %q", dst)
	}
}

func TestRC4EmptyKeyDisables(t *testing.T) {
	c := NewRC4()
	c.Init([]byte("key"))
	if !c.Enabled() {
		t.Fatal("expected enabled after non-empty key")
	}
	c.Init(nil)
	if c.Enabled() {
		t.Fatal("expected disabled after empty key")
	}
}

func TestRC4EncryptDecryptRoundTrip(t *testing.T) {
	plain := []byte("the quick brown fox jumps over the lazy dog")
	key := []byte("secret-key")

	enc := NewRC4()
	enc.Init(key)
	cipher := make([]byte, len(plain))
	enc.Crypt(cipher, plain)

	dec := NewRC4()
	dec.Init(key)
	out := make([]byte, len(cipher))
	dec.Crypt(out, cipher)

	if string(out) != string(plain) {
		t.Fatalf("round trip mismatch: got %q want %q", out, plain)
	}
}

func TestRC4StreamPositionAdvancesAcrossCalls(t *testing.T) {
	key := []byte("k")
	whole := NewRC4()
	whole.Init(key)
	plain := []byte("0123456789abcdef")
	wholeOut := make([]byte, len(plain))
	whole.Crypt(wholeOut, plain)

	split := NewRC4()
	split.Init(key)
	splitOut := make([]byte, len(plain))
	split.Crypt(splitOut[:7], plain[:7])
	split.Crypt(splitOut[7:], plain[7:])

	if string(splitOut) != string(wholeOut) {
		t.Fatalf("split-call output diverged from whole-call output: %q vs %q", splitOut, wholeOut)
	}
}

func TestRC4KnownVector(t *testing.T) {
	// RC4("Key", "Plaintext") -> BBF316E8D940AF0AD3
	key := []byte("Key")
	plain := []byte("Plaintext")
	want := []byte{0xBB, 0xF3, 0x16, 0xE8, 0xD9, 0x40, 0xAF, 0x0A, 0xD3}

	c := NewRC4()
	c.Init(key)
	got := make([]byte, len(plain))
	c.Crypt(got, plain)

	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d: got %#x want %#x", i, got[i], want[i])
		}
	}
}
