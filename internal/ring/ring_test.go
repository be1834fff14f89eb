// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ring

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestWriteReadIdentity(t *testing.T) {
	r := New(16)
	data := []byte("hello world")
	if n := r.Write(data); n != len(data) {
		t.Fatalf("short write: %d", n)
	}
	buf := make([]byte, len(data))
	if n := r.Read(buf); n != len(data) {
		t.Fatalf("short read: %d", n)
	}
	if !bytes.Equal(buf, data) {
		t.Fatalf("identity violated: got %q want %q", buf, data)
	}
}

func TestWrapCorrectness(t *testing.T) {
	r := New(8) // usable capacity 7
	r.Write([]byte("abcde"))
	out := make([]byte, 3)
	r.Read(out) // tail advances past 3, head still ahead
	n := r.Write([]byte("FGHI"))
	if n != 4 {
		t.Fatalf("expected to fit 4 more bytes (2 remaining + wrap), got %d", n)
	}
	rest := make([]byte, r.Size())
	r.Read(rest)
	if string(rest) != "deFGHI" {
		t.Fatalf("wrap mismatch: got %q", rest)
	}
}

func TestUsableCapacityIsOneLess(t *testing.T) {
	r := New(4)
	n := r.Write([]byte("abcdef"))
	if n != 3 {
		t.Fatalf("expected usable capacity 3, wrote %d", n)
	}
}

func TestPeekNonDestructive(t *testing.T) {
	r := New(16)
	r.Write([]byte("abcdef"))
	buf := make([]byte, 3)
	r.Peek(buf)
	if string(buf) != "abc" {
		t.Fatalf("peek mismatch: %q", buf)
	}
	if r.Size() != 6 {
		t.Fatalf("peek must not consume")
	}
}

func TestDropDiscards(t *testing.T) {
	r := New(16)
	r.Write([]byte("abcdef"))
	r.Drop(2)
	buf := make([]byte, 4)
	r.Read(buf)
	if string(buf) != "cdef" {
		t.Fatalf("drop mismatch: %q", buf)
	}
}

func TestPtrExposesTwoSegmentsOnWrap(t *testing.T) {
	r := New(8)
	r.Write([]byte("abcde"))
	drained := make([]byte, 4)
	r.Read(drained)
	r.Write([]byte("XYZW")) // wraps: tail near end, head near start
	p1, p2 := r.Ptr()
	joined := append(append([]byte{}, p1...), p2...)
	if len(p2) == 0 || string(joined) != "eXYZW" {
		t.Fatalf("ptr segments mismatch: %q + %q", p1, p2)
	}
}

func TestPutExtendsBeyondCurrentEnd(t *testing.T) {
	r := New(16)
	r.Write([]byte("abc"))
	if err := r.Put(5, []byte("XY")); err != nil {
		t.Fatalf("put: %v", err)
	}
	out := make([]byte, r.Size())
	r.Read(out)
	if string(out) != "abc\x00\x00XY" {
		t.Fatalf("put-beyond-end mismatch: %q", out)
	}
}

func TestPutOverwritesWithinRange(t *testing.T) {
	r := New(16)
	r.Write([]byte("abcdef"))
	if err := r.Put(2, []byte("ZZ")); err != nil {
		t.Fatalf("put: %v", err)
	}
	out := make([]byte, r.Size())
	r.Read(out)
	if string(out) != "abZZef" {
		t.Fatalf("put overwrite mismatch: %q", out)
	}
}

func TestPutRejectsNegativeOffset(t *testing.T) {
	r := New(16)
	if err := r.Put(-1, []byte("a")); err != ErrPrecondition {
		t.Fatalf("expected ErrPrecondition, got %v", err)
	}
}

func TestGetReadsWithoutMovingTail(t *testing.T) {
	r := New(16)
	r.Write([]byte("abcdef"))
	buf := make([]byte, 2)
	if err := r.Get(2, buf); err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(buf) != "cd" {
		t.Fatalf("get mismatch: %q", buf)
	}
	if r.Size() != 6 {
		t.Fatalf("get must not consume")
	}
}

func TestGetRejectsOutOfRange(t *testing.T) {
	r := New(16)
	r.Write([]byte("abc"))
	buf := make([]byte, 2)
	if err := r.Get(2, buf); err != ErrPrecondition {
		t.Fatalf("expected ErrPrecondition, got %v", err)
	}
}

func TestSwapPreservesLiveData(t *testing.T) {
	r := New(8)
	r.Write([]byte("abcde"))
	r.Read(make([]byte, 2)) // tail advances so data wraps logically
	r.Write([]byte("FGHI"))
	before := make([]byte, r.Size())
	r.Peek(before)

	if err := r.Swap(make([]byte, 32)); err != nil {
		t.Fatalf("swap: %v", err)
	}
	after := make([]byte, r.Size())
	r.Peek(after)
	if !bytes.Equal(before, after) {
		t.Fatalf("swap changed live data: before %q after %q", before, after)
	}
	if n := r.Write(bytes.Repeat([]byte("x"), 40)); n != r.Cap()-len(before) {
		t.Fatalf("swap did not grow usable capacity, wrote %d", n)
	}
}

func TestSwapRejectsTooSmallBuffer(t *testing.T) {
	r := New(16)
	r.Write([]byte("abcdefghij"))
	if err := r.Swap(make([]byte, 4)); err != ErrPrecondition {
		t.Fatalf("expected ErrPrecondition, got %v", err)
	}
}

func TestConservationUnderRandomOps(t *testing.T) {
	r := New(32)
	rng := rand.New(rand.NewSource(7))
	var model []byte

	for i := 0; i < 2000; i++ {
		if rng.Intn(2) == 0 || len(model) == 0 {
			chunk := make([]byte, 1+rng.Intn(10))
			rng.Read(chunk)
			n := r.Write(chunk)
			model = append(model, chunk[:n]...)
		} else {
			n := 1 + rng.Intn(len(model))
			buf := make([]byte, n)
			rn := r.Read(buf)
			if !bytes.Equal(buf[:rn], model[:rn]) {
				t.Fatalf("mismatch at iter %d", i)
			}
			model = model[rn:]
		}
		if r.Size() != len(model) {
			t.Fatalf("conservation violated: size=%d want=%d", r.Size(), len(model))
		}
	}
}
