// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package memstream

import (
	"bytes"
	"math/rand"
	"testing"

	"code.hybscloud.com/netcore/internal/page"
)

func newTestStream() *MemStream {
	return New(page.NewFixedPool(64, 0))
}

func TestWriteReadRoundTrip(t *testing.T) {
	ms := newTestStream()
	data := []byte("hello, memstream")
	if n := ms.Write(data); n != len(data) {
		t.Fatalf("short write: %d", n)
	}
	buf := make([]byte, len(data))
	if n := ms.Read(buf, len(buf)); n != len(data) {
		t.Fatalf("short read: %d", n)
	}
	if !bytes.Equal(buf, data) {
		t.Fatalf("round trip mismatch: got %q want %q", buf, data)
	}
	if ms.Size() != 0 {
		t.Fatalf("expected drained stream, size=%d", ms.Size())
	}
}

func TestConservationUnderRandomWritesAndReads(t *testing.T) {
	ms := newTestStream()
	rng := rand.New(rand.NewSource(1))
	var written, read int
	var model []byte

	for i := 0; i < 2000; i++ {
		if rng.Intn(2) == 0 || len(model) == 0 {
			n := 1 + rng.Intn(200)
			chunk := make([]byte, n)
			rng.Read(chunk)
			wn := ms.Write(chunk)
			model = append(model, chunk[:wn]...)
			written += wn
		} else {
			n := 1 + rng.Intn(len(model))
			buf := make([]byte, n)
			rn := ms.Read(buf, n)
			if !bytes.Equal(buf[:rn], model[:rn]) {
				t.Fatalf("read mismatch at iter %d", i)
			}
			model = model[rn:]
			read += rn
		}
		if ms.Size() != written-read {
			t.Fatalf("conservation violated: size=%d want=%d", ms.Size(), written-read)
		}
	}
}

func TestPeekIsNonDestructive(t *testing.T) {
	ms := newTestStream()
	ms.Write([]byte("abcdef"))
	buf := make([]byte, 3)
	ms.Peek(buf, 3)
	if string(buf) != "abc" {
		t.Fatalf("peek mismatch: %q", buf)
	}
	if ms.Size() != 6 {
		t.Fatalf("peek must not consume, size=%d", ms.Size())
	}
	out := make([]byte, 6)
	ms.Read(out, 6)
	if string(out) != "abcdef" {
		t.Fatalf("read after peek mismatch: %q", out)
	}
}

func TestDropDiscardsWithoutCopy(t *testing.T) {
	ms := newTestStream()
	ms.Write([]byte("abcdef"))
	ms.Drop(2)
	buf := make([]byte, 4)
	ms.Read(buf, 4)
	if string(buf) != "cdef" {
		t.Fatalf("expected cdef after drop, got %q", buf)
	}
}

func TestFlatExposesContiguousWindow(t *testing.T) {
	ms := newTestStream()
	ms.Write(bytes.Repeat([]byte("x"), 100)) // spans multiple 64-byte pages
	win := ms.Flat()
	if len(win) == 0 || len(win) > 64 {
		t.Fatalf("expected a single-page contiguous window, got %d bytes", len(win))
	}
	ms.Drop(len(win))
	win2 := ms.Flat()
	if len(win2) != 36 {
		t.Fatalf("expected remaining 36 bytes flat, got %d", len(win2))
	}
}

func TestClearReleasesEverything(t *testing.T) {
	ms := newTestStream()
	ms.Write(bytes.Repeat([]byte("y"), 500))
	ms.Clear()
	if ms.Size() != 0 {
		t.Fatalf("expected size 0 after clear")
	}
	if len(ms.pages) != 0 {
		t.Fatalf("expected no pages retained beyond LRU cap after clear")
	}
	// Stream must still be usable after Clear.
	ms.Write([]byte("z"))
	buf := make([]byte, 1)
	ms.Read(buf, 1)
	if buf[0] != 'z' {
		t.Fatalf("stream unusable after Clear")
	}
}

func TestWriteNeverPartialUnlessPoolExhausted(t *testing.T) {
	pool := page.NewFixedPool(8, 1) // only one page ever outstanding
	ms := New(pool)
	n := ms.Write([]byte("01234567")) // exactly fills the one page
	if n != 8 {
		t.Fatalf("expected full first write, got %d", n)
	}
	n2 := ms.Write([]byte("89"))
	if n2 != 0 {
		t.Fatalf("expected zero bytes written once pool is exhausted, got %d", n2)
	}
}
