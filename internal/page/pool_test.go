// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package page

import "testing"

func TestFixedPoolRecyclesFreedPages(t *testing.T) {
	p := NewFixedPool(4096, 0)
	a, err := p.Alloc(0)
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	if a.Size() != 4096 {
		t.Fatalf("expected usable size 4096, got %d", a.Size())
	}
	p.Free(a)
	b, err := p.Alloc(0)
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	if a != b {
		t.Fatalf("expected freed page to be recycled")
	}
}

func TestFixedPoolDoubleFreeIsIdempotent(t *testing.T) {
	p := NewFixedPool(1024, 0)
	a, _ := p.Alloc(0)
	p.Free(a)
	p.Free(a) // must not panic or corrupt the free list
	b, _ := p.Alloc(0)
	c, err := p.Alloc(0)
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	if b == c {
		t.Fatalf("double free must not hand out the same page twice")
	}
}

func TestFixedPoolExhaustion(t *testing.T) {
	p := NewFixedPool(1024, 1)
	if _, err := p.Alloc(0); err != nil {
		t.Fatalf("first alloc should succeed: %v", err)
	}
	if _, err := p.Alloc(0); err != ErrExhausted {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
}

func TestVariablePoolClampsToWaterMarks(t *testing.T) {
	p := NewVariablePool(2048, 8192)
	small, _ := p.Alloc(0)
	if small.Size() != 2048 {
		t.Fatalf("expected clamp to low water mark, got %d", small.Size())
	}
	big, _ := p.Alloc(1 << 20)
	if big.Size() != 8192 {
		t.Fatalf("expected clamp to high water mark, got %d", big.Size())
	}
	mid, _ := p.Alloc(4096)
	if mid.Size() != 4096 {
		t.Fatalf("expected hint passthrough within bounds, got %d", mid.Size())
	}
}

func TestVariablePoolClampsToAbsoluteBounds(t *testing.T) {
	p := NewVariablePool(1, 1<<30)
	if p.low != MinSize {
		t.Fatalf("expected low clamped to MinSize, got %d", p.low)
	}
	if p.high != MaxSize {
		t.Fatalf("expected high clamped to MaxSize, got %d", p.high)
	}
}
