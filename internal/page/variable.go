// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package page

// VariablePool is the general heap-fallback allocator: page size scales
// with the caller's current stream size between a low and a high water
// mark, clamped to [MinSize, MaxSize]. Pages are not recycled — each
// Free simply drops the reference for the garbage collector, since
// variable-sized pages have little reuse value across differently
// sized streams.
type VariablePool struct {
	low, high int
}

// NewVariablePool creates a pool that sizes pages in [low, high],
// itself clamped to [MinSize, MaxSize].
func NewVariablePool(low, high int) *VariablePool {
	if low < MinSize {
		low = MinSize
	}
	if high > MaxSize {
		high = MaxSize
	}
	if high < low {
		high = low
	}
	return &VariablePool{low: low, high: high}
}

func (vp *VariablePool) Alloc(hint int) (*Page, error) {
	size := hint
	if size < vp.low {
		size = vp.low
	}
	if size > vp.high {
		size = vp.high
	}
	return &Page{buf: make([]byte, size)}, nil
}

func (vp *VariablePool) Free(pg *Page) {
	if pg == nil || pg.freed {
		return
	}
	pg.freed = true
}
