// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package page

// FixedPool hands out pages of a single configured size, recycling
// freed pages from an internal free list before allocating new ones.
type FixedPool struct {
	pageSize int
	maxPages int // 0 means unlimited
	live     int
	free     []*Page
}

// NewFixedPool creates a pool of pageSize-byte pages. maxPages bounds
// the number of pages simultaneously outstanding (0 = unbounded); once
// the bound is hit, Alloc returns ErrExhausted and the caller must
// treat it as back-pressure.
func NewFixedPool(pageSize, maxPages int) *FixedPool {
	if pageSize <= 0 {
		pageSize = MinSize
	}
	return &FixedPool{pageSize: pageSize, maxPages: maxPages}
}

// PageSize returns the fixed size every page from this pool has.
func (fp *FixedPool) PageSize() int { return fp.pageSize }

func (fp *FixedPool) Alloc(int) (*Page, error) {
	if n := len(fp.free); n > 0 {
		pg := fp.free[n-1]
		fp.free = fp.free[:n-1]
		pg.freed = false
		fp.live++
		return pg, nil
	}
	if fp.maxPages > 0 && fp.live >= fp.maxPages {
		return nil, ErrExhausted
	}
	fp.live++
	return &Page{buf: make([]byte, fp.pageSize)}, nil
}

func (fp *FixedPool) Free(pg *Page) {
	if pg == nil || pg.freed {
		return
	}
	pg.freed = true
	fp.live--
	fp.free = append(fp.free, pg)
}
