// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package page implements the fixed-size page allocator that backs
// internal/memstream. Two pool flavors are provided:
//
//   - Fixed: every page has the same configured size; freed pages are
//     kept on an internal free list and handed back out verbatim.
//   - Variable: pages are sized between a low and high water mark based
//     on the caller's current stream size, clamped to [1 KiB, 64 KiB];
//     pages are not pooled (each Free just drops the reference for GC).
//
// Neither flavor is safe for concurrent use by multiple goroutines —
// the toolkit's single-threaded-cooperative model (one owner thread
// calling Client/Host.process) means no pool-internal locking is
// needed, mirroring the rest of the core.
package page

import "errors"

// ErrExhausted is returned by Alloc when no page can be produced.
var ErrExhausted = errors.New("page: pool exhausted")

const (
	MinSize = 1024
	MaxSize = 64 * 1024
)

// Page is one allocation unit: a contiguous byte region plus a
// double-free guard. Pages are owned by at most one MemStream at a
// time; ownership transfers back to the pool via Free.
type Page struct {
	buf   []byte
	freed bool
}

// Bytes returns the page's full backing storage.
func (p *Page) Bytes() []byte { return p.buf }

// Size reports the usable payload size of the page.
func (p *Page) Size() int { return len(p.buf) }

// Pool allocates and recycles Pages.
type Pool interface {
	// Alloc returns a page. hint is an advisory current-stream-size
	// used by variable pools to pick a page size; fixed pools ignore it.
	Alloc(hint int) (*Page, error)
	// Free returns a page to the pool. Double-freeing the same *Page
	// is a caller bug; it is detected and ignored as a silent no-op
	// (idempotent). No build of this package panics on it.
	Free(p *Page)
}
