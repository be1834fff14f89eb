// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package memstream implements a segmented FIFO byte stream built from
// pooled, fixed-size pages (see internal/page). It backs both Client's
// send/recv queues and Host's event stream.
//
// Invariant: size() == sum(page sizes) - readOffset - (tailCapacity -
// writeOffset); a fully drained stream releases every page, so
// size()==0 implies readOffset==writeOffset==0.
package memstream

import "code.hybscloud.com/netcore/internal/page"

// lruCap is 2*K with K=2, per the component contract: a MemStream
// retains up to this many recently freed pages before returning them
// to the pool, so a write immediately following a drain doesn't pay a
// pool round-trip.
const lruCap = 4

// MemStream is an ordered sequence of pages plus a read cursor into
// the head page and a write cursor into the tail page.
type MemStream struct {
	pool  page.Pool
	pages []*page.Page

	readOffset  int
	writeOffset int
	size        int

	lru []*page.Page
}

// New creates an empty MemStream backed by pool.
func New(pool page.Pool) *MemStream {
	return &MemStream{pool: pool}
}

// Size returns the number of readable bytes currently buffered.
func (ms *MemStream) Size() int { return ms.size }

func (ms *MemStream) acquirePage(hint int) (*page.Page, error) {
	if n := len(ms.lru); n > 0 {
		pg := ms.lru[n-1]
		ms.lru = ms.lru[:n-1]
		return pg, nil
	}
	return ms.pool.Alloc(hint)
}

func (ms *MemStream) releasePage(pg *page.Page) {
	if len(ms.lru) < lruCap {
		ms.lru = append(ms.lru, pg)
		return
	}
	ms.pool.Free(ms.lru[0])
	copy(ms.lru, ms.lru[1:])
	ms.lru[len(ms.lru)-1] = pg
}

// Write appends bytes to the tail of the stream, allocating new pages
// as needed. It returns the number of bytes actually written; this is
// less than len(b) only when the pool is exhausted, in which case the
// caller must treat the shortfall as back-pressure and retry later.
func (ms *MemStream) Write(b []byte) int {
	written := 0
	for written < len(b) {
		if len(ms.pages) == 0 || ms.writeOffset == ms.pages[len(ms.pages)-1].Size() {
			pg, err := ms.acquirePage(ms.size)
			if err != nil {
				return written
			}
			ms.pages = append(ms.pages, pg)
			ms.writeOffset = 0
		}
		tail := ms.pages[len(ms.pages)-1]
		n := copy(tail.Bytes()[ms.writeOffset:], b[written:])
		ms.writeOffset += n
		written += n
		ms.size += n
	}
	return written
}

// Read removes up to n bytes from the head of the stream into buf
// (which must have length >= n, or n is capped to len(buf) by the
// caller's own bookkeeping — callers here always size buf exactly).
// A nil buf behaves like Drop: bytes are consumed without being
// copied out.
func (ms *MemStream) Read(buf []byte, n int) int {
	return ms.consume(buf, n)
}

// Peek behaves like Read but does not remove bytes from the stream.
func (ms *MemStream) Peek(buf []byte, n int) int {
	if n > ms.size {
		n = ms.size
	}
	got := 0
	pageIdx := 0
	offset := ms.readOffset
	for got < n && pageIdx < len(ms.pages) {
		pg := ms.pages[pageIdx]
		avail := pg.Size() - offset
		if pageIdx == len(ms.pages)-1 {
			if w := ms.writeOffset - offset; w < avail {
				avail = w
			}
		}
		if avail <= 0 {
			pageIdx++
			offset = 0
			continue
		}
		want := n - got
		if want > avail {
			want = avail
		}
		if buf != nil {
			copy(buf[got:got+want], pg.Bytes()[offset:offset+want])
		}
		got += want
		pageIdx++
		offset = 0
	}
	return got
}

// Drop discards up to n bytes from the head of the stream.
func (ms *MemStream) Drop(n int) int {
	return ms.consume(nil, n)
}

func (ms *MemStream) consume(buf []byte, n int) int {
	if n > ms.size {
		n = ms.size
	}
	got := 0
	for got < n {
		head := ms.pages[0]
		tailIsHead := len(ms.pages) == 1
		avail := head.Size() - ms.readOffset
		if tailIsHead {
			if w := ms.writeOffset - ms.readOffset; w < avail {
				avail = w
			}
		}
		want := n - got
		if want > avail {
			want = avail
		}
		if buf != nil {
			copy(buf[got:got+want], head.Bytes()[ms.readOffset:ms.readOffset+want])
		}
		ms.readOffset += want
		got += want
		ms.size -= want

		if ms.readOffset == head.Size() || (tailIsHead && ms.readOffset == ms.writeOffset) {
			if ms.readOffset == head.Size() {
				ms.pages = ms.pages[1:]
				ms.releasePage(head)
				ms.readOffset = 0
				if len(ms.pages) == 0 {
					ms.writeOffset = 0
				}
			} else if tailIsHead {
				// Head==tail and fully drained mid-page: release it
				// and reset cursors so size()==0 implies no pages
				// retained beyond what releasePage keeps.
				ms.pages = ms.pages[1:]
				ms.releasePage(head)
				ms.readOffset = 0
				ms.writeOffset = 0
			}
		}
	}
	return got
}

// Flat exposes the first contiguous readable window, for zero-copy
// socket writes. Returns nil if the stream is empty.
func (ms *MemStream) Flat() []byte {
	if ms.size == 0 || len(ms.pages) == 0 {
		return nil
	}
	head := ms.pages[0]
	end := head.Size()
	if len(ms.pages) == 1 {
		end = ms.writeOffset
	}
	return head.Bytes()[ms.readOffset:end]
}

// Clear discards all buffered bytes and releases every page.
func (ms *MemStream) Clear() {
	ms.Drop(ms.size)
}
