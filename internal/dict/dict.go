// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package dict implements an open-hash map keyed by value.Value
// (integer or by-value byte string), with a small LRU lookup cache and
// power-of-two bucket resizing.
//
// Entries live in an arena (a growable slice) addressed by a stable
// "slot id" — callers that cache a slot id may use it as an O(1)
// handle for update/delete/iteration. Slot ids are invalidated on
// delete; reusing a deleted slot id is a caller bug.
//
// Iteration via PosHead/PosNext walks entries in insertion order
// through an intrusive doubly linked list independent of the bucket
// array, so iteration order is stable across resizes and across
// unrelated inserts/deletes — mirroring the slot-id walk in the C
// dictionary this package is modeled on.
package dict

import "code.hybscloud.com/netcore/internal/value"

const (
	lruSize        = 128
	initialBuckets = 16
)

type entry struct {
	inUse bool
	key   value.Value
	val   value.Value
	hash  uint64

	bucketNext int32 // next entry in the same bucket chain, -1 if none

	iterNext int32 // insertion-order list, -1 if none
	iterPrev int32

	freeNext int32 // free-list link when not inUse
}

type lruLine struct {
	valid bool
	hash  uint64
	slot  int32
}

// Dict is an open-hash table keyed by value.Value.
type Dict struct {
	buckets []int32 // bucket head slot index, -1 if empty
	mask    uint64

	entries []entry
	freeTop int32 // head of the free list, -1 if none

	iterHead int32
	iterTail int32

	size int

	lru [lruSize]lruLine
}

// New creates an empty Dict. hint sizes the initial bucket count
// (rounded up to a power of two, minimum 16).
func New(hint int) *Dict {
	n := initialBuckets
	for n < hint {
		n <<= 1
	}
	d := &Dict{
		buckets:  make([]int32, n),
		mask:     uint64(n - 1),
		freeTop:  -1,
		iterHead: -1,
		iterTail: -1,
	}
	for i := range d.buckets {
		d.buckets[i] = -1
	}
	return d
}

// Len reports the number of live entries.
func (d *Dict) Len() int { return d.size }

func (d *Dict) lruIndex(hash uint64) int {
	return int((hash ^ (hash >> 16)) & (lruSize - 1))
}

func (d *Dict) lruProbe(key value.Value, hash uint64) (int32, bool) {
	li := d.lruIndex(hash)
	line := &d.lru[li]
	if !line.valid || line.hash != hash || line.slot < 0 {
		return -1, false
	}
	e := &d.entries[line.slot]
	if !e.inUse || e.hash != hash || !e.key.Equal(key) {
		return -1, false
	}
	return line.slot, true
}

func (d *Dict) lruStore(hash uint64, slot int32) {
	li := d.lruIndex(hash)
	d.lru[li] = lruLine{valid: true, hash: hash, slot: slot}
}

func (d *Dict) lruInvalidateSlot(slot int32) {
	for i := range d.lru {
		if d.lru[i].valid && d.lru[i].slot == slot {
			d.lru[i].valid = false
		}
	}
}

// find returns the slot holding key, or -1 if absent.
func (d *Dict) find(key *value.Value) int32 {
	hash := key.Hash()
	if slot, ok := d.lruProbe(*key, hash); ok {
		return slot
	}
	bi := hash & d.mask
	for s := d.buckets[bi]; s >= 0; s = d.entries[s].bucketNext {
		e := &d.entries[s]
		if e.hash == hash && e.key.Equal(*key) {
			d.lruStore(hash, s)
			return s
		}
	}
	return -1
}

func (d *Dict) allocSlot() int32 {
	if d.freeTop >= 0 {
		s := d.freeTop
		d.freeTop = d.entries[s].freeNext
		return s
	}
	d.entries = append(d.entries, entry{})
	return int32(len(d.entries) - 1)
}

func (d *Dict) linkBucket(slot int32, hash uint64) {
	bi := hash & d.mask
	d.entries[slot].bucketNext = d.buckets[bi]
	d.buckets[bi] = slot
}

func (d *Dict) unlinkBucket(slot int32, hash uint64) {
	bi := hash & d.mask
	prev := int32(-1)
	for s := d.buckets[bi]; s >= 0; s = d.entries[s].bucketNext {
		if s == slot {
			if prev < 0 {
				d.buckets[bi] = d.entries[s].bucketNext
			} else {
				d.entries[prev].bucketNext = d.entries[s].bucketNext
			}
			return
		}
		prev = s
	}
}

func (d *Dict) linkIter(slot int32) {
	d.entries[slot].iterPrev = d.iterTail
	d.entries[slot].iterNext = -1
	if d.iterTail >= 0 {
		d.entries[d.iterTail].iterNext = slot
	} else {
		d.iterHead = slot
	}
	d.iterTail = slot
}

func (d *Dict) unlinkIter(slot int32) {
	e := &d.entries[slot]
	if e.iterPrev >= 0 {
		d.entries[e.iterPrev].iterNext = e.iterNext
	} else {
		d.iterHead = e.iterNext
	}
	if e.iterNext >= 0 {
		d.entries[e.iterNext].iterPrev = e.iterPrev
	} else {
		d.iterTail = e.iterPrev
	}
}

func (d *Dict) insert(key, val value.Value, hash uint64) int32 {
	slot := d.allocSlot()
	d.entries[slot] = entry{
		inUse: true,
		key:   key,
		val:   val,
		hash:  hash,
	}
	d.linkBucket(slot, hash)
	d.linkIter(slot)
	d.size++
	d.lruStore(hash, slot)
	if d.size >= 2*len(d.buckets) {
		d.resize(len(d.buckets) * 2)
	}
	return slot
}

func (d *Dict) resize(newBucketCount int) {
	buckets := make([]int32, newBucketCount)
	for i := range buckets {
		buckets[i] = -1
	}
	mask := uint64(newBucketCount - 1)
	// Re-link every live entry into the new bucket array without
	// rehashing keys: cached hashes move with the entry.
	for s := d.iterHead; s >= 0; s = d.entries[s].iterNext {
		e := &d.entries[s]
		bi := e.hash & mask
		e.bucketNext = buckets[bi]
		buckets[bi] = int32(s)
	}
	d.buckets = buckets
	d.mask = mask
	for i := range d.lru {
		d.lru[i].valid = false
	}
}

// Add inserts key→val. Returns ok=false without modifying the dict if
// key is already present.
func (d *Dict) Add(key, val value.Value) (slot int, ok bool) {
	hash := key.Hash()
	if s := d.find(&key); s >= 0 {
		return int(s), false
	}
	return int(d.insert(key, val, hash)), true
}

// Update inserts key→val, replacing any existing value for key.
// Returns the slot id.
func (d *Dict) Update(key, val value.Value) int {
	hash := key.Hash()
	if s := d.find(&key); s >= 0 {
		d.entries[s].val = val
		return int(s)
	}
	return int(d.insert(key, val, hash))
}

// Search returns the value for key, if present.
func (d *Dict) Search(key value.Value) (value.Value, int, bool) {
	if s := d.find(&key); s >= 0 {
		return d.entries[s].val, int(s), true
	}
	return value.Value{}, -1, false
}

// Delete removes key. Returns false if key was absent.
func (d *Dict) Delete(key value.Value) bool {
	s := d.find(&key)
	if s < 0 {
		return false
	}
	d.deleteSlot(s)
	return true
}

func (d *Dict) deleteSlot(s int32) {
	e := &d.entries[s]
	d.unlinkBucket(s, e.hash)
	d.lruInvalidateSlot(s)
	staleNext := e.iterNext
	d.unlinkIter(s)
	*e = entry{inUse: false, freeNext: d.freeTop, iterNext: staleNext}
	d.freeTop = s
	d.size--
}

// PosGetKey returns the key stored at slot, if still live.
func (d *Dict) PosGetKey(slot int) (value.Value, bool) {
	if !d.validSlot(slot) {
		return value.Value{}, false
	}
	return d.entries[slot].key, true
}

// PosGetVal returns the value stored at slot, if still live.
func (d *Dict) PosGetVal(slot int) (value.Value, bool) {
	if !d.validSlot(slot) {
		return value.Value{}, false
	}
	return d.entries[slot].val, true
}

// PosUpdate overwrites the value at slot in place. Returns false if
// slot is not a live entry.
func (d *Dict) PosUpdate(slot int, val value.Value) bool {
	if !d.validSlot(slot) {
		return false
	}
	d.entries[slot].val = val
	return true
}

// PosDelete removes the entry at slot. Returns false if slot was not
// a live entry.
func (d *Dict) PosDelete(slot int) bool {
	if !d.validSlot(slot) {
		return false
	}
	d.deleteSlot(int32(slot))
	return true
}

func (d *Dict) validSlot(slot int) bool {
	return slot >= 0 && slot < len(d.entries) && d.entries[slot].inUse
}

// PosHead returns the first live slot in insertion order, if any.
func (d *Dict) PosHead() (int, bool) {
	if d.iterHead < 0 {
		return 0, false
	}
	return int(d.iterHead), true
}

// PosNext returns the slot following pos in insertion order, if any.
// pos need not itself still be live.
func (d *Dict) PosNext(pos int) (int, bool) {
	if pos < 0 || pos >= len(d.entries) {
		return 0, false
	}
	n := d.entries[pos].iterNext
	if n < 0 {
		return 0, false
	}
	return int(n), true
}

// Clear removes every entry.
func (d *Dict) Clear() {
	for pos, ok := d.PosHead(); ok; pos, ok = d.PosHead() {
		d.PosDelete(pos)
	}
}
