// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package value implements a small tagged union used as the key/value
// currency of internal/dict: an integer, a byte string (owned or a
// zero-copy reference into caller memory), or an opaque pointer handle.
//
// A Value caches its hash so repeated dict lookups on the same key
// avoid rehashing; the cache is invalidated explicitly, never silently,
// because callers are expected to treat a Value as immutable once it
// is used as a key.
package value

import "github.com/OneOfOne/xxhash"

// Kind identifies which arm of the union is populated.
type Kind uint8

const (
	KindInt Kind = iota
	KindStr
	KindPtr
)

// Value is a tagged union of {Int, Str, Ptr} plus a lazily computed,
// cached hash. Str values distinguish an owned copy from a reference
// into caller-owned memory; the distinction only matters for callers
// that mutate their buffers after handing them to a Value (a Ref stays
// live over that memory, an Owned copy never aliases it).
type Value struct {
	kind Kind
	i    int64
	s    []byte
	ref  bool
	p    any

	hash      uint64
	hashValid bool
}

// Int returns an integer-tagged Value.
func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// Str returns a Value that owns a copy of b.
func Str(b []byte) Value {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Value{kind: KindStr, s: cp, ref: false}
}

// StrRef returns a Value that holds a zero-copy view into b. The
// caller must keep b alive and unmodified for as long as the Value
// (and anything derived from it, e.g. a dict entry) is in use.
func StrRef(b []byte) Value {
	return Value{kind: KindStr, s: b, ref: true}
}

// Ptr returns an opaque-pointer Value. The core never dereferences p;
// it is stored and returned verbatim.
func Ptr(p any) Value { return Value{kind: KindPtr, p: p} }

// Kind reports the union arm populated.
func (v Value) Kind() Kind { return v.kind }

// Int64 returns the integer payload. Only meaningful when Kind() == KindInt.
func (v Value) Int64() int64 { return v.i }

// Bytes returns the string payload. Only meaningful when Kind() == KindStr.
// The returned slice aliases the Value's storage; callers must not
// mutate it.
func (v Value) Bytes() []byte { return v.s }

// IsRef reports whether the Str payload is a zero-copy reference
// rather than an owned copy.
func (v Value) IsRef() bool { return v.ref }

// Ptr returns the opaque payload. Only meaningful when Kind() == KindPtr.
func (v Value) Ptr() any { return v.p }

// Equal reports byte-exact/value-exact equality. Values of different
// Kind are never equal; comparing across kinds is not an error, it is
// simply false (callers that need strict kind checking should compare
// Kind() themselves before treating a mismatch as a caller bug, per
// the "comparison of two Values of different tag is forbidden as a key
// operation" invariant — Dict does not check kinds either: a lookup key
// of another kind simply matches nothing).
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindInt:
		return v.i == o.i
	case KindStr:
		return bytesEqual(v.s, o.s)
	case KindPtr:
		return v.p == o.p
	default:
		return false
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Hash returns the cached hash, computing and caching it on first use.
// Integer keys hash to their own bits (matching the C source's direct
// bucket indexing for integer-keyed entries); string keys hash via
// xxhash; pointer keys hash by their runtime identity, via xxhash of
// the formatted address and dynamic type (see hashPtr), since Go offers
// no stable integer representation of an arbitrary interface value —
// pointer-keyed dict use is expected to be rare (most core code keys
// by handle or by byte-string).
func (v *Value) Hash() uint64 {
	if v.hashValid {
		return v.hash
	}
	switch v.kind {
	case KindInt:
		v.hash = uint64(v.i)
	case KindStr:
		v.hash = xxhash.Checksum64(v.s)
	case KindPtr:
		v.hash = hashPtr(v.p)
	}
	v.hashValid = true
	return v.hash
}

// Invalidate clears the cached hash. Callers must call this if they
// mutate the backing bytes of a StrRef Value in place; Dict never does
// this itself, since a live key's hash must never change under it.
func (v *Value) Invalidate() { v.hashValid = false }
