// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package netcore

import "errors"

var (
	// ErrWouldBlock reports a non-blocking operation that has no
	// progress to report yet; it is never fatal and never surfaces as
	// a close.
	ErrWouldBlock = errors.New("netcore: would block")

	// ErrClosed reports an operation on a Client or client handle that
	// is no longer Established.
	ErrClosed = errors.New("netcore: closed")

	// ErrResourceExhausted reports page, slot, or registry capacity
	// exhaustion. Existing connections are unaffected.
	ErrResourceExhausted = errors.New("netcore: resource exhausted")

	// ErrInvalidHandle reports a handle that does not resolve to a
	// live registry slot, including a stale handle from a reused slot.
	ErrInvalidHandle = errors.New("netcore: invalid handle")

	// ErrPrecondition reports a caller bug: a negative size/offset, or
	// an operation attempted in the wrong state.
	ErrPrecondition = errors.New("netcore: precondition violation")

	// ErrTooLong reports a payload exceeding the active framing mode's
	// maximum length.
	ErrTooLong = errors.New("netcore: message too long")
)
