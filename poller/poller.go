// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package poller provides a device-agnostic readiness poller over the
// OS's best available multiplexer (epoll, kqueue, poll, or select),
// mirroring the driver-table design of the reference host: callers
// pick a Device tag, or AUTO to let the package choose the most
// capable one available on the current platform.
package poller

import (
	"errors"
	"time"
)

// Mask is a bitmask of readiness conditions.
type Mask uint32

const (
	Read  Mask = 1 << iota // socket is readable
	Write                  // socket is writable
	Err                    // socket has a pending error or hangup
)

// Device selects the underlying multiplexer implementation.
type Device int

const (
	// AUTO lets New pick the best device compiled in for this platform.
	AUTO Device = iota
	SELECT
	POLL
	EPOLL
	KQUEUE
)

// ErrDeviceUnavailable reports that the requested Device has no
// implementation registered for the current platform.
var ErrDeviceUnavailable = errors.New("poller: device unavailable")

// ErrClosed reports an operation attempted on a closed Poller.
var ErrClosed = errors.New("poller: closed")

// Event is one readiness notification returned by Wait/Event.
type Event struct {
	Fd   int
	Mask Mask
	User any
}

// Poller multiplexes readiness over a set of file descriptors.
type Poller interface {
	// Add registers fd for the conditions in mask, associating an
	// opaque user value returned with every event on fd.
	Add(fd int, mask Mask, user any) error
	// Set replaces the interest mask previously registered for fd.
	Set(fd int, mask Mask) error
	// Del unregisters fd for later Wait calls. Events already queued
	// for it by the last Wait are not removed; Event still returns them.
	Del(fd int) error
	// Wait blocks up to the given timeout (negative means forever)
	// for at least one ready descriptor, refilling the internal event
	// queue drained by Event. It returns the number of ready
	// descriptors, which may be zero on timeout.
	Wait(timeout time.Duration) (int, error)
	// Event pops one event from the queue filled by the last Wait
	// call. ok is false once the queue is empty.
	Event() (ev Event, ok bool)
	// Close releases the underlying OS resources.
	Close() error
}

// driver registers a Device's constructor. Platform-specific files
// populate this via init().
type driver struct {
	device      Device
	performance int
	open        func(hint int) (Poller, error)
}

var drivers []driver

func register(d driver) { drivers = append(drivers, d) }

// New creates a Poller using the requested Device, or the
// highest-performance device compiled in when device is AUTO. hint is
// an advisory initial capacity (number of descriptors).
func New(device Device, hint int) (Poller, error) {
	if device != AUTO {
		for _, d := range drivers {
			if d.device == device {
				return d.open(hint)
			}
		}
		return nil, ErrDeviceUnavailable
	}
	best := -1
	bestPerf := -1
	for i, d := range drivers {
		if d.performance > bestPerf {
			bestPerf = d.performance
			best = i
		}
	}
	if best < 0 {
		return nil, ErrDeviceUnavailable
	}
	return drivers[best].open(hint)
}
