// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build unix

package poller

import (
	"time"

	"golang.org/x/sys/unix"
)

func init() {
	register(driver{device: SELECT, performance: 10, open: openSelect})
}

// selectPoller is the lowest-common-denominator device: correct on
// every unix platform, but limited to file descriptors below
// FD_SETSIZE and O(n) per Wait call. Kept mainly so AUTO has a floor
// to fall back to and so SELECT can be requested explicitly.
type selectPoller struct {
	masks  map[int]Mask
	users  map[int]any
	ready  []Event
	pos    int
	closed bool
}

func openSelect(hint int) (Poller, error) {
	if hint <= 0 {
		hint = 64
	}
	return &selectPoller{
		masks: make(map[int]Mask, hint),
		users: make(map[int]any, hint),
	}, nil
}

func (p *selectPoller) Add(fd int, mask Mask, user any) error {
	if p.closed {
		return ErrClosed
	}
	p.masks[fd] = mask
	p.users[fd] = user
	return nil
}

func (p *selectPoller) Set(fd int, mask Mask) error {
	if p.closed {
		return ErrClosed
	}
	if _, ok := p.masks[fd]; !ok {
		return ErrDeviceUnavailable
	}
	p.masks[fd] = mask
	return nil
}

func (p *selectPoller) Del(fd int) error {
	if p.closed {
		return ErrClosed
	}
	delete(p.masks, fd)
	delete(p.users, fd)
	return nil
}

func setFd(set *unix.FdSet, fd int) {
	const wordBits = 64
	set.Bits[fd/wordBits] |= 1 << (uint(fd) % wordBits)
}

func isFdSet(set *unix.FdSet, fd int) bool {
	const wordBits = 64
	return set.Bits[fd/wordBits]&(1<<(uint(fd)%wordBits)) != 0
}

func (p *selectPoller) Wait(timeout time.Duration) (int, error) {
	if p.closed {
		return 0, ErrClosed
	}
	var rfds, wfds unix.FdSet
	maxFd := -1
	for fd, mask := range p.masks {
		if mask&Read != 0 {
			setFd(&rfds, fd)
		}
		if mask&Write != 0 {
			setFd(&wfds, fd)
		}
		if fd > maxFd {
			maxFd = fd
		}
	}
	p.ready = p.ready[:0]
	if maxFd < 0 {
		// nothing registered: honor the timeout as a plain sleep.
		if timeout > 0 {
			time.Sleep(timeout)
		}
		return 0, nil
	}
	var tv *unix.Timeval
	if timeout >= 0 {
		t := unix.NsecToTimeval(timeout.Nanoseconds())
		tv = &t
	}
	_, err := unix.Select(maxFd+1, &rfds, &wfds, nil, tv)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	for fd, mask := range p.masks {
		var m Mask
		if mask&Read != 0 && isFdSet(&rfds, fd) {
			m |= Read
		}
		if mask&Write != 0 && isFdSet(&wfds, fd) {
			m |= Write
		}
		if m != 0 {
			p.ready = append(p.ready, Event{Fd: fd, Mask: m, User: p.users[fd]})
		}
	}
	p.pos = 0
	return len(p.ready), nil
}

func (p *selectPoller) Event() (Event, bool) {
	if p.pos >= len(p.ready) {
		return Event{}, false
	}
	ev := p.ready[p.pos]
	p.pos++
	return ev, true
}

func (p *selectPoller) Close() error {
	p.closed = true
	return nil
}
