// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build darwin || dragonfly || freebsd || netbsd || openbsd

package poller

import (
	"time"

	"golang.org/x/sys/unix"
)

func init() {
	register(driver{device: KQUEUE, performance: 100, open: openKqueue})
}

type kqueuePoller struct {
	fd      int
	users   map[int]any
	masks   map[int]Mask
	changes []unix.Kevent_t
	events  []unix.Kevent_t
	ready   []Event
	pos     int
	closed  bool
}

func openKqueue(hint int) (Poller, error) {
	fd, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	if hint <= 0 {
		hint = 64
	}
	return &kqueuePoller{
		fd:     fd,
		users:  make(map[int]any, hint),
		masks:  make(map[int]Mask, hint),
		events: make([]unix.Kevent_t, hint),
	}, nil
}

func (p *kqueuePoller) applyMask(fd int, mask Mask) error {
	var changes []unix.Kevent_t
	changes = append(changes, unix.Kevent_t{
		Ident: uint64(fd), Filter: unix.EVFILT_READ,
		Flags: flagFor(mask&Read != 0),
	})
	changes = append(changes, unix.Kevent_t{
		Ident: uint64(fd), Filter: unix.EVFILT_WRITE,
		Flags: flagFor(mask&Write != 0),
	})
	_, err := unix.Kevent(p.fd, changes, nil, nil)
	return err
}

func flagFor(enable bool) uint16 {
	if enable {
		return unix.EV_ADD | unix.EV_ENABLE
	}
	return unix.EV_DELETE
}

func (p *kqueuePoller) Add(fd int, mask Mask, user any) error {
	if p.closed {
		return ErrClosed
	}
	if err := p.applyMask(fd, mask); err != nil {
		return err
	}
	p.users[fd] = user
	p.masks[fd] = mask
	return nil
}

func (p *kqueuePoller) Set(fd int, mask Mask) error {
	if p.closed {
		return ErrClosed
	}
	old := p.masks[fd]
	if old&Read != 0 && mask&Read == 0 {
		unix.Kevent(p.fd, []unix.Kevent_t{{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE}}, nil, nil)
	}
	if old&Write != 0 && mask&Write == 0 {
		unix.Kevent(p.fd, []unix.Kevent_t{{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE}}, nil, nil)
	}
	if err := p.applyMask(fd, mask); err != nil {
		return err
	}
	p.masks[fd] = mask
	return nil
}

func (p *kqueuePoller) Del(fd int) error {
	if p.closed {
		return ErrClosed
	}
	unix.Kevent(p.fd, []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE},
		{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE},
	}, nil, nil)
	delete(p.users, fd)
	delete(p.masks, fd)
	return nil
}

func (p *kqueuePoller) Wait(timeout time.Duration) (int, error) {
	if p.closed {
		return 0, ErrClosed
	}
	var ts *unix.Timespec
	if timeout >= 0 {
		t := unix.NsecToTimespec(timeout.Nanoseconds())
		ts = &t
	}
	n, err := unix.Kevent(p.fd, nil, p.events, ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	p.ready = p.ready[:0]
	for i := 0; i < n; i++ {
		fd := int(p.events[i].Ident)
		user, ok := p.users[fd]
		if !ok {
			continue
		}
		var m Mask
		switch p.events[i].Filter {
		case unix.EVFILT_READ:
			m = Read
		case unix.EVFILT_WRITE:
			m = Write
		}
		if p.events[i].Flags&unix.EV_EOF != 0 {
			m |= Err
		}
		p.ready = append(p.ready, Event{Fd: fd, Mask: m, User: user})
	}
	p.pos = 0
	if n == len(p.events) {
		// The result array came back full: double it so the next Wait
		// can report more than this batch without truncating.
		p.events = make([]unix.Kevent_t, len(p.events)*2)
	}
	return len(p.ready), nil
}

func (p *kqueuePoller) Event() (Event, bool) {
	if p.pos >= len(p.ready) {
		return Event{}, false
	}
	ev := p.ready[p.pos]
	p.pos++
	return ev, true
}

func (p *kqueuePoller) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return unix.Close(p.fd)
}
