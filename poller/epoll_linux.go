// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package poller

import (
	"time"

	"golang.org/x/sys/unix"
)

func init() {
	register(driver{device: EPOLL, performance: 100, open: openEpoll})
}

type epollPoller struct {
	fd     int
	users  map[int]any
	events []unix.EpollEvent
	ready  []Event
	pos    int
	closed bool
}

func openEpoll(hint int) (Poller, error) {
	fd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, err
	}
	if hint <= 0 {
		hint = 64
	}
	return &epollPoller{
		fd:     fd,
		users:  make(map[int]any, hint),
		events: make([]unix.EpollEvent, hint),
	}, nil
}

func toEpollEvents(m Mask) uint32 {
	var e uint32
	if m&Read != 0 {
		e |= unix.EPOLLIN
	}
	if m&Write != 0 {
		e |= unix.EPOLLOUT
	}
	e |= unix.EPOLLERR | unix.EPOLLHUP
	return e
}

func fromEpollEvents(e uint32) Mask {
	var m Mask
	if e&unix.EPOLLIN != 0 {
		m |= Read
	}
	if e&unix.EPOLLOUT != 0 {
		m |= Write
	}
	if e&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		m |= Err
	}
	return m
}

func (p *epollPoller) Add(fd int, mask Mask, user any) error {
	if p.closed {
		return ErrClosed
	}
	ev := unix.EpollEvent{Events: toEpollEvents(mask), Fd: int32(fd)}
	if err := unix.EpollCtl(p.fd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return err
	}
	p.users[fd] = user
	return nil
}

func (p *epollPoller) Set(fd int, mask Mask) error {
	if p.closed {
		return ErrClosed
	}
	ev := unix.EpollEvent{Events: toEpollEvents(mask), Fd: int32(fd)}
	return unix.EpollCtl(p.fd, unix.EPOLL_CTL_MOD, fd, &ev)
}

func (p *epollPoller) Del(fd int) error {
	if p.closed {
		return ErrClosed
	}
	delete(p.users, fd)
	return unix.EpollCtl(p.fd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (p *epollPoller) Wait(timeout time.Duration) (int, error) {
	if p.closed {
		return 0, ErrClosed
	}
	millis := -1
	if timeout >= 0 {
		millis = int(timeout / time.Millisecond)
	}
	n, err := unix.EpollWait(p.fd, p.events, millis)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	p.ready = p.ready[:0]
	for i := 0; i < n; i++ {
		fd := int(p.events[i].Fd)
		user, ok := p.users[fd]
		if !ok {
			continue
		}
		p.ready = append(p.ready, Event{Fd: fd, Mask: fromEpollEvents(p.events[i].Events), User: user})
	}
	p.pos = 0
	if n == len(p.events) {
		// The result array came back full: double it so the next Wait
		// can report more than this batch without truncating.
		p.events = make([]unix.EpollEvent, len(p.events)*2)
	}
	return len(p.ready), nil
}

func (p *epollPoller) Event() (Event, bool) {
	if p.pos >= len(p.ready) {
		return Event{}, false
	}
	ev := p.ready[p.pos]
	p.pos++
	return ev, true
}

func (p *epollPoller) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return unix.Close(p.fd)
}
