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
	register(driver{device: POLL, performance: 50, open: openPoll})
}

type pollPoller struct {
	fds    []unix.PollFd
	users  map[int]any
	idx    map[int]int
	ready  []Event
	pos    int
	closed bool
}

func openPoll(hint int) (Poller, error) {
	if hint <= 0 {
		hint = 64
	}
	return &pollPoller{
		users: make(map[int]any, hint),
		idx:   make(map[int]int, hint),
	}, nil
}

func toPollEvents(m Mask) int16 {
	var e int16
	if m&Read != 0 {
		e |= unix.POLLIN
	}
	if m&Write != 0 {
		e |= unix.POLLOUT
	}
	return e
}

func (p *pollPoller) Add(fd int, mask Mask, user any) error {
	if p.closed {
		return ErrClosed
	}
	if _, exists := p.idx[fd]; exists {
		return p.Set(fd, mask)
	}
	p.idx[fd] = len(p.fds)
	p.fds = append(p.fds, unix.PollFd{Fd: int32(fd), Events: toPollEvents(mask)})
	p.users[fd] = user
	return nil
}

func (p *pollPoller) Set(fd int, mask Mask) error {
	if p.closed {
		return ErrClosed
	}
	i, ok := p.idx[fd]
	if !ok {
		return ErrDeviceUnavailable
	}
	p.fds[i].Events = toPollEvents(mask)
	return nil
}

func (p *pollPoller) Del(fd int) error {
	if p.closed {
		return ErrClosed
	}
	i, ok := p.idx[fd]
	if !ok {
		return nil
	}
	last := len(p.fds) - 1
	p.fds[i] = p.fds[last]
	p.fds = p.fds[:last]
	delete(p.idx, fd)
	delete(p.users, fd)
	if i < len(p.fds) {
		p.idx[int(p.fds[i].Fd)] = i
	}
	return nil
}

func (p *pollPoller) Wait(timeout time.Duration) (int, error) {
	if p.closed {
		return 0, ErrClosed
	}
	millis := -1
	if timeout >= 0 {
		millis = int(timeout / time.Millisecond)
	}
	n, err := unix.Poll(p.fds, millis)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	p.ready = p.ready[:0]
	if n > 0 {
		for _, pf := range p.fds {
			if pf.Revents == 0 {
				continue
			}
			var m Mask
			if pf.Revents&unix.POLLIN != 0 {
				m |= Read
			}
			if pf.Revents&unix.POLLOUT != 0 {
				m |= Write
			}
			if pf.Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
				m |= Err
			}
			p.ready = append(p.ready, Event{Fd: int(pf.Fd), Mask: m, User: p.users[int(pf.Fd)]})
		}
	}
	p.pos = 0
	return len(p.ready), nil
}

func (p *pollPoller) Event() (Event, bool) {
	if p.pos >= len(p.ready) {
		return Event{}, false
	}
	ev := p.ready[p.pos]
	p.pos++
	return ev, true
}

func (p *pollPoller) Close() error {
	p.closed = true
	return nil
}
