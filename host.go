// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package netcore

import (
	"encoding/binary"
	"net"
	"time"

	"golang.org/x/sys/unix"

	"code.hybscloud.com/netcore/internal/memstream"
	"code.hybscloud.com/netcore/internal/page"
)

// EventKind identifies a record pushed into a Host's event stream.
type EventKind uint16

const (
	EventNew   EventKind = 0
	EventData  EventKind = 1
	EventLeave EventKind = 2
	EventTimer EventKind = 3
)

const eventHeaderLen = 14

// maxHandleSlots is the ceiling imposed by the handle format
// (generation<<16 | slot): a slot index must fit in 16 bits.
const maxHandleSlots = 0x10000

// generationWrap matches the reference host's index wraparound so a
// generation counter never collides with the reserved top bit range.
const generationWrap = 0x7fff

type hostSlot struct {
	inUse  bool
	handle uint32
	tag    int32
	client *Client
	prev   int
	next   int
}

// Host is a listening socket plus a fixed-capacity client registry and
// an outgoing event MemStream the owner drains with Read. Like
// Client, it is single-threaded: every public method must be called
// from one goroutine, and Process must be called regularly to pump
// accepts, I/O, and idle sweeping.
type Host struct {
	opts Options
	pool page.Pool

	listenFd int
	port     int
	running  bool

	slots     []hostSlot
	freeList  []int
	headIdx   int
	tailIdx   int
	count     int
	generation int

	events *memstream.MemStream
	buffer []byte
}

// NewHost creates an idle Host backed by pool for its clients' and
// event stream's queues.
func NewHost(pool page.Pool, opts ...Option) *Host {
	o := defaultOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.MaxClients <= 0 || o.MaxClients > maxHandleSlots {
		o.MaxClients = maxHandleSlots
	}
	return &Host{
		opts:       o,
		pool:       pool,
		listenFd:   -1,
		headIdx:    -1,
		tailIdx:    -1,
		generation: 1,
		events:     memstream.New(pool),
		buffer:     make([]byte, o.ScratchSize),
	}
}

// Port returns the bound listening port, valid after a successful
// Startup.
func (h *Host) Port() int { return h.port }

// Startup binds and listens on port (0 picks an ephemeral port).
func (h *Host) Startup(port int) error {
	h.Shutdown()

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return err
	}
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: port}); err != nil {
		unix.Close(fd)
		return err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return err
	}
	if err := unix.Listen(fd, 10000); err != nil {
		unix.Close(fd)
		return err
	}
	sn, err := unix.Getsockname(fd)
	if err != nil {
		unix.Close(fd)
		return err
	}
	if in4, ok := sn.(*unix.SockaddrInet4); ok {
		h.port = in4.Port
	}

	h.listenFd = fd
	h.generation = 1
	h.count = 0
	h.running = true
	return nil
}

// Shutdown closes every live client (pushing LEAVE events), clears the
// event stream, and closes the listener.
func (h *Host) Shutdown() {
	for {
		handle, ok := h.Head()
		if !ok {
			break
		}
		h.Close(handle, 0)
	}
	h.events.Clear()
	if h.listenFd >= 0 {
		unix.Close(h.listenFd)
	}
	h.listenFd = -1
	h.running = false
	h.count = 0
	h.generation = 1
}

func (h *Host) pushEvent(kind EventKind, wparam, lparam int32, payload []byte) {
	var head [eventHeaderLen]byte
	size := len(payload)
	if size < 0 {
		size = 0
	}
	binary.LittleEndian.PutUint32(head[0:4], uint32(size+eventHeaderLen))
	binary.LittleEndian.PutUint16(head[4:6], uint16(kind))
	binary.LittleEndian.PutUint32(head[6:10], uint32(wparam))
	binary.LittleEndian.PutUint32(head[10:14], uint32(lparam))
	h.events.Write(head[:])
	if size > 0 {
		h.events.Write(payload[:size])
	}
}

func (h *Host) allocSlot() (int, bool) {
	if n := len(h.freeList); n > 0 {
		idx := h.freeList[n-1]
		h.freeList = h.freeList[:n-1]
		return idx, true
	}
	if len(h.slots) >= h.opts.MaxClients {
		return 0, false
	}
	h.slots = append(h.slots, hostSlot{})
	return len(h.slots) - 1, true
}

func (h *Host) linkTail(idx int) {
	h.slots[idx].prev = h.tailIdx
	h.slots[idx].next = -1
	if h.tailIdx >= 0 {
		h.slots[h.tailIdx].next = idx
	} else {
		h.headIdx = idx
	}
	h.tailIdx = idx
}

func (h *Host) unlink(idx int) {
	s := &h.slots[idx]
	if s.prev >= 0 {
		h.slots[s.prev].next = s.next
	} else {
		h.headIdx = s.next
	}
	if s.next >= 0 {
		h.slots[s.next].prev = s.prev
	} else {
		h.tailIdx = s.prev
	}
}

func (h *Host) resolve(handle uint32) (int, *hostSlot, bool) {
	if handle == 0 {
		return 0, nil, false
	}
	idx := int(handle & 0xffff)
	if idx < 0 || idx >= len(h.slots) {
		return 0, nil, false
	}
	s := &h.slots[idx]
	if !s.inUse || s.handle != handle {
		return 0, nil, false
	}
	return idx, s, true
}

// Process runs one pass: drain the accept queue (subject to the
// registry cap), pump send/recv for each Established client (subject
// to event-stream back-pressure), then sweep dead or idle clients.
func (h *Host) Process() {
	if !h.running {
		return
	}
	now := time.Now()

	for {
		fd, sa, err := unix.Accept(h.listenFd)
		if err != nil {
			break
		}
		if h.count >= h.opts.MaxClients {
			unix.Close(fd)
			continue
		}
		idx, ok := h.allocSlot()
		if !ok {
			unix.Close(fd)
			continue
		}
		peer, addrBytes := decodeSockaddr(sa)
		c := NewClient(h.pool, WithFraming(h.opts.Framing), WithScratchSize(h.opts.ScratchSize), WithPoller(h.opts.PollerDevice))
		if err := c.assign(fd, peer); err != nil {
			unix.Close(fd)
			h.freeList = append(h.freeList, idx)
			continue
		}
		handle := uint32(h.generation)<<16 | uint32(idx)
		h.generation++
		if h.generation >= generationWrap {
			h.generation = 1
		}
		h.slots[idx] = hostSlot{inUse: true, handle: handle, tag: -1, client: c}
		h.linkTail(idx)
		h.count++
		c.handle = handle

		h.pushEvent(EventNew, int32(handle), -1, addrBytes)
	}

	for idx := h.headIdx; idx >= 0; {
		s := &h.slots[idx]
		next := s.next
		c := s.client

		if c.State() == StateEstablished {
			c.trySend()
			if c.State() == StateEstablished && h.events.Size() <= h.opts.EventLimit {
				c.tryRecv()
				for {
					n, _, err := c.Recv(h.buffer)
					if err != nil {
						break
					}
					h.pushEvent(EventData, int32(s.handle), s.tag, h.buffer[:n])
				}
			}
		}

		idleFor := now.Sub(c.LastActivity())
		timedOut := h.opts.IdleTimeout > 0 && idleFor >= h.opts.IdleTimeout
		if c.State() != StateEstablished || timedOut {
			// Orderly peer shutdown (tryRecv observing recv==0) fails the
			// client with ErrClosed; that is not a reportable error, so it
			// stays reason 0 along with a clean idle-timeout sweep. Any
			// other error (and only that) is a hard I/O failure.
			reason := int32(0)
			if c.Err() != nil && c.Err() != ErrClosed {
				reason = 1
			}
			h.closeSlot(idx, reason)
		}

		idx = next
	}
}

// decodeSockaddr renders an accepted peer's address as both a
// net.TCPAddr string (for the Client) and a NEW event payload: the
// 4-byte IPv4 address followed by the 2-byte LSB port, matching a
// flattened sockaddr_in's address-bearing fields.
func decodeSockaddr(sa unix.Sockaddr) (addrStr string, payload []byte) {
	in4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return "", make([]byte, 6)
	}
	addrStr = (&net.TCPAddr{IP: append([]byte(nil), in4.Addr[:]...), Port: in4.Port}).String()
	buf := make([]byte, 6)
	copy(buf[0:4], in4.Addr[:])
	binary.LittleEndian.PutUint16(buf[4:6], uint16(in4.Port))
	return addrStr, buf
}

func (h *Host) closeSlot(idx int, reason int32) {
	s := &h.slots[idx]
	h.pushEvent(EventLeave, int32(s.handle), reason, encodeReason(reason))
	s.client.Close()
	h.unlink(idx)
	h.slots[idx] = hostSlot{}
	h.freeList = append(h.freeList, idx)
	h.count--
}

func encodeReason(reason int32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(reason))
	return b[:]
}

// Send queues bytes for handle, framed with the Host's configured
// framing mode and no mask. A stale or unknown handle queues nothing
// and returns ErrInvalidHandle.
func (h *Host) Send(handle uint32, payload []byte) error {
	_, s, ok := h.resolve(handle)
	if !ok {
		return ErrInvalidHandle
	}
	return s.client.Send(payload, 0)
}

// Close pushes LEAVE(reason) for handle, tears down its client, and
// frees the registry slot for reuse under a new generation.
func (h *Host) Close(handle uint32, reason int32) {
	idx, _, ok := h.resolve(handle)
	if !ok {
		return
	}
	h.closeSlot(idx, reason)
}

// SetTag attaches an application-defined tag to handle, returned as
// lparam of its subsequent DATA events (LEAVE carries the reason code).
func (h *Host) SetTag(handle uint32, tag int32) {
	if _, s, ok := h.resolve(handle); ok {
		s.tag = tag
	}
}

// GetTag returns handle's current tag, or -1 if the handle does not
// resolve.
func (h *Host) GetTag(handle uint32) int32 {
	if _, s, ok := h.resolve(handle); ok {
		return s.tag
	}
	return -1
}

// SetNoDelay toggles TCP_NODELAY on handle's socket.
func (h *Host) SetNoDelay(handle uint32, enable bool) error {
	_, s, ok := h.resolve(handle)
	if !ok {
		return ErrInvalidHandle
	}
	return s.client.SetNoDelay(enable)
}

// Head returns the first live handle in registry order, for
// Head/Next iteration over all connected clients.
func (h *Host) Head() (uint32, bool) {
	if h.headIdx < 0 {
		return 0, false
	}
	return h.slots[h.headIdx].handle, true
}

// Next returns the handle following handle in registry order.
func (h *Host) Next(handle uint32) (uint32, bool) {
	idx, _, ok := h.resolve(handle)
	if !ok {
		return 0, false
	}
	next := h.slots[idx].next
	if next < 0 {
		return 0, false
	}
	return h.slots[next].handle, true
}

// Read decodes the oldest pending event into (kind, wparam, lparam)
// and copies up to len(buf) payload bytes into buf, dropping any
// overflow. It returns the number of payload bytes copied, or
// ErrWouldBlock if no event is pending. For DATA events lparam is
// rewritten to the handle's current tag when it still resolves; for
// LEAVE events lparam is the reason code passed to Close/the idle
// sweep.
func (h *Host) Read(buf []byte) (kind EventKind, wparam int32, lparam int32, n int, err error) {
	var head [eventHeaderLen]byte
	if got := h.events.Peek(head[:], eventHeaderLen); got != eventHeaderLen {
		return 0, 0, 0, 0, ErrWouldBlock
	}
	total := int(binary.LittleEndian.Uint32(head[0:4]))
	kind = EventKind(binary.LittleEndian.Uint16(head[4:6]))
	wparam = int32(binary.LittleEndian.Uint32(head[6:10]))
	lparam = int32(binary.LittleEndian.Uint32(head[10:14]))

	h.events.Drop(eventHeaderLen)
	payloadLen := total - eventHeaderLen
	n = payloadLen
	if n > len(buf) {
		n = len(buf)
	}
	h.events.Read(buf[:n], n)
	if payloadLen > n {
		h.events.Drop(payloadLen - n)
	}

	// DATA's lparam always reflects the slot's current tag. LEAVE's
	// lparam is the reason code set at push time above (the slot is
	// already freed by the time its LEAVE is read, so there is no tag
	// left to rewrite it with).
	if kind == EventData {
		if _, s, ok := h.resolve(uint32(wparam)); ok {
			lparam = s.tag
		}
	}
	return kind, wparam, lparam, n, nil
}
