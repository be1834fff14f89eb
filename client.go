// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package netcore

import (
	"net"
	"time"

	"golang.org/x/sys/unix"

	"code.hybscloud.com/netcore/internal/memstream"
	"code.hybscloud.com/netcore/internal/page"
	"code.hybscloud.com/netcore/poller"
)

// ClientState is a Client's position in the connect/accept lifecycle.
type ClientState int

const (
	StateClosed ClientState = iota
	StateConnecting
	StateEstablished
)

// Client is a non-blocking, single-threaded stream endpoint: a raw
// non-blocking socket plus segmented send/recv queues, framing, and
// optional per-direction RC4. All public methods must be serialised by
// the caller; nothing here takes a lock.
type Client struct {
	opts Options

	fd    int
	state ClientState
	err   error

	handle    uint32
	tag       int32
	localAddr string

	send *memstream.MemStream
	recv *memstream.MemStream

	framing FramingMode
	sendRC4 *RC4
	recvRC4 *RC4

	lastActivity time.Time
	scratch      []byte
	pool         page.Pool
}

// NewClient creates an idle Client (StateClosed) backed by pool for
// its send/recv queues.
func NewClient(pool page.Pool, opts ...Option) *Client {
	o := defaultOptions
	for _, opt := range opts {
		opt(&o)
	}
	c := &Client{
		opts:    o,
		fd:      -1,
		framing: o.Framing,
		sendRC4: NewRC4(),
		recvRC4: NewRC4(),
		scratch: make([]byte, o.ScratchSize),
		pool:    pool,
	}
	c.send = memstream.New(pool)
	c.recv = memstream.New(pool)
	c.applyRC4Keys()
	return c
}

func (c *Client) applyRC4Keys() {
	if len(c.opts.SendRC4Key) > 0 {
		c.sendRC4.Init(c.opts.SendRC4Key)
	}
	if len(c.opts.RecvRC4Key) > 0 {
		c.recvRC4.Init(c.opts.RecvRC4Key)
	}
}

func (c *Client) Fd() int              { return c.fd }
func (c *Client) State() ClientState   { return c.state }
func (c *Client) Err() error           { return c.err }
func (c *Client) Handle() uint32       { return c.handle }
func (c *Client) Tag() int32           { return c.tag }
func (c *Client) SetTag(tag int32)     { c.tag = tag }
func (c *Client) LocalAddr() string    { return c.localAddr }
func (c *Client) LastActivity() time.Time { return c.lastActivity }

func (c *Client) resetForNewSocket() {
	if c.fd >= 0 {
		unix.Close(c.fd)
	}
	c.fd = -1
	c.state = StateClosed
	c.err = nil
	c.send.Clear()
	c.recv.Clear()
	c.sendRC4 = NewRC4()
	c.recvRC4 = NewRC4()
	c.applyRC4Keys()
}

// Connect creates a non-blocking IPv4 TCP socket and begins an
// asynchronous connect to addr ("host:port"), entering
// StateConnecting. The caller drives the handshake to completion via
// HandleReadiness (directly, or through a Host/poller loop).
func (c *Client) Connect(addr string) error {
	c.resetForNewSocket()

	raddr, err := net.ResolveTCPAddr("tcp4", addr)
	if err != nil {
		return err
	}
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return err
	}
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)

	var sa unix.SockaddrInet4
	sa.Port = raddr.Port
	ip4 := raddr.IP.To4()
	if ip4 == nil {
		unix.Close(fd)
		return ErrPrecondition
	}
	copy(sa.Addr[:], ip4)

	err = unix.Connect(fd, &sa)
	if err != nil && err != unix.EINPROGRESS && err != unix.EALREADY {
		unix.Close(fd)
		return err
	}

	c.fd = fd
	c.state = StateConnecting
	c.lastActivity = time.Now()
	if sn, lerr := unix.Getsockname(fd); lerr == nil {
		if in4, ok := sn.(*unix.SockaddrInet4); ok {
			c.localAddr = (&net.TCPAddr{IP: append([]byte(nil), in4.Addr[:]...), Port: in4.Port}).String()
		}
	}
	return nil
}

// assign adopts an already-accepted, connected fd directly into
// StateEstablished. Used by Host.
func (c *Client) assign(fd int, peerAddr string) error {
	c.resetForNewSocket()
	if err := unix.SetNonblock(fd, true); err != nil {
		return err
	}
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	c.fd = fd
	c.localAddr = peerAddr
	c.state = StateEstablished
	c.lastActivity = time.Now()
	return nil
}

func (c *Client) socketError() error {
	errno, serr := unix.GetsockoptInt(c.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if serr != nil {
		return serr
	}
	if errno != 0 {
		return unix.Errno(errno)
	}
	return nil
}

func (c *Client) fail(err error) {
	if c.fd >= 0 {
		unix.Close(c.fd)
	}
	c.fd = -1
	c.state = StateClosed
	c.err = err
}

// HandleReadiness advances the Connecting handshake or, once
// Established, pumps one round of send/recv. The owner (a standalone
// loop or a Host) calls this when the poller reports mask for Fd().
func (c *Client) HandleReadiness(mask poller.Mask) {
	switch c.state {
	case StateClosed:
		return
	case StateConnecting:
		if mask&poller.Err != 0 {
			c.fail(c.socketError())
			return
		}
		if mask&poller.Write != 0 {
			if err := c.socketError(); err != nil {
				c.fail(err)
				return
			}
			c.state = StateEstablished
			c.lastActivity = time.Now()
		}
	case StateEstablished:
		c.Process()
	}
}

// Process drains the send queue to the socket, then reads available
// bytes into the recv queue. It is a no-op unless Established.
func (c *Client) Process() {
	if c.state != StateEstablished {
		return
	}
	c.trySend()
	if c.state != StateEstablished {
		return
	}
	c.tryRecv()
}

func (c *Client) trySend() {
	for {
		flat := c.send.Flat()
		if len(flat) == 0 {
			return
		}
		n, err := unix.Write(c.fd, flat)
		if err != nil {
			if err == unix.EAGAIN {
				return
			}
			c.fail(err)
			return
		}
		if n <= 0 {
			return
		}
		c.send.Drop(n)
	}
}

func (c *Client) tryRecv() {
	for {
		n, err := unix.Read(c.fd, c.scratch)
		if err != nil {
			if err == unix.EAGAIN {
				return
			}
			c.fail(err)
			return
		}
		if n == 0 {
			c.fail(ErrClosed)
			return
		}
		c.lastActivity = time.Now()
		chunk := c.scratch[:n]
		if c.recvRC4.Enabled() {
			c.recvRC4.Crypt(chunk, chunk)
		}
		c.recv.Write(chunk)
	}
}

// Send frames and queues payload for sending; mask is used only by
// Mode12 framing (ignored otherwise).
func (c *Client) Send(payload []byte, mask byte) error {
	return c.vsend([][]byte{payload}, mask)
}

// Vsend frames and queues the concatenation of slices as one message,
// per the reference client's vectored send.
func (c *Client) Vsend(slices [][]byte, mask byte) error {
	return c.vsend(slices, mask)
}

func (c *Client) vsend(slices [][]byte, mask byte) error {
	if c.state == StateClosed {
		return ErrClosed
	}
	total := 0
	for _, s := range slices {
		total += len(s)
	}
	if total > c.framing.MaxPayload() {
		return ErrTooLong
	}

	var header [4]byte
	hlen := c.framing.HeaderLen()
	if err := c.framing.EncodeHeader(header[:hlen], total, mask); err != nil {
		return err
	}
	if c.sendRC4.Enabled() {
		c.sendRC4.Crypt(header[:hlen], header[:hlen])
	}
	c.send.Write(header[:hlen])

	for _, s := range slices {
		for len(s) > 0 {
			n := len(s)
			if n > len(c.scratch) {
				n = len(c.scratch)
			}
			chunk := c.scratch[:n]
			if c.sendRC4.Enabled() {
				c.sendRC4.Crypt(chunk, s[:n])
			} else {
				copy(chunk, s[:n])
			}
			c.send.Write(chunk)
			s = s[n:]
		}
	}
	return nil
}

// Available reports the total length (header+payload) of the next
// complete frame buffered in recv, and its Mode12 mask (zero for
// other modes), without consuming anything.
func (c *Client) Available() (frameLen int, mask byte, ok bool) {
	hlen := c.framing.HeaderLen()
	if c.recv.Size() < hlen {
		return 0, 0, false
	}
	var header [4]byte
	c.recv.Peek(header[:hlen], hlen)
	frameLen, mask = c.framing.DecodeHeader(header[:hlen])
	if c.recv.Size() < frameLen {
		return 0, 0, false
	}
	return frameLen, mask, true
}

// Recv removes one complete frame's payload from recv into buf,
// returning the number of payload bytes copied (truncated to len(buf);
// any overflow is dropped) and the Mode12 mask. It returns
// ErrWouldBlock if no complete frame is buffered yet, or ErrClosed if
// the connection has closed with no more frames pending.
func (c *Client) Recv(buf []byte) (n int, mask byte, err error) {
	frameLen, mask, ok := c.Available()
	if !ok {
		if c.state == StateClosed {
			return 0, 0, ErrClosed
		}
		return 0, 0, ErrWouldBlock
	}
	hlen := c.framing.HeaderLen()
	c.recv.Drop(hlen)
	payloadLen := frameLen - hlen
	n = payloadLen
	if n > len(buf) {
		n = len(buf)
	}
	c.recv.Read(buf[:n], n)
	if payloadLen > n {
		c.recv.Drop(payloadLen - n)
	}
	return n, mask, nil
}

// Wait blocks until a complete frame is available, the connection
// closes, or timeout elapses (<=0 means return immediately after one
// check). It is the explicit blocking variant; HandleReadiness driven
// by an external poll loop is the non-blocking one.
func (c *Client) Wait(timeout time.Duration) error {
	if _, _, ok := c.Available(); ok {
		return nil
	}
	if c.state == StateClosed {
		return ErrClosed
	}
	if timeout <= 0 {
		return ErrWouldBlock
	}
	deadline := time.Now().Add(timeout)

	pl, err := poller.New(c.opts.PollerDevice, 1)
	if err != nil {
		return err
	}
	defer pl.Close()

	mask := poller.Read | poller.Err
	if c.state == StateConnecting {
		mask = poller.Write | poller.Err
	}
	if err := pl.Add(c.fd, mask, nil); err != nil {
		return err
	}

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ErrWouldBlock
		}
		n, err := pl.Wait(remaining)
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			ev, ok := pl.Event()
			if !ok {
				break
			}
			wasConnecting := c.state == StateConnecting
			c.HandleReadiness(ev.Mask)
			if wasConnecting && c.state == StateEstablished {
				pl.Set(c.fd, poller.Read|poller.Err)
			}
		}
		if _, _, ok := c.Available(); ok {
			return nil
		}
		if c.state == StateClosed {
			return ErrClosed
		}
	}
}

// SetSendRC4 enables RC4 on the send direction with key (empty key
// disables it).
func (c *Client) SetSendRC4(key []byte) { c.sendRC4.Init(key) }

// SetRecvRC4 enables RC4 on the recv direction with key (empty key
// disables it).
func (c *Client) SetRecvRC4(key []byte) { c.recvRC4.Init(key) }

// SetNoDelay toggles TCP_NODELAY on the underlying socket.
func (c *Client) SetNoDelay(enable bool) error {
	if c.fd < 0 {
		return nil
	}
	v := 0
	if enable {
		v = 1
	}
	return unix.SetsockoptInt(c.fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, v)
}

// Close releases the socket and transitions to StateClosed. Buffered,
// unsent bytes are discarded.
func (c *Client) Close() error {
	var err error
	if c.fd >= 0 {
		err = unix.Close(c.fd)
	}
	c.fd = -1
	c.state = StateClosed
	return err
}
