// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package netcore

import (
	"bytes"
	"net"
	"testing"
	"time"

	"code.hybscloud.com/netcore/internal/page"
	"code.hybscloud.com/netcore/poller"
)

// listenOnce opens a plain TCP listener on an ephemeral loopback port
// and returns it plus its dialable address, for handing accepted fds
// to a Client via assign-equivalent Connect/accept pairs.
func listenOnce(t *testing.T) (net.Listener, string) {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	return ln, ln.Addr().String()
}

func TestClientEchoMode0(t *testing.T) {
	ln, addr := listenOnce(t)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	pool := page.NewFixedPool(4096, 0)
	client := NewClient(pool, WithFraming(Mode0))
	if err := client.Connect(addr); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for client.State() == StateConnecting && time.Now().Before(deadline) {
		client.HandleReadiness(poller.Write)
		time.Sleep(time.Millisecond)
	}
	if client.State() != StateEstablished {
		t.Fatalf("client state = %v, want Established (err=%v)", client.State(), client.Err())
	}

	var conn net.Conn
	select {
	case conn = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("server never accepted")
	}
	defer conn.Close()

	if err := client.Send([]byte{0x41, 0x42, 0x43}, 0); err != nil {
		t.Fatalf("Send: %v", err)
	}
	for i := 0; i < 50 && client.send.Size() > 0; i++ {
		client.Process()
		time.Sleep(time.Millisecond)
	}

	wire := make([]byte, 5)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := readFull(conn, wire); err != nil {
		t.Fatalf("reading wire bytes: %v", err)
	}
	want := []byte{0x05, 0x00, 0x41, 0x42, 0x43}
	if !bytes.Equal(wire, want) {
		t.Fatalf("wire = % x, want % x", wire, want)
	}

	if _, err := conn.Write(wire); err != nil {
		t.Fatalf("echo write: %v", err)
	}

	deadline = time.Now().Add(2 * time.Second)
	var n int
	var buf [16]byte
	for time.Now().Before(deadline) {
		client.Process()
		if fl, _, ok := client.Available(); ok && fl > 0 {
			var err error
			n, _, err = client.Recv(buf[:])
			if err != nil {
				t.Fatalf("Recv: %v", err)
			}
			break
		}
		time.Sleep(time.Millisecond)
	}
	if !bytes.Equal(buf[:n], []byte{0x41, 0x42, 0x43}) {
		t.Fatalf("echoed payload = % x, want 41 42 43", buf[:n])
	}
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func TestClientRC4Symmetry(t *testing.T) {
	// S3: both sides keyed identically, payload survives intact.
	pool := page.NewFixedPool(4096, 0)
	send := NewClient(pool, WithFraming(Mode0))
	send.SetSendRC4([]byte("K"))
	// vsend refuses a Closed client; no socket is needed to inspect the
	// queued wire bytes, so mark the client Established directly.
	send.state = StateEstablished

	var header [2]byte
	_ = Mode0.EncodeHeader(header[:], 4, 0)
	sendRC4 := NewRC4()
	sendRC4.Init([]byte("K"))
	wantHeader := make([]byte, 2)
	sendRC4.Crypt(wantHeader, header[:])

	if err := send.vsend([][]byte{[]byte("ABCD")}, 0); err != nil {
		t.Fatalf("vsend: %v", err)
	}
	wire := make([]byte, send.send.Size())
	send.send.Peek(wire, len(wire))
	if !bytes.Equal(wire[:2], wantHeader) {
		t.Fatalf("encrypted header = % x, want % x", wire[:2], wantHeader)
	}

	// Decrypting with the same key recovers the plaintext header and payload.
	recvRC4 := NewRC4()
	recvRC4.Init([]byte("K"))
	plain := make([]byte, len(wire))
	recvRC4.Crypt(plain, wire)
	if !bytes.Equal(plain, []byte{0x06, 0x00, 'A', 'B', 'C', 'D'}) {
		t.Fatalf("decrypted wire = % x, want 06 00 41 42 43 44", plain)
	}
}

func TestClientSendRejectsOversizedPayload(t *testing.T) {
	pool := page.NewFixedPool(4096, 0)
	c := NewClient(pool, WithFraming(Mode4)) // 1-byte inclusive header, max payload 254
	big := make([]byte, Mode4.MaxPayload()+1)
	if err := c.Send(big, 0); err != ErrTooLong {
		t.Fatalf("Send over max payload: got %v, want ErrTooLong", err)
	}
}

func TestClientSendOnClosedIsError(t *testing.T) {
	pool := page.NewFixedPool(4096, 0)
	c := NewClient(pool)
	if err := c.Send([]byte("x"), 0); err != ErrClosed {
		t.Fatalf("Send on closed client: got %v, want ErrClosed", err)
	}
}

func TestClientAvailableRespectsBufferedBytes(t *testing.T) {
	pool := page.NewFixedPool(4096, 0)
	c := NewClient(pool, WithFraming(Mode0))
	// Directly seed the recv stream with a partial header to exercise
	// Available's "not enough buffered yet" path without a real socket.
	c.recv.Write([]byte{0x05})
	if _, _, ok := c.Available(); ok {
		t.Fatal("Available should be false with a truncated header")
	}
	c.recv.Write([]byte{0x00, 0x41, 0x42})
	if _, _, ok := c.Available(); ok {
		t.Fatal("Available should be false with an incomplete payload")
	}
	c.recv.Write([]byte{0x43})
	fl, _, ok := c.Available()
	if !ok || fl != 5 {
		t.Fatalf("Available = (%d, %v), want (5, true)", fl, ok)
	}
}
