// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package netcore

import (
	"time"

	"code.hybscloud.com/netcore/poller"
)

// Options configures a Client or Host. Not every field applies to
// both: SendRC4Key/RecvRC4Key and Framing apply to Client; MaxClients,
// EventLimit, and IdleTimeout apply to Host; PollerDevice and
// ScratchSize apply to both.
type Options struct {
	Framing FramingMode

	SendRC4Key []byte
	RecvRC4Key []byte

	// ScratchSize bounds a single read syscall's chunk size and the
	// send-side copy/RC4 chunk size (write syscalls send one page window
	// at a time). 64 KiB matches the reference client's ITMC_BUFSIZE.
	ScratchSize int

	// IdleTimeout closes a Host client that has seen no activity for
	// this long. Zero disables idle sweeping.
	IdleTimeout time.Duration

	// EventLimit is the Host event stream's back-pressure threshold in
	// bytes; once exceeded, process() stops reading client sockets
	// until the owner drains events below it.
	EventLimit int

	// MaxClients bounds the Host's client registry. The protocol
	// handle format (generation<<16 | slot) caps this at 0x10000.
	MaxClients int

	PollerDevice poller.Device
}

var defaultOptions = Options{
	Framing:      Mode0,
	ScratchSize:  64 * 1024,
	IdleTimeout:  60 * time.Second,
	EventLimit:   64 * 1024 * 1024,
	MaxClients:   0x10000,
	PollerDevice: poller.AUTO,
}

type Option func(*Options)

// WithFraming selects the wire framing mode. Both ends of a connection
// must agree on it out of band.
func WithFraming(mode FramingMode) Option {
	return func(o *Options) { o.Framing = mode }
}

// WithRC4Key enables RC4 on both directions with the same key.
func WithRC4Key(key []byte) Option {
	return func(o *Options) { o.SendRC4Key, o.RecvRC4Key = key, key }
}

// WithSendRC4Key enables RC4 on the send direction only.
func WithSendRC4Key(key []byte) Option {
	return func(o *Options) { o.SendRC4Key = key }
}

// WithRecvRC4Key enables RC4 on the receive direction only.
func WithRecvRC4Key(key []byte) Option {
	return func(o *Options) { o.RecvRC4Key = key }
}

// WithScratchSize overrides the I/O scratch chunk size.
func WithScratchSize(n int) Option {
	return func(o *Options) { o.ScratchSize = n }
}

// WithIdleTimeout overrides the Host's idle-client sweep interval.
// Zero disables sweeping.
func WithIdleTimeout(d time.Duration) Option {
	return func(o *Options) { o.IdleTimeout = d }
}

// WithEventLimit overrides the Host's event-backlog back-pressure
// threshold, in bytes.
func WithEventLimit(n int) Option {
	return func(o *Options) { o.EventLimit = n }
}

// WithMaxClients overrides the Host's registry capacity. Values above
// 0x10000 are clamped since the handle format cannot address more.
func WithMaxClients(n int) Option {
	return func(o *Options) {
		if n > 0x10000 {
			n = 0x10000
		}
		o.MaxClients = n
	}
}

// WithPoller selects the readiness poller device. AUTO (the default)
// picks the highest-performance device compiled in for the platform.
func WithPoller(device poller.Device) Option {
	return func(o *Options) { o.PollerDevice = device }
}
