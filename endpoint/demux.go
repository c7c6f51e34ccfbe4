// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package endpoint

import (
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/transport/v3/deadline"
)

// peerConn is the net.Conn view of one remote address on a shared packet
// conn. The endpoint read loop feeds it through deliver.
type peerConn struct {
	conn   net.PacketConn
	remote net.Addr
	forget func(*peerConn)

	inbound      chan []byte
	closed       chan struct{}
	closeOnce    sync.Once
	readDeadline *deadline.Deadline

	peerAbort    atomic.Bool
	peerShutdown atomic.Bool
	dropped      atomic.Uint64
}

func newPeerConn(conn net.PacketConn, remote net.Addr, queueSize int, forget func(*peerConn)) *peerConn {
	return &peerConn{
		conn:         conn,
		remote:       remote,
		forget:       forget,
		inbound:      make(chan []byte, queueSize),
		closed:       make(chan struct{}),
		readDeadline: deadline.New(),
	}
}

// deliver queues pkt for Read and records shutdown and abort chunks sent by
// the peer. A full queue drops the datagram like a congested link would.
func (c *peerConn) deliver(pkt []byte) {
	for _, t := range chunkTypes(pkt) {
		switch t {
		case chunkTypeAbort:
			c.peerAbort.Store(true)
		case chunkTypeShutdown, chunkTypeShutdownAck, chunkTypeShutdownComplete:
			c.peerShutdown.Store(true)
		}
	}

	select {
	case <-c.closed:
	case c.inbound <- pkt:
	default:
		c.dropped.Add(1)
	}
}

func (c *peerConn) Read(b []byte) (int, error) {
	select {
	case <-c.closed:
		return 0, net.ErrClosed
	default:
	}

	select {
	case pkt := <-c.inbound:
		return copy(b, pkt), nil
	case <-c.readDeadline.Done():
		return 0, os.ErrDeadlineExceeded
	case <-c.closed:
		return 0, net.ErrClosed
	}
}

func (c *peerConn) Write(b []byte) (int, error) {
	select {
	case <-c.closed:
		return 0, net.ErrClosed
	default:
	}

	return c.conn.WriteTo(b, c.remote)
}

func (c *peerConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		if c.forget != nil {
			c.forget(c)
		}
	})

	return nil
}

func (c *peerConn) LocalAddr() net.Addr  { return c.conn.LocalAddr() }
func (c *peerConn) RemoteAddr() net.Addr { return c.remote }

func (c *peerConn) SetDeadline(t time.Time) error {
	return c.SetReadDeadline(t)
}

func (c *peerConn) SetReadDeadline(t time.Time) error {
	c.readDeadline.Set(t)

	return nil
}

// SetWriteDeadline is a no-op: datagram writes do not block.
func (c *peerConn) SetWriteDeadline(time.Time) error {
	return nil
}
