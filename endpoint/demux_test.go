// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package endpoint

import (
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type written struct {
	data []byte
	addr net.Addr
}

// fakePacketConn records writes; reads block until Close.
type fakePacketConn struct {
	mu     sync.Mutex
	writes []written
	closed chan struct{}
	once   sync.Once
}

func newFakePacketConn() *fakePacketConn {
	return &fakePacketConn{closed: make(chan struct{})}
}

func (c *fakePacketConn) ReadFrom([]byte) (int, net.Addr, error) {
	<-c.closed

	return 0, nil, net.ErrClosed
}

func (c *fakePacketConn) WriteTo(b []byte, addr net.Addr) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.writes = append(c.writes, written{data: append([]byte(nil), b...), addr: addr})

	return len(b), nil
}

func (c *fakePacketConn) Close() error {
	c.once.Do(func() { close(c.closed) })

	return nil
}

func (c *fakePacketConn) LocalAddr() net.Addr {
	return &net.UDPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 5001}
}

func (c *fakePacketConn) SetDeadline(time.Time) error      { return nil }
func (c *fakePacketConn) SetReadDeadline(time.Time) error  { return nil }
func (c *fakePacketConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakePacketConn) sent() []written {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]written(nil), c.writes...)
}

var testRemote = &net.UDPAddr{IP: net.IPv4(10, 0, 0, 2), Port: 5000}

func TestPeerConnDeliverAndRead(t *testing.T) {
	t.Parallel()

	pc := newPeerConn(newFakePacketConn(), testRemote, 4, nil)
	pc.deliver([]byte("one"))
	pc.deliver([]byte("two"))

	buf := make([]byte, 16)
	n, err := pc.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "one", string(buf[:n]))
	n, err = pc.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "two", string(buf[:n]))
}

func TestPeerConnDropsWhenFull(t *testing.T) {
	t.Parallel()

	pc := newPeerConn(newFakePacketConn(), testRemote, 1, nil)
	pc.deliver([]byte("kept"))
	pc.deliver([]byte("dropped"))

	require.Equal(t, uint64(1), pc.dropped.Load())
}

func TestPeerConnWriteTargetsRemote(t *testing.T) {
	t.Parallel()

	conn := newFakePacketConn()
	pc := newPeerConn(conn, testRemote, 1, nil)

	n, err := pc.Write([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 5, n)

	sent := conn.sent()
	require.Len(t, sent, 1)
	require.Equal(t, testRemote, sent[0].addr)
	require.Equal(t, "hello", string(sent[0].data))
	require.Equal(t, testRemote, pc.RemoteAddr())
	require.Equal(t, conn.LocalAddr(), pc.LocalAddr())
}

func TestPeerConnReadDeadline(t *testing.T) {
	t.Parallel()

	pc := newPeerConn(newFakePacketConn(), testRemote, 1, nil)
	require.NoError(t, pc.SetReadDeadline(time.Now().Add(10*time.Millisecond)))

	_, err := pc.Read(make([]byte, 4))
	require.ErrorIs(t, err, os.ErrDeadlineExceeded)

	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	require.True(t, netErr.Timeout())
}

func TestPeerConnClose(t *testing.T) {
	t.Parallel()

	forgotten := 0
	pc := newPeerConn(newFakePacketConn(), testRemote, 1, func(*peerConn) { forgotten++ })

	readErr := make(chan error, 1)
	go func() {
		_, err := pc.Read(make([]byte, 4))
		readErr <- err
	}()

	require.NoError(t, pc.Close())
	require.NoError(t, pc.Close())
	require.ErrorIs(t, <-readErr, net.ErrClosed)
	require.Equal(t, 1, forgotten)

	_, err := pc.Write([]byte("x"))
	require.ErrorIs(t, err, net.ErrClosed)

	// Delivery after close is discarded without blocking.
	pc.deliver([]byte("late"))
	require.Zero(t, pc.dropped.Load())
}

func TestPeerConnRecordsPeerChunks(t *testing.T) {
	t.Parallel()

	pc := newPeerConn(newFakePacketConn(), testRemote, 4, nil)
	pc.deliver(buildPacket(4, 0x00))
	require.False(t, pc.peerAbort.Load())
	require.False(t, pc.peerShutdown.Load())

	pc.deliver(buildPacket(0, chunkTypeShutdownAck))
	require.True(t, pc.peerShutdown.Load())

	pc.deliver(buildPacket(4, chunkTypeAbort))
	require.True(t, pc.peerAbort.Load())
}
