// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package endpoint

import (
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/pion/logging"
	"github.com/pion/sctpsock/socket"
	"go.uber.org/multierr"
)

// Endpoint is a bound UDP port carrying any number of SCTP associations,
// one per remote address.
type Endpoint struct {
	cfg   Config
	log   logging.LeveledLogger
	conn  net.PacketConn
	local socket.Addr

	mu          sync.Mutex
	peers       map[string]*peerConn
	assocs      map[*Association]struct{}
	inbound     map[int]func(socket.Association)
	nextInbound int
	params      socket.Params
	closed      bool
	retired     Stats

	done     chan struct{}
	readDone chan struct{}
}

// Stats holds traffic counters summed over every association of an endpoint.
type Stats struct {
	BytesSent     uint64
	BytesReceived uint64
	// Dropped counts datagrams discarded because a peer queue was full.
	Dropped uint64
}

// Initialize binds a UDP socket for opts and starts demultiplexing it. Only
// the first local address is bound.
func Initialize(cfg Config, opts socket.EndpointOptions) (*Endpoint, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	log := cfg.LoggerFactory.NewLogger("endpoint")

	host := "0.0.0.0"
	if len(opts.LocalAddress) > 0 {
		host = opts.LocalAddress[0]
	}
	if len(opts.LocalAddress) > 1 {
		log.Debugf("multihoming unsupported, binding %s only", host)
	}
	conn, err := cfg.Net.ListenPacket("udp4", net.JoinHostPort(host, strconv.Itoa(opts.LocalPort)))
	if err != nil {
		return nil, fmt.Errorf("%w: port %d: %w", errBind, opts.LocalPort, err)
	}

	e := &Endpoint{
		cfg:      cfg,
		log:      log,
		conn:     conn,
		local:    toSocketAddr(conn.LocalAddr()),
		peers:    map[string]*peerConn{},
		assocs:   map[*Association]struct{}{},
		inbound:  map[int]func(socket.Association){},
		params:   socket.Params{},
		done:     make(chan struct{}),
		readDone: make(chan struct{}),
	}
	log.Debugf("bound %s (MIS=%d OS=%d)", e.local, opts.MIS, opts.OS)
	go e.readLoop()

	return e, nil
}

// Associate starts the handshake with the given peer in the background.
func (e *Endpoint) Associate(opts socket.AssociateOptions) (socket.Association, error) {
	raddr, err := e.cfg.Net.ResolveUDPAddr("udp4", net.JoinHostPort(opts.RemoteAddress, strconv.Itoa(opts.RemotePort)))
	if err != nil {
		return nil, fmt.Errorf("endpoint: resolve %s:%d: %w", opts.RemoteAddress, opts.RemotePort, err)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, errClosed
	}
	key := raddr.String()
	if _, exists := e.peers[key]; exists {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", errPeerExists, key)
	}
	assoc := e.addPeerLocked(raddr)
	e.mu.Unlock()

	go assoc.dial()

	return assoc, nil
}

// OnAssociation registers fn for inbound associations. Datagrams from
// unknown peers are only admitted while at least one handler is registered.
func (e *Endpoint) OnAssociation(fn func(socket.Association)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextInbound
	e.nextInbound++
	e.inbound[id] = fn

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.inbound, id)
	}
}

// Configure stores endpoint parameters such as cookie_life. pion/sctp has no
// knob for them, so they are kept for inspection only.
func (e *Endpoint) Configure(p socket.Params) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.params.Merge(p)
}

// Params returns a copy of the configured endpoint parameters.
func (e *Endpoint) Params() socket.Params {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.params.Clone()
}

// LocalAddr returns the bound address.
func (e *Endpoint) LocalAddr() socket.Addr {
	return e.local
}

// Stats returns the counters of live and finished associations.
func (e *Endpoint) Stats() Stats {
	e.mu.Lock()
	stats := e.retired
	assocs := make([]*Association, 0, len(e.assocs))
	for a := range e.assocs {
		assocs = append(assocs, a)
	}
	for _, pc := range e.peers {
		stats.Dropped += pc.dropped.Load()
	}
	e.mu.Unlock()

	for _, a := range assocs {
		sent, received := a.bytes()
		stats.BytesSent += sent
		stats.BytesReceived += received
	}

	return stats
}

// Destroy aborts every remaining association and closes the UDP socket.
func (e *Endpoint) Destroy() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	close(e.done)
	assocs := make([]*Association, 0, len(e.assocs))
	for a := range e.assocs {
		assocs = append(assocs, a)
	}
	e.inbound = map[int]func(socket.Association){}
	e.mu.Unlock()

	var err error
	for _, a := range assocs {
		err = multierr.Append(err, a.Abort(errDestroyed))
	}
	err = multierr.Append(err, e.conn.Close())
	<-e.readDone
	e.log.Debugf("destroyed %s", e.local)

	return err
}

func (e *Endpoint) readLoop() {
	defer close(e.readDone)

	buf := make([]byte, receiveMTU)
	for {
		n, addr, err := e.conn.ReadFrom(buf)
		if err != nil {
			e.log.Debugf("read loop stopped: %v", err)
			e.closePeers()
			return
		}
		pkt := make([]byte, n)
		copy(pkt, buf[:n])

		pc, accepted := e.route(addr, pkt)
		if pc == nil {
			e.log.Tracef("dropping %d bytes from %s", n, addr)
			continue
		}
		pc.deliver(pkt)
		if accepted != nil {
			go accepted.serve()
		}
	}
}

// route finds the peer conn for addr. A new inbound association is created
// when pkt opens a handshake and someone listens.
func (e *Endpoint) route(addr net.Addr, pkt []byte) (*peerConn, *Association) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if pc, ok := e.peers[addr.String()]; ok {
		return pc, nil
	}
	if e.closed || len(e.inbound) == 0 || !startsWithInit(pkt) {
		return nil, nil
	}
	assoc := e.addPeerLocked(addr)

	return assoc.conn, assoc
}

// Caller holds e.mu.
func (e *Endpoint) addPeerLocked(raddr net.Addr) *Association {
	pc := newPeerConn(e.conn, raddr, e.cfg.PeerQueueSize, e.forgetPeer)
	e.peers[raddr.String()] = pc
	assoc := newAssociation(e, pc)
	e.assocs[assoc] = struct{}{}

	return assoc
}

func (e *Endpoint) forgetPeer(pc *peerConn) {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := pc.remote.String()
	if e.peers[key] == pc {
		delete(e.peers, key)
	}
	e.retired.Dropped += pc.dropped.Load()
}

func (e *Endpoint) forgetAssociation(a *Association) {
	sent, received := a.bytes()

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.assocs[a]; !ok {
		return
	}
	delete(e.assocs, a)
	e.retired.BytesSent += sent
	e.retired.BytesReceived += received
}

func (e *Endpoint) closePeers() {
	e.mu.Lock()
	peers := make([]*peerConn, 0, len(e.peers))
	for _, pc := range e.peers {
		peers = append(peers, pc)
	}
	e.mu.Unlock()

	for _, pc := range peers {
		_ = pc.Close()
	}
}

// handOff passes an established inbound association to the listeners. It is
// aborted when nobody listens anymore.
func (e *Endpoint) handOff(a *Association) {
	e.mu.Lock()
	fns := make([]func(socket.Association), 0, len(e.inbound))
	for id := 0; id < e.nextInbound; id++ {
		if fn, ok := e.inbound[id]; ok {
			fns = append(fns, fn)
		}
	}
	e.mu.Unlock()

	if len(fns) == 0 {
		_ = a.Abort(errNoListener)
		return
	}
	for _, fn := range fns {
		fn(a)
	}
}

func toSocketAddr(addr net.Addr) socket.Addr {
	if udp, ok := addr.(*net.UDPAddr); ok {
		return socket.NewAddr(udp.IP.String(), udp.Port)
	}
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return socket.Addr{}
	}
	n, _ := strconv.Atoi(port)

	return socket.NewAddr(host, n)
}
